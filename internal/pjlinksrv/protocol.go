/*
MIT License

Copyright (c) 2015-2017 University Corporation for Atmospheric Research

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package pjlinksrv

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
)

// ErrMalformedRequest is returned by parseRequest when a client line does
// not match "%<class><4-char command>[ <parameter>]".
var ErrMalformedRequest = errors.New("malformed PJLink request line")

// ErrAuthFailed is returned when a client's MD5 auth prefix does not match
// the expected hash of seed+password.
var ErrAuthFailed = errors.New("PJLink authentication failed")

// parseRequest splits a single received PJLink line (terminator already
// stripped by the caller) into its command body-with-class and
// transmission parameter. The line is "%" + class digit + 4-char command +
// optional " " + parameter, e.g. "%1POWR 1" or "%1CLSS ?".
func parseRequest(line []byte) (RawPayload, error) {
	if len(line) < 6 || line[0] != '%' {
		return RawPayload{}, ErrMalformedRequest
	}

	var body [5]byte
	copy(body[:4], line[2:6])
	body[4] = line[1]

	var param []byte
	if len(line) > 6 {
		if line[6] != ' ' {
			return RawPayload{}, ErrMalformedRequest
		}
		param = line[7:]
	}

	return RawPayload{CommandBodyWithClass: body, TransmissionParameter: param}, nil
}

// encodeResponse renders a Handler's Response as a complete PJLink reply
// line, e.g. "%1POWR=OK\r".
func encodeResponse(raw RawPayload, resp Response) []byte {
	class := raw.CommandBodyWithClass[4]
	command := raw.CommandBodyWithClass[:4]
	return []byte(fmt.Sprintf("%%%c%s=%s\r", class, command, resp.token()))
}

// newAuthSeed returns an 8-character lowercase hex seed for the Class 1
// MD5 authentication challenge, matching PJLink's "PJLINK 1 <seed>\r"
// greeting.
func newAuthSeed() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generating authentication seed")
	}
	return hex.EncodeToString(buf), nil
}

// verifyAuthPrefix checks a client's opening line against the expected
// md5(seed+password) hex digest. PJLink's authenticated form prefixes the
// usual "%..." request with the 32-character lowercase hex digest followed
// directly by the request itself, e.g. "<32-hex>%1POWR 1\r".
func verifyAuthPrefix(line []byte, seed, password string) ([]byte, error) {
	const digestLen = 32
	if len(line) < digestLen+1 || line[digestLen] != '%' {
		return nil, ErrAuthFailed
	}

	want := md5.Sum([]byte(seed + password))
	wantHex := hex.EncodeToString(want[:])
	got := string(line[:digestLen])
	if got != wantHex {
		return nil, ErrAuthFailed
	}
	return line[digestLen:], nil
}

// greeting renders the line a server sends immediately after accepting a
// connection: either "PJLINK 0\r" (no authentication) or
// "PJLINK 1 <seed>\r" (authentication required).
func greeting(required bool, seed string) []byte {
	if !required {
		return []byte("PJLINK 0\r")
	}
	return []byte(fmt.Sprintf("PJLINK 1 %s\r", seed))
}

// authErrorLine is sent in place of a greeting-stage response when the
// client's auth digest does not match.
var authErrorLine = []byte("PJLINK ERRA\r")
