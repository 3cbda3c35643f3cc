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

// Package pjlinksrv implements the PJLink line protocol: request parsing,
// the Class 1 MD5 authentication handshake, and the TCP (and optional UDP)
// accept loop that calls into a Handler for every parsed command. Written
// from scratch since no PJLink-aware library exists to depend on, in the
// same idiom as the rest of this module's network code (net.Conn
// deadlines, goroutine-per-connection accept loops, structured logging
// via charmbracelet/log).
package pjlinksrv

// ResponseKind distinguishes a literal value reply from one of PJLink's
// fixed error tokens.
type ResponseKind int

const (
	// ResponseValue carries raw bytes rendered verbatim after "=" (a class
	// digit, a name, a resolution string, or a translated command token).
	ResponseValue ResponseKind = iota
	// ResponseOK is the bare "OK" acknowledgement.
	ResponseOK
	// ResponseUndefined is ERR1: the command body is not recognized.
	ResponseUndefined
	// ResponseUnavailableTime is ERR2: the device could not be reached in
	// time to answer (reply-channel failure).
	ResponseUnavailableTime
	// ResponseOutOfParameter is ERR3: the transmission parameter, or the
	// projector's reply, had no mapping.
	ResponseOutOfParameter
	// ResponseProjectorFailure is ERR4: reserved, unused by this bridge -
	// projector state is externalized and never observed directly.
	ResponseProjectorFailure
)

// Response is what a Handler returns for one parsed command.
type Response struct {
	Kind  ResponseKind
	Bytes []byte
}

// Value wraps raw bytes as a literal reply (a static identity query, or a
// command dictionary's Value/Default response mapping translated to an
// application-level token string).
func Value(b []byte) Response { return Response{Kind: ResponseValue, Bytes: b} }

// ValueString is Value for an ASCII token, e.g. "OK".
func ValueString(s string) Response { return Response{Kind: ResponseValue, Bytes: []byte(s)} }

// OK is the bare acknowledgement response.
func OK() Response { return Response{Kind: ResponseOK} }

// Undefined is ERR1.
func Undefined() Response { return Response{Kind: ResponseUndefined} }

// UnavailableTime is ERR2.
func UnavailableTime() Response { return Response{Kind: ResponseUnavailableTime} }

// OutOfParameter is ERR3.
func OutOfParameter() Response { return Response{Kind: ResponseOutOfParameter} }

// ProjectorFailure is ERR4.
func ProjectorFailure() Response { return Response{Kind: ResponseProjectorFailure} }

// token renders the PJLink wire token that follows "=" in a response line.
func (r Response) token() string {
	switch r.Kind {
	case ResponseOK:
		return "OK"
	case ResponseUndefined:
		return "ERR1"
	case ResponseUnavailableTime:
		return "ERR2"
	case ResponseOutOfParameter:
		return "ERR3"
	case ResponseProjectorFailure:
		return "ERR4"
	default:
		return string(r.Bytes)
	}
}

// RawPayload is the parsed PJLink request line: the 5-byte command body
// with its class digit (e.g. "POWR1"), and the free-form transmission
// parameter bytes that followed the space.
type RawPayload struct {
	CommandBodyWithClass [5]byte
	TransmissionParameter []byte
}

// Handler is the contract the translation engine implements. ConnectionID
// is a small per-connection counter useful for correlating log lines
// across concurrent clients; it carries no protocol meaning.
type Handler interface {
	HandleCommand(raw RawPayload, connectionID uint64) Response

	// Password returns the shared secret clients must hash into the MD5
	// auth challenge, and whether authentication is required at all.
	Password() (password string, required bool)
}
