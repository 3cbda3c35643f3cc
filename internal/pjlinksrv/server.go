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
	"bufio"
	"net"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Server accepts PJLink connections and dispatches parsed requests to a
// Handler. One goroutine per accepted TCP connection, same as the original
// bridge's per-client thread model; a single goroutine answers UDP
// discovery probes, if enabled.
type Server struct {
	handler  Handler
	nextConn uint64
}

// NewServer returns a Server bound to handler.
func NewServer(handler Handler) *Server {
	return &Server{handler: handler}
}

// ListenTCP blocks, accepting connections on addr ("host:port") until the
// listener fails. Each connection is served on its own goroutine.
func (s *Server) ListenTCP(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	log.Info("listening for PJLink clients", "addr", addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Error("accept failed", "err", err)
			continue
		}
		connID := atomic.AddUint64(&s.nextConn, 1)
		go s.serveConn(conn, connID)
	}
}

// searchProbe is the datagram PJLink clients broadcast to discover
// projectors on the network.
const searchProbe = "SRCH"

// ListenUDP blocks, answering PJLink search probes on addr with the same
// greeting line a TCP client would receive, until the socket fails. Any
// datagram that isn't a recognized search probe is silently ignored.
func (s *Server) ListenUDP(addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Info("listening for PJLink UDP search", "addr", addr)
	buf := make([]byte, 1500)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			log.Error("udp read failed", "err", err)
			continue
		}
		payload := strings.TrimRight(string(buf[:n]), "\r\n")
		if payload != searchProbe {
			log.Debug("ignoring non-search udp datagram", "remote", remote, "payload", payload)
			continue
		}
		_, required := s.handler.Password()
		seed, err := newAuthSeed()
		if err != nil {
			log.Error("generating search response seed", "err", err)
			continue
		}
		if _, err := conn.WriteToUDP(greeting(required, seed), remote); err != nil {
			log.Error("udp write failed", "err", err)
		}
	}
}

// serveConn runs the per-connection lifecycle: send the greeting
// (optionally requiring an MD5 auth prefix on the first line), then read
// and dispatch PJLink request lines until the client disconnects.
func (s *Server) serveConn(conn net.Conn, connID uint64) {
	defer conn.Close()

	password, required := s.handler.Password()
	seed, err := newAuthSeed()
	if err != nil {
		log.Error("generating authentication seed", "connection_id", connID, "err", err)
		return
	}
	if _, err := conn.Write(greeting(required, seed)); err != nil {
		log.Error("writing greeting", "connection_id", connID, "err", err)
		return
	}

	scanner := bufio.NewScanner(conn)
	scanner.Split(scanLines)

	first := true
	for scanner.Scan() {
		line := scanner.Bytes()

		if first && required {
			stripped, err := verifyAuthPrefix(line, seed, password)
			if err != nil {
				log.Warn("authentication failed", "connection_id", connID)
				conn.Write(authErrorLine)
				return
			}
			line = stripped
		}
		first = false

		raw, err := parseRequest(line)
		if err != nil {
			log.Warn("malformed request line", "connection_id", connID, "err", err)
			continue
		}

		resp := s.handler.HandleCommand(raw, connID)
		if _, err := conn.Write(encodeResponse(raw, resp)); err != nil {
			log.Error("writing response", "connection_id", connID, "err", err)
			return
		}
	}
}

// scanLines splits on the PJLink line terminator, '\r', discarding it
// (unlike bufio.ScanLines, which splits on '\n' and trims '\r' as a
// suffix - PJLink frames use a bare carriage return).
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i, b := range data {
		if b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
