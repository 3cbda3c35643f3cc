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

// Package transport owns the serial port. A single goroutine (the Worker)
// holds the only handle to the device; every exchange is a blocking
// request/reply round trip over a pair of rendezvous channels, so the wire
// only ever sees one exchange at a time regardless of how many PJLink
// clients are being served concurrently.
package transport

import (
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// ErrWorkerClosed is returned by Exchange once Close has been called. It
// surfaces to the engine as the PJLink "unavailable time" response - the
// spec's "internal channel failure" error kind.
var ErrWorkerClosed = errors.New("transport: worker is closed")

// MinTimeout is the floor applied to every request's wait window,
// regardless of what a command or behavior default configures.
const MinTimeout = 50 * time.Millisecond

// Config carries the serial line parameters needed to open the port. Field
// values are assumed already validated (bridgedef.Definition.normalize).
type Config struct {
	SerialPort          string
	BaudRate            uint32
	DataBits            uint8
	Parity              string
	StopBits            uint8
	HardwareFlowControl bool
	SoftwareFlowControl bool
}

// Request is one outgoing exchange: the bytes to write and the window to
// wait before draining whatever the projector sent back.
type Request struct {
	Bytes   []byte
	Timeout time.Duration
}

// Response is the Worker's reply to exactly one Request. Elapsed is the
// real wall-clock duration of the exchange; nothing downstream currently
// consumes it, but it is populated for observability.
type Response struct {
	Bytes   []byte
	Elapsed time.Duration
}

// Worker is the single-owner actor over a serial.Port. Requests and
// Responses are exchanged over zero-capacity channels: a caller can only
// enqueue a request once the worker is ready to receive it, which is what
// keeps the wire ordered across concurrently-calling goroutines (the
// engine's handler lock provides the other half of that guarantee).
type Worker struct {
	requests  chan Request
	responses chan Response
	port      *serial.Port
	closed    int32
}

// toSerialConfig translates the validated line parameters into the fields
// tarm/serial understands. Unsupported enum values are the caller's
// responsibility to have rejected already (bridgedef.Definition.normalize);
// Open treats anything that reaches it as fatal.
func toSerialConfig(cfg Config) (*serial.Config, error) {
	var parity serial.Parity
	switch cfg.Parity {
	case "N":
		parity = serial.ParityNone
	case "E":
		parity = serial.ParityEven
	case "O":
		parity = serial.ParityOdd
	default:
		return nil, errUnsupportedParity(cfg.Parity)
	}

	var stopBits serial.StopBits
	switch cfg.StopBits {
	case 1:
		stopBits = serial.Stop1
	case 2:
		stopBits = serial.Stop2
	default:
		return nil, errUnsupportedStopBits(cfg.StopBits)
	}

	switch cfg.DataBits {
	case 5, 6, 7, 8:
	default:
		return nil, errUnsupportedDataBits(cfg.DataBits)
	}

	return &serial.Config{
		Name: cfg.SerialPort,
		Baud: int(cfg.BaudRate),
		Size: byte(cfg.DataBits),
		// tarm/serial fixes its read deadline at Open time rather than
		// exposing a per-call setter; drainTimeout below is the short,
		// constant deadline every post-sleep drain Read uses, regardless
		// of the caller's requested wait window.
		ReadTimeout: drainTimeout,
		Parity:      parity,
		StopBits:    stopBits,
	}, nil
}

// drainTimeout is the fixed deadline given to tarm/serial at Open time.
// The worker's variable per-request wait window is implemented by sleeping
// before the drain Read, not by changing this value - tarm/serial has no
// equivalent of the original projector library's set_timeout-per-message.
const drainTimeout = 20 * time.Millisecond

// Open opens the serial port described by cfg and starts the worker
// goroutine. It does not validate flow control beyond logging it - neither
// tarm/serial nor the projectors this bridge targets distinguish hardware
// from software flow control at the Config level, so the choice is recorded
// for diagnostics only.
func Open(cfg Config) (*Worker, error) {
	sc, err := toSerialConfig(cfg)
	if err != nil {
		return nil, err
	}

	port, err := serial.OpenPort(sc)
	if err != nil {
		return nil, err
	}

	flowControl := "none"
	if cfg.HardwareFlowControl {
		flowControl = "hardware"
	} else if cfg.SoftwareFlowControl {
		flowControl = "software"
	}
	log.Info("serial port opened", "port", cfg.SerialPort, "baud", cfg.BaudRate,
		"data_bits", cfg.DataBits, "parity", cfg.Parity, "stop_bits", cfg.StopBits,
		"flow_control", flowControl)

	w := &Worker{
		requests:  make(chan Request),
		responses: make(chan Response),
		port:      port,
	}
	go w.run()
	return w, nil
}

// Exchange enqueues req and blocks for the corresponding Response. It is
// safe to call from multiple goroutines; the rendezvous channel serializes
// them onto the wire in the order they arrive, same as the original
// handler-lock-plus-zero-capacity-channel pairing this mirrors. Exchange
// returns ErrWorkerClosed, never panics, if called after Close.
func (w *Worker) Exchange(req Request) (resp Response, err error) {
	if atomic.LoadInt32(&w.closed) == 1 {
		return Response{}, ErrWorkerClosed
	}
	defer func() {
		if r := recover(); r != nil {
			err = ErrWorkerClosed
		}
	}()
	w.requests <- req
	resp = <-w.responses
	return resp, nil
}

// Close stops accepting requests and releases the serial port. Exchange
// calls racing with or following Close return ErrWorkerClosed rather than
// blocking forever or panicking on a send to a closed channel.
func (w *Worker) Close() error {
	atomic.StoreInt32(&w.closed, 1)
	close(w.requests)
	return w.port.Close()
}

// run is the worker's steady-state loop: receive a request, clamp its
// timeout up to MinTimeout, write its bytes, sleep the clamped window so
// the projector has time to answer, then drain whatever is sitting in the
// OS read buffer (the read deadline itself stays the fixed drainTimeout). Write and read errors are logged but never propagated -
// every accepted request produces exactly one reply, even an empty one, so
// the caller on the other end of Exchange never blocks forever.
func (w *Worker) run() {
	for req := range w.requests {
		start := time.Now()

		timeout := req.Timeout
		if timeout < MinTimeout {
			timeout = MinTimeout
		}

		if _, err := w.port.Write(req.Bytes); err != nil {
			log.Error("error writing to serial connection", "err", err)
		}

		time.Sleep(timeout)

		reply := w.drain()

		w.responses <- Response{Bytes: reply, Elapsed: time.Since(start)}
	}
}

// drain reads whatever bytes arrived during the wait window. tarm/serial
// does not expose a "bytes available" query, so this issues a single
// bounded Read against the port's fixed drainTimeout deadline and returns
// exactly what came back, which may be empty.
func (w *Worker) drain() []byte {
	buf := make([]byte, 4096)
	n, err := w.port.Read(buf)
	if err != nil {
		log.Error("error reading from serial connection", "err", err)
		return nil
	}
	return buf[:n]
}
