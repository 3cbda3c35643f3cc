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

// Package engine implements the translation engine: the pjlinksrv.Handler
// that answers the eight static PJLink identity queries directly and
// dispatches everything else through a bridgedef.Dictionary and a
// transport.Worker, mapping the projector's reply back to a PJLink
// response token.
package engine

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/mateusmeyer/pjlink-rs232-bridge/internal/bridgedef"
	"github.com/mateusmeyer/pjlink-rs232-bridge/internal/pjlinksrv"
	"github.com/mateusmeyer/pjlink-rs232-bridge/internal/transport"
)

// Static query dictionary keys. The trailing digit is the PJLink class the
// query itself belongs to, not the projector's configured class_type -
// CLSS, NAME, INF1, and INF2 are Class 1 commands; SNUM, SVER, IRES, and
// RRES are Class 2 commands, regardless of what the bridge advertises.
var (
	classQueryKey          = bridgedef.CommandKey{'C', 'L', 'S', 'S', '1'}
	serialNumberKey        = bridgedef.CommandKey{'S', 'N', 'U', 'M', '2'}
	softwareVersionKey     = bridgedef.CommandKey{'S', 'V', 'E', 'R', '2'}
	nameKey                = bridgedef.CommandKey{'N', 'A', 'M', 'E', '1'}
	infoManufacturerKey    = bridgedef.CommandKey{'I', 'N', 'F', '1', '1'}
	infoProductNameKey     = bridgedef.CommandKey{'I', 'N', 'F', '2', '1'}
	inputResolutionKey     = bridgedef.CommandKey{'I', 'R', 'E', 'S', '2'}
	recommendResolutionKey = bridgedef.CommandKey{'R', 'R', 'E', 'S', '2'}
)

// Options carries the identity fields the handler answers static queries
// with - the overlay of Bridge Definition fields and CLI-provided values
// bootstrap assembles.
type Options struct {
	ClassTypeDigit        byte
	SerialNumber          []byte
	SoftwareVersion       []byte
	ProjectorName         []byte
	ManufacturerName      []byte
	ProductName           []byte
	CurrentResolution     []byte
	RecommendedResolution []byte
	Password              string
}

// exchanger is the subset of *transport.Worker the handler depends on,
// narrowed to an interface so tests can drive the dispatch logic without a
// real serial port.
type exchanger interface {
	Exchange(transport.Request) (transport.Response, error)
}

// Handler is the translation engine. A single mutex serializes every
// client-facing invocation: the handler state itself (Options, the
// dictionary, the worker) is effectively immutable, and the lock exists to
// keep one client's whole dispatch, including every send_times repeat,
// from interleaving with another client's exchanges on the wire.
type Handler struct {
	mu     sync.Mutex
	opts   Options
	dict   bridgedef.Dictionary
	worker exchanger
}

// New returns a Handler serving opts's static identity over dict's dynamic
// dictionary, issuing serial exchanges through worker.
func New(opts Options, dict bridgedef.Dictionary, worker *transport.Worker) *Handler {
	return newHandler(opts, dict, worker)
}

func newHandler(opts Options, dict bridgedef.Dictionary, worker exchanger) *Handler {
	return &Handler{opts: opts, dict: dict, worker: worker}
}

// Password implements pjlinksrv.Handler.
func (h *Handler) Password() (string, bool) {
	return h.opts.Password, h.opts.Password != ""
}

// HandleCommand implements pjlinksrv.Handler.
func (h *Handler) HandleCommand(raw pjlinksrv.RawPayload, connectionID uint64) pjlinksrv.Response {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch raw.CommandBodyWithClass {
	case classQueryKey:
		log.Info("class information query", "connection_id", connectionID)
		return pjlinksrv.Value([]byte{h.opts.ClassTypeDigit})
	case serialNumberKey:
		log.Info("serial number query", "connection_id", connectionID)
		return pjlinksrv.Value(h.opts.SerialNumber)
	case softwareVersionKey:
		log.Info("software version query", "connection_id", connectionID)
		return pjlinksrv.Value(h.opts.SoftwareVersion)
	case nameKey:
		log.Info("name query", "connection_id", connectionID)
		return pjlinksrv.Value(h.opts.ProjectorName)
	case infoManufacturerKey:
		log.Info("info manufacturer query", "connection_id", connectionID)
		return pjlinksrv.Value(h.opts.ManufacturerName)
	case infoProductNameKey:
		log.Info("info product name query", "connection_id", connectionID)
		return pjlinksrv.Value(h.opts.ProductName)
	case inputResolutionKey:
		log.Info("input resolution query", "connection_id", connectionID)
		return pjlinksrv.Value(h.opts.CurrentResolution)
	case recommendResolutionKey:
		log.Info("recommend resolution query", "connection_id", connectionID)
		return pjlinksrv.Value(h.opts.RecommendedResolution)
	default:
		return h.handleDynamic(raw, connectionID)
	}
}

// handleDynamic resolves a non-static command through the dictionary,
// drives the transport worker, and maps the reply to a response token.
func (h *Handler) handleDynamic(raw pjlinksrv.RawPayload, connectionID uint64) pjlinksrv.Response {
	entry, ok := h.dict[raw.CommandBodyWithClass]
	if !ok {
		log.Debug("no dictionary mapping for command",
			"connection_id", connectionID, "command", bridgedef.CommandKey(raw.CommandBodyWithClass).String())
		return pjlinksrv.Undefined()
	}

	input, ok := entry[string(raw.TransmissionParameter)]
	if !ok {
		log.Debug("no dictionary mapping for parameter",
			"connection_id", connectionID, "command", bridgedef.CommandKey(raw.CommandBodyWithClass).String(),
			"parameter", raw.TransmissionParameter)
		return pjlinksrv.OutOfParameter()
	}

	resp, err := h.sendAndReceive(input, connectionID)
	if err != nil {
		log.Error("transport exchange failed", "connection_id", connectionID, "err", err)
		return pjlinksrv.UnavailableTime()
	}

	return h.resolveResponse(raw, resp.Bytes, input, connectionID)
}

// sendAndReceive issues input.SendTimes exchanges back to back (at least
// one), discarding every reply but the last.
func (h *Handler) sendAndReceive(input bridgedef.CompiledInput, connectionID uint64) (transport.Response, error) {
	var resp transport.Response
	var err error
	sendTimes := input.SendTimes
	if sendTimes < 1 {
		sendTimes = 1
	}
	for i := 0; i < sendTimes; i++ {
		log.Debug("sending to projector", "connection_id", connectionID, "bytes", input.Send)
		resp, err = h.worker.Exchange(transport.Request{Bytes: input.Send, Timeout: input.Timeout})
		if err != nil {
			return transport.Response{}, err
		}
	}
	log.Debug("received from projector", "connection_id", connectionID,
		"bytes", resp.Bytes, "elapsed", resp.Elapsed)
	return resp, nil
}

// resolveResponse iterates input's Output Rules in declared order. The
// first exact-match rule whose bytes equal the projector's reply wins; a
// rule_map rule reached before any match aborts the exchange loudly, since
// rule_map decoding isn't implemented. No match at all is OutOfParameter -
// the cleanest PJLink-visible signal that the bridge tried and got nothing
// useful.
func (h *Handler) resolveResponse(raw pjlinksrv.RawPayload, reply []byte, input bridgedef.CompiledInput, connectionID uint64) pjlinksrv.Response {
	for _, rule := range input.Outputs {
		if rule.IsRuleMap {
			log.Error(bridgedef.ErrRuleMapUnsupported.Error(),
				"connection_id", connectionID, "command", bridgedef.CommandKey(raw.CommandBodyWithClass).String())
			return pjlinksrv.OutOfParameter()
		}
		if string(reply) == string(rule.OnReceived) {
			log.Debug("translated response", "connection_id", connectionID, "token", rule.Token)
			return tokenResponse(rule.Token)
		}
	}

	log.Debug("projector reply did not match any output rule",
		"connection_id", connectionID, "command", bridgedef.CommandKey(raw.CommandBodyWithClass).String(), "reply", reply)
	return pjlinksrv.OutOfParameter()
}

// tokenResponse maps a configured response_value string to a
// pjlinksrv.Response. "OK" and the bare ERR1-ERR4 tokens map to their
// dedicated PJLink response kinds; anything else (e.g. a literal value
// like a lamp-hours count) passes through as a raw value.
func tokenResponse(token string) pjlinksrv.Response {
	switch token {
	case "OK":
		return pjlinksrv.OK()
	case "ERR1":
		return pjlinksrv.Undefined()
	case "ERR2":
		return pjlinksrv.UnavailableTime()
	case "ERR3":
		return pjlinksrv.OutOfParameter()
	case "ERR4":
		return pjlinksrv.ProjectorFailure()
	default:
		return pjlinksrv.ValueString(token)
	}
}
