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

package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mateusmeyer/pjlink-rs232-bridge/internal/bridgedef"
	"github.com/mateusmeyer/pjlink-rs232-bridge/internal/pjlinksrv"
	"github.com/mateusmeyer/pjlink-rs232-bridge/internal/transport"
)

// fakeWorker is a scripted exchanger: each call to Exchange pops the next
// recorded response (or error) and records the request that triggered it,
// so tests can assert on wire traffic without a real serial port.
type fakeWorker struct {
	responses []transport.Response
	err       error
	requests  []transport.Request
}

func (f *fakeWorker) Exchange(req transport.Request) (transport.Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return transport.Response{}, f.err
	}
	if len(f.responses) == 0 {
		return transport.Response{}, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func rawFor(key string, param string) pjlinksrv.RawPayload {
	var body [5]byte
	copy(body[:], key)
	return pjlinksrv.RawPayload{CommandBodyWithClass: body, TransmissionParameter: []byte(param)}
}

func keyFromRaw(raw pjlinksrv.RawPayload) bridgedef.CommandKey {
	return bridgedef.CommandKey(raw.CommandBodyWithClass)
}

func TestHandleCommand_StaticQueries(t *testing.T) {
	opts := Options{
		ClassTypeDigit:    '1',
		SerialNumber:      []byte("SERIAL123"),
		SoftwareVersion:   []byte("1.0.0"),
		ProjectorName:     []byte("Room A"),
		ManufacturerName:  []byte("Acme"),
		ProductName:       []byte("Projectron 3000"),
		CurrentResolution: []byte("1024x768"),
	}
	h := newHandler(opts, bridgedef.Dictionary{}, &fakeWorker{})

	cases := []struct {
		key  string
		want string
	}{
		{"CLSS1", "1"},
		{"SNUM2", "SERIAL123"},
		{"SVER2", "1.0.0"},
		{"NAME1", "Room A"},
		{"INF11", "Acme"},
		{"INF21", "Projectron 3000"},
		{"IRES2", "1024x768"},
	}
	for _, c := range cases {
		resp := h.HandleCommand(rawFor(c.key, "?"), 1)
		if resp.Kind != pjlinksrv.ResponseValue || string(resp.Bytes) != c.want {
			t.Errorf("%s: got %+v, want value %q", c.key, resp, c.want)
		}
	}
}

func TestHandleCommand_StaticQueries_NeverTouchTransport(t *testing.T) {
	fw := &fakeWorker{}
	h := newHandler(Options{ClassTypeDigit: '1'}, bridgedef.Dictionary{}, fw)
	h.HandleCommand(rawFor("CLSS1", "?"), 1)
	if len(fw.requests) != 0 {
		t.Errorf("static query issued %d transport requests, want 0", len(fw.requests))
	}
}

func TestHandleCommand_UnknownCommand(t *testing.T) {
	h := newHandler(Options{}, bridgedef.Dictionary{}, &fakeWorker{})
	resp := h.HandleCommand(rawFor("LAMP1", "?"), 1)
	if resp.Kind != pjlinksrv.ResponseUndefined {
		t.Errorf("got %+v, want Undefined (ERR1)", resp)
	}
}

func TestHandleCommand_UnknownParameter(t *testing.T) {
	dict := bridgedef.Dictionary{
		keyFromRaw(rawFor("POWR1", "")): bridgedef.CommandEntry{
			"1": bridgedef.CompiledInput{Send: []byte("PON\r")},
		},
	}
	h := newHandler(Options{}, dict, &fakeWorker{})
	resp := h.HandleCommand(rawFor("POWR1", "9"), 1)
	if resp.Kind != pjlinksrv.ResponseOutOfParameter {
		t.Errorf("got %+v, want OutOfParameter (ERR3)", resp)
	}
}

func TestHandleCommand_HappyPath(t *testing.T) {
	dict := bridgedef.Dictionary{
		keyFromRaw(rawFor("POWR1", "")): bridgedef.CommandEntry{
			"1": bridgedef.CompiledInput{
				Send:    []byte("PON\r"),
				Timeout: 50 * time.Millisecond,
				Outputs: []bridgedef.CompiledOutput{
					{OnReceived: []byte("PON_OK\r"), Token: "OK"},
				},
			},
		},
	}
	fw := &fakeWorker{responses: []transport.Response{{Bytes: []byte("PON_OK\r")}}}
	h := newHandler(Options{}, dict, fw)

	resp := h.HandleCommand(rawFor("POWR1", "1"), 1)
	if resp.Kind != pjlinksrv.ResponseOK {
		t.Errorf("got %+v, want OK", resp)
	}
	if len(fw.requests) != 1 || string(fw.requests[0].Bytes) != "PON\r" {
		t.Errorf("wire traffic = %+v, want one write of PON\\r", fw.requests)
	}
}

func TestHandleCommand_UnmappedReply(t *testing.T) {
	dict := bridgedef.Dictionary{
		keyFromRaw(rawFor("POWR1", "")): bridgedef.CommandEntry{
			"1": bridgedef.CompiledInput{
				Send: []byte("PON\r"),
				Outputs: []bridgedef.CompiledOutput{
					{OnReceived: []byte("PON_OK\r"), Token: "OK"},
				},
			},
		},
	}
	fw := &fakeWorker{responses: []transport.Response{{Bytes: []byte("PON_FAIL\r")}}}
	h := newHandler(Options{}, dict, fw)

	resp := h.HandleCommand(rawFor("POWR1", "1"), 1)
	if resp.Kind != pjlinksrv.ResponseOutOfParameter {
		t.Errorf("got %+v, want OutOfParameter (ERR3)", resp)
	}
}

func TestHandleCommand_SilentProjector(t *testing.T) {
	dict := bridgedef.Dictionary{
		keyFromRaw(rawFor("POWR1", "")): bridgedef.CommandEntry{
			"1": bridgedef.CompiledInput{
				Send: []byte("PON\r"),
				Outputs: []bridgedef.CompiledOutput{
					{OnReceived: []byte("PON_OK\r"), Token: "OK"},
				},
			},
		},
	}
	fw := &fakeWorker{responses: []transport.Response{{Bytes: nil}}}
	h := newHandler(Options{}, dict, fw)

	resp := h.HandleCommand(rawFor("POWR1", "1"), 1)
	if resp.Kind != pjlinksrv.ResponseOutOfParameter {
		t.Errorf("got %+v, want OutOfParameter (ERR3) for empty reply", resp)
	}
}

func TestHandleCommand_TransportFailure(t *testing.T) {
	dict := bridgedef.Dictionary{
		keyFromRaw(rawFor("POWR1", "")): bridgedef.CommandEntry{
			"1": bridgedef.CompiledInput{Send: []byte("PON\r")},
		},
	}
	fw := &fakeWorker{err: errors.New("boom")}
	h := newHandler(Options{}, dict, fw)

	resp := h.HandleCommand(rawFor("POWR1", "1"), 1)
	if resp.Kind != pjlinksrv.ResponseUnavailableTime {
		t.Errorf("got %+v, want UnavailableTime (ERR2)", resp)
	}
}

func TestHandleCommand_SendTimesRepeats(t *testing.T) {
	dict := bridgedef.Dictionary{
		keyFromRaw(rawFor("POWR1", "")): bridgedef.CommandEntry{
			"1": bridgedef.CompiledInput{
				Send:      []byte("PON\r"),
				SendTimes: 3,
				Outputs: []bridgedef.CompiledOutput{
					{OnReceived: []byte("PON_OK\r"), Token: "OK"},
				},
			},
		},
	}
	fw := &fakeWorker{responses: []transport.Response{
		{Bytes: []byte("garbage")},
		{Bytes: []byte("garbage")},
		{Bytes: []byte("PON_OK\r")},
	}}
	h := newHandler(Options{}, dict, fw)

	resp := h.HandleCommand(rawFor("POWR1", "1"), 1)
	if resp.Kind != pjlinksrv.ResponseOK {
		t.Errorf("got %+v, want OK from the final of 3 sends", resp)
	}
	if len(fw.requests) != 3 {
		t.Errorf("issued %d requests, want exactly 3 (send_times)", len(fw.requests))
	}
}

func TestHandleCommand_RuleMapAborts(t *testing.T) {
	dict := bridgedef.Dictionary{
		keyFromRaw(rawFor("LAMP1", "")): bridgedef.CommandEntry{
			"?": bridgedef.CompiledInput{
				Send: []byte("LAMP?\r"),
				Outputs: []bridgedef.CompiledOutput{
					{IsRuleMap: true, Token: "OK"},
				},
			},
		},
	}
	fw := &fakeWorker{responses: []transport.Response{{Bytes: []byte("anything")}}}
	h := newHandler(Options{}, dict, fw)

	resp := h.HandleCommand(rawFor("LAMP1", "?"), 1)
	if resp.Kind != pjlinksrv.ResponseOutOfParameter {
		t.Errorf("got %+v, want OutOfParameter (ERR3) when a rule_map rule is reached", resp)
	}
}

func TestHandleCommand_TokenMapping(t *testing.T) {
	mk := func(token string) bridgedef.CommandEntry {
		return bridgedef.CommandEntry{
			"1": bridgedef.CompiledInput{
				Send:    []byte("X\r"),
				Outputs: []bridgedef.CompiledOutput{{OnReceived: []byte("Y\r"), Token: token}},
			},
		}
	}

	cases := []struct {
		token string
		want  pjlinksrv.ResponseKind
	}{
		{"OK", pjlinksrv.ResponseOK},
		{"ERR1", pjlinksrv.ResponseUndefined},
		{"ERR2", pjlinksrv.ResponseUnavailableTime},
		{"ERR3", pjlinksrv.ResponseOutOfParameter},
		{"ERR4", pjlinksrv.ResponseProjectorFailure},
		{"42", pjlinksrv.ResponseValue},
	}
	for _, c := range cases {
		dict := bridgedef.Dictionary{keyFromRaw(rawFor("POWR1", "")): mk(c.token)}
		fw := &fakeWorker{responses: []transport.Response{{Bytes: []byte("Y\r")}}}
		h := newHandler(Options{}, dict, fw)
		resp := h.HandleCommand(rawFor("POWR1", "1"), 1)
		if resp.Kind != c.want {
			t.Errorf("token %q: got kind %v, want %v", c.token, resp.Kind, c.want)
		}
	}
}

// orderRecordingWorker records a "start:<label>"/"end:<label>" pair around
// each Exchange, sleeping in between to widen the window in which a
// concurrent caller could interleave if the caller weren't serializing
// access on its own.
type orderRecordingWorker struct {
	mu    sync.Mutex
	order []string
}

func (w *orderRecordingWorker) Exchange(req transport.Request) (transport.Response, error) {
	label := string(req.Bytes)

	w.mu.Lock()
	w.order = append(w.order, "start:"+label)
	w.mu.Unlock()

	time.Sleep(time.Millisecond)

	w.mu.Lock()
	w.order = append(w.order, "end:"+label)
	w.mu.Unlock()

	return transport.Response{Bytes: []byte(label + "_OK\r")}, nil
}

// TestHandleCommand_ConcurrentClientsNeverInterleaveWire drives many
// goroutines through a shared Handler at once and asserts the mutex held
// across the whole dispatch (HandleCommand through sendAndReceive) keeps
// the wire order non-interleaved: every "start:N" is immediately followed
// by its own "end:N", never by another client's "start".
func TestHandleCommand_ConcurrentClientsNeverInterleaveWire(t *testing.T) {
	const clients = 8

	dict := make(bridgedef.Dictionary)
	entry := make(bridgedef.CommandEntry, clients)
	for i := 0; i < clients; i++ {
		label := fmt.Sprintf("C%d", i)
		entry[label] = bridgedef.CompiledInput{
			Send: []byte(label),
			Outputs: []bridgedef.CompiledOutput{
				{OnReceived: []byte(label + "_OK\r"), Token: "OK"},
			},
		}
	}
	dict[keyFromRaw(rawFor("POWR1", ""))] = entry

	worker := &orderRecordingWorker{}
	h := newHandler(Options{}, dict, worker)

	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			label := fmt.Sprintf("C%d", i)
			resp := h.HandleCommand(rawFor("POWR1", label), uint64(i))
			if resp.Kind != pjlinksrv.ResponseOK {
				t.Errorf("client %d: got %+v, want OK", i, resp)
			}
		}(i)
	}
	wg.Wait()

	if len(worker.order) != 2*clients {
		t.Fatalf("recorded %d wire events, want %d", len(worker.order), 2*clients)
	}
	for i := 0; i < len(worker.order); i += 2 {
		start := worker.order[i]
		end := worker.order[i+1]
		wantEnd := "end:" + start[len("start:"):]
		if end != wantEnd {
			t.Fatalf("wire order interleaved: %v (position %d wanted %q, got %q)",
				worker.order, i+1, wantEnd, end)
		}
	}
}

func TestPassword(t *testing.T) {
	h := newHandler(Options{Password: "secret"}, bridgedef.Dictionary{}, &fakeWorker{})
	pw, required := h.Password()
	if pw != "secret" || !required {
		t.Errorf("Password() = (%q, %v), want (\"secret\", true)", pw, required)
	}

	h2 := newHandler(Options{}, bridgedef.Dictionary{}, &fakeWorker{})
	_, required2 := h2.Password()
	if required2 {
		t.Error("Password() required = true, want false when no password configured")
	}
}
