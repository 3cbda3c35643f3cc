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

package bridgedef

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
)

// CommandKey is the 5-byte PJLink command-with-class dictionary key: a
// 4-character PJLink command body plus its class digit, e.g. "POWR1".
type CommandKey [5]byte

// String implements fmt.Stringer.
func (k CommandKey) String() string {
	return string(k[:])
}

// CompiledOutput is an Output Rule with its byte sequence resolved at
// load time, so dispatch is a plain byte comparison. RuleMap outputs
// carry no resolved bytes; IsRuleMap must be checked before use.
type CompiledOutput struct {
	IsRuleMap  bool
	OnReceived []byte
	Token      string
}

// CompiledInput is an Input Definition with its effective timeout and
// send-times resolved at load time.
type CompiledInput struct {
	Send      []byte
	SendTimes int
	Timeout   time.Duration
	Outputs   []CompiledOutput
}

// CommandEntry maps a transmission parameter to its compiled input.
type CommandEntry map[string]CompiledInput

// Dictionary is the indexed lookup structure the Translation Engine
// consults for every non-static command: command-with-class -> parameter
// -> compiled input.
type Dictionary map[CommandKey]CommandEntry

// BuildDictionary compiles a Definition's command table into a Dictionary,
// validating command key lengths and resolving the timeout precedence
// chain (input > command > behavior default > 0).
func BuildDictionary(def *Definition) (Dictionary, error) {
	behaviorDefaultMS := def.behaviorDefaultWaitMS()

	dict := make(Dictionary, len(def.Commands))
	for key, spec := range def.Commands {
		keyBytes := []byte(key)
		if len(keyBytes) != 5 {
			return nil, errors.Wrapf(ErrCommandKeyLength, "commands[%q] has %d bytes", key, len(keyBytes))
		}
		var k CommandKey
		copy(k[:], keyBytes)

		entry := make(CommandEntry, len(spec.Inputs))
		for param, input := range spec.Inputs {
			compiled, err := compileInput(spec, input, behaviorDefaultMS)
			if err != nil {
				return nil, errors.Wrapf(err, "commands[%q].inputs[%q]", key, param)
			}
			entry[param] = compiled
		}
		dict[k] = entry
	}
	return dict, nil
}

// compileInput resolves one Input Definition against its enclosing
// Command Spec and the behavior-wide default, applying the timeout
// precedence chain: input-level override, then command-level override,
// then the behavior default, then 0.
func compileInput(spec CommandSpec, input InputDefinition, behaviorDefaultMS uint32) (CompiledInput, error) {
	waitMS := behaviorDefaultMS
	if spec.WaitForResponse != nil {
		waitMS = *spec.WaitForResponse
	}
	if input.WaitForResponse != nil {
		waitMS = *input.WaitForResponse
	}

	outputs := make([]CompiledOutput, 0, len(input.Outputs))
	for _, rule := range input.Outputs {
		if rule.IsRuleMap() {
			outputs = append(outputs, CompiledOutput{IsRuleMap: true, Token: rule.ResponseValue})
			continue
		}
		raw, err := rule.Bytes()
		if err != nil {
			return CompiledInput{}, errors.Wrap(err, "outputs")
		}
		outputs = append(outputs, CompiledOutput{OnReceived: raw, Token: rule.ResponseValue})
	}

	sendTimes := 1
	if input.SendTimes != nil && *input.SendTimes > 0 {
		sendTimes = int(*input.SendTimes)
	}

	return CompiledInput{
		Send:      []byte(input.Send),
		SendTimes: sendTimes,
		Timeout:   time.Duration(waitMS) * time.Millisecond,
		Outputs:   outputs,
	}, nil
}

// Lookup resolves a command-with-class and transmission parameter to a
// compiled input. The bool result is false both on a dictionary miss
// (command body unknown) and on a parameter miss within a known command;
// it does not tell the two apart (use Contains for that).
func (d Dictionary) Lookup(key CommandKey, parameter []byte) (CompiledInput, bool) {
	entry, ok := d[key]
	if !ok {
		return CompiledInput{}, false
	}
	input, ok := entry[string(parameter)]
	return input, ok
}

// Contains reports whether the dictionary has an entry for the given
// command-with-class key, regardless of parameter.
func (d Dictionary) Contains(key CommandKey) bool {
	_, ok := d[key]
	return ok
}

// String renders the dictionary as a table (command, parameter, send
// bytes, timeout, output count), used by the bootstrap --dump-commands
// diagnostic flag.
func (d Dictionary) String() string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)

	buf := bytes.NewBufferString("")
	tw := tablewriter.NewWriter(buf)
	tw.SetAutoWrapText(false)
	tw.SetHeader([]string{"Command", "Parameter", "Send", "Timeout", "Outputs"})

	for _, ks := range keys {
		var k CommandKey
		copy(k[:], ks)
		entry := d[k]

		params := make([]string, 0, len(entry))
		for p := range entry {
			params = append(params, p)
		}
		sort.Strings(params)

		for _, p := range params {
			in := entry[p]
			tw.Append([]string{
				ks,
				sanitizeParam(p),
				fmt.Sprintf("%02x", in.Send),
				in.Timeout.String(),
				fmt.Sprintf("%d", len(in.Outputs)),
			})
		}
	}
	tw.Render()
	return buf.String()
}

func sanitizeParam(p string) string {
	if p == "" {
		return "-"
	}
	return p
}
