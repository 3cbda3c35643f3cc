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
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Bytes is an ordered sequence of bytes decoded from either a TOML string
// or an array of integers. This is how a single declarative file
// represents a raw outgoing command like "PON\r" as a string while still
// allowing binary command sets to express themselves as
// [0x02, 0x50, 0x4F, 0x4E, 0x03].
type Bytes []byte

// UnmarshalTOML implements toml.Unmarshaler.
func (b *Bytes) UnmarshalTOML(data interface{}) error {
	v, err := bytesFromAny(data)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func bytesFromAny(data interface{}) (Bytes, error) {
	switch v := data.(type) {
	case string:
		return Bytes(v), nil
	case []interface{}:
		buf := make(Bytes, len(v))
		for i, el := range v {
			n, ok := toInt64(el)
			if !ok {
				return nil, errors.Errorf("byte sequence element %d is neither a string nor an integer: %T", i, el)
			}
			if n < 0 || n > 255 {
				return nil, errors.Errorf("byte sequence element %d out of byte range: %d", i, n)
			}
			buf[i] = byte(n)
		}
		return buf, nil
	default:
		return nil, errors.Errorf("unsupported byte sequence encoding: %T", data)
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

// General is the bridge's static identity, always emitted as bytes when
// queried by a PJLink client.
type General struct {
	ManufacturerName string `toml:"manufacturer_name"`
	ProductName      string `toml:"product_name"`
	SoftwareVersion  string `toml:"software_version"`
	ClassType        uint8  `toml:"class_type"`
}

// Connection carries the serial-line parameters the Serial Transport
// Worker uses to open the port. Zero values for the optional fields are
// resolved to their documented defaults by Definition.normalize.
type Connection struct {
	BaudRate             uint32 `toml:"baud_rate"`
	DataBits             uint8  `toml:"data_bits"`
	Parity               string `toml:"parity"`
	StopBits             uint8  `toml:"stop_bits"`
	HardwareFlowControl  bool   `toml:"hardware_flow_control"`
	SoftwareFlowControl  bool   `toml:"software_flow_control"`
}

// Resolution carries the optional current/recommended screen resolution
// advertisements. An absent pair renders as an empty response.
type Resolution struct {
	Current     *[2]uint32 `toml:"current"`
	Recommended *[2]uint32 `toml:"recommended"`
}

// Behavior carries process-wide defaults. SendOnStart is parsed but not
// executed by any component in this revision.
type Behavior struct {
	SendOnStart     Bytes   `toml:"send_on_start"` // TODO: wire to a bootstrap hook once one exists
	WaitForResponse *uint32 `toml:"wait_for_response"`
}

// OutputRule is one entry of a command input's ordered output list. Two
// variants exist in the abstract schema: an exact-match "value" rule,
// matched byte-for-byte against a projector reply, and a "rule_map" rule
// (LSB/MSB byte decoding) that this revision declares but does not
// implement - see bridgedef.ErrRuleMapUnsupported.
//
// ResponseType ("value" vs "default") is decorative in this revision: both
// map identically to ResponseValue. The distinction is preserved in the
// data model so a future revision can treat "default" as a fallback when
// no "value" rule matched.
type OutputRule struct {
	OnReceivedType string      `toml:"on_received_type"`
	OnReceived     interface{} `toml:"on_received"`
	ResponseType   string      `toml:"response_type"`
	ResponseValue  string      `toml:"response_value"`
}

// IsRuleMap reports whether this rule is the unimplemented rule_map variant.
func (r OutputRule) IsRuleMap() bool {
	return r.OnReceivedType == "rule_map"
}

// Bytes decodes the on_received field of a "value" rule. Callers must not
// call this on a rule_map rule; check IsRuleMap first.
func (r OutputRule) Bytes() (Bytes, error) {
	return bytesFromAny(r.OnReceived)
}

// InputDefinition is the outgoing byte sequence and response mapping for
// one transmission parameter of one command.
type InputDefinition struct {
	Send            Bytes        `toml:"send"`
	SendTimes       *uint32      `toml:"send_times"`
	SendTimeout     *uint32      `toml:"send_timeout"` // reserved, not used by the dispatcher
	WaitForResponse *uint32      `toml:"wait_for_response"`
	Outputs         []OutputRule `toml:"outputs"`
}

// CommandSpec is the per-command-with-class entry: a dictionary of
// transmission parameters, plus an optional per-command timeout override.
type CommandSpec struct {
	Inputs          map[string]InputDefinition `toml:"inputs"`
	WaitForResponse *uint32                    `toml:"wait_for_response"`
}

// Definition is the fully parsed, immutable bridge definition document.
type Definition struct {
	General    General                `toml:"general"`
	Connection Connection             `toml:"connection"`
	Resolution *Resolution            `toml:"resolution"`
	Behavior   *Behavior              `toml:"behavior"`
	Commands   map[string]CommandSpec `toml:"commands"`
}

// Load parses the bridge definition document at path and returns a
// validated Definition, or a human-readable error.
func Load(path string) (*Definition, error) {
	var def Definition
	if _, err := toml.DecodeFile(path, &def); err != nil {
		return nil, errors.Wrapf(err, "parsing bridge definition %q", path)
	}
	if err := def.normalize(); err != nil {
		return nil, errors.Wrapf(err, "bridge definition %q", path)
	}
	return &def, nil
}

// normalize applies documented defaults and validates enumerated fields.
// Command key length is validated separately by BuildDictionary, since it
// is a Dictionary-construction concern rather than a Definition-shape one.
func (d *Definition) normalize() error {
	if d.General.ClassType != 1 && d.General.ClassType != 2 {
		return errors.Wrapf(ErrInvalidClassType, "general.class_type = %d", d.General.ClassType)
	}

	if d.Connection.BaudRate == 0 {
		return errors.New("connection.baud_rate is required")
	}

	if d.Connection.DataBits == 0 {
		d.Connection.DataBits = 8
	}
	switch d.Connection.DataBits {
	case 5, 6, 7, 8:
	default:
		return errors.Wrapf(ErrInvalidDataBits, "connection.data_bits = %d", d.Connection.DataBits)
	}

	if d.Connection.Parity == "" {
		d.Connection.Parity = "N"
	}
	switch d.Connection.Parity {
	case "N", "E", "O":
	default:
		return errors.Wrapf(ErrInvalidParity, "connection.parity = %q", d.Connection.Parity)
	}

	if d.Connection.StopBits == 0 {
		d.Connection.StopBits = 1
	}
	switch d.Connection.StopBits {
	case 1, 2:
	default:
		return errors.Wrapf(ErrInvalidStopBits, "connection.stop_bits = %d", d.Connection.StopBits)
	}

	// Invariant: at most one of hardware/software flow control is
	// requested; if both are set, hardware wins.
	if d.Connection.HardwareFlowControl && d.Connection.SoftwareFlowControl {
		d.Connection.SoftwareFlowControl = false
	}

	return nil
}

// ClassTypeDigit returns the ASCII digit PJLink clients expect from a
// class information query.
func (d *Definition) ClassTypeDigit() byte {
	return '0' + d.General.ClassType
}

// CurrentResolutionBytes renders the configured current resolution as
// "{w}x{h}" ASCII bytes, or nil if unset.
func (d *Definition) CurrentResolutionBytes() []byte {
	if d.Resolution == nil || d.Resolution.Current == nil {
		return nil
	}
	wh := d.Resolution.Current
	return []byte(fmt.Sprintf("%dx%d", wh[0], wh[1]))
}

// RecommendedResolutionBytes renders the configured recommended resolution
// as "{w}x{h}" ASCII bytes, or nil if unset.
func (d *Definition) RecommendedResolutionBytes() []byte {
	if d.Resolution == nil || d.Resolution.Recommended == nil {
		return nil
	}
	wh := d.Resolution.Recommended
	return []byte(fmt.Sprintf("%dx%d", wh[0], wh[1]))
}

// defaultWaitForResponseMS is the behavior-wide default applied only when
// the [behavior] table is wholly absent from the document. When
// [behavior] is present but wait_for_response is omitted within it,
// the effective default is 0 and falls through the rest of the timeout
// precedence chain in BuildDictionary.
const defaultWaitForResponseMS = 50

func (d *Definition) behaviorDefaultWaitMS() uint32 {
	if d.Behavior == nil {
		return defaultWaitForResponseMS
	}
	if d.Behavior.WaitForResponse != nil {
		return *d.Behavior.WaitForResponse
	}
	return 0
}
