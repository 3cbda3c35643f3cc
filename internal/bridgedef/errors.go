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

import "github.com/pkg/errors"

var (
	// ErrCommandKeyLength is returned when a commands.* table key is not
	// exactly 5 ASCII bytes (4-character PJLink command + class digit).
	ErrCommandKeyLength = errors.New("command key must be exactly 5 bytes")

	// ErrInvalidClassType is returned when general.class_type is not 1 or 2.
	ErrInvalidClassType = errors.New("class_type must be 1 or 2")

	// ErrInvalidDataBits is returned when connection.data_bits is set but
	// outside {5,6,7,8}.
	ErrInvalidDataBits = errors.New("data_bits must be one of 5, 6, 7, 8")

	// ErrInvalidParity is returned when connection.parity is set but not
	// one of 'N', 'E', 'O'.
	ErrInvalidParity = errors.New("parity must be one of 'N', 'E', 'O'")

	// ErrInvalidStopBits is returned when connection.stop_bits is set but
	// outside {1,2}.
	ErrInvalidStopBits = errors.New("stop_bits must be one of 1, 2")

	// ErrRuleMapUnsupported is the error the engine logs when response
	// resolution reaches a rule_map output rule (on_received_type =
	// "rule_map") before any exact-match rule has succeeded. The schema
	// allows declaring one (see OutputRule), and BuildDictionary compiles
	// it without error, but this revision does not implement LSB/MSB
	// rule-map decoding - the failure is deferred to dispatch time so it
	// fails loudly with a logged error and a protocol-miss token, rather
	// than being silently skipped.
	ErrRuleMapUnsupported = errors.New("rule_map output rules are not implemented")
)
