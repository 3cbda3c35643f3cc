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

package transport

import "github.com/pkg/errors"

// errUnsupportedParity, errUnsupportedStopBits, and errUnsupportedDataBits
// are fatal configuration errors: the worker refuses to start rather than
// open a port whose framing doesn't match what was configured.
func errUnsupportedParity(p string) error {
	return errors.Errorf("unsupported serial parity: %q", p)
}

func errUnsupportedStopBits(s uint8) error {
	return errors.Errorf("unsupported serial stop bits: %d", s)
}

func errUnsupportedDataBits(d uint8) error {
	return errors.Errorf("unsupported serial data bits: %d", d)
}
