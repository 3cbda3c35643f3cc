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

/*
Package bridgedef parses a bridge definition document (the per-projector
TOML configuration) into an in-memory, validated Definition, and compiles
its command table into a Dictionary keyed by the 5-byte PJLink
command-with-class token.

A Definition is immutable once loaded: nothing in this package mutates a
Definition or Dictionary after Load/Build returns. Byte-sequence fields
(`send`, `on_received`) accept either a TOML string or an array of integers,
matching the abstract schema that allows either raw byte arrays or strings.

Parameter keys under a command's `inputs` table are arbitrary-length byte
strings, not restricted to any fixed token set - this is how a single
declarative file can handle both a PJLink "1" (power on) and a PJLink "?"
(status query) under the same command.
*/
package bridgedef
