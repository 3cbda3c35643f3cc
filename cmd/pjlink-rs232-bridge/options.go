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

package main

import (
	"strings"

	"github.com/google/uuid"

	"github.com/mateusmeyer/pjlink-rs232-bridge/internal/bridgedef"
	"github.com/mateusmeyer/pjlink-rs232-bridge/internal/engine"
	"github.com/mateusmeyer/pjlink-rs232-bridge/internal/transport"
)

// cliOverrides is every CLI-provided value that overlays the parsed Bridge
// Definition: file values first, then CLI overrides on top.
type cliOverrides struct {
	ProjectorName string
	SerialNumber  string
	Password      string
	SerialPort    string
	BaudRate      uint32
}

// randomSerialNumber mints a 32-character lowercase hex serial number when
// none was provided on the command line, using a v4 UUID's "simple"
// (no-hyphen) rendering.
func randomSerialNumber() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// buildEngineOptions overlays cli on top of def to produce the static
// identity the engine answers queries with.
func buildEngineOptions(def *bridgedef.Definition, cli cliOverrides) engine.Options {
	serialNumber := cli.SerialNumber
	if serialNumber == "" {
		serialNumber = randomSerialNumber()
	}

	return engine.Options{
		ClassTypeDigit:        def.ClassTypeDigit(),
		SerialNumber:          []byte(serialNumber),
		SoftwareVersion:       []byte(def.General.SoftwareVersion),
		ProjectorName:         []byte(cli.ProjectorName),
		ManufacturerName:      []byte(def.General.ManufacturerName),
		ProductName:           []byte(def.General.ProductName),
		CurrentResolution:     def.CurrentResolutionBytes(),
		RecommendedResolution: def.RecommendedResolutionBytes(),
		Password:              cli.Password,
	}
}

// buildTransportConfig overlays cli's serial port and optional baud-rate
// override on top of def's connection parameters.
func buildTransportConfig(def *bridgedef.Definition, cli cliOverrides) transport.Config {
	baudRate := def.Connection.BaudRate
	if cli.BaudRate != 0 {
		baudRate = cli.BaudRate
	}

	return transport.Config{
		SerialPort:          cli.SerialPort,
		BaudRate:            baudRate,
		DataBits:            def.Connection.DataBits,
		Parity:              def.Connection.Parity,
		StopBits:            def.Connection.StopBits,
		HardwareFlowControl: def.Connection.HardwareFlowControl,
		SoftwareFlowControl: def.Connection.SoftwareFlowControl,
	}
}
