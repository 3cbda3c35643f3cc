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

// Command pjlink-rs232-bridge bootstraps the translation engine: it parses
// CLI flags and a bridge definition file, opens the serial transport
// worker, constructs the translation engine, and registers it with a
// PJLink TCP (and optionally UDP) server.
package main

import (
	"fmt"
	"io"
	"net"
	"os"

	"github.com/alecthomas/kingpin"
	"github.com/charmbracelet/log"

	"github.com/mateusmeyer/pjlink-rs232-bridge/internal/bridgedef"
	"github.com/mateusmeyer/pjlink-rs232-bridge/internal/engine"
	"github.com/mateusmeyer/pjlink-rs232-bridge/internal/pjlinksrv"
	"github.com/mateusmeyer/pjlink-rs232-bridge/internal/transport"
)

var (
	app = kingpin.New("pjlink-rs232-bridge",
		"Bridges a PJLink-capable controller to a projector that only speaks a vendor RS-232 command set")

	listenAddress = app.Flag("listen-address", "address the PJLink TCP server binds to").
			Short('l').Default("0.0.0.0").String()
	port = app.Flag("port", "port the PJLink TCP server binds to").
		Short('p').Default("4352").String()
	verbose = app.Flag("verbose", "increase log verbosity (repeatable)").
		Short('v').Counter()
	noLog = app.Flag("no-log", "disable logging entirely").Bool()
	udp   = app.Flag("udp", "also answer PJLink search probes over UDP").
		Short('u').Bool()
	udpListenAddress = app.Flag("udp-listen-address", "address the UDP search listener binds to").
				Default("0.0.0.0").String()
	projectorName = app.Flag("projector-name", "name reported to PJLink clients").
			Required().String()
	serialNumber = app.Flag("serial-number", "serial number reported to PJLink clients (random UUID if omitted)").
			String()
	password = app.Flag("password", "PJLink Class 1 authentication password (disables auth if omitted)").
			String()
	baudRate = app.Flag("baud-rate", "override the bridge definition's connection.baud_rate").
			Short('b').Uint32()
	dumpCommands = app.Flag("dump-commands", "print the compiled command dictionary and exit").
			Bool()

	serialPort = app.Arg("serial_port", "OS-specific path to the RS-232 device").
			Required().String()
	projectorInfoPath = app.Arg("projector_info_path", "path to the bridge definition TOML document").
				Default("projector_info.toml").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	configureLogging(*noLog, *verbose)

	def, err := bridgedef.Load(*projectorInfoPath)
	if err != nil {
		log.Error("failed to load bridge definition", "path", *projectorInfoPath, "err", err)
		os.Exit(1)
	}

	dict, err := bridgedef.BuildDictionary(def)
	if err != nil {
		log.Error("failed to compile command dictionary", "err", err)
		os.Exit(1)
	}

	if *dumpCommands {
		fmt.Print(dict.String())
		return
	}

	cli := cliOverrides{
		ProjectorName: *projectorName,
		SerialNumber:  *serialNumber,
		Password:      *password,
		SerialPort:    *serialPort,
		BaudRate:      *baudRate,
	}

	opts := buildEngineOptions(def, cli)
	log.Info("projector identity",
		"manufacturer", string(opts.ManufacturerName), "product", string(opts.ProductName),
		"name", string(opts.ProjectorName), "serial", string(opts.SerialNumber))

	worker, err := transport.Open(buildTransportConfig(def, cli))
	if err != nil {
		log.Error("failed to open serial transport", "err", err)
		os.Exit(1)
	}
	defer worker.Close()

	handler := engine.New(opts, dict, worker)
	server := pjlinksrv.NewServer(handler)

	if *udp {
		go func() {
			addr := net.JoinHostPort(*udpListenAddress, *port)
			if err := server.ListenUDP(addr); err != nil {
				log.Error("UDP listener stopped", "err", err)
			}
		}()
	}

	addr := net.JoinHostPort(*listenAddress, *port)
	if err := server.ListenTCP(addr); err != nil {
		log.Error("TCP listener stopped", "err", err)
		os.Exit(1)
	}
}

// configureLogging maps the repeatable -v flag to a charmbracelet/log
// level: 1=Error, 2=Warn, 3=Info, 4 and up=Debug. There is no Trace level
// in charmbracelet/log, so verbosity beyond 4 clamps to Debug rather than
// being rejected.
func configureLogging(disabled bool, verbosity int) {
	if disabled {
		log.SetOutput(io.Discard)
		return
	}

	level := log.WarnLevel
	switch verbosity {
	case 1:
		level = log.ErrorLevel
	case 2:
		level = log.WarnLevel
	case 3:
		level = log.InfoLevel
	default:
		if verbosity >= 4 {
			level = log.DebugLevel
		}
	}
	log.SetLevel(level)
}
