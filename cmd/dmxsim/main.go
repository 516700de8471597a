// Command dmxsim is a development-time stand-in for the real-time core: it
// opens a pty, prints the slave path so the gateway (or dmxctl) can be
// pointed at it, and answers the wire protocol using the same software
// Engine and Dispatcher the test suite uses. It fills the role spec.md's
// Non-goals call "the mock subprocess used for local development" without
// requiring real hardware.
package main

import (
	"flag"
	"fmt"
	"os"

	"dmx-gateway/internal/logger"
	"dmx-gateway/internal/protocol"
	"dmx-gateway/internal/rtcore"
)

func main() {
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	log, err := logger.New(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dmxsim:", err)
		os.Exit(1)
	}

	master, slavePath, err := openPTY()
	if err != nil {
		log.WithError(err).Fatal("failed to open pty")
	}
	defer master.Close()

	log.Module("dmxsim").With(logger.Fields{"device": slavePath}).Info("simulator ready, point dmxctl/-d at this path")

	engine := rtcore.NewSoftwareEngine()
	dispatcher := &rtcore.Dispatcher{Engine: engine}

	serve(master, dispatcher, log.Module("dmxsim"))
}

// serve reads command frames off rw, dispatches them, and writes the
// response frame back, one at a time — the simulator never needs to
// multiplex, since dmxctl serializes its own calls.
func serve(rw readWriter, d *rtcore.Dispatcher, log *logger.Log) {
	dec := protocol.NewDecoder(protocol.MagicCmd)
	buf := make([]byte, 1)

	for {
		n, err := rw.Read(buf)
		if err != nil {
			log.WithError(err).Error("read failed, stopping")
			return
		}
		if n == 0 {
			continue
		}

		frame, decErr := dec.Feed(buf[0])
		if decErr != nil {
			log.WithError(decErr).Warn("malformed command frame")
			resp := protocol.EncodeResp(statusForDecodeError(decErr), nil)
			if _, err := rw.Write(resp); err != nil {
				log.WithError(err).Error("write failed, stopping")
				return
			}
			continue
		}
		if frame == nil {
			continue
		}

		status, payload := d.Handle(frame)
		resp := protocol.EncodeResp(status, payload)
		if _, err := rw.Write(resp); err != nil {
			log.WithError(err).Error("write failed, stopping")
			return
		}
	}
}

// statusForDecodeError maps a Decoder.Feed error to the response status
// byte a real dispatcher would send for the same malformed frame, so a
// corrupted command still gets exactly one reply instead of a timeout.
func statusForDecodeError(err error) byte {
	switch err {
	case protocol.ErrBadMagic:
		return protocol.StatusInvalidMagic
	case protocol.ErrBadChecksum:
		return protocol.StatusInvalidChecksum
	case protocol.ErrOverLength:
		return protocol.StatusInvalidLength
	default:
		return protocol.StatusError
	}
}

type readWriter interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}
