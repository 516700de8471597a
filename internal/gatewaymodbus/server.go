// Package gatewaymodbus exposes DMX channel state over Modbus/TCP.
//
// Register mapping:
//   - Holding registers 0-511 = DMX channels 1-512 (0-255)
//   - Coil 0 = enable (read/write)
//   - Coil 1 = blackout (write-only, triggers on write 0xFF00)
package gatewaymodbus

import (
	"encoding/binary"

	"github.com/tbrandon/mbserver"

	"dmx-gateway/internal/coordinator"
	"dmx-gateway/internal/gatewayconfig"
	"dmx-gateway/internal/logger"
)

// Server is the Modbus/TCP façade over a coordinator.State.
type Server struct {
	cfg   *gatewayconfig.ModbusConfig
	state *coordinator.State
	log   *logger.Log
	mb    *mbserver.Server
}

// NewServer builds a Modbus server bound to cfg.Port (":502" if empty).
func NewServer(cfg *gatewayconfig.ModbusConfig, state *coordinator.State, log *logger.Log) *Server {
	return &Server{cfg: cfg, state: state, log: log.Module("gatewaymodbus")}
}

// Start registers the function handlers and begins listening.
func (s *Server) Start() error {
	s.mb = mbserver.NewServer()

	s.mb.RegisterFunctionHandler(3, s.handleReadHoldingRegisters)
	s.mb.RegisterFunctionHandler(6, s.handleWriteSingleRegister)
	s.mb.RegisterFunctionHandler(16, s.handleWriteMultipleRegisters)
	s.mb.RegisterFunctionHandler(1, s.handleReadCoils)
	s.mb.RegisterFunctionHandler(5, s.handleWriteSingleCoil)

	addr := s.cfg.Port
	if addr == "" {
		addr = ":502"
	}

	s.log.With(logger.Fields{"addr": addr}).Info("modbus/tcp server starting")

	go func() {
		if err := s.mb.ListenTCP(addr); err != nil {
			s.log.With(logger.Fields{"error": err}).Error("modbus/tcp server error")
		}
	}()

	return nil
}

// Stop closes the underlying listener.
func (s *Server) Stop() {
	if s.mb != nil {
		s.mb.Close()
		s.log.Info("modbus/tcp server stopped")
	}
}

func (s *Server) handleReadHoldingRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}

	startAddr := binary.BigEndian.Uint16(data[0:2])
	quantity := binary.BigEndian.Uint16(data[2:4])
	if startAddr+quantity > 512 {
		return []byte{}, &mbserver.IllegalDataAddress
	}

	channels := s.state.GetChannels()

	resp := make([]byte, 1+quantity*2)
	resp[0] = byte(quantity * 2)
	for i := uint16(0); i < quantity; i++ {
		ch := startAddr + i
		binary.BigEndian.PutUint16(resp[1+i*2:], uint16(channels[ch]))
	}

	return resp, &mbserver.Success
}

func (s *Server) handleWriteSingleRegister(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}

	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])
	if addr >= 512 {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	if value > 255 {
		value = 255
	}

	channel := int(addr) + 1
	if err := s.state.SetChannel(channel, uint8(value)); err != nil {
		s.log.With(logger.Fields{"ch": channel, "error": err}).Warn("modbus write failed")
		return []byte{}, &mbserver.SlaveDeviceFailure
	}

	s.log.With(logger.Fields{"ch": channel, "value": value}).Debug("modbus write")
	return data[:4], &mbserver.Success
}

func (s *Server) handleWriteMultipleRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 5 {
		return []byte{}, &mbserver.IllegalDataValue
	}

	startAddr := binary.BigEndian.Uint16(data[0:2])
	quantity := binary.BigEndian.Uint16(data[2:4])
	byteCount := data[4]

	if startAddr+quantity > 512 {
		return []byte{}, &mbserver.IllegalDataAddress
	}
	if int(byteCount) != int(quantity)*2 || len(data) < 5+int(byteCount) {
		return []byte{}, &mbserver.IllegalDataValue
	}

	for i := uint16(0); i < quantity; i++ {
		value := binary.BigEndian.Uint16(data[5+i*2:])
		if value > 255 {
			value = 255
		}
		channel := int(startAddr+i) + 1
		if err := s.state.SetChannel(channel, uint8(value)); err != nil {
			s.log.With(logger.Fields{"ch": channel, "error": err}).Warn("modbus write failed")
		}
	}

	s.log.With(logger.Fields{"start": startAddr + 1, "count": quantity}).Debug("modbus write multiple")

	resp := make([]byte, 4)
	binary.BigEndian.PutUint16(resp[0:2], startAddr)
	binary.BigEndian.PutUint16(resp[2:4], quantity)
	return resp, &mbserver.Success
}

func (s *Server) handleReadCoils(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}

	startAddr := binary.BigEndian.Uint16(data[0:2])
	quantity := binary.BigEndian.Uint16(data[2:4])
	if startAddr+quantity > 2 {
		return []byte{}, &mbserver.IllegalDataAddress
	}

	var coils byte
	if s.state.IsEnabled() {
		coils |= 0x01
	}

	return []byte{1, coils}, &mbserver.Success
}

func (s *Server) handleWriteSingleCoil(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}

	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])
	on := value == 0xFF00

	switch addr {
	case 0:
		if on {
			if err := s.state.Enable(); err != nil {
				return []byte{}, &mbserver.SlaveDeviceFailure
			}
			s.log.Info("modbus: dmx enabled")
		} else {
			if err := s.state.Disable(); err != nil {
				return []byte{}, &mbserver.SlaveDeviceFailure
			}
			s.log.Info("modbus: dmx disabled")
		}
	case 1:
		if on {
			if err := s.state.Blackout(); err != nil {
				return []byte{}, &mbserver.SlaveDeviceFailure
			}
			s.log.Info("modbus: blackout triggered")
		}
	default:
		return []byte{}, &mbserver.IllegalDataAddress
	}

	return data[:4], &mbserver.Success
}
