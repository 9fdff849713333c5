package display

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

// DefaultBaudRate is the usual USB serial console speed.
const DefaultBaudRate = 115200

// Serial writes each status line to a serial port, CRLF terminated.
type Serial struct {
	mu   sync.Mutex
	port io.WriteCloser
}

// OpenSerial opens a serial port such as /dev/ttyUSB0.
func OpenSerial(name string, baud int) (*Serial, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	return NewSerial(port), nil
}

// NewSerial writes to an already open port.
func NewSerial(port io.WriteCloser) *Serial {
	return &Serial{port: port}
}

// Show writes line followed by CRLF.
func (s *Serial) Show(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.port, line+"\r\n"); err != nil {
		return fmt.Errorf("write serial: %w", err)
	}
	return nil
}

// Close closes the port.
func (s *Serial) Close() error {
	return s.port.Close()
}
