package transport

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// SerialPort opens a real UART via github.com/tarm/serial, the
// backend the host protocol actually runs over outside tests.
func SerialPort(device string, baud int) (Port, error) {
	cfg := &serial.Config{Name: device, Baud: baud, ReadTimeout: 100 * time.Millisecond}
	p, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, fmt.Errorf("transport: opening %s at %d baud: %w", device, baud, err)
	}
	return p, nil
}
