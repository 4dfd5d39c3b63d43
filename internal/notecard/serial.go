package notecard

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the Notecard's serial speed.
const DefaultBaudRate = 9600

const serialReadTimeout = 100 * time.Millisecond

type serialDevice struct {
	port serial.Port
	buf  bytes.Buffer
}

// OpenSerial opens a transport on a serial (UART or USB) port.
func OpenSerial(name string, baud int) (*Transport, error) {
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, &TransportError{Op: "open", Err: fmt.Errorf("failed to open serial port %s: %w", name, err)}
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return nil, &TransportError{Op: "open", Err: err}
	}
	_ = port.ResetInputBuffer()
	return newTransport(name, &serialDevice{port: port}), nil
}

func (d *serialDevice) writeSegment(p []byte) error {
	_, err := d.port.Write(p)
	return err
}

func (d *serialDevice) readLine(ctx context.Context, deadline time.Time) ([]byte, error) {
	chunk := make([]byte, 256)
	for {
		if i := bytes.IndexByte(d.buf.Bytes(), '\n'); i >= 0 {
			line := make([]byte, i+1)
			_, _ = d.buf.Read(line)
			return line, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, errResponseTimeout
		}
		n, err := d.port.Read(chunk)
		if err != nil {
			return nil, err
		}
		d.buf.Write(chunk[:n])
	}
}

func (d *serialDevice) Close() error {
	return d.port.Close()
}
