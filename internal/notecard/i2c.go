package notecard

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// I2CAddress is the Notecard's default I2C address.
const I2CAddress = 0x17

const (
	i2cMaxChunk  = 253
	i2cPollDelay = 50 * time.Millisecond
)

type i2cDevice struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

// OpenI2C opens a transport on an I2C bus such as "/dev/i2c-1".
func OpenI2C(name string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, &TransportError{Op: "open", Err: fmt.Errorf("failed to initialize host drivers: %w", err)}
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, &TransportError{Op: "open", Err: fmt.Errorf("failed to open I2C bus %s: %w", name, err)}
	}
	d := &i2cDevice{bus: bus, dev: &i2c.Dev{Bus: bus, Addr: I2CAddress}}
	return newTransport(name, d), nil
}

// writeSegment sends a length-prefixed chunk.
func (d *i2cDevice) writeSegment(p []byte) error {
	for len(p) > 0 {
		n := min(len(p), i2cMaxChunk)
		frame := append([]byte{byte(n)}, p[:n]...)
		if err := d.dev.Tx(frame, nil); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// readLine polls the card for pending bytes. Each read returns a two byte
// header (bytes still available, bytes in this frame) followed by data.
func (d *i2cDevice) readLine(ctx context.Context, deadline time.Time) ([]byte, error) {
	var out bytes.Buffer
	want := 0
	for {
		if err := d.dev.Tx([]byte{0, byte(want)}, nil); err != nil {
			return nil, err
		}
		frame := make([]byte, want+2)
		if err := d.dev.Tx(nil, frame); err != nil {
			return nil, err
		}
		available := int(frame[0])
		got := min(int(frame[1]), want)
		out.Write(frame[2 : 2+got])

		if available == 0 && bytes.HasSuffix(out.Bytes(), []byte{'\n'}) {
			return out.Bytes(), nil
		}
		want = min(available, i2cMaxChunk)
		if available > 0 {
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, errResponseTimeout
		}
		time.Sleep(i2cPollDelay)
	}
}

func (d *i2cDevice) Close() error {
	return d.bus.Close()
}
