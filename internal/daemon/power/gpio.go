package power

import (
	"context"
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// UPS HAT pins (BCM numbering).
const (
	// PowerFaultPin is low while the bus supplies power and high on fault.
	PowerFaultPin = "GPIO17"
	// OnlinePin toggles every 0.5 s while the UPS battery is on line.
	OnlinePin = "GPIO27"
)

const (
	batteryCheckWindow = time.Second
	batteryCheckPeriod = 100 * time.Millisecond
)

// GPIO reads the UPS signals from the host's GPIO pins.
type GPIO struct {
	fault  gpio.PinIO
	online gpio.PinIO
}

// NewGPIO initializes the host drivers and configures both pins as inputs.
func NewGPIO() (*GPIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}
	g := &GPIO{}
	for _, p := range []struct {
		name string
		pin  *gpio.PinIO
	}{
		{PowerFaultPin, &g.fault},
		{OnlinePin, &g.online},
	} {
		pin := gpioreg.ByName(p.name)
		if pin == nil {
			return nil, fmt.Errorf("GPIO pin %s not found", p.name)
		}
		if err := pin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("failed to configure %s: %w", p.name, err)
		}
		*p.pin = pin
	}
	return g, nil
}

func (g *GPIO) ExternalPower() (bool, error) {
	return g.fault.Read() == gpio.Low, nil
}

// BatteryAvailable watches the online pin for a transition over one second.
func (g *GPIO) BatteryAvailable(ctx context.Context) bool {
	initial := g.online.Read()
	deadline := time.Now().Add(batteryCheckWindow)
	ticker := time.NewTicker(batteryCheckPeriod)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
		if g.online.Read() != initial {
			log.Printf("[power] Detected UPS battery")
			return true
		}
	}
	return false
}
