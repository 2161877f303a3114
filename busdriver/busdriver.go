// Package busdriver drives the raw NAND pin interface: command/address
// latch strobes, the 8-bit bidirectional IO bus, chip-enable, and
// ready/busy polling. It is the lowest layer of the stack (§4.A) and the
// only package that touches actual pins.
package busdriver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// ErrTimeout is returned by WaitBusy when R/B does not return ready within
// the requested budget.
var ErrTimeout = errors.New("busdriver: timeout waiting for ready/busy")

// WP_SETTLE is the minimum time the part requires after any WP toggle
// before an erase/program may begin or CE may be reasserted.
const WP_SETTLE = 100 * physic.MicroSecond

// busyPollInterval bounds the rate at which WaitBusy samples R/B.
const busyPollInterval = 10 * time.Microsecond

// Pins is the set of 16 logical lines this device exposes, following the
// pin map in §6: IO0-7, CE0/1, CLE, ALE, WP, WE, RE, R/B.
type Pins struct {
	IO  [8]gpio.PinIO
	CE  [2]gpio.PinIO
	CLE gpio.PinIO
	ALE gpio.PinIO
	WP  gpio.PinIO
	WE  gpio.PinIO
	RE  gpio.PinIO
	RB  gpio.PinIO
}

// Bus is the primitive pin-operations driver described in §4.A. It holds
// no NAND protocol knowledge; that lives one layer up in commander.
type Bus struct {
	pins     Pins
	ioOutput bool
}

// New wraps a set of already-acquired pins. Acquiring the underlying
// gpio.PinIO values (periph.io host registration, a simulated pin set in
// tests, etc.) is the caller's responsibility; this mirrors the teacher's
// convention of taking an already-constructed collaborator rather than
// owning its lifecycle (console.New takes a mappers.Mapper it doesn't
// create).
func New(pins Pins) *Bus {
	return &Bus{pins: pins}
}

// InitPins sets IO to output, deselects both chips, drops CLE/ALE, and
// raises WE/RE, per §4.A.
func (b *Bus) InitPins() error {
	if err := b.SetIODir(true); err != nil {
		return fmt.Errorf("busdriver: init io dir: %w", err)
	}
	if err := b.SetCE(nil); err != nil {
		return fmt.Errorf("busdriver: init deselect: %w", err)
	}
	if err := b.SetCLE(false); err != nil {
		return fmt.Errorf("busdriver: init cle: %w", err)
	}
	if err := b.SetALE(false); err != nil {
		return fmt.Errorf("busdriver: init ale: %w", err)
	}
	if err := b.setLine(b.pins.WE, true); err != nil {
		return fmt.Errorf("busdriver: init we: %w", err)
	}
	if err := b.setLine(b.pins.RE, true); err != nil {
		return fmt.Errorf("busdriver: init re: %w", err)
	}
	return nil
}

func (b *Bus) setLine(p gpio.PinIO, high bool) error {
	lvl := gpio.Low
	if high {
		lvl = gpio.High
	}
	return p.Out(lvl)
}

// SetIO drives all 8 IO lines with the bits of v.
func (b *Bus) SetIO(v uint8) error {
	for i := 0; i < 8; i++ {
		if err := b.setLine(b.pins.IO[i], v&(1<<uint(i)) != 0); err != nil {
			return fmt.Errorf("busdriver: set io%d: %w", i, err)
		}
	}
	return nil
}

// GetIO samples the 8 IO lines.
func (b *Bus) GetIO() (uint8, error) {
	var v uint8
	for i := 0; i < 8; i++ {
		lvl := b.pins.IO[i].Read()
		if lvl == gpio.High {
			v |= 1 << uint(i)
		}
	}
	return v, nil
}

// SetIODir switches the IO bus direction. isOutput=true drives the bus;
// false releases it to be read.
func (b *Bus) SetIODir(isOutput bool) error {
	for i, p := range b.pins.IO {
		var err error
		if isOutput {
			err = p.Out(gpio.Low)
		} else {
			err = p.In(gpio.PullNoChange, gpio.NoEdge)
		}
		if err != nil {
			return fmt.Errorf("busdriver: set io%d dir: %w", i, err)
		}
	}
	b.ioOutput = isOutput
	return nil
}

// SetCE asserts chip select for the given chip index (0 or 1), or
// deselects both chips when chip is nil.
func (b *Bus) SetCE(chip *int) error {
	for i, p := range b.pins.CE {
		deselected := chip == nil || *chip != i
		if err := b.setLine(p, deselected); err != nil {
			return fmt.Errorf("busdriver: set ce%d: %w", i, err)
		}
	}
	return nil
}

func (b *Bus) SetCLE(v bool) error { return b.setLine(b.pins.CLE, v) }
func (b *Bus) SetALE(v bool) error { return b.setLine(b.pins.ALE, v) }
func (b *Bus) SetWE(v bool) error  { return b.setLine(b.pins.WE, v) }
func (b *Bus) SetRE(v bool) error  { return b.setLine(b.pins.RE, v) }

// SetWP toggles write-protect and blocks for the part's settle window
// (§5's write-protect discipline; ≥100µs per toggle).
func (b *Bus) SetWP(v bool) error {
	if err := b.setLine(b.pins.WP, v); err != nil {
		return fmt.Errorf("busdriver: set wp: %w", err)
	}
	time.Sleep(time.Duration(WP_SETTLE))
	return nil
}

// GetRB samples the ready/busy line. true means ready.
func (b *Bus) GetRB() bool {
	return b.pins.RB.Read() == gpio.High
}

// WaitBusy polls R/B at a bounded rate until it returns ready or
// timeoutMs elapses, returning ErrTimeout in the latter case.
func (b *Bus) WaitBusy(ctx context.Context, timeoutMs int) error {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	for {
		if b.GetRB() {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(busyPollInterval):
		}
	}
}

// cmdStrobe: set IO, raise CLE, drop WE, raise WE, drop CLE. No explicit
// delay is inserted between the WE edges.
func (b *Bus) cmdStrobe(v uint8) error {
	if err := b.SetIO(v); err != nil {
		return err
	}
	if err := b.SetCLE(true); err != nil {
		return err
	}
	if err := b.SetWE(false); err != nil {
		return err
	}
	if err := b.SetWE(true); err != nil {
		return err
	}
	return b.SetCLE(false)
}

// addrStrobe: same as cmdStrobe but with ALE in place of CLE.
func (b *Bus) addrStrobe(v uint8) error {
	if err := b.SetIO(v); err != nil {
		return err
	}
	if err := b.SetALE(true); err != nil {
		return err
	}
	if err := b.SetWE(false); err != nil {
		return err
	}
	if err := b.SetWE(true); err != nil {
		return err
	}
	return b.SetALE(false)
}

// dataOutStrobe: drop RE, sample IO, raise RE. No explicit delay is
// inserted before sampling.
func (b *Bus) dataOutStrobe() (uint8, error) {
	if err := b.SetRE(false); err != nil {
		return 0, err
	}
	v, err := b.GetIO()
	if err != nil {
		return 0, err
	}
	if err := b.SetRE(true); err != nil {
		return 0, err
	}
	return v, nil
}

// InputCmd latches a single command byte.
func (b *Bus) InputCmd(cmd uint8) error {
	return b.cmdStrobe(cmd)
}

// InputAddrs latches each byte of addrs in order.
func (b *Bus) InputAddrs(addrs []byte) error {
	for _, a := range addrs {
		if err := b.addrStrobe(a); err != nil {
			return err
		}
	}
	return nil
}

// OutputData reads n bytes from the IO bus, switching it to input first
// and restoring it to output afterward (the scoped IO-direction flip
// described in §9).
func (b *Bus) OutputData(n int) ([]byte, error) {
	if err := b.SetIODir(false); err != nil {
		return nil, fmt.Errorf("busdriver: output data dir: %w", err)
	}
	defer b.SetIODir(true)

	out := make([]byte, n)
	for i := 0; i < n; i++ {
		v, err := b.dataOutStrobe()
		if err != nil {
			return nil, fmt.Errorf("busdriver: output data byte %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// InputData writes each byte of data to the IO bus via the write strobe
// used by address/command latching (a plain IO-set followed by a WE
// pulse, with no latch-enable asserted).
func (b *Bus) InputData(data []byte) error {
	for i, v := range data {
		if err := b.SetIO(v); err != nil {
			return fmt.Errorf("busdriver: input data byte %d: %w", i, err)
		}
		if err := b.SetWE(false); err != nil {
			return err
		}
		if err := b.SetWE(true); err != nil {
			return err
		}
	}
	return nil
}
