package commander

import (
	"context"
	"errors"
	"fmt"

	"github.com/tcflash/jiscssd/busdriver"
	"github.com/tcflash/jiscssd/cmdprog"
	"github.com/tcflash/jiscssd/nandaddr"
)

// Firmware drives busdriver.Bus synchronously according to the canonical
// sequences in §4.B, bypassing the command-program format entirely (the
// direct, bit-banged path described in §4.C).
type Firmware struct {
	bus       *busdriver.Bus
	timeoutMs int
}

// NewFirmware returns a Commander backed by bus, waiting up to
// timeoutMs for each busy-wait.
func NewFirmware(bus *busdriver.Bus, timeoutMs int) *Firmware {
	return &Firmware{bus: bus, timeoutMs: timeoutMs}
}

var _ Commander = (*Firmware)(nil)

func (f *Firmware) Reset(ctx context.Context, chip int) error {
	if err := f.bus.InitPins(); err != nil {
		return fmt.Errorf("commander: reset chip %d: %w", chip, err)
	}
	c := chip
	if err := f.bus.SetCE(&c); err != nil {
		return fmt.Errorf("commander: reset chip %d: %w", chip, err)
	}
	defer f.bus.SetCE(nil)

	if err := f.bus.InputCmd(cmdprog.NAND_CMD_RESET); err != nil {
		return fmt.Errorf("commander: reset chip %d: %w", chip, err)
	}
	if err := f.bus.WaitBusy(ctx, f.timeoutMs); err != nil {
		// §9 bullet 4: unlike every other operation, reset treats a
		// busy timeout as fatal.
		return fmt.Errorf("commander: reset chip %d: %w", chip, err)
	}
	return nil
}

func (f *Firmware) ReadID(ctx context.Context, chip, n int) ([]byte, error) {
	if err := f.bus.InitPins(); err != nil {
		return nil, fmt.Errorf("commander: read-id chip %d: %w", chip, err)
	}
	c := chip
	if err := f.bus.SetCE(&c); err != nil {
		return nil, fmt.Errorf("commander: read-id chip %d: %w", chip, err)
	}
	defer f.bus.SetCE(nil)

	if err := f.bus.InputCmd(cmdprog.NAND_CMD_READ_ID); err != nil {
		return nil, fmt.Errorf("commander: read-id chip %d: %w", chip, err)
	}
	if err := f.bus.InputAddrs([]byte{0}); err != nil {
		return nil, fmt.Errorf("commander: read-id chip %d: %w", chip, err)
	}
	out, err := f.bus.OutputData(n)
	if err != nil {
		return nil, fmt.Errorf("commander: read-id chip %d: %w", chip, err)
	}
	return out, nil
}

func (f *Firmware) ReadPage(ctx context.Context, chip, block, page, col, n int) ([]byte, error) {
	if err := f.bus.InitPins(); err != nil {
		return nil, fmt.Errorf("commander: read-page chip %d block %d page %d: %w", chip, block, page, err)
	}
	c := chip
	if err := f.bus.SetCE(&c); err != nil {
		return nil, fmt.Errorf("commander: read-page chip %d block %d page %d: %w", chip, block, page, err)
	}
	defer f.bus.SetCE(nil)

	if err := f.bus.InputCmd(cmdprog.NAND_CMD_READ_FIRST); err != nil {
		return nil, err
	}
	addr := nandaddr.EncodeFull(uint32(col), uint32(page), uint32(block))
	if err := f.bus.InputAddrs(addr[:]); err != nil {
		return nil, err
	}
	if err := f.bus.InputCmd(cmdprog.NAND_CMD_READ_SECOND); err != nil {
		return nil, err
	}
	if err := f.bus.WaitBusy(ctx, f.timeoutMs); err != nil {
		if errors.Is(err, busdriver.ErrTimeout) {
			// Distinct from a completed read: None, not fatal (§4.C, §7).
			return nil, nil
		}
		return nil, err
	}
	return f.bus.OutputData(n)
}

func (f *Firmware) ReadStatus(ctx context.Context, chip int) (byte, error) {
	if err := f.bus.InitPins(); err != nil {
		return 0, fmt.Errorf("commander: read-status chip %d: %w", chip, err)
	}
	c := chip
	if err := f.bus.SetCE(&c); err != nil {
		return 0, fmt.Errorf("commander: read-status chip %d: %w", chip, err)
	}
	defer f.bus.SetCE(nil)

	return f.statusRead()
}

// statusRead assumes CE is already asserted for the target chip; it is
// shared by ReadStatus and the tail of EraseBlock/ProgramPage, which
// re-read status without tearing down and reasserting CE.
func (f *Firmware) statusRead() (byte, error) {
	if err := f.bus.InputCmd(cmdprog.NAND_CMD_STATUS); err != nil {
		return 0, err
	}
	out, err := f.bus.OutputData(1)
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

func (f *Firmware) EraseBlock(ctx context.Context, chip, block int) (bool, error) {
	if err := f.bus.InitPins(); err != nil {
		return false, fmt.Errorf("commander: erase chip %d block %d: %w", chip, block, err)
	}
	if err := f.bus.SetWP(false); err != nil {
		return false, fmt.Errorf("commander: erase chip %d block %d: %w", chip, block, err)
	}
	defer f.bus.SetWP(true)

	c := chip
	if err := f.bus.SetCE(&c); err != nil {
		return false, err
	}
	defer f.bus.SetCE(nil)

	if err := f.bus.InputCmd(cmdprog.NAND_CMD_ERASE_FIRST); err != nil {
		return false, err
	}
	addr := nandaddr.EncodeBlock(uint32(block))
	if err := f.bus.InputAddrs(addr[:]); err != nil {
		return false, err
	}
	if err := f.bus.InputCmd(cmdprog.NAND_CMD_ERASE_SECOND); err != nil {
		return false, err
	}
	if err := f.bus.WaitBusy(ctx, f.timeoutMs); err != nil {
		if errors.Is(err, busdriver.ErrTimeout) {
			return false, nil
		}
		return false, err
	}
	status, err := f.statusRead()
	if err != nil {
		return false, err
	}
	return DecodeStatus(status).OK(), nil
}

func (f *Firmware) ProgramPage(ctx context.Context, chip, block, page, col int, data []byte) (bool, error) {
	if err := f.bus.InitPins(); err != nil {
		return false, fmt.Errorf("commander: program chip %d block %d page %d: %w", chip, block, page, err)
	}
	if err := f.bus.SetWP(false); err != nil {
		return false, err
	}
	defer f.bus.SetWP(true)

	c := chip
	if err := f.bus.SetCE(&c); err != nil {
		return false, err
	}
	defer f.bus.SetCE(nil)

	if err := f.bus.InputCmd(cmdprog.NAND_CMD_PROGRAM_FIRST); err != nil {
		return false, err
	}
	addr := nandaddr.EncodeFull(uint32(col), uint32(page), uint32(block))
	if err := f.bus.InputAddrs(addr[:]); err != nil {
		return false, err
	}
	if err := f.bus.InputData(data); err != nil {
		return false, err
	}
	if err := f.bus.InputCmd(cmdprog.NAND_CMD_PROGRAM_SECOND); err != nil {
		return false, err
	}
	if err := f.bus.WaitBusy(ctx, f.timeoutMs); err != nil {
		if errors.Is(err, busdriver.ErrTimeout) {
			return false, nil
		}
		return false, err
	}
	status, err := f.statusRead()
	if err != nil {
		return false, err
	}
	return DecodeStatus(status).OK(), nil
}
