package commander

import (
	"context"
	"errors"
	"fmt"

	"github.com/tcflash/jiscssd/busdriver"
	"github.com/tcflash/jiscssd/cmdprog"
	"github.com/tcflash/jiscssd/nandaddr"
)

// Sequencer is the off-board command-program consumer the hardware path
// hands programs to (§4.C). Run executes prog to completion and returns
// the bytes produced by any DataOutput instructions, in program order.
type Sequencer interface {
	Run(ctx context.Context, prog cmdprog.Program) ([]byte, error)
	// RunRaw executes a plain word stream with no header/payload
	// structure — used for the CE-merged data body of a program's
	// second segment (§4.C).
	RunRaw(ctx context.Context, words []uint32) error
}

// CEMerger is the secondary stream that reads raw data bytes, inserts CE
// bits, and re-emits 32-bit words, so the main DMA chain for a program
// operation stays linear (§4.C).
type CEMerger interface {
	Merge(chip int, data []byte) []uint32
}

// DefaultCEMerger merges CE bits using the same {ce bits, byte} packing
// the Builder uses for an ordinary DataInput instruction.
type DefaultCEMerger struct{}

func (DefaultCEMerger) Merge(chip int, data []byte) []uint32 {
	words := make([]uint32, len(data))
	for i, d := range data {
		words[i] = cmdprog.PackCEByte(&chip, d)
	}
	return words
}

// Hardware builds command programs and hands them to an off-board
// Sequencer (§4.C's hardware path).
type Hardware struct {
	seq    Sequencer
	merger CEMerger
}

// NewHardware returns a Commander backed by seq, using merger for the
// program path's secondary CE-merge stream. A nil merger defaults to
// DefaultCEMerger.
func NewHardware(seq Sequencer, merger CEMerger) *Hardware {
	if merger == nil {
		merger = DefaultCEMerger{}
	}
	return &Hardware{seq: seq, merger: merger}
}

var _ Commander = (*Hardware)(nil)

func (h *Hardware) Reset(ctx context.Context, chip int) error {
	b := cmdprog.NewBuilder()
	b.SeqReset(chip)
	if _, err := h.seq.Run(ctx, b.Program()); err != nil {
		return fmt.Errorf("commander: hardware reset chip %d: %w", chip, err)
	}
	return nil
}

func (h *Hardware) ReadID(ctx context.Context, chip, n int) ([]byte, error) {
	b := cmdprog.NewBuilder()
	b.SeqReadID(chip, 0, n)
	return h.seq.Run(ctx, b.Program())
}

func (h *Hardware) ReadPage(ctx context.Context, chip, block, page, col, n int) ([]byte, error) {
	b := cmdprog.NewBuilder()
	b.SeqRead(chip, uint32(col), uint32(page), uint32(block), n)
	out, err := h.seq.Run(ctx, b.Program())
	if err != nil {
		if errors.Is(err, busdriver.ErrTimeout) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

func (h *Hardware) ReadStatus(ctx context.Context, chip int) (byte, error) {
	b := cmdprog.NewBuilder()
	b.SeqStatusRead(chip)
	out, err := h.seq.Run(ctx, b.Program())
	if err != nil {
		return 0, err
	}
	if len(out) < 1 {
		return 0, fmt.Errorf("commander: hardware read-status chip %d: no status byte returned", chip)
	}
	return out[0], nil
}

func (h *Hardware) EraseBlock(ctx context.Context, chip, block int) (bool, error) {
	b := cmdprog.NewBuilder()
	b.SeqErase(chip, uint32(block))
	out, err := h.seq.Run(ctx, b.Program())
	if err != nil {
		if errors.Is(err, busdriver.ErrTimeout) {
			return false, nil
		}
		return false, err
	}
	if len(out) < 1 {
		return false, fmt.Errorf("commander: hardware erase chip %d block %d: no status byte returned", chip, block)
	}
	return DecodeStatus(out[0]).OK(), nil
}

// programSeg names the three DMA-chained segments a program operation is
// split into (§4.C, §9): SEG1 issues the command/address/data-input
// header, SEG2 is the CE-merged data body from the secondary stream, and
// SEG3 issues the second command, waits ready, and reads status.
type programSeg int

const (
	segInit programSeg = iota
	segBody
	segTail
	segDone
)

func (h *Hardware) ProgramPage(ctx context.Context, chip, block, page, col int, data []byte) (bool, error) {
	seg := segInit
	var status byte

	for seg != segDone {
		switch seg {
		case segInit:
			b := cmdprog.NewBuilder()
			b.InitPin()
			b.AssertCS(chip)
			b.CmdLatch(cmdprog.NAND_CMD_PROGRAM_FIRST, &chip)
			addr := nandaddr.EncodeFull(uint32(col), uint32(page), uint32(block))
			b.AddrLatch(addr[:], &chip)
			b.DataInputHeader(len(data))
			if _, err := h.seq.Run(ctx, b.Program()); err != nil {
				return false, fmt.Errorf("commander: hardware program chip %d block %d page %d: segment 1: %w", chip, block, page, err)
			}
			seg = segBody

		case segBody:
			words := h.merger.Merge(chip, data)
			if err := h.seq.RunRaw(ctx, words); err != nil {
				return false, fmt.Errorf("commander: hardware program chip %d block %d page %d: segment 2: %w", chip, block, page, err)
			}
			seg = segTail

		case segTail:
			b := cmdprog.NewBuilder()
			b.CmdLatch(cmdprog.NAND_CMD_PROGRAM_SECOND, &chip)
			b.WaitReady()
			b.CmdLatch(cmdprog.NAND_CMD_STATUS, &chip)
			b.DataOutput(1)
			b.DeassertCS()
			out, err := h.seq.Run(ctx, b.Program())
			if err != nil {
				if errors.Is(err, busdriver.ErrTimeout) {
					return false, nil
				}
				return false, fmt.Errorf("commander: hardware program chip %d block %d page %d: segment 3: %w", chip, block, page, err)
			}
			if len(out) < 1 {
				return false, fmt.Errorf("commander: hardware program chip %d block %d page %d: no status byte returned", chip, block, page)
			}
			status = out[0]
			seg = segDone
		}
	}

	return DecodeStatus(status).OK(), nil
}
