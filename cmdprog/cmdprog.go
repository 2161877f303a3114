// Package cmdprog implements the command-program bytecode format that
// drives the asynchronous NAND interface from either a bit-banged path or
// an off-board hardware sequencer (§4.B). A program is a flat sequence of
// 32-bit words; each instruction is a 2-word header optionally followed by
// payload words.
package cmdprog

import "fmt"

// CmdID identifies an instruction within a command program.
type CmdID uint8

const (
	CMD_BITBANG     CmdID = iota // direct pin values {ce1,ce0,io7..io0}
	CMD_CMD_LATCH                // {ce bits, NAND command byte}
	CMD_ADDR_LATCH               // payload: transfer_count words of {ce bits, addr byte}
	CMD_DATA_OUTPUT              // produces transfer_count bytes into a receive stream
	CMD_DATA_INPUT               // payload: transfer_count words of {ce bits, data byte}
	CMD_WAIT_READY               // —
)

// Logical pin positions within the 16-bit pin-direction mask (§6).
const (
	PIN_IO0 = iota
	PIN_IO1
	PIN_IO2
	PIN_IO3
	PIN_IO4
	PIN_IO5
	PIN_IO6
	PIN_IO7
	PIN_CE0
	PIN_CE1
	PIN_CLE
	PIN_ALE
	PIN_WP
	PIN_WE
	PIN_RE
	PIN_RB
)

// Pin-direction presets. WP is always in the output mask in both (§9:
// the source's omission of WP from one WRITE preset is a bug; this
// implementation always includes it).
const (
	// PIN_DIR_WRITE: all controls + CE + IO are outputs, R/B is input.
	PIN_DIR_WRITE uint16 = 0x7FFF
	// PIN_DIR_READ: controls + CE are outputs, IO and R/B are inputs.
	PIN_DIR_READ uint16 = 0x7F00
)

const maxTransferCount = 4096

// Instruction is one entry of a command program: a 2-word header plus an
// optional payload.
type Instruction struct {
	ID      CmdID
	Count   uint32 // transfer_count, >= 1 (the encoded header stores count-1)
	PinDir  uint16
	Arg     uint32   // header word 1; zero when unused
	Payload []uint32 // payload words, for AddrLatch/DataInput
}

// HeaderWords returns the instruction's 2-word header: word0 packs
// cmd_id, transfer_count-1, and the pin-direction mask; word1 is the
// command-specific argument (§4.B).
func (in Instruction) HeaderWords() (uint32, uint32, error) {
	if in.Count < 1 || in.Count > maxTransferCount {
		return 0, 0, fmt.Errorf("cmdprog: transfer count %d out of range [1,%d]", in.Count, maxTransferCount)
	}
	w0 := (uint32(in.ID) << 28) | ((in.Count - 1) << 16) | uint32(in.PinDir)
	return w0, in.Arg, nil
}

// Encode returns the instruction as its full word sequence: header then
// payload.
func (in Instruction) Encode() ([]uint32, error) {
	w0, w1, err := in.HeaderWords()
	if err != nil {
		return nil, err
	}
	words := make([]uint32, 0, 2+len(in.Payload))
	words = append(words, w0, w1)
	words = append(words, in.Payload...)
	return words, nil
}

// DecodeHeader recovers (cmd_id, transfer_count, pin-direction mask) from
// a header word0.
func DecodeHeader(w0 uint32) (CmdID, uint32, uint16) {
	id := CmdID(w0 >> 28)
	count := ((w0 >> 16) & 0xFFF) + 1
	pindir := uint16(w0 & 0xFFFF)
	return id, count, pindir
}

// Program is an ordered sequence of instructions.
type Program []Instruction

// Encode flattens the program into its word stream.
func (p Program) Encode() ([]uint32, error) {
	var words []uint32
	for i, in := range p {
		w, err := in.Encode()
		if err != nil {
			return nil, fmt.Errorf("cmdprog: instruction %d: %w", i, err)
		}
		words = append(words, w...)
	}
	return words, nil
}

// CEBits returns (ce1, ce0) per the CE-bit selection policy in §4.B: the
// deselected chip's bit is 1; the selected chip's bit is 0; with no chip
// selected both are 1.
func CEBits(chip *int) (ce1, ce0 uint8) {
	switch {
	case chip == nil:
		return 1, 1
	case *chip == 0:
		return 1, 0
	default:
		return 0, 1
	}
}

// packCEByte packs a command/address/data byte alongside the CE bits for
// the given chip selection, matching the {ce bits, byte} payload-word
// shape used by CmdLatch/AddrLatch/DataInput and the Bitbang
// {ce1,ce0,io7..io0} word.
func packCEByte(chip *int, b byte) uint32 {
	ce1, ce0 := CEBits(chip)
	return (uint32(ce1) << 9) | (uint32(ce0) << 8) | uint32(b)
}

// PackCEByte is the exported form of the {ce bits, byte} packing, used by
// the hardware commander backend's secondary CE-merge stream (§4.C) to
// re-emit raw data bytes as 32-bit words without going through a Builder.
func PackCEByte(chip *int, b byte) uint32 {
	return packCEByte(chip, b)
}
