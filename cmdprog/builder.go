package cmdprog

import "github.com/tcflash/jiscssd/nandaddr"

// NAND command bytes and status bits (§6). cmdprog owns these because the
// canonical sequences below are themselves composed from them; commander
// reuses the same constants for its firmware (direct pin-toggling) path.
const (
	NAND_CMD_READ_FIRST     = 0x00
	NAND_CMD_READ_SECOND    = 0x30
	NAND_CMD_PROGRAM_FIRST  = 0x80
	NAND_CMD_PROGRAM_SECOND = 0x10
	NAND_CMD_ERASE_FIRST    = 0x60
	NAND_CMD_ERASE_SECOND   = 0xD0
	NAND_CMD_READ_ID        = 0x90
	NAND_CMD_STATUS         = 0x70
	NAND_CMD_RESET          = 0xFF
)

const (
	STATUS_PROGRAM_ERASE_FAIL = 0x01
	STATUS_CACHE_PROG_FAIL    = 0x02
	STATUS_PAGE_BUFFER_READY  = 0x20
	STATUS_DATA_CACHE_READY   = 0x40
	STATUS_WP_DISABLED        = 0x80
)

// Builder assembles a Program out of the elementary emitters and the
// canonical higher-level sequences (§4.B).
type Builder struct {
	prog Program
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Program returns the instructions emitted so far.
func (b *Builder) Program() Program {
	return b.prog
}

func (b *Builder) emit(in Instruction) {
	b.prog = append(b.prog, in)
}

// InitPin emits the power-on pin state: both chips deselected, IO lines
// at zero.
func (b *Builder) InitPin() {
	b.emit(Instruction{ID: CMD_BITBANG, Count: 1, PinDir: PIN_DIR_WRITE, Arg: packCEByte(nil, 0)})
}

// AssertCS selects chip c.
func (b *Builder) AssertCS(c int) {
	b.emit(Instruction{ID: CMD_BITBANG, Count: 1, PinDir: PIN_DIR_WRITE, Arg: packCEByte(&c, 0)})
}

// DeassertCS deselects both chips.
func (b *Builder) DeassertCS() {
	b.emit(Instruction{ID: CMD_BITBANG, Count: 1, PinDir: PIN_DIR_WRITE, Arg: packCEByte(nil, 0)})
}

// CmdLatch latches a single NAND command byte with chip selected as c. A
// nil c packs both CE bits high, i.e. no chip selected.
func (b *Builder) CmdLatch(cmd byte, c *int) {
	b.emit(Instruction{ID: CMD_CMD_LATCH, Count: 1, PinDir: PIN_DIR_WRITE, Arg: packCEByte(c, cmd)})
}

// AddrLatch latches each byte of addrs in order.
func (b *Builder) AddrLatch(addrs []byte, c *int) {
	payload := make([]uint32, len(addrs))
	for i, a := range addrs {
		payload[i] = packCEByte(c, a)
	}
	b.emit(Instruction{ID: CMD_ADDR_LATCH, Count: uint32(len(addrs)), PinDir: PIN_DIR_WRITE, Payload: payload})
}

// DataOutput requests n bytes be read back from the device.
func (b *Builder) DataOutput(n int) {
	b.emit(Instruction{ID: CMD_DATA_OUTPUT, Count: uint32(n), PinDir: PIN_DIR_READ})
}

// DataInput writes data to the device, one byte per payload word.
func (b *Builder) DataInput(data []byte, c *int) {
	payload := make([]uint32, len(data))
	for i, d := range data {
		payload[i] = packCEByte(c, d)
	}
	b.emit(Instruction{ID: CMD_DATA_INPUT, Count: uint32(len(data)), PinDir: PIN_DIR_WRITE, Payload: payload})
}

// WaitReady blocks the sequencer until R/B returns ready.
func (b *Builder) WaitReady() {
	b.emit(Instruction{ID: CMD_WAIT_READY, Count: 1, PinDir: PIN_DIR_READ})
}

// DataInputHeader emits a DataInput instruction's header with no payload
// words. It is used by the hardware commander backend to close out the
// first of three chained program segments, whose body (the CE-merged
// data) arrives from a secondary stream rather than from this Builder
// (§4.C).
func (b *Builder) DataInputHeader(n int) {
	b.emit(Instruction{ID: CMD_DATA_INPUT, Count: uint32(n), PinDir: PIN_DIR_WRITE})
}

// SeqReset emits the canonical reset sequence: init-pins, CS=c, cmd-latch
// 0xFF, wait-ready, CS=none.
func (b *Builder) SeqReset(c int) {
	b.InitPin()
	b.AssertCS(c)
	b.CmdLatch(NAND_CMD_RESET, &c)
	b.WaitReady()
	b.DeassertCS()
}

// SeqReadID emits: init-pins, CS=c, cmd 0x90, addr-latch [off], data-output
// n, CS=none.
func (b *Builder) SeqReadID(c int, off byte, n int) {
	b.InitPin()
	b.AssertCS(c)
	b.CmdLatch(NAND_CMD_READ_ID, &c)
	b.AddrLatch([]byte{off}, &c)
	b.DataOutput(n)
	b.DeassertCS()
}

// SeqRead emits: init-pins, CS=c, cmd 0x00, full-addr(column,page,block),
// cmd 0x30, wait-ready, data-output n, CS=none.
func (b *Builder) SeqRead(c int, column, page, block uint32, n int) {
	addr := nandaddr.EncodeFull(column, page, block)

	b.InitPin()
	b.AssertCS(c)
	b.CmdLatch(NAND_CMD_READ_FIRST, &c)
	b.AddrLatch(addr[:], &c)
	b.CmdLatch(NAND_CMD_READ_SECOND, &c)
	b.WaitReady()
	b.DataOutput(n)
	b.DeassertCS()
}

// SeqStatusRead emits: init-pins, CS=c, cmd 0x70, data-output 1, CS=none.
func (b *Builder) SeqStatusRead(c int) {
	b.InitPin()
	b.AssertCS(c)
	b.CmdLatch(NAND_CMD_STATUS, &c)
	b.DataOutput(1)
	b.DeassertCS()
}

// SeqProgram emits: init-pins, CS=c, cmd 0x80, full-addr, data-input(data),
// cmd 0x10, wait-ready, cmd 0x70, data-output 1, CS=none.
func (b *Builder) SeqProgram(c int, column, page, block uint32, data []byte) {
	addr := nandaddr.EncodeFull(column, page, block)

	b.InitPin()
	b.AssertCS(c)
	b.CmdLatch(NAND_CMD_PROGRAM_FIRST, &c)
	b.AddrLatch(addr[:], &c)
	b.DataInput(data, &c)
	b.CmdLatch(NAND_CMD_PROGRAM_SECOND, &c)
	b.WaitReady()
	b.CmdLatch(NAND_CMD_STATUS, &c)
	b.DataOutput(1)
	b.DeassertCS()
}

// SeqErase emits: init-pins, CS=c, cmd 0x60, block-addr(block), cmd 0xD0,
// wait-ready, cmd 0x70, data-output 1, CS=none.
func (b *Builder) SeqErase(c int, block uint32) {
	addr := nandaddr.EncodeBlock(block)

	b.InitPin()
	b.AssertCS(c)
	b.CmdLatch(NAND_CMD_ERASE_FIRST, &c)
	b.AddrLatch(addr[:], &c)
	b.CmdLatch(NAND_CMD_ERASE_SECOND, &c)
	b.WaitReady()
	b.CmdLatch(NAND_CMD_STATUS, &c)
	b.DataOutput(1)
	b.DeassertCS()
}
