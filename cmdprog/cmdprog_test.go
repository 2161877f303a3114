package cmdprog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderWordEncoding(t *testing.T) {
	// §8: header word == (cmd_id<<28) | ((count-1)<<16) | pindir.
	in := Instruction{ID: CMD_ADDR_LATCH, Count: 4, PinDir: PIN_DIR_WRITE}
	w0, _, err := in.HeaderWords()
	assert.NoError(t, err)
	assert.Equal(t, (uint32(CMD_ADDR_LATCH)<<28)|(uint32(3)<<16)|uint32(PIN_DIR_WRITE), w0)
}

func TestHeaderRoundTrips(t *testing.T) {
	in := Instruction{ID: CMD_DATA_OUTPUT, Count: 512, PinDir: PIN_DIR_READ}
	w0, _, err := in.HeaderWords()
	assert.NoError(t, err)

	id, count, pindir := DecodeHeader(w0)
	assert.Equal(t, CMD_DATA_OUTPUT, id)
	assert.Equal(t, uint32(512), count)
	assert.Equal(t, PIN_DIR_READ, pindir)
}

func TestTransferCountOutOfRange(t *testing.T) {
	_, _, err := Instruction{ID: CMD_WAIT_READY, Count: 0, PinDir: PIN_DIR_READ}.HeaderWords()
	assert.Error(t, err)

	_, _, err = Instruction{ID: CMD_WAIT_READY, Count: 4097, PinDir: PIN_DIR_READ}.HeaderWords()
	assert.Error(t, err)

	_, _, err = Instruction{ID: CMD_WAIT_READY, Count: 4096, PinDir: PIN_DIR_READ}.HeaderWords()
	assert.NoError(t, err)
}

func TestCEBitsPolicy(t *testing.T) {
	ce1, ce0 := CEBits(nil)
	assert.Equal(t, uint8(1), ce1)
	assert.Equal(t, uint8(1), ce0)

	c0 := 0
	ce1, ce0 = CEBits(&c0)
	assert.Equal(t, uint8(1), ce1)
	assert.Equal(t, uint8(0), ce0)

	c1 := 1
	ce1, ce0 = CEBits(&c1)
	assert.Equal(t, uint8(0), ce1)
	assert.Equal(t, uint8(1), ce0)
}

func TestPinDirPresetsAlwaysDriveWP(t *testing.T) {
	// §9: WP must always be an output, in both presets.
	assert.NotZero(t, PIN_DIR_WRITE&(1<<PIN_WP))
	assert.NotZero(t, PIN_DIR_READ&(1<<PIN_WP))
	// R/B is never driven.
	assert.Zero(t, PIN_DIR_WRITE&(1<<PIN_RB))
	assert.Zero(t, PIN_DIR_READ&(1<<PIN_RB))
	// PIN_DIR_READ leaves IO as input.
	for p := PIN_IO0; p <= PIN_IO7; p++ {
		assert.Zero(t, PIN_DIR_READ&(1<<uint(p)))
	}
}

func TestSeqProgramWireTrace(t *testing.T) {
	// §8 end-to-end scenario 6: program(c=1, CA=256, PA=2, BA=3, data=[0..511]).
	data := make([]byte, 512)
	for i := range data {
		data[i] = byte(i)
	}

	b := NewBuilder()
	b.SeqProgram(1, 256, 2, 3, data)
	prog := b.Program()

	// instruction order: init, assertcs, cmd(0x80), addrlatch(4), datainput(512), cmd(0x10), waitready, cmd(0x70), dataoutput(1), deassertcs
	assert.Len(t, prog, 10)

	assert.Equal(t, CMD_CMD_LATCH, prog[2].ID)
	assert.Equal(t, byte(NAND_CMD_PROGRAM_FIRST), byte(prog[2].Arg&0xFF))
	assert.Equal(t, uint32(0), (prog[2].Arg>>9)&1, "CE1 low (asserted) for chip 1")
	assert.Equal(t, uint32(1), (prog[2].Arg>>8)&1, "CE0 high (deselected) for chip 1")

	assert.Equal(t, CMD_ADDR_LATCH, prog[3].ID)
	assert.Len(t, prog[3].Payload, 4)
	wantAddr := []byte{0x00, 0x01, 0xC2, 0x00}
	for i, w := range prog[3].Payload {
		assert.Equal(t, wantAddr[i], byte(w&0xFF))
	}

	assert.Equal(t, CMD_DATA_INPUT, prog[4].ID)
	assert.Len(t, prog[4].Payload, 512)
	assert.Equal(t, byte(0), byte(prog[4].Payload[0]&0xFF))
	assert.Equal(t, byte(255), byte(prog[4].Payload[255]&0xFF))

	assert.Equal(t, CMD_CMD_LATCH, prog[5].ID)
	assert.Equal(t, byte(NAND_CMD_PROGRAM_SECOND), byte(prog[5].Arg&0xFF))

	assert.Equal(t, CMD_WAIT_READY, prog[6].ID)

	assert.Equal(t, CMD_CMD_LATCH, prog[7].ID)
	assert.Equal(t, byte(NAND_CMD_STATUS), byte(prog[7].Arg&0xFF))

	assert.Equal(t, CMD_DATA_OUTPUT, prog[8].ID)
	assert.Equal(t, uint32(1), prog[8].Count)
}

func TestSeqEraseEncodesBlockAddress(t *testing.T) {
	b := NewBuilder()
	b.SeqErase(0, 3)
	prog := b.Program()

	var addrLatch *Instruction
	for i := range prog {
		if prog[i].ID == CMD_ADDR_LATCH {
			addrLatch = &prog[i]
			break
		}
	}
	if assert.NotNil(t, addrLatch) {
		assert.Len(t, addrLatch.Payload, 2)
		assert.Equal(t, byte(0x03), byte(addrLatch.Payload[0]&0xFF))
		assert.Equal(t, byte(0x00), byte(addrLatch.Payload[1]&0xFF))
	}
}

func TestProgramEncodeConcatenatesInstructions(t *testing.T) {
	b := NewBuilder()
	b.SeqReset(0)
	words, err := b.Program().Encode()
	assert.NoError(t, err)
	assert.NotEmpty(t, words)
}
