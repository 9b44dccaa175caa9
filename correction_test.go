// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package bladerf_test

import (
	"errors"
	"testing"

	bladerf "github.com/butshuti/bladeRF"
	"github.com/butshuti/bladeRF/ad9361"
)

// TX DC offset words occupy bits 12:5 of a single register; values
// round-trip exactly when they are multiples of 32 and quantize down
// otherwise.
func TestTXDCOffsetCorrection(t *testing.T) {
	dev, _, chip := openSim(t)
	defer dev.Close()

	if err := dev.SetCorrection(bladerf.ChannelTX1, bladerf.CorrDCOffsetI, 1024); err != nil {
		t.Fatalf("SetCorrection: %v", err)
	}
	if got := chip.Regs[ad9361.RegTX1Out1OffsetI]; got != 32 {
		t.Errorf("register = %#x, want 0x20", got)
	}
	if v, err := dev.Correction(bladerf.ChannelTX1, bladerf.CorrDCOffsetI); err != nil || v != 1024 {
		t.Errorf("read back %d, %v, want 1024", v, err)
	}

	// Quantization drops the low 5 bits.
	if err := dev.SetCorrection(bladerf.ChannelTX1, bladerf.CorrDCOffsetI, 1000); err != nil {
		t.Fatalf("SetCorrection: %v", err)
	}
	if v, _ := dev.Correction(bladerf.ChannelTX1, bladerf.CorrDCOffsetI); v != 992 {
		t.Errorf("quantized read back %d, want 992", v)
	}

	// Negative values sign-extend from bit 12.
	if err := dev.SetCorrection(bladerf.ChannelTX2, bladerf.CorrDCOffsetQ, -1024); err != nil {
		t.Fatalf("SetCorrection: %v", err)
	}
	if got := chip.Regs[ad9361.RegTX2Out1OffsetQ]; got != 0xE0 {
		t.Errorf("register = %#x, want 0xe0", got)
	}
	if v, _ := dev.Correction(bladerf.ChannelTX2, bladerf.CorrDCOffsetQ); v != -1024 {
		t.Errorf("read back %d, want -1024", v)
	}
}

// Phase and gain correction words sit in bits 13:6.
func TestPhaseGainCorrection(t *testing.T) {
	dev, _, chip := openSim(t)
	defer dev.Close()

	if err := dev.SetCorrection(bladerf.ChannelTX1, bladerf.CorrPhase, 512); err != nil {
		t.Fatalf("SetCorrection: %v", err)
	}
	if got := chip.Regs[ad9361.RegTX1Out1PhaseCorr]; got != 8 {
		t.Errorf("register = %#x, want 0x08", got)
	}
	if v, _ := dev.Correction(bladerf.ChannelTX1, bladerf.CorrPhase); v != 512 {
		t.Errorf("read back %d, want 512", v)
	}

	if err := dev.SetCorrection(bladerf.ChannelRX1, bladerf.CorrGain, -2048); err != nil {
		t.Fatalf("SetCorrection RX: %v", err)
	}
	if got := chip.Regs[ad9361.RegRX1InputAGainCorr]; got != 0xE0 {
		t.Errorf("RX gain register = %#x, want 0xe0", got)
	}
	if v, _ := dev.Correction(bladerf.ChannelRX1, bladerf.CorrGain); v != -2048 {
		t.Errorf("read back %d, want -2048", v)
	}
}

// RX DC offsets are 10-bit words sliced across register pairs that
// also hold neighboring words; writes must not clobber those bits.
func TestRXDCOffsetPreservesSharedBits(t *testing.T) {
	dev, _, chip := openSim(t)
	defer dev.Close()

	// Pre-load the bits outside the RX1 I slice.
	chip.Regs[ad9361.RegInputAOffsets1] = 0xF0
	chip.Regs[ad9361.RegRX1InputAOffsets] = 0x03

	if err := dev.SetCorrection(bladerf.ChannelRX1, bladerf.CorrDCOffsetI, 520); err != nil {
		t.Fatalf("SetCorrection: %v", err)
	}
	if got := chip.Regs[ad9361.RegInputAOffsets1]; got != 0xF1 {
		t.Errorf("top register = %#x, want 0xf1", got)
	}
	if got := chip.Regs[ad9361.RegRX1InputAOffsets]; got != 0x07 {
		t.Errorf("bottom register = %#x, want 0x07", got)
	}
	if v, err := dev.Correction(bladerf.ChannelRX1, bladerf.CorrDCOffsetI); err != nil || v != 520 {
		t.Errorf("read back %d, %v, want 520", v, err)
	}

	// RX2 Q shares a register with RX1 I; writing it must leave the
	// RX1 I word intact.
	if err := dev.SetCorrection(bladerf.ChannelRX2, bladerf.CorrDCOffsetQ, 264); err != nil {
		t.Fatalf("SetCorrection RX2: %v", err)
	}
	if v, _ := dev.Correction(bladerf.ChannelRX2, bladerf.CorrDCOffsetQ); v != 264 {
		t.Errorf("RX2 Q read back %d, want 264", v)
	}
	if v, _ := dev.Correction(bladerf.ChannelRX1, bladerf.CorrDCOffsetI); v != 520 {
		t.Errorf("RX1 I clobbered, read back %d, want 520", v)
	}
}

// Every correction write latches a force bit; the force register is
// only ever ORed, never cleared.
func TestCorrectionForceBits(t *testing.T) {
	dev, _, chip := openSim(t)
	defer dev.Close()

	chip.Regs[ad9361.RegForceBits] = 0x01
	if err := dev.SetCorrection(bladerf.ChannelRX1, bladerf.CorrDCOffsetI, 64); err != nil {
		t.Fatalf("SetCorrection: %v", err)
	}
	if got := chip.Regs[ad9361.RegForceBits]; got != 0x41 {
		t.Errorf("RX force register = %#x, want 0x41", got)
	}

	if err := dev.SetCorrection(bladerf.ChannelTX1, bladerf.CorrDCOffsetI, 64); err != nil {
		t.Fatalf("SetCorrection TX: %v", err)
	}
	if got := chip.Regs[ad9361.RegTXForceBits]; got != 1<<6 {
		t.Errorf("TX force register = %#x, want 0x40", got)
	}
	if err := dev.SetCorrection(bladerf.ChannelTX2, bladerf.CorrPhase, 64); err != nil {
		t.Fatalf("SetCorrection TX2: %v", err)
	}
	if got := chip.Regs[ad9361.RegTXForceBits]; got != 1<<6|1<<5 {
		t.Errorf("TX force register = %#x, want 0x60", got)
	}
}

// The register bank in use follows the selected RF port.
func TestCorrectionRegisterBank(t *testing.T) {
	dev, _, chip := openSim(t)
	defer dev.Close()

	// Port B uses the B/C bank.
	if err := dev.SetRFPort(bladerf.ChannelRX1, "B_BALANCED"); err != nil {
		t.Fatalf("SetRFPort: %v", err)
	}
	if err := dev.SetCorrection(bladerf.ChannelRX1, bladerf.CorrPhase, 512); err != nil {
		t.Fatalf("SetCorrection: %v", err)
	}
	if chip.Regs[ad9361.RegRX1InputBCPhaseCorr] != 8 {
		t.Errorf("B/C bank not used: %#x", chip.Regs[ad9361.RegRX1InputBCPhaseCorr])
	}
	if chip.Regs[ad9361.RegRX1InputAPhaseCorr] != 0 {
		t.Errorf("A bank written for port B")
	}

	// TXB likewise selects the second output bank.
	if err := dev.SetRFPort(bladerf.ChannelTX1, "TXB"); err != nil {
		t.Fatalf("SetRFPort TX: %v", err)
	}
	if err := dev.SetCorrection(bladerf.ChannelTX1, bladerf.CorrDCOffsetI, 1024); err != nil {
		t.Fatalf("SetCorrection: %v", err)
	}
	if chip.Regs[ad9361.RegTX1Out2OffsetI] != 32 {
		t.Errorf("TX out2 bank not used: %#x", chip.Regs[ad9361.RegTX1Out2OffsetI])
	}

	// Single-ended RX ports have no correction registers.
	if err := dev.SetRFPort(bladerf.ChannelRX1, "A_N"); err != nil {
		t.Fatalf("SetRFPort: %v", err)
	}
	if err := dev.SetCorrection(bladerf.ChannelRX1, bladerf.CorrPhase, 0); !errors.Is(err, bladerf.ErrUnsupported) {
		t.Errorf("single-ended port: got %v, want ErrUnsupported", err)
	}
}

func TestCorrectionValidation(t *testing.T) {
	dev, _, chip := openSim(t)
	defer dev.Close()

	if err := dev.SetCorrection(bladerf.Channel(7), bladerf.CorrPhase, 0); !errors.Is(err, bladerf.ErrInval) {
		t.Errorf("bad channel: got %v, want ErrInval", err)
	}
	if err := dev.SetCorrection(bladerf.ChannelRX1, bladerf.Correction(9), 0); !errors.Is(err, bladerf.ErrInval) {
		t.Errorf("bad correction: got %v, want ErrInval", err)
	}
	if _, err := dev.Correction(bladerf.ChannelRX1, bladerf.Correction(-1)); !errors.Is(err, bladerf.ErrInval) {
		t.Errorf("bad correction get: got %v, want ErrInval", err)
	}
	if chip.Calls["WriteReg"] != 0 {
		t.Errorf("invalid arguments reached the chip")
	}
}
