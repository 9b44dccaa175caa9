// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package bladerf

import (
	"fmt"

	"github.com/butshuti/bladeRF/ad9361"
)

// Correction selects one of the IQ impairment correction parameters.
type Correction int

const (
	CorrDCOffsetI Correction = iota
	CorrDCOffsetQ
	CorrPhase
	CorrGain
)

func (c Correction) String() string {
	switch c {
	case CorrDCOffsetI:
		return "DCOffsetI"
	case CorrDCOffsetQ:
		return "DCOffsetQ"
	case CorrPhase:
		return "Phase"
	case CorrGain:
		return "Gain"
	}
	return "Unknown"
}

func (c Correction) valid() bool { return c >= CorrDCOffsetI && c <= CorrGain }

// regSet selects between the chip's two correction register banks. The
// active bank follows the selected RF port: port A uses the A bank,
// ports B and C share the B/C bank.
type regSet int

const (
	regSetA  regSet = 0
	regSetBC regSet = 1
)

// corrReg locates a correction word held in a single register. The
// word occupies the top bits of a 13-bit (shift 5) or 14-bit (shift 6)
// field; the low bits are not programmable.
type corrReg struct {
	reg   [2]uint16 // indexed by regSet
	shift uint
}

var corrRegTable = [4][4]corrReg{
	ChannelRX1: {
		CorrPhase: {[2]uint16{ad9361.RegRX1InputAPhaseCorr, ad9361.RegRX1InputBCPhaseCorr}, 6},
		CorrGain:  {[2]uint16{ad9361.RegRX1InputAGainCorr, ad9361.RegRX1InputBCGainCorr}, 6},
	},
	ChannelTX1: {
		CorrDCOffsetI: {[2]uint16{ad9361.RegTX1Out1OffsetI, ad9361.RegTX1Out2OffsetI}, 5},
		CorrDCOffsetQ: {[2]uint16{ad9361.RegTX1Out1OffsetQ, ad9361.RegTX1Out2OffsetQ}, 5},
		CorrPhase:     {[2]uint16{ad9361.RegTX1Out1PhaseCorr, ad9361.RegTX1Out2PhaseCorr}, 6},
		CorrGain:      {[2]uint16{ad9361.RegTX1Out1GainCorr, ad9361.RegTX1Out2GainCorr}, 6},
	},
	ChannelRX2: {
		CorrPhase: {[2]uint16{ad9361.RegRX2InputAPhaseCorr, ad9361.RegRX2InputBCPhaseCorr}, 6},
		CorrGain:  {[2]uint16{ad9361.RegRX2InputAGainCorr, ad9361.RegRX2InputBCGainCorr}, 6},
	},
	ChannelTX2: {
		CorrDCOffsetI: {[2]uint16{ad9361.RegTX2Out1OffsetI, ad9361.RegTX2Out2OffsetI}, 5},
		CorrDCOffsetQ: {[2]uint16{ad9361.RegTX2Out1OffsetQ, ad9361.RegTX2Out2OffsetQ}, 5},
		CorrPhase:     {[2]uint16{ad9361.RegTX2Out1PhaseCorr, ad9361.RegTX2Out2PhaseCorr}, 6},
		CorrGain:      {[2]uint16{ad9361.RegTX2Out1GainCorr, ad9361.RegTX2Out2GainCorr}, 6},
	},
}

// dcSlice describes how a 10-bit RX DC offset word is split across two
// registers: value = (top & topMask) << topShift | (bot >> botShift) & botMask.
type dcSlice struct {
	topMask  uint8
	topShift uint
	botMask  uint8
	botShift uint
}

var (
	rx1ISlice = dcSlice{topMask: 0x0F, topShift: 6, botMask: 0x3F, botShift: 2}
	rx1QSlice = dcSlice{topMask: 0x03, topShift: 8, botMask: 0xFF, botShift: 0}
	rx2ISlice = dcSlice{topMask: 0xFF, topShift: 2, botMask: 0x03, botShift: 0}
	rx2QSlice = dcSlice{topMask: 0x3F, topShift: 4, botMask: 0x0F, botShift: 4}
)

// dcRegs names the register pair holding one RX DC offset word. The
// pairs overlap: the middle registers carry bits of two different words,
// so writes must preserve the bits outside the slice.
type dcRegs struct {
	top, bot uint16
	s        dcSlice
}

// rxDCOffsetRegs is indexed by [chain index][regSet][0 for I, 1 for Q].
var rxDCOffsetRegs = [2][2][2]dcRegs{
	0: {
		regSetA: {
			{ad9361.RegInputAOffsets1, ad9361.RegRX1InputAOffsets, rx1ISlice},
			{ad9361.RegRX1InputAOffsets, ad9361.RegRX1InputAQOffset, rx1QSlice},
		},
		regSetBC: {
			{ad9361.RegInputBCOffsets1, ad9361.RegRX1InputBCOffsets, rx1ISlice},
			{ad9361.RegRX1InputBCOffsets, ad9361.RegRX1InputBCQOffset, rx1QSlice},
		},
	},
	1: {
		regSetA: {
			{ad9361.RegRX2InputAIOffset, ad9361.RegRX2InputAOffsets, rx2ISlice},
			{ad9361.RegRX2InputAOffsets, ad9361.RegInputAOffsets1, rx2QSlice},
		},
		regSetBC: {
			{ad9361.RegRX2InputBCIOffset, ad9361.RegRX2InputBCOffsets, rx2ISlice},
			{ad9361.RegRX2InputBCOffsets, ad9361.RegInputBCOffsets1, rx2QSlice},
		},
	},
}

// corrForceBit gives the bit in the force register that latches a
// manually written correction into the signal path, indexed by
// [chain index][correction][regSet].
var corrForceBit = [2][4][2]uint8{
	0: {
		CorrDCOffsetI: {6, 2},
		CorrDCOffsetQ: {6, 2},
		CorrPhase:     {4, 0},
		CorrGain:      {4, 0},
	},
	1: {
		CorrDCOffsetI: {7, 3},
		CorrDCOffsetQ: {7, 3},
		CorrPhase:     {5, 1},
		CorrGain:      {5, 1},
	},
}

// activeRegSet resolves which correction register bank is in use by
// reading back the channel's selected RF port. RX ports other than the
// balanced inputs have no correction registers.
func (d *Device) activeRegSet(op string, ch Channel) (regSet, error) {
	if ch.IsTX() {
		port, err := d.chip.GetTxRFPortOutput()
		if err != nil {
			return 0, chipError(op, err)
		}
		if port == ad9361.PortTXA {
			return regSetA, nil
		}
		return regSetBC, nil
	}
	port, err := d.chip.GetRxRFPortInput()
	if err != nil {
		return 0, chipError(op, err)
	}
	switch port {
	case ad9361.PortABalanced:
		return regSetA, nil
	case ad9361.PortBBalanced, ad9361.PortCBalanced:
		return regSetBC, nil
	}
	return 0, fmt.Errorf("%s: no correction registers for RX port %d: %w", op, port, ErrUnsupported)
}

func (d *Device) checkCorrection(op string, ch Channel, corr Correction) error {
	if err := d.checkState(op, StateInitialized); err != nil {
		return err
	}
	if !ch.valid() {
		return fmt.Errorf("%s: invalid channel %d: %w", op, uint8(ch), ErrInval)
	}
	if !corr.valid() {
		return fmt.Errorf("%s: invalid correction %d: %w", op, int(corr), ErrInval)
	}
	return nil
}

// Correction reads back a correction parameter. The value comes back
// sign-extended but quantized to the register granularity: the low 3
// bits (RX DC offset), 5 bits (TX DC offset) or 6 bits (phase/gain) are
// always zero.
func (d *Device) Correction(ch Channel, corr Correction) (int16, error) {
	if err := d.checkCorrection("Correction", ch, corr); err != nil {
		return 0, err
	}
	set, err := d.activeRegSet("Correction", ch)
	if err != nil {
		return 0, err
	}

	if !ch.IsTX() && (corr == CorrDCOffsetI || corr == CorrDCOffsetQ) {
		e := rxDCOffsetRegs[ch.Index()][set][corr]
		top, err := d.chip.ReadReg(e.top)
		if err != nil {
			return 0, chipError("Correction", err)
		}
		bot, err := d.chip.ReadReg(e.bot)
		if err != nil {
			return 0, chipError("Correction", err)
		}
		raw := uint16(top&e.s.topMask)<<e.s.topShift | uint16((bot>>e.s.botShift)&e.s.botMask)
		data := raw << 3
		if data&(1<<12) != 0 {
			data |= 0xF000
		}
		return int16(data), nil
	}

	e := corrRegTable[ch][corr]
	v, err := d.chip.ReadReg(e.reg[set])
	if err != nil {
		return 0, chipError("Correction", err)
	}
	data := uint16(v) << e.shift
	if e.shift == 5 {
		if data&(1<<12) != 0 {
			data |= 0xF000
		}
	} else {
		if data&(1<<13) != 0 {
			data |= 0xC000
		}
	}
	return int16(data), nil
}

// SetCorrection writes a correction parameter and latches it into the
// signal path via the force register. Values are quantized to the
// register granularity; bits sharing a register with other correction
// words are preserved.
func (d *Device) SetCorrection(ch Channel, corr Correction, value int16) error {
	if err := d.checkCorrection("SetCorrection", ch, corr); err != nil {
		return err
	}
	set, err := d.activeRegSet("SetCorrection", ch)
	if err != nil {
		return err
	}

	if !ch.IsTX() && (corr == CorrDCOffsetI || corr == CorrDCOffsetQ) {
		e := rxDCOffsetRegs[ch.Index()][set][corr]
		v := uint16(value >> 3)
		top, err := d.chip.ReadReg(e.top)
		if err != nil {
			return chipError("SetCorrection", err)
		}
		bot, err := d.chip.ReadReg(e.bot)
		if err != nil {
			return chipError("SetCorrection", err)
		}
		top = top&^e.s.topMask | uint8(v>>e.s.topShift)&e.s.topMask
		bot = bot&^(e.s.botMask<<e.s.botShift) | uint8(v&uint16(e.s.botMask))<<e.s.botShift
		if err := d.chip.WriteReg(e.top, top); err != nil {
			return chipError("SetCorrection", err)
		}
		if err := d.chip.WriteReg(e.bot, bot); err != nil {
			return chipError("SetCorrection", err)
		}
	} else {
		e := corrRegTable[ch][corr]
		if err := d.chip.WriteReg(e.reg[set], uint8(value>>e.shift)); err != nil {
			return chipError("SetCorrection", err)
		}
	}

	freg := uint16(ad9361.RegForceBits)
	if ch.IsTX() {
		freg = ad9361.RegTXForceBits
	}
	fv, err := d.chip.ReadReg(freg)
	if err != nil {
		return chipError("SetCorrection", err)
	}
	fv |= 1 << corrForceBit[ch.Index()][corr][set]
	if err := d.chip.WriteReg(freg, fv); err != nil {
		return chipError("SetCorrection", err)
	}
	return nil
}
