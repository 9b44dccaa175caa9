// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package ad9361

// SPI instruction word framing. The chip expects a 16-bit instruction
// word followed by data bytes: bit 15 selects write, bits 9:0 carry the
// register address.
const (
	SpiWriteBit = 0x8000
	SpiAddrMask = 0x03FF
)

// Correction block registers. The force registers latch manual
// correction values into the signal path; the remaining registers hold
// quadrature phase/gain correction words and DC offset words for each
// input/output register set.
const (
	RegForceBits   = 0x169 // RX correction force bits
	RegTXForceBits = 0x16A // TX correction force bits

	// Input A register set.
	RegRX1InputAPhaseCorr = 0x170 // phase corr word, bits 13:6
	RegRX1InputAGainCorr  = 0x171 // gain corr word, bits 13:6
	RegRX2InputAPhaseCorr = 0x172
	RegRX2InputAGainCorr  = 0x173
	RegTX1Out1PhaseCorr   = 0x174
	RegTX1Out1GainCorr    = 0x175
	RegTX2Out1PhaseCorr   = 0x176
	RegTX2Out1GainCorr    = 0x177
	RegTX1Out1OffsetI     = 0x178 // DC offset word, bits 12:5
	RegTX1Out1OffsetQ     = 0x179
	RegTX2Out1OffsetI     = 0x17A
	RegTX2Out1OffsetQ     = 0x17B

	// RX DC offsets for input A are packed across shared registers.
	RegInputAOffsets1   = 0x17C
	RegRX1InputAOffsets = 0x17D
	RegRX1InputAQOffset = 0x17E
	RegRX2InputAIOffset = 0x17F
	RegRX2InputAOffsets = 0x180

	// Input B/C register set, mirroring the A set.
	RegRX1InputBCPhaseCorr = 0x181
	RegRX1InputBCGainCorr  = 0x182
	RegRX2InputBCPhaseCorr = 0x183
	RegRX2InputBCGainCorr  = 0x184
	RegTX1Out2PhaseCorr    = 0x185
	RegTX1Out2GainCorr     = 0x186
	RegTX2Out2PhaseCorr    = 0x187
	RegTX2Out2GainCorr     = 0x188
	RegTX1Out2OffsetI      = 0x189
	RegTX1Out2OffsetQ      = 0x18A
	RegTX2Out2OffsetI      = 0x18B
	RegTX2Out2OffsetQ      = 0x18C

	RegInputBCOffsets1   = 0x18D
	RegRX1InputBCOffsets = 0x18E
	RegRX1InputBCQOffset = 0x18F
	RegRX2InputBCIOffset = 0x190
	RegRX2InputBCOffsets = 0x191
)
