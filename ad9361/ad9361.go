// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package ad9361 defines the interface to the Analog Devices AD9361
// RF transceiver chip as used by the bladeRF 2.0 micro driver. The chip
// integrates two receive and two transmit chains with programmable LO
// synthesizers, gain control, channel filters and FIR stages.
//
// The package does not talk to hardware itself. A Chip implementation
// carries the transport (typically SPI tunneled through the board's USB
// firmware) and this package fixes the vocabulary: channel indices, RF
// port identifiers, gain control modes, and the chip register map the
// correction machinery in the parent package operates on.
package ad9361

import "errors"

// Chip errors. Implementations must return one of these sentinels
// (possibly wrapped) so callers can map chip failures onto their own
// error taxonomy with errors.Is.
var (
	ErrIO      = errors.New("ad9361: input/output error")
	ErrAgain   = errors.New("ad9361: resource temporarily unavailable")
	ErrNoMem   = errors.New("ad9361: out of memory")
	ErrFault   = errors.New("ad9361: bad address")
	ErrNoDev   = errors.New("ad9361: no such device")
	ErrInval   = errors.New("ad9361: invalid argument")
	ErrTimeout = errors.New("ad9361: timed out")
)

// GainCtrlMode selects how a receive channel's gain is managed.
type GainCtrlMode uint8

const (
	GainMGC        GainCtrlMode = 0 // manual gain control
	GainFastAttack GainCtrlMode = 1
	GainSlowAttack GainCtrlMode = 2
	GainHybrid     GainCtrlMode = 3
)

// RX input port identifiers, in the chip's own numbering.
const (
	PortABalanced uint32 = iota
	PortBBalanced
	PortCBalanced
	PortAN
	PortAP
	PortBN
	PortBP
	PortCN
	PortCP
	PortTXMon1
	PortTXMon2
	PortTXMon1and2
)

// TX output port identifiers.
const (
	PortTXA uint32 = 0
	PortTXB uint32 = 1
)

// InitParams holds the subset of the chip's power-up configuration that
// the board driver consults after initialization. The full parameter
// set lives with the Chip implementation; these fields are the ones the
// driver needs to restore defaults at runtime.
type InitParams struct {
	// Reference clock into the chip, in Hz.
	RefClkHz uint64
	// Initial LO frequencies programmed by Init, in Hz.
	TxSynthHz uint64
	RxSynthHz uint64
	// Power-up gain control mode per receive channel.
	GcRX1Mode GainCtrlMode
	GcRX2Mode GainCtrlMode
}

// GcRXMode returns the power-up gain control mode for receive channel
// index ch (0 or 1).
func (p *InitParams) GcRXMode(ch uint8) GainCtrlMode {
	if ch == 0 {
		return p.GcRX1Mode
	}
	return p.GcRX2Mode
}

// DefaultInitParams matches the bladeRF 2.0 micro reference
// configuration: 38.4MHz reference, both synthesizers parked at
// 2.4GHz, slow-attack AGC on both receive channels.
var DefaultInitParams = InitParams{
	RefClkHz:  38400000,
	TxSynthHz: 2400000000,
	RxSynthHz: 2400000000,
	GcRX1Mode: GainSlowAttack,
	GcRX2Mode: GainSlowAttack,
}

// FIRConfig describes a programmable FIR filter stage. Coefficients
// are signed 16-bit taps; the rate field is the decimation factor for
// RX configs and the interpolation factor for TX configs.
type FIRConfig struct {
	Rate    uint8
	Gain    int8
	Coef    []int16
	NumCoef uint8
}

// RxGain is the composite gain report for a receive channel.
type RxGain struct {
	// Overall RF gain in dB, referenced to the LNA input.
	GainDB int32
	// Digital (post-ADC) gain contribution in dB.
	DigitalGain int32
}

// Chip is the control surface of an AD9361. Channel arguments are
// 0-based chain indices (0 for RX1/TX1, 1 for RX2/TX2). All frequency
// arguments are Hz.
type Chip interface {
	// Init brings the chip out of reset and applies params. It must be
	// called before any other method.
	Init(params *InitParams) error
	Deinit() error

	SetTxFIRConfig(cfg FIRConfig) error
	SetRxFIRConfig(cfg FIRConfig) error
	SetRxFIREnable(enable bool) error

	SetTxLOFreq(hz uint64) error
	GetTxLOFreq() (uint64, error)
	SetRxLOFreq(hz uint64) error
	GetRxLOFreq() (uint64, error)

	SetTxSamplingFreq(hz uint32) error
	GetTxSamplingFreq() (uint32, error)
	SetRxSamplingFreq(hz uint32) error
	GetRxSamplingFreq() (uint32, error)

	SetTxRFBandwidth(hz uint32) error
	GetTxRFBandwidth() (uint32, error)
	SetRxRFBandwidth(hz uint32) error
	GetRxRFBandwidth() (uint32, error)

	SetRxRFGain(ch uint8, gainDB int32) error
	GetRxRFGain(ch uint8) (int32, error)
	GetRxGain(ch uint8) (RxGain, error)
	SetRxGainControlMode(ch uint8, mode GainCtrlMode) error
	GetRxGainControlMode(ch uint8) (GainCtrlMode, error)

	// TX gain is expressed as attenuation in milli-dB below full scale.
	SetTxAttenuation(ch uint8, mdB uint32) error
	GetTxAttenuation(ch uint8) (uint32, error)

	SetTxRFPortOutput(port uint32) error
	GetTxRFPortOutput() (uint32, error)
	SetRxRFPortInput(port uint32) error
	GetRxRFPortInput() (uint32, error)

	// Raw register access, used by the correction codec and for
	// diagnostics.
	ReadReg(addr uint16) (uint8, error)
	WriteReg(addr uint16, val uint8) error

	// BIST digital loopback: 0 disables, 1 routes TX data back to RX
	// inside the chip.
	SetBISTLoopback(mode int32) error
	GetBISTLoopback() (int32, error)
}
