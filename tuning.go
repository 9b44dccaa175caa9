// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package bladerf

import (
	"fmt"

	"github.com/butshuti/bladeRF/ad9361"
)

var sampleRateRange = Range{Min: 2083334, Max: 61440000, Step: 1, Scale: 1}
var bandwidthRange = Range{Min: 200e3, Max: 56e6, Step: 1, Scale: 1}

var rxFrequencyRange = Range{Min: 70e6, Max: 6000e6, Step: 2, Scale: 1}
var txFrequencyRange = Range{Min: 70e6, Max: 6000e6, Step: 2, Scale: 1}

// RationalRate expresses a sample rate as integer + num/den Hz.
type RationalRate struct {
	Integer uint64
	Num     uint64
	Den     uint64
}

// SampleRateRange returns the supported sample rate range in Hz.
func (d *Device) SampleRateRange(ch Channel) Range { return sampleRateRange }

// BandwidthRange returns the supported channel filter bandwidth range
// in Hz.
func (d *Device) BandwidthRange(ch Channel) Range { return bandwidthRange }

// FrequencyRange returns the tunable frequency range in Hz.
func (d *Device) FrequencyRange(ch Channel) Range {
	if ch.IsTX() {
		return txFrequencyRange
	}
	return rxFrequencyRange
}

// SetSampleRate sets a channel's sample rate in Hz and returns the rate
// actually achieved. Rates outside the supported range are rejected,
// not clamped: the chip's interpolation chains misbehave outside it.
func (d *Device) SetSampleRate(ch Channel, rate uint32) (uint32, error) {
	if err := d.checkState("SetSampleRate", StateInitialized); err != nil {
		return 0, err
	}
	if !ch.valid() {
		return 0, fmt.Errorf("SetSampleRate: invalid channel %d: %w", uint8(ch), ErrInval)
	}
	if !sampleRateRange.Contains(int64(rate)) {
		return 0, fmt.Errorf("SetSampleRate: %d Hz outside [%d,%d]: %w",
			rate, sampleRateRange.Min, sampleRateRange.Max, ErrRange)
	}
	var err error
	if ch.IsTX() {
		err = d.chip.SetTxSamplingFreq(rate)
	} else {
		err = d.chip.SetRxSamplingFreq(rate)
	}
	if err != nil {
		return 0, chipError("SetSampleRate", err)
	}
	return d.SampleRate(ch)
}

// SampleRate returns a channel's sample rate in Hz.
func (d *Device) SampleRate(ch Channel) (uint32, error) {
	if err := d.checkState("SampleRate", StateInitialized); err != nil {
		return 0, err
	}
	var rate uint32
	var err error
	if ch.IsTX() {
		rate, err = d.chip.GetTxSamplingFreq()
	} else {
		rate, err = d.chip.GetRxSamplingFreq()
	}
	if err != nil {
		return 0, chipError("SampleRate", err)
	}
	return rate, nil
}

// SetRationalSampleRate sets a channel's sample rate from a rational
// value. The hardware only supports integer rates; the fractional part
// is rounded in and the achieved rate comes back with Den 1.
func (d *Device) SetRationalSampleRate(ch Channel, rate RationalRate) (RationalRate, error) {
	integer := rate.Integer
	if rate.Den != 0 {
		integer += (rate.Num + rate.Den/2) / rate.Den
	}
	actual, err := d.SetSampleRate(ch, uint32(integer))
	if err != nil {
		return RationalRate{}, err
	}
	return RationalRate{Integer: uint64(actual), Den: 1}, nil
}

// RationalSampleRate returns a channel's sample rate in rational form.
func (d *Device) RationalSampleRate(ch Channel) (RationalRate, error) {
	rate, err := d.SampleRate(ch)
	if err != nil {
		return RationalRate{}, err
	}
	return RationalRate{Integer: uint64(rate), Den: 1}, nil
}

// SetBandwidth sets a channel's filter bandwidth in Hz and returns the
// bandwidth actually achieved. Values outside the supported range are
// clamped with a warning.
func (d *Device) SetBandwidth(ch Channel, bw uint32) (uint32, error) {
	if err := d.checkState("SetBandwidth", StateInitialized); err != nil {
		return 0, err
	}
	if !ch.valid() {
		return 0, fmt.Errorf("SetBandwidth: invalid channel %d: %w", uint8(ch), ErrInval)
	}
	clamped := uint32(bandwidthRange.Clamp(int64(bw)))
	if clamped != bw {
		d.log("SetBandwidth: %d Hz outside [%d,%d] on %s, clamping to %d",
			bw, bandwidthRange.Min, bandwidthRange.Max, ch, clamped)
	}
	var err error
	if ch.IsTX() {
		err = d.chip.SetTxRFBandwidth(clamped)
	} else {
		err = d.chip.SetRxRFBandwidth(clamped)
	}
	if err != nil {
		return 0, chipError("SetBandwidth", err)
	}
	return d.Bandwidth(ch)
}

// Bandwidth returns a channel's filter bandwidth in Hz.
func (d *Device) Bandwidth(ch Channel) (uint32, error) {
	if err := d.checkState("Bandwidth", StateInitialized); err != nil {
		return 0, err
	}
	var bw uint32
	var err error
	if ch.IsTX() {
		bw, err = d.chip.GetTxRFBandwidth()
	} else {
		bw, err = d.chip.GetRxRFBandwidth()
	}
	if err != nil {
		return 0, chipError("Bandwidth", err)
	}
	return bw, nil
}

// SetFrequency tunes a channel's LO to freq Hz and re-routes the RF
// front-end for the new band. Frequencies outside the tunable range
// are rejected.
func (d *Device) SetFrequency(ch Channel, freq uint64) error {
	if err := d.checkState("SetFrequency", StateInitialized); err != nil {
		return err
	}
	if !ch.valid() {
		return fmt.Errorf("SetFrequency: invalid channel %d: %w", uint8(ch), ErrInval)
	}
	rng := d.FrequencyRange(ch)
	if !rng.Contains(int64(freq)) {
		return fmt.Errorf("SetFrequency: %d Hz outside [%d,%d]: %w",
			freq, rng.Min, rng.Max, ErrRange)
	}
	var err error
	if ch.IsTX() {
		err = d.chip.SetTxLOFreq(freq)
	} else {
		err = d.chip.SetRxLOFreq(freq)
	}
	if err != nil {
		return chipError("SetFrequency", err)
	}
	// The switch matrix must follow the LO; skipping this leaves the
	// front-end routed for the previous band.
	return d.SelectBand(ch, freq)
}

// Frequency returns the channel's tuned LO frequency in Hz.
func (d *Device) Frequency(ch Channel) (uint64, error) {
	if err := d.checkState("Frequency", StateInitialized); err != nil {
		return 0, err
	}
	var freq uint64
	var err error
	if ch.IsTX() {
		freq, err = d.chip.GetTxLOFreq()
	} else {
		freq, err = d.chip.GetRxLOFreq()
	}
	if err != nil {
		return 0, chipError("Frequency", err)
	}
	return freq, nil
}

type portID struct {
	name string
	id   uint32
}

var rxPortNames = []portID{
	{"A_BALANCED", ad9361.PortABalanced},
	{"B_BALANCED", ad9361.PortBBalanced},
	{"C_BALANCED", ad9361.PortCBalanced},
	{"A_N", ad9361.PortAN},
	{"A_P", ad9361.PortAP},
	{"B_N", ad9361.PortBN},
	{"B_P", ad9361.PortBP},
	{"C_N", ad9361.PortCN},
	{"C_P", ad9361.PortCP},
	{"TX_MON1", ad9361.PortTXMon1},
	{"TX_MON2", ad9361.PortTXMon2},
	{"TX_MON1_2", ad9361.PortTXMon1and2},
}

var txPortNames = []portID{
	{"TXA", ad9361.PortTXA},
	{"TXB", ad9361.PortTXB},
}

// RFPorts lists the RF port names selectable on a channel.
func (d *Device) RFPorts(ch Channel) []string {
	ports := rxPortNames
	if ch.IsTX() {
		ports = txPortNames
	}
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.name
	}
	return names
}

// SetRFPort selects a channel's RF port by name, overriding the routing
// SelectBand chose.
func (d *Device) SetRFPort(ch Channel, name string) error {
	if err := d.checkState("SetRFPort", StateInitialized); err != nil {
		return err
	}
	ports := rxPortNames
	if ch.IsTX() {
		ports = txPortNames
	}
	for _, p := range ports {
		if p.name == name {
			var err error
			if ch.IsTX() {
				err = d.chip.SetTxRFPortOutput(p.id)
			} else {
				err = d.chip.SetRxRFPortInput(p.id)
			}
			if err != nil {
				return chipError("SetRFPort", err)
			}
			return nil
		}
	}
	return fmt.Errorf("SetRFPort: unknown port %q on %s: %w", name, ch, ErrInval)
}

// RFPort returns the name of the channel's selected RF port.
func (d *Device) RFPort(ch Channel) (string, error) {
	if err := d.checkState("RFPort", StateInitialized); err != nil {
		return "", err
	}
	var id uint32
	var err error
	if ch.IsTX() {
		id, err = d.chip.GetTxRFPortOutput()
	} else {
		id, err = d.chip.GetRxRFPortInput()
	}
	if err != nil {
		return "", chipError("RFPort", err)
	}
	ports := rxPortNames
	if ch.IsTX() {
		ports = txPortNames
	}
	for _, p := range ports {
		if p.id == id {
			return p.name, nil
		}
	}
	return "", fmt.Errorf("RFPort: chip reports unknown port %d on %s: %w", id, ch, ErrUnexpected)
}
