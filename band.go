// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package bladerf

import (
	"fmt"

	"github.com/butshuti/bladeRF/ad9361"
)

// RFFE control register bits. The register lives in the FPGA and
// drives the RF front-end switches, enables and bias tees.
const (
	rffeControlResetN    = 0 // RF chip RESET_N
	rffeControlEnable    = 1 // RX chains enable
	rffeControlTXNRX     = 2 // TX chains enable
	rffeControlEnAGC     = 3
	rffeControlSyncIn    = 4
	rffeControlRXBiasEn  = 5
	rffeControlRXSwShift = 6 // RX switch field, 4 bits
	rffeControlTXBiasEn  = 10
	rffeControlTXSwShift = 11 // TX switch field, 4 bits
	rffeControlSPDTMask  = 0xF
)

// SPDT switch field values.
const (
	spdtShutdown uint32 = 0x0
	spdtLowBand  uint32 = 0xA // RF1 <-> RF3
	spdtHighBand uint32 = 0x5 // RF1 <-> RF2
)

// Band identifies which RF front-end signal path is selected.
type Band int

const (
	BandShutdown Band = iota // no path, switches open
	BandLow                  // low-band path through the matching network
	BandHigh                 // high-band path, direct
)

func (b Band) String() string {
	switch b {
	case BandShutdown:
		return "Shutdown"
	case BandLow:
		return "Low"
	case BandHigh:
		return "High"
	}
	return "Unknown"
}

type bandMapping struct {
	band Band
	freq Range
}

// Frequency-to-band maps per direction. The ranges tile the tunable
// spectrum: every in-range frequency maps to exactly one band.
var rxBandMap = []bandMapping{
	{BandLow, Range{Min: 70e6, Max: 3000e6, Step: 2, Scale: 1}},
	{BandHigh, Range{Min: 3000e6 + 1, Max: 6000e6, Step: 2, Scale: 1}},
}

var txBandMap = []bandMapping{
	{BandLow, Range{Min: 46875000, Max: 3000e6, Step: 2, Scale: 1}},
	{BandHigh, Range{Min: 3000e6 + 1, Max: 6000e6, Step: 2, Scale: 1}},
}

// bandForFrequency maps a frequency onto the band serving it. The
// second return is false when the frequency is outside the tunable
// range.
func bandForFrequency(ch Channel, freq uint64) (Band, bool) {
	m := rxBandMap
	if ch.IsTX() {
		m = txBandMap
	}
	for _, e := range m {
		if e.freq.Contains(int64(freq)) {
			return e.band, true
		}
	}
	return BandShutdown, false
}

// bandPort ties a band to its switch field value and RF chip port.
type bandPort struct {
	band Band
	spdt uint32
	port uint32
}

var rxBandPorts = []bandPort{
	{BandShutdown, spdtShutdown, 0},
	{BandLow, spdtLowBand, ad9361.PortBBalanced},
	{BandHigh, spdtHighBand, ad9361.PortABalanced},
}

var txBandPorts = []bandPort{
	{BandShutdown, spdtShutdown, 0},
	{BandLow, spdtLowBand, ad9361.PortTXB},
	{BandHigh, spdtHighBand, ad9361.PortTXA},
}

// bandPortMap resolves the switch and port configuration for a channel.
// A disabled channel always resolves to the shutdown entry, and so does
// an enabled channel whose frequency no band serves; inBand reports the
// latter so callers can warn.
func bandPortMap(ch Channel, enabled bool, freq uint64) (pm bandPort, inBand bool) {
	band := BandShutdown
	inBand = true
	if enabled {
		if b, ok := bandForFrequency(ch, freq); ok {
			band = b
		} else {
			inBand = false
		}
	}
	ports := rxBandPorts
	if ch.IsTX() {
		ports = txBandPorts
	}
	for _, e := range ports {
		if e.band == band {
			return e, inBand
		}
	}
	// The tables always carry a shutdown entry.
	return ports[0], inBand
}

// channelEnabled reads a channel's enable bit out of the RFFE control
// register shadow.
func channelEnabled(reg uint32, ch Channel) bool {
	if ch.IsTX() {
		return reg&(1<<rffeControlTXNRX) != 0
	}
	return reg&(1<<rffeControlEnable) != 0
}

func spdtShift(ch Channel) uint {
	if ch.IsTX() {
		return rffeControlTXSwShift
	}
	return rffeControlRXSwShift
}

// applySPDT returns reg with the channel's switch field replaced by the
// value serving freq (or the shutdown value when disabled or out of
// band). The rest of the register is preserved; inBand is passed
// through from bandPortMap.
func applySPDT(reg uint32, ch Channel, enabled bool, freq uint64) (uint32, bool) {
	pm, inBand := bandPortMap(ch, enabled, freq)
	shift := spdtShift(ch)
	reg &^= rffeControlSPDTMask << shift
	reg |= pm.spdt << shift
	return reg, inBand
}

// setChipPort selects the RF chip input or output port serving freq on
// the channel's direction.
func (d *Device) setChipPort(ch Channel, enabled bool, freq uint64) error {
	pm, _ := bandPortMap(ch, enabled, freq)
	if ch.IsTX() {
		if err := d.chip.SetTxRFPortOutput(pm.port); err != nil {
			return chipError("set TX port", err)
		}
		return nil
	}
	if err := d.chip.SetRxRFPortInput(pm.port); err != nil {
		return chipError("set RX port", err)
	}
	return nil
}

// SelectBand routes the RF front-end for the given frequency: it picks
// the band, programs the switch field in the RFFE control register with
// a single write, and selects the matching RF chip port. The channel's
// current enable state is honored; selecting a band on a disabled
// channel parks its switches in shutdown, as does a frequency no band
// serves.
func (d *Device) SelectBand(ch Channel, freq uint64) error {
	if err := d.checkState("SelectBand", StateFPGALoaded); err != nil {
		return err
	}
	if !ch.valid() {
		return fmt.Errorf("SelectBand: invalid channel %d: %w", uint8(ch), ErrInval)
	}

	reg, err := d.backend.RFFEControlRead()
	if err != nil {
		return fmt.Errorf("SelectBand: RFFE read: %w", err)
	}
	enabled := channelEnabled(reg, ch)
	reg, inBand := applySPDT(reg, ch, enabled, freq)
	if !inBand {
		d.log("SelectBand: no band serves %d Hz on %s, shutting down", freq, ch)
	}
	if err := d.backend.RFFEControlWrite(reg); err != nil {
		return fmt.Errorf("SelectBand: RFFE write: %w", err)
	}

	if err := d.setChipPort(ch, enabled, freq); err != nil {
		return fmt.Errorf("SelectBand: %w", err)
	}
	return nil
}
