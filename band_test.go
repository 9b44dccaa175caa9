// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package bladerf

import "testing"

// TestBandForFrequency checks that every in-range frequency maps to
// exactly one band and that the band edges land where the front-end
// switches do.
func TestBandForFrequency(t *testing.T) {
	cases := map[string]struct {
		ch   Channel
		freq uint64
		band Band
		ok   bool
	}{
		"rx-min":        {ChannelRX1, 70e6, BandLow, true},
		"rx-below-min":  {ChannelRX1, 70e6 - 1, BandShutdown, false},
		"rx-2g4":        {ChannelRX1, 2400e6, BandLow, true},
		"rx-edge-low":   {ChannelRX1, 3000e6, BandLow, true},
		"rx-edge-high":  {ChannelRX1, 3000e6 + 1, BandHigh, true},
		"rx-4g":         {ChannelRX2, 4000e6, BandHigh, true},
		"rx-max":        {ChannelRX1, 6000e6, BandHigh, true},
		"rx-above-max":  {ChannelRX1, 6000e6 + 1, BandShutdown, false},
		"tx-min":        {ChannelTX1, 46875000, BandLow, true},
		"tx-below-min":  {ChannelTX1, 46875000 - 1, BandShutdown, false},
		"tx-2g4":        {ChannelTX1, 2400e6, BandLow, true},
		"tx-edge-high":  {ChannelTX2, 3000e6 + 1, BandHigh, true},
		"tx-max":        {ChannelTX1, 6000e6, BandHigh, true},
		"zero-disabled": {ChannelRX1, 0, BandShutdown, false},
	}
	for name, c := range cases {
		band, ok := bandForFrequency(c.ch, c.freq)
		if band != c.band || ok != c.ok {
			t.Errorf("%s: bandForFrequency(%s, %d) = %s,%v, want %s,%v",
				name, c.ch, c.freq, band, ok, c.band, c.ok)
		}
	}
}

// Sweep the full tunable range: no frequency may fall between bands.
func TestBandTotality(t *testing.T) {
	for _, ch := range []Channel{ChannelRX1, ChannelTX1} {
		rng := rxFrequencyRange
		if ch.IsTX() {
			rng = txFrequencyRange
		}
		for f := rng.Min; f <= rng.Max; f += 1e6 {
			if band, ok := bandForFrequency(ch, uint64(f)); !ok || band == BandShutdown {
				t.Fatalf("%s: no band at %d Hz", ch, f)
			}
		}
	}
}

func TestBandPortMap(t *testing.T) {
	cases := map[string]struct {
		ch      Channel
		enabled bool
		freq    uint64
		band    Band
		spdt    uint32
		port    uint32
		inBand  bool
	}{
		"rx-low":      {ChannelRX1, true, 2400e6, BandLow, spdtLowBand, 1, true},   // B_BALANCED
		"rx-high":     {ChannelRX1, true, 4000e6, BandHigh, spdtHighBand, 0, true}, // A_BALANCED
		"tx-low":      {ChannelTX1, true, 2400e6, BandLow, spdtLowBand, 1, true},   // TXB
		"tx-high":     {ChannelTX1, true, 4000e6, BandHigh, spdtHighBand, 0, true}, // TXA
		"rx-disabled": {ChannelRX1, false, 2400e6, BandShutdown, spdtShutdown, 0, true},
		"tx-disabled": {ChannelTX1, false, 5000e6, BandShutdown, spdtShutdown, 0, true},
		// An unservable frequency on an enabled channel resolves to
		// shutdown, it is not an error.
		"rx-below-band": {ChannelRX1, true, 10e6, BandShutdown, spdtShutdown, 0, false},
		"tx-above-band": {ChannelTX1, true, 7000e6, BandShutdown, spdtShutdown, 0, false},
	}
	for name, c := range cases {
		pm, inBand := bandPortMap(c.ch, c.enabled, c.freq)
		if pm.band != c.band || pm.spdt != c.spdt || pm.port != c.port || inBand != c.inBand {
			t.Errorf("%s: got {%s %#x %d},%v, want {%s %#x %d},%v",
				name, pm.band, pm.spdt, pm.port, inBand, c.band, c.spdt, c.port, c.inBand)
		}
	}
}

func TestApplySPDT(t *testing.T) {
	// The switch field lands at the right shift and leaves the rest of
	// the register alone.
	reg, inBand := applySPDT(0, ChannelRX1, true, 2400e6)
	if !inBand || reg != spdtLowBand<<rffeControlRXSwShift {
		t.Errorf("RX low: got %#x, %v", reg, inBand)
	}
	reg, inBand = applySPDT(0, ChannelTX1, true, 4000e6)
	if !inBand || reg != spdtHighBand<<rffeControlTXSwShift {
		t.Errorf("TX high: got %#x, %v", reg, inBand)
	}

	// Other bits, including the other direction's switch field, are
	// preserved; the old field value is fully replaced.
	prev := uint32(1<<rffeControlEnable) | spdtHighBand<<rffeControlTXSwShift |
		spdtHighBand<<rffeControlRXSwShift
	reg, inBand = applySPDT(prev, ChannelRX1, true, 2400e6)
	if !inBand {
		t.Fatalf("2.4GHz reported out of band")
	}
	want := uint32(1<<rffeControlEnable) | spdtHighBand<<rffeControlTXSwShift |
		spdtLowBand<<rffeControlRXSwShift
	if reg != want {
		t.Errorf("got %#x, want %#x", reg, want)
	}

	// Disabling parks the field in shutdown regardless of frequency.
	reg, inBand = applySPDT(reg, ChannelRX1, false, 0)
	if !inBand || reg&(rffeControlSPDTMask<<rffeControlRXSwShift) != 0 {
		t.Errorf("disabled: got %#x, %v", reg, inBand)
	}

	// An enabled channel out of band parks in shutdown too, while the
	// rest of the register survives.
	reg, inBand = applySPDT(want, ChannelRX1, true, 10e6)
	if inBand {
		t.Errorf("10MHz reported in band")
	}
	if reg != uint32(1<<rffeControlEnable)|spdtHighBand<<rffeControlTXSwShift {
		t.Errorf("out-of-band: got %#x", reg)
	}
}

func TestChannelEnabled(t *testing.T) {
	if channelEnabled(0, ChannelRX1) || channelEnabled(0, ChannelTX1) {
		t.Errorf("empty register reports enabled")
	}
	if !channelEnabled(1<<rffeControlEnable, ChannelRX1) {
		t.Errorf("RX enable bit not honored")
	}
	if channelEnabled(1<<rffeControlEnable, ChannelTX1) {
		t.Errorf("RX enable bit leaks into TX")
	}
	if !channelEnabled(1<<rffeControlTXNRX, ChannelTX2) {
		t.Errorf("TX enable bit not honored")
	}
}

func TestChannelEncoding(t *testing.T) {
	cases := []struct {
		ch  Channel
		tx  bool
		idx uint8
	}{
		{ChannelRX1, false, 0},
		{ChannelTX1, true, 0},
		{ChannelRX2, false, 1},
		{ChannelTX2, true, 1},
	}
	for _, c := range cases {
		if c.ch.IsTX() != c.tx || c.ch.Index() != c.idx {
			t.Errorf("%s: IsTX=%v Index=%d", c.ch, c.ch.IsTX(), c.ch.Index())
		}
	}
	if ChannelRX(1) != ChannelRX2 || ChannelTX(1) != ChannelTX2 {
		t.Errorf("channel constructors disagree with constants")
	}
}

func TestRangeClamp(t *testing.T) {
	r := Range{Min: -89750, Max: 0, Step: 250, Scale: 0.001}
	if r.Clamp(-10) != -10 {
		t.Errorf("in-range value modified")
	}
	if got := r.Clamp(-100); got != -89 {
		t.Errorf("clamp below min: got %d, want -89", got)
	}
	if got := r.Clamp(5); got != 0 {
		t.Errorf("clamp above max: got %d, want 0", got)
	}
	if !r.Contains(-89) || r.Contains(-90) {
		t.Errorf("Contains disagrees with scaled bounds")
	}
}
