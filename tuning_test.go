// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package bladerf_test

import (
	"errors"
	"testing"

	bladerf "github.com/butshuti/bladeRF"
)

// Sample rates outside the supported range are rejected outright,
// while bandwidth is clamped. The asymmetry is deliberate: an invalid
// rate would break the chip's filter chains, an extreme bandwidth just
// saturates the analog filter.
func TestSampleRateRejectsBandwidthClamps(t *testing.T) {
	dev, _, chip := openSim(t)
	defer dev.Close()

	if _, err := dev.SetSampleRate(bladerf.ChannelRX1, 1000000); !errors.Is(err, bladerf.ErrRange) {
		t.Fatalf("low rate: got %v, want ErrRange", err)
	}
	if _, err := dev.SetSampleRate(bladerf.ChannelRX1, 62000000); !errors.Is(err, bladerf.ErrRange) {
		t.Fatalf("high rate: got %v, want ErrRange", err)
	}
	if chip.Calls["SetRxSamplingFreq"] != 0 {
		t.Errorf("rejected rates reached the chip")
	}
	actual, err := dev.SetSampleRate(bladerf.ChannelRX1, 30720000)
	if err != nil || actual != 30720000 {
		t.Fatalf("SetSampleRate = %d, %v", actual, err)
	}

	bw, err := dev.SetBandwidth(bladerf.ChannelRX1, 100e3)
	if err != nil || bw != 200e3 {
		t.Errorf("low bandwidth: got %d, %v, want clamp to 200000", bw, err)
	}
	if chip.RxBW != 200e3 {
		t.Errorf("chip bandwidth = %d", chip.RxBW)
	}
	bw, err = dev.SetBandwidth(bladerf.ChannelTX1, 100e6)
	if err != nil || bw != 56e6 {
		t.Errorf("high bandwidth: got %d, %v, want clamp to 56000000", bw, err)
	}
}

func TestRationalSampleRate(t *testing.T) {
	dev, _, _ := openSim(t)
	defer dev.Close()

	got, err := dev.SetRationalSampleRate(bladerf.ChannelTX1,
		bladerf.RationalRate{Integer: 30720000, Num: 1, Den: 2})
	if err != nil {
		t.Fatalf("SetRationalSampleRate: %v", err)
	}
	if got.Integer != 30720001 || got.Den != 1 || got.Num != 0 {
		t.Errorf("achieved rate = %+v", got)
	}
	rr, err := dev.RationalSampleRate(bladerf.ChannelTX1)
	if err != nil || rr.Integer != 30720001 {
		t.Errorf("RationalSampleRate = %+v, %v", rr, err)
	}
}

// Tuning rejects out-of-range frequencies and re-routes the front-end
// for every accepted one.
func TestSetFrequency(t *testing.T) {
	dev, be, chip := openSim(t)
	defer dev.Close()

	if err := dev.SetFrequency(bladerf.ChannelRX1, 10e6); !errors.Is(err, bladerf.ErrRange) {
		t.Fatalf("low frequency: got %v, want ErrRange", err)
	}
	if err := dev.SetFrequency(bladerf.ChannelRX1, 6100e6); !errors.Is(err, bladerf.ErrRange) {
		t.Fatalf("high frequency: got %v, want ErrRange", err)
	}
	if chip.Calls["SetRxLOFreq"] != 0 {
		t.Errorf("rejected frequencies reached the chip")
	}

	if err := dev.SetFrequency(bladerf.ChannelRX1, 2400e6); err != nil {
		t.Fatalf("SetFrequency: %v", err)
	}
	if chip.RxLO != 2400e6 {
		t.Errorf("LO = %d, want 2400 MHz", chip.RxLO)
	}
	if f, err := dev.Frequency(bladerf.ChannelRX1); err != nil || f != 2400e6 {
		t.Errorf("Frequency = %d, %v", f, err)
	}
	// The channel is disabled, so the switches stay parked in shutdown
	// even though the LO moved.
	if be.RFFE&(0xF<<6) != 0 {
		t.Errorf("RX switch field = %#x on disabled channel", be.RFFE&(0xF<<6))
	}
}

func TestRFPorts(t *testing.T) {
	dev, _, chip := openSim(t)
	defer dev.Close()

	if got := dev.RFPorts(bladerf.ChannelRX1); len(got) != 12 {
		t.Errorf("RX port count = %d, want 12", len(got))
	}
	if got := dev.RFPorts(bladerf.ChannelTX1); len(got) != 2 || got[0] != "TXA" || got[1] != "TXB" {
		t.Errorf("TX ports = %v", got)
	}

	if err := dev.SetRFPort(bladerf.ChannelRX1, "C_BALANCED"); err != nil {
		t.Fatalf("SetRFPort: %v", err)
	}
	if chip.RxPort != 2 {
		t.Errorf("chip RX port = %d, want 2", chip.RxPort)
	}
	if name, err := dev.RFPort(bladerf.ChannelRX1); err != nil || name != "C_BALANCED" {
		t.Errorf("RFPort = %q, %v", name, err)
	}
	if err := dev.SetRFPort(bladerf.ChannelTX1, "TXB"); err != nil {
		t.Fatalf("SetRFPort TX: %v", err)
	}
	if chip.TxPort != 1 {
		t.Errorf("chip TX port = %d, want 1", chip.TxPort)
	}
	if err := dev.SetRFPort(bladerf.ChannelRX1, "RF9"); !errors.Is(err, bladerf.ErrInval) {
		t.Errorf("unknown port: got %v, want ErrInval", err)
	}
}
