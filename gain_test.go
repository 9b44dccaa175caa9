// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package bladerf_test

import (
	"errors"
	"testing"

	bladerf "github.com/butshuti/bladeRF"
	"github.com/butshuti/bladeRF/ad9361"
)

// TX gain is handed to the chip as attenuation in milli-dB; setting
// and reading back must agree.
func TestTXGain(t *testing.T) {
	dev, _, chip := openSim(t)
	defer dev.Close()

	if err := dev.SetGain(bladerf.ChannelTX1, -10); err != nil {
		t.Fatalf("SetGain: %v", err)
	}
	if chip.TxAtten[0] != 10000 {
		t.Errorf("attenuation = %d mdB, want 10000", chip.TxAtten[0])
	}
	if g, err := dev.Gain(bladerf.ChannelTX1); err != nil || g != -10 {
		t.Errorf("Gain = %d, %v, want -10", g, err)
	}

	// Out-of-range values clamp with the driver's truncation.
	if err := dev.SetGain(bladerf.ChannelTX1, 5); err != nil {
		t.Fatalf("SetGain: %v", err)
	}
	if chip.TxAtten[0] != 0 {
		t.Errorf("clamp above max: attenuation = %d", chip.TxAtten[0])
	}
	if err := dev.SetGain(bladerf.ChannelTX1, -100); err != nil {
		t.Fatalf("SetGain: %v", err)
	}
	if chip.TxAtten[0] != 89000 {
		t.Errorf("clamp below min: attenuation = %d, want 89000", chip.TxAtten[0])
	}
}

func TestRXGain(t *testing.T) {
	dev, _, chip := openSim(t)
	defer dev.Close()

	// The simulator powers up tuned to 2.4GHz, where gain spans -4..71.
	if err := dev.SetGain(bladerf.ChannelRX1, 60); err != nil {
		t.Fatalf("SetGain: %v", err)
	}
	if chip.RxGain[0] != 60 {
		t.Errorf("chip gain = %d, want 60", chip.RxGain[0])
	}
	if g, err := dev.Gain(bladerf.ChannelRX1); err != nil || g != 60 {
		t.Errorf("Gain = %d, %v, want 60", g, err)
	}
	if err := dev.SetGain(bladerf.ChannelRX1, -20); err != nil {
		t.Fatalf("SetGain: %v", err)
	}
	if chip.RxGain[0] != -4 {
		t.Errorf("clamp below min: chip gain = %d, want -4", chip.RxGain[0])
	}
}

// The usable RX gain range tracks the tuned frequency.
func TestRXGainRangeByFrequency(t *testing.T) {
	dev, _, _ := openSim(t)
	defer dev.Close()

	cases := map[string]struct {
		freq     uint64
		min, max int64
	}{
		"800M": {800e6, 1, 77},
		"2G4":  {2400e6, -4, 71},
		"4G2":  {4200e6, -10, 62},
	}
	for name, c := range cases {
		if err := dev.SetFrequency(bladerf.ChannelRX1, c.freq); err != nil {
			t.Fatalf("%s: SetFrequency: %v", name, err)
		}
		rng, err := dev.GainRange(bladerf.ChannelRX1)
		if err != nil {
			t.Fatalf("%s: GainRange: %v", name, err)
		}
		if rng.Min != c.min || rng.Max != c.max {
			t.Errorf("%s: range [%d,%d], want [%d,%d]", name, rng.Min, rng.Max, c.min, c.max)
		}
	}
}

func TestGainMode(t *testing.T) {
	dev, _, chip := openSim(t)
	defer dev.Close()

	if err := dev.SetGainMode(bladerf.ChannelRX1, bladerf.GainMGC); err != nil {
		t.Fatalf("SetGainMode: %v", err)
	}
	if chip.RxMode[0] != ad9361.GainMGC {
		t.Errorf("chip mode = %d, want MGC", chip.RxMode[0])
	}
	if m, err := dev.GainMode(bladerf.ChannelRX1); err != nil || m != bladerf.GainMGC {
		t.Errorf("GainMode = %s, %v", m, err)
	}

	// Default restores the power-up mode, slow attack.
	if err := dev.SetGainMode(bladerf.ChannelRX1, bladerf.GainDefault); err != nil {
		t.Fatalf("SetGainMode default: %v", err)
	}
	if chip.RxMode[0] != ad9361.GainSlowAttack {
		t.Errorf("chip mode = %d after default, want slow attack", chip.RxMode[0])
	}
	if m, err := dev.GainMode(bladerf.ChannelRX1); err != nil || m != bladerf.GainSlowAttackAGC {
		t.Errorf("GainMode = %s, %v", m, err)
	}

	if err := dev.SetGainMode(bladerf.ChannelTX1, bladerf.GainMGC); !errors.Is(err, bladerf.ErrUnsupported) {
		t.Errorf("TX gain mode: got %v, want ErrUnsupported", err)
	}
	if _, err := dev.GainMode(bladerf.ChannelTX1); !errors.Is(err, bladerf.ErrUnsupported) {
		t.Errorf("TX gain mode get: got %v, want ErrUnsupported", err)
	}
}

func TestGainStages(t *testing.T) {
	dev, _, chip := openSim(t)
	defer dev.Close()

	rx := dev.GainStages(bladerf.ChannelRX1)
	if len(rx) != 2 || rx[0] != "full" || rx[1] != "digital" {
		t.Errorf("RX stages = %v", rx)
	}
	tx := dev.GainStages(bladerf.ChannelTX1)
	if len(tx) != 1 || tx[0] != "dsa" {
		t.Errorf("TX stages = %v", tx)
	}

	if err := dev.SetGainStage(bladerf.ChannelRX1, "full", 30); err != nil {
		t.Fatalf("SetGainStage full: %v", err)
	}
	if chip.RxGain[0] != 30 {
		t.Errorf("chip gain = %d, want 30", chip.RxGain[0])
	}

	chip.DigitalGain[0] = 12
	if g, err := dev.GainStage(bladerf.ChannelRX1, "digital"); err != nil || g != 12 {
		t.Errorf("digital stage = %d, %v, want 12", g, err)
	}

	// Read-only and unknown stages are ignored, not errors.
	before := chip.Calls["SetRxRFGain"]
	if err := dev.SetGainStage(bladerf.ChannelRX1, "digital", 5); err != nil {
		t.Errorf("digital stage write: %v", err)
	}
	if err := dev.SetGainStage(bladerf.ChannelRX1, "lna", 5); err != nil {
		t.Errorf("unknown stage write: %v", err)
	}
	if chip.Calls["SetRxRFGain"] != before {
		t.Errorf("ignored stage writes reached the chip")
	}
	if g, err := dev.GainStage(bladerf.ChannelRX1, "lna"); err != nil || g != 0 {
		t.Errorf("unknown stage read = %d, %v, want 0", g, err)
	}

	if _, err := dev.GainStageRange(bladerf.ChannelRX1, "lna"); !errors.Is(err, bladerf.ErrInval) {
		t.Errorf("unknown stage range: got %v, want ErrInval", err)
	}
	if rng, err := dev.GainStageRange(bladerf.ChannelTX1, "dsa"); err != nil || rng.Max != 0 || rng.Min != -89750 {
		t.Errorf("dsa range = %+v, %v", rng, err)
	}
}

// A receive channel whose LO sits outside every gain sub-band has no
// gain range; that is a range failure, not an internal one.
func TestRXGainRangeOutOfBand(t *testing.T) {
	dev, _, chip := openSim(t)
	defer dev.Close()

	chip.RxLO = 7000e6
	if _, err := dev.GainRange(bladerf.ChannelRX1); !errors.Is(err, bladerf.ErrRange) {
		t.Errorf("GainRange at 7GHz: got %v, want ErrRange", err)
	}
	if err := dev.SetGain(bladerf.ChannelRX1, 30); !errors.Is(err, bladerf.ErrRange) {
		t.Errorf("SetGain at 7GHz: got %v, want ErrRange", err)
	}
}
