// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package bladerf

import (
	"fmt"

	"github.com/butshuti/bladeRF/ad9361"
)

// GainMode selects manual or automatic gain control on a receive
// channel.
type GainMode int

const (
	// GainDefault restores the channel's power-up gain control mode.
	GainDefault GainMode = iota
	GainMGC
	GainFastAttackAGC
	GainSlowAttackAGC
	GainHybridAGC
)

func (m GainMode) String() string {
	switch m {
	case GainDefault:
		return "Default"
	case GainMGC:
		return "Manual"
	case GainFastAttackAGC:
		return "FastAttackAGC"
	case GainSlowAttackAGC:
		return "SlowAttackAGC"
	case GainHybridAGC:
		return "HybridAGC"
	}
	return "Unknown"
}

var gainModeMap = []struct {
	mode GainMode
	chip ad9361.GainCtrlMode
}{
	{GainMGC, ad9361.GainMGC},
	{GainFastAttackAGC, ad9361.GainFastAttack},
	{GainSlowAttackAGC, ad9361.GainSlowAttack},
	{GainHybridAGC, ad9361.GainHybrid},
}

// The usable RX gain range depends on the tuned frequency. First match
// wins; the frequency ranges do not overlap.
var rxGainRanges = []struct {
	freq Range
	gain Range
}{
	{Range{Min: 0, Max: 1300e6 - 1, Step: 1, Scale: 1},
		Range{Min: 1, Max: 77, Step: 1, Scale: 1}},
	{Range{Min: 1300e6, Max: 4000e6 - 1, Step: 1, Scale: 1},
		Range{Min: -4, Max: 71, Step: 1, Scale: 1}},
	{Range{Min: 4000e6, Max: 6000e6, Step: 1, Scale: 1},
		Range{Min: -10, Max: 62, Step: 1, Scale: 1}},
}

// TX gain is programmed as attenuation in milli-dB below full scale.
var txGainRange = Range{Min: -89750, Max: 0, Step: 250, Scale: 0.001}

var rxGainStages = []struct {
	name string
	rng  Range
}{
	{"full", Range{Min: -10, Max: 77, Step: 1, Scale: 1}},
	{"digital", Range{Min: 0, Max: 31, Step: 1, Scale: 1}},
}

var txGainStages = []struct {
	name string
	rng  Range
}{
	{"dsa", txGainRange},
}

// GainRange returns a channel's usable overall gain range. For receive
// channels the range depends on the currently tuned frequency.
func (d *Device) GainRange(ch Channel) (Range, error) {
	if err := d.checkState("GainRange", StateInitialized); err != nil {
		return Range{}, err
	}
	if !ch.valid() {
		return Range{}, fmt.Errorf("GainRange: invalid channel %d: %w", uint8(ch), ErrInval)
	}
	if ch.IsTX() {
		return txGainRange, nil
	}
	freq, err := d.Frequency(ch)
	if err != nil {
		return Range{}, err
	}
	for _, e := range rxGainRanges {
		if e.freq.Contains(int64(freq)) {
			return e.gain, nil
		}
	}
	return Range{}, fmt.Errorf("GainRange: no gain range at %d Hz: %w", freq, ErrRange)
}

// SetGain sets a channel's overall gain in dB. Out-of-range values are
// clamped with a warning.
func (d *Device) SetGain(ch Channel, gain int) error {
	rng, err := d.GainRange(ch)
	if err != nil {
		return err
	}
	clamped := rng.Clamp(int64(gain))
	if clamped != int64(gain) {
		d.log("SetGain: %d dB outside range on %s, clamping to %d", gain, ch, clamped)
	}
	if ch.IsTX() {
		atten := uint32(-int64(float64(clamped) / rng.Scale))
		if err := d.chip.SetTxAttenuation(ch.Index(), atten); err != nil {
			return chipError("SetGain", err)
		}
		return nil
	}
	if err := d.chip.SetRxRFGain(ch.Index(), int32(clamped)); err != nil {
		return chipError("SetGain", err)
	}
	return nil
}

// Gain returns a channel's overall gain in dB.
func (d *Device) Gain(ch Channel) (int, error) {
	if err := d.checkState("Gain", StateInitialized); err != nil {
		return 0, err
	}
	if !ch.valid() {
		return 0, fmt.Errorf("Gain: invalid channel %d: %w", uint8(ch), ErrInval)
	}
	if ch.IsTX() {
		atten, err := d.chip.GetTxAttenuation(ch.Index())
		if err != nil {
			return 0, chipError("Gain", err)
		}
		return -int(float64(atten) * txGainRange.Scale), nil
	}
	g, err := d.chip.GetRxRFGain(ch.Index())
	if err != nil {
		return 0, chipError("Gain", err)
	}
	return int(g), nil
}

// SetGainMode sets a receive channel's gain control mode. GainDefault
// restores the mode the channel powered up with. Transmit channels do
// not have gain modes.
func (d *Device) SetGainMode(ch Channel, mode GainMode) error {
	if err := d.checkState("SetGainMode", StateInitialized); err != nil {
		return err
	}
	if ch.IsTX() {
		return fmt.Errorf("SetGainMode: %s has no gain mode: %w", ch, ErrUnsupported)
	}
	var chipMode ad9361.GainCtrlMode
	if mode == GainDefault {
		params := d.opts.InitParams
		if params == nil {
			params = &ad9361.DefaultInitParams
		}
		chipMode = params.GcRXMode(ch.Index())
	} else {
		found := false
		for _, e := range gainModeMap {
			if e.mode == mode {
				chipMode, found = e.chip, true
				break
			}
		}
		if !found {
			return fmt.Errorf("SetGainMode: invalid mode %d: %w", int(mode), ErrInval)
		}
	}
	if err := d.chip.SetRxGainControlMode(ch.Index(), chipMode); err != nil {
		return chipError("SetGainMode", err)
	}
	return nil
}

// GainMode returns a receive channel's gain control mode.
func (d *Device) GainMode(ch Channel) (GainMode, error) {
	if err := d.checkState("GainMode", StateInitialized); err != nil {
		return GainDefault, err
	}
	if ch.IsTX() {
		return GainDefault, fmt.Errorf("GainMode: %s has no gain mode: %w", ch, ErrUnsupported)
	}
	chipMode, err := d.chip.GetRxGainControlMode(ch.Index())
	if err != nil {
		return GainDefault, chipError("GainMode", err)
	}
	for _, e := range gainModeMap {
		if e.chip == chipMode {
			return e.mode, nil
		}
	}
	return GainDefault, fmt.Errorf("GainMode: chip reports unknown mode %d: %w", chipMode, ErrUnexpected)
}

// GainStages lists a channel's gain stage names.
func (d *Device) GainStages(ch Channel) []string {
	stages := rxGainStages
	if ch.IsTX() {
		stages = txGainStages
	}
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.name
	}
	return names
}

// GainStageRange returns the gain range of a named stage.
func (d *Device) GainStageRange(ch Channel, stage string) (Range, error) {
	stages := rxGainStages
	if ch.IsTX() {
		stages = txGainStages
	}
	for _, s := range stages {
		if s.name == stage {
			return s.rng, nil
		}
	}
	return Range{}, fmt.Errorf("GainStageRange: unknown stage %q on %s: %w", stage, ch, ErrInval)
}

// SetGainStage sets the gain of a named stage in dB. Stages that are
// read-only or unknown are ignored with a warning; writing them is not
// an error so callers can iterate GainStages uniformly.
func (d *Device) SetGainStage(ch Channel, stage string, gain int) error {
	if err := d.checkState("SetGainStage", StateInitialized); err != nil {
		return err
	}
	if ch.IsTX() {
		if stage == "dsa" {
			return d.SetGain(ch, gain)
		}
		d.log("SetGainStage: ignoring unknown stage %q on %s", stage, ch)
		return nil
	}
	switch stage {
	case "full":
		return d.SetGain(ch, gain)
	case "digital":
		d.log("SetGainStage: stage %q on %s is read-only, ignoring", stage, ch)
		return nil
	}
	d.log("SetGainStage: ignoring unknown stage %q on %s", stage, ch)
	return nil
}

// GainStage returns the gain of a named stage in dB. Unknown stages
// report zero with a warning.
func (d *Device) GainStage(ch Channel, stage string) (int, error) {
	if err := d.checkState("GainStage", StateInitialized); err != nil {
		return 0, err
	}
	if ch.IsTX() {
		if stage == "dsa" {
			return d.Gain(ch)
		}
		d.log("GainStage: unknown stage %q on %s", stage, ch)
		return 0, nil
	}
	switch stage {
	case "full", "digital":
		rxg, err := d.chip.GetRxGain(ch.Index())
		if err != nil {
			return 0, chipError("GainStage", err)
		}
		if stage == "digital" {
			return int(rxg.DigitalGain), nil
		}
		return int(rxg.GainDB), nil
	}
	d.log("GainStage: unknown stage %q on %s", stage, ch)
	return 0, nil
}
