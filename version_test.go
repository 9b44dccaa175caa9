// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package bladerf

import (
	"errors"
	"testing"
)

func TestVersionCompare(t *testing.T) {
	v := Version{Major: 2, Minor: 4, Patch: 0}
	if v.Compare(Version{Major: 2, Minor: 4}) != 0 {
		t.Errorf("equal versions compare nonzero")
	}
	if v.Compare(Version{Major: 2, Minor: 4, Patch: 1}) != -1 {
		t.Errorf("patch ordering wrong")
	}
	if v.Compare(Version{Major: 1, Minor: 9, Patch: 9}) != 1 {
		t.Errorf("major ordering wrong")
	}
	if !v.AtLeast(2, 1, 0) || v.AtLeast(2, 5, 0) {
		t.Errorf("AtLeast wrong")
	}
	if got := (Version{Major: 2, Minor: 4, Describe: "git-abc"}).String(); got != "2.4.0 (git-abc)" {
		t.Errorf("String: %q", got)
	}
}

func TestCapabilities(t *testing.T) {
	old := fwCapabilities(Version{Major: 2})
	if old&CapFirmwareLoopback == 0 || old&CapQueryDeviceReady != 0 {
		t.Errorf("fw 2.0 capabilities: %#x", old)
	}
	cur := fwCapabilities(Version{Major: 2, Minor: 4})
	if cur&CapQueryDeviceReady == 0 {
		t.Errorf("fw 2.4 capabilities: %#x", cur)
	}
	fpga := fpgaCapabilities(Version{Minor: 15})
	if fpga&CapFPGATimestamps == 0 || fpga&CapFPGATriggers == 0 {
		t.Errorf("fpga 0.15 capabilities: %#x", fpga)
	}
}

func TestCheckCompat(t *testing.T) {
	fw := Version{Major: 2, Minor: 4}
	if err := checkCompat(fw, Version{Minor: 15}); err != nil {
		t.Errorf("matched pair reports mismatch: %v", err)
	}
	if err := checkCompat(fw, Version{Minor: 1}); !errors.Is(err, ErrUpdateFPGA) {
		t.Errorf("old FPGA: got %v, want ErrUpdateFPGA", err)
	}
	if err := checkCompat(Version{Major: 2}, Version{Minor: 15}); !errors.Is(err, ErrUpdateFW) {
		t.Errorf("old firmware: got %v, want ErrUpdateFW", err)
	}
}
