// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package bladerf

import "fmt"

// Version identifies a firmware or FPGA build.
type Version struct {
	Major, Minor, Patch uint16
	Describe            string // git describe output, may be empty
}

func (v Version) String() string {
	if v.Describe == "" {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
	return fmt.Sprintf("%d.%d.%d (%s)", v.Major, v.Minor, v.Patch, v.Describe)
}

// Compare orders two versions, ignoring Describe. It returns -1, 0 or 1.
func (v Version) Compare(o Version) int {
	a := []uint16{v.Major, v.Minor, v.Patch}
	b := []uint16{o.Major, o.Minor, o.Patch}
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// AtLeast reports whether v is at least major.minor.patch.
func (v Version) AtLeast(major, minor, patch uint16) bool {
	return v.Compare(Version{Major: major, Minor: minor, Patch: patch}) >= 0
}

// Capability bits derived from firmware and FPGA versions. Operations
// that depend on a capability check the device's capability mask rather
// than re-deriving it from version numbers.
const (
	CapFirmwareLoopback uint64 = 1 << iota
	CapQueryDeviceReady
	CapFPGATimestamps
	CapFPGATriggers
)

// Oldest firmware version the driver will talk to at all.
var minFWVersion = Version{Major: 2, Minor: 0, Patch: 0}

func fwCapabilities(v Version) uint64 {
	var caps uint64
	if v.AtLeast(2, 0, 0) {
		caps |= CapFirmwareLoopback
	}
	if v.AtLeast(2, 1, 0) {
		caps |= CapQueryDeviceReady
	}
	return caps
}

func fpgaCapabilities(v Version) uint64 {
	var caps uint64
	if v.AtLeast(0, 1, 0) {
		caps |= CapFPGATimestamps
	}
	if v.AtLeast(0, 2, 0) {
		caps |= CapFPGATriggers
	}
	return caps
}

// compatTable pairs a firmware version with the oldest FPGA version it
// requires, newest firmware first.
var compatTable = []struct {
	fw   Version
	fpga Version
}{
	{Version{Major: 2, Minor: 1}, Version{Minor: 2}},
	{Version{Major: 2}, Version{Minor: 1}},
}

// requiredFPGA returns the oldest FPGA version usable with firmware fw.
func requiredFPGA(fw Version) Version {
	for _, e := range compatTable {
		if fw.Compare(e.fw) >= 0 {
			return e.fpga
		}
	}
	return Version{}
}

// requiredFW returns the oldest firmware version usable with FPGA fpga.
func requiredFW(fpga Version) Version {
	req := Version{}
	for _, e := range compatTable {
		if fpga.Compare(e.fpga) >= 0 && e.fw.Compare(req) > 0 {
			req = e.fw
		}
	}
	return req
}

// checkCompat cross-checks firmware against FPGA. The result is
// advisory: the board still works, but one side is older than the other
// expects.
func checkCompat(fw, fpga Version) error {
	if need := requiredFPGA(fw); fpga.Compare(need) < 0 {
		return fmt.Errorf("firmware %s requires FPGA >= %s, have %s: %w",
			fw, need, fpga, ErrUpdateFPGA)
	}
	if need := requiredFW(fpga); fw.Compare(need) < 0 {
		return fmt.Errorf("FPGA %s requires firmware >= %s, have %s: %w",
			fpga, need, fw, ErrUpdateFW)
	}
	return nil
}
