// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package bladerf implements the board control layer for the bladeRF
// 2.0 micro software-defined radio. It owns the board state machine,
// RF front-end band and port selection, per-channel gain, sample rate,
// bandwidth and frequency control, the IQ correction register codec,
// and RF module enable sequencing.
//
// The package drives the board through two injected interfaces: a
// Backend for the USB/FPGA transport and an ad9361.Chip for the RF
// transceiver. This keeps the control logic testable without hardware;
// the sim subpackage provides in-memory implementations of both.
// Simple commands to exercise a board can be found in the cmd
// directory tree.
package bladerf
