// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package bladerf

import (
	"fmt"
	"time"
)

// Format selects the sample format on the wire.
type Format int

const (
	// FormatSC16Q11 is interleaved signed 16-bit IQ, 11 fractional
	// bits.
	FormatSC16Q11 Format = iota
	// FormatSC16Q11Meta prepends metadata headers to each message.
	FormatSC16Q11Meta
)

// ChannelLayout names the channel arrangement of a stream. The low bit
// carries the direction, matching Channel encoding.
type ChannelLayout int

const (
	LayoutRX1    ChannelLayout = 0
	LayoutTX1    ChannelLayout = 1
	LayoutRX1RX2 ChannelLayout = 2
	LayoutTX1TX2 ChannelLayout = 3
)

// Direction returns the direction of the layout's channels.
func (l ChannelLayout) Direction() Direction { return Direction(l & 1) }

// Metadata flags.
const (
	MetaFlagTXBurstStart uint32 = 1 << 0
	MetaFlagTXBurstEnd   uint32 = 1 << 1
	MetaFlagTXNow        uint32 = 1 << 2
	MetaFlagRXNow        uint32 = 1 << 31
)

// Metadata status bits.
const (
	MetaStatusOverrun  uint32 = 1 << 0
	MetaStatusUnderrun uint32 = 1 << 1
)

// Metadata carries per-message timing information for the Meta
// formats.
type Metadata struct {
	Timestamp   uint64
	Flags       uint32
	Status      uint32
	ActualCount uint
}

// SyncConfig parameterizes a synchronous stream.
type SyncConfig struct {
	Layout       ChannelLayout
	Format       Format
	NumBuffers   uint
	BufferSize   uint // samples per buffer, multiple of 1024
	NumTransfers uint
	Timeout      time.Duration
	// MsgSize is filled in by the device from the USB link speed.
	MsgSize int
}

// SyncStream is a blocking sample stream for one direction. The
// device owns stream lifetime: EnableModule(dir, false) and Close tear
// the stream down.
type SyncStream interface {
	Init(cfg SyncConfig) error
	Deinit()
	RX(samples []byte, meta *Metadata, timeout time.Duration) error
	TX(samples []byte, meta *Metadata, timeout time.Duration) error
}

// StreamConfig parameterizes an asynchronous stream.
type StreamConfig struct {
	Format           Format
	NumBuffers       uint
	SamplesPerBuffer uint
	NumTransfers     uint
	// Callback produces (TX) or consumes (RX) each buffer; returning
	// nil shuts the stream down.
	Callback func(samples []byte, meta *Metadata) []byte
}

// Stream is an asynchronous callback-driven sample stream.
type Stream interface {
	Run() error
	Deinit()
}

// SyncConfigure sets up the synchronous stream for the layout's
// direction, replacing any previous configuration.
func (d *Device) SyncConfigure(cfg SyncConfig) error {
	if err := d.checkState("SyncConfigure", StateInitialized); err != nil {
		return err
	}
	if d.opts.NewSync == nil {
		return fmt.Errorf("SyncConfigure: no stream transport configured: %w", ErrUnsupported)
	}
	dir := cfg.Layout.Direction()
	cfg.MsgSize = d.msgSize
	s := d.opts.NewSync(dir)
	if err := s.Init(cfg); err != nil {
		return fmt.Errorf("SyncConfigure: %w", err)
	}
	if d.sync[dir] != nil {
		d.sync[dir].Deinit()
	}
	d.sync[dir] = s
	return nil
}

// SyncRX receives samples, blocking until the buffer is filled or the
// timeout expires. The RX module must be enabled.
func (d *Device) SyncRX(samples []byte, meta *Metadata, timeout time.Duration) error {
	if err := d.checkState("SyncRX", StateInitialized); err != nil {
		return err
	}
	if d.sync[RXDir] == nil {
		return fmt.Errorf("SyncRX: stream not configured: %w", ErrInval)
	}
	return d.sync[RXDir].RX(samples, meta, timeout)
}

// SyncTX transmits samples, blocking until the buffer is submitted or
// the timeout expires. The TX module must be enabled.
func (d *Device) SyncTX(samples []byte, meta *Metadata, timeout time.Duration) error {
	if err := d.checkState("SyncTX", StateInitialized); err != nil {
		return err
	}
	if d.sync[TXDir] == nil {
		return fmt.Errorf("SyncTX: stream not configured: %w", ErrInval)
	}
	return d.sync[TXDir].TX(samples, meta, timeout)
}

// InitStream creates an asynchronous stream for the layout's
// direction using the transport from Opts.
func (d *Device) InitStream(layout ChannelLayout, cfg StreamConfig) (Stream, error) {
	if err := d.checkState("InitStream", StateInitialized); err != nil {
		return nil, err
	}
	if d.opts.NewStream == nil {
		return nil, fmt.Errorf("InitStream: no stream transport configured: %w", ErrUnsupported)
	}
	s, err := d.opts.NewStream(layout, cfg)
	if err != nil {
		return nil, fmt.Errorf("InitStream: %w", err)
	}
	return s, nil
}
