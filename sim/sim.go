// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package sim provides in-memory implementations of the bladerf
// Backend and ad9361 Chip interfaces. They model just enough state
// (registers, enables, tuning) for the board control logic to run
// against, and record call counts and register write history so tests
// can assert on hardware interaction, not just results.
package sim

import (
	"fmt"
	"time"

	bladerf "github.com/butshuti/bladeRF"
	"github.com/butshuti/bladeRF/ad9361"
)

type trigKey struct {
	ch  bladerf.Channel
	sig bladerf.TriggerSignal
}

// Backend simulates the USB firmware and FPGA side of a board.
// Exported fields may be adjusted before Open and inspected afterward.
type Backend struct {
	FW             bladerf.Version
	FPGA           bladerf.Version
	LinkSpeed      bladerf.Speed
	SerialNo       string
	FPGAConfigured bool
	// ReadyAfter is how many IsFirmwareReady polls report false before
	// the firmware claims readiness.
	ReadyAfter int
	polls      int

	// Chip receives tunneled raw register access; may be nil.
	Chip *Chip

	RFFE        uint32
	GPIO        uint32
	Protocol    bladerf.FPGAProtocol
	Enabled     [2]bool
	FWLoopback  bool
	Timestamps  [2]uint64
	TrimDAC     uint16
	Triggers    map[trigKey]uint8
	Flash       map[uint32][]byte
	LoadedImage []byte

	// RFFEWrites records every RFFE control register write in order.
	RFFEWrites []uint32
	// Calls counts invocations by method name.
	Calls map[string]int
	// FailOn injects an error into the named method.
	FailOn map[string]error
}

// NewBackend returns a backend modeling a healthy SuperSpeed board
// with a configured FPGA.
func NewBackend(chip *Chip) *Backend {
	return &Backend{
		FW:             bladerf.Version{Major: 2, Minor: 4, Patch: 0, Describe: "sim"},
		FPGA:           bladerf.Version{Major: 0, Minor: 15, Patch: 0, Describe: "sim"},
		LinkSpeed:      bladerf.SpeedSuper,
		SerialNo:       "f00d000000000000000000000000beef",
		FPGAConfigured: true,
		TrimDAC:        0x7FFF,
		Chip:           chip,
		Triggers:       make(map[trigKey]uint8),
		Flash:          make(map[uint32][]byte),
		Calls:          make(map[string]int),
		FailOn:         make(map[string]error),
	}
}

func (b *Backend) call(name string) error {
	if b.Calls == nil {
		b.Calls = make(map[string]int)
	}
	b.Calls[name]++
	return b.FailOn[name]
}

func (b *Backend) FirmwareVersion() (bladerf.Version, error) {
	return b.FW, b.call("FirmwareVersion")
}

func (b *Backend) FPGAVersion() (bladerf.Version, error) {
	return b.FPGA, b.call("FPGAVersion")
}

func (b *Backend) IsFirmwareReady() (bool, error) {
	if err := b.call("IsFirmwareReady"); err != nil {
		return false, err
	}
	b.polls++
	return b.polls > b.ReadyAfter, nil
}

func (b *Backend) DeviceSpeed() (bladerf.Speed, error) {
	return b.LinkSpeed, b.call("DeviceSpeed")
}

func (b *Backend) Serial() string { return b.SerialNo }

func (b *Backend) IsFPGAConfigured() (bool, error) {
	return b.FPGAConfigured, b.call("IsFPGAConfigured")
}

func (b *Backend) LoadFPGA(image []byte) error {
	if err := b.call("LoadFPGA"); err != nil {
		return err
	}
	b.LoadedImage = image
	b.FPGAConfigured = true
	return nil
}

func (b *Backend) SetFPGAProtocol(p bladerf.FPGAProtocol) error {
	if err := b.call("SetFPGAProtocol"); err != nil {
		return err
	}
	b.Protocol = p
	return nil
}

func (b *Backend) RFFEControlRead() (uint32, error) {
	return b.RFFE, b.call("RFFEControlRead")
}

func (b *Backend) RFFEControlWrite(v uint32) error {
	if err := b.call("RFFEControlWrite"); err != nil {
		return err
	}
	b.RFFE = v
	b.RFFEWrites = append(b.RFFEWrites, v)
	return nil
}

func (b *Backend) ConfigGPIORead() (uint32, error) {
	return b.GPIO, b.call("ConfigGPIORead")
}

func (b *Backend) ConfigGPIOWrite(v uint32) error {
	if err := b.call("ConfigGPIOWrite"); err != nil {
		return err
	}
	b.GPIO = v
	return nil
}

func (b *Backend) EnableModule(dir bladerf.Direction, enable bool) error {
	if err := b.call("EnableModule"); err != nil {
		return err
	}
	b.Enabled[dir] = enable
	return nil
}

func (b *Backend) Timestamp(dir bladerf.Direction) (uint64, error) {
	return b.Timestamps[dir], b.call("Timestamp")
}

func (b *Backend) SetFirmwareLoopback(enable bool) error {
	if err := b.call("SetFirmwareLoopback"); err != nil {
		return err
	}
	b.FWLoopback = enable
	return nil
}

func (b *Backend) GetFirmwareLoopback() (bool, error) {
	return b.FWLoopback, b.call("GetFirmwareLoopback")
}

func (b *Backend) ChipRead(addr uint16) (uint8, error) {
	if err := b.call("ChipRead"); err != nil {
		return 0, err
	}
	if b.Chip == nil {
		return 0, fmt.Errorf("sim: no chip attached")
	}
	return b.Chip.ReadReg(addr)
}

func (b *Backend) ChipWrite(addr uint16, val uint8) error {
	if err := b.call("ChipWrite"); err != nil {
		return err
	}
	if b.Chip == nil {
		return fmt.Errorf("sim: no chip attached")
	}
	return b.Chip.WriteReg(addr, val)
}

func (b *Backend) TrimDACRead() (uint16, error) {
	return b.TrimDAC, b.call("TrimDACRead")
}

func (b *Backend) TrimDACWrite(v uint16) error {
	if err := b.call("TrimDACWrite"); err != nil {
		return err
	}
	b.TrimDAC = v
	return nil
}

func (b *Backend) ReadTrigger(ch bladerf.Channel, sig bladerf.TriggerSignal) (uint8, error) {
	return b.Triggers[trigKey{ch, sig}], b.call("ReadTrigger")
}

func (b *Backend) WriteTrigger(ch bladerf.Channel, sig bladerf.TriggerSignal, val uint8) error {
	if err := b.call("WriteTrigger"); err != nil {
		return err
	}
	b.Triggers[trigKey{ch, sig}] = val
	return nil
}

func (b *Backend) EraseFlash(eraseBlock, count uint32) error {
	if err := b.call("EraseFlash"); err != nil {
		return err
	}
	for page := eraseBlock * 256; page < (eraseBlock+count)*256; page++ {
		delete(b.Flash, page)
	}
	return nil
}

func (b *Backend) ReadFlash(page, count uint32) ([]byte, error) {
	if err := b.call("ReadFlash"); err != nil {
		return nil, err
	}
	buf := make([]byte, 0, count*256)
	for p := page; p < page+count; p++ {
		data := b.Flash[p]
		if data == nil {
			data = make([]byte, 256)
			for i := range data {
				data[i] = 0xFF
			}
		}
		buf = append(buf, data...)
	}
	return buf, nil
}

func (b *Backend) WriteFlash(buf []byte, page, count uint32) error {
	if err := b.call("WriteFlash"); err != nil {
		return err
	}
	if len(buf) != int(count)*256 {
		return fmt.Errorf("sim: flash write of %d bytes for %d pages", len(buf), count)
	}
	for i := uint32(0); i < count; i++ {
		data := make([]byte, 256)
		copy(data, buf[i*256:(i+1)*256])
		b.Flash[page+i] = data
	}
	return nil
}

func (b *Backend) DeviceReset() error { return b.call("DeviceReset") }

// Chip simulates an AD9361. It holds tuning and gain state in plain
// fields and a sparse register map for raw access, so correction codec
// tests can inspect exactly what was written where.
type Chip struct {
	Regs        map[uint16]uint8
	Initialized bool
	Params      ad9361.InitParams

	TxLO, RxLO     uint64
	TxRate, RxRate uint32
	TxBW, RxBW     uint32
	RxGain         [2]int32
	DigitalGain    [2]int32
	RxMode         [2]ad9361.GainCtrlMode
	TxAtten        [2]uint32
	TxPort, RxPort uint32
	TxFIR, RxFIR   ad9361.FIRConfig
	RxFIREnabled   bool
	BIST           int32

	Calls  map[string]int
	FailOn map[string]error
}

// NewChip returns an uninitialized chip simulator.
func NewChip() *Chip {
	return &Chip{
		Regs:   make(map[uint16]uint8),
		Calls:  make(map[string]int),
		FailOn: make(map[string]error),
	}
}

func (c *Chip) call(name string) error {
	if c.Calls == nil {
		c.Calls = make(map[string]int)
	}
	c.Calls[name]++
	if err := c.FailOn[name]; err != nil {
		return err
	}
	return nil
}

// ready guards methods that require a completed Init.
func (c *Chip) ready(name string) error {
	if err := c.call(name); err != nil {
		return err
	}
	if !c.Initialized {
		return fmt.Errorf("sim: chip not initialized: %w", ad9361.ErrNoDev)
	}
	return nil
}

func (c *Chip) Init(params *ad9361.InitParams) error {
	if err := c.call("Init"); err != nil {
		return err
	}
	c.Initialized = true
	c.Params = *params
	c.TxLO = params.TxSynthHz
	c.RxLO = params.RxSynthHz
	c.TxRate, c.RxRate = 30720000, 30720000
	c.TxBW, c.RxBW = 18000000, 18000000
	c.RxMode[0] = params.GcRX1Mode
	c.RxMode[1] = params.GcRX2Mode
	c.RxGain = [2]int32{64, 64}
	return nil
}

func (c *Chip) Deinit() error {
	if err := c.call("Deinit"); err != nil {
		return err
	}
	c.Initialized = false
	return nil
}

func (c *Chip) SetTxFIRConfig(cfg ad9361.FIRConfig) error {
	if err := c.ready("SetTxFIRConfig"); err != nil {
		return err
	}
	c.TxFIR = cfg
	return nil
}

func (c *Chip) SetRxFIRConfig(cfg ad9361.FIRConfig) error {
	if err := c.ready("SetRxFIRConfig"); err != nil {
		return err
	}
	c.RxFIR = cfg
	return nil
}

func (c *Chip) SetRxFIREnable(enable bool) error {
	if err := c.ready("SetRxFIREnable"); err != nil {
		return err
	}
	c.RxFIREnabled = enable
	return nil
}

func (c *Chip) SetTxLOFreq(hz uint64) error {
	if err := c.ready("SetTxLOFreq"); err != nil {
		return err
	}
	c.TxLO = hz
	return nil
}

func (c *Chip) GetTxLOFreq() (uint64, error) { return c.TxLO, c.ready("GetTxLOFreq") }

func (c *Chip) SetRxLOFreq(hz uint64) error {
	if err := c.ready("SetRxLOFreq"); err != nil {
		return err
	}
	c.RxLO = hz
	return nil
}

func (c *Chip) GetRxLOFreq() (uint64, error) { return c.RxLO, c.ready("GetRxLOFreq") }

func (c *Chip) SetTxSamplingFreq(hz uint32) error {
	if err := c.ready("SetTxSamplingFreq"); err != nil {
		return err
	}
	c.TxRate = hz
	return nil
}

func (c *Chip) GetTxSamplingFreq() (uint32, error) { return c.TxRate, c.ready("GetTxSamplingFreq") }

func (c *Chip) SetRxSamplingFreq(hz uint32) error {
	if err := c.ready("SetRxSamplingFreq"); err != nil {
		return err
	}
	c.RxRate = hz
	return nil
}

func (c *Chip) GetRxSamplingFreq() (uint32, error) { return c.RxRate, c.ready("GetRxSamplingFreq") }

func (c *Chip) SetTxRFBandwidth(hz uint32) error {
	if err := c.ready("SetTxRFBandwidth"); err != nil {
		return err
	}
	c.TxBW = hz
	return nil
}

func (c *Chip) GetTxRFBandwidth() (uint32, error) { return c.TxBW, c.ready("GetTxRFBandwidth") }

func (c *Chip) SetRxRFBandwidth(hz uint32) error {
	if err := c.ready("SetRxRFBandwidth"); err != nil {
		return err
	}
	c.RxBW = hz
	return nil
}

func (c *Chip) GetRxRFBandwidth() (uint32, error) { return c.RxBW, c.ready("GetRxRFBandwidth") }

func (c *Chip) SetRxRFGain(ch uint8, gainDB int32) error {
	if err := c.ready("SetRxRFGain"); err != nil {
		return err
	}
	if ch > 1 {
		return ad9361.ErrInval
	}
	c.RxGain[ch] = gainDB
	return nil
}

func (c *Chip) GetRxRFGain(ch uint8) (int32, error) {
	if err := c.ready("GetRxRFGain"); err != nil {
		return 0, err
	}
	if ch > 1 {
		return 0, ad9361.ErrInval
	}
	return c.RxGain[ch], nil
}

func (c *Chip) GetRxGain(ch uint8) (ad9361.RxGain, error) {
	if err := c.ready("GetRxGain"); err != nil {
		return ad9361.RxGain{}, err
	}
	if ch > 1 {
		return ad9361.RxGain{}, ad9361.ErrInval
	}
	return ad9361.RxGain{GainDB: c.RxGain[ch], DigitalGain: c.DigitalGain[ch]}, nil
}

func (c *Chip) SetRxGainControlMode(ch uint8, mode ad9361.GainCtrlMode) error {
	if err := c.ready("SetRxGainControlMode"); err != nil {
		return err
	}
	if ch > 1 {
		return ad9361.ErrInval
	}
	c.RxMode[ch] = mode
	return nil
}

func (c *Chip) GetRxGainControlMode(ch uint8) (ad9361.GainCtrlMode, error) {
	if err := c.ready("GetRxGainControlMode"); err != nil {
		return 0, err
	}
	if ch > 1 {
		return 0, ad9361.ErrInval
	}
	return c.RxMode[ch], nil
}

func (c *Chip) SetTxAttenuation(ch uint8, mdB uint32) error {
	if err := c.ready("SetTxAttenuation"); err != nil {
		return err
	}
	if ch > 1 {
		return ad9361.ErrInval
	}
	c.TxAtten[ch] = mdB
	return nil
}

func (c *Chip) GetTxAttenuation(ch uint8) (uint32, error) {
	if err := c.ready("GetTxAttenuation"); err != nil {
		return 0, err
	}
	if ch > 1 {
		return 0, ad9361.ErrInval
	}
	return c.TxAtten[ch], nil
}

func (c *Chip) SetTxRFPortOutput(port uint32) error {
	if err := c.ready("SetTxRFPortOutput"); err != nil {
		return err
	}
	c.TxPort = port
	return nil
}

func (c *Chip) GetTxRFPortOutput() (uint32, error) { return c.TxPort, c.ready("GetTxRFPortOutput") }

func (c *Chip) SetRxRFPortInput(port uint32) error {
	if err := c.ready("SetRxRFPortInput"); err != nil {
		return err
	}
	c.RxPort = port
	return nil
}

func (c *Chip) GetRxRFPortInput() (uint32, error) { return c.RxPort, c.ready("GetRxRFPortInput") }

func (c *Chip) ReadReg(addr uint16) (uint8, error) {
	if err := c.call("ReadReg"); err != nil {
		return 0, err
	}
	return c.Regs[addr], nil
}

func (c *Chip) WriteReg(addr uint16, val uint8) error {
	if err := c.call("WriteReg"); err != nil {
		return err
	}
	if c.Regs == nil {
		c.Regs = make(map[uint16]uint8)
	}
	c.Regs[addr] = val
	return nil
}

func (c *Chip) SetBISTLoopback(mode int32) error {
	if err := c.ready("SetBISTLoopback"); err != nil {
		return err
	}
	c.BIST = mode
	return nil
}

func (c *Chip) GetBISTLoopback() (int32, error) { return c.BIST, c.ready("GetBISTLoopback") }

// Stream is a loopback SyncStream: transmitted buffers queue up and
// come back on RX, which otherwise fills zeros.
type Stream struct {
	Cfg      bladerf.SyncConfig
	Inited   bool
	Deinited bool
	RXCount  int
	TXCount  int
	pending  [][]byte
}

func (s *Stream) Init(cfg bladerf.SyncConfig) error {
	s.Cfg = cfg
	s.Inited = true
	s.Deinited = false
	return nil
}

func (s *Stream) Deinit() {
	s.Inited = false
	s.Deinited = true
}

func (s *Stream) RX(samples []byte, meta *bladerf.Metadata, timeout time.Duration) error {
	if !s.Inited {
		return fmt.Errorf("sim: stream not initialized")
	}
	s.RXCount++
	n := 0
	if len(s.pending) > 0 {
		n = copy(samples, s.pending[0])
		s.pending = s.pending[1:]
	} else {
		for i := range samples {
			samples[i] = 0
		}
		n = len(samples)
	}
	if meta != nil {
		meta.ActualCount = uint(n)
	}
	return nil
}

func (s *Stream) TX(samples []byte, meta *bladerf.Metadata, timeout time.Duration) error {
	if !s.Inited {
		return fmt.Errorf("sim: stream not initialized")
	}
	s.TXCount++
	buf := make([]byte, len(samples))
	copy(buf, samples)
	s.pending = append(s.pending, buf)
	return nil
}

// Power is a PowerMonitor reporting fixed readings.
type Power struct {
	Inited  bool
	Voltage float64
	Amps    float64
}

func (p *Power) Init() error {
	p.Inited = true
	if p.Voltage == 0 {
		p.Voltage = 5.0
	}
	if p.Amps == 0 {
		p.Amps = 0.4
	}
	return nil
}

func (p *Power) BusVoltage() (float64, error) { return p.Voltage, nil }
func (p *Power) Current() (float64, error)    { return p.Amps, nil }
func (p *Power) Power() (float64, error)      { return p.Voltage * p.Amps, nil }
