// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package bladerf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/butshuti/bladeRF/ad9361"
)

// LogPrintf is the function signature used for logging. It happens to
// match fmt.Printf and log.Printf.
type LogPrintf func(format string, v ...interface{})

// Direction distinguishes the receive and transmit halves of the RF
// front-end.
type Direction uint8

const (
	RXDir Direction = 0
	TXDir Direction = 1
)

func (d Direction) String() string {
	if d == TXDir {
		return "TX"
	}
	return "RX"
}

// Channel identifies one RF chain. The low bit carries the direction,
// the remaining bits the chain index, so RX1=0, TX1=1, RX2=2, TX2=3.
type Channel uint8

const (
	ChannelRX1 Channel = 0
	ChannelTX1 Channel = 1
	ChannelRX2 Channel = 2
	ChannelTX2 Channel = 3
)

// ChannelRX returns the receive channel with index n.
func ChannelRX(n int) Channel { return Channel(n << 1) }

// ChannelTX returns the transmit channel with index n.
func ChannelTX(n int) Channel { return Channel(n<<1 | 1) }

func (c Channel) IsTX() bool           { return c&1 == 1 }
func (c Channel) Index() uint8         { return uint8(c >> 1) }
func (c Channel) Direction() Direction { return Direction(c & 1) }

func (c Channel) String() string {
	return fmt.Sprintf("%s%d", c.Direction(), c.Index()+1)
}

// valid reports whether c names one of the four chains.
func (c Channel) valid() bool { return c <= ChannelTX2 }

// Speed is the negotiated USB link speed.
type Speed int

const (
	SpeedUnknown Speed = iota
	SpeedHigh
	SpeedSuper
)

// USB message sizes in bytes, by link speed.
const (
	msgSizeSS = 2048
	msgSizeHS = 1024
)

// FPGASize identifies the FPGA variant fitted to the board.
type FPGASize int

const (
	FPGAUnknown FPGASize = iota
	FPGAA4
	FPGAA9
)

// fpgaImage returns the bitstream file name and expected byte size for
// an FPGA variant.
func (s FPGASize) fpgaImage() (string, int) {
	switch s {
	case FPGAA4:
		return "hostedxA4.rbf", 2632660
	case FPGAA9:
		return "hostedxA9.rbf", 12858972
	}
	return "", 0
}

// FPGAProtocol selects the control message protocol spoken to the FPGA.
type FPGAProtocol int

const (
	FPGAProtocolNone FPGAProtocol = iota
	FPGAProtocolNiosII
)

// TriggerSignal names a hardware trigger line.
type TriggerSignal int

const (
	TriggerJ51_1 TriggerSignal = iota
	TriggerMiniExp1
	TriggerUser0
	TriggerUser1
	TriggerUser2
	TriggerUser3
)

// BoardState tracks how far device bring-up has progressed. States are
// ordered; an operation requiring state S succeeds in S or any later
// state.
type BoardState int

const (
	StateUninitialized BoardState = iota
	StateFirmwareLoaded
	StateFPGALoaded
	StateInitialized
)

func (s BoardState) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateFirmwareLoaded:
		return "Firmware Loaded"
	case StateFPGALoaded:
		return "FPGA Loaded"
	case StateInitialized:
		return "Initialized"
	}
	return "Unknown"
}

// Range describes the allowed values of a parameter. Min, Max and Step
// are in scaled units; multiplying by Scale yields the external unit
// (e.g. the TX gain range is in milli-dB with Scale 0.001).
type Range struct {
	Min   int64
	Max   int64
	Step  int64
	Scale float64
}

// Contains reports whether v, in external units, falls inside r.
func (r Range) Contains(v int64) bool {
	s := float64(v) / r.Scale
	return s >= float64(r.Min) && s <= float64(r.Max)
}

// Clamp limits v, in external units, to r.
func (r Range) Clamp(v int64) int64 {
	if s := float64(v) / r.Scale; s < float64(r.Min) {
		return int64(float64(r.Min) * r.Scale)
	} else if s > float64(r.Max) {
		return int64(float64(r.Max) * r.Scale)
	}
	return v
}

// Backend is the transport to the board's USB firmware and FPGA. It
// maps one-to-one onto the control requests the firmware implements.
type Backend interface {
	FirmwareVersion() (Version, error)
	FPGAVersion() (Version, error)
	IsFirmwareReady() (bool, error)
	DeviceSpeed() (Speed, error)
	Serial() string

	IsFPGAConfigured() (bool, error)
	LoadFPGA(image []byte) error
	SetFPGAProtocol(p FPGAProtocol) error

	RFFEControlRead() (uint32, error)
	RFFEControlWrite(v uint32) error
	ConfigGPIORead() (uint32, error)
	ConfigGPIOWrite(v uint32) error

	EnableModule(dir Direction, enable bool) error
	Timestamp(dir Direction) (uint64, error)

	SetFirmwareLoopback(enable bool) error
	GetFirmwareLoopback() (bool, error)

	// ChipRead and ChipWrite tunnel raw register access to the RF chip
	// through the FPGA's SPI master.
	ChipRead(addr uint16) (uint8, error)
	ChipWrite(addr uint16, val uint8) error

	// VCTCXO trim DAC.
	TrimDACRead() (uint16, error)
	TrimDACWrite(v uint16) error

	ReadTrigger(ch Channel, sig TriggerSignal) (uint8, error)
	WriteTrigger(ch Channel, sig TriggerSignal, val uint8) error

	EraseFlash(eraseBlock, count uint32) error
	ReadFlash(page, count uint32) ([]byte, error)
	WriteFlash(buf []byte, page, count uint32) error

	DeviceReset() error
}

// PowerMonitor is the board's bus power sensor (an INA219 on real
// hardware). It is optional; a nil monitor skips power telemetry.
type PowerMonitor interface {
	Init() error
	BusVoltage() (float64, error)
	Current() (float64, error)
	Power() (float64, error)
}

// Opts adjusts the behavior of Open. The zero value works for all
// fields.
type Opts struct {
	// Logger gets debug and warning messages; nil discards them.
	Logger LogPrintf
	// InitParams overrides the RF chip power-up configuration; nil
	// selects ad9361.DefaultInitParams.
	InitParams *ad9361.InitParams
	// SearchDirs lists additional directories to search for FPGA
	// bitstream files, ahead of $BLADERF_SEARCH_DIR and the current
	// directory.
	SearchDirs []string
	// PowerMonitor, if non-nil, is initialized during board bring-up.
	PowerMonitor PowerMonitor
	// NewSync constructs the synchronous stream handle for a
	// direction; nil disables SyncConfigure.
	NewSync func(dir Direction) SyncStream
	// NewStream constructs an asynchronous stream; nil disables
	// InitStream.
	NewStream func(layout ChannelLayout, cfg StreamConfig) (Stream, error)
	// Firmware-ready polling. Zero values select 30 attempts at 1s.
	FirmwareReadyAttempts int
	FirmwareReadyInterval time.Duration
}

// Device is an open bladeRF 2.0 micro board.
//
// Control-path methods are not safe for concurrent use; the caller
// serializes them. Only the raw chip register accessors take the
// device lock, because diagnostic tooling polls them from separate
// goroutines.
type Device struct {
	mu      sync.Mutex
	backend Backend
	chip    ad9361.Chip
	opts    Opts
	log     LogPrintf

	state        BoardState
	chipInited   bool
	capabilities uint64
	fpgaSize     FPGASize
	msgSize      int
	fwVersion    Version
	fpgaVersion  Version
	sync         [2]SyncStream
}

// Open brings up a board reachable through backend and chip. The
// returned device is in the most advanced state the hardware allows:
// Initialized when an FPGA is configured or a bitstream file is found,
// FirmwareLoaded otherwise. Open with a firmware-only board is not an
// error; FPGA-dependent operations report ErrNotInit until LoadFPGA
// succeeds.
func Open(backend Backend, chip ad9361.Chip, opts Opts) (*Device, error) {
	if backend == nil || chip == nil {
		return nil, fmt.Errorf("Open: nil backend or chip: %w", ErrInval)
	}
	log := opts.Logger
	if log == nil {
		log = func(format string, v ...interface{}) {}
	}
	d := &Device{backend: backend, chip: chip, opts: opts, log: log}

	fw, err := backend.FirmwareVersion()
	if err != nil {
		return nil, fmt.Errorf("Open: firmware version: %w", err)
	}
	d.fwVersion = fw
	d.capabilities |= fwCapabilities(fw)
	d.log("Open: firmware %s, capabilities 0x%x", fw, d.capabilities)
	d.state = StateFirmwareLoaded

	if err := d.awaitFirmware(); err != nil {
		return nil, err
	}

	speed, err := backend.DeviceSpeed()
	if err != nil {
		return nil, fmt.Errorf("Open: device speed: %w", err)
	}
	switch speed {
	case SpeedSuper:
		d.msgSize = msgSizeSS
	case SpeedHigh:
		d.msgSize = msgSizeHS
	default:
		return nil, fmt.Errorf("Open: unsupported device speed %d: %w", speed, ErrUnexpected)
	}

	if fw.Compare(minFWVersion) < 0 {
		return nil, fmt.Errorf("Open: firmware %s older than required %s: %w",
			fw, minFWVersion, ErrUpdateFW)
	}

	// TODO: read the fitted FPGA variant from the flash OTP region
	// once the backend exposes it.
	d.fpgaSize = FPGAA4

	if os.Getenv("BLADERF_FORCE_NO_FPGA_PRESENT") != "" {
		d.log("Open: BLADERF_FORCE_NO_FPGA_PRESENT set, skipping FPGA load")
		return d, nil
	}

	configured, err := backend.IsFPGAConfigured()
	if err != nil {
		return nil, fmt.Errorf("Open: FPGA status: %w", err)
	}
	if configured {
		if err := d.initialize(); err != nil {
			d.Close()
			return nil, err
		}
		return d, nil
	}

	image, err := d.findFPGAImage()
	if err != nil {
		return nil, err
	}
	if image == nil {
		d.log("Open: FPGA not configured and no bitstream file found, device is firmware-only")
		return d, nil
	}
	if err := backend.LoadFPGA(image); err != nil {
		return nil, fmt.Errorf("Open: FPGA load: %w", err)
	}
	if err := d.initialize(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// awaitFirmware polls the firmware-ready query until the firmware
// reports it has completed initialization. Firmware too old to support
// the query is assumed ready.
func (d *Device) awaitFirmware() error {
	if d.capabilities&CapQueryDeviceReady == 0 {
		d.log("Open: firmware does not support ready query, assuming ready")
		return nil
	}
	attempts := d.opts.FirmwareReadyAttempts
	if attempts <= 0 {
		attempts = 30
	}
	interval := d.opts.FirmwareReadyInterval
	if interval <= 0 {
		interval = time.Second
	}
	for i := 0; i < attempts; i++ {
		ready, err := d.backend.IsFirmwareReady()
		if err != nil {
			return fmt.Errorf("Open: firmware ready query: %w", err)
		}
		if ready {
			return nil
		}
		time.Sleep(interval)
	}
	return fmt.Errorf("Open: firmware not ready after %d attempts: %w", attempts, ErrTimeout)
}

// findFPGAImage looks for a bitstream file matching the board's FPGA
// variant in the configured search directories. A nil image with nil
// error means no file was found.
func (d *Device) findFPGAImage() ([]byte, error) {
	name, wantSize := d.fpgaSize.fpgaImage()
	if name == "" {
		return nil, nil
	}
	dirs := append([]string{}, d.opts.SearchDirs...)
	if env := os.Getenv("BLADERF_SEARCH_DIR"); env != "" {
		dirs = append(dirs, env)
	}
	dirs = append(dirs, ".")
	for _, dir := range dirs {
		path := filepath.Join(dir, name)
		image, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		d.log("Open: loading FPGA bitstream from %s", path)
		if len(image) != wantSize && os.Getenv("BLADERF_SKIP_FPGA_SIZE_CHECK") == "" {
			return nil, fmt.Errorf("Open: bitstream %s is %d bytes, expected %d: %w",
				path, len(image), wantSize, ErrInval)
		}
		return image, nil
	}
	return nil, nil
}

// initialize performs post-FPGA board bring-up: protocol selection, RF
// front-end reset, power monitor and RF chip initialization, and
// initial band selection. On success the board is in state Initialized.
func (d *Device) initialize() error {
	fpga, err := d.backend.FPGAVersion()
	if err != nil {
		return fmt.Errorf("initialize: FPGA version: %w", err)
	}
	d.fpgaVersion = fpga
	d.capabilities |= fpgaCapabilities(fpga)
	d.log("initialize: FPGA %s, capabilities 0x%x", fpga, d.capabilities)
	d.state = StateFPGALoaded

	if err := checkCompat(d.fwVersion, fpga); err != nil {
		d.log("initialize: version mismatch: %v", err)
	}

	if err := d.backend.SetFPGAProtocol(FPGAProtocolNiosII); err != nil {
		return fmt.Errorf("initialize: FPGA protocol: %w", err)
	}

	// Pulse the RF front-end enables so the switches start from a
	// known state, then drop back to everything off.
	if err := d.backend.RFFEControlWrite((1 << rffeControlEnable) | (1 << rffeControlTXNRX)); err != nil {
		return fmt.Errorf("initialize: RFFE reset: %w", err)
	}

	if pm := d.opts.PowerMonitor; pm != nil {
		if err := pm.Init(); err != nil {
			return fmt.Errorf("initialize: power monitor: %w", err)
		}
	}

	params := d.opts.InitParams
	if params == nil {
		p := ad9361.DefaultInitParams
		params = &p
	}
	if err := d.chip.Init(params); err != nil {
		return chipError("initialize: chip init", err)
	}
	d.chipInited = true
	if err := d.chip.SetTxFIRConfig(defaultTxFIR); err != nil {
		return chipError("initialize: TX FIR", err)
	}
	if err := d.chip.SetRxFIRConfig(defaultRxFIR); err != nil {
		return chipError("initialize: RX FIR", err)
	}
	if err := d.chip.SetRxFIREnable(true); err != nil {
		return chipError("initialize: RX FIR enable", err)
	}

	reg, err := d.backend.RFFEControlRead()
	if err != nil {
		return fmt.Errorf("initialize: RFFE read: %w", err)
	}
	reg &^= (1 << rffeControlEnable) | (1 << rffeControlTXNRX)
	if err := d.backend.RFFEControlWrite(reg); err != nil {
		return fmt.Errorf("initialize: RFFE write: %w", err)
	}

	if err := d.SelectBand(ChannelTX1, params.TxSynthHz); err != nil {
		return err
	}
	if err := d.SelectBand(ChannelRX1, params.RxSynthHz); err != nil {
		return err
	}

	d.state = StateInitialized
	d.log("initialize: board ready, firmware %s FPGA %s", d.fwVersion, d.fpgaVersion)
	return nil
}

// Close releases the device. Streams are torn down and the RF chip is
// put back into reset. Close is safe on a nil device.
func (d *Device) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.sync {
		if d.sync[i] != nil {
			d.sync[i].Deinit()
			d.sync[i] = nil
		}
	}
	// Keyed on Init having succeeded, not on board state: a bring-up
	// that failed after Init still left the chip running.
	if d.chip != nil && d.chipInited {
		if err := d.chip.Deinit(); err != nil {
			d.log("Close: chip deinit: %v", err)
		}
		d.chipInited = false
	}
	d.state = StateUninitialized
}

// checkState verifies the board has progressed at least to state min.
func (d *Device) checkState(op string, min BoardState) error {
	if d == nil || d.backend == nil {
		return fmt.Errorf("%s: device not open: %w", op, ErrInval)
	}
	if d.state < min {
		d.log("%s: board state %s, requires %s", op, d.state, min)
		return fmt.Errorf("%s: board state %s, requires %s: %w", op, d.state, min, ErrNotInit)
	}
	return nil
}

// checkStateLocked is checkState for callers holding d.mu; on failure
// the lock is released before returning.
func (d *Device) checkStateLocked(op string, min BoardState) error {
	if err := d.checkState(op, min); err != nil {
		d.mu.Unlock()
		return err
	}
	return nil
}

// State returns the board bring-up state.
func (d *Device) State() BoardState { return d.state }

// Serial returns the device serial number string.
func (d *Device) Serial() string { return d.backend.Serial() }

// Speed returns the negotiated USB link speed.
func (d *Device) Speed() (Speed, error) {
	if err := d.checkState("Speed", StateFirmwareLoaded); err != nil {
		return SpeedUnknown, err
	}
	return d.backend.DeviceSpeed()
}

// FirmwareVersion returns the USB firmware version.
func (d *Device) FirmwareVersion() (Version, error) {
	if err := d.checkState("FirmwareVersion", StateFirmwareLoaded); err != nil {
		return Version{}, err
	}
	return d.fwVersion, nil
}

// FPGAVersion returns the configured FPGA's version.
func (d *Device) FPGAVersion() (Version, error) {
	if err := d.checkState("FPGAVersion", StateFPGALoaded); err != nil {
		return Version{}, err
	}
	return d.fpgaVersion, nil
}

// FPGASize returns the FPGA variant fitted to the board.
func (d *Device) FPGASize() (FPGASize, error) {
	if err := d.checkState("FPGASize", StateFirmwareLoaded); err != nil {
		return FPGAUnknown, err
	}
	return d.fpgaSize, nil
}

// Capabilities returns the device's capability mask, a union of Cap*
// bits derived from the firmware and (once loaded) FPGA versions.
func (d *Device) Capabilities() uint64 { return d.capabilities }

// IsFPGAConfigured reports whether the FPGA currently holds a
// bitstream.
func (d *Device) IsFPGAConfigured() (bool, error) {
	if err := d.checkState("IsFPGAConfigured", StateFirmwareLoaded); err != nil {
		return false, err
	}
	return d.backend.IsFPGAConfigured()
}

// LoadFPGA configures the FPGA with the given bitstream and runs board
// initialization.
func (d *Device) LoadFPGA(image []byte) error {
	if err := d.checkState("LoadFPGA", StateFirmwareLoaded); err != nil {
		return err
	}
	_, wantSize := d.fpgaSize.fpgaImage()
	if len(image) != wantSize && os.Getenv("BLADERF_SKIP_FPGA_SIZE_CHECK") == "" {
		return fmt.Errorf("LoadFPGA: image is %d bytes, expected %d: %w",
			len(image), wantSize, ErrInval)
	}
	if err := d.backend.LoadFPGA(image); err != nil {
		return fmt.Errorf("LoadFPGA: %w", err)
	}
	return d.initialize()
}

// DeviceReset reboots the device into its firmware. The handle is
// unusable afterwards and must be reopened.
func (d *Device) DeviceReset() error {
	if err := d.checkState("DeviceReset", StateFirmwareLoaded); err != nil {
		return err
	}
	if err := d.backend.DeviceReset(); err != nil {
		return fmt.Errorf("DeviceReset: %w", err)
	}
	d.state = StateUninitialized
	return nil
}

// Flash geometry.
const (
	flashPageSize       = 256
	flashEraseBlockSize = 65536
	// Firmware region: erase blocks 0-3. The FPGA autoload region
	// starts at erase block 4.
	flashFirmwareEB      = 0
	flashFirmwareMaxSize = 4 * flashEraseBlockSize
	flashFPGAEB          = 4
)

// EraseFlash erases count erase blocks starting at eraseBlock.
func (d *Device) EraseFlash(eraseBlock, count uint32) error {
	if err := d.checkState("EraseFlash", StateFirmwareLoaded); err != nil {
		return err
	}
	if err := d.backend.EraseFlash(eraseBlock, count); err != nil {
		return fmt.Errorf("EraseFlash: %w", err)
	}
	return nil
}

// ReadFlash reads count pages starting at page.
func (d *Device) ReadFlash(page, count uint32) ([]byte, error) {
	if err := d.checkState("ReadFlash", StateFirmwareLoaded); err != nil {
		return nil, err
	}
	buf, err := d.backend.ReadFlash(page, count)
	if err != nil {
		return nil, fmt.Errorf("ReadFlash: %w", err)
	}
	return buf, nil
}

// WriteFlash writes count pages starting at page. The target region
// must have been erased.
func (d *Device) WriteFlash(buf []byte, page, count uint32) error {
	if err := d.checkState("WriteFlash", StateFirmwareLoaded); err != nil {
		return err
	}
	if len(buf) != int(count)*flashPageSize {
		return fmt.Errorf("WriteFlash: buffer is %d bytes for %d pages: %w",
			len(buf), count, ErrInval)
	}
	if err := d.backend.WriteFlash(buf, page, count); err != nil {
		return fmt.Errorf("WriteFlash: %w", err)
	}
	return nil
}

// FlashFirmware writes a firmware image into the flash boot region.
func (d *Device) FlashFirmware(image []byte) error {
	if err := d.checkState("FlashFirmware", StateFirmwareLoaded); err != nil {
		return err
	}
	if len(image) > flashFirmwareMaxSize && os.Getenv("BLADERF_SKIP_FW_SIZE_CHECK") == "" {
		return fmt.Errorf("FlashFirmware: image is %d bytes, max %d: %w",
			len(image), flashFirmwareMaxSize, ErrInval)
	}
	padded := image
	if rem := len(padded) % flashPageSize; rem != 0 {
		padded = append(append([]byte{}, image...), make([]byte, flashPageSize-rem)...)
	}
	count := uint32(len(padded) / flashPageSize)
	if err := d.EraseFlash(flashFirmwareEB, (count*flashPageSize+flashEraseBlockSize-1)/flashEraseBlockSize); err != nil {
		return err
	}
	return d.WriteFlash(padded, flashFirmwareEB*flashEraseBlockSize/flashPageSize, count)
}

// FlashFPGA writes an FPGA bitstream into the flash autoload region,
// from where the firmware configures the FPGA at power-up.
func (d *Device) FlashFPGA(image []byte) error {
	if err := d.checkState("FlashFPGA", StateFirmwareLoaded); err != nil {
		return err
	}
	_, wantSize := d.fpgaSize.fpgaImage()
	if len(image) != wantSize && os.Getenv("BLADERF_SKIP_FPGA_SIZE_CHECK") == "" {
		return fmt.Errorf("FlashFPGA: image is %d bytes, expected %d: %w",
			len(image), wantSize, ErrInval)
	}
	padded := image
	if rem := len(padded) % flashPageSize; rem != 0 {
		padded = append(append([]byte{}, image...), make([]byte, flashPageSize-rem)...)
	}
	count := uint32(len(padded) / flashPageSize)
	blocks := (count*flashPageSize + flashEraseBlockSize - 1) / flashEraseBlockSize
	if err := d.EraseFlash(flashFPGAEB, blocks); err != nil {
		return err
	}
	return d.WriteFlash(padded, flashFPGAEB*flashEraseBlockSize/flashPageSize, count)
}

// EraseStoredFPGA erases the flash autoload region so the firmware no
// longer configures the FPGA at power-up.
func (d *Device) EraseStoredFPGA() error {
	if err := d.checkState("EraseStoredFPGA", StateFirmwareLoaded); err != nil {
		return err
	}
	_, size := d.fpgaSize.fpgaImage()
	blocks := (uint32(size) + flashEraseBlockSize - 1) / flashEraseBlockSize
	return d.EraseFlash(flashFPGAEB, blocks)
}

// Default FIR stages programmed at initialization. Both are identity
// filters at rate 1; the TX side carries the chip's mandatory -6dB.
var defaultTxFIR = ad9361.FIRConfig{
	Rate: 1, Gain: -6, NumCoef: 16,
	Coef: []int16{0, 0, 0, 0, 0, 0, 0, 32767, 0, 0, 0, 0, 0, 0, 0, 0},
}

var defaultRxFIR = ad9361.FIRConfig{
	Rate: 1, Gain: 0, NumCoef: 16,
	Coef: []int16{0, 0, 0, 0, 0, 0, 0, 32767, 0, 0, 0, 0, 0, 0, 0, 0},
}
