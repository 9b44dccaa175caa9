// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package bladerf

import "fmt"

// EnableModule turns a direction's RF chains on or off. Enabling
// routes the front-end for the direction's current frequency, sets the
// enable bit and switch field in one RFFE register write, and starts
// the backend's sample transport. Disabling tears the stream down
// first, then parks the switches in shutdown with the enable bit
// cleared, again in a single write.
func (d *Device) EnableModule(dir Direction, enable bool) error {
	if err := d.checkState("EnableModule", StateInitialized); err != nil {
		return err
	}
	ch := ChannelRX(0)
	enableBit := uint32(1) << rffeControlEnable
	if dir == TXDir {
		ch = ChannelTX(0)
		enableBit = 1 << rffeControlTXNRX
	}

	var freq uint64
	if enable {
		f, err := d.Frequency(ch)
		if err != nil {
			return err
		}
		freq = f
		if err := d.setChipPort(ch, true, freq); err != nil {
			return fmt.Errorf("EnableModule: %w", err)
		}
	} else if d.sync[dir] != nil {
		d.sync[dir].Deinit()
		d.sync[dir] = nil
	}

	reg, err := d.backend.RFFEControlRead()
	if err != nil {
		return fmt.Errorf("EnableModule: RFFE read: %w", err)
	}
	if enable {
		reg |= enableBit
	} else {
		reg &^= enableBit
	}
	// Enable bit and switch field change together; the hardware sees
	// exactly one register update per state transition.
	reg, inBand := applySPDT(reg, ch, enable, freq)
	if !inBand {
		d.log("EnableModule: no band serves %d Hz on %s, shutting down", freq, ch)
	}
	if err := d.backend.RFFEControlWrite(reg); err != nil {
		return fmt.Errorf("EnableModule: RFFE write: %w", err)
	}

	if err := d.backend.EnableModule(dir, enable); err != nil {
		return fmt.Errorf("EnableModule: backend: %w", err)
	}
	d.log("EnableModule: %s %v", dir, enable)
	return nil
}

// Loopback modes.
type Loopback int

const (
	LoopbackNone Loopback = iota
	// LoopbackFirmware loops samples back inside the USB firmware.
	LoopbackFirmware
	// LoopbackRFICBIST loops TX data to RX inside the RF chip.
	LoopbackRFICBIST
)

// SetLoopback configures a loopback mode, clearing whichever mode was
// previously active.
func (d *Device) SetLoopback(mode Loopback) error {
	if err := d.checkState("SetLoopback", StateInitialized); err != nil {
		return err
	}
	switch mode {
	case LoopbackNone:
		if err := d.backend.SetFirmwareLoopback(false); err != nil {
			return fmt.Errorf("SetLoopback: %w", err)
		}
		if err := d.chip.SetBISTLoopback(0); err != nil {
			return chipError("SetLoopback", err)
		}
	case LoopbackFirmware:
		if d.capabilities&CapFirmwareLoopback == 0 {
			return fmt.Errorf("SetLoopback: firmware loopback requires newer firmware: %w", ErrUnsupported)
		}
		if err := d.chip.SetBISTLoopback(0); err != nil {
			return chipError("SetLoopback", err)
		}
		if err := d.backend.SetFirmwareLoopback(true); err != nil {
			return fmt.Errorf("SetLoopback: %w", err)
		}
	case LoopbackRFICBIST:
		if err := d.backend.SetFirmwareLoopback(false); err != nil {
			return fmt.Errorf("SetLoopback: %w", err)
		}
		if err := d.chip.SetBISTLoopback(1); err != nil {
			return chipError("SetLoopback", err)
		}
	default:
		return fmt.Errorf("SetLoopback: invalid mode %d: %w", int(mode), ErrInval)
	}
	return nil
}

// GetLoopback returns the active loopback mode.
func (d *Device) GetLoopback() (Loopback, error) {
	if err := d.checkState("GetLoopback", StateInitialized); err != nil {
		return LoopbackNone, err
	}
	if d.capabilities&CapFirmwareLoopback != 0 {
		fw, err := d.backend.GetFirmwareLoopback()
		if err != nil {
			return LoopbackNone, fmt.Errorf("GetLoopback: %w", err)
		}
		if fw {
			return LoopbackFirmware, nil
		}
	}
	bist, err := d.chip.GetBISTLoopback()
	if err != nil {
		return LoopbackNone, chipError("GetLoopback", err)
	}
	if bist == 1 {
		return LoopbackRFICBIST, nil
	}
	return LoopbackNone, nil
}

// RXMux selects what the FPGA feeds into the RX sample stream.
type RXMux int

const (
	RXMuxBaseband        RXMux = 0
	RXMux12BitCounter    RXMux = 1
	RXMux32BitCounter    RXMux = 2
	RXMuxDigitalLoopback RXMux = 4
)

const (
	rxMuxShift = 8
	rxMuxMask  = 0x7 << rxMuxShift
)

// SetRXMux selects the RX sample stream source.
func (d *Device) SetRXMux(mux RXMux) error {
	if err := d.checkState("SetRXMux", StateInitialized); err != nil {
		return err
	}
	switch mux {
	case RXMuxBaseband, RXMux12BitCounter, RXMux32BitCounter, RXMuxDigitalLoopback:
	default:
		return fmt.Errorf("SetRXMux: invalid mux mode %d: %w", int(mux), ErrInval)
	}
	reg, err := d.backend.ConfigGPIORead()
	if err != nil {
		return fmt.Errorf("SetRXMux: config GPIO read: %w", err)
	}
	reg = reg&^uint32(rxMuxMask) | uint32(mux)<<rxMuxShift
	if err := d.backend.ConfigGPIOWrite(reg); err != nil {
		return fmt.Errorf("SetRXMux: config GPIO write: %w", err)
	}
	return nil
}

// GetRXMux returns the RX sample stream source.
func (d *Device) GetRXMux() (RXMux, error) {
	if err := d.checkState("GetRXMux", StateInitialized); err != nil {
		return RXMuxBaseband, err
	}
	reg, err := d.backend.ConfigGPIORead()
	if err != nil {
		return RXMuxBaseband, fmt.Errorf("GetRXMux: config GPIO read: %w", err)
	}
	mux := RXMux(reg & rxMuxMask >> rxMuxShift)
	switch mux {
	case RXMuxBaseband, RXMux12BitCounter, RXMux32BitCounter, RXMuxDigitalLoopback:
		return mux, nil
	}
	return RXMuxBaseband, fmt.Errorf("GetRXMux: invalid mux mode %d: %w", int(mux), ErrUnexpected)
}

// Timestamp returns the free-running sample counter for a direction.
func (d *Device) Timestamp(dir Direction) (uint64, error) {
	if err := d.checkState("Timestamp", StateFPGALoaded); err != nil {
		return 0, err
	}
	if d.capabilities&CapFPGATimestamps == 0 {
		return 0, fmt.Errorf("Timestamp: FPGA too old for timestamps: %w", ErrUnsupported)
	}
	ts, err := d.backend.Timestamp(dir)
	if err != nil {
		return 0, fmt.Errorf("Timestamp: %w", err)
	}
	return ts, nil
}

// The VCTCXO trim DAC midpoint; the board has no factory calibration
// table, frequency trim is done at runtime.
const trimDACDefault = 0x7FFF

// TrimDACRead returns the VCTCXO trim DAC setting.
func (d *Device) TrimDACRead() (uint16, error) {
	if err := d.checkState("TrimDACRead", StateFPGALoaded); err != nil {
		return 0, err
	}
	v, err := d.backend.TrimDACRead()
	if err != nil {
		return 0, fmt.Errorf("TrimDACRead: %w", err)
	}
	return v, nil
}

// TrimDACWrite sets the VCTCXO trim DAC.
func (d *Device) TrimDACWrite(v uint16) error {
	if err := d.checkState("TrimDACWrite", StateFPGALoaded); err != nil {
		return err
	}
	if err := d.backend.TrimDACWrite(v); err != nil {
		return fmt.Errorf("TrimDACWrite: %w", err)
	}
	return nil
}

// ChipRegisterRead reads a raw RF chip register. Unlike the rest of
// the control surface this takes the device lock: diagnostic tooling
// polls registers from its own goroutine.
func (d *Device) ChipRegisterRead(addr uint16) (uint8, error) {
	d.mu.Lock()
	if err := d.checkStateLocked("ChipRegisterRead", StateFPGALoaded); err != nil {
		return 0, err
	}
	defer d.mu.Unlock()
	v, err := d.backend.ChipRead(addr)
	if err != nil {
		return 0, fmt.Errorf("ChipRegisterRead: %w", err)
	}
	return v, nil
}

// ChipRegisterWrite writes a raw RF chip register.
func (d *Device) ChipRegisterWrite(addr uint16, val uint8) error {
	d.mu.Lock()
	if err := d.checkStateLocked("ChipRegisterWrite", StateFPGALoaded); err != nil {
		return err
	}
	defer d.mu.Unlock()
	if err := d.backend.ChipWrite(addr, val); err != nil {
		return fmt.Errorf("ChipRegisterWrite: %w", err)
	}
	return nil
}

// Trigger register bits.
const (
	triggerRegArm    = 0x1
	triggerRegFire   = 0x2
	triggerRegMaster = 0x4
	triggerRegLine   = 0x8
)

// TriggerRole is a device's role in a chained trigger.
type TriggerRole int

const (
	TriggerRoleDisabled TriggerRole = iota
	TriggerRoleMaster
	TriggerRoleSlave
)

// Trigger describes one configured hardware trigger.
type Trigger struct {
	Channel Channel
	Role    TriggerRole
	Signal  TriggerSignal
}

func (d *Device) checkTriggerCaps(op string) error {
	if err := d.checkState(op, StateInitialized); err != nil {
		return err
	}
	if d.capabilities&CapFPGATriggers == 0 {
		return fmt.Errorf("%s: FPGA too old for triggers: %w", op, ErrUnsupported)
	}
	return nil
}

// TriggerInit reads back a trigger's configured role.
func (d *Device) TriggerInit(ch Channel, sig TriggerSignal) (Trigger, error) {
	if err := d.checkTriggerCaps("TriggerInit"); err != nil {
		return Trigger{}, err
	}
	reg, err := d.backend.ReadTrigger(ch, sig)
	if err != nil {
		return Trigger{}, fmt.Errorf("TriggerInit: %w", err)
	}
	t := Trigger{Channel: ch, Signal: sig, Role: TriggerRoleSlave}
	if reg&triggerRegMaster != 0 {
		t.Role = TriggerRoleMaster
	} else if reg&triggerRegArm == 0 {
		t.Role = TriggerRoleDisabled
	}
	return t, nil
}

// TriggerArm arms or disarms a trigger, programming its role.
func (d *Device) TriggerArm(t Trigger, arm bool) error {
	if err := d.checkTriggerCaps("TriggerArm"); err != nil {
		return err
	}
	var reg uint8
	if arm {
		reg |= triggerRegArm
	}
	if t.Role == TriggerRoleMaster {
		reg |= triggerRegMaster
	}
	if err := d.backend.WriteTrigger(t.Channel, t.Signal, reg); err != nil {
		return fmt.Errorf("TriggerArm: %w", err)
	}
	return nil
}

// TriggerFire asserts a master trigger's fire request.
func (d *Device) TriggerFire(t Trigger) error {
	if err := d.checkTriggerCaps("TriggerFire"); err != nil {
		return err
	}
	if t.Role != TriggerRoleMaster {
		return fmt.Errorf("TriggerFire: only a master can fire: %w", ErrInval)
	}
	reg, err := d.backend.ReadTrigger(t.Channel, t.Signal)
	if err != nil {
		return fmt.Errorf("TriggerFire: %w", err)
	}
	if err := d.backend.WriteTrigger(t.Channel, t.Signal, reg|triggerRegFire); err != nil {
		return fmt.Errorf("TriggerFire: %w", err)
	}
	return nil
}

// TriggerState reports whether a trigger is armed, has fired, and has
// a pending fire request.
func (d *Device) TriggerState(t Trigger) (armed, fired, fireRequested bool, err error) {
	if err := d.checkTriggerCaps("TriggerState"); err != nil {
		return false, false, false, err
	}
	reg, err := d.backend.ReadTrigger(t.Channel, t.Signal)
	if err != nil {
		return false, false, false, fmt.Errorf("TriggerState: %w", err)
	}
	armed = reg&triggerRegArm != 0
	fireRequested = reg&triggerRegFire != 0
	fired = reg&triggerRegLine == 0
	return armed, fired, fireRequested, nil
}

// Scheduled retuning and VCTCXO taming need FPGA support the platform
// does not have.

// ScheduleRetune is not supported on this board.
func (d *Device) ScheduleRetune(ch Channel, timestamp uint64, freq uint64) error {
	return fmt.Errorf("ScheduleRetune: %w", ErrUnsupported)
}

// CancelScheduledRetunes is not supported on this board.
func (d *Device) CancelScheduledRetunes(ch Channel) error {
	return fmt.Errorf("CancelScheduledRetunes: %w", ErrUnsupported)
}

// SetVCTCXOTamerMode is not supported on this board.
func (d *Device) SetVCTCXOTamerMode(mode int) error {
	return fmt.Errorf("SetVCTCXOTamerMode: %w", ErrUnsupported)
}

// ExpansionAttach is not supported on this board.
func (d *Device) ExpansionAttach(xb int) error {
	return fmt.Errorf("ExpansionAttach: %w", ErrUnsupported)
}
