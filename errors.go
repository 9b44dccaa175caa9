// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package bladerf

import (
	"errors"
	"fmt"

	"github.com/butshuti/bladeRF/ad9361"
)

// Driver error taxonomy. Operations wrap one of these sentinels with
// fmt.Errorf("...%w") so callers can classify failures with errors.Is
// while still getting a message that names the operation.
var (
	ErrUnexpected  = errors.New("bladerf: unexpected failure")
	ErrRange       = errors.New("bladerf: value outside allowed range")
	ErrInval       = errors.New("bladerf: invalid argument")
	ErrMem         = errors.New("bladerf: memory allocation failure")
	ErrIO          = errors.New("bladerf: input/output failure")
	ErrTimeout     = errors.New("bladerf: operation timed out")
	ErrNoDev       = errors.New("bladerf: no device present")
	ErrUnsupported = errors.New("bladerf: operation not supported")
	ErrNotInit     = errors.New("bladerf: device insufficiently initialized")
	ErrUpdateFPGA  = errors.New("bladerf: FPGA update required")
	ErrUpdateFW    = errors.New("bladerf: firmware update required")
	ErrWouldBlock  = errors.New("bladerf: operation would block")
)

// chipError maps an error returned by the RF chip onto the driver
// taxonomy and wraps it with the operation name. Chip failure detail
// beyond the class is deliberately dropped; the class is what callers
// act on.
func chipError(op string, err error) error {
	kind := ErrUnexpected
	switch {
	case errors.Is(err, ad9361.ErrIO):
		kind = ErrIO
	case errors.Is(err, ad9361.ErrAgain):
		kind = ErrWouldBlock
	case errors.Is(err, ad9361.ErrNoMem):
		kind = ErrMem
	case errors.Is(err, ad9361.ErrNoDev):
		kind = ErrNoDev
	case errors.Is(err, ad9361.ErrInval):
		kind = ErrInval
	case errors.Is(err, ad9361.ErrTimeout):
		kind = ErrTimeout
	case errors.Is(err, ad9361.ErrFault):
		kind = ErrUnexpected
	}
	return fmt.Errorf("%s: %v: %w", op, err, kind)
}
