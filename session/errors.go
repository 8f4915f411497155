// irimager - camera sessions for radiometric thermal imagers
//  Copyright (C) 2026, The Cacophony Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package session

import (
	"errors"
	"fmt"

	"github.com/TheCacophonyProject/irimager/gateway"
)

var (
	ErrConfigNotFound   = errors.New("camera configuration not found")
	ErrConnectionFailed = errors.New("connection failed")
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrDevice           = errors.New("device error")
	ErrAcquisition      = errors.New("acquisition failure")

	// ErrGatewayBusy is returned when a configuration call could not get
	// at the device within the command timeout.
	ErrGatewayBusy = errors.New("gateway busy")

	ErrManualRangeUnset = fmt.Errorf("%w: manual scaling needs a manual temperature range", ErrInvalidArgument)

	ErrDuplicateHandle = errors.New("camera handle already has a session")
	ErrUnknownSession  = errors.New("no session for camera handle")
)

// DeviceError is a failed gateway call. Kind is one of ErrConnectionFailed,
// ErrDevice or ErrAcquisition and Code the native result code.
type DeviceError struct {
	Op   string
	Code gateway.Code
	Kind error
	Err  error
}

func newDeviceError(op string, kind, err error) *DeviceError {
	return &DeviceError{
		Op:   op,
		Code: gateway.CodeOf(err),
		Kind: kind,
		Err:  err,
	}
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *DeviceError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func invalidArgument(format string, v ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, v...))
}
