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

// Package gateway defines the capability interface a camera session uses
// to talk to an imager. Implementations wrap a vendor SDK, a network
// stream or a simulated device.
package gateway

import (
	"context"

	"github.com/TheCacophonyProject/irimager/frame"
	"github.com/TheCacophonyProject/irimager/palette"
)

// Handle identifies one initialised camera. Handles are assigned by the
// gateway and are only valid between Init and Terminate.
type Handle uint32

// AutoAmbient passed as the ambient temperature lets the device measure
// ambient itself. Any value below absolute zero has the same meaning.
const AutoAmbient = -999.0

// Gateway is the set of device calls a session needs. Calls may block and
// fail; failures are reported as a Code or, for transport problems, any
// other error.
//
// Unless the implementation also satisfies ConcurrentFetcher, callers must
// not issue a call while another call on the same handle is in flight.
type Gateway interface {
	Init(ctx context.Context, src Source) (Handle, error)
	Terminate(h Handle) error

	ThermalSize(h Handle) (width, height int, err error)
	PaletteSize(h Handle) (width, height int, err error)

	// FetchThermalPalette blocks until the device has a frame newer than
	// the last one fetched and copies it into the caller's buffers, which
	// must be sized for the dimensions reported at connect time.
	FetchThermalPalette(ctx context.Context, h Handle, thermal []uint16, rgb []byte) (frame.Metadata, error)

	SetPalette(h Handle, p palette.Palette, s palette.Scaling) error
	SetManualRange(h Handle, min, max float64) error
	SetTemperatureRange(h Handle, min, max float64) error
	SetRadiationParameters(h Handle, emissivity, transmissivity, ambient float64) error
	SetShutterMode(h Handle, automatic bool) error
	TriggerShutter(h Handle) error
	SetClippedPosition(h Handle, x, y uint16) error
	ClippedPosition(h Handle) (x, y uint16, err error)
}

// ConcurrentFetcher is implemented by gateways whose fetch call may run
// alongside configuration calls on the same handle.
type ConcurrentFetcher interface {
	ConcurrentFetch() bool
}

// FrameRater is implemented by gateways that know the nominal frame rate of
// a camera.
type FrameRater interface {
	FrameRate(h Handle) int
}

// ConcurrentFetch reports whether gw declares concurrent fetches safe.
func ConcurrentFetch(gw Gateway) bool {
	cf, ok := gw.(ConcurrentFetcher)
	return ok && cf.ConcurrentFetch()
}

// FrameRate returns the nominal frame rate for h, or 0 when gw doesn't know.
func FrameRate(gw Gateway, h Handle) int {
	if fr, ok := gw.(FrameRater); ok {
		return fr.FrameRate(h)
	}
	return 0
}
