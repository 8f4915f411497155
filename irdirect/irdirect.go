//go:build irdirect

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

package irdirect

/*
#cgo LDFLAGS: -lirdirectsdk

#include <stdlib.h>

struct EvoIRFrameMetadata {
	unsigned int counter;
	unsigned int counterHW;
	long long timestamp;
	long long timestampMedia;
	int flagState;
	float tempChip;
	float tempFlag;
	float tempBox;
};

int evo_irimager_multi_usb_init(unsigned int* id, const char* xml_config, const char* formats_def, const char* log_file);
int evo_irimager_multi_tcp_init(unsigned int* id, const char* ip, int port);
int evo_irimager_multi_terminate(unsigned int id);
int evo_irimager_multi_get_thermal_image_size(unsigned int id, int* w, int* h);
int evo_irimager_multi_get_palette_image_size(unsigned int id, int* w, int* h);
int evo_irimager_multi_get_thermal_palette_image_metadata(unsigned int id, int w_t, int h_t, unsigned short* data_t, int w_p, int h_p, unsigned char* data_p, struct EvoIRFrameMetadata* metadata);
int evo_irimager_multi_set_palette(unsigned int id, int palette);
int evo_irimager_multi_set_palette_scale(unsigned int id, int scale);
int evo_irimager_multi_set_palette_manual_temp_range(unsigned int id, float t_min, float t_max);
int evo_irimager_multi_set_temperature_range(unsigned int id, int t_min, int t_max);
int evo_irimager_multi_set_shutter_mode(unsigned int id, int mode);
int evo_irimager_multi_trigger_shutter_flag(unsigned int id);
int evo_irimager_multi_set_radiation_parameters(unsigned int id, float emissivity, float transmissivity, float tAmbient);
int evo_irimager_multi_set_clipped_format_position(unsigned int id, unsigned short x, unsigned short y);
int evo_irimager_multi_get_clipped_format_position(unsigned int id, unsigned short* x, unsigned short* y);
*/
import "C"

import (
	"context"
	"log"
	"time"
	"unsafe"

	"github.com/TheCacophonyProject/irimager/frame"
	"github.com/TheCacophonyProject/irimager/gateway"
	"github.com/TheCacophonyProject/irimager/palette"
)

// Device timestamps are in 100ns units.
const tick = 100 * time.Nanosecond

// Gateway is a thin layer over the SDK's multi-instance API. The SDK
// keeps per-instance state, so fetches and commands on one instance
// must not overlap; the session serialises them.
type Gateway struct{}

var _ gateway.Gateway = (*Gateway)(nil)

func New() (gateway.Gateway, error) {
	return &Gateway{}, nil
}

func id(h gateway.Handle) C.uint {
	return C.uint(h)
}

func check(result C.int) error {
	return gateway.Check(int(result))
}

func (g *Gateway) Init(ctx context.Context, src gateway.Source) (gateway.Handle, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var h C.uint
	if src.IsNetwork() {
		host := C.CString(src.Host)
		defer C.free(unsafe.Pointer(host))
		port := src.Port
		if port == 0 {
			port = gateway.DefaultPort
		}
		if err := check(C.evo_irimager_multi_tcp_init(&h, host, C.int(port))); err != nil {
			log.Printf("tcp init %v: %v", src, err)
			return 0, gateway.CodeInitFailed
		}
		return gateway.Handle(h), nil
	}

	xml := C.CString(src.ConfigPath)
	defer C.free(unsafe.Pointer(xml))
	formats := C.CString(src.FormatsDir)
	defer C.free(unsafe.Pointer(formats))
	logFile := C.CString(src.LogPath)
	defer C.free(unsafe.Pointer(logFile))
	if err := check(C.evo_irimager_multi_usb_init(&h, xml, formats, logFile)); err != nil {
		log.Printf("usb init %v: %v", src, err)
		return 0, gateway.CodeInitFailed
	}
	return gateway.Handle(h), nil
}

func (g *Gateway) Terminate(h gateway.Handle) error {
	return check(C.evo_irimager_multi_terminate(id(h)))
}

func (g *Gateway) ThermalSize(h gateway.Handle) (int, int, error) {
	var w, ht C.int
	if err := check(C.evo_irimager_multi_get_thermal_image_size(id(h), &w, &ht)); err != nil {
		return 0, 0, err
	}
	return int(w), int(ht), nil
}

func (g *Gateway) PaletteSize(h gateway.Handle) (int, int, error) {
	var w, ht C.int
	if err := check(C.evo_irimager_multi_get_palette_image_size(id(h), &w, &ht)); err != nil {
		return 0, 0, err
	}
	return int(w), int(ht), nil
}

// FetchThermalPalette blocks inside the SDK, which cannot be interrupted,
// so ctx is only checked before the call. The buffer sizes are passed as
// the dimensions reported by ThermalSize and PaletteSize.
func (g *Gateway) FetchThermalPalette(ctx context.Context, h gateway.Handle, thermal []uint16, rgb []byte) (frame.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return frame.Metadata{}, err
	}
	tw, th, err := g.ThermalSize(h)
	if err != nil {
		return frame.Metadata{}, err
	}
	pw, ph, err := g.PaletteSize(h)
	if err != nil {
		return frame.Metadata{}, err
	}
	if len(thermal) != tw*th || len(rgb) != pw*ph*frame.BytesPerPixel || len(thermal) == 0 || len(rgb) == 0 {
		return frame.Metadata{}, gateway.CodeInvalidArgument
	}

	var md C.struct_EvoIRFrameMetadata
	result := C.evo_irimager_multi_get_thermal_palette_image_metadata(id(h),
		C.int(tw), C.int(th), (*C.ushort)(unsafe.Pointer(&thermal[0])),
		C.int(pw), C.int(ph), (*C.uchar)(unsafe.Pointer(&rgb[0])),
		&md)
	if err := check(result); err != nil {
		return frame.Metadata{}, err
	}
	return frame.Metadata{
		Counter:         uint32(md.counter),
		CounterHW:       uint32(md.counterHW),
		DeviceTimestamp: time.Duration(md.timestamp) * tick,
		Captured:        time.Now(),
		FlagState:       frame.FlagState(md.flagState),
		TempChip:        float32(md.tempChip),
		TempFlag:        float32(md.tempFlag),
		TempBox:         float32(md.tempBox),
	}, nil
}

// SetPalette takes two SDK calls. If the second fails the palette has
// changed but the scaling has not.
func (g *Gateway) SetPalette(h gateway.Handle, p palette.Palette, sc palette.Scaling) error {
	if !p.Valid() || !sc.Valid() {
		return gateway.CodeInvalidArgument
	}
	if err := check(C.evo_irimager_multi_set_palette(id(h), C.int(p))); err != nil {
		return err
	}
	return check(C.evo_irimager_multi_set_palette_scale(id(h), C.int(sc)))
}

func (g *Gateway) SetManualRange(h gateway.Handle, min, max float64) error {
	return check(C.evo_irimager_multi_set_palette_manual_temp_range(id(h), C.float(min), C.float(max)))
}

// SetTemperatureRange selects the device measurement range. The SDK
// takes whole degrees.
func (g *Gateway) SetTemperatureRange(h gateway.Handle, min, max float64) error {
	return check(C.evo_irimager_multi_set_temperature_range(id(h), C.int(min), C.int(max)))
}

func (g *Gateway) SetRadiationParameters(h gateway.Handle, emissivity, transmissivity, ambient float64) error {
	return check(C.evo_irimager_multi_set_radiation_parameters(id(h),
		C.float(emissivity), C.float(transmissivity), C.float(ambient)))
}

func (g *Gateway) SetShutterMode(h gateway.Handle, automatic bool) error {
	mode := C.int(0)
	if automatic {
		mode = 1
	}
	return check(C.evo_irimager_multi_set_shutter_mode(id(h), mode))
}

func (g *Gateway) TriggerShutter(h gateway.Handle) error {
	return check(C.evo_irimager_multi_trigger_shutter_flag(id(h)))
}

func (g *Gateway) SetClippedPosition(h gateway.Handle, x, y uint16) error {
	return check(C.evo_irimager_multi_set_clipped_format_position(id(h), C.ushort(x), C.ushort(y)))
}

func (g *Gateway) ClippedPosition(h gateway.Handle) (uint16, uint16, error) {
	var x, y C.ushort
	if err := check(C.evo_irimager_multi_get_clipped_format_position(id(h), &x, &y)); err != nil {
		return 0, 0, err
	}
	return uint16(x), uint16(y), nil
}
