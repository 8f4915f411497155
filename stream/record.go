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

// Package stream carries frames over a byte stream. A connection starts
// with a headers block describing the camera, followed by fixed size frame
// records:
//
//	metadata (headers.MetadataSize bytes, little endian)
//	thermal samples, uint16 little endian, row-major
//	palette pixels, 3 bytes each (R, G, B), row-major
//
// Gateway reads such a stream as a camera; Encoder and Server produce it.
package stream

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/TheCacophonyProject/irimager/frame"
	"github.com/TheCacophonyProject/irimager/headers"
)

// Device timestamps travel in 100ns ticks.
const tick = 100 * time.Nanosecond

// RecordSize returns the size of one frame record.
func RecordSize(info *headers.HeaderInfo) int {
	return headers.MetadataSize + info.ResX()*info.ResY()*2 + info.PaletteResX()*info.PaletteResY()*frame.BytesPerPixel
}

func putMetadata(b []byte, md frame.Metadata) {
	le := binary.LittleEndian
	le.PutUint32(b[0:], md.Counter)
	le.PutUint32(b[4:], md.CounterHW)
	le.PutUint64(b[8:], uint64(md.DeviceTimestamp/tick))
	le.PutUint32(b[16:], uint32(md.FlagState))
	le.PutUint32(b[20:], math.Float32bits(md.TempChip))
	le.PutUint32(b[24:], math.Float32bits(md.TempFlag))
	le.PutUint32(b[28:], math.Float32bits(md.TempBox))
}

func metadata(b []byte) frame.Metadata {
	le := binary.LittleEndian
	return frame.Metadata{
		Counter:         le.Uint32(b[0:]),
		CounterHW:       le.Uint32(b[4:]),
		DeviceTimestamp: time.Duration(le.Uint64(b[8:])) * tick,
		FlagState:       frame.FlagState(le.Uint32(b[16:])),
		TempChip:        math.Float32frombits(le.Uint32(b[20:])),
		TempFlag:        math.Float32frombits(le.Uint32(b[24:])),
		TempBox:         math.Float32frombits(le.Uint32(b[28:])),
	}
}

// marshalRecord encodes f into b, which must be RecordSize long.
func marshalRecord(b []byte, f *frame.Frame) {
	putMetadata(b, f.Metadata)
	i := headers.MetadataSize
	for _, v := range f.Thermal.Pix {
		binary.LittleEndian.PutUint16(b[i:], v)
		i += 2
	}
	copy(b[i:], f.Palette.Pix)
}

// unmarshalRecord decodes b into caller owned buffers.
func unmarshalRecord(b []byte, thermal []uint16, rgb []byte) frame.Metadata {
	md := metadata(b)
	i := headers.MetadataSize
	for j := range thermal {
		thermal[j] = binary.LittleEndian.Uint16(b[i:])
		i += 2
	}
	copy(rgb, b[i:])
	return md
}
