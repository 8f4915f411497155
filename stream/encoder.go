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

package stream

import (
	"fmt"
	"io"

	"github.com/TheCacophonyProject/irimager/frame"
	"github.com/TheCacophonyProject/irimager/headers"
)

// Encoder writes a stream: the header once, then one record per frame.
type Encoder struct {
	w    io.Writer
	info *headers.HeaderInfo
	buf  []byte
}

// NewEncoder writes the header for info to w.
func NewEncoder(w io.Writer, info *headers.HeaderInfo) (*Encoder, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	if err := info.Write(w); err != nil {
		return nil, err
	}
	return &Encoder{
		w:    w,
		info: info,
		buf:  make([]byte, RecordSize(info)),
	}, nil
}

// Encode writes one frame record. The frame must match the header's
// dimensions.
func (e *Encoder) Encode(f *frame.Frame) error {
	if f.Thermal.Width != e.info.ResX() || f.Thermal.Height != e.info.ResY() {
		return fmt.Errorf("thermal frame is %dx%d, stream is %dx%d",
			f.Thermal.Width, f.Thermal.Height, e.info.ResX(), e.info.ResY())
	}
	if f.Palette.Width != e.info.PaletteResX() || f.Palette.Height != e.info.PaletteResY() {
		return fmt.Errorf("palette frame is %dx%d, stream is %dx%d",
			f.Palette.Width, f.Palette.Height, e.info.PaletteResX(), e.info.PaletteResY())
	}
	marshalRecord(e.buf, f)
	_, err := e.w.Write(e.buf)
	return err
}
