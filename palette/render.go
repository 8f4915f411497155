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

package palette

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/TheCacophonyProject/irimager/frame"
)

// ErrInvalidRange is returned for a manual range that is not finite or
// where min is not below max.
var ErrInvalidRange = errors.New("invalid temperature range")

// Renderer maps thermal grids onto a palette. It is safe for concurrent
// use; configuration changes apply from the next Render call.
type Renderer struct {
	mu        sync.Mutex
	palette   Palette
	scaling   Scaling
	manualMin float64
	manualMax float64
	manualSet bool
}

// NewRenderer returns a renderer using the Iron palette with MinMax scaling.
func NewRenderer() *Renderer {
	return &Renderer{
		palette: Iron,
		scaling: MinMax,
	}
}

// SetPalette changes the palette and scaling method.
func (r *Renderer) SetPalette(p Palette, s Scaling) error {
	if !p.Valid() {
		return fmt.Errorf("unknown palette %d", int32(p))
	}
	if !s.Valid() {
		return fmt.Errorf("unknown scaling method %d", int32(s))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.palette = p
	r.scaling = s
	return nil
}

// Palette returns the current palette and scaling method.
func (r *Renderer) Palette() (Palette, Scaling) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.palette, r.scaling
}

// SetManualRange sets the temperature range in °C used by Manual scaling.
func (r *Renderer) SetManualRange(min, max float64) error {
	if err := CheckRange(min, max); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manualMin = min
	r.manualMax = max
	r.manualSet = true
	return nil
}

// ManualRange returns the manual scaling range and whether it has been set.
func (r *Renderer) ManualRange() (float64, float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.manualMin, r.manualMax, r.manualSet
}

// CheckRange validates a temperature range.
func CheckRange(min, max float64) error {
	if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
		return fmt.Errorf("%w: %v to %v", ErrInvalidRange, min, max)
	}
	if min >= max {
		return fmt.Errorf("%w: min %v not below max %v", ErrInvalidRange, min, max)
	}
	return nil
}

// Render draws src into dst, resampling with nearest neighbour when the
// dimensions differ.
func (r *Renderer) Render(src *frame.ThermalFrame, dst *frame.PaletteFrame) {
	r.mu.Lock()
	p, s := r.palette, r.scaling
	lo, hi, ok := r.manualMin, r.manualMax, r.manualSet
	r.mu.Unlock()

	if s == Manual && !ok {
		// No range to scale against yet.
		s = MinMax
	}
	var rawLo, rawHi float64
	if s == Manual {
		rawLo = float64(frame.FromCelsius(lo))
		rawHi = float64(frame.FromCelsius(hi))
	} else {
		rawLo, rawHi = Bounds(s, src.Pix)
	}
	Draw(LUT(p), rawLo, rawHi, src, dst)
}

// Bounds returns the raw sample range a scaling method maps onto the full
// palette. Manual scaling has no data-derived bounds and falls back to
// MinMax.
func Bounds(s Scaling, pix []uint16) (float64, float64) {
	if len(pix) == 0 {
		return 0, 0
	}
	switch s {
	case Sigma1, Sigma3:
		k := 1.0
		if s == Sigma3 {
			k = 3
		}
		x := make([]float64, len(pix))
		for i, v := range pix {
			x[i] = float64(v)
		}
		mean, std := stat.MeanStdDev(x, nil)
		if math.IsNaN(std) {
			std = 0
		}
		return mean - k*std, mean + k*std
	default:
		lo, hi := pix[0], pix[0]
		for _, v := range pix[1:] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		return float64(lo), float64(hi)
	}
}

// Draw maps each sample linearly from [lo, hi] onto lut and writes the
// colours into dst. Samples outside the range are clamped to the ends.
func Draw(lut *[LUTSize]color.RGBA, lo, hi float64, src *frame.ThermalFrame, dst *frame.PaletteFrame) {
	if lut == nil {
		lut = LUT(Iron)
	}
	if src.Width == 0 || src.Height == 0 {
		return
	}
	span := hi - lo
	for y := 0; y < dst.Height; y++ {
		sy := y * src.Height / dst.Height
		row := src.Row(sy)
		out := dst.Pix[y*dst.Width*frame.BytesPerPixel:]
		for x := 0; x < dst.Width; x++ {
			v := float64(row[x*src.Width/dst.Width])
			idx := 0
			if span > 0 {
				f := (v - lo) / span
				switch {
				case f >= 1:
					idx = LUTSize - 1
				case f > 0:
					idx = int(f * (LUTSize - 1))
				}
			}
			c := lut[idx]
			out[x*3] = c.R
			out[x*3+1] = c.G
			out[x*3+2] = c.B
		}
	}
}
