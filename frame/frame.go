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

// Package frame holds the values produced by one acquisition cycle: a
// radiometric thermal grid, the false-colour palette rendering of the same
// instant and the metadata reported with them.
//
// Frames handed out by a session are never written to again, so they may be
// retained by consumers for as long as needed.
package frame

import (
	"fmt"
	"image"
	"image/color"
	"time"
)

// Raw sample encoding used by the imager: t = (v - RawOffset) / RawScale.
const (
	RawOffset = 1000.0
	RawScale  = 10.0
)

// ToCelsius converts a raw radiometric sample to degrees Celsius.
func ToCelsius(v uint16) float64 {
	return RawToCelsius(float64(v))
}

// RawToCelsius converts a (possibly averaged) raw value to degrees Celsius.
func RawToCelsius(v float64) float64 {
	return (v - RawOffset) / RawScale
}

// FromCelsius returns the raw sample closest to the temperature t. Values
// outside the representable range are clamped.
func FromCelsius(t float64) uint16 {
	v := t*RawScale + RawOffset
	switch {
	case v <= 0:
		return 0
	case v >= 0xFFFF:
		return 0xFFFF
	}
	return uint16(v + 0.5)
}

// FlagState is the position of the shutter flag when a frame was captured.
type FlagState uint32

const (
	FlagOpen FlagState = iota
	FlagClosed
	FlagOpening
	FlagClosing
	FlagError
	FlagInitializing
)

var flagStateNames = [...]string{"open", "closed", "opening", "closing", "error", "initializing"}

func (s FlagState) String() string {
	if int(s) < len(flagStateNames) {
		return flagStateNames[s]
	}
	return fmt.Sprintf("FlagState(%d)", uint32(s))
}

// Metadata is reported by the device with every fetched frame pair.
type Metadata struct {
	Counter         uint32        // consecutive number of the frame
	CounterHW       uint32        // hardware frame counter
	DeviceTimestamp time.Duration // device clock at capture
	Captured        time.Time     // host clock when the fetch returned
	FlagState       FlagState
	TempChip        float32
	TempFlag        float32
	TempBox         float32
}

// ThermalFrame is a row-major grid of raw radiometric samples.
type ThermalFrame struct {
	Width  int
	Height int
	Pix    []uint16
}

// NewThermalFrame allocates a zeroed grid of the given dimensions.
func NewThermalFrame(width, height int) *ThermalFrame {
	return &ThermalFrame{
		Width:  width,
		Height: height,
		Pix:    make([]uint16, width*height),
	}
}

// At returns the raw sample at column x, row y.
func (f *ThermalFrame) At(x, y int) uint16 {
	return f.Pix[y*f.Width+x]
}

// Celsius returns the temperature at column x, row y.
func (f *ThermalFrame) Celsius(x, y int) float64 {
	return ToCelsius(f.At(x, y))
}

// Row returns the samples of row y. The slice shares storage with the frame.
func (f *ThermalFrame) Row(y int) []uint16 {
	return f.Pix[y*f.Width : (y+1)*f.Width]
}

// MeanRaw returns the mean of all raw samples, or 0 for an empty frame.
func (f *ThermalFrame) MeanRaw() float64 {
	if len(f.Pix) == 0 {
		return 0
	}
	var sum uint64
	for _, v := range f.Pix {
		sum += uint64(v)
	}
	return float64(sum) / float64(len(f.Pix))
}

// MeanTemperature sums the raw samples, divides by the sample count and
// converts the mean once.
func (f *ThermalFrame) MeanTemperature() float64 {
	return RawToCelsius(f.MeanRaw())
}

// MinMax returns the smallest and largest raw samples.
func (f *ThermalFrame) MinMax() (uint16, uint16) {
	if len(f.Pix) == 0 {
		return 0, 0
	}
	lo, hi := f.Pix[0], f.Pix[0]
	for _, v := range f.Pix[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Gray16 returns a copy of the raw grid as an image.
func (f *ThermalFrame) Gray16() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x, v := range f.Row(y) {
			img.SetGray16(x, y, color.Gray16{Y: v})
		}
	}
	return img
}

// PaletteFrame is a 24 bit RGB rendering. It is a visualisation only and must
// not be read as radiometric data.
type PaletteFrame struct {
	Width  int
	Height int
	Pix    []byte // R, G, B per pixel, row-major
}

// BytesPerPixel of a PaletteFrame.
const BytesPerPixel = 3

// NewPaletteFrame allocates a black image of the given dimensions.
func NewPaletteFrame(width, height int) *PaletteFrame {
	return &PaletteFrame{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*BytesPerPixel),
	}
}

// RGBAt returns the colour at column x, row y.
func (p *PaletteFrame) RGBAt(x, y int) color.RGBA {
	i := (y*p.Width + x) * BytesPerPixel
	return color.RGBA{R: p.Pix[i], G: p.Pix[i+1], B: p.Pix[i+2], A: 0xFF}
}

// RGBA converts the rendering into an image.RGBA for display or encoding.
func (p *PaletteFrame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	for i, j := 0, 0; i < len(p.Pix); i, j = i+BytesPerPixel, j+4 {
		img.Pix[j] = p.Pix[i]
		img.Pix[j+1] = p.Pix[i+1]
		img.Pix[j+2] = p.Pix[i+2]
		img.Pix[j+3] = 0xFF
	}
	return img
}

// Frame is a thermal grid and its palette rendering from the same instant.
type Frame struct {
	Thermal  *ThermalFrame
	Palette  *PaletteFrame
	Metadata Metadata
}

// MeanTemperature of the thermal grid in degrees Celsius.
func (f *Frame) MeanTemperature() float64 {
	return f.Thermal.MeanTemperature()
}
