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

// Package palette defines the coloring palettes and scaling methods an
// imager can be configured with, and renders thermal grids into RGB images
// for gateways whose device has no on-board palette support.
package palette

import (
	"fmt"
	"image/color"
	"strings"
)

// Palette selects the false-colour lookup table. Values match the device
// enumeration.
type Palette int32

const (
	AlarmBlue Palette = iota + 1
	AlarmBlueHi
	GrayBW
	GrayWB
	AlarmGreen
	Iron
	IronHi
	Medical
	Rainbow
	RainbowHi
	AlarmRed
)

var paletteNames = map[Palette]string{
	AlarmBlue:   "alarm-blue",
	AlarmBlueHi: "alarm-blue-hi",
	GrayBW:      "gray-bw",
	GrayWB:      "gray-wb",
	AlarmGreen:  "alarm-green",
	Iron:        "iron",
	IronHi:      "iron-hi",
	Medical:     "medical",
	Rainbow:     "rainbow",
	RainbowHi:   "rainbow-hi",
	AlarmRed:    "alarm-red",
}

// Valid reports whether p is one of the 11 device palettes.
func (p Palette) Valid() bool {
	return p >= AlarmBlue && p <= AlarmRed
}

func (p Palette) String() string {
	if name, ok := paletteNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Palette(%d)", int32(p))
}

// ParsePalette accepts the names returned by Palette.String, case
// insensitively.
func ParsePalette(s string) (Palette, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range paletteNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown palette %q", s)
}

// Scaling selects how raw samples are mapped onto the palette.
type Scaling int32

const (
	Manual Scaling = iota + 1 // fixed temperature range, see Renderer.SetManualRange
	MinMax                    // frame minimum to frame maximum
	Sigma1                    // mean ± one standard deviation
	Sigma3                    // mean ± three standard deviations
)

var scalingNames = map[Scaling]string{
	Manual: "manual",
	MinMax: "minmax",
	Sigma1: "sigma1",
	Sigma3: "sigma3",
}

// Valid reports whether s is a known scaling method.
func (s Scaling) Valid() bool {
	return s >= Manual && s <= Sigma3
}

func (s Scaling) String() string {
	if name, ok := scalingNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Scaling(%d)", int32(s))
}

// ParseScaling accepts the names returned by Scaling.String.
func ParseScaling(s string) (Scaling, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range scalingNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown scaling method %q", s)
}

// LUTSize is the number of entries in each lookup table.
const LUTSize = 256

type stop struct {
	pos float64
	c   color.RGBA
}

func rgb(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}
}

var (
	black  = rgb(0, 0, 0)
	white  = rgb(255, 255, 255)
	blue   = rgb(0, 0, 255)
	cyan   = rgb(0, 255, 255)
	green  = rgb(0, 255, 0)
	yellow = rgb(255, 255, 0)
	red    = rgb(255, 0, 0)
)

var ironStops = []stop{
	{0, black},
	{0.2, rgb(32, 0, 140)},
	{0.45, rgb(204, 0, 119)},
	{0.7, rgb(255, 120, 0)},
	{0.9, rgb(255, 220, 40)},
	{1, white},
}

var ironHiStops = []stop{
	{0, black},
	{0.1, rgb(32, 0, 140)},
	{0.3, rgb(204, 0, 119)},
	{0.5, rgb(255, 120, 0)},
	{0.75, rgb(255, 220, 40)},
	{1, white},
}

var rainbowStops = []stop{
	{0, blue},
	{0.25, cyan},
	{0.5, green},
	{0.75, yellow},
	{1, red},
}

var rainbowHiStops = []stop{
	{0, black},
	{0.15, blue},
	{0.35, cyan},
	{0.55, green},
	{0.7, yellow},
	{0.85, red},
	{1, white},
}

const (
	// alarmEntries is the tenth of a LUT given to the alarm colour.
	alarmEntries = LUTSize / 10
	medicalBands = 8
)

var luts = buildLUTs()

func buildLUTs() map[Palette]*[LUTSize]color.RGBA {
	grayBW := gradient([]stop{{0, black}, {1, white}})
	grayWB := gradient([]stop{{0, white}, {1, black}})
	return map[Palette]*[LUTSize]color.RGBA{
		AlarmBlue:   alarm(grayBW, blue, false),
		AlarmBlueHi: alarm(grayBW, blue, true),
		GrayBW:      grayBW,
		GrayWB:      grayWB,
		AlarmGreen:  alarm(grayBW, green, true),
		Iron:        gradient(ironStops),
		IronHi:      gradient(ironHiStops),
		Medical:     banded(gradient(rainbowStops), medicalBands),
		Rainbow:     gradient(rainbowStops),
		RainbowHi:   gradient(rainbowHiStops),
		AlarmRed:    alarm(grayBW, red, true),
	}
}

// LUT returns the lookup table for p, or nil for an invalid palette.
func LUT(p Palette) *[LUTSize]color.RGBA {
	return luts[p]
}

func gradient(stops []stop) *[LUTSize]color.RGBA {
	lut := new([LUTSize]color.RGBA)
	j := 0
	for i := range lut {
		pos := float64(i) / (LUTSize - 1)
		for j < len(stops)-2 && pos > stops[j+1].pos {
			j++
		}
		a, b := stops[j], stops[j+1]
		f := (pos - a.pos) / (b.pos - a.pos)
		lut[i] = rgb(lerp(a.c.R, b.c.R, f), lerp(a.c.G, b.c.G, f), lerp(a.c.B, b.c.B, f))
	}
	return lut
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*f + 0.5)
}

// alarm colours the top (or bottom) alarmEntries of base with c.
func alarm(base *[LUTSize]color.RGBA, c color.RGBA, high bool) *[LUTSize]color.RGBA {
	lut := *base
	for i := 0; i < alarmEntries; i++ {
		if high {
			lut[LUTSize-1-i] = c
		} else {
			lut[i] = c
		}
	}
	return &lut
}

func banded(base *[LUTSize]color.RGBA, bands int) *[LUTSize]color.RGBA {
	lut := new([LUTSize]color.RGBA)
	width := LUTSize / bands
	for i := range lut {
		band := i / width
		mid := band*width + width/2
		if mid >= LUTSize {
			mid = LUTSize - 1
		}
		lut[i] = base[mid]
	}
	return lut
}
