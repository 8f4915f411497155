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

package simulator

import (
	"math"
	"math/rand"

	"github.com/TheCacophonyProject/irimager/frame"
)

const (
	blobTempC  = 37.0
	blobRadius = 0.12 // fraction of the frame width
	noiseC     = 0.15
	orbitSteps = 300 // frames per blob orbit
)

// scene is a background at ambient temperature with a gentle vertical
// gradient and one warm body circling the middle of the frame.
type scene struct {
	width    int
	height   int
	ambientC float64
	rand     *rand.Rand
}

func newScene(width, height int, ambientC float64, seed int64) *scene {
	return &scene{
		width:    width,
		height:   height,
		ambientC: ambientC,
		rand:     rand.New(rand.NewSource(seed)),
	}
}

func (s *scene) render(f *frame.ThermalFrame, counter uint32) {
	angle := 2 * math.Pi * float64(counter%orbitSteps) / orbitSteps
	cx := float64(s.width) * (0.5 + 0.3*math.Cos(angle))
	cy := float64(s.height) * (0.5 + 0.3*math.Sin(angle))
	r := blobRadius * float64(s.width)
	r2 := 2 * r * r

	for y := 0; y < s.height; y++ {
		row := f.Pix[y*s.width : (y+1)*s.width]
		base := s.ambientC + 2*float64(y)/float64(s.height)
		for x := range row {
			dx, dy := float64(x)-cx, float64(y)-cy
			t := base + (blobTempC-base)*math.Exp(-(dx*dx+dy*dy)/r2)
			t += s.rand.NormFloat64() * noiseC
			row[x] = frame.FromCelsius(t)
		}
	}
}

// drift is a small random offset for the housing temperatures.
func (s *scene) drift() float64 {
	return s.rand.NormFloat64() * 0.05
}
