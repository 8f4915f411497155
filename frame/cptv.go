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

package frame

import (
	"github.com/TheCacophonyProject/go-cptv/cptvframe"
)

// CPTV converts the thermal half of the pair into a cptvframe.Frame so it
// can be handed to Cacophony motion detection and tooling. The palette
// rendering is not carried over.
func (f *Frame) CPTV() *cptvframe.Frame {
	out := new(cptvframe.Frame)
	out.Pix = make([][]uint16, f.Thermal.Height)
	for y := range out.Pix {
		out.Pix[y] = make([]uint16, f.Thermal.Width)
		copy(out.Pix[y], f.Thermal.Row(y))
	}
	out.Status.FrameCount = int(f.Metadata.Counter)
	out.Status.TimeOn = f.Metadata.DeviceTimestamp
	out.Status.TempC = float64(f.Metadata.TempChip)
	out.Status.FrameMean = uint16(f.Thermal.MeanRaw() + 0.5)
	out.Status.FFCState = f.Metadata.FlagState.String()
	return out
}
