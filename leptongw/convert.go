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

package leptongw

import (
	"time"

	"github.com/TheCacophonyProject/go-cptv/cptvframe"
	"github.com/TheCacophonyProject/lepton3"

	"github.com/TheCacophonyProject/irimager/frame"
)

// convertRaw parses a raw Lepton frame into scratch, then converts it.
func convertRaw(raw []byte, scratch *cptvframe.Frame, thermal []uint16, counter uint32) (frame.Metadata, error) {
	if err := lepton3.ParseRawFrame(raw, scratch); err != nil {
		return frame.Metadata{}, err
	}
	return convert(scratch, thermal, counter), nil
}

// convert copies a parsed Lepton frame into thermal and returns its
// metadata. Radiometric Lepton samples are in hundredths of a kelvin.
func convert(in *cptvframe.Frame, thermal []uint16, counter uint32) frame.Metadata {
	i := 0
	for _, row := range in.Pix {
		for _, v := range row {
			thermal[i] = frame.FromCelsius(float64(v)/100 - 273.15)
			i++
		}
	}

	md := frame.Metadata{
		Counter:         counter,
		CounterHW:       uint32(in.Status.FrameCount),
		DeviceTimestamp: in.Status.TimeOn,
		Captured:        time.Now(),
		FlagState:       flagState(in.Status.FFCState),
		TempChip:        float32(in.Status.TempC),
		TempFlag:        float32(in.Status.LastFFCTempC),
		TempBox:         float32(in.Status.TempC),
	}
	return md
}

func flagState(ffc string) frame.FlagState {
	switch ffc {
	case lepton3.FFCImminent:
		return frame.FlagClosing
	case lepton3.FFCRunning:
		return frame.FlagClosed
	}
	return frame.FlagOpen
}
