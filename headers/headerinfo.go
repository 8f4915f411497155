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


// Package headers reads and writes the block of camera properties that
// precedes frame data on a stream connection. The block is YAML terminated
// by an empty line.
package headers

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"

	"gopkg.in/yaml.v1"
)

const (
	XResolution        = "ResX"
	YResolution        = "ResY"
	PaletteXResolution = "PaletteResX"
	PaletteYResolution = "PaletteResY"
	FPS                = "FPS"
	FrameSize          = "FrameSize"
	Brand              = "Brand"
	Model              = "Model"
)

// MetadataSize is the number of bytes of metadata leading each frame.
const MetadataSize = 32

type HeaderInfo struct {
	resX        int
	resY        int
	paletteResX int
	paletteResY int
	fps         int
	framesize   int
	brand       string
	model       string
}

// New describes a camera producing thermal frames of resX by resY samples
// and palette images of paletteResX by paletteResY pixels. The frame size
// is derived from the dimensions.
func New(resX, resY, paletteResX, paletteResY, fps int, brand, model string) *HeaderInfo {
	return &HeaderInfo{
		resX:        resX,
		resY:        resY,
		paletteResX: paletteResX,
		paletteResY: paletteResY,
		fps:         fps,
		framesize:   MetadataSize + resX*resY*2 + paletteResX*paletteResY*3,
		brand:       brand,
		model:       model,
	}
}

func (h *HeaderInfo) ResX() int {
	return h.resX
}

func (h *HeaderInfo) ResY() int {
	return h.resY
}

func (h *HeaderInfo) PaletteResX() int {
	return h.paletteResX
}

func (h *HeaderInfo) PaletteResY() int {
	return h.paletteResY
}

func (h *HeaderInfo) FPS() int {
	return h.fps
}

func (h *HeaderInfo) FrameSize() int {
	return h.framesize
}

func (h *HeaderInfo) Model() string {
	return h.model
}

func (h *HeaderInfo) Brand() string {
	return h.brand
}

// Validate checks that the dimensions are usable and agree with the frame
// size.
func (h *HeaderInfo) Validate() error {
	if h.resX <= 0 || h.resY <= 0 {
		return errors.New("header has no thermal resolution")
	}
	if h.paletteResX < 0 || h.paletteResY < 0 {
		return errors.New("header has a negative palette resolution")
	}
	want := MetadataSize + h.resX*h.resY*2 + h.paletteResX*h.paletteResY*3
	if h.framesize != want {
		return errors.New("header frame size does not match its resolutions")
	}
	return nil
}

func ReadHeaderInfo(reader *bufio.Reader) (*HeaderInfo, error) {
	var buf bytes.Buffer
	for {
		line, err := reader.ReadString(byte('\n'))
		if err != nil {
			return nil, err
		}
		if strings.Trim(line, " \r") == "\n" {
			break
		}
		buf.WriteString(line)
	}
	h := make(map[string]interface{})
	err := yaml.Unmarshal(buf.Bytes(), &h)
	if err != nil {
		return nil, err
	}

	return &HeaderInfo{
		resX:        toInt(h[XResolution]),
		resY:        toInt(h[YResolution]),
		paletteResX: toInt(h[PaletteXResolution]),
		paletteResY: toInt(h[PaletteYResolution]),
		fps:         toInt(h[FPS]),
		framesize:   toInt(h[FrameSize]),
		brand:       toStr(h[Brand]),
		model:       toStr(h[Model]),
	}, nil
}

// Write sends the header block, including its terminating empty line.
func (h *HeaderInfo) Write(w io.Writer) error {
	out, err := yaml.Marshal(map[string]interface{}{
		XResolution:        h.resX,
		YResolution:        h.resY,
		PaletteXResolution: h.paletteResX,
		PaletteYResolution: h.paletteResY,
		FPS:                h.fps,
		FrameSize:          h.framesize,
		Brand:              h.brand,
		Model:              h.model,
	})
	if err != nil {
		return err
	}
	out = append(out, '\n')
	_, err = w.Write(out)
	return err
}

func toInt(v interface{}) int {
	out, ok := v.(int)
	if !ok {
		return 0
	}
	return out
}

func toStr(v interface{}) string {
	out, ok := v.(string)
	if !ok {
		return ""
	}
	return out
}
