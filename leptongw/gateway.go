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

// Package leptongw is a gateway for a FLIR Lepton 3 attached over SPI.
// The Lepton has no on-device palette, so the rendering is done here.
// Shutter calls map to the Lepton's flat field correction (FFC).
package leptongw

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/TheCacophonyProject/go-cptv/cptvframe"
	"github.com/TheCacophonyProject/lepton3"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/TheCacophonyProject/irimager/frame"
	"github.com/TheCacophonyProject/irimager/gateway"
	"github.com/TheCacophonyProject/irimager/palette"
)

// Gateway drives Lepton 3 cameras. Each local source names a Config file.
type Gateway struct {
	hostOnce sync.Once
	hostErr  error

	mu      sync.Mutex
	next    gateway.Handle
	cameras map[gateway.Handle]*camera
}

var (
	_ gateway.Gateway    = (*Gateway)(nil)
	_ gateway.FrameRater = (*Gateway)(nil)
)

func New() *Gateway {
	return &Gateway{cameras: make(map[gateway.Handle]*camera)}
}

type camera struct {
	lepton   *lepton3.Lepton3
	raw      []byte
	cptv     *cptvframe.Frame
	renderer *palette.Renderer
	counter  uint32
	clipX    uint16
	clipY    uint16
}

type resolution struct{}

func (resolution) ResX() int { return lepton3.FrameCols }
func (resolution) ResY() int { return lepton3.FrameRows }
func (resolution) FPS() int  { return lepton3.FramesHz }

func (g *Gateway) Init(ctx context.Context, src gateway.Source) (gateway.Handle, error) {
	if src.IsNetwork() {
		return 0, gateway.CodeNotSupported
	}
	conf, err := ParseConfigFile(src.ConfigPath)
	if err != nil {
		log.Printf("lepton config %s: %v", src.ConfigPath, err)
		return 0, gateway.CodeInitFailed
	}

	g.hostOnce.Do(func() {
		log.Print("host initialisation")
		_, g.hostErr = host.Init()
	})
	if g.hostErr != nil {
		log.Printf("host initialisation: %v", g.hostErr)
		return 0, gateway.CodeInitFailed
	}

	if conf.CyclePower {
		if err := cycleCameraPower(ctx, conf); err != nil {
			log.Print(err)
			return 0, gateway.CodeInitFailed
		}
	}

	lepton, err := lepton3.New(conf.SPISpeed)
	if err != nil {
		log.Printf("connecting to camera: %v", err)
		return 0, gateway.CodeInitFailed
	}
	lepton.SetLogFunc(func(t string) { log.Print(t) })
	log.Print("enabling radiometry")
	if err := lepton.SetRadiometry(true); err != nil {
		lepton.Close()
		log.Printf("enabling radiometry: %v", err)
		return 0, gateway.CodeInitFailed
	}
	log.Print("opening camera")
	if err := lepton.Open(); err != nil {
		lepton.Close()
		log.Printf("opening camera: %v", err)
		return 0, gateway.CodeInitFailed
	}

	c := &camera{
		lepton:   lepton,
		raw:      lepton3.NewRawFrame(),
		cptv:     cptvframe.NewFrame(resolution{}),
		renderer: palette.NewRenderer(),
		clipX:    0xFFFF,
		clipY:    0xFFFF,
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	g.cameras[g.next] = c
	return g.next, nil
}

func (g *Gateway) Terminate(h gateway.Handle) error {
	g.mu.Lock()
	c, ok := g.cameras[h]
	delete(g.cameras, h)
	g.mu.Unlock()
	if !ok {
		return gateway.CodeInvalidHandle
	}
	log.Print("closing camera")
	c.lepton.Close()
	return nil
}

func (g *Gateway) camera(h gateway.Handle) (*camera, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.cameras[h]
	if !ok {
		return nil, gateway.CodeInvalidHandle
	}
	return c, nil
}

func (g *Gateway) FrameRate(h gateway.Handle) int {
	return lepton3.FramesHz
}

func (g *Gateway) ThermalSize(h gateway.Handle) (int, int, error) {
	if _, err := g.camera(h); err != nil {
		return 0, 0, err
	}
	return lepton3.FrameCols, lepton3.FrameRows, nil
}

func (g *Gateway) PaletteSize(h gateway.Handle) (int, int, error) {
	return g.ThermalSize(h)
}

// FetchThermalPalette blocks in the SPI driver until the next frame. The
// driver cannot be interrupted, so ctx is only checked before reading.
func (g *Gateway) FetchThermalPalette(ctx context.Context, h gateway.Handle, thermal []uint16, rgb []byte) (frame.Metadata, error) {
	c, err := g.camera(h)
	if err != nil {
		return frame.Metadata{}, err
	}
	if len(thermal) != lepton3.FrameCols*lepton3.FrameRows || len(rgb) != len(thermal)*frame.BytesPerPixel {
		return frame.Metadata{}, gateway.CodeInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return frame.Metadata{}, err
	}
	if err := c.lepton.NextFrame(c.raw); err != nil {
		log.Printf("reading frame: %v", err)
		return frame.Metadata{}, gateway.CodeFailed
	}
	md, err := convertRaw(c.raw, c.cptv, thermal, c.counter+1)
	if err != nil {
		log.Printf("parsing frame: %v", err)
		return frame.Metadata{}, gateway.CodeFailed
	}
	c.counter++

	tf := &frame.ThermalFrame{Width: lepton3.FrameCols, Height: lepton3.FrameRows, Pix: thermal}
	c.renderer.Render(tf, &frame.PaletteFrame{Width: lepton3.FrameCols, Height: lepton3.FrameRows, Pix: rgb})
	return md, nil
}

func (g *Gateway) SetPalette(h gateway.Handle, p palette.Palette, sc palette.Scaling) error {
	c, err := g.camera(h)
	if err != nil {
		return err
	}
	if err := c.renderer.SetPalette(p, sc); err != nil {
		return gateway.CodeInvalidArgument
	}
	return nil
}

func (g *Gateway) SetManualRange(h gateway.Handle, min, max float64) error {
	c, err := g.camera(h)
	if err != nil {
		return err
	}
	if err := c.renderer.SetManualRange(min, max); err != nil {
		return gateway.CodeInvalidArgument
	}
	return nil
}

// SetTemperatureRange is not supported: the Lepton 3 has a single range.
func (g *Gateway) SetTemperatureRange(h gateway.Handle, min, max float64) error {
	if _, err := g.camera(h); err != nil {
		return err
	}
	return gateway.CodeNotSupported
}

func (g *Gateway) SetRadiationParameters(h gateway.Handle, emissivity, transmissivity, ambient float64) error {
	if _, err := g.camera(h); err != nil {
		return err
	}
	return gateway.CodeNotSupported
}

func (g *Gateway) SetShutterMode(h gateway.Handle, automatic bool) error {
	c, err := g.camera(h)
	if err != nil {
		return err
	}
	mode, err := c.lepton.GetFFCModeControl()
	if err != nil {
		log.Printf("GetFFCModeControl: %v", err)
		return gateway.CodeFailed
	}
	mode.FFCShutterMode = ffcShutterMode(automatic)
	if err := c.lepton.SetFFCModeControl(mode); err != nil {
		log.Printf("SetFFCModeControl: %v", err)
		return gateway.CodeFailed
	}
	return nil
}

func ffcShutterMode(automatic bool) lepton3.FFCShutterMode {
	if automatic {
		return lepton3.FFCShutterModeAuto
	}
	return lepton3.FFCShutterModeManual
}

func (g *Gateway) TriggerShutter(h gateway.Handle) error {
	c, err := g.camera(h)
	if err != nil {
		return err
	}
	if err := c.lepton.RunFFC(); err != nil {
		log.Printf("RunFFC: %v", err)
		return gateway.CodeFailed
	}
	return nil
}

func (g *Gateway) SetClippedPosition(h gateway.Handle, x, y uint16) error {
	c, err := g.camera(h)
	if err != nil {
		return err
	}
	if int(x) >= lepton3.FrameCols || int(y) >= lepton3.FrameRows {
		return gateway.CodeInvalidArgument
	}
	c.clipX, c.clipY = x, y
	return nil
}

func (g *Gateway) ClippedPosition(h gateway.Handle) (uint16, uint16, error) {
	c, err := g.camera(h)
	if err != nil {
		return 0, 0, err
	}
	return c.clipX, c.clipY, nil
}

func cycleCameraPower(ctx context.Context, conf *Config) error {
	if conf.PowerPin == "" {
		return nil
	}
	pin := gpioreg.ByName(conf.PowerPin)
	if pin == nil {
		return fmt.Errorf("unknown camera power pin %q", conf.PowerPin)
	}

	log.Print("turning camera power off")
	if err := pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("failed to set camera power pin low: %v", err)
	}
	if err := sleep(ctx, conf.PowerOff); err != nil {
		return err
	}

	log.Print("turning camera power on")
	if err := pin.Out(gpio.High); err != nil {
		return fmt.Errorf("failed to set camera power pin high: %v", err)
	}

	log.Print("waiting for camera startup")
	if err := sleep(ctx, conf.Startup); err != nil {
		return err
	}
	log.Print("camera should be ready")
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
