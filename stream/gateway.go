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
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/TheCacophonyProject/irimager/frame"
	"github.com/TheCacophonyProject/irimager/gateway"
	"github.com/TheCacophonyProject/irimager/headers"
	"github.com/TheCacophonyProject/irimager/palette"
)

const DefaultDialTimeout = 5 * time.Second

// Gateway reads cameras served over TCP. The stream is one way, so
// settings that need the device (radiation parameters, measurement range,
// shutter) are refused with gateway.CodeNotSupported. A palette chosen on
// this side replaces the rendering that came with the stream. The clipped
// region is kept locally.
type Gateway struct {
	DialTimeout time.Duration

	mu      sync.Mutex
	next    gateway.Handle
	cameras map[gateway.Handle]*remote
}

var (
	_ gateway.Gateway           = (*Gateway)(nil)
	_ gateway.ConcurrentFetcher = (*Gateway)(nil)
	_ gateway.FrameRater        = (*Gateway)(nil)
)

func NewGateway() *Gateway {
	return &Gateway{
		DialTimeout: DefaultDialTimeout,
		cameras:     make(map[gateway.Handle]*remote),
	}
}

type remote struct {
	conn   net.Conn
	reader *bufio.Reader
	info   *headers.HeaderInfo

	// readMu serialises fetches; buf belongs to whoever holds it.
	readMu sync.Mutex
	buf    []byte

	mu       sync.Mutex
	renderer *palette.Renderer
	recolour bool
	clipX    uint16
	clipY    uint16
}

func (g *Gateway) Init(ctx context.Context, src gateway.Source) (gateway.Handle, error) {
	if !src.IsNetwork() {
		return 0, gateway.CodeNotSupported
	}
	d := net.Dialer{Timeout: g.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", src.Addr())
	if err != nil {
		log.Printf("dialing %v: %v", src, err)
		return 0, gateway.CodeInitFailed
	}

	r := &remote{
		conn:     conn,
		reader:   bufio.NewReader(conn),
		renderer: palette.NewRenderer(),
		clipX:    0xFFFF,
		clipY:    0xFFFF,
	}
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	r.info, err = headers.ReadHeaderInfo(r.reader)
	stop()
	if err == nil {
		err = r.info.Validate()
	}
	if err != nil {
		log.Printf("reading camera header from %v: %v", src, err)
		conn.Close()
		return 0, gateway.CodeInitFailed
	}
	conn.SetReadDeadline(time.Time{})
	r.buf = make([]byte, RecordSize(r.info))

	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	g.cameras[g.next] = r
	return g.next, nil
}

func (g *Gateway) Terminate(h gateway.Handle) error {
	g.mu.Lock()
	r, ok := g.cameras[h]
	delete(g.cameras, h)
	g.mu.Unlock()
	if !ok {
		return gateway.CodeInvalidHandle
	}
	if err := r.conn.Close(); err != nil {
		return gateway.CodeFailed
	}
	return nil
}

func (g *Gateway) camera(h gateway.Handle) (*remote, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.cameras[h]
	if !ok {
		return nil, gateway.CodeInvalidHandle
	}
	return r, nil
}

// Info returns the header the camera h announced.
func (g *Gateway) Info(h gateway.Handle) (*headers.HeaderInfo, error) {
	r, err := g.camera(h)
	if err != nil {
		return nil, err
	}
	return r.info, nil
}

// ConcurrentFetch is true: configuration never touches the connection.
func (g *Gateway) ConcurrentFetch() bool {
	return true
}

func (g *Gateway) FrameRate(h gateway.Handle) int {
	r, err := g.camera(h)
	if err != nil {
		return 0
	}
	return r.info.FPS()
}

func (g *Gateway) ThermalSize(h gateway.Handle) (int, int, error) {
	r, err := g.camera(h)
	if err != nil {
		return 0, 0, err
	}
	return r.info.ResX(), r.info.ResY(), nil
}

func (g *Gateway) PaletteSize(h gateway.Handle) (int, int, error) {
	r, err := g.camera(h)
	if err != nil {
		return 0, 0, err
	}
	return r.info.PaletteResX(), r.info.PaletteResY(), nil
}

func (g *Gateway) FetchThermalPalette(ctx context.Context, h gateway.Handle, thermal []uint16, rgb []byte) (frame.Metadata, error) {
	r, err := g.camera(h)
	if err != nil {
		return frame.Metadata{}, err
	}
	info := r.info
	if len(thermal) != info.ResX()*info.ResY() ||
		len(rgb) != info.PaletteResX()*info.PaletteResY()*frame.BytesPerPixel {
		return frame.Metadata{}, gateway.CodeInvalidArgument
	}

	r.readMu.Lock()
	defer r.readMu.Unlock()
	stop := context.AfterFunc(ctx, func() { r.conn.SetReadDeadline(time.Now()) })
	_, err = io.ReadFull(r.reader, r.buf)
	if !stop() {
		// The deadline may have been set after the read finished.
		r.conn.SetReadDeadline(time.Time{})
		if err != nil {
			return frame.Metadata{}, ctx.Err()
		}
	}
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return frame.Metadata{}, gateway.CodeTimeout
		}
		return frame.Metadata{}, gateway.CodeDisconnected
	}
	md := unmarshalRecord(r.buf, thermal, rgb)
	md.Captured = time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recolour && info.PaletteResX() > 0 && info.PaletteResY() > 0 {
		r.renderer.Render(
			&frame.ThermalFrame{Width: info.ResX(), Height: info.ResY(), Pix: thermal},
			&frame.PaletteFrame{Width: info.PaletteResX(), Height: info.PaletteResY(), Pix: rgb},
		)
	}
	return md, nil
}

func (g *Gateway) local(h gateway.Handle, fn func(r *remote) error) error {
	r, err := g.camera(h)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r)
}

func (g *Gateway) SetPalette(h gateway.Handle, p palette.Palette, sc palette.Scaling) error {
	return g.local(h, func(r *remote) error {
		if err := r.renderer.SetPalette(p, sc); err != nil {
			return gateway.CodeInvalidArgument
		}
		r.recolour = true
		return nil
	})
}

func (g *Gateway) SetManualRange(h gateway.Handle, min, max float64) error {
	return g.local(h, func(r *remote) error {
		if err := r.renderer.SetManualRange(min, max); err != nil {
			return gateway.CodeInvalidArgument
		}
		return nil
	})
}

func (g *Gateway) SetTemperatureRange(h gateway.Handle, min, max float64) error {
	return g.unsupported(h)
}

func (g *Gateway) SetRadiationParameters(h gateway.Handle, emissivity, transmissivity, ambient float64) error {
	return g.unsupported(h)
}

func (g *Gateway) SetShutterMode(h gateway.Handle, automatic bool) error {
	return g.unsupported(h)
}

func (g *Gateway) TriggerShutter(h gateway.Handle) error {
	return g.unsupported(h)
}

func (g *Gateway) unsupported(h gateway.Handle) error {
	if _, err := g.camera(h); err != nil {
		return err
	}
	return gateway.CodeNotSupported
}

func (g *Gateway) SetClippedPosition(h gateway.Handle, x, y uint16) error {
	return g.local(h, func(r *remote) error {
		if int(x) >= r.info.ResX() || int(y) >= r.info.ResY() {
			return gateway.CodeInvalidArgument
		}
		r.clipX, r.clipY = x, y
		return nil
	})
}

func (g *Gateway) ClippedPosition(h gateway.Handle) (uint16, uint16, error) {
	var x, y uint16
	err := g.local(h, func(r *remote) error {
		x, y = r.clipX, r.clipY
		return nil
	})
	return x, y, err
}
