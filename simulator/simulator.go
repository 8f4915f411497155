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

// Package simulator implements an in-process imager gateway producing
// synthetic frames. It supports any number of cameras, records the
// configuration each camera was given and can be told to fail or stall so
// that session behaviour can be exercised without hardware.
package simulator

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TheCacophonyProject/irimager/frame"
	"github.com/TheCacophonyProject/irimager/gateway"
	"github.com/TheCacophonyProject/irimager/palette"
)

// Unset is the clipped position reported before one has been set.
const Unset = 0xFFFF

// Config describes the cameras a Simulator creates.
type Config struct {
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	PaletteWidth  int     `yaml:"palette-width"`
	PaletteHeight int     `yaml:"palette-height"`
	FrameRate     int     `yaml:"frame-rate"`
	AmbientC      float64 `yaml:"ambient"`
	Seed          int64   `yaml:"seed"`

	// ConcurrentSafe makes the simulator declare that fetches may overlap
	// configuration calls.
	ConcurrentSafe bool `yaml:"concurrent-safe"`
}

// DefaultConfig returns a 160x120 camera running at 30 frames per second.
func DefaultConfig() Config {
	return Config{
		Width:         160,
		Height:        120,
		PaletteWidth:  160,
		PaletteHeight: 120,
		FrameRate:     30,
		AmbientC:      20,
		Seed:          1,
	}
}

// CameraState is a snapshot of the configuration a camera has received.
type CameraState struct {
	Source          gateway.Source
	Palette         palette.Palette
	Scaling         palette.Scaling
	ManualMin       float64
	ManualMax       float64
	RangeMin        float64
	RangeMax        float64
	Emissivity      float64
	Transmissivity  float64
	Ambient         float64
	AutoShutter     bool
	ShutterTriggers int
	ClipX           uint16
	ClipY           uint16
	Fetches         uint64
	Overlaps        int64
	Terminated      bool
}

// Simulator is a gateway.Gateway. It is safe for concurrent use.
type Simulator struct {
	conf Config

	mu         sync.Mutex
	next       gateway.Handle
	forced     gateway.Handle
	initErr    error
	cameras    map[gateway.Handle]*camera
	terminated map[gateway.Handle]*camera
}

// New returns a simulator whose cameras follow conf. Zero fields take their
// values from DefaultConfig.
func New(conf Config) *Simulator {
	def := DefaultConfig()
	if conf.Width <= 0 || conf.Height <= 0 {
		conf.Width, conf.Height = def.Width, def.Height
	}
	if conf.PaletteWidth <= 0 || conf.PaletteHeight <= 0 {
		conf.PaletteWidth, conf.PaletteHeight = conf.Width, conf.Height
	}
	if conf.AmbientC == 0 {
		conf.AmbientC = def.AmbientC
	}
	return &Simulator{
		conf:       conf,
		cameras:    make(map[gateway.Handle]*camera),
		terminated: make(map[gateway.Handle]*camera),
	}
}

var (
	_ gateway.Gateway           = (*Simulator)(nil)
	_ gateway.ConcurrentFetcher = (*Simulator)(nil)
	_ gateway.FrameRater        = (*Simulator)(nil)
)

// FailInit makes the next Init call fail with err.
func (s *Simulator) FailInit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initErr = err
}

// ForceNextHandle makes the next successful Init return h, as a device
// handing out an identity it already gave out would.
func (s *Simulator) ForceNextHandle(h gateway.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced = h
}

// FailFetch makes the next n fetches on h fail with err. A negative n
// fails every fetch until FailFetch is called again.
func (s *Simulator) FailFetch(h gateway.Handle, err error, n int) bool {
	c := s.camera(h)
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failErr = err
	c.failCount = n
	return true
}

// Stall blocks fetches on h until Resume or Terminate is called. A stalled
// fetch ignores context cancellation, like a device call that cannot be
// interrupted.
func (s *Simulator) Stall(h gateway.Handle) bool {
	c := s.camera(h)
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resume == nil {
		c.resume = make(chan struct{})
	}
	return true
}

// Resume releases fetches stalled on h.
func (s *Simulator) Resume(h gateway.Handle) {
	c := s.camera(h)
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resume != nil {
		close(c.resume)
		c.resume = nil
	}
}

// Cameras returns the handles of the cameras currently initialised.
func (s *Simulator) Cameras() []gateway.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	handles := make([]gateway.Handle, 0, len(s.cameras))
	for h := range s.cameras {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}

// State returns the configuration recorded for h. Terminated cameras are
// still reported until their handle is reused.
func (s *Simulator) State(h gateway.Handle) (CameraState, bool) {
	s.mu.Lock()
	c, ok := s.cameras[h]
	if !ok {
		c, ok = s.terminated[h]
	}
	s.mu.Unlock()
	if !ok {
		return CameraState{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	st.Palette, st.Scaling = c.renderer.Palette()
	st.Fetches = atomic.LoadUint64(&c.fetches)
	st.Overlaps = atomic.LoadInt64(&c.overlaps)
	return st, true
}

func (s *Simulator) ConcurrentFetch() bool {
	return s.conf.ConcurrentSafe
}

func (s *Simulator) FrameRate(h gateway.Handle) int {
	return s.conf.FrameRate
}

func (s *Simulator) Init(ctx context.Context, src gateway.Source) (gateway.Handle, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.initErr; err != nil {
		s.initErr = nil
		return 0, err
	}

	h := s.forced
	if h == 0 {
		s.next++
		h = s.next
	}
	s.forced = 0
	if _, ok := s.cameras[h]; ok {
		// The device reused a live identity; both callers now share it.
		return h, nil
	}
	c := newCamera(s.conf, src, int64(h))
	s.cameras[h] = c
	delete(s.terminated, h)
	return h, nil
}

func (s *Simulator) Terminate(h gateway.Handle) error {
	s.mu.Lock()
	c, ok := s.cameras[h]
	if ok {
		delete(s.cameras, h)
		s.terminated[h] = c
	}
	s.mu.Unlock()
	if !ok {
		return gateway.CodeInvalidHandle
	}
	c.terminate()
	return nil
}

func (s *Simulator) ThermalSize(h gateway.Handle) (int, int, error) {
	if s.camera(h) == nil {
		return 0, 0, gateway.CodeInvalidHandle
	}
	return s.conf.Width, s.conf.Height, nil
}

func (s *Simulator) PaletteSize(h gateway.Handle) (int, int, error) {
	if s.camera(h) == nil {
		return 0, 0, gateway.CodeInvalidHandle
	}
	return s.conf.PaletteWidth, s.conf.PaletteHeight, nil
}

func (s *Simulator) FetchThermalPalette(ctx context.Context, h gateway.Handle, thermal []uint16, rgb []byte) (frame.Metadata, error) {
	c := s.camera(h)
	if c == nil {
		return frame.Metadata{}, gateway.CodeInvalidHandle
	}
	if len(thermal) != s.conf.Width*s.conf.Height ||
		len(rgb) != s.conf.PaletteWidth*s.conf.PaletteHeight*frame.BytesPerPixel {
		return frame.Metadata{}, gateway.CodeInvalidArgument
	}
	defer c.enter()()
	return c.fetch(ctx, thermal, rgb)
}

func (s *Simulator) SetPalette(h gateway.Handle, p palette.Palette, sc palette.Scaling) error {
	return s.configure(h, func(c *camera) error {
		if err := c.renderer.SetPalette(p, sc); err != nil {
			return gateway.CodeInvalidArgument
		}
		return nil
	})
}

func (s *Simulator) SetManualRange(h gateway.Handle, min, max float64) error {
	return s.configure(h, func(c *camera) error {
		if err := c.renderer.SetManualRange(min, max); err != nil {
			return gateway.CodeInvalidArgument
		}
		c.state.ManualMin, c.state.ManualMax = min, max
		return nil
	})
}

func (s *Simulator) SetTemperatureRange(h gateway.Handle, min, max float64) error {
	return s.configure(h, func(c *camera) error {
		if palette.CheckRange(min, max) != nil {
			return gateway.CodeInvalidArgument
		}
		c.state.RangeMin, c.state.RangeMax = min, max
		return nil
	})
}

func (s *Simulator) SetRadiationParameters(h gateway.Handle, emissivity, transmissivity, ambient float64) error {
	return s.configure(h, func(c *camera) error {
		c.state.Emissivity = emissivity
		c.state.Transmissivity = transmissivity
		c.state.Ambient = ambient
		return nil
	})
}

func (s *Simulator) SetShutterMode(h gateway.Handle, automatic bool) error {
	return s.configure(h, func(c *camera) error {
		c.state.AutoShutter = automatic
		return nil
	})
}

func (s *Simulator) TriggerShutter(h gateway.Handle) error {
	return s.configure(h, func(c *camera) error {
		c.state.ShutterTriggers++
		c.flagCycle = len(flagCycle)
		return nil
	})
}

func (s *Simulator) SetClippedPosition(h gateway.Handle, x, y uint16) error {
	return s.configure(h, func(c *camera) error {
		if int(x) >= s.conf.Width || int(y) >= s.conf.Height {
			return gateway.CodeInvalidArgument
		}
		c.state.ClipX, c.state.ClipY = x, y
		return nil
	})
}

func (s *Simulator) ClippedPosition(h gateway.Handle) (uint16, uint16, error) {
	var x, y uint16
	err := s.configure(h, func(c *camera) error {
		x, y = c.state.ClipX, c.state.ClipY
		return nil
	})
	return x, y, err
}

func (s *Simulator) camera(h gateway.Handle) *camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cameras[h]
}

func (s *Simulator) configure(h gateway.Handle, fn func(c *camera) error) error {
	c := s.camera(h)
	if c == nil {
		return gateway.CodeInvalidHandle
	}
	defer c.enter()()
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c)
}

var flagCycle = []frame.FlagState{frame.FlagOpening, frame.FlagClosed, frame.FlagClosing}

type camera struct {
	src      gateway.Source
	period   time.Duration
	paletteW int
	paletteH int
	renderer *palette.Renderer
	scene    *scene
	start    time.Time

	inflight int32
	overlaps int64
	fetches  uint64

	mu         sync.Mutex
	state      CameraState
	counter    uint32
	next       time.Time
	flagCycle  int
	failErr    error
	failCount  int
	resume     chan struct{}
	terminated chan struct{}
}

func newCamera(conf Config, src gateway.Source, seed int64) *camera {
	var period time.Duration
	if conf.FrameRate > 0 {
		period = time.Second / time.Duration(conf.FrameRate)
	}
	now := time.Now()
	return &camera{
		src:        src,
		period:     period,
		paletteW:   conf.PaletteWidth,
		paletteH:   conf.PaletteHeight,
		renderer:   palette.NewRenderer(),
		scene:      newScene(conf.Width, conf.Height, conf.AmbientC, conf.Seed+seed),
		start:      now,
		next:       now,
		terminated: make(chan struct{}),
		state: CameraState{
			Source:         src,
			Emissivity:     1,
			Transmissivity: 1,
			Ambient:        gateway.AutoAmbient,
			ClipX:          Unset,
			ClipY:          Unset,
		},
	}
}

// enter records a call on the camera and returns the matching exit. Calls
// that overlap are counted.
func (c *camera) enter() func() {
	if atomic.AddInt32(&c.inflight, 1) > 1 {
		atomic.AddInt64(&c.overlaps, 1)
	}
	return func() { atomic.AddInt32(&c.inflight, -1) }
}

func (c *camera) terminate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Terminated = true
	select {
	case <-c.terminated:
	default:
		close(c.terminated)
	}
}

func (c *camera) fetch(ctx context.Context, thermal []uint16, rgb []byte) (frame.Metadata, error) {
	c.mu.Lock()
	resume := c.resume
	c.mu.Unlock()
	if resume != nil {
		select {
		case <-resume:
		case <-c.terminated:
			return frame.Metadata{}, gateway.CodeDisconnected
		}
	}

	if err := c.waitForFrame(ctx); err != nil {
		return frame.Metadata{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failCount != 0 {
		if c.failCount > 0 {
			c.failCount--
		}
		return frame.Metadata{}, c.failErr
	}

	c.counter++
	atomic.AddUint64(&c.fetches, 1)
	md := frame.Metadata{
		Counter:         c.counter,
		CounterHW:       c.counter,
		DeviceTimestamp: time.Since(c.start),
		Captured:        time.Now(),
		FlagState:       frame.FlagOpen,
		TempChip:        float32(38 + c.scene.drift()),
		TempFlag:        float32(35 + c.scene.drift()),
		TempBox:         float32(30 + c.scene.drift()),
	}
	if c.flagCycle > 0 {
		c.flagCycle--
		md.FlagState = flagCycle[c.flagCycle]
	}

	tf := &frame.ThermalFrame{Width: c.scene.width, Height: c.scene.height, Pix: thermal}
	c.scene.render(tf, c.counter)
	c.renderer.Render(tf, &frame.PaletteFrame{Width: c.paletteW, Height: c.paletteH, Pix: rgb})
	return md, nil
}

func (c *camera) waitForFrame(ctx context.Context) error {
	c.mu.Lock()
	wait := time.Until(c.next)
	c.mu.Unlock()
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.terminated:
			return gateway.CodeDisconnected
		}
	}
	select {
	case <-c.terminated:
		return gateway.CodeDisconnected
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	c.next = c.next.Add(c.period)
	if c.next.Before(now) {
		c.next = now
	}
	return nil
}
