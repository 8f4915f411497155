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

// Package session manages live connections to thermal imagers. A Session
// owns one camera handle, runs the acquisition loop that fetches frame
// pairs from the device and accepts configuration changes while frames are
// flowing. All calls into the gateway for a camera are serialised unless
// the gateway says concurrent fetches are safe.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TheCacophonyProject/go-cptv/cptvframe"
	"golang.org/x/sync/semaphore"

	"github.com/TheCacophonyProject/irimager/frame"
	"github.com/TheCacophonyProject/irimager/gateway"
	"github.com/TheCacophonyProject/irimager/palette"
)

// ClipUnset is the clipped region position a device reports before one has
// been set.
const ClipUnset = 0xFFFF

// FormatsFile is the file a formats directory must contain.
const FormatsFile = "Formats.def"

const absoluteZero = -273.15

type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Disconnecting
	// Failed sessions still hold their camera handle. Acquisition has
	// stopped on an error; Disconnect releases the handle.
	Failed
)

var stateNames = [...]string{"disconnected", "connecting", "connected", "disconnecting", "failed"}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Consumer receives frames and acquisition errors. Calls are made from the
// session's dispatch goroutine, one at a time and in fetch order. A slow
// consumer misses frames rather than delaying acquisition. Consumers must
// not call Disconnect from within a callback.
type Consumer interface {
	OnFrame(f *frame.Frame)
	OnError(err error)
}

// ConsumerFuncs adapts a pair of functions to Consumer. Either may be nil.
type ConsumerFuncs struct {
	Frame func(*frame.Frame)
	Error func(error)
}

func (c ConsumerFuncs) OnFrame(f *frame.Frame) {
	if c.Frame != nil {
		c.Frame(f)
	}
}

func (c ConsumerFuncs) OnError(err error) {
	if c.Error != nil {
		c.Error(err)
	}
}

// Stats counts what happened to frames since the session last connected.
type Stats struct {
	Fetched     uint64 // frames read from the device
	Delivered   uint64 // frames handed to the consumer
	Dropped     uint64 // frames replaced before the consumer took them
	Throttled   uint64 // frames refused by the throttle
	FetchErrors uint64
}

type counters struct {
	fetched     atomic.Uint64
	delivered   atomic.Uint64
	dropped     atomic.Uint64
	throttled   atomic.Uint64
	fetchErrors atomic.Uint64
}

func (c *counters) reset() {
	c.fetched.Store(0)
	c.delivered.Store(0)
	c.dropped.Store(0)
	c.throttled.Store(0)
	c.fetchErrors.Store(0)
}

type latestFrame struct {
	seq   uint64
	frame *frame.Frame
}

// connection holds what Connect learnt about the camera. It does not change
// until the session disconnects.
type connection struct {
	handle   gateway.Handle
	thermalW int
	thermalH int
	paletteW int
	paletteH int
	fps      int
}

// Session is one camera connection. It is safe for concurrent use.
type Session struct {
	gw   gateway.Gateway
	opts options
	lock *semaphore.Weighted

	mu          sync.Mutex
	state       State
	src         gateway.Source
	conn        connection
	autoShutter bool
	manualRange bool
	consumer    Consumer
	loop        *loop
	err         error

	stats     counters
	published atomic.Uint64
	latest    atomic.Pointer[latestFrame]
}

var _ cptvframe.CameraSpec = (*Session)(nil)

// New returns a disconnected session that will talk to gw.
func New(gw gateway.Gateway, opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Session{
		gw:   gw,
		opts: o,
		lock: semaphore.NewWeighted(1),
	}
}

// WithSession connects to src, runs fn and releases the camera however fn
// returns.
func WithSession(ctx context.Context, gw gateway.Gateway, src gateway.Source, fn func(*Session) error, opts ...Option) (err error) {
	s := New(gw, opts...)
	if err := s.Connect(ctx, src); err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

// SetLogFunc sets where the session logs to.
func (s *Session) SetLogFunc(f func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.logFunc = f
}

func (s *Session) logf(format string, v ...interface{}) {
	s.mu.Lock()
	out := s.opts.logFunc
	s.mu.Unlock()
	out(fmt.Sprintf(format, v...))
}

// SetConsumer registers the receiver of frames and acquisition errors,
// replacing any previous one. A nil consumer stops delivery; Latest still
// reports new frames.
func (s *Session) SetConsumer(c Consumer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumer = c
}

func (s *Session) currentConsumer() Consumer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumer
}

// Connect initialises the camera described by src, caches its frame
// dimensions, turns on automatic shutter calibration and starts
// acquisition. It is only valid while Disconnected.
func (s *Session) Connect(ctx context.Context, src gateway.Source) error {
	s.mu.Lock()
	if s.state != Disconnected {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: session is %v", ErrAlreadyConnected, state)
	}
	s.state = Connecting
	s.mu.Unlock()

	conn, err := s.open(ctx, src)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = Disconnected
		return err
	}
	s.src = src
	s.conn = *conn
	s.autoShutter = true
	s.manualRange = false
	s.err = nil
	s.stats.reset()
	s.published.Store(0)
	s.latest.Store(nil)
	s.loop = newLoop(s, *conn)
	s.state = Connected
	s.loop.start()
	return nil
}

func (s *Session) open(ctx context.Context, src gateway.Source) (*connection, error) {
	if err := checkSource(src); err != nil {
		return nil, err
	}
	h, err := s.gw.Init(ctx, src)
	if err != nil {
		return nil, newDeviceError("Init", ErrConnectionFailed, err)
	}
	conn := &connection{handle: h}

	fail := func(op string, err error) (*connection, error) {
		if terr := s.gw.Terminate(h); terr != nil {
			s.logf("camera %d: release after failed connect: %v", h, terr)
		}
		return nil, newDeviceError(op, ErrConnectionFailed, err)
	}

	if conn.thermalW, conn.thermalH, err = s.gw.ThermalSize(h); err != nil {
		return fail("ThermalSize", err)
	}
	if conn.thermalW <= 0 || conn.thermalH <= 0 {
		return fail("ThermalSize", gateway.CodeFailed)
	}
	if conn.paletteW, conn.paletteH, err = s.gw.PaletteSize(h); err != nil {
		return fail("PaletteSize", err)
	}
	if conn.paletteW < 0 || conn.paletteH < 0 {
		return fail("PaletteSize", gateway.CodeFailed)
	}
	if err := s.gw.SetShutterMode(h, true); err != nil && gateway.CodeOf(err) != gateway.CodeNotSupported {
		return fail("SetShutterMode", err)
	}
	conn.fps = gateway.FrameRate(s.gw, h)
	return conn, nil
}

func checkSource(src gateway.Source) error {
	if src.IsNetwork() {
		if src.Port < 0 || src.Port > math.MaxUint16 {
			return invalidArgument("port %d", src.Port)
		}
		return nil
	}
	if src.ConfigPath == "" {
		return fmt.Errorf("%w: no configuration path given", ErrConfigNotFound)
	}
	if _, err := os.Stat(src.ConfigPath); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigNotFound, err)
	}
	if src.FormatsDir != "" {
		if _, err := os.Stat(filepath.Join(src.FormatsDir, FormatsFile)); err != nil {
			return fmt.Errorf("%w: %v", ErrConfigNotFound, err)
		}
	}
	return nil
}

// Disconnect stops acquisition and releases the camera. The loop gets the
// stop timeout to exit; if the device is stuck in a fetch the loop is
// abandoned and the handle released anyway. The session always ends up
// Disconnected.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.state != Connected && s.state != Failed {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.state = Disconnecting
	l, h := s.loop, s.conn.handle
	s.mu.Unlock()

	deadline := time.Now().Add(s.opts.stopTimeout)
	if !l.stop(s.opts.stopTimeout) {
		// The goroutine exits once the device returns, without delivering.
		s.logf("camera %d: acquisition loop still running after %v; releasing camera anyway", h, s.opts.stopTimeout)
	}
	err := s.terminate(h, time.Until(deadline))

	s.mu.Lock()
	s.state = Disconnected
	s.conn = connection{}
	s.loop = nil
	s.mu.Unlock()
	return err
}

// terminate releases h, waiting at most wait for the gateway lock. A stuck
// fetch holds the lock, so once the stop budget is spent it does not wait.
func (s *Session) terminate(h gateway.Handle, wait time.Duration) error {
	var locked bool
	if wait > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), wait)
		locked = s.lock.Acquire(ctx, 1) == nil
		cancel()
	} else {
		locked = s.lock.TryAcquire(1)
	}
	err := s.gw.Terminate(h)
	if locked {
		s.lock.Release(1)
	}
	if err != nil {
		return newDeviceError("Terminate", ErrDevice, err)
	}
	return nil
}

// detach stops acquisition and forgets the camera without releasing it,
// for a session whose handle turned out to belong to another session.
func (s *Session) detach() {
	s.mu.Lock()
	if s.state != Connected && s.state != Failed {
		s.mu.Unlock()
		return
	}
	s.state = Disconnecting
	l := s.loop
	s.mu.Unlock()

	l.stop(s.opts.stopTimeout)

	s.mu.Lock()
	s.state = Disconnected
	s.conn = connection{}
	s.loop = nil
	s.mu.Unlock()
}

// Close releases the camera if the session holds one. It is safe to call
// more than once.
func (s *Session) Close() error {
	err := s.Disconnect()
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	return err
}

// markFailed records a fatal acquisition error.
func (s *Session) markFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	if s.state == Connected {
		s.state = Failed
	}
}

// connected returns the connection if the session is Connected.
func (s *Session) connected() (connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Connected {
		return connection{}, ErrNotConnected
	}
	return s.conn, nil
}

// call runs fn once it is this caller's turn at the device. Callers queue
// in arrival order, behind any fetch in progress.
func (s *Session) call(op string, h gateway.Handle, fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.commandTimeout)
	defer cancel()
	if err := s.lock.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%s: %w", op, ErrGatewayBusy)
	}
	defer s.lock.Release(1)

	// A disconnect may have happened while queued.
	if conn, err := s.connected(); err != nil || conn.handle != h {
		return ErrNotConnected
	}
	if err := fn(); err != nil {
		return newDeviceError(op, ErrDevice, err)
	}
	return nil
}

// SetPalette selects the colouring palette and how temperatures are scaled
// onto it. Manual scaling requires a manual temperature range to have been
// set first.
func (s *Session) SetPalette(p palette.Palette, sc palette.Scaling) error {
	conn, err := s.connected()
	if err != nil {
		return err
	}
	if !p.Valid() {
		return invalidArgument("palette %d", int32(p))
	}
	if !sc.Valid() {
		return invalidArgument("scaling method %d", int32(sc))
	}
	s.mu.Lock()
	haveRange := s.manualRange
	s.mu.Unlock()
	if sc == palette.Manual && !haveRange {
		return ErrManualRangeUnset
	}
	return s.call("SetPalette", conn.handle, func() error {
		return s.gw.SetPalette(conn.handle, p, sc)
	})
}

// SetManualTemperatureRange sets the range in °C used by Manual scaling.
func (s *Session) SetManualTemperatureRange(min, max float64) error {
	conn, err := s.connected()
	if err != nil {
		return err
	}
	if err := palette.CheckRange(min, max); err != nil {
		return invalidArgument("%v", err)
	}
	err = s.call("SetManualRange", conn.handle, func() error {
		return s.gw.SetManualRange(conn.handle, min, max)
	})
	if err == nil {
		s.mu.Lock()
		s.manualRange = true
		s.mu.Unlock()
	}
	return err
}

// SetTemperatureRange selects the device's measurement range in °C.
func (s *Session) SetTemperatureRange(min, max float64) error {
	conn, err := s.connected()
	if err != nil {
		return err
	}
	if err := palette.CheckRange(min, max); err != nil {
		return invalidArgument("%v", err)
	}
	return s.call("SetTemperatureRange", conn.handle, func() error {
		return s.gw.SetTemperatureRange(conn.handle, min, max)
	})
}

// SetRadiationParameters sets emissivity and transmissivity, both in
// [0, 1], and the ambient temperature in °C. An ambient temperature below
// absolute zero lets the device measure ambient itself.
func (s *Session) SetRadiationParameters(emissivity, transmissivity, ambient float64) error {
	conn, err := s.connected()
	if err != nil {
		return err
	}
	if !unitInterval(emissivity) {
		return invalidArgument("emissivity %v outside [0, 1]", emissivity)
	}
	if !unitInterval(transmissivity) {
		return invalidArgument("transmissivity %v outside [0, 1]", transmissivity)
	}
	if math.IsNaN(ambient) || math.IsInf(ambient, 1) {
		return invalidArgument("ambient temperature %v", ambient)
	}
	if ambient < absoluteZero {
		ambient = gateway.AutoAmbient
	}
	return s.call("SetRadiationParameters", conn.handle, func() error {
		return s.gw.SetRadiationParameters(conn.handle, emissivity, transmissivity, ambient)
	})
}

func unitInterval(v float64) bool {
	return v >= 0 && v <= 1
}

// SetAutomaticShutter turns periodic shutter calibration on or off. The
// device is only told when the setting changes.
func (s *Session) SetAutomaticShutter(automatic bool) error {
	conn, err := s.connected()
	if err != nil {
		return err
	}
	s.mu.Lock()
	unchanged := s.autoShutter == automatic
	s.mu.Unlock()
	if unchanged {
		return nil
	}
	err = s.call("SetShutterMode", conn.handle, func() error {
		return s.gw.SetShutterMode(conn.handle, automatic)
	})
	if err == nil {
		s.mu.Lock()
		s.autoShutter = automatic
		s.mu.Unlock()
	}
	return err
}

// TriggerShutterFlag requests one shutter calibration cycle. It returns
// once the device has accepted the request.
func (s *Session) TriggerShutterFlag() error {
	conn, err := s.connected()
	if err != nil {
		return err
	}
	return s.call("TriggerShutter", conn.handle, func() error {
		return s.gw.TriggerShutter(conn.handle)
	})
}

// SetClippedRegionPosition moves the clipped region to (x, y), which must
// lie within the thermal frame.
func (s *Session) SetClippedRegionPosition(x, y uint16) error {
	conn, err := s.connected()
	if err != nil {
		return err
	}
	if int(x) >= conn.thermalW || int(y) >= conn.thermalH {
		return invalidArgument("clipped position (%d, %d) outside %dx%d frame", x, y, conn.thermalW, conn.thermalH)
	}
	return s.call("SetClippedPosition", conn.handle, func() error {
		return s.gw.SetClippedPosition(conn.handle, x, y)
	})
}

// ClippedRegionPosition reads the clipped region position back from the
// device. (ClipUnset, ClipUnset) means none has been set.
func (s *Session) ClippedRegionPosition() (x, y uint16, err error) {
	conn, err := s.connected()
	if err != nil {
		return 0, 0, err
	}
	err = s.call("ClippedPosition", conn.handle, func() error {
		var err error
		x, y, err = s.gw.ClippedPosition(conn.handle)
		return err
	})
	return x, y, err
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handle returns the camera handle, or 0 when the session holds none.
func (s *Session) Handle() gateway.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.handle
}

// Source returns what the session was last connected to.
func (s *Session) Source() gateway.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src
}

func (s *Session) ThermalSize() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.thermalW, s.conn.thermalH
}

func (s *Session) PaletteSize() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.paletteW, s.conn.paletteH
}

func (s *Session) ResX() int {
	w, _ := s.ThermalSize()
	return w
}

func (s *Session) ResY() int {
	_, h := s.ThermalSize()
	return h
}

// FPS is the nominal frame rate, or 0 if the gateway doesn't report one.
func (s *Session) FPS() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.fps
}

func (s *Session) AutomaticShutter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoShutter
}

// Err returns the error that stopped acquisition, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) Stats() Stats {
	return Stats{
		Fetched:     s.stats.fetched.Load(),
		Delivered:   s.stats.delivered.Load(),
		Dropped:     s.stats.dropped.Load(),
		Throttled:   s.stats.throttled.Load(),
		FetchErrors: s.stats.fetchErrors.Load(),
	}
}

// Latest returns the most recent frame published by the acquisition loop
// and its sequence number, starting at 1 for each connection. It returns
// nil and 0 before the first frame.
func (s *Session) Latest() (*frame.Frame, uint64) {
	l := s.latest.Load()
	if l == nil {
		return nil, 0
	}
	return l.frame, l.seq
}

func (s *Session) setLatest(f *frame.Frame) {
	seq := s.published.Add(1)
	s.latest.Store(&latestFrame{seq: seq, frame: f})
}

// Done returns a channel that is closed when the current acquisition loop
// has exited, whether through Disconnect or a failure. It is closed
// already when there is no loop.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return s.loop.t.Dead()
}
