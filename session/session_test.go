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

package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/irimager/frame"
	"github.com/TheCacophonyProject/irimager/gateway"
	"github.com/TheCacophonyProject/irimager/palette"
	"github.com/TheCacophonyProject/irimager/simulator"
	"github.com/TheCacophonyProject/irimager/throttle"
)

const (
	testWidth  = 16
	testHeight = 12
)

func newTestSimulator(fps int) *simulator.Simulator {
	return simulator.New(simulator.Config{
		Width:         testWidth,
		Height:        testHeight,
		PaletteWidth:  testWidth,
		PaletteHeight: testHeight,
		FrameRate:     fps,
	})
}

func testSource(t *testing.T) gateway.Source {
	path := filepath.Join(t.TempDir(), "camera.xml")
	require.NoError(t, os.WriteFile(path, []byte("<imager/>\n"), 0644))
	return gateway.LocalConfig(path)
}

func quiet() Option {
	return WithLogFunc(func(string) {})
}

// testConsumer collects what a session delivers without ever blocking it.
type testConsumer struct {
	frames chan *frame.Frame
	errs   chan error
	delay  time.Duration
}

func newTestConsumer() *testConsumer {
	return &testConsumer{
		frames: make(chan *frame.Frame, 1000),
		errs:   make(chan error, 100),
	}
}

func (c *testConsumer) OnFrame(f *frame.Frame) {
	time.Sleep(c.delay)
	select {
	case c.frames <- f:
	default:
	}
}

func (c *testConsumer) OnError(err error) {
	select {
	case c.errs <- err:
	default:
	}
}

func (c *testConsumer) nextFrame(t *testing.T) *frame.Frame {
	select {
	case f := <-c.frames:
		return f
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no frame delivered")
		return nil
	}
}

func (c *testConsumer) nextError(t *testing.T) error {
	select {
	case err := <-c.errs:
		return err
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no error delivered")
		return nil
	}
}

func connect(t *testing.T, sim *simulator.Simulator, opts ...Option) (*Session, *testConsumer) {
	s := New(sim, append([]Option{quiet()}, opts...)...)
	c := newTestConsumer()
	s.SetConsumer(c)
	require.NoError(t, s.Connect(context.Background(), testSource(t)))
	t.Cleanup(func() { s.Close() })
	return s, c
}

func terminated(sim *simulator.Simulator, h gateway.Handle) bool {
	st, ok := sim.State(h)
	return ok && st.Terminated
}

func TestDisconnectWhenNotConnected(t *testing.T) {
	s := New(newTestSimulator(100), quiet())
	assert.Equal(t, Disconnected, s.State())
	assert.ErrorIs(t, s.Disconnect(), ErrNotConnected)
	assert.NoError(t, s.Close())
}

func TestConnectTwice(t *testing.T) {
	sim := newTestSimulator(100)
	s, _ := connect(t, sim)
	h := s.Handle()

	err := s.Connect(context.Background(), testSource(t))
	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.Equal(t, Connected, s.State())
	assert.Equal(t, h, s.Handle())
	assert.Len(t, sim.Cameras(), 1)

	require.NoError(t, s.Disconnect())
	assert.Equal(t, Disconnected, s.State())
	assert.True(t, terminated(sim, h))
	assert.NoError(t, s.Close())
}

func TestConnectMissingConfig(t *testing.T) {
	sim := newTestSimulator(100)
	s := New(sim, quiet())

	err := s.Connect(context.Background(), gateway.LocalConfig(filepath.Join(t.TempDir(), "missing.xml")))
	assert.ErrorIs(t, err, ErrConfigNotFound)
	assert.Equal(t, Disconnected, s.State())

	src := testSource(t)
	src.FormatsDir = t.TempDir()
	err = s.Connect(context.Background(), src)
	assert.ErrorIs(t, err, ErrConfigNotFound)

	assert.Empty(t, sim.Cameras())
}

func TestConnectFormatsDir(t *testing.T) {
	sim := newTestSimulator(100)
	s := New(sim, quiet())
	src := testSource(t)
	src.FormatsDir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src.FormatsDir, FormatsFile), nil, 0644))

	require.NoError(t, s.Connect(context.Background(), src))
	assert.Equal(t, src, s.Source())
	require.NoError(t, s.Close())
}

func TestConnectInitFailure(t *testing.T) {
	sim := newTestSimulator(100)
	sim.FailInit(gateway.CodeInitFailed)
	s := New(sim, quiet())
	src := testSource(t)

	err := s.Connect(context.Background(), src)
	assert.ErrorIs(t, err, ErrConnectionFailed)
	var de *DeviceError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, gateway.CodeInitFailed, de.Code)
	assert.Equal(t, "Init", de.Op)
	assert.Equal(t, Disconnected, s.State())

	// The failure was one-off.
	require.NoError(t, s.Connect(context.Background(), src))
	require.NoError(t, s.Close())
}

func TestConnectOverNetworkSource(t *testing.T) {
	sim := newTestSimulator(100)
	s := New(sim, quiet())
	require.NoError(t, s.Connect(context.Background(), gateway.Endpoint("192.168.0.20", 0)))
	assert.True(t, s.Source().IsNetwork())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Connect(context.Background(), gateway.Endpoint("cam", 70000)), ErrInvalidArgument)
}

type noShutterGateway struct {
	*simulator.Simulator
	code gateway.Code
}

func (g noShutterGateway) SetShutterMode(h gateway.Handle, automatic bool) error {
	return g.code
}

type brokenSizeGateway struct {
	*simulator.Simulator
}

func (g brokenSizeGateway) ThermalSize(h gateway.Handle) (int, int, error) {
	return 0, 0, gateway.CodeTimeout
}

func TestConnectWithoutShutterControl(t *testing.T) {
	sim := newTestSimulator(100)
	s := New(noShutterGateway{sim, gateway.CodeNotSupported}, quiet())
	require.NoError(t, s.Connect(context.Background(), testSource(t)))
	assert.True(t, s.AutomaticShutter())
	require.NoError(t, s.Close())
}

func TestConnectShutterFailure(t *testing.T) {
	sim := newTestSimulator(100)
	s := New(noShutterGateway{sim, gateway.CodeFailed}, quiet())
	err := s.Connect(context.Background(), testSource(t))
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.Equal(t, Disconnected, s.State())
	assert.Empty(t, sim.Cameras())
}

func TestConnectSizeFailureReleasesCamera(t *testing.T) {
	sim := newTestSimulator(100)
	s := New(brokenSizeGateway{sim}, quiet())
	err := s.Connect(context.Background(), testSource(t))
	assert.ErrorIs(t, err, ErrConnectionFailed)
	var de *DeviceError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, gateway.CodeTimeout, de.Code)
	assert.Empty(t, sim.Cameras())
	assert.True(t, terminated(sim, 1))
}

func TestFramesDelivered(t *testing.T) {
	sim := newTestSimulator(200)
	s, c := connect(t, sim)

	w, h := s.ThermalSize()
	assert.Equal(t, testWidth, w)
	assert.Equal(t, testHeight, h)
	pw, ph := s.PaletteSize()
	assert.Equal(t, testWidth, pw)
	assert.Equal(t, testHeight, ph)
	assert.Equal(t, testWidth, s.ResX())
	assert.Equal(t, testHeight, s.ResY())
	assert.Equal(t, 200, s.FPS())

	first := c.nextFrame(t)
	second := c.nextFrame(t)
	assert.Len(t, first.Thermal.Pix, testWidth*testHeight)
	assert.Len(t, first.Palette.Pix, testWidth*testHeight*frame.BytesPerPixel)
	assert.Greater(t, second.Metadata.Counter, first.Metadata.Counter)
	assert.False(t, first.Metadata.Captured.IsZero())
	assert.InDelta(t, 21, first.MeanTemperature(), 5)

	latest, seq := s.Latest()
	require.NotNil(t, latest)
	assert.Greater(t, seq, uint64(0))
	assert.GreaterOrEqual(t, latest.Metadata.Counter, second.Metadata.Counter)

	stats := s.Stats()
	assert.GreaterOrEqual(t, stats.Fetched, uint64(2))
	assert.GreaterOrEqual(t, stats.Delivered, uint64(2))
	assert.Zero(t, stats.FetchErrors)
}

func TestLatestWithoutConsumer(t *testing.T) {
	sim := newTestSimulator(200)
	s := New(sim, quiet())
	f, seq := s.Latest()
	assert.Nil(t, f)
	assert.Zero(t, seq)

	require.NoError(t, s.Connect(context.Background(), testSource(t)))
	defer s.Close()
	assert.Eventually(t, func() bool {
		_, seq := s.Latest()
		return seq >= 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, s.Stats().Delivered)
}

func TestMutatorsNeedConnection(t *testing.T) {
	s := New(newTestSimulator(100), quiet())
	assert.ErrorIs(t, s.SetPalette(palette.Iron, palette.MinMax), ErrNotConnected)
	assert.ErrorIs(t, s.SetManualTemperatureRange(0, 40), ErrNotConnected)
	assert.ErrorIs(t, s.SetTemperatureRange(-20, 100), ErrNotConnected)
	assert.ErrorIs(t, s.SetRadiationParameters(1, 1, 20), ErrNotConnected)
	assert.ErrorIs(t, s.SetAutomaticShutter(false), ErrNotConnected)
	assert.ErrorIs(t, s.TriggerShutterFlag(), ErrNotConnected)
	assert.ErrorIs(t, s.SetClippedRegionPosition(1, 1), ErrNotConnected)
	_, _, err := s.ClippedRegionPosition()
	assert.ErrorIs(t, err, ErrNotConnected)

	// Invalid arguments are still reported as not connected.
	assert.ErrorIs(t, s.SetRadiationParameters(1.5, 1, 20), ErrNotConnected)
}

func TestClippedRegionRoundTrip(t *testing.T) {
	sim := newTestSimulator(200)
	s, _ := connect(t, sim)

	x, y, err := s.ClippedRegionPosition()
	require.NoError(t, err)
	assert.Equal(t, uint16(ClipUnset), x)
	assert.Equal(t, uint16(ClipUnset), y)

	require.NoError(t, s.SetClippedRegionPosition(5, 7))
	x, y, err = s.ClippedRegionPosition()
	require.NoError(t, err)
	assert.Equal(t, uint16(5), x)
	assert.Equal(t, uint16(7), y)

	assert.ErrorIs(t, s.SetClippedRegionPosition(testWidth, 0), ErrInvalidArgument)
	assert.ErrorIs(t, s.SetClippedRegionPosition(0, testHeight), ErrInvalidArgument)
	require.NoError(t, s.SetClippedRegionPosition(testWidth-1, testHeight-1))
}

func TestRadiationParameters(t *testing.T) {
	sim := newTestSimulator(200)
	s, _ := connect(t, sim)
	h := s.Handle()

	assert.ErrorIs(t, s.SetRadiationParameters(1.5, 1, 20), ErrInvalidArgument)
	assert.ErrorIs(t, s.SetRadiationParameters(-0.1, 1, 20), ErrInvalidArgument)
	assert.ErrorIs(t, s.SetRadiationParameters(1, 1.01, 20), ErrInvalidArgument)
	assert.ErrorIs(t, s.SetRadiationParameters(math.NaN(), 1, 20), ErrInvalidArgument)
	assert.ErrorIs(t, s.SetRadiationParameters(1, 1, math.NaN()), ErrInvalidArgument)

	require.NoError(t, s.SetRadiationParameters(0, 0, 20))
	require.NoError(t, s.SetRadiationParameters(1, 1, 20))
	require.NoError(t, s.SetRadiationParameters(0.95, 0.8, 25))
	st, _ := sim.State(h)
	assert.Equal(t, 0.95, st.Emissivity)
	assert.Equal(t, 0.8, st.Transmissivity)
	assert.Equal(t, 25.0, st.Ambient)

	require.NoError(t, s.SetRadiationParameters(0.95, 0.8, -300))
	st, _ = sim.State(h)
	assert.Equal(t, gateway.AutoAmbient, st.Ambient)
}

func TestManualScalingNeedsRange(t *testing.T) {
	sim := newTestSimulator(200)
	s, _ := connect(t, sim)

	err := s.SetPalette(palette.Iron, palette.Manual)
	assert.ErrorIs(t, err, ErrManualRangeUnset)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.ErrorIs(t, s.SetManualTemperatureRange(40, 10), ErrInvalidArgument)
	assert.ErrorIs(t, s.SetManualTemperatureRange(10, math.Inf(1)), ErrInvalidArgument)
	require.NoError(t, s.SetManualTemperatureRange(10, 40))
	require.NoError(t, s.SetPalette(palette.Iron, palette.Manual))

	st, _ := sim.State(s.Handle())
	assert.Equal(t, palette.Iron, st.Palette)
	assert.Equal(t, palette.Manual, st.Scaling)
	assert.Equal(t, 10.0, st.ManualMin)
	assert.Equal(t, 40.0, st.ManualMax)
}

func TestSetPaletteValidation(t *testing.T) {
	sim := newTestSimulator(200)
	s, _ := connect(t, sim)

	assert.ErrorIs(t, s.SetPalette(palette.Palette(0), palette.MinMax), ErrInvalidArgument)
	assert.ErrorIs(t, s.SetPalette(palette.Palette(12), palette.MinMax), ErrInvalidArgument)
	assert.ErrorIs(t, s.SetPalette(palette.Iron, palette.Scaling(5)), ErrInvalidArgument)
	require.NoError(t, s.SetPalette(palette.Rainbow, palette.Sigma3))

	st, _ := sim.State(s.Handle())
	assert.Equal(t, palette.Rainbow, st.Palette)
	assert.Equal(t, palette.Sigma3, st.Scaling)
}

func TestTemperatureRange(t *testing.T) {
	sim := newTestSimulator(200)
	s, _ := connect(t, sim)

	assert.ErrorIs(t, s.SetTemperatureRange(100, -20), ErrInvalidArgument)
	assert.ErrorIs(t, s.SetTemperatureRange(0, 0), ErrInvalidArgument)
	require.NoError(t, s.SetTemperatureRange(-20, 100))
	st, _ := sim.State(s.Handle())
	assert.Equal(t, -20.0, st.RangeMin)
	assert.Equal(t, 100.0, st.RangeMax)
}

func TestShutterControl(t *testing.T) {
	sim := newTestSimulator(200)
	s, _ := connect(t, sim)
	h := s.Handle()

	st, _ := sim.State(h)
	assert.True(t, st.AutoShutter)
	assert.True(t, s.AutomaticShutter())

	require.NoError(t, s.SetAutomaticShutter(true))
	require.NoError(t, s.SetAutomaticShutter(false))
	st, _ = sim.State(h)
	assert.False(t, st.AutoShutter)
	assert.False(t, s.AutomaticShutter())

	require.NoError(t, s.TriggerShutterFlag())
	require.NoError(t, s.TriggerShutterFlag())
	st, _ = sim.State(h)
	assert.Equal(t, 2, st.ShutterTriggers)
}

func TestConfigurationDuringAcquisition(t *testing.T) {
	sim := newTestSimulator(1000)
	s, c := connect(t, sim)
	h := s.Handle()

	const workers, calls = 4, 250
	var wg sync.WaitGroup
	errs := make(chan error, workers*calls)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < calls; i++ {
				var err error
				switch (w + i) % 5 {
				case 0:
					err = s.SetPalette(palette.Palette(i%11+1), palette.MinMax)
				case 1:
					err = s.SetRadiationParameters(float64(i%10)/10, 1, 20)
				case 2:
					err = s.SetClippedRegionPosition(uint16(i%testWidth), uint16(i%testHeight))
				case 3:
					err = s.SetTemperatureRange(-20, 100)
				case 4:
					_, _, err = s.ClippedRegionPosition()
				}
				errs <- err
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	f := c.nextFrame(t)
	assert.Len(t, f.Thermal.Pix, testWidth*testHeight)
	assert.Len(t, f.Palette.Pix, testWidth*testHeight*frame.BytesPerPixel)

	require.NoError(t, s.Disconnect())
	st, _ := sim.State(h)
	assert.Zero(t, st.Overlaps)
	assert.Greater(t, st.Fetches, uint64(0))
}

func TestConcurrentFetchGateway(t *testing.T) {
	sim := simulator.New(simulator.Config{Width: testWidth, Height: testHeight, FrameRate: 500, ConcurrentSafe: true})
	s, c := connect(t, sim)
	for i := 0; i < 20; i++ {
		require.NoError(t, s.SetRadiationParameters(1, 1, 20))
	}
	c.nextFrame(t)
	assert.Equal(t, Connected, s.State())
}

func TestDisconnectWithStalledDevice(t *testing.T) {
	sim := newTestSimulator(500)
	s, c := connect(t, sim, WithStopTimeout(100*time.Millisecond), WithCommandTimeout(2*time.Second))
	h := s.Handle()
	c.nextFrame(t)
	require.True(t, sim.Stall(h))
	time.Sleep(20 * time.Millisecond)

	// The stuck fetch holds the gateway lock; the command timeout must not
	// be added to the stop timeout.
	start := time.Now()
	require.NoError(t, s.Disconnect())
	took := time.Since(start)
	assert.GreaterOrEqual(t, took, 100*time.Millisecond)
	assert.Less(t, took, 500*time.Millisecond)
	assert.Equal(t, Disconnected, s.State())
	assert.True(t, terminated(sim, h))
}

type orderConsumer struct {
	mu     sync.Mutex
	events []string
}

func (c *orderConsumer) OnFrame(f *frame.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, fmt.Sprintf("frame %d", f.Metadata.Counter))
}

func (c *orderConsumer) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, "error "+err.Error())
}

func TestDispatchKeepsFetchOrder(t *testing.T) {
	s := New(newTestSimulator(10), quiet())
	c := &orderConsumer{}
	s.SetConsumer(c)

	l := newLoop(s, connection{})
	l.report(errors.New("first"))
	l.publish(&frame.Frame{Metadata: frame.Metadata{Counter: 2}})
	close(l.fetchDone)
	require.NoError(t, l.dispatch())

	l = newLoop(s, connection{})
	l.publish(&frame.Frame{Metadata: frame.Metadata{Counter: 3}})
	l.report(errors.New("second"))
	close(l.fetchDone)
	require.NoError(t, l.dispatch())

	assert.Equal(t, []string{"error first", "frame 2", "frame 3", "error second"}, c.events)
}

func TestCommandTimeoutWhileStalled(t *testing.T) {
	sim := newTestSimulator(500)
	s, c := connect(t, sim, WithCommandTimeout(50*time.Millisecond), WithStopTimeout(50*time.Millisecond))
	h := s.Handle()
	c.nextFrame(t)
	require.True(t, sim.Stall(h))
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	err := s.TriggerShutterFlag()
	assert.ErrorIs(t, err, ErrGatewayBusy)
	assert.Less(t, time.Since(start), time.Second)

	sim.Resume(h)
	require.NoError(t, s.TriggerShutterFlag())
}

func TestAcquisitionFailureStopsSession(t *testing.T) {
	sim := newTestSimulator(200)
	s, c := connect(t, sim)
	h := s.Handle()
	c.nextFrame(t)
	require.True(t, sim.FailFetch(h, gateway.CodeTimeout, -1))

	err := c.nextError(t)
	assert.ErrorIs(t, err, ErrAcquisition)
	var de *DeviceError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, gateway.CodeTimeout, de.Code)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		require.FailNow(t, "acquisition loop did not stop")
	}
	assert.Equal(t, Failed, s.State())
	assert.ErrorIs(t, s.Err(), ErrAcquisition)
	assert.Equal(t, h, s.Handle())
	assert.ErrorIs(t, s.TriggerShutterFlag(), ErrNotConnected)
	assert.False(t, terminated(sim, h))

	require.NoError(t, s.Disconnect())
	assert.Equal(t, Disconnected, s.State())
	assert.True(t, terminated(sim, h))
}

func TestContinueOnError(t *testing.T) {
	sim := newTestSimulator(200)
	s, c := connect(t, sim, WithFailurePolicy(ContinueOnError))
	h := s.Handle()
	c.nextFrame(t)
	require.True(t, sim.FailFetch(h, gateway.CodeTimeout, 3))

	assert.ErrorIs(t, c.nextError(t), ErrAcquisition)
	assert.Eventually(t, func() bool {
		return s.Stats().FetchErrors == 3
	}, 2*time.Second, 5*time.Millisecond)

	fetched := s.Stats().Fetched
	assert.Eventually(t, func() bool {
		return s.Stats().Fetched > fetched
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, Connected, s.State())
	assert.NoError(t, s.Err())
}

func TestMaxConsecutiveFailures(t *testing.T) {
	sim := newTestSimulator(200)
	s, c := connect(t, sim, WithFailurePolicy(ContinueOnError), WithMaxConsecutiveFailures(3))
	c.nextFrame(t)
	require.True(t, sim.FailFetch(s.Handle(), gateway.CodeDisconnected, -1))

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		require.FailNow(t, "acquisition loop did not stop")
	}
	assert.Equal(t, Failed, s.State())
	assert.Equal(t, uint64(3), s.Stats().FetchErrors)
}

func TestSlowConsumerMissesFrames(t *testing.T) {
	sim := newTestSimulator(500)
	s := New(sim, quiet())
	c := newTestConsumer()
	c.delay = 30 * time.Millisecond
	s.SetConsumer(c)
	require.NoError(t, s.Connect(context.Background(), testSource(t)))
	defer s.Close()

	var last uint32
	for i := 0; i < 5; i++ {
		f := c.nextFrame(t)
		assert.Greater(t, f.Metadata.Counter, last)
		last = f.Metadata.Counter
	}
	stats := s.Stats()
	assert.Greater(t, stats.Dropped, uint64(0))
	assert.Greater(t, stats.Fetched, stats.Delivered)
}

func TestThrottledDelivery(t *testing.T) {
	sim := newTestSimulator(500)
	conf := throttle.Config{ApplyThrottling: true, MaxFPS: 10, Burst: 1}
	s, c := connect(t, sim, WithThrottle(conf, nil))
	c.nextFrame(t)

	assert.Eventually(t, func() bool {
		return s.Stats().Throttled > 10
	}, 2*time.Second, 5*time.Millisecond)
	stats := s.Stats()
	assert.Less(t, stats.Delivered, stats.Fetched)
}

func TestWithSessionReleasesCamera(t *testing.T) {
	sim := newTestSimulator(200)
	boom := errors.New("boom")
	var h gateway.Handle
	err := WithSession(context.Background(), sim, testSource(t), func(s *Session) error {
		h = s.Handle()
		assert.Equal(t, Connected, s.State())
		return boom
	}, quiet())
	assert.Equal(t, boom, err)
	assert.True(t, terminated(sim, h))
	assert.Empty(t, sim.Cameras())
}

func TestReconnect(t *testing.T) {
	sim := newTestSimulator(200)
	s, c := connect(t, sim)
	first := s.Handle()
	c.nextFrame(t)
	require.NoError(t, s.Disconnect())

	select {
	case <-s.Done():
	default:
		assert.Fail(t, "Done should be closed without a loop")
	}

	require.NoError(t, s.Connect(context.Background(), testSource(t)))
	assert.NotEqual(t, first, s.Handle())
	c.nextFrame(t)
	require.NoError(t, s.Close())
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "State(9)", State(9).String())
	assert.Equal(t, "continue", ContinueOnError.String())
}
