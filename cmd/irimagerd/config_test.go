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

package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TheCacophonyProject/event-reporter/eventclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/irimager/frame"
	"github.com/TheCacophonyProject/irimager/gateway"
	"github.com/TheCacophonyProject/irimager/session"
	"github.com/TheCacophonyProject/irimager/simulator"
	"github.com/TheCacophonyProject/irimager/throttle"
)

func TestDefaults(t *testing.T) {
	conf, err := ParseConfig([]byte(`
cameras:
  - source:
      config: /etc/irimager/generic.xml
`))
	require.NoError(t, err)

	assert.Equal(t, Config{
		Gateway: gatewayIRDirect,
		Cameras: []CameraConfig{{
			Name:          "camera0",
			Source:        gateway.LocalConfig("/etc/irimager/generic.xml"),
			FailurePolicy: "stop",
		}},
		StopTimeout:      3 * time.Second,
		CommandTimeout:   2 * time.Second,
		ReconnectInitial: 500 * time.Millisecond,
		ReconnectMax:     30 * time.Second,
		LogInterval:      time.Minute,
		Simulator:        simulator.DefaultConfig(),
	}, *conf)
}

func TestAllSet(t *testing.T) {
	conf, err := ParseConfig([]byte(`
gateway: simulator
stop-timeout: 5s
command-timeout: 1s
reconnect-initial: 1s
reconnect-max: 1m
log-interval: 10s
window-start: -30m
window-end: +30m
metrics-addr: ":2112"
simulator:
  width: 32
  height: 24
  frame-rate: 9
cameras:
  - name: front
    source:
      config: /etc/irimager/front.xml
      formats-dir: /usr/share/irimager
      log: /var/log/irimager.log
    failure-policy: continue
    max-failures: 10
    throttle:
      apply-throttling: true
      max-fps: 4
      burst: 2
  - name: back
    source:
      host: 10.0.0.2
      port: 1400
`))
	require.NoError(t, err)

	assert.Equal(t, gatewaySimulator, conf.Gateway)
	assert.Equal(t, 5*time.Second, conf.StopTimeout)
	assert.Equal(t, time.Second, conf.CommandTimeout)
	assert.Equal(t, time.Minute, conf.ReconnectMax)
	assert.Equal(t, 10*time.Second, conf.LogInterval)
	assert.Equal(t, "-30m", conf.WindowStart)
	assert.Equal(t, "+30m", conf.WindowEnd)
	assert.Equal(t, ":2112", conf.MetricsAddr)
	assert.Equal(t, 32, conf.Simulator.Width)
	assert.Equal(t, 9, conf.Simulator.FrameRate)

	assert.Equal(t, CameraConfig{
		Name: "front",
		Source: gateway.Source{
			ConfigPath: "/etc/irimager/front.xml",
			FormatsDir: "/usr/share/irimager",
			LogPath:    "/var/log/irimager.log",
		},
		FailurePolicy: "continue",
		MaxFailures:   10,
		Throttle:      throttle.Config{ApplyThrottling: true, MaxFPS: 4, Burst: 2},
	}, conf.Cameras[0])
	assert.Equal(t, gateway.Endpoint("10.0.0.2", 1400), conf.Cameras[1].Source)

	policy, err := conf.Cameras[0].policy()
	require.NoError(t, err)
	assert.Equal(t, session.ContinueOnError, policy)
	assert.Len(t, conf.sessionOptions(conf.Cameras[0], nil), 7)
}

func TestInvalidConfig(t *testing.T) {
	for name, config := range map[string]string{
		"no cameras":      "gateway: simulator\n",
		"unknown gateway": "gateway: webcam\ncameras: [{source: {host: a}}]\n",
		"no source":       "cameras: [{name: a}]\n",
		"bad policy":      "cameras: [{source: {host: a}, failure-policy: retry}]\n",
		"duplicate name":  "cameras: [{name: a, source: {host: a}}, {name: a, source: {host: b}}]\n",
		"half window":     "window-start: \"18:00\"\ncameras: [{source: {host: a}}]\n",
		"bad throttle":    "cameras: [{source: {host: a}, throttle: {apply-throttling: true, max-fps: 0}}]\n",
		"bad reconnect":   "reconnect-initial: 1m\nreconnect-max: 1s\ncameras: [{source: {host: a}}]\n",
		"bad metrics":     "metrics-addr: 2112\ncameras: [{source: {host: a}}]\n",
		"bad yaml":        "cameras: [\n",
	} {
		_, err := ParseConfig([]byte(config))
		assert.Error(t, err, name)
	}
}

func TestReporterRecordsErrors(t *testing.T) {
	var total atomic.Uint64
	r := newReporter("front", &total)
	var events []eventclient.Event
	r.addEvent = func(e eventclient.Event) error {
		events = append(events, e)
		return nil
	}

	f := &frame.Frame{Thermal: frame.NewThermalFrame(2, 2), Palette: frame.NewPaletteFrame(2, 2)}
	r.OnFrame(f)
	r.OnFrame(f)
	assert.Equal(t, uint64(2), total.Load())

	r.OnError(errors.New("cable unplugged"))
	require.Len(t, events, 1)
	assert.Equal(t, "irimagerError", events[0].Type)
	assert.Equal(t, "front", events[0].Details["camera"])
	assert.Equal(t, "cable unplugged", events[0].Details["error"])
}

func TestRunWindowedWithoutWindow(t *testing.T) {
	var active atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	runs := 0
	err := runWindowed(ctx, nil, &active, func(ctx context.Context) error {
		runs++
		assert.True(t, active.Load())
		if runs == 2 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, runs)

	boom := errors.New("boom")
	err = runWindowed(context.Background(), nil, &active, func(context.Context) error {
		return boom
	})
	assert.Equal(t, boom, err)
}
