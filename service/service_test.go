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

package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/godbus/dbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/irimager/gateway"
	"github.com/TheCacophonyProject/irimager/palette"
	"github.com/TheCacophonyProject/irimager/session"
	"github.com/TheCacophonyProject/irimager/simulator"
)

func newTestService(t *testing.T) (*Service, *simulator.Simulator, uint32) {
	sim := simulator.New(simulator.Config{Width: 16, Height: 12, FrameRate: 100})
	r := session.NewRegistry(sim, session.WithLogFunc(func(string) {}))
	t.Cleanup(func() { r.Close() })

	path := filepath.Join(t.TempDir(), "camera.xml")
	require.NoError(t, os.WriteFile(path, []byte("<imager/>\n"), 0644))
	sess, err := r.Connect(context.Background(), gateway.LocalConfig(path))
	require.NoError(t, err)
	return New(r), sim, uint32(sess.Handle())
}

func errName(err *dbus.Error) string {
	if err == nil {
		return ""
	}
	return err.Name
}

func TestListCamerasAndState(t *testing.T) {
	s, _, h := newTestService(t)

	cams, derr := s.ListCameras()
	require.Nil(t, derr)
	assert.Equal(t, []uint32{h}, cams)

	state, reason, derr := s.State(h)
	require.Nil(t, derr)
	assert.Equal(t, "connected", state)
	assert.Empty(t, reason)

	_, _, derr = s.State(h + 1)
	require.NotNil(t, derr)
	assert.Equal(t, dbusName+".State", derr.Name)
	assert.Contains(t, derr.Body[0], "no session")
}

func TestConfigurationReachesCamera(t *testing.T) {
	s, sim, h := newTestService(t)

	require.Nil(t, s.SetManualTemperatureRange(h, 10, 40))
	require.Nil(t, s.SetPalette(h, "iron", "manual"))
	require.Nil(t, s.SetTemperatureRange(h, -20, 100))
	require.Nil(t, s.SetRadiationParameters(h, 0.95, 1, -999))
	require.Nil(t, s.SetAutomaticShutter(h, false))
	require.Nil(t, s.TriggerShutterFlag(h))
	require.Nil(t, s.SetClippedRegionPosition(h, 3, 4))

	x, y, derr := s.GetClippedRegionPosition(h)
	require.Nil(t, derr)
	assert.Equal(t, uint16(3), x)
	assert.Equal(t, uint16(4), y)

	st, ok := sim.State(gateway.Handle(h))
	require.True(t, ok)
	assert.Equal(t, palette.Iron, st.Palette)
	assert.Equal(t, palette.Manual, st.Scaling)
	assert.Equal(t, 10.0, st.ManualMin)
	assert.Equal(t, 100.0, st.RangeMax)
	assert.Equal(t, 0.95, st.Emissivity)
	assert.False(t, st.AutoShutter)
	assert.Equal(t, 1, st.ShutterTriggers)
}

func TestInvalidArgumentsAreReported(t *testing.T) {
	s, _, h := newTestService(t)

	assert.Equal(t, dbusName+".SetPalette", errName(s.SetPalette(h, "sepia", "minmax")))
	assert.Equal(t, dbusName+".SetPalette", errName(s.SetPalette(h, "iron", "loud")))
	assert.Equal(t, dbusName+".SetRadiationParameters", errName(s.SetRadiationParameters(h, 1.5, 1, 20)))
	assert.Equal(t, dbusName+".SetClippedRegionPosition", errName(s.SetClippedRegionPosition(h, 16, 0)))
	assert.Equal(t, dbusName+".SetManualTemperatureRange", errName(s.SetManualTemperatureRange(h, 40, 10)))
	assert.Equal(t, dbusName+".TriggerShutterFlag", errName(s.TriggerShutterFlag(h+1)))
}

func TestMeanTemperature(t *testing.T) {
	s, _, h := newTestService(t)

	require.Eventually(t, func() bool {
		_, seq, derr := s.MeanTemperature(h)
		return derr == nil && seq > 0
	}, 2*time.Second, 5*time.Millisecond)

	mean, _, derr := s.MeanTemperature(h)
	require.Nil(t, derr)
	assert.InDelta(t, 20, mean, 30)

	stats, derr := s.Stats(h)
	require.Nil(t, derr)
	assert.NotZero(t, stats["fetched"])
}

func TestIntrospection(t *testing.T) {
	s, _, _ := newTestService(t)
	xml, derr := genIntrospectable(s).Introspect()
	require.Nil(t, derr)
	for _, m := range []string{
		"ListCameras", "State", "Stats", "TriggerShutterFlag", "SetAutomaticShutter",
		"SetPalette", "SetManualTemperatureRange", "SetTemperatureRange",
		"SetRadiationParameters", "SetClippedRegionPosition",
		"GetClippedRegionPosition", "MeanTemperature",
	} {
		assert.Contains(t, string(xml), `"`+m+`"`)
	}
}
