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
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/TheCacophonyProject/irimager/gateway"
)

func TestRegistrySessionsAreIndependent(t *testing.T) {
	sim := newTestSimulator(200)
	r := NewRegistry(sim, quiet())
	defer r.Close()
	ctx := context.Background()

	a, err := r.Connect(ctx, testSource(t))
	require.NoError(t, err)
	b, err := r.Connect(ctx, testSource(t))
	require.NoError(t, err)
	assert.Equal(t, []gateway.Handle{a.Handle(), b.Handle()}, r.Handles())

	got, err := r.Get(b.Handle())
	require.NoError(t, err)
	assert.Same(t, b, got)

	require.NoError(t, a.SetClippedRegionPosition(1, 2))
	x, y, err := b.ClippedRegionPosition()
	require.NoError(t, err)
	assert.Equal(t, uint16(ClipUnset), x)
	assert.Equal(t, uint16(ClipUnset), y)

	ha := a.Handle()
	require.NoError(t, r.Disconnect(ha))
	assert.True(t, terminated(sim, ha))
	assert.Equal(t, Disconnected, a.State())
	assert.Equal(t, Connected, b.State())
	_, err = r.Get(ha)
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.ErrorIs(t, r.Disconnect(ha), ErrUnknownSession)

	fetched := b.Stats().Fetched
	assert.Eventually(t, func() bool {
		return b.Stats().Fetched > fetched
	}, 2*time.Second, 5*time.Millisecond)

	hb := b.Handle()
	require.NoError(t, r.Close())
	assert.Empty(t, r.Handles())
	assert.True(t, terminated(sim, hb))
	assert.Empty(t, sim.Cameras())
}

func TestRegistryConcurrentConnectDisconnect(t *testing.T) {
	const cameras = 8
	sim := newTestSimulator(200)
	r := NewRegistry(sim, quiet())
	defer r.Close()

	sources := make([]gateway.Source, cameras)
	for i := range sources {
		sources[i] = testSource(t)
	}

	var mu sync.Mutex
	seen := make(map[gateway.Handle]bool)
	var g errgroup.Group
	for _, src := range sources {
		src := src
		g.Go(func() error {
			s, err := r.Connect(context.Background(), src)
			if err != nil {
				return err
			}
			h := s.Handle()
			mu.Lock()
			seen[h] = true
			mu.Unlock()
			if err := s.TriggerShutterFlag(); err != nil {
				return err
			}
			return r.Disconnect(h)
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, seen, cameras)
	for h := range seen {
		assert.True(t, terminated(sim, h), "camera %d", h)
	}
	assert.Empty(t, r.Handles())
	assert.Empty(t, sim.Cameras())
}

func TestRegistryDuplicateHandle(t *testing.T) {
	sim := newTestSimulator(200)
	r := NewRegistry(sim, quiet())
	defer r.Close()
	ctx := context.Background()

	a, err := r.Connect(ctx, testSource(t))
	require.NoError(t, err)

	sim.ForceNextHandle(a.Handle())
	_, err = r.Connect(ctx, testSource(t))
	assert.ErrorIs(t, err, ErrDuplicateHandle)

	assert.Equal(t, []gateway.Handle{a.Handle()}, r.Handles())
	assert.Equal(t, Connected, a.State())
	assert.False(t, terminated(sim, a.Handle()))
	require.NoError(t, a.TriggerShutterFlag())
}

func TestRegistryFailedConnect(t *testing.T) {
	sim := newTestSimulator(200)
	r := NewRegistry(sim, quiet())
	_, err := r.Connect(context.Background(), gateway.LocalConfig(filepath.Join(t.TempDir(), "missing.xml")))
	assert.ErrorIs(t, err, ErrConfigNotFound)
	assert.Empty(t, r.Handles())
	assert.NoError(t, r.Close())
}

func TestMaintainReconnectsAfterFailure(t *testing.T) {
	sim := newTestSimulator(200)
	r := NewRegistry(sim, quiet())
	r.SetReconnectInterval(10*time.Millisecond, 50*time.Millisecond)
	c := newTestConsumer()
	src := testSource(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Maintain(ctx, src, c) }()

	c.nextFrame(t)
	require.Eventually(t, func() bool {
		return len(r.Handles()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	first := r.Handles()[0]

	require.True(t, sim.FailFetch(first, gateway.CodeDisconnected, -1))
	assert.ErrorIs(t, c.nextError(t), ErrAcquisition)

	assert.Eventually(t, func() bool {
		hs := r.Handles()
		return len(hs) == 1 && hs[0] != first
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, terminated(sim, first))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "Maintain did not return")
	}
	assert.Empty(t, r.Handles())
	assert.Empty(t, sim.Cameras())
}

func TestMaintainRetriesConnect(t *testing.T) {
	sim := newTestSimulator(200)
	sim.FailInit(gateway.CodeInitFailed)
	r := NewRegistry(sim, quiet())
	r.SetReconnectInterval(10*time.Millisecond, 50*time.Millisecond)
	c := newTestConsumer()

	src := testSource(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Maintain(ctx, src, c) }()

	c.nextFrame(t)
	assert.Eventually(t, func() bool {
		return len(r.Handles()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestMaintainGivesUpWithoutConfig(t *testing.T) {
	sim := newTestSimulator(200)
	r := NewRegistry(sim, quiet())
	r.SetReconnectInterval(10*time.Millisecond, 50*time.Millisecond)

	err := r.Maintain(context.Background(), gateway.LocalConfig(filepath.Join(t.TempDir(), "missing.xml")), nil)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestMaintainStopsWhenDisconnectedElsewhere(t *testing.T) {
	sim := newTestSimulator(200)
	r := NewRegistry(sim, quiet())
	c := newTestConsumer()

	src := testSource(t)

	done := make(chan error, 1)
	go func() { done <- r.Maintain(context.Background(), src, c) }()

	c.nextFrame(t)
	require.Eventually(t, func() bool {
		return len(r.Handles()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, r.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "Maintain did not return")
	}
}
