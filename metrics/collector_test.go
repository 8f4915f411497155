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

package metrics

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/irimager/gateway"
	"github.com/TheCacophonyProject/irimager/session"
	"github.com/TheCacophonyProject/irimager/simulator"
)

func TestCollector(t *testing.T) {
	sim := simulator.New(simulator.Config{Width: 8, Height: 6, FrameRate: 200})
	r := session.NewRegistry(sim, session.WithLogFunc(func(string) {}))
	defer r.Close()
	c := NewCollector(r)

	assert.Equal(t, 0, testutil.CollectAndCount(c))

	path := filepath.Join(t.TempDir(), "camera.xml")
	require.NoError(t, os.WriteFile(path, []byte("<imager/>\n"), 0644))
	s, err := r.Connect(context.Background(), gateway.LocalConfig(path))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		f, _ := s.Latest()
		return f != nil
	}, 2*time.Second, 5*time.Millisecond)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
	assert.Equal(t, 7, testutil.CollectAndCount(c))

	camera := strconv.FormatUint(uint64(s.Handle()), 10)
	expected := `
# HELP irimager_session_connected 1 while the session is acquiring frames.
# TYPE irimager_session_connected gauge
irimager_session_connected{camera="` + camera + `"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "irimager_session_connected"))

	require.NoError(t, r.Disconnect(s.Handle()))
	assert.Equal(t, 0, testutil.CollectAndCount(c))
}
