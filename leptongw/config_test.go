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

package leptongw

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllDefaults(t *testing.T) {
	conf, err := ParseConfig([]byte(""))
	require.NoError(t, err)

	assert.Equal(t, Config{
		SPISpeed:   2000000,
		PowerPin:   "GPIO23",
		CyclePower: true,
		PowerOff:   2 * time.Second,
		Startup:    8 * time.Second,
	}, *conf)
}

func TestAllSet(t *testing.T) {
	// All config set at non-default values.
	config := []byte(`
spi-speed: 123
power-pin: "PIN"
cycle-power: false
power-off: 1s
startup: 3s
`)

	conf, err := ParseConfig(config)
	require.NoError(t, err)

	assert.Equal(t, Config{
		SPISpeed:   123,
		PowerPin:   "PIN",
		CyclePower: false,
		PowerOff:   time.Second,
		Startup:    3 * time.Second,
	}, *conf)
}

func TestInvalidSPISpeed(t *testing.T) {
	_, err := ParseConfig([]byte("spi-speed: 0\n"))
	assert.Error(t, err)
}
