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

// Package location reads the device position that the management
// interface writes to /etc/cacophony/location.yaml. The daemon uses it to
// place sunrise and sunset relative acquisition windows.
package location

import (
	"errors"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

const (
	DefaultFile = "/etc/cacophony/location.yaml"

	maxLatitude  = 90
	maxLongitude = 180

	// Christchurch
	defaultLatitude  = -43.5321
	defaultLongitude = 172.6362
)

type Config struct {
	Latitude  float32   `yaml:"latitude"`
	Longitude float32   `yaml:"longitude"`
	Timestamp time.Time `yaml:"timestamp"`
	Altitude  float32   `yaml:"altitude"`
	Accuracy  float32   `yaml:"accuracy"`
}

func Default() Config {
	return Config{
		Latitude:  defaultLatitude,
		Longitude: defaultLongitude,
		Accuracy:  10,
	}
}

func (conf *Config) IsEmpty() bool {
	return conf.Latitude == 0 && conf.Longitude == 0
}

// ParseFile reads a location file. A missing file gives the default
// location.
func ParseFile(filename string) (*Config, error) {
	buf, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		conf := Default()
		return &conf, nil
	}
	if err != nil {
		return nil, err
	}
	return Parse(buf)
}

// Parse decodes a location. (0, 0) is treated as unset and replaced by the
// default location.
func Parse(buf []byte) (*Config, error) {
	var conf Config
	if err := yaml.Unmarshal(buf, &conf); err != nil {
		return nil, err
	}
	if conf.IsEmpty() {
		conf = Default()
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (conf *Config) Validate() error {
	if conf.Latitude < -maxLatitude || conf.Latitude > maxLatitude {
		return fmt.Errorf("latitude %v outside of normal range", conf.Latitude)
	}
	if conf.Longitude < -maxLongitude || conf.Longitude > maxLongitude {
		return fmt.Errorf("longitude %v outside of normal range", conf.Longitude)
	}
	return nil
}
