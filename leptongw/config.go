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
	"errors"
	"io/ioutil"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Config is the camera configuration file named by a local source.
type Config struct {
	SPISpeed   int64         `yaml:"spi-speed"`
	PowerPin   string        `yaml:"power-pin"`
	CyclePower bool          `yaml:"cycle-power"`
	PowerOff   time.Duration `yaml:"power-off"`
	Startup    time.Duration `yaml:"startup"`
}

var defaultConfig = Config{
	SPISpeed:   2000000,
	PowerPin:   "GPIO23",
	CyclePower: true,
	PowerOff:   2 * time.Second,
	Startup:    8 * time.Second,
}

func DefaultConfig() Config {
	return defaultConfig
}

func ParseConfigFile(filename string) (*Config, error) {
	buf, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseConfig(buf)
}

func ParseConfig(buf []byte) (*Config, error) {
	conf := defaultConfig
	if err := yaml.Unmarshal(buf, &conf); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *Config) Validate() error {
	if c.SPISpeed <= 0 {
		return errors.New("spi-speed must be positive")
	}
	if c.PowerOff < 0 || c.Startup < 0 {
		return errors.New("power timings must not be negative")
	}
	return nil
}
