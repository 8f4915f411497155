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
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/TheCacophonyProject/irimager/gateway"
	"github.com/TheCacophonyProject/irimager/simulator"
)

type Config struct {
	Gateway    string           `yaml:"gateway"`
	Source     gateway.Source   `yaml:"source"`
	Listen     string           `yaml:"listen"`
	Brand      string           `yaml:"brand"`
	Model      string           `yaml:"model"`
	RetryDelay time.Duration    `yaml:"retry-delay"`
	Simulator  simulator.Config `yaml:"simulator"`
}

var defaultConfig = Config{
	Gateway:    "irdirect",
	Listen:     fmt.Sprintf(":%d", gateway.DefaultPort),
	Brand:      "optris",
	RetryDelay: 5 * time.Second,
	Simulator:  simulator.DefaultConfig(),
}

func ParseConfigFile(filename string) (*Config, error) {
	buf, err := os.ReadFile(filename)
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

func (conf *Config) Validate() error {
	switch conf.Gateway {
	case "irdirect", "lepton", "simulator":
	default:
		return fmt.Errorf("gateway %q can't be relayed", conf.Gateway)
	}
	if conf.Source.ConfigPath == "" {
		return errors.New("source needs a camera config")
	}
	if _, _, err := net.SplitHostPort(conf.Listen); err != nil {
		return fmt.Errorf("invalid listen address: %v", err)
	}
	if conf.RetryDelay <= 0 {
		return errors.New("retry-delay must be positive")
	}
	return nil
}
