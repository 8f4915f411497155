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
	"log"
	"net"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/TheCacophonyProject/irimager/gateway"
	"github.com/TheCacophonyProject/irimager/session"
	"github.com/TheCacophonyProject/irimager/simulator"
	"github.com/TheCacophonyProject/irimager/throttle"
)

const (
	gatewayIRDirect  = "irdirect"
	gatewayLepton    = "lepton"
	gatewayStream    = "stream"
	gatewaySimulator = "simulator"
)

type Config struct {
	Gateway          string           `yaml:"gateway"`
	Cameras          []CameraConfig   `yaml:"cameras"`
	StopTimeout      time.Duration    `yaml:"stop-timeout"`
	CommandTimeout   time.Duration    `yaml:"command-timeout"`
	ReconnectInitial time.Duration    `yaml:"reconnect-initial"`
	ReconnectMax     time.Duration    `yaml:"reconnect-max"`
	LogInterval      time.Duration    `yaml:"log-interval"`
	WindowStart      string           `yaml:"window-start"`
	WindowEnd        string           `yaml:"window-end"`
	MetricsAddr      string           `yaml:"metrics-addr"`
	Simulator        simulator.Config `yaml:"simulator"`
}

type CameraConfig struct {
	Name          string          `yaml:"name"`
	Source        gateway.Source  `yaml:"source"`
	FailurePolicy string          `yaml:"failure-policy"`
	MaxFailures   int             `yaml:"max-failures"`
	Throttle      throttle.Config `yaml:"throttle"`
}

var defaultConfig = Config{
	Gateway:          gatewayIRDirect,
	StopTimeout:      session.DefaultStopTimeout,
	CommandTimeout:   session.DefaultCommandTimeout,
	ReconnectInitial: session.DefaultReconnectInitial,
	ReconnectMax:     session.DefaultReconnectMax,
	LogInterval:      session.DefaultLogInterval,
	Simulator:        simulator.DefaultConfig(),
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
	for i := range conf.Cameras {
		cam := &conf.Cameras[i]
		if cam.Name == "" {
			cam.Name = fmt.Sprintf("camera%d", i)
		}
		if cam.FailurePolicy == "" {
			cam.FailurePolicy = session.StopOnError.String()
		}
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (conf *Config) Validate() error {
	switch conf.Gateway {
	case gatewayIRDirect, gatewayLepton, gatewayStream, gatewaySimulator:
	default:
		return fmt.Errorf("unknown gateway %q", conf.Gateway)
	}
	if len(conf.Cameras) == 0 {
		return errors.New("no cameras configured")
	}
	if conf.StopTimeout <= 0 || conf.CommandTimeout <= 0 {
		return errors.New("stop-timeout and command-timeout must be positive")
	}
	if conf.ReconnectInitial <= 0 || conf.ReconnectMax < conf.ReconnectInitial {
		return errors.New("reconnect-max should be at least reconnect-initial")
	}
	if (conf.WindowStart == "") != (conf.WindowEnd == "") {
		return errors.New("window-start and window-end must be set together")
	}
	if conf.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(conf.MetricsAddr); err != nil {
			return fmt.Errorf("invalid metrics-addr: %v", err)
		}
	}
	names := make(map[string]bool)
	for _, cam := range conf.Cameras {
		if names[cam.Name] {
			return fmt.Errorf("camera %q configured twice", cam.Name)
		}
		names[cam.Name] = true
		if _, err := cam.policy(); err != nil {
			return err
		}
		if cam.MaxFailures < 0 {
			return fmt.Errorf("camera %s: max-failures can't be negative", cam.Name)
		}
		if err := cam.Throttle.Validate(); err != nil {
			return fmt.Errorf("camera %s: %v", cam.Name, err)
		}
		if cam.Source.ConfigPath == "" && cam.Source.Host == "" {
			return fmt.Errorf("camera %s: source needs a config or a host", cam.Name)
		}
	}
	return nil
}

func (cam *CameraConfig) policy() (session.FailurePolicy, error) {
	switch cam.FailurePolicy {
	case session.StopOnError.String():
		return session.StopOnError, nil
	case session.ContinueOnError.String():
		return session.ContinueOnError, nil
	}
	return 0, fmt.Errorf("camera %s: unknown failure-policy %q", cam.Name, cam.FailurePolicy)
}

// sessionOptions builds the options for one camera's sessions.
func (conf *Config) sessionOptions(cam CameraConfig, listener throttle.ThrottledEventListener) []session.Option {
	policy, _ := cam.policy()
	return []session.Option{
		session.WithStopTimeout(conf.StopTimeout),
		session.WithCommandTimeout(conf.CommandTimeout),
		session.WithFailurePolicy(policy),
		session.WithMaxConsecutiveFailures(cam.MaxFailures),
		session.WithThrottle(cam.Throttle, listener),
		session.WithLogInterval(conf.LogInterval),
		session.WithLogFunc(func(s string) { log.Printf("%s: %s", cam.Name, s) }),
	}
}
