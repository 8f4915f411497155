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

package throttle

import "errors"

type Config struct {
	ApplyThrottling bool    `yaml:"apply-throttling"`
	MaxFPS          float64 `yaml:"max-fps"`
	Burst           int64   `yaml:"burst"`
}

func DefaultConfig() Config {
	return Config{
		ApplyThrottling: false,
		MaxFPS:          9,
		Burst:           9,
	}
}

func (conf *Config) Validate() error {
	if !conf.ApplyThrottling {
		return nil
	}
	if conf.MaxFPS <= 0 {
		return errors.New("max-fps must be positive when throttling")
	}
	if conf.Burst < 1 {
		return errors.New("burst must be at least 1 when throttling")
	}
	return nil
}
