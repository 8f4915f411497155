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

package gateway

import (
	"net"
	"strconv"
)

// DefaultPort is the port imager streaming servers listen on.
const DefaultPort = 1337

// Source says where a camera's configuration comes from: either a local
// configuration file or a network endpoint serving frames.
type Source struct {
	ConfigPath string `yaml:"config"`
	FormatsDir string `yaml:"formats-dir"`
	LogPath    string `yaml:"log"`

	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LocalConfig returns a source for a locally attached camera described by
// the configuration file at path.
func LocalConfig(path string) Source {
	return Source{ConfigPath: path}
}

// Endpoint returns a network source. A zero port means DefaultPort.
func Endpoint(host string, port int) Source {
	if port == 0 {
		port = DefaultPort
	}
	return Source{Host: host, Port: port}
}

// IsNetwork reports whether s names a network endpoint.
func (s Source) IsNetwork() bool {
	return s.Host != ""
}

// Addr returns the host:port of a network source.
func (s Source) Addr() string {
	port := s.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(s.Host, strconv.Itoa(port))
}

func (s Source) String() string {
	if s.IsNetwork() {
		return "tcp://" + s.Addr()
	}
	return s.ConfigPath
}
