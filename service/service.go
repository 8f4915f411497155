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

// Package service exports control of the cameras in a session registry on
// the system D-Bus as org.cacophony.irimagerd. Every method takes the
// camera handle reported by ListCameras.
package service

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"

	"github.com/TheCacophonyProject/irimager/gateway"
	"github.com/TheCacophonyProject/irimager/palette"
	"github.com/TheCacophonyProject/irimager/session"
)

const (
	dbusName = "org.cacophony.irimagerd"
	dbusPath = "/org/cacophony/irimagerd"
)

var errNoFrame = errors.New("no frame received yet")

type Service struct {
	registry *session.Registry
}

func New(r *session.Registry) *Service {
	return &Service{registry: r}
}

// Start exports a Service for r on the system bus.
func Start(r *session.Registry) (*Service, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, errors.New("name already taken")
	}
	s := New(r)
	if err := conn.Export(s, dbusPath, dbusName); err != nil {
		return nil, err
	}
	if err := conn.Export(genIntrospectable(s), dbusPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, err
	}
	return s, nil
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    dbusName,
			Methods: introspect.Methods(v),
		}},
	}
	return introspect.NewIntrospectable(node)
}

func (s *Service) session(name string, handle uint32) (*session.Session, *dbus.Error) {
	sess, err := s.registry.Get(gateway.Handle(handle))
	if err != nil {
		return nil, makeDbusError(name, err)
	}
	return sess, nil
}

// do runs fn against the session for handle and converts its error.
func (s *Service) do(name string, handle uint32, fn func(*session.Session) error) *dbus.Error {
	sess, derr := s.session(name, handle)
	if derr != nil {
		return derr
	}
	if err := fn(sess); err != nil {
		return makeDbusError(name, err)
	}
	return nil
}

func (s *Service) ListCameras() ([]uint32, *dbus.Error) {
	handles := s.registry.Handles()
	out := make([]uint32, len(handles))
	for i, h := range handles {
		out[i] = uint32(h)
	}
	return out, nil
}

// State returns the session state and, for a failed session, the error
// that stopped it.
func (s *Service) State(handle uint32) (string, string, *dbus.Error) {
	sess, derr := s.session("State", handle)
	if derr != nil {
		return "", "", derr
	}
	reason := ""
	if err := sess.Err(); err != nil {
		reason = err.Error()
	}
	return sess.State().String(), reason, nil
}

func (s *Service) Stats(handle uint32) (map[string]uint64, *dbus.Error) {
	sess, derr := s.session("Stats", handle)
	if derr != nil {
		return nil, derr
	}
	st := sess.Stats()
	return map[string]uint64{
		"fetched":     st.Fetched,
		"delivered":   st.Delivered,
		"dropped":     st.Dropped,
		"throttled":   st.Throttled,
		"fetchErrors": st.FetchErrors,
	}, nil
}

func (s *Service) TriggerShutterFlag(handle uint32) *dbus.Error {
	return s.do("TriggerShutterFlag", handle, (*session.Session).TriggerShutterFlag)
}

func (s *Service) SetAutomaticShutter(handle uint32, automatic bool) *dbus.Error {
	return s.do("SetAutomaticShutter", handle, func(sess *session.Session) error {
		return sess.SetAutomaticShutter(automatic)
	})
}

// SetPalette takes the palette and scaling by name, e.g. "iron" and
// "minmax".
func (s *Service) SetPalette(handle uint32, paletteName, scalingName string) *dbus.Error {
	p, err := palette.ParsePalette(paletteName)
	if err != nil {
		return makeDbusError("SetPalette", err)
	}
	sc, err := palette.ParseScaling(scalingName)
	if err != nil {
		return makeDbusError("SetPalette", err)
	}
	return s.do("SetPalette", handle, func(sess *session.Session) error {
		return sess.SetPalette(p, sc)
	})
}

func (s *Service) SetManualTemperatureRange(handle uint32, min, max float64) *dbus.Error {
	return s.do("SetManualTemperatureRange", handle, func(sess *session.Session) error {
		return sess.SetManualTemperatureRange(min, max)
	})
}

func (s *Service) SetTemperatureRange(handle uint32, min, max float64) *dbus.Error {
	return s.do("SetTemperatureRange", handle, func(sess *session.Session) error {
		return sess.SetTemperatureRange(min, max)
	})
}

func (s *Service) SetRadiationParameters(handle uint32, emissivity, transmissivity, ambient float64) *dbus.Error {
	return s.do("SetRadiationParameters", handle, func(sess *session.Session) error {
		return sess.SetRadiationParameters(emissivity, transmissivity, ambient)
	})
}

func (s *Service) SetClippedRegionPosition(handle uint32, x, y uint16) *dbus.Error {
	return s.do("SetClippedRegionPosition", handle, func(sess *session.Session) error {
		return sess.SetClippedRegionPosition(x, y)
	})
}

func (s *Service) GetClippedRegionPosition(handle uint32) (uint16, uint16, *dbus.Error) {
	var x, y uint16
	derr := s.do("GetClippedRegionPosition", handle, func(sess *session.Session) (err error) {
		x, y, err = sess.ClippedRegionPosition()
		return err
	})
	return x, y, derr
}

// MeanTemperature returns the mean of the latest frame in °C and its
// sequence number.
func (s *Service) MeanTemperature(handle uint32) (float64, uint64, *dbus.Error) {
	sess, derr := s.session("MeanTemperature", handle)
	if derr != nil {
		return 0, 0, derr
	}
	f, seq := sess.Latest()
	if f == nil {
		return 0, 0, makeDbusError("MeanTemperature", fmt.Errorf("camera %d: %w", handle, errNoFrame))
	}
	return f.MeanTemperature(), seq, nil
}

func makeDbusError(name string, err error) *dbus.Error {
	return &dbus.Error{
		Name: dbusName + "." + name,
		Body: []interface{}{err.Error()},
	}
}
