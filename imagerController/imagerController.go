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

// Package imagerController is a client for the irimagerd D-Bus service.
package imagerController

import "github.com/godbus/dbus"

const (
	dbusPath   = "/org/cacophony/irimagerd"
	dbusDest   = "org.cacophony.irimagerd"
	methodBase = "org.cacophony.irimagerd"
)

// State is what irimagerd reports about one camera.
type State struct {
	State  string
	Reason string
}

func getDbusObj() (dbus.BusObject, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	obj := conn.Object(dbusDest, dbusPath)
	return obj, nil
}

func call(method string, args ...interface{}) *dbus.Call {
	obj, err := getDbusObj()
	if err != nil {
		return &dbus.Call{Err: err}
	}
	return obj.Call(methodBase+"."+method, 0, args...)
}

func ListCameras() ([]uint32, error) {
	var cams []uint32
	err := call("ListCameras").Store(&cams)
	return cams, err
}

func GetState(camera uint32) (State, error) {
	var s State
	err := call("State", camera).Store(&s.State, &s.Reason)
	return s, err
}

func GetStats(camera uint32) (map[string]uint64, error) {
	var stats map[string]uint64
	err := call("Stats", camera).Store(&stats)
	return stats, err
}

func TriggerShutterFlag(camera uint32) error {
	return call("TriggerShutterFlag", camera).Store()
}

func SetAutomaticShutter(camera uint32, automatic bool) error {
	return call("SetAutomaticShutter", camera, automatic).Store()
}

func SetPalette(camera uint32, palette, scaling string) error {
	return call("SetPalette", camera, palette, scaling).Store()
}

func SetManualTemperatureRange(camera uint32, min, max float64) error {
	return call("SetManualTemperatureRange", camera, min, max).Store()
}

func SetTemperatureRange(camera uint32, min, max float64) error {
	return call("SetTemperatureRange", camera, min, max).Store()
}

func SetRadiationParameters(camera uint32, emissivity, transmissivity, ambient float64) error {
	return call("SetRadiationParameters", camera, emissivity, transmissivity, ambient).Store()
}

func SetClippedRegionPosition(camera uint32, x, y uint16) error {
	return call("SetClippedRegionPosition", camera, x, y).Store()
}

func GetClippedRegionPosition(camera uint32) (x, y uint16, err error) {
	err = call("GetClippedRegionPosition", camera).Store(&x, &y)
	return x, y, err
}

// MeanTemperature returns the mean temperature of the latest frame in °C
// and the frame's sequence number.
func MeanTemperature(camera uint32) (mean float64, seq uint64, err error) {
	err = call("MeanTemperature", camera).Store(&mean, &seq)
	return mean, seq, err
}
