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
	"errors"
	"fmt"
)

// Code is a native result code. Zero is success and negative values are
// failures. A non-OK Code is usable as an error.
type Code int32

const (
	CodeOK              Code = 0
	CodeFailed          Code = -1 // generic SDK failure
	CodeInitFailed      Code = -2
	CodeInvalidHandle   Code = -3
	CodeDisconnected    Code = -4
	CodeInvalidArgument Code = -5
	CodeTimeout         Code = -6
	CodeNotSupported    Code = -7
)

var codeNames = map[Code]string{
	CodeOK:              "ok",
	CodeFailed:          "failed",
	CodeInitFailed:      "initialisation failed",
	CodeInvalidHandle:   "invalid handle",
	CodeDisconnected:    "disconnected",
	CodeInvalidArgument: "invalid argument",
	CodeTimeout:         "timeout",
	CodeNotSupported:    "not supported",
}

func (c Code) Error() string {
	if name, ok := codeNames[c]; ok {
		return fmt.Sprintf("device code %d (%s)", int32(c), name)
	}
	return fmt.Sprintf("device code %d", int32(c))
}

// Failed reports whether c is a failure code.
func (c Code) Failed() bool {
	return c < 0
}

// Check converts a native result into an error: nil for zero or positive
// results, the Code otherwise.
func Check(result int) error {
	if result < 0 {
		return Code(result)
	}
	return nil
}

// CodeOf extracts the native code carried by err. Errors that carry no
// code report CodeFailed, and nil reports CodeOK.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return CodeFailed
}
