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

// Package irdirect is the gateway for imagers driven by the vendor's
// irDirect SDK (libirdirectsdk). It is only built with the irdirect tag
// since it needs the SDK installed:
//
//	go build -tags irdirect ./...
package irdirect

import "errors"

// ErrNotBuilt is returned by New when the binary was built without the
// irdirect tag.
var ErrNotBuilt = errors.New("irdirect: built without the irdirect tag")
