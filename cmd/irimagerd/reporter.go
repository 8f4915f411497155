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
	"log"
	"sync/atomic"
	"time"

	"github.com/TheCacophonyProject/event-reporter/eventclient"

	"github.com/TheCacophonyProject/irimager/frame"
)

const frameLogInterval = 5 * time.Minute

// reporter is the daemon's consumer. It logs the scene temperature now and
// then and turns acquisition failures into events.
type reporter struct {
	camera   string
	total    *atomic.Uint64
	frames   atomic.Uint64
	lastLog  atomic.Int64
	addEvent func(eventclient.Event) error
}

func newReporter(camera string, total *atomic.Uint64) *reporter {
	return &reporter{
		camera:   camera,
		total:    total,
		addEvent: eventclient.AddEvent,
	}
}

func (r *reporter) OnFrame(f *frame.Frame) {
	n := r.frames.Add(1)
	r.total.Add(1)

	now := time.Now()
	last := r.lastLog.Load()
	if now.Sub(time.Unix(0, last)) < frameLogInterval || !r.lastLog.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	log.Printf("%s: %d frames seen, mean %.2f°C, chip %.1f°C", r.camera, n, f.MeanTemperature(), f.Metadata.TempChip)
}

func (r *reporter) OnError(err error) {
	log.Printf("%s: %v", r.camera, err)
	event := eventclient.Event{
		Timestamp: time.Now(),
		Type:      "irimagerError",
		Details: map[string]interface{}{
			"camera": r.camera,
			"error":  err.Error(),
		},
	}
	if err := r.addEvent(event); err != nil {
		log.Printf("could not record error event: %v", err)
	}
}
