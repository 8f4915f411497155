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

import (
	"log"
	"time"

	"github.com/TheCacophonyProject/event-reporter/eventclient"
)

// ThrottledEventRecorder queues a "throttle" event on the Cacophony event
// reporter for the named camera.
type ThrottledEventRecorder struct {
	Camera string
}

func (er ThrottledEventRecorder) WhenThrottled() {
	event := eventclient.Event{
		Timestamp: time.Now(),
		Type:      "throttle",
		Details: map[string]interface{}{
			"camera": er.Camera,
		},
	}
	if err := eventclient.AddEvent(event); err != nil {
		log.Printf("could not record throttle event: %v", err)
	}
}
