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
	"sync"
	"time"

	"github.com/juju/ratelimit"
)

// New returns a throttle limiting frames to conf.MaxFPS on average, with
// bursts of up to conf.Burst frames.
func New(conf *Config, listener ThrottledEventListener) *Throttle {
	return NewWithClock(conf, listener, new(realClock))
}

func NewWithClock(conf *Config, listener ThrottledEventListener, clock ratelimit.Clock) *Throttle {
	// The token bucket tracks the number of *frames* available for delivery.
	burst := conf.Burst
	if burst < 1 {
		burst = 1
	}
	bucket := ratelimit.NewBucketWithRateAndClock(conf.MaxFPS, burst, clock)

	if listener == nil {
		listener = new(nullListener)
	}

	return &Throttle{
		bucket:   bucket,
		listener: listener,
	}
}

// Throttle decides which frames get delivered when frames arrive faster
// than consumers want them.
type Throttle struct {
	bucket   *ratelimit.Bucket
	listener ThrottledEventListener

	mu         sync.Mutex
	throttling bool
	throttled  uint64
	run        uint64
}

type ThrottledEventListener interface {
	WhenThrottled()
}

type nullListener struct{}

func (lis *nullListener) WhenThrottled() {}

// Allow takes a token for one frame. It returns false when the frame
// should be dropped. The listener hears about each run of throttled frames
// once, when the run starts.
func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bucket.TakeAvailable(1) > 0 {
		if t.throttling {
			log.Printf("frame delivery resumed; %d frames throttled", t.run)
			t.throttling = false
			t.run = 0
		}
		return true
	}

	t.throttled++
	t.run++
	if !t.throttling {
		t.throttling = true
		log.Print("frame delivery throttled")
		t.listener.WhenThrottled()
	}
	return false
}

// Throttled returns the number of frames refused so far.
func (t *Throttle) Throttled() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.throttled
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(d time.Duration) {
	time.Sleep(d)
}
