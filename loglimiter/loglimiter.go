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


package loglimiter

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// New returns a new LogLimiter with the configured minimum log interval.
// Output goes to the standard logger.
func New(interval time.Duration) *LogLimiter {
	return NewWithOutput(interval, func(s string) { log.Print(s) })
}

// NewWithOutput returns a LogLimiter that writes through out, e.g. a
// camera session's log function.
func NewWithOutput(interval time.Duration, out func(string)) *LogLimiter {
	return &LogLimiter{
		interval: interval,
		nowFunc:  time.Now,
		out:      out,
	}
}

// LogLimiter will suppress log messages if the same log message is
// seen within some time interval. When a suppressed message is next let
// through, the number of repeats that were hidden is appended. It is safe
// for concurrent use.
type LogLimiter struct {
	interval time.Duration
	nowFunc  func() time.Time
	out      func(string)

	mu            sync.Mutex
	previousEntry string
	previousTime  time.Time
	suppressed    int
}

func (limiter *LogLimiter) Printf(format string, v ...interface{}) {
	limiter.Print(fmt.Sprintf(format, v...))
}

func (limiter *LogLimiter) Print(s string) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := limiter.nowFunc()
	if s == limiter.previousEntry {
		if now.Sub(limiter.previousTime) < limiter.interval {
			limiter.suppressed++
			return
		}
		if limiter.suppressed > 0 {
			s = fmt.Sprintf("%s (repeated %d times)", s, limiter.suppressed)
		}
	} else {
		limiter.previousEntry = s
	}
	limiter.suppressed = 0
	limiter.previousTime = now
	limiter.out(s)
}

// Suppressed returns how many repeats of the last message have been hidden
// since it was last logged.
func (limiter *LogLimiter) Suppressed() int {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	return limiter.suppressed
}
