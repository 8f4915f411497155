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

package session

import (
	"log"
	"time"

	"github.com/TheCacophonyProject/irimager/throttle"
)

const (
	DefaultStopTimeout    = 3 * time.Second
	DefaultCommandTimeout = 2 * time.Second
	DefaultLogInterval    = time.Minute
)

// FailurePolicy says what the acquisition loop does when a fetch fails.
type FailurePolicy int

const (
	// StopOnError reports the failure and stops acquisition, leaving the
	// session Failed.
	StopOnError FailurePolicy = iota
	// ContinueOnError reports the failure and keeps fetching.
	ContinueOnError
)

func (p FailurePolicy) String() string {
	if p == ContinueOnError {
		return "continue"
	}
	return "stop"
}

// Option adjusts how a session behaves.
type Option func(*options)

type options struct {
	stopTimeout    time.Duration
	commandTimeout time.Duration
	policy         FailurePolicy
	maxFailures    int
	throttleConf   *throttle.Config
	throttleEvents throttle.ThrottledEventListener
	logFunc        func(string)
	logInterval    time.Duration
}

func defaultOptions() options {
	return options{
		stopTimeout:    DefaultStopTimeout,
		commandTimeout: DefaultCommandTimeout,
		policy:         StopOnError,
		logFunc:        func(s string) { log.Print(s) },
		logInterval:    DefaultLogInterval,
	}
}

// WithStopTimeout bounds how long Disconnect waits for the acquisition loop
// to exit and for the camera to be free to release.
func WithStopTimeout(d time.Duration) Option {
	return func(o *options) { o.stopTimeout = d }
}

// WithCommandTimeout bounds how long a configuration call waits for its
// turn at the device.
func WithCommandTimeout(d time.Duration) Option {
	return func(o *options) { o.commandTimeout = d }
}

func WithFailurePolicy(p FailurePolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithMaxConsecutiveFailures stops a ContinueOnError loop after n fetches
// in a row have failed. Zero means no limit.
func WithMaxConsecutiveFailures(n int) Option {
	return func(o *options) { o.maxFailures = n }
}

// WithThrottle limits delivered frames with a token bucket built from conf.
// Each connection gets a fresh bucket.
func WithThrottle(conf throttle.Config, listener throttle.ThrottledEventListener) Option {
	return func(o *options) {
		if !conf.ApplyThrottling {
			o.throttleConf = nil
			return
		}
		o.throttleConf = &conf
		o.throttleEvents = listener
	}
}

func WithLogFunc(f func(string)) Option {
	return func(o *options) { o.logFunc = f }
}

// WithLogInterval sets how long identical acquisition log lines are
// suppressed for.
func WithLogInterval(d time.Duration) Option {
	return func(o *options) { o.logInterval = d }
}
