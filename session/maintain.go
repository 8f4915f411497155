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
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/TheCacophonyProject/irimager/gateway"
)

// SetReconnectInterval bounds the delay between connection attempts made
// by Maintain.
func (r *Registry) SetReconnectInterval(initial, max time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconnectInitial = initial
	r.reconnectMax = max
}

// Maintain keeps a camera on src connected until ctx is done. It connects
// with exponential backoff, delivers to c and, whenever acquisition fails,
// releases the camera and connects again. It returns ctx.Err() once ctx is
// done, nil if the session was disconnected by someone else, or the error
// that made connecting pointless (missing configuration, bad arguments).
func (r *Registry) Maintain(ctx context.Context, src gateway.Source, c Consumer, opts ...Option) error {
	for {
		s, err := r.connectRetrying(ctx, src, c, opts)
		if err != nil {
			return err
		}
		h := s.Handle()

		select {
		case <-ctx.Done():
			if err := r.Disconnect(h); err != nil && !errors.Is(err, ErrUnknownSession) {
				s.logf("camera %d: disconnect: %v", h, err)
			}
			return ctx.Err()
		case <-s.Done():
		}

		if s.State() != Failed {
			return nil
		}
		s.logf("camera %d: reconnecting after: %v", h, s.Err())
		if err := r.Disconnect(h); err != nil && !errors.Is(err, ErrUnknownSession) {
			s.logf("camera %d: disconnect: %v", h, err)
		}
	}
}

func (r *Registry) connectRetrying(ctx context.Context, src gateway.Source, c Consumer, opts []Option) (*Session, error) {
	r.mu.Lock()
	b := &backoff.ExponentialBackOff{
		InitialInterval:     r.reconnectInitial,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         r.reconnectMax,
		MaxElapsedTime:      0,
		Clock:               backoff.SystemClock,
	}
	r.mu.Unlock()

	var s *Session
	op := func() error {
		var err error
		s, err = r.connect(ctx, src, c, opts)
		if errors.Is(err, ErrConfigNotFound) || errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrDuplicateHandle) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		log.Printf("connecting to %v failed, retrying in %v: %v", src, next.Round(time.Millisecond), err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return s, nil
}
