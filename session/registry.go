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
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TheCacophonyProject/irimager/gateway"
)

const (
	DefaultReconnectInitial = 500 * time.Millisecond
	DefaultReconnectMax     = 30 * time.Second
)

// Registry holds the sessions of several cameras sharing one gateway,
// keyed by camera handle. Sessions are independent of each other; the
// registry only tracks them. Sessions obtained from a registry should be
// disconnected through it.
type Registry struct {
	gw   gateway.Gateway
	opts []Option

	mu               sync.Mutex
	sessions         map[gateway.Handle]*Session
	reconnectInitial time.Duration
	reconnectMax     time.Duration
}

// NewRegistry returns an empty registry. opts apply to every session it
// connects.
func NewRegistry(gw gateway.Gateway, opts ...Option) *Registry {
	return &Registry{
		gw:               gw,
		opts:             opts,
		sessions:         make(map[gateway.Handle]*Session),
		reconnectInitial: DefaultReconnectInitial,
		reconnectMax:     DefaultReconnectMax,
	}
}

// Connect opens a new session on src and registers it. opts are applied
// after the registry's own.
func (r *Registry) Connect(ctx context.Context, src gateway.Source, opts ...Option) (*Session, error) {
	return r.connect(ctx, src, nil, opts)
}

func (r *Registry) connect(ctx context.Context, src gateway.Source, c Consumer, opts []Option) (*Session, error) {
	all := make([]Option, 0, len(r.opts)+len(opts))
	all = append(all, r.opts...)
	all = append(all, opts...)
	s := New(r.gw, all...)
	if c != nil {
		s.SetConsumer(c)
	}
	if err := s.Connect(ctx, src); err != nil {
		return nil, err
	}

	h := s.Handle()
	r.mu.Lock()
	if _, ok := r.sessions[h]; ok {
		r.mu.Unlock()
		// The handle is in use by the registered session; leave it open.
		s.detach()
		return nil, fmt.Errorf("%w: %d", ErrDuplicateHandle, h)
	}
	r.sessions[h] = s
	r.mu.Unlock()
	return s, nil
}

func (r *Registry) Get(h gateway.Handle) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSession, h)
	}
	return s, nil
}

// Handles lists the registered cameras in ascending order.
func (r *Registry) Handles() []gateway.Handle {
	r.mu.Lock()
	handles := make([]gateway.Handle, 0, len(r.sessions))
	for h := range r.sessions {
		handles = append(handles, h)
	}
	r.mu.Unlock()
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}

// Disconnect releases the camera h and forgets its session.
func (r *Registry) Disconnect(h gateway.Handle) error {
	r.mu.Lock()
	s, ok := r.sessions[h]
	delete(r.sessions, h)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSession, h)
	}
	return s.Close()
}

// Close disconnects every registered session concurrently and returns the
// first error.
func (r *Registry) Close() error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[gateway.Handle]*Session)
	r.mu.Unlock()

	var g errgroup.Group
	for _, s := range sessions {
		g.Go(s.Close)
	}
	return g.Wait()
}
