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
	"time"

	"gopkg.in/tomb.v2"

	"github.com/TheCacophonyProject/irimager/frame"
	"github.com/TheCacophonyProject/irimager/gateway"
	"github.com/TheCacophonyProject/irimager/loglimiter"
	"github.com/TheCacophonyProject/irimager/throttle"
)

// failurePause is how long the loop waits before fetching again after a
// tolerated failure.
const failurePause = 50 * time.Millisecond

// loop fetches frames from one camera and hands them to the session's
// consumer. Fetching and delivery run in separate goroutines joined by a
// one frame mailbox: when the consumer falls behind, the waiting frame is
// replaced by the newer one. Errors have their own mailbox; both carry the
// fetch sequence so a frame and an error waiting together are delivered in
// the order they were fetched.
type loop struct {
	s          *Session
	conn       connection
	concurrent bool
	throttle   *throttle.Throttle
	limiter    *loglimiter.LogLimiter

	t         tomb.Tomb
	frames    chan queuedFrame
	errs      chan queuedErr
	fetchDone chan struct{}

	// seq numbers mailbox entries; only the fetch goroutine touches it.
	seq uint64
}

type queuedFrame struct {
	seq uint64
	f   *frame.Frame
}

type queuedErr struct {
	seq uint64
	err error
}

func newLoop(s *Session, conn connection) *loop {
	l := &loop{
		s:          s,
		conn:       conn,
		concurrent: gateway.ConcurrentFetch(s.gw),
		frames:     make(chan queuedFrame, 1),
		errs:       make(chan queuedErr, 1),
		fetchDone:  make(chan struct{}),
	}
	l.limiter = loglimiter.NewWithOutput(s.opts.logInterval, func(msg string) {
		s.logf("%s", msg)
	})
	if s.opts.throttleConf != nil {
		l.throttle = throttle.New(s.opts.throttleConf, s.opts.throttleEvents)
	}
	return l
}

func (l *loop) start() {
	l.t.Go(func() error {
		l.t.Go(l.dispatch)
		return l.fetch()
	})
}

// stop asks the loop to exit and waits up to timeout for it to do so.
func (l *loop) stop(timeout time.Duration) bool {
	l.t.Kill(nil)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-l.t.Dead():
		return true
	case <-timer.C:
		return false
	}
}

func (l *loop) fetch() error {
	defer close(l.fetchDone)
	ctx := l.t.Context(nil)
	h := l.conn.handle
	failures := 0

	for {
		select {
		case <-l.t.Dying():
			return nil
		default:
		}

		f, err := l.next(ctx)
		if !l.t.Alive() {
			// Stopping; whatever came back is discarded.
			return nil
		}
		if err != nil {
			l.s.stats.fetchErrors.Add(1)
			failures++
			aerr := newDeviceError("FetchThermalPalette", ErrAcquisition, err)
			if l.s.opts.policy == StopOnError || (l.s.opts.maxFailures > 0 && failures >= l.s.opts.maxFailures) {
				l.s.logf("camera %d: acquisition stopped after %d failed fetches: %v", h, failures, aerr)
				l.s.markFailed(aerr)
				l.report(aerr)
				return nil
			}
			l.limiter.Printf("camera %d: %v", h, aerr)
			l.report(aerr)
			select {
			case <-l.t.Dying():
				return nil
			case <-time.After(failurePause):
			}
			continue
		}
		failures = 0
		l.s.stats.fetched.Add(1)

		if l.throttle != nil && !l.throttle.Allow() {
			l.s.stats.throttled.Add(1)
			continue
		}
		l.s.setLatest(f)
		l.publish(f)
	}
}

// next reads one frame pair into freshly allocated buffers, so published
// frames are never written to again.
func (l *loop) next(ctx context.Context) (*frame.Frame, error) {
	f := &frame.Frame{
		Thermal: frame.NewThermalFrame(l.conn.thermalW, l.conn.thermalH),
		Palette: frame.NewPaletteFrame(l.conn.paletteW, l.conn.paletteH),
	}
	if !l.concurrent {
		if err := l.s.lock.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer l.s.lock.Release(1)
	}
	md, err := l.s.gw.FetchThermalPalette(ctx, l.conn.handle, f.Thermal.Pix, f.Palette.Pix)
	if err != nil {
		return nil, err
	}
	if md.Captured.IsZero() {
		md.Captured = time.Now()
	}
	f.Metadata = md
	return f, nil
}

// publish puts f in the mailbox, displacing a frame the consumer has not
// taken yet.
func (l *loop) publish(f *frame.Frame) {
	l.seq++
	q := queuedFrame{seq: l.seq, f: f}
	for {
		select {
		case l.frames <- q:
			return
		default:
		}
		select {
		case <-l.frames:
			l.s.stats.dropped.Add(1)
		default:
		}
	}
}

func (l *loop) report(err error) {
	l.seq++
	q := queuedErr{seq: l.seq, err: err}
	for {
		select {
		case l.errs <- q:
			return
		default:
		}
		select {
		case <-l.errs:
		default:
		}
	}
}

func (l *loop) dispatch() error {
	for {
		select {
		case qf := <-l.frames:
			l.deliverInOrder(&qf, l.pendingErr())
		case qe := <-l.errs:
			l.deliverInOrder(l.pendingFrame(), &qe)
		case <-l.fetchDone:
			// Fetching stopped by itself. Hand over what it left behind.
			l.deliverInOrder(l.pendingFrame(), l.pendingErr())
			return nil
		case <-l.t.Dying():
			return nil
		}
	}
}

func (l *loop) pendingFrame() *queuedFrame {
	select {
	case qf := <-l.frames:
		return &qf
	default:
		return nil
	}
}

func (l *loop) pendingErr() *queuedErr {
	select {
	case qe := <-l.errs:
		return &qe
	default:
		return nil
	}
}

// deliverInOrder hands over qf and qe, either of which may be nil, oldest
// first.
func (l *loop) deliverInOrder(qf *queuedFrame, qe *queuedErr) {
	if qe != nil && (qf == nil || qe.seq < qf.seq) {
		l.deliverErr(qe.err)
		qe = nil
	}
	if qf != nil {
		l.deliver(qf.f)
	}
	if qe != nil {
		l.deliverErr(qe.err)
	}
}

func (l *loop) deliver(f *frame.Frame) {
	if !l.t.Alive() {
		return
	}
	c := l.s.currentConsumer()
	if c == nil {
		return
	}
	c.OnFrame(f)
	l.s.stats.delivered.Add(1)
}

func (l *loop) deliverErr(err error) {
	if !l.t.Alive() {
		return
	}
	if c := l.s.currentConsumer(); c != nil {
		c.OnError(err)
	}
}
