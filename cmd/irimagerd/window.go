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
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/TheCacophonyProject/window"
)

const minWindowWait = time.Second

// runWindowed runs fn while w is active, cancelling it when the window
// closes. A nil window is always active.
func runWindowed(ctx context.Context, w *window.Window, active *atomic.Bool, fn func(context.Context) error) error {
	for {
		if w != nil && !w.Active() {
			active.Store(false)
			wait := w.Until()
			if wait < minWindowWait {
				wait = minWindowWait
			}
			log.Printf("outside acquisition window, waiting %v", wait.Round(time.Second))
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		active.Store(true)
		wctx, cancel := ctx, context.CancelFunc(func() {})
		if w != nil {
			wctx, cancel = context.WithTimeout(ctx, w.UntilEnd())
		}
		err := fn(wctx)
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && wctx.Err() == nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
