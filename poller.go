// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package pslr

import (
	"context"
	"time"
)

type poller struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartPolling starts a background goroutine that applies queued changes and refreshes the
// status every interval. A non-positive interval selects the configured poll interval. Calling
// StartPolling while polling restarts the poller with the new interval.
func (s *Session) StartPolling(interval time.Duration) {
	if interval <= 0 {
		interval = s.cfg.PollInterval
	}

	s.StopPolling()

	ctx, cancel := context.WithCancel(context.Background())
	p := &poller{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.poller = p
	s.mu.Unlock()

	go s.poll(ctx, p.done, interval)

	s.logger.Debug("polling started", "interval", interval)
}

// StopPolling stops the background poller and waits for an iteration in progress to finish.
// It is safe to call when not polling.
func (s *Session) StopPolling() {
	s.mu.Lock()
	p := s.poller
	s.poller = nil
	s.mu.Unlock()

	if p == nil {
		return
	}

	p.cancel()
	<-p.done

	s.logger.Debug("polling stopped")
}

func (s *Session) poll(ctx context.Context, done chan<- struct{}, interval time.Duration) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !s.pollOnce() {
			s.logger.Warn("polling stopped, camera disconnected")
			return
		}
	}
}

// pollOnce runs one poll cycle and reports whether the camera is still connected. A cycle is
// skipped while an image is downloading.
func (s *Session) pollOnce() bool {
	if s.downloading.Load() {
		s.logger.Debug("download in progress, skipping poll")
		return true
	}

	if err := s.ApplyChanges(); err != nil {
		s.logger.Warn("applying changes failed", "err", err)
	}

	if err := s.UpdateValues(); err != nil {
		s.logger.Warn("status poll failed", "err", err)
	}

	return s.Connected()
}
