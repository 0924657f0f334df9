// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package pslr

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dswarbrick/pslr/pentax"
	"github.com/dswarbrick/pslr/utils"
)

// FileExtension returns the file name extension for images saved in the given file format.
func FileExtension(format string) string {
	switch format {
	case FormatPEF:
		return "pef"
	case FormatDNG:
		return "dng"
	}
	return "jpg"
}

// bufferKind returns the buffer representation matching the file format. The caller holds s.mu.
func (s *Session) bufferKind(format string) pentax.BufferKind {
	switch format {
	case FormatPEF:
		return pentax.BufferPEF
	case FormatDNG:
		return pentax.BufferDNG
	}
	return pentax.JPEGBufferKind(int(s.status.JpegQuality), s.model.MaxJpegStars)
}

// Shoot releases the shutter, downloads the captured image into the destination directory and
// returns its path. If the destination is DestinationComputer the image is deleted from the
// camera afterwards. On failure the returned path is empty.
func (s *Session) Shoot() (string, error) {
	if !s.downloading.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer s.downloading.Store(false)

	s.mu.Lock()
	err := s.do(pentax.ReqShutter())
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("shutter release failed", "err", err)
		return "", fmt.Errorf("shutter: %w", err)
	}

	if err := s.UpdateValues(); err != nil {
		return "", err
	}

	s.mu.Lock()
	format := s.stringValues[FileFormat]
	index := s.status.FirstBuffer()
	kind := s.bufferKind(format)
	resolution := int(s.status.JpegResolution)
	destination := s.destination
	s.mu.Unlock()

	path := s.Filename(FileExtension(format))

	n, err := s.SaveBuffer(index, kind, resolution, path)
	if err != nil {
		return "", err
	}

	s.logger.Info("image saved", "file", path, "buffer", index, "kind", kind.String(),
		"size", utils.FormatBytes(uint64(n)))

	if destination == DestinationComputer {
		if err := s.DeleteBuffer(index); err != nil {
			s.logger.Warn("image left on camera", "buffer", index, "err", err)
		}
	}

	return path, nil
}

// SaveBuffer downloads buffer index to the file at path and returns the number of bytes written.
// Opening the buffer is retried while the camera is still writing the image. The file is removed
// if the download fails.
func (s *Session) SaveBuffer(index int, kind pentax.BufferKind, resolution int, path string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	n, err := s.download(index, kind, resolution, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("download buffer %d: %w", index, err)
	}

	return n, nil
}

// download runs open, drain and close until one attempt succeeds. Only a failed open is retried;
// once data has been written to w any error is final.
func (s *Session) download(index int, kind pentax.BufferKind, resolution int, w io.Writer) (int64, error) {
	var written int64

	err := retry(s.cfg.OpenRetries, s.cfg.OpenRetryInterval, func() error {
		s.mu.Lock()
		if !s.connected || s.ctrl == nil {
			s.mu.Unlock()
			return permanent(ErrNotConnected)
		}
		err := s.ctrl.OpenBuffer(index, kind, resolution)
		s.noteResult(err)
		s.mu.Unlock()

		if err != nil {
			s.logger.Debug("buffer not ready", "buffer", index, "err", err)
			return err
		}

		n, err := s.drain(w)

		s.mu.Lock()
		if s.ctrl != nil {
			if cerr := s.ctrl.CloseBuffer(); err == nil {
				err = cerr
			}
		}
		s.mu.Unlock()

		if err != nil {
			return permanent(err)
		}

		written = n
		return nil
	})

	return written, err
}

// drain copies the open buffer to w chunk by chunk until the camera returns an empty chunk. The
// lock is taken per chunk so foreground calls are not starved by a long download.
func (s *Session) drain(w io.Writer) (int64, error) {
	var total int64
	chunk := make([]byte, pentax.BLOCK_SIZE)

	for {
		s.mu.Lock()
		if s.ctrl == nil {
			s.mu.Unlock()
			return total, ErrNotConnected
		}
		n, err := s.ctrl.ReadBuffer(chunk)
		s.noteResult(err)
		s.mu.Unlock()

		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}

		if _, err := w.Write(chunk[:n]); err != nil {
			return total, err
		}
		total += int64(n)
	}
}

// DeleteBuffer deletes image buffer index on the camera and waits until the status no longer
// reports it occupied. ErrBufferNotCleared is returned if the bit stays set.
func (s *Session) DeleteBuffer(index int) error {
	err := retry(s.cfg.DeleteRetries, s.cfg.DeleteRetryInterval, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if !s.connected || s.ctrl == nil {
			return permanent(ErrNotConnected)
		}

		err := s.ctrl.DeleteBuffer(index)
		s.noteResult(err)
		if errors.Is(err, pentax.ErrInvalidBuffer) {
			return permanent(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("delete buffer %d: %w", index, err)
	}

	err = retry(s.cfg.DeleteRetries, s.cfg.DeleteRetryInterval, func() error {
		if err := s.UpdateValues(); err != nil {
			if errors.Is(err, ErrNotConnected) {
				return permanent(err)
			}
			return err
		}

		if st, _ := s.Status(); st.BufMask&(1<<uint(index)) != 0 {
			return ErrBufferNotCleared
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete buffer %d: %w", index, err)
	}

	s.logger.Debug("buffer deleted", "buffer", index)

	return nil
}

// Filename returns the first path of the form <destination>/tc<N>.<ext> that does not exist yet.
// N increases monotonically for the lifetime of the session.
func (s *Session) Filename(ext string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		s.counter++
		name := filepath.Join(s.cfg.Destination, fmt.Sprintf("tc%d.%s", s.counter, ext))
		if _, err := os.Lstat(name); err != nil {
			return name
		}
	}
}
