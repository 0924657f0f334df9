// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package pslr controls Pentax DSLR cameras tethered over USB.
//
// A Session owns the connection to one camera. It caches the last status read from the camera,
// queues parameter changes until they are applied and downloads captured images. A background
// poller can keep both directions in sync.
package pslr

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dswarbrick/pslr/cameradb"
	"github.com/dswarbrick/pslr/pentax"
	"github.com/dswarbrick/pslr/scsi"
	"github.com/dswarbrick/pslr/stop"
)

const (
	DEFAULT_POLL_INTERVAL = 2500 * time.Millisecond

	DEFAULT_OPEN_RETRY_INTERVAL = 10 * time.Millisecond
	DEFAULT_OPEN_RETRIES        = 1000

	DEFAULT_DELETE_RETRY_INTERVAL = 100 * time.Millisecond
	DEFAULT_DELETE_RETRIES        = 5

	DEFAULT_CONNECT_RETRIES        = 3
	DEFAULT_CONNECT_RETRY_INTERVAL = 500 * time.Millisecond

	// Consecutive device errors on status polls before the camera is considered gone
	DEFAULT_DISCONNECT_AFTER = 3
)

// Config holds the tunables of a Session. Zero values select the defaults.
type Config struct {
	Device              string
	Destination         string
	PollInterval        time.Duration
	OpenRetryInterval   time.Duration
	OpenRetries         int
	DeleteRetryInterval time.Duration
	DeleteRetries       int
	ConnectRetries      int
	DisconnectAfter     int
	CameraDb            *cameradb.CameraDb
	Logger              *slog.Logger
}

func (c *Config) setDefaults() {
	if c.Destination == "" {
		c.Destination = "."
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DEFAULT_POLL_INTERVAL
	}
	if c.OpenRetryInterval <= 0 {
		c.OpenRetryInterval = DEFAULT_OPEN_RETRY_INTERVAL
	}
	if c.OpenRetries <= 0 {
		c.OpenRetries = DEFAULT_OPEN_RETRIES
	}
	if c.DeleteRetryInterval <= 0 {
		c.DeleteRetryInterval = DEFAULT_DELETE_RETRY_INTERVAL
	}
	if c.DeleteRetries <= 0 {
		c.DeleteRetries = DEFAULT_DELETE_RETRIES
	}
	if c.ConnectRetries <= 0 {
		c.ConnectRetries = DEFAULT_CONNECT_RETRIES
	}
	if c.DisconnectAfter <= 0 {
		c.DisconnectAfter = DEFAULT_DISCONNECT_AFTER
	}
	if c.CameraDb == nil {
		db := cameradb.Default()
		c.CameraDb = &db
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Controller is the camera command interface a Session drives. *pentax.Conn implements it.
type Controller interface {
	Do(req pentax.Request) ([]byte, error)
	Status() (pentax.Status, error)
	OpenBuffer(index int, kind pentax.BufferKind, resolution int) error
	ReadBuffer(p []byte) (int, error)
	CloseBuffer() error
	DeleteBuffer(index int) error
	Disconnect() error
	Close() error
}

// Session is a connection to one camera. All methods are safe for concurrent use.
type Session struct {
	cfg    Config
	logger *slog.Logger
	model  cameradb.Model

	mu             sync.Mutex
	ctrl           Controller
	connected      bool
	status         pentax.Status
	hasStatus      bool
	flags          ExposureFlags
	lastMode       uint32
	stopValues     map[Parameter]stop.Stop
	stringValues   map[Parameter]string
	pendingStops   map[Parameter]stop.Stop
	pendingStrings map[Parameter]string
	sendingStops   map[Parameter]stop.Stop
	sendingStrings map[Parameter]string
	destination    string
	counter        int
	newBuffers     uint16
	deviceErrors   int

	downloading atomic.Bool
	poller      *poller
}

// Open opens the camera device named in cfg, performs the connect handshake and returns a
// Session with a fresh status.
func Open(cfg Config) (*Session, error) {
	cfg.setDefaults()

	dev, err := scsi.OpenSG(cfg.Device)
	if err != nil {
		return nil, err
	}

	conn := pentax.NewConn(dev, cfg.Logger)

	if err := retry(cfg.ConnectRetries, DEFAULT_CONNECT_RETRY_INTERVAL, conn.Connect); err != nil {
		dev.Close()
		return nil, fmt.Errorf("connect %s: %w", cfg.Device, err)
	}

	model, known := cfg.CameraDb.LookupModel(conn.ID())
	if !known {
		cfg.Logger.Warn("unknown camera model, using defaults", "id", fmt.Sprintf("%#x", conn.ID()))
	}

	layout, err := pentax.LookupLayout(model.StatusLayout, conn.Layout().Order == binary.LittleEndian)
	if err != nil {
		dev.Close()
		return nil, err
	}
	conn.SetLayout(layout)

	return NewSession(conn, model, cfg)
}

// NewSession wraps an already connected controller and reads the initial status.
func NewSession(ctrl Controller, model cameradb.Model, cfg Config) (*Session, error) {
	cfg.setDefaults()

	s := &Session{
		cfg:            cfg,
		logger:         cfg.Logger,
		model:          model,
		ctrl:           ctrl,
		connected:      true,
		stopValues:     make(map[Parameter]stop.Stop),
		stringValues:   make(map[Parameter]string),
		pendingStops:   make(map[Parameter]stop.Stop),
		pendingStrings: make(map[Parameter]string),
		sendingStops:   make(map[Parameter]stop.Stop),
		sendingStrings: make(map[Parameter]string),
		destination:    DestinationComputer,
	}

	if err := s.UpdateValues(); err != nil {
		return nil, err
	}

	s.logger.Info("camera connected", "model", model.Name, "id", fmt.Sprintf("%#x", model.ID))

	return s, nil
}

// Model returns the capabilities of the connected camera.
func (s *Session) Model() cameradb.Model {
	return s.model
}

// Connected reports whether the camera is still considered reachable.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Status returns the last status snapshot and whether one has been read.
func (s *Session) Status() (pentax.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.hasStatus
}

// Flags returns the current exposure axis flags.
func (s *Session) Flags() ExposureFlags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags
}

// Disconnect stops polling, releases the camera from remote mode and closes the device.
func (s *Session) Disconnect() error {
	s.StopPolling()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctrl == nil {
		return nil
	}

	var err error
	if s.connected {
		err = s.ctrl.Disconnect()
	}
	if cerr := s.ctrl.Close(); err == nil {
		err = cerr
	}

	s.connected = false
	s.ctrl = nil
	s.logger.Info("camera disconnected", "model", s.model.Name)

	return err
}

// do executes one request. The caller holds s.mu.
func (s *Session) do(req pentax.Request) error {
	if !s.connected || s.ctrl == nil {
		return ErrNotConnected
	}

	_, err := s.ctrl.Do(req)
	s.noteResult(err)

	return err
}

// noteResult tracks consecutive device errors. The caller holds s.mu.
func (s *Session) noteResult(err error) {
	if err == nil || !pentax.IsDeviceError(err) {
		s.deviceErrors = 0
		return
	}

	s.deviceErrors++
	if s.deviceErrors >= s.cfg.DisconnectAfter && s.connected {
		s.connected = false
		s.logger.Warn("camera unreachable, considering it disconnected", "errors", s.deviceErrors, "err", err)
	}
}

// Focus triggers autofocus.
func (s *Session) Focus() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.do(pentax.ReqFocus())
}

// GreenButton emulates the green button, resetting the active exposure mode to program values.
func (s *Session) GreenButton() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.do(pentax.ReqGreenButton())
}

// AELock locks or unlocks the light meter. Nothing is sent if the meter is already in the
// requested state.
func (s *Session) AELock(lock bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasStatus && s.status.Has(pentax.StLightMeterFlags) && s.status.AELocked() == lock {
		return nil
	}

	return s.do(pentax.ReqAELock(lock))
}
