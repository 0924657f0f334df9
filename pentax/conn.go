// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package pentax

import (
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/dswarbrick/pslr/scsi"
)

const (
	// Interval between command completion polls
	DEFAULT_POLL_INTERVAL = 10 * time.Millisecond
	// Completion polls before a command is considered hung
	DEFAULT_MAX_POLLS = 500

	MAX_SEGMENTS = 4

	segmentInfoLen = 16
	segmentLast    = 2
)

type segment struct {
	addr   uint32
	length uint32
}

type openBuffer struct {
	index    int
	kind     BufferKind
	segments []segment
	seg      int    // current segment
	offset   uint32 // offset within current segment
}

// Conn executes Pentax vendor commands over a SCSI device. A Conn is not safe for concurrent
// use; callers serialize access.
type Conn struct {
	dev    scsi.Device
	layout Layout
	logger *slog.Logger

	PollInterval time.Duration
	MaxPolls     int

	id  uint32
	buf *openBuffer
}

// NewConn wraps an open device. The status layout defaults to K10D until the camera model is
// known.
func NewConn(dev scsi.Device, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}

	return &Conn{
		dev:          dev,
		layout:       LayoutK10D,
		logger:       logger,
		PollInterval: DEFAULT_POLL_INTERVAL,
		MaxPolls:     DEFAULT_MAX_POLLS,
	}
}

// SetLayout selects the status block layout and byte order of the connected model.
func (c *Conn) SetLayout(l Layout) {
	c.layout = l
}

func (c *Conn) Layout() Layout {
	return c.layout
}

func (c *Conn) order() binary.ByteOrder {
	if c.layout.Order == nil {
		return binary.BigEndian
	}
	return c.layout.Order
}

// ID returns the model id reported by the last Identify.
func (c *Conn) ID() uint32 {
	return c.id
}

func (c *Conn) Close() error {
	return c.dev.Close()
}

// Do executes a single request and returns its result block, if the request produces one.
func (c *Conn) Do(req Request) ([]byte, error) {
	return c.do(req, 0)
}

func (c *Conn) do(req Request, readLen int) ([]byte, error) {
	c.logger.Debug("pentax command", "req", req.String())

	if len(req.Args) > 0 {
		cdb := WriteArgsCDB(len(req.Args))
		if _, err := c.dev.Transfer(cdb[:], scsi.DirToDevice, EncodeArgs(req.Args, c.order())); err != nil {
			return nil, translate(req.Op, err)
		}
	}

	cdb := CommandCDB(req.Group, req.Code, len(req.Args))
	if _, err := c.dev.Transfer(cdb[:], scsi.DirNone, nil); err != nil {
		return nil, translate(req.Op, err)
	}

	st, err := c.waitReady(req.Op)
	if err != nil {
		return nil, err
	}

	if !req.WantResult && readLen == 0 {
		return nil, nil
	}

	n := int(st.ResultLen)
	if readLen > 0 {
		n = readLen
	}

	return c.readResult(req.Op, n)
}

// waitReady polls command completion until the camera is no longer busy.
func (c *Conn) waitReady(op string) (CommandStatus, error) {
	var st CommandStatus

	poll := func() error {
		buf := make([]byte, STATUS_LEN)
		cdb := StatusCDB()

		n, err := c.dev.Transfer(cdb[:], scsi.DirFromDevice, buf)
		if err != nil {
			return backoff.Permanent(translate(op, err))
		}

		st, err = DecodeCommandStatus(buf[:n])
		if err != nil {
			return backoff.Permanent(&ProtocolError{Op: op, Err: err})
		}

		if st.Busy() {
			return ErrStillBusy
		}

		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.PollInterval), uint64(c.MaxPolls))
	if err := backoff.Retry(poll, b); err != nil {
		if errors.Is(err, ErrStillBusy) {
			return st, &ProtocolError{Op: op, Code: st.Code, Err: err}
		}
		return st, err
	}

	if st.Code != 0 {
		return st, &ProtocolError{Op: op, Code: st.Code}
	}

	return st, nil
}

func (c *Conn) readResult(op string, n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}

	buf := make([]byte, n)
	cdb := ReadResultCDB(n)

	got, err := c.dev.Transfer(cdb[:], scsi.DirFromDevice, buf)
	if err != nil {
		return nil, translate(op, err)
	}

	return buf[:got], nil
}

// Identify queries the model id. The byte order of the reply reveals the byte order the camera
// uses for all other values: big-endian ids always start with a zero byte.
func (c *Conn) Identify() (uint32, error) {
	res, err := c.Do(ReqIdentify())
	if err != nil {
		return 0, err
	}
	if len(res) < 4 {
		return 0, &ProtocolError{Op: "identify", Err: errors.New("short reply")}
	}

	if res[0] == 0 {
		c.id = binary.BigEndian.Uint32(res)
		c.layout.Order = binary.BigEndian
	} else {
		c.id = binary.LittleEndian.Uint32(res)
		c.layout.Order = binary.LittleEndian
	}

	return c.id, nil
}

// Connect switches the camera into remote control mode. Bodies that do not know the connect
// command refuse it, which is not an error.
func (c *Conn) Connect() error {
	if _, err := c.Do(ReqSetMode(1)); err != nil {
		return err
	}

	if _, err := c.Identify(); err != nil {
		return err
	}

	if _, err := c.Do(ReqConnect(true)); err != nil {
		if !IsProtocolError(err) {
			return err
		}
		c.logger.Debug("connect command refused", "err", err)
	}

	return nil
}

// Disconnect returns the camera to normal operation.
func (c *Conn) Disconnect() error {
	if _, err := c.Do(ReqConnect(false)); err != nil && !IsProtocolError(err) {
		return err
	}

	_, err := c.Do(ReqSetMode(0))
	return err
}

// Status reads and decodes the full status block.
func (c *Conn) Status() (Status, error) {
	res, err := c.Do(ReqStatusFull())
	if err != nil {
		return Status{}, err
	}

	return DecodeStatus(res, c.layout), nil
}

func (c *Conn) DeleteBuffer(index int) error {
	if index < 0 || index >= MAX_BUFFERS {
		return ErrInvalidBuffer
	}
	_, err := c.Do(ReqDeleteBuffer(index))
	return err
}

// OpenBuffer selects an image buffer for download and collects its segment list. Every
// successful OpenBuffer must be paired with CloseBuffer.
func (c *Conn) OpenBuffer(index int, kind BufferKind, resolution int) error {
	if c.buf != nil {
		return ErrBufferOpen
	}
	if index < 0 || index >= MAX_BUFFERS {
		return ErrInvalidBuffer
	}

	if _, err := c.Do(ReqSelectBuffer(index, kind, resolution)); err != nil {
		return err
	}

	ob := &openBuffer{index: index, kind: kind}

	for len(ob.segments) < MAX_SEGMENTS {
		res, err := c.Do(ReqSegmentInfo())
		if err != nil {
			return err
		}
		if len(res) < segmentInfoLen {
			return &ProtocolError{Op: "segment info", Err: errors.New("short reply")}
		}

		order := c.order()
		last := order.Uint32(res[4:]) == segmentLast
		seg := segment{addr: order.Uint32(res[8:]), length: order.Uint32(res[12:])}

		if seg.length > 0 {
			ob.segments = append(ob.segments, seg)
		}
		if last {
			break
		}

		if _, err := c.Do(ReqNextSegment()); err != nil {
			return err
		}
	}

	c.buf = ob
	c.logger.Debug("buffer opened", "index", index, "kind", kind.String(), "size", ob.size())

	return nil
}

func (ob *openBuffer) size() uint32 {
	var total uint32
	for _, s := range ob.segments {
		total += s.length
	}
	return total
}

// BufferSize returns the total size in bytes of the open buffer.
func (c *Conn) BufferSize() (uint32, error) {
	if c.buf == nil {
		return 0, ErrBufferNotOpen
	}
	return c.buf.size(), nil
}

// ReadBuffer downloads the next chunk of the open buffer into p, at most BLOCK_SIZE bytes. It
// returns 0 once the buffer is exhausted.
func (c *Conn) ReadBuffer(p []byte) (int, error) {
	ob := c.buf
	if ob == nil {
		return 0, ErrBufferNotOpen
	}

	for ob.seg < len(ob.segments) && ob.offset >= ob.segments[ob.seg].length {
		ob.seg++
		ob.offset = 0
	}
	if ob.seg >= len(ob.segments) || len(p) == 0 {
		return 0, nil
	}

	s := ob.segments[ob.seg]
	n := s.length - ob.offset
	if n > BLOCK_SIZE {
		n = BLOCK_SIZE
	}
	if n > uint32(len(p)) {
		n = uint32(len(p))
	}

	res, err := c.do(ReqDownload(s.addr+ob.offset, n), int(n))
	if err != nil {
		return 0, err
	}

	if len(res) == 0 {
		return 0, &ProtocolError{Op: "download", Err: errors.New("empty reply")}
	}

	copied := copy(p, res)
	ob.offset += uint32(copied)

	return copied, nil
}

// CloseBuffer releases the open buffer.
func (c *Conn) CloseBuffer() error {
	if c.buf == nil {
		return ErrBufferNotOpen
	}
	c.buf = nil
	return nil
}
