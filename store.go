// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package pslr

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dswarbrick/pslr/pentax"
	"github.com/dswarbrick/pslr/stop"
)

// Unknown is returned by StringValue and StringOption when no value is available.
const Unknown = "?"

// Options returns the option table of an enumerated parameter. Quality and resolution tables
// depend on the camera model.
func (s *Session) Options(p Parameter) []string {
	switch p {
	case JpegQuality:
		opts := make([]string, s.model.MaxJpegStars)
		for i := range opts {
			opts[i] = strings.Repeat("*", i+1)
		}
		return opts
	case JpegResolution:
		opts := make([]string, len(s.model.JpegResolutions))
		for i, mp := range s.model.JpegResolutions {
			opts[i] = fmt.Sprintf("%dM", mp)
		}
		return opts
	}

	if !p.valid() {
		return nil
	}
	return descriptors[p].options
}

// optionIndex returns the index of the first option matching v, ignoring case.
func optionIndex(opts []string, v string) int {
	if v == Unknown {
		return -1
	}
	for i, o := range opts {
		if strings.EqualFold(o, v) {
			return i
		}
	}
	return -1
}

// statusValue returns an integer status field.
func statusValue(st *pentax.Status, f pentax.StatusField) (uint32, bool) {
	if !st.Has(f) {
		return 0, false
	}

	switch f {
	case pentax.StExposureMode:
		return st.ExposureMode, true
	case pentax.StDriveMode:
		return st.DriveMode, true
	case pentax.StAFMode:
		return st.AFMode, true
	case pentax.StAFPointSelect:
		return st.AFPointSelect, true
	case pentax.StMeteringMode:
		return st.MeteringMode, true
	case pentax.StFlashMode:
		return st.FlashMode, true
	case pentax.StColorSpace:
		return st.ColorSpace, true
	case pentax.StWhiteBalance:
		return st.WhiteBalance, true
	case pentax.StJpegImageTone:
		return st.JpegImageTone, true
	case pentax.StJpegQuality:
		return st.JpegQuality, true
	case pentax.StJpegResolution:
		return st.JpegResolution, true
	case pentax.StJpegSharpness:
		return st.JpegSharpness, true
	case pentax.StJpegContrast:
		return st.JpegContrast, true
	case pentax.StJpegSaturation:
		return st.JpegSaturation, true
	case pentax.StJpegHue:
		return st.JpegHue, true
	case pentax.StImageFormat:
		return st.ImageFormat, true
	case pentax.StRawFormat:
		return st.RawFormat, true
	}

	return 0, false
}

// decodeStop converts the status field behind a numeric parameter. The caller holds s.mu.
func (s *Session) decodeStop(p Parameter, st *pentax.Status) stop.Stop {
	if p.AutoCapable() && s.flags.get(p) {
		return stop.Auto
	}

	rational := func(set, current pentax.StatusField, setVal, curVal stop.Rational) (stop.Rational, bool) {
		if st.Has(set) && setVal.Valid() {
			return setVal, true
		}
		if st.Has(current) && curVal.Valid() {
			return curVal, true
		}
		return stop.Rational{}, false
	}

	switch p {
	case Aperture:
		r, ok := rational(pentax.StSetAperture, pentax.StCurrentAperture, st.SetAperture, st.CurrentAperture)
		if !ok {
			return stop.Unknown
		}
		return stop.FromApertureRational(r).Quantize(st.EVStep())

	case Shutter:
		r, ok := rational(pentax.StSetShutter, pentax.StCurrentShutter, st.SetShutter, st.CurrentShutter)
		if !ok {
			return stop.Unknown
		}
		return stop.FromShutterRational(r).Quantize(st.EVStep())

	case ISO:
		if !st.Has(pentax.StFixedISO) {
			return stop.Unknown
		}
		return stop.FromISO(int(st.FixedISO)).Quantize(st.ISOStep())

	case ExposureCompensation:
		if !st.Has(pentax.StExposureCompensation) {
			return stop.Unknown
		}
		return stop.FromExposureCompensationRational(st.ExposureCompensation).Quantize(st.EVStep())

	case FlashExposureCompensation:
		if !st.Has(pentax.StFlashEC) {
			return stop.Unknown
		}
		return stop.FromExposureCompensationRational(st.FlashEC).Quantize(st.EVStep())
	}

	if p.isJpegAdjustment() {
		raw, ok := statusValue(st, descriptors[p].status)
		if !ok {
			return stop.Unknown
		}
		return stop.FromStops(int(raw) - s.model.JpegPropertyShift())
	}

	return stop.Unknown
}

// decodeString converts the status field behind an enumerated parameter. The caller holds s.mu.
func (s *Session) decodeString(p Parameter, st *pentax.Status) string {
	switch p {
	case FileDestination:
		return s.destination

	case FileFormat:
		format, ok := statusValue(st, pentax.StImageFormat)
		if !ok {
			return Unknown
		}
		if format == pentax.ImageFormatJPEG {
			return FormatJPEG
		}
		raw, ok := statusValue(st, pentax.StRawFormat)
		switch {
		case !ok:
			return Unknown
		case raw == pentax.RawFormatPEF:
			return FormatPEF
		case raw == pentax.RawFormatDNG:
			return FormatDNG
		}
		return Unknown

	case JpegQuality:
		stars, ok := statusValue(st, pentax.StJpegQuality)
		opts := s.Options(p)
		if !ok || stars < 1 || int(stars) > len(opts) {
			return Unknown
		}
		return opts[stars-1]
	}

	raw, ok := statusValue(st, descriptors[p].status)
	opts := s.Options(p)
	if !ok || int(raw) >= len(opts) {
		return Unknown
	}
	return opts[raw]
}

// UpdateValues reads the camera status and refreshes all cached parameter values.
func (s *Session) UpdateValues() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateValuesLocked()
}

func (s *Session) updateValuesLocked() error {
	if !s.connected || s.ctrl == nil {
		return ErrNotConnected
	}

	st, err := s.ctrl.Status()
	s.noteResult(err)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	if s.hasStatus {
		s.newBuffers |= (st.BufMask ^ s.status.BufMask) & st.BufMask
	}

	// The camera dial may have changed the mode behind our back
	if !s.hasStatus || st.ExposureMode != s.lastMode {
		isoAuto := st.Has(pentax.StFixedISO) && st.FixedISO == 0
		s.flags = flagsFromMode(st.ExposureMode, isoAuto)
		s.lastMode = st.ExposureMode
	}

	s.status = st
	s.hasStatus = true

	for _, p := range Parameters() {
		if p.Kind() == Numeric {
			s.stopValues[p] = s.decodeStop(p, &st)
		} else {
			s.stringValues[p] = s.decodeString(p, &st)
		}
	}

	return nil
}

// StopValue returns the cached value of a numeric parameter, stop.Auto for an axis under camera
// control or stop.Unknown if nothing is known.
func (s *Session) StopValue(p Parameter) stop.Stop {
	if p.Kind() != Numeric {
		return stop.Unknown
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.stopValues[p]; ok {
		return v
	}
	return stop.Unknown
}

// StringValue returns the cached value of an enumerated parameter or "?".
func (s *Session) StringValue(p Parameter) string {
	if !p.valid() || p.Kind() != Enumerated {
		return Unknown
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p == FileDestination {
		return s.destination
	}
	if v, ok := s.stringValues[p]; ok {
		return v
	}
	return Unknown
}

// step returns the grid numeric parameter p moves on. The caller holds s.mu.
func (s *Session) step(p Parameter) stop.EVStep {
	switch {
	case p == ISO:
		return s.status.ISOStep()
	case p.isJpegAdjustment():
		return stop.WholeStop
	}
	return s.status.EVStep()
}

// bounds returns the range of numeric parameter p. The caller holds s.mu.
func (s *Session) bounds(p Parameter) (stop.Stop, stop.Stop) {
	switch {
	case p == Aperture:
		if !s.status.Has(pentax.StLensMinAperture) || !s.status.Has(pentax.StLensMaxAperture) {
			return stop.Unknown, stop.Unknown
		}
		return stop.FromApertureRational(s.status.LensMinAperture),
			stop.FromApertureRational(s.status.LensMaxAperture)
	case p == Shutter:
		return s.model.FastestShutter(), stop.SlowestShutter
	case p == ISO:
		return s.model.ISORange()
	case p == ExposureCompensation || p == FlashExposureCompensation:
		return s.model.ECRange()
	case p.isJpegAdjustment():
		shift := s.model.JpegPropertyShift()
		return stop.FromStops(-shift), stop.FromStops(shift)
	}
	return stop.Unknown, stop.Unknown
}

// Minimum returns the lowest value numeric parameter p accepts, or stop.Unknown.
func (s *Session) Minimum(p Parameter) stop.Stop {
	if p.Kind() != Numeric {
		return stop.Unknown
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lo, _ := s.bounds(p)
	return lo
}

// Maximum returns the highest value numeric parameter p accepts, or stop.Unknown.
func (s *Session) Maximum(p Parameter) stop.Stop {
	if p.Kind() != Numeric {
		return stop.Unknown
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, hi := s.bounds(p)
	return hi
}

// StopCount returns the number of exposure steps between Minimum and Maximum. When a bound is
// off the step grid the option table may hold one more value, see StopOption.
func (s *Session) StopCount(p Parameter) int {
	if p.Kind() != Numeric {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lo, hi := s.bounds(p)
	return hi.Sub(lo).ExposureSteps(s.step(p))
}

// StopOption returns the value at index i of numeric parameter p's option table, or
// stop.Unknown for an index out of range. The table walks the step grid from the quantized
// Minimum up to and including the quantized Maximum. For auto-capable parameters index 0 is
// stop.Auto and the grid starts at index 1.
func (s *Session) StopOption(p Parameter, i int) stop.Stop {
	if p.Kind() != Numeric {
		return stop.Unknown
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.AutoCapable() {
		if i == 0 {
			return stop.Auto
		}
		i--
	}

	lo, hi := s.bounds(p)
	if !lo.IsValue() || !hi.IsValue() || i < 0 {
		return stop.Unknown
	}

	ev := s.step(p)
	lo, hi = lo.Quantize(ev), hi.Quantize(ev)
	if i > hi.Sub(lo).ExposureSteps(ev) {
		return stop.Unknown
	}

	return lo.Add(stop.FromSixthStops(i * int(ev)))
}

// StringOption returns entry i of enumerated parameter p's option table, or "?".
func (s *Session) StringOption(p Parameter, i int) string {
	opts := s.Options(p)
	if i < 0 || i >= len(opts) {
		return Unknown
	}
	return opts[i]
}

// SetStop queues a change of numeric parameter p. Setting the current value is a no-op.
// Switching an exposure axis between manual and auto changes the exposure mode on the camera
// immediately; the value itself is sent by the next ApplyChanges.
func (s *Session) SetStop(p Parameter, v stop.Stop) error {
	invalid := func(reason string) error {
		s.logger.Warn("dropping value", "parameter", p.String(), "value", v.String(), "reason", reason)
		return &ValidationError{Parameter: p.String(), Value: v.String(), Reason: reason}
	}

	switch {
	case !p.valid() || p.Kind() != Numeric:
		return invalid("not a numeric parameter")
	case v == stop.Unknown:
		return invalid("no value")
	case v == stop.Auto && !p.AutoCapable():
		return invalid("auto not supported")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v.IsValue() {
		v = v.Quantize(s.step(p))
		lo, hi := s.bounds(p)
		if lo.IsValue() && hi.IsValue() && (v < lo.Quantize(s.step(p)) || v > hi.Quantize(s.step(p))) {
			return invalid(fmt.Sprintf("outside %s..%s", FormatStop(p, lo), FormatStop(p, hi)))
		}
	}

	cur, ok := s.stopValues[p]
	if sending, inFlight := s.sendingStops[p]; inFlight {
		cur, ok = sending, true
	}
	if ok && cur == v {
		delete(s.pendingStops, p)
		s.logger.Debug("value unchanged", "parameter", p.String())
		return nil
	}

	if p.AutoCapable() {
		auto := v == stop.Auto
		if auto != s.flags.get(p) {
			if err := s.switchAxis(p, auto); err != nil {
				return err
			}
		}

		// Auto aperture and shutter have no value of their own; auto ISO is sent as ISO 0
		if auto && p != ISO {
			delete(s.pendingStops, p)
			s.stopValues[p] = stop.Auto
			return nil
		}
	}

	s.pendingStops[p] = v
	return nil
}

// switchAxis flips one exposure axis flag, and if that changes the exposure mode, pushes the
// new mode and refreshes the status. The caller holds s.mu.
func (s *Session) switchAxis(p Parameter, auto bool) error {
	old := s.flags
	s.flags.set(p, auto)

	mode := s.flags.Mode()
	if mode == s.lastMode {
		return nil
	}

	if err := s.do(pentax.ReqSetField(pentax.FieldExposureMode, s.wireExposureMode(mode))); err != nil {
		s.flags = old
		return fmt.Errorf("set exposure mode %s: %w", ExposureModeName(mode), err)
	}

	s.lastMode = mode
	s.logger.Info("exposure mode changed", "mode", ExposureModeName(mode))

	return s.updateValuesLocked()
}

func (s *Session) wireExposureMode(mode uint32) uint32 {
	if s.model.ExposureModeConversion {
		return pentax.ConvertExposureMode(mode)
	}
	return mode
}

// SetString queues a change of enumerated parameter p. The value must be one of the option
// strings. Setting the current value is a no-op.
func (s *Session) SetString(p Parameter, v string) error {
	invalid := func(reason string) error {
		s.logger.Warn("dropping value", "parameter", p.String(), "value", v, "reason", reason)
		return &ValidationError{Parameter: p.String(), Value: v, Reason: reason}
	}

	if !p.valid() || p.Kind() != Enumerated {
		return invalid("not an enumerated parameter")
	}

	opts := s.Options(p)
	idx := optionIndex(opts, v)
	if idx < 0 {
		return invalid("not a valid option")
	}
	v = opts[idx]

	s.mu.Lock()
	defer s.mu.Unlock()

	if p == FileDestination {
		s.destination = v
		s.stringValues[p] = v
		return nil
	}

	cur := s.stringValues[p]
	if sending, inFlight := s.sendingStrings[p]; inFlight {
		cur = sending
	}
	if cur == v {
		delete(s.pendingStrings, p)
		s.logger.Debug("value unchanged", "parameter", p.String())
		return nil
	}

	s.pendingStrings[p] = v
	return nil
}

// encodeStop builds the requests that set numeric parameter p. The caller holds s.mu.
func (s *Session) encodeStop(p Parameter, v stop.Stop) ([]pentax.Request, error) {
	d := descriptors[p]

	if p == ISO {
		var iso uint32
		if v != stop.Auto {
			iso = uint32(v.AsISO())
		}
		lo, hi := s.autoISORange()
		return []pentax.Request{pentax.ReqSetISO(iso, lo, hi)}, nil
	}

	if !v.IsValue() {
		return nil, &ValidationError{Parameter: p.String(), Value: v.String(), Reason: "not a value"}
	}

	switch p {
	case Aperture:
		return []pentax.Request{pentax.ReqSetRational(d.field, v.ApertureRational())}, nil
	case Shutter:
		return []pentax.Request{pentax.ReqSetRational(d.field, v.ShutterRational())}, nil
	case ExposureCompensation, FlashExposureCompensation:
		return []pentax.Request{pentax.ReqSetRational(d.field, v.ExposureCompensationRational())}, nil
	}

	level := v.ExposureSteps(stop.WholeStop) + s.model.JpegPropertyShift()
	return []pentax.Request{pentax.ReqSetField(d.field, uint32(level))}, nil
}

// autoISORange returns the bounds auto ISO may use. The caller holds s.mu.
func (s *Session) autoISORange() (uint32, uint32) {
	if s.status.AutoISOMin != 0 && s.status.AutoISOMax != 0 {
		return s.status.AutoISOMin, s.status.AutoISOMax
	}
	return uint32(s.model.BaseISOMin), uint32(s.model.BaseISOMax)
}

// encodeString builds the requests that set enumerated parameter p. The caller holds s.mu.
func (s *Session) encodeString(p Parameter, v string) ([]pentax.Request, error) {
	idx := optionIndex(s.Options(p), v)
	if idx < 0 {
		return nil, &ValidationError{Parameter: p.String(), Value: v, Reason: "not a valid option"}
	}

	switch p {
	case ExposureMode:
		mode := s.wireExposureMode(uint32(idx))
		return []pentax.Request{pentax.ReqSetField(pentax.FieldExposureMode, mode)}, nil

	case FileFormat:
		switch v {
		case FormatJPEG:
			return []pentax.Request{
				pentax.ReqSetField(pentax.FieldImageFormat, pentax.ImageFormatJPEG),
			}, nil
		case FormatDNG:
			return []pentax.Request{
				pentax.ReqSetField(pentax.FieldImageFormat, pentax.ImageFormatRAW),
				pentax.ReqSetField(pentax.FieldRawFormat, pentax.RawFormatDNG),
			}, nil
		}
		return []pentax.Request{
			pentax.ReqSetField(pentax.FieldImageFormat, pentax.ImageFormatRAW),
			pentax.ReqSetField(pentax.FieldRawFormat, pentax.RawFormatPEF),
		}, nil

	case JpegQuality:
		return []pentax.Request{pentax.ReqSetField(pentax.FieldJpegStars, uint32(idx+1))}, nil
	}

	return []pentax.Request{pentax.ReqSetField(descriptors[p].field, uint32(idx))}, nil
}

// ApplyChanges sends all queued changes to the camera: enumerated parameters first, then
// numeric ones. Changes queued while ApplyChanges runs are left for the next call. Each change
// is sent under the session lock on its own, so foreground calls interleave with a long apply.
func (s *Session) ApplyChanges() error {
	return s.sendChanges(s.takeChanges())
}

// changeSet is a snapshot of queued changes.
type changeSet struct {
	strings map[Parameter]string
	stops   map[Parameter]stop.Stop
}

// takeChanges empties the queue and marks the returned changes as being sent. Until a change is
// sent, setters compare against it rather than the cached camera value.
func (s *Session) takeChanges() changeSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := changeSet{strings: s.pendingStrings, stops: s.pendingStops}
	s.pendingStrings = make(map[Parameter]string)
	s.pendingStops = make(map[Parameter]stop.Stop)

	for p, v := range c.strings {
		s.sendingStrings[p] = v
	}
	for p, v := range c.stops {
		s.sendingStops[p] = v
	}

	return c
}

func (s *Session) sendChanges(c changeSet) error {
	var errs []error

	for _, p := range Parameters() {
		v, ok := c.strings[p]
		if !ok {
			continue
		}
		err := s.apply(p, v, func() ([]pentax.Request, error) { return s.encodeString(p, v) }, func(sent bool) {
			if sent {
				s.stringValues[p] = v
			}
			if s.sendingStrings[p] == v {
				delete(s.sendingStrings, p)
			}
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	for _, p := range Parameters() {
		v, ok := c.stops[p]
		if !ok {
			continue
		}
		err := s.apply(p, v.String(), func() ([]pentax.Request, error) { return s.encodeStop(p, v) }, func(sent bool) {
			if sent {
				s.stopValues[p] = v
			}
			if cur, inFlight := s.sendingStops[p]; inFlight && cur == v {
				delete(s.sendingStops, p)
			}
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// apply sends the requests of one change. finish is called under the lock with whether the
// camera took the change.
func (s *Session) apply(p Parameter, value string, encode func() ([]pentax.Request, error), finish func(sent bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqs, err := encode()
	if err != nil {
		finish(false)
		return err
	}

	for _, req := range reqs {
		if err := s.do(req); err != nil {
			finish(false)
			s.logger.Warn("change not applied", "parameter", p.String(), "value", value, "err", err)
			return fmt.Errorf("set %s: %w", p, err)
		}
	}

	finish(true)
	s.logger.Debug("change applied", "parameter", p.String(), "value", value)

	return nil
}

// ExposureValue returns the EV of the current metered exposure: log2(A²/T) - log2(ISO/100).
func (s *Session) ExposureValue() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.status
	if !s.hasStatus || !st.Has(pentax.StCurrentAperture) || !st.Has(pentax.StCurrentShutter) ||
		!st.Has(pentax.StCurrentISO) {
		return 0, false
	}

	a, t := st.CurrentAperture.Float(), st.CurrentShutter.Float()
	if a <= 0 || t <= 0 || st.CurrentISO == 0 {
		return 0, false
	}

	return math.Log2(a*a/t) - math.Log2(float64(st.CurrentISO)/100), true
}

// NewBuffers returns the buffers that became occupied since the previous call, oldest first.
func (s *Session) NewBuffers() []int {
	s.mu.Lock()
	mask := s.newBuffers
	s.newBuffers = 0
	s.mu.Unlock()

	var buffers []int
	for i := 0; i < pentax.MAX_BUFFERS; i++ {
		if mask&(1<<uint(i)) != 0 {
			buffers = append(buffers, i)
		}
	}
	return buffers
}
