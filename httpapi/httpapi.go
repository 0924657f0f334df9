// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package httpapi exposes remote control of a tethered camera over HTTP.
//
// Values are exchanged as JSON. Setters take {"str": value}; numeric parameters accept the same
// notation as the command line ("5.6", "1/250", "auto").
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi"

	"github.com/dswarbrick/pslr"
	"github.com/dswarbrick/pslr/stop"
)

// Camera is the part of *pslr.Session served over HTTP.
type Camera interface {
	Connected() bool
	Flags() pslr.ExposureFlags
	ExposureValue() (float64, bool)

	StopValue(p pslr.Parameter) stop.Stop
	StringValue(p pslr.Parameter) string
	Minimum(p pslr.Parameter) stop.Stop
	Maximum(p pslr.Parameter) stop.Stop
	StopCount(p pslr.Parameter) int
	StopOption(p pslr.Parameter, i int) stop.Stop
	Options(p pslr.Parameter) []string
	SetStop(p pslr.Parameter, v stop.Stop) error
	SetString(p pslr.Parameter, v string) error
	ApplyChanges() error

	Focus() error
	GreenButton() error
	AELock(lock bool) error
	Shoot() (string, error)
	NewBuffers() []int
}

// MethodPath is a route key.
type MethodPath struct {
	Method, Path string
}

// RouteTable maps routes to handlers.
type RouteTable map[MethodPath]http.HandlerFunc

// Bind registers all routes on r.
func (rt RouteTable) Bind(r chi.Router) {
	for mp, h := range rt {
		r.MethodFunc(mp.Method, mp.Path, h)
	}
}

// Endpoints lists the routes as "METHOD path", sorted by path.
func (rt RouteTable) Endpoints() []string {
	keys := make([]MethodPath, 0, len(rt))
	for mp := range rt {
		keys = append(keys, mp)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Path == keys[j].Path {
			return keys[i].Method < keys[j].Method
		}
		return keys[i].Path < keys[j].Path
	})

	routes := make([]string, len(keys))
	for i, mp := range keys {
		routes[i] = mp.Method + " " + mp.Path
	}
	return routes
}

// StrT is a JSON string payload.
type StrT struct {
	Str string `json:"str"`
}

// BoolT is a JSON bool payload.
type BoolT struct {
	Bool bool `json:"bool"`
}

// StatusReply summarizes the session state.
type StatusReply struct {
	Connected     bool     `json:"connected"`
	ExposureMode  string   `json:"exposure_mode"`
	ApertureAuto  bool     `json:"aperture_auto"`
	ShutterAuto   bool     `json:"shutter_auto"`
	ISOAuto       bool     `json:"iso_auto"`
	ExposureValue *float64 `json:"exposure_value,omitempty"`
}

// BuffersReply lists camera buffer indices.
type BuffersReply struct {
	Buffers []int `json:"buffers"`
}

// ParameterInfo describes one parameter, its current value and the values it accepts.
type ParameterInfo struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Value   string   `json:"value"`
	Min     string   `json:"min,omitempty"`
	Max     string   `json:"max,omitempty"`
	Options []string `json:"options,omitempty"`
}

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// respondError maps rejected values to 400, a lost camera to 503 and anything else to 500.
func respondError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case pslr.IsValidationError(err):
		code = http.StatusBadRequest
	case errors.Is(err, pslr.ErrNotConnected):
		code = http.StatusServiceUnavailable
	case errors.Is(err, pslr.ErrBusy):
		code = http.StatusConflict
	}
	http.Error(w, err.Error(), code)
}

// describe builds the ParameterInfo of p.
func describe(c Camera, p pslr.Parameter) ParameterInfo {
	info := ParameterInfo{Name: p.String(), Kind: p.Kind().String()}

	if p.Kind() == pslr.Enumerated {
		info.Value = c.StringValue(p)
		info.Options = c.Options(p)
		return info
	}

	info.Value = pslr.FormatStop(p, c.StopValue(p))

	min, max := c.Minimum(p), c.Maximum(p)
	if min.IsValue() && max.IsValue() {
		info.Min = pslr.FormatStop(p, min)
		info.Max = pslr.FormatStop(p, max)
	}

	for i := 0; ; i++ {
		v := c.StopOption(p, i)
		if v.IsUnknown() {
			break
		}
		info.Options = append(info.Options, pslr.FormatStop(p, v))
	}

	return info
}

func parameter(w http.ResponseWriter, r *http.Request) (pslr.Parameter, bool) {
	p, err := pslr.ParseParameter(chi.URLParam(r, "name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return 0, false
	}
	return p, true
}

// GetStatus returns an HTTP handler func reporting the session state.
func GetStatus(c Camera) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flags := c.Flags()
		reply := StatusReply{
			Connected:    c.Connected(),
			ExposureMode: c.StringValue(pslr.ExposureMode),
			ApertureAuto: flags.ApertureAuto,
			ShutterAuto:  flags.ShutterAuto,
			ISOAuto:      flags.ISOAuto,
		}
		if ev, ok := c.ExposureValue(); ok {
			reply.ExposureValue = &ev
		}
		respondJSON(w, reply)
	}
}

// ListParameters returns an HTTP handler func describing every parameter.
func ListParameters(c Camera) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := pslr.Parameters()
		infos := make([]ParameterInfo, len(params))
		for i, p := range params {
			infos[i] = describe(c, p)
		}
		respondJSON(w, infos)
	}
}

// GetParameter returns an HTTP handler func describing the parameter named in the path.
func GetParameter(c Camera) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := parameter(w, r)
		if !ok {
			return
		}
		respondJSON(w, describe(c, p))
	}
}

// SetParameter returns an HTTP handler func that queues a change of the parameter named in the
// path. The change reaches the camera with the next apply.
func SetParameter(c Camera) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := parameter(w, r)
		if !ok {
			return
		}

		s := StrT{}
		err := json.NewDecoder(r.Body).Decode(&s)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if p.Kind() == pslr.Enumerated {
			err = c.SetString(p, s.Str)
		} else {
			var v stop.Stop
			if v, err = pslr.ParseStop(p, s.Str); err == nil {
				err = c.SetStop(p, v)
			}
		}
		if err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// TakeNewBuffers returns an HTTP handler func that replies with the buffers filled since the
// previous call and forgets them, so each new picture is reported once.
func TakeNewBuffers(c Camera) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := BuffersReply{Buffers: c.NewBuffers()}
		if reply.Buffers == nil {
			reply.Buffers = []int{}
		}
		respondJSON(w, reply)
	}
}

// Apply returns an HTTP handler func that sends all queued changes to the camera.
func Apply(c Camera) http.HandlerFunc {
	return call(c.ApplyChanges)
}

// Shoot returns an HTTP handler func that takes a picture and replies with the saved path as
// {"str": path}.
func Shoot(c Camera) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := c.Shoot()
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, StrT{Str: path})
	}
}

// SetAELock returns an HTTP handler func that parses {"bool": lock} and locks or unlocks the
// light meter.
func SetAELock(c Camera) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := BoolT{}
		err := json.NewDecoder(r.Body).Decode(&b)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := c.AELock(b.Bool); err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func call(fcn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fcn(); err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// Routes returns the route table of camera c.
func Routes(c Camera) RouteTable {
	rt := RouteTable{
		{http.MethodGet, "/status"}:            GetStatus(c),
		{http.MethodGet, "/parameters"}:        ListParameters(c),
		{http.MethodGet, "/parameters/{name}"}: GetParameter(c),
		{http.MethodPut, "/parameters/{name}"}: SetParameter(c),
		{http.MethodPost, "/apply"}:            Apply(c),
		{http.MethodPost, "/focus"}:            call(c.Focus),
		{http.MethodPost, "/green-button"}:     call(c.GreenButton),
		{http.MethodPost, "/ae-lock"}:          SetAELock(c),
		{http.MethodPost, "/shoot"}:            Shoot(c),
		{http.MethodPost, "/new-buffers"}:      TakeNewBuffers(c),
	}

	rt[MethodPath{http.MethodGet, "/endpoints"}] = func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, rt.Endpoints())
	}

	return rt
}

// NewRouter returns a router serving camera c, with extra middleware such as
// middleware.Logger applied first.
func NewRouter(c Camera, middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares...)
	Routes(c).Bind(r)
	return r
}
