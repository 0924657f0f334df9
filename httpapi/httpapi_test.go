// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswarbrick/pslr"
	"github.com/dswarbrick/pslr/cameradb"
	"github.com/dswarbrick/pslr/pentax"
	"github.com/dswarbrick/pslr/stop"
)

// stubController is a camera in M mode that accepts every command.
type stubController struct {
	mu       sync.Mutex
	status   pentax.Status
	requests []pentax.Request
}

func (c *stubController) Do(req pentax.Request) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	return nil, nil
}

func (c *stubController) Status() (pentax.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, nil
}

func (c *stubController) OpenBuffer(int, pentax.BufferKind, int) error { return nil }
func (c *stubController) ReadBuffer([]byte) (int, error)               { return 0, nil }
func (c *stubController) CloseBuffer() error                           { return nil }
func (c *stubController) DeleteBuffer(int) error                       { return nil }
func (c *stubController) Disconnect() error                            { return nil }
func (c *stubController) Close() error                                 { return nil }

func newTestSession(t *testing.T) (*pslr.Session, *stubController) {
	t.Helper()

	st := pentax.Status{
		SetAperture:     stop.Rational{Nom: 8, Denom: 1},
		SetShutter:      stop.Rational{Nom: 1, Denom: 60},
		FixedISO:        100,
		ExposureMode:    pentax.ExposureM,
		CurrentAperture: stop.Rational{Nom: 8, Denom: 1},
		CurrentShutter:  stop.Rational{Nom: 1, Denom: 60},
		CurrentISO:      100,
		LensMinAperture: stop.Rational{Nom: 4, Denom: 1},
		LensMaxAperture: stop.Rational{Nom: 16, Denom: 1},
		JpegQuality:     2,
	}
	for f := pentax.StBufMask; f <= pentax.StFocus; f++ {
		st.Present |= 1 << uint(f)
	}

	ctrl := &stubController{status: st}
	db := cameradb.Default()
	model, _ := db.LookupModel(0x12c1e)

	s, err := pslr.NewSession(ctrl, model, pslr.Config{
		Destination: t.TempDir(),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	return s, ctrl
}

func newTestServer(t *testing.T) (*httptest.Server, *stubController) {
	t.Helper()

	s, ctrl := newTestSession(t)
	srv := httptest.NewServer(NewRouter(s, middleware.Recoverer))
	t.Cleanup(srv.Close)

	return srv, ctrl
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func TestGetStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reply StatusReply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	assert.True(t, reply.Connected)
	assert.Equal(t, "M", reply.ExposureMode)
	assert.False(t, reply.ShutterAuto)
	require.NotNil(t, reply.ExposureValue)
	assert.InDelta(t, 11.9, *reply.ExposureValue, 0.1)
}

func TestGetParameter(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/parameters/aperture", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info ParameterInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, "Aperture", info.Name)
	assert.Equal(t, "numeric", info.Kind)
	assert.Equal(t, "f/8", info.Value)
	assert.Equal(t, "f/4", info.Min)
	assert.Equal(t, "f/16", info.Max)
	// AUTO plus f/4 to f/16 in third stops
	require.Len(t, info.Options, 14)
	assert.Equal(t, "f/16", info.Options[13])

	resp = do(t, http.MethodGet, srv.URL+"/parameters/jpeg-quality", "")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, "**", info.Value)
	assert.Equal(t, []string{"*", "**", "***"}, info.Options)

	resp = do(t, http.MethodGet, srv.URL+"/parameters/zoom", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListParameters(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/parameters", "")
	var infos []ParameterInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&infos))
	assert.Len(t, infos, len(pslr.Parameters()))
}

func TestSetAndApply(t *testing.T) {
	srv, ctrl := newTestServer(t)

	resp := do(t, http.MethodPut, srv.URL+"/parameters/shutter", `{"str": "1/250"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = do(t, http.MethodPut, srv.URL+"/parameters/wb", `{"str": "Shade"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/apply", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, []pentax.Request{
		pentax.ReqSetField(pentax.FieldWhiteBalance, 2),
		pentax.ReqSetRational(pentax.FieldShutter, stop.Rational{Nom: 1, Denom: 250}),
	}, ctrl.requests)
}

func TestSetInvalid(t *testing.T) {
	srv, ctrl := newTestServer(t)

	for _, body := range []string{`{"str": "f/1"}`, `{"str": "wide"}`, `not json`} {
		resp := do(t, http.MethodPut, srv.URL+"/parameters/aperture", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}

	resp := do(t, http.MethodPut, srv.URL+"/parameters/metering-mode", `{"str": "Matrix"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Empty(t, ctrl.requests)
}

func TestActions(t *testing.T) {
	srv, ctrl := newTestServer(t)

	assert.Equal(t, http.StatusOK, do(t, http.MethodPost, srv.URL+"/focus", "").StatusCode)
	assert.Equal(t, http.StatusOK, do(t, http.MethodPost, srv.URL+"/green-button", "").StatusCode)
	assert.Equal(t, http.StatusOK, do(t, http.MethodPost, srv.URL+"/ae-lock", `{"bool": true}`).StatusCode)

	assert.Equal(t, []pentax.Request{
		pentax.ReqFocus(),
		pentax.ReqGreenButton(),
		pentax.ReqAELock(true),
	}, ctrl.requests)
}

func TestNewBuffers(t *testing.T) {
	s, ctrl := newTestSession(t)
	srv := httptest.NewServer(NewRouter(s))
	t.Cleanup(srv.Close)

	ctrl.mu.Lock()
	ctrl.status.BufMask = 0x5
	ctrl.mu.Unlock()
	require.NoError(t, s.UpdateValues())

	// Reading the status leaves new buffers alone
	resp := do(t, http.MethodGet, srv.URL+"/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reply BuffersReply
	resp = do(t, http.MethodPost, srv.URL+"/new-buffers", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	assert.Equal(t, []int{0, 2}, reply.Buffers)

	resp = do(t, http.MethodPost, srv.URL+"/new-buffers", "")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	assert.Empty(t, reply.Buffers)

	resp = do(t, http.MethodGet, srv.URL+"/new-buffers", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/endpoints", "")
	var routes []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&routes))
	assert.Contains(t, routes, "POST /shoot")
	assert.Contains(t, routes, "POST /new-buffers")
	assert.Contains(t, routes, "PUT /parameters/{name}")
	assert.Equal(t, "POST /ae-lock", routes[0])
}
