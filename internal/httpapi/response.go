// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package httpapi implements component J: the HTTP ingress that turns a
// POST body into an Adapter.HandleRequest call and writes the wire
// envelope back, plus the healthcheck route (spec §4.J).
package httpapi

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/adapterframework/eacore/internal/logging"
	"github.com/adapterframework/eacore/internal/metrics"
	"github.com/adapterframework/eacore/internal/oracle"
)

// RequestHandler is the subset of *adapter.Adapter the ingress depends
// on. Declared locally (rather than importing internal/adapter) so this
// package can be exercised against a fake in tests without building a
// full composition root.
type RequestHandler interface {
	HandleRequest(ctx context.Context, endpointName string, data oracle.InputParams) (*oracle.Envelope, error)
}

// Config configures the ingress router.
type Config struct {
	Adapter             RequestHandler
	BaseURL             string // BASE_URL path prefix, e.g. "" or "/api"
	Version             string
	MaxPayloadSizeLimit int64 // MAX_PAYLOAD_SIZE_LIMIT, bytes; <=0 means unlimited
}

// healthBody is the spec §4.J healthcheck payload.
type healthBody struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// requestBody is the spec §6 wire request: {"id"?, "data":{"endpoint"?,
// "transport"?, "overrides"?, ...endpointInputs}}.
type requestBody struct {
	ID   string             `json:"id"`
	Data oracle.InputParams `json:"data"`
}

// NewRouter builds the chi router serving GET {BaseURL}/health and POST
// {BaseURL} per spec §4.J. Callers mount additional middleware (CORS,
// rate limiting, request-ID) via internal/httpapi.ChiMiddleware before
// handing the result to http.Server.
func NewRouter(cfg Config) chi.Router {
	r := chi.NewRouter()
	r.Get(cfg.BaseURL+"/health", healthHandler(cfg.Version))
	r.Post(cfg.BaseURL, ingressHandler(cfg))
	return r
}

func healthHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthBody{Message: "OK", Version: version})
	}
}

// ingressHandler implements the POST route body of spec §4.J: content-type
// validation, payload-size enforcement, JSON decode, Adapter.HandleRequest,
// and the Fault→status mapping on failure.
func ingressHandler(cfg Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		start := time.Now()
		status := serveIngress(cfg, w, r)
		metrics.RecordAPIRequest(r.Method, r.URL.Path, strconv.Itoa(status), time.Since(start))
	}
}

func serveIngress(cfg Config, w http.ResponseWriter, r *http.Request) int {
	ctx := r.Context()

	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		return writeFault(w, oracle.Input("Content-Type must be application/json", nil))
	}

	body := io.Reader(r.Body)
	if cfg.MaxPayloadSizeLimit > 0 {
		body = http.MaxBytesReader(w, r.Body, cfg.MaxPayloadSizeLimit)
	}

	var req requestBody
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return writeFault(w, oracle.Input("request body must be valid JSON", err))
	}
	if req.Data == nil {
		req.Data = oracle.InputParams{}
	}

	endpointName, _ := req.Data["endpoint"].(string)

	envelope, err := cfg.Adapter.HandleRequest(ctx, endpointName, req.Data)
	if err != nil {
		return writeFault(w, oracle.AsFault(err))
	}
	return writeJSON(w, envelope.StatusCode, envelope)
}

// writeFault writes the spec §6 error envelope for a Fault and returns the
// status code written, for metrics recording.
func writeFault(w http.ResponseWriter, f *oracle.Fault) int {
	envelope := oracle.NewErrorEnvelope(f)
	writeJSON(w, envelope.StatusCode, envelope)
	return envelope.StatusCode
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) int {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("failed to encode response body")
	}
	return status
}
