// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/adapterframework/eacore/internal/logging"
	"github.com/adapterframework/eacore/internal/oracle"
	"github.com/adapterframework/eacore/internal/subscription"
)

// SSEHandlers are the user-supplied callbacks for an SSE transport
// instance. There is no third-party server-sent-events client library in
// the retrieved corpus (see DESIGN.md); the stream is read with stdlib
// net/http + bufio, the idiomatic minimal approach for a line-oriented
// text/event-stream.
type SSEHandlers struct {
	// StreamRequest builds the long-lived GET that opens the event stream.
	StreamRequest func(ctx context.Context) (*http.Request, error)
	// SubscribeRequest/UnsubscribeRequest build the side-channel HTTP call
	// used to (un)subscribe a given param set. The call is sent with
	// SSEConfig.Client directly; it does not pass through the Requester, so
	// it is neither rate limited nor coalesced.
	SubscribeRequest   func(params oracle.InputParams) (*http.Request, error)
	UnsubscribeRequest func(params oracle.InputParams) (*http.Request, error)
	// KeepaliveRequest, if set, is issued on every BackgroundExecute call;
	// SSE_KEEPALIVE_SLEEP (SSEConfig.KeepaliveSleep) does not pace it.
	KeepaliveRequest func(ctx context.Context) (*http.Request, error)
	// Event parses one named SSE event's data payload into results.
	Event func(eventName string, data []byte) ([]BatchResult, error)
}

// SSEConfig configures an SSE transport instance.
type SSEConfig struct {
	Name            string
	EndpointName    string
	ResponseCache   *ResponseCache
	Subscriptions   subscription.Set
	Client          *http.Client
	SubscriptionTTL time.Duration // SSE_SUBSCRIPTION_TTL
	KeepaliveSleep  time.Duration // SSE_KEEPALIVE_SLEEP
	CacheTTL        time.Duration // CACHE_MAX_AGE
	MinPeriod       time.Duration // BACKGROUND_EXECUTE_MS_SSE
	Handlers        SSEHandlers
}

// SSE is the server-sent-events transport (spec §4.E.3).
type SSE struct {
	cfg SSEConfig

	mu         sync.Mutex
	streaming  bool
	subscribed map[string]oracle.InputParams
	cancel     context.CancelFunc
}

func NewSSE(cfg SSEConfig) *SSE {
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return &SSE{cfg: cfg, subscribed: make(map[string]oracle.InputParams)}
}

func (s *SSE) Name() string             { return s.cfg.Name }
func (s *SSE) MinPeriod() time.Duration { return s.cfg.MinPeriod }

func (s *SSE) RegisterRequest(ctx context.Context, req Request) error {
	return s.cfg.Subscriptions.Add(ctx, req.CacheKey, req.Data, s.cfg.SubscriptionTTL)
}

// BackgroundExecute ensures the stream is open, reconciles subscriptions,
// and issues a keepalive call if configured.
func (s *SSE) BackgroundExecute(ctx context.Context) error {
	entries, err := s.cfg.Subscriptions.GetAll(ctx)
	if err != nil {
		return oracle.Internal("failed to read subscription set", err)
	}
	desired := make(map[string]oracle.InputParams, len(entries))
	for _, e := range entries {
		desired[e.Key] = e.Value
	}

	s.mu.Lock()
	streaming := s.streaming
	s.mu.Unlock()

	if !streaming && len(desired) > 0 {
		if err := s.startStream(ctx); err != nil {
			return err
		}
	}

	if err := s.reconcile(ctx, desired); err != nil {
		return err
	}

	if s.cfg.Handlers.KeepaliveRequest != nil {
		req, err := s.cfg.Handlers.KeepaliveRequest(ctx)
		if err == nil {
			resp, doErr := s.cfg.Client.Do(req)
			if doErr == nil {
				resp.Body.Close()
			}
		}
	}
	return nil
}

func (s *SSE) startStream(ctx context.Context) error {
	req, err := s.cfg.Handlers.StreamRequest(ctx)
	if err != nil {
		return oracle.Upstream("failed to build sse stream request", err)
	}
	streamCtx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(streamCtx)

	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		cancel()
		return oracle.Upstream("sse stream request failed", err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		cancel()
		return oracle.Upstream("sse stream returned non-success status", nil)
	}

	s.mu.Lock()
	s.streaming = true
	s.cancel = cancel
	s.subscribed = make(map[string]oracle.InputParams)
	s.mu.Unlock()

	go s.readLoop(resp.Body)
	return nil
}

func (s *SSE) readLoop(body io.ReadCloser) {
	defer body.Close()
	defer func() {
		s.mu.Lock()
		s.streaming = false
		s.mu.Unlock()
	}()

	scanner := bufio.NewScanner(body)
	var eventName string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				s.dispatchEvent(eventName, []byte(data.String()))
			}
			eventName, data = "", strings.Builder{}
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}

func (s *SSE) dispatchEvent(eventName string, data []byte) {
	results, err := s.cfg.Handlers.Event(eventName, data)
	if err != nil {
		logging.Error().Err(err).Str("transport", s.cfg.Name).Msg("sse event handler failed")
		return
	}
	now := oracle.NowUnixMs()
	streamEstablished := now
	ts := oracle.Timestamps{
		ProviderDataRequestedUnixMs:         now,
		ProviderDataReceivedUnixMs:          now,
		ProviderDataStreamEstablishedUnixMs: &streamEstablished,
	}
	for _, r := range results {
		key := s.cfg.ResponseCache.DeriveKey(r.Params)
		envelope := oracle.NewSuccessEnvelope(r.Result, r.Data, ts)
		if err := s.cfg.ResponseCache.Set(context.Background(), key, envelope, s.cfg.CacheTTL); err != nil {
			logging.Error().Err(err).Str("transport", s.cfg.Name).Msg("failed to cache sse result")
		}
	}
}

func (s *SSE) reconcile(ctx context.Context, desired map[string]oracle.InputParams) error {
	s.mu.Lock()
	subscribed := make(map[string]oracle.InputParams, len(s.subscribed))
	for k, v := range s.subscribed {
		subscribed[k] = v
	}
	s.mu.Unlock()

	var firstErr error
	for key, params := range desired {
		if _, ok := subscribed[key]; ok {
			continue
		}
		req, err := s.cfg.Handlers.SubscribeRequest(params)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		resp, doErr := s.cfg.Client.Do(req.WithContext(ctx))
		if doErr == nil {
			resp.Body.Close()
		} else if firstErr == nil {
			firstErr = doErr
		}
		s.mu.Lock()
		s.subscribed[key] = params
		s.mu.Unlock()
	}

	for key, params := range subscribed {
		if _, ok := desired[key]; ok {
			continue
		}
		if s.cfg.Handlers.UnsubscribeRequest != nil {
			req, err := s.cfg.Handlers.UnsubscribeRequest(params)
			if err == nil {
				resp, doErr := s.cfg.Client.Do(req.WithContext(ctx))
				if doErr == nil {
					resp.Body.Close()
				}
			}
		}
		s.mu.Lock()
		delete(s.subscribed, key)
		s.mu.Unlock()
	}
	return firstErr
}

var (
	_ Transport          = (*SSE)(nil)
	_ RequestRegisterer  = (*SSE)(nil)
	_ BackgroundExecutor = (*SSE)(nil)
	_ MinPeriod          = (*SSE)(nil)
)
