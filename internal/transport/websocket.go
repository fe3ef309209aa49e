// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adapterframework/eacore/internal/logging"
	"github.com/adapterframework/eacore/internal/oracle"
	"github.com/adapterframework/eacore/internal/subscription"
)

// WSState is the WebSocket transport's connection state machine (spec
// §4.E.2): DISCONNECTED -> CONNECTING -> OPEN -> (CLOSING|UNRESPONSIVE) -> DISCONNECTED.
type WSState int

const (
	WSDisconnected WSState = iota
	WSConnecting
	WSOpen
	WSClosing
	WSUnresponsive
)

// WSHandlers are the user-supplied callbacks parameterizing a WebSocket
// transport instance.
type WSHandlers struct {
	// URL builds the dial target, parameterized by the desired
	// subscriptions so a reconnect can be triggered by a URL change.
	URL func(ctx context.Context, desired []oracle.InputParams) (string, error)
	// SubscribeMessage/UnsubscribeMessage build the wire message sent for
	// a newly desired / now-stale subscription.
	SubscribeMessage   func(params oracle.InputParams) (interface{}, error)
	UnsubscribeMessage func(params oracle.InputParams) (interface{}, error)
	// Message parses one peer frame into zero or more results.
	Message func(raw []byte) ([]BatchResult, error)
	// Open is called once the socket is dialed, before any subscribe
	// messages are sent; returning an error keeps the state machine in
	// CONNECTING rather than advancing to OPEN (spec §9 Open Question
	// decision: a rejecting open-handler never starts the
	// unresponsiveness timer).
	Open func(conn *websocket.Conn) error
	// Heartbeat, if set, is invoked on WS_HEARTBEAT_INTERVAL_MS; an error
	// only stops heartbeating until the next reconnect.
	Heartbeat func(conn *websocket.Conn) error
}

// WebSocketConfig configures a WebSocket transport instance.
type WebSocketConfig struct {
	Name          string
	ResponseCache *ResponseCache
	Subscriptions subscription.Set
	SubscriptionTTL time.Duration // WS_SUBSCRIPTION_TTL
	UnresponsiveTTL time.Duration // WS_SUBSCRIPTION_UNRESPONSIVE_TTL
	HeartbeatInterval time.Duration // WS_HEARTBEAT_INTERVAL_MS
	CacheTTL        time.Duration // CACHE_MAX_AGE
	MinPeriod       time.Duration // BACKGROUND_EXECUTE_MS_WS
	Handlers        WSHandlers
	Dialer          *websocket.Dialer
}

// WebSocket is the WebSocket transport (spec §4.E.2).
type WebSocket struct {
	cfg WebSocketConfig

	mu         sync.Mutex
	state      WSState
	conn       *websocket.Conn
	subscribed map[string]oracle.InputParams // fingerprint -> params currently acked on the wire
	lastMsgAt  time.Time
	stopRead   chan struct{}
	stopHeart  chan struct{}
}

func NewWebSocket(cfg WebSocketConfig) *WebSocket {
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &WebSocket{
		cfg:        cfg,
		state:      WSDisconnected,
		subscribed: make(map[string]oracle.InputParams),
	}
}

func (w *WebSocket) Name() string             { return w.cfg.Name }
func (w *WebSocket) MinPeriod() time.Duration { return w.cfg.MinPeriod }

// RegisterRequest adds the request to the subscription set; the next
// BackgroundExecute tick picks it up as a desired subscription.
func (w *WebSocket) RegisterRequest(ctx context.Context, req Request) error {
	return w.cfg.Subscriptions.Add(ctx, req.CacheKey, req.Data, w.cfg.SubscriptionTTL)
}

// BackgroundExecute reconciles the desired subscription set against what
// is currently acked on the wire, connecting/reconnecting as needed
// (spec §4.E.2 connection policy).
func (w *WebSocket) BackgroundExecute(ctx context.Context) error {
	entries, err := w.cfg.Subscriptions.GetAll(ctx)
	if err != nil {
		return oracle.Internal("failed to read subscription set", err)
	}
	desired := make(map[string]oracle.InputParams, len(entries))
	for _, e := range entries {
		desired[e.Key] = e.Value
	}

	w.mu.Lock()
	state := w.state
	unresponsive := state == WSOpen && len(desired) > 0 &&
		!w.lastMsgAt.IsZero() && time.Since(w.lastMsgAt) > w.cfg.UnresponsiveTTL
	w.mu.Unlock()

	if unresponsive {
		w.disconnect()
		state = WSDisconnected
	}

	if state != WSOpen && len(desired) > 0 {
		if err := w.connect(ctx, desired); err != nil {
			return err
		}
	}

	return w.reconcileSubscriptions(desired)
}

func (w *WebSocket) connect(ctx context.Context, desired map[string]oracle.InputParams) error {
	w.mu.Lock()
	w.state = WSConnecting
	w.mu.Unlock()

	paramsList := make([]oracle.InputParams, 0, len(desired))
	for _, p := range desired {
		paramsList = append(paramsList, p)
	}
	url, err := w.cfg.Handlers.URL(ctx, paramsList)
	if err != nil {
		return oracle.Upstream("failed to build websocket url", err)
	}

	conn, _, err := w.cfg.Dialer.DialContext(ctx, url, nil)
	if err != nil {
		return oracle.Upstream("websocket dial failed", err)
	}

	if w.cfg.Handlers.Open != nil {
		if err := w.cfg.Handlers.Open(conn); err != nil {
			conn.Close()
			// Stays CONNECTING: the socket was never usably open, so we
			// do not start the unresponsiveness timer (spec §9).
			return oracle.Upstream("websocket open handler rejected connection", err)
		}
	}

	w.mu.Lock()
	w.conn = conn
	w.state = WSOpen
	w.lastMsgAt = time.Now()
	w.subscribed = make(map[string]oracle.InputParams)
	w.stopRead = make(chan struct{})
	stopRead := w.stopRead
	w.mu.Unlock()

	go w.readLoop(conn, stopRead)
	if w.cfg.Handlers.Heartbeat != nil && w.cfg.HeartbeatInterval > 0 {
		w.mu.Lock()
		w.stopHeart = make(chan struct{})
		stopHeart := w.stopHeart
		w.mu.Unlock()
		go w.heartbeatLoop(conn, stopHeart)
	}
	return nil
}

func (w *WebSocket) readLoop(conn *websocket.Conn, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			if w.conn == conn {
				w.state = WSDisconnected
			}
			w.mu.Unlock()
			return
		}

		w.mu.Lock()
		w.lastMsgAt = time.Now()
		w.mu.Unlock()

		results, parseErr := w.cfg.Handlers.Message(raw)
		if parseErr != nil {
			logging.Error().Err(parseErr).Str("transport", w.cfg.Name).Msg("websocket message handler failed")
			continue
		}

		now := oracle.NowUnixMs()
		ts := oracle.Timestamps{ProviderDataRequestedUnixMs: now, ProviderDataReceivedUnixMs: now}
		for _, r := range results {
			key := w.cfg.ResponseCache.DeriveKey(r.Params)
			envelope := oracle.NewSuccessEnvelope(r.Result, r.Data, ts)
			if err := w.cfg.ResponseCache.Set(context.Background(), key, envelope, w.cfg.CacheTTL); err != nil {
				logging.Error().Err(err).Str("transport", w.cfg.Name).Msg("failed to cache websocket result")
			}
		}
	}
}

func (w *WebSocket) heartbeatLoop(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := w.cfg.Handlers.Heartbeat(conn); err != nil {
				logging.Error().Err(err).Str("transport", w.cfg.Name).Msg("websocket heartbeat failed, stopping until reconnect")
				return
			}
		}
	}
}

// reconcileSubscriptions sends subscribe/unsubscribe messages for the
// delta between desired and currently-acked subscriptions.
func (w *WebSocket) reconcileSubscriptions(desired map[string]oracle.InputParams) error {
	w.mu.Lock()
	conn := w.conn
	state := w.state
	subscribed := w.subscribed
	w.mu.Unlock()

	if state != WSOpen || conn == nil {
		return nil
	}

	var firstErr error
	for key, params := range desired {
		if _, ok := subscribed[key]; ok {
			continue
		}
		msg, err := w.cfg.Handlers.SubscribeMessage(params)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := conn.WriteJSON(msg); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		w.mu.Lock()
		w.subscribed[key] = params
		w.mu.Unlock()
	}

	for key, params := range subscribed {
		if _, ok := desired[key]; ok {
			continue
		}
		msg, err := w.cfg.Handlers.UnsubscribeMessage(params)
		if err == nil {
			_ = conn.WriteJSON(msg)
		}
		w.mu.Lock()
		delete(w.subscribed, key)
		w.mu.Unlock()
	}
	return firstErr
}

func (w *WebSocket) disconnect() {
	w.mu.Lock()
	w.state = WSClosing
	conn := w.conn
	stopRead := w.stopRead
	stopHeart := w.stopHeart
	w.mu.Unlock()

	if stopRead != nil {
		close(stopRead)
	}
	if stopHeart != nil {
		close(stopHeart)
	}
	if conn != nil {
		conn.Close()
	}

	w.mu.Lock()
	w.conn = nil
	w.state = WSDisconnected
	w.subscribed = make(map[string]oracle.InputParams)
	w.mu.Unlock()
}

// State reports the current connection state, for tests and metrics.
func (w *WebSocket) State() WSState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

var (
	_ Transport          = (*WebSocket)(nil)
	_ RequestRegisterer  = (*WebSocket)(nil)
	_ BackgroundExecutor = (*WebSocket)(nil)
	_ MinPeriod          = (*WebSocket)(nil)
)
