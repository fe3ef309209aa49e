// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adapterframework/eacore/internal/cachekey"
	"github.com/adapterframework/eacore/internal/oracle"
	"github.com/adapterframework/eacore/internal/subscription"
)

func TestWebSocketSubscribePublishDeliversResult(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan oracle.InputParams, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub map[string]interface{}
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		received <- oracle.InputParams{"pair": sub["pair"]}

		_ = conn.WriteJSON(map[string]interface{}{"pair": "ETH/DOGE", "value": 251324})
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	rc, c := newTestResponseCache()
	subs := subscription.NewLocal(10)

	params := oracle.InputParams{"base": "ETH", "quote": "DOGE"}
	ctx := context.Background()
	key := rc.KeyGen.Derive("coinprice", "crypto-ws", "websocket", cachekey.InputParams(params), nil)

	tr := NewWebSocket(WebSocketConfig{
		Name:            "websocket",
		ResponseCache:   rc,
		Subscriptions:   subs,
		SubscriptionTTL: time.Minute,
		UnresponsiveTTL: 5 * time.Second,
		CacheTTL:        time.Minute,
		Handlers: WSHandlers{
			URL: func(ctx context.Context, desired []oracle.InputParams) (string, error) { return wsURL, nil },
			SubscribeMessage: func(params oracle.InputParams) (interface{}, error) {
				return map[string]interface{}{"pair": "ETH/DOGE"}, nil
			},
			UnsubscribeMessage: func(params oracle.InputParams) (interface{}, error) {
				return map[string]interface{}{"pair": "ETH/DOGE", "unsub": true}, nil
			},
			Message: func(raw []byte) ([]BatchResult, error) {
				return []BatchResult{{Params: params, Result: 251324.0}}, nil
			},
		},
	})

	if err := subs.Add(ctx, key, params, time.Minute); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := tr.BackgroundExecute(ctx); err != nil {
		t.Fatalf("BackgroundExecute: %v", err)
	}

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("expected server to receive a subscribe message")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		entry, ok, err := c.Get(ctx, rc.DeriveKey(params))
		if err == nil && ok {
			if entry.Envelope.Result != 251324.0 {
				t.Fatalf("unexpected result %v", entry.Envelope.Result)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("timed out waiting for websocket-delivered result to land in cache")
}
