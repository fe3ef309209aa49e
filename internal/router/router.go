// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router implements component F: the per-endpoint named map of
// transports and the routing decision that picks one per request.
package router

import (
	"fmt"
	"strings"

	"github.com/adapterframework/eacore/internal/oracle"
	"github.com/adapterframework/eacore/internal/transport"
)

// DefaultSentinel is the name used for an endpoint with exactly one
// transport registered, bypassing any routing policy (spec §4.F rule 1).
const DefaultSentinel = "default"

// CustomRouterFunc is the user-supplied customRouter(req, settings).
type CustomRouterFunc func(data oracle.InputParams, settings map[string]interface{}) (string, error)

// NamedTransport pairs a transport with its routing name. Endpoints pass
// these in the order transports were registered so the error message
// listing valid names matches that declaration order (spec §8 S4), not
// an arbitrary map iteration order.
type NamedTransport struct {
	Name      string
	Transport transport.Transport
}

// Router is a single endpoint's transport map plus routing policy.
type Router struct {
	order            []string
	transports       map[string]transport.Transport
	customRouter     CustomRouterFunc
	defaultTransport string
}

// Config builds a Router. Transport names must already be validated by
// the caller (internal/endpoint) against ^[a-z]+$ or be the single
// DefaultSentinel entry (spec §3, §8 property 7).
type Config struct {
	Transports       []NamedTransport
	CustomRouter     CustomRouterFunc
	DefaultTransport string
}

func New(cfg Config) *Router {
	r := &Router{
		order:            make([]string, 0, len(cfg.Transports)),
		transports:       make(map[string]transport.Transport, len(cfg.Transports)),
		customRouter:     cfg.CustomRouter,
		defaultTransport: cfg.DefaultTransport,
	}
	for _, nt := range cfg.Transports {
		r.order = append(r.order, nt.Name)
		r.transports[nt.Name] = nt.Transport
	}
	return r
}

// TransportNames returns every registered transport name in declaration
// order, independent of any routing decision — used by the
// BackgroundExecutor to enumerate every transport it must schedule
// regardless of which one a given inbound request would route to.
func (r *Router) TransportNames() []string { return r.order }

// TransportByName returns the transport registered under name, or nil if
// none is.
func (r *Router) TransportByName(name string) transport.Transport { return r.transports[name] }

// Route picks the transport for a request (spec §4.F):
//  1. Exactly one transport registered under DefaultSentinel -> use it.
//  2. Else, in order: customRouter(data, settings), data["transport"],
//     defaultTransport. First non-empty result wins. Unknown name is an
//     Input fault listing the valid names.
func (r *Router) Route(data oracle.InputParams, settings map[string]interface{}) (transport.Transport, error) {
	if len(r.transports) == 1 {
		if t, ok := r.transports[DefaultSentinel]; ok {
			return t, nil
		}
	}

	name := ""
	if r.customRouter != nil {
		n, err := r.customRouter(data, settings)
		if err != nil {
			return nil, oracle.Input("custom router failed", err)
		}
		name = n
	}
	if name == "" {
		if v, ok := data["transport"].(string); ok {
			name = v
		}
	}
	if name == "" {
		name = r.defaultTransport
	}
	if name == "" {
		return nil, oracle.Input("no transport specified and no default configured", nil)
	}

	name = strings.ToLower(name)
	t, ok := r.transports[name]
	if !ok {
		return nil, oracle.Input(fmt.Sprintf("No transport found for key %q, must be one of %s", name, r.validNames()), nil)
	}
	return t, nil
}

func (r *Router) validNames() string {
	return "[\"" + strings.Join(r.order, "\",\"") + "\"]"
}
