// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package endpoint

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/adapterframework/eacore/internal/cachekey"
	"github.com/adapterframework/eacore/internal/oracle"
	"github.com/adapterframework/eacore/internal/router"
)

// transportNamePattern is the spec §3 rule for TransportRoutes keys:
// lowercase letters only, unless the map holds the single default
// sentinel entry.
var transportNamePattern = regexp.MustCompile(`^[a-z]+$`)

// InputParameter declares one recognized field of an endpoint's request
// body, independent of any particular endpoint's Go struct — endpoints
// are data-driven so a generator (external collaborator, per Non-goals)
// can emit them from a manifest.
type InputParameter struct {
	Name        string
	Aliases     []string
	Required    bool
	ValidateTag string // optional go-playground/validator tag, e.g. "oneof=BTC ETH"
}

// RateLimiting is an endpoint's share of the adapter's rate limiter.
type RateLimiting struct {
	AllocationPercentage *float64
}

// RequestTransformFunc mutates the normalized request body before
// cache-key derivation (spec §4.G). It returns the (possibly new) data
// map, or an error to short-circuit the request.
type RequestTransformFunc func(data oracle.InputParams) (oracle.InputParams, error)

// CustomInputValidationFunc runs after all transforms; a returned error
// short-circuits the request with its oracle.Kind's HTTP status.
type CustomInputValidationFunc func(data oracle.InputParams, settings map[string]interface{}) error

// Config declares one endpoint. Transports is ordered: declaration
// order becomes the order reported in routing-failure messages (spec
// §8 S4), and a single entry keyed router.DefaultSentinel bypasses
// routing entirely.
type Config struct {
	Name                  string
	Aliases               []string
	InputParameters       []InputParameter
	Transports            []router.NamedTransport
	RateLimiting          *RateLimiting
	CacheKeyGenerator     *cachekey.Generator
	CustomInputValidation CustomInputValidationFunc
	RequestTransforms     []RequestTransformFunc
	Overrides             map[string]string
	CustomRouter          router.CustomRouterFunc
	DefaultTransport      string
}

// Endpoint is a fully validated, ready-to-serve endpoint definition.
type Endpoint struct {
	name            string
	aliases         []string
	inputParameters []InputParameter
	rateLimiting    *RateLimiting
	keyGen          *cachekey.Generator
	customValidate  CustomInputValidationFunc
	transforms      []RequestTransformFunc
	overrides       map[string]string
	router          *router.Router
}

// New validates cfg and builds an Endpoint, or returns an Invariant
// fault describing the first violated construction rule (spec §3: names
// lowercased, transport names match ^[a-z]+$ or are the single default
// sentinel, duplicate transport names rejected).
func New(cfg Config, defaultKeyGen *cachekey.Generator) (*Endpoint, error) {
	if cfg.Name == "" {
		return nil, oracle.Invariant("endpoint name must not be empty")
	}
	name := strings.ToLower(cfg.Name)

	aliases := make([]string, len(cfg.Aliases))
	for i, a := range cfg.Aliases {
		aliases[i] = strings.ToLower(a)
	}

	if err := validateTransportNames(cfg.Transports); err != nil {
		return nil, err
	}

	keyGen := cfg.CacheKeyGenerator
	if keyGen == nil {
		keyGen = defaultKeyGen
	}

	overrides := make(map[string]string, len(cfg.Overrides))
	for k, v := range cfg.Overrides {
		overrides[strings.ToUpper(k)] = v
	}

	return &Endpoint{
		name:            name,
		aliases:         aliases,
		inputParameters: cfg.InputParameters,
		rateLimiting:    cfg.RateLimiting,
		keyGen:          keyGen,
		customValidate:  cfg.CustomInputValidation,
		transforms:      cfg.RequestTransforms,
		overrides:       overrides,
		router: router.New(router.Config{
			Transports:       cfg.Transports,
			CustomRouter:     cfg.CustomRouter,
			DefaultTransport: strings.ToLower(cfg.DefaultTransport),
		}),
	}, nil
}

func validateTransportNames(transports []router.NamedTransport) error {
	if len(transports) == 1 && transports[0].Name == router.DefaultSentinel {
		return nil
	}
	seen := make(map[string]bool, len(transports))
	for _, nt := range transports {
		if !transportNamePattern.MatchString(nt.Name) {
			return oracle.Invariant(fmt.Sprintf("transport name %q must match ^[a-z]+$", nt.Name))
		}
		if seen[nt.Name] {
			return oracle.Invariant(fmt.Sprintf("duplicate transport name %q", nt.Name))
		}
		seen[nt.Name] = true
	}
	return nil
}

func (e *Endpoint) Name() string           { return e.name }
func (e *Endpoint) Aliases() []string      { return e.aliases }
func (e *Endpoint) Router() *router.Router { return e.router }

// AllocationPercentage reports the endpoint's explicit rate-limiter
// share, or nil if it should receive an implicit equal split (spec
// §3 Endpoint allocations, internal/ratelimit.ResolveAllocations).
func (e *Endpoint) AllocationPercentage() *float64 {
	if e.rateLimiting == nil {
		return nil
	}
	return e.rateLimiting.AllocationPercentage
}

// Prepare runs the full request pipeline ahead of cache-key derivation:
// validate required input parameters, apply the built-in symbolOverrider
// transform, apply user-supplied transforms in order, then
// customInputValidation (spec §4.G). It returns the transformed data
// ready for routing and key derivation.
func (e *Endpoint) Prepare(adapterName string, data oracle.InputParams, settings map[string]interface{}) (oracle.InputParams, error) {
	if err := e.validateRequired(data); err != nil {
		return nil, err
	}

	data = symbolOverride(adapterName, data, e.overrides)

	for _, t := range e.transforms {
		next, err := t(data)
		if err != nil {
			return nil, oracle.AsFault(err)
		}
		data = next
	}

	if e.customValidate != nil {
		if err := e.customValidate(data, settings); err != nil {
			return nil, oracle.AsFault(err)
		}
	}

	return data, nil
}

func (e *Endpoint) validateRequired(data oracle.InputParams) error {
	for _, p := range e.inputParameters {
		if !p.Required {
			continue
		}
		if hasAny(data, p.Name, p.Aliases) {
			continue
		}
		return oracle.Input(fmt.Sprintf("missing required parameter %q", p.Name), nil)
	}
	return validateTagged(data, e.inputParameters)
}

func hasAny(data oracle.InputParams, name string, aliases []string) bool {
	if v, ok := data[name]; ok && v != nil {
		return true
	}
	for _, a := range aliases {
		if v, ok := data[a]; ok && v != nil {
			return true
		}
	}
	return false
}

// CacheKey derives the fingerprint for a prepared request on a given
// transport (spec §3 Request fingerprint).
func (e *Endpoint) CacheKey(adapterName, transportName string, data oracle.InputParams, settings map[string]interface{}) string {
	return e.keyGen.Derive(adapterName, e.name, transportName, cachekey.InputParams(data), settings)
}
