// Package cachekey derives the deterministic request fingerprint used as a
// cache key and request-coalescing key throughout the framework (spec §3).
//
// Grounded in the teacher's internal/cache key-generation shape (sorted,
// lowercased encoding into a bounded-size string) and generalized to the
// adapter/endpoint/transport/settings tuple the spec requires.
package cachekey

import (
	"crypto/sha1"
	"encoding/base64"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

// DefaultMaxCommonKeySize is the default for MAX_COMMON_KEY_SIZE (spec §6): above
// this many bytes the derived key is replaced by a SHA-1 digest.
const DefaultMaxCommonKeySize = 1700

// Generator derives a cache key from the fingerprint components. A
// user-supplied cacheKeyGenerator (spec §3) can be substituted by
// constructing a Generator with a custom Derive func via WithFunc.
type Generator struct {
	maxKeySize int
	derive     func(adapterName, endpointName, transportName string, data InputParams, settings map[string]interface{}) string
}

// InputParams mirrors oracle.InputParams without importing it, so this leaf
// package has no upward dependency.
type InputParams map[string]interface{}

// NewGenerator builds the default generator. maxKeySize <= 0 uses the spec
// default.
func NewGenerator(maxKeySize int) *Generator {
	if maxKeySize <= 0 {
		maxKeySize = DefaultMaxCommonKeySize
	}
	g := &Generator{maxKeySize: maxKeySize}
	g.derive = g.defaultDerive
	return g
}

// WithFunc substitutes the derivation function, implementing the spec's
// per-endpoint cacheKeyGenerator override. The returned Generator still
// applies the MAX_COMMON_KEY_SIZE hashing rule to whatever string the
// custom function produces.
func (g *Generator) WithFunc(fn func(adapterName, endpointName, transportName string, data InputParams, settings map[string]interface{}) string) *Generator {
	clone := *g
	clone.derive = fn
	return &clone
}

// Derive computes the fingerprint for (adapter, endpoint, transport, data,
// settings), normalizing and bounding its size per spec §3.
func (g *Generator) Derive(adapterName, endpointName, transportName string, data InputParams, settings map[string]interface{}) string {
	key := g.derive(adapterName, endpointName, transportName, data, settings)
	if len(key) <= g.maxKeySize {
		return key
	}
	sum := sha1.Sum([]byte(key))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func (g *Generator) defaultDerive(adapterName, endpointName, transportName string, data InputParams, settings map[string]interface{}) string {
	normalized := normalize(data)
	normalizedSettings := normalize(toInputParams(settings))

	parts := []string{
		strings.ToLower(adapterName),
		strings.ToLower(endpointName),
		strings.ToLower(transportName),
	}

	payload := map[string]interface{}{
		"data":     normalized,
		"settings": normalizedSettings,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		// Unreachable for JSON-able InputParams; fall back to a stable
		// representation rather than panicking on an unknown request.
		encoded = []byte("{}")
	}
	parts = append(parts, string(encoded))
	return strings.Join(parts, "-")
}

// StorageKey computes the full persisted-cache key layout: spec §6's
// "{CACHE_PREFIX}-{ADAPTER_NAME}-{endpoint}-{transport}-{cache-key}",
// where fingerprint is the value Derive returned for the same
// (adapterName, endpointName, transportName) tuple. The request-read path
// (internal/adapter) and every transport's write path
// (internal/transport.ResponseCache) both call this so a background-filled
// entry is always found under the same key a foreground request looks up.
func StorageKey(cachePrefix, adapterName, endpointName, transportName, fingerprint string) string {
	return cachePrefix + "-" + adapterName + "-" + endpointName + "-" + transportName + "-" + fingerprint
}

func toInputParams(m map[string]interface{}) InputParams {
	if m == nil {
		return InputParams{}
	}
	return InputParams(m)
}

// normalize lowercases string leaves, sorts map keys, and recurses into
// nested maps/slices so that logically equal requests (differing only in
// casing or key order) collapse onto the same cache key.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case InputParams:
		return normalizeMap(map[string]interface{}(val))
	case map[string]interface{}:
		return normalizeMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case string:
		return strings.ToLower(val)
	default:
		return val
	}
}

func normalizeMap(m map[string]interface{}) map[string]interface{} {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// out is a plain map and keeps no order of its own; the sorted key
	// order in the derived key comes from json.Marshal, which sorts map
	// keys on encode.
	out := make(map[string]interface{}, len(m))
	for _, k := range keys {
		out[strings.ToLower(k)] = normalize(m[k])
	}
	return out
}
