// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package ratelimit

import "fmt"

// ResolveAllocations implements the endpoint-allocation rule from spec
// §4.C: explicit allocationPercentage values must sum <= 100; the
// remaining endpoints (no explicit value) share (100 - sumExplicit)
// equally. Sum == 100 with any implicit endpoint is a fatal config error
// (spec §8 property 3), since there would be nothing left to divide.
func ResolveAllocations(endpointNames []string, explicit map[string]float64) (map[string]float64, error) {
	var sumExplicit float64
	implicit := make([]string, 0, len(endpointNames))
	for _, name := range endpointNames {
		if pct, ok := explicit[name]; ok {
			sumExplicit += pct
		} else {
			implicit = append(implicit, name)
		}
	}

	if sumExplicit > 100 {
		return nil, fmt.Errorf("ratelimit: explicit allocation percentages sum to %.2f, exceeds 100", sumExplicit)
	}
	if sumExplicit == 100 && len(implicit) > 0 {
		return nil, fmt.Errorf("ratelimit: allocation percentages sum to exactly 100 with %d endpoint(s) left unallocated", len(implicit))
	}

	out := make(map[string]float64, len(endpointNames))
	for name, pct := range explicit {
		out[name] = pct
	}
	if len(implicit) > 0 {
		share := (100 - sumExplicit) / float64(len(implicit))
		for _, name := range implicit {
			out[name] = share
		}
	}
	return out, nil
}
