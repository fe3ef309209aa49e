// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package endpoint

import (
	"strings"

	"github.com/adapterframework/eacore/internal/oracle"
)

// symbolOverride implements the built-in symbolOverrider transform
// (spec §4.G step 1): a per-request override supplied in
// data.overrides[adapterNameLower][base] wins; otherwise the endpoint's
// static overrides[base] applies if present. Neither source present
// leaves data untouched.
func symbolOverride(adapterName string, data oracle.InputParams, staticOverrides map[string]string) oracle.InputParams {
	base, ok := data["base"].(string)
	if !ok || base == "" {
		return data
	}

	if replaced, ok := requestOverride(adapterName, data, base); ok {
		return withBase(data, replaced)
	}

	if replaced, ok := staticOverrides[strings.ToUpper(base)]; ok {
		return withBase(data, replaced)
	}

	return data
}

func requestOverride(adapterName string, data oracle.InputParams, base string) (string, bool) {
	rawOverrides, ok := data["overrides"].(map[string]interface{})
	if !ok {
		return "", false
	}
	adapterOverrides, ok := rawOverrides[strings.ToLower(adapterName)].(map[string]interface{})
	if !ok {
		return "", false
	}
	replaced, ok := adapterOverrides[base].(string)
	if !ok {
		return "", false
	}
	return replaced, true
}

func withBase(data oracle.InputParams, base string) oracle.InputParams {
	out := make(oracle.InputParams, len(data))
	for k, v := range data {
		out[k] = v
	}
	out["base"] = base
	return out
}
