// Copyright 2026 EA Core Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package endpoint

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/adapterframework/eacore/internal/oracle"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// validateTagged applies each declared parameter's ValidateTag (a
// go-playground/validator tag expression, e.g. "oneof=BTC ETH") to the
// value present in data, if any. Parameters with no ValidateTag, or
// absent from the request, are skipped — required-ness is checked
// separately in validateRequired.
func validateTagged(data oracle.InputParams, params []InputParameter) error {
	v := getValidator()
	for _, p := range params {
		if p.ValidateTag == "" {
			continue
		}
		value, ok := data[p.Name]
		if !ok || value == nil {
			continue
		}
		if err := v.Var(value, p.ValidateTag); err != nil {
			return oracle.Input(fmt.Sprintf("parameter %q failed validation %q", p.Name, p.ValidateTag), err)
		}
	}
	return nil
}
