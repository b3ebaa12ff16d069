// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package filters

import (
	"fmt"
	"strings"
)

// Currency identifies the chain a filter was built for.
type Currency uint8

// These constants define the supported chains.
const (
	BTC Currency = iota
	Ergo
)

// Map of currencies back to their ticker for pretty printing.
var currencyStrings = map[Currency]string{
	BTC:  "BTC",
	Ergo: "ERGO",
}

// String returns the currency ticker.
func (c Currency) String() string {
	if s, ok := currencyStrings[c]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Currency (%d)", uint8(c))
}

// ParseCurrency returns the currency with the passed ticker, ignoring case.
func ParseCurrency(s string) (Currency, error) {
	for c, ticker := range currencyStrings {
		if strings.EqualFold(s, ticker) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCurrency, s)
}
