package common

import (
	"fmt"
	"strings"
)

// SplitSymbol separates "BTC-USD" into its base and quote assets.
func SplitSymbol(symbol string) (base, quote string, err error) {
	parts := strings.Split(symbol, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("symbol %q is not in BASE-QUOTE form", symbol)
	}
	return parts[0], parts[1], nil
}
