// Package insight reserves the surface for AI-generated analysis of cached
// market data. Generation is not implemented; every call reports the feature
// as disabled so clients can render a consistent placeholder.
package insight

import "context"

// Result is the outcome of a connectivity test against an analysis backend.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Insight is a generated narrative for a symbol.
type Insight struct {
	Enabled bool   `json:"enabled"`
	Symbol  string `json:"symbol,omitempty"`
	Text    string `json:"text,omitempty"`
}

// TestBackend checks whether the named analysis backend is reachable with
// the given settings. No backends are wired in, so it always reports failure.
func TestBackend(_ context.Context, name string, _ map[string]string) Result {
	return Result{
		Success: false,
		Message: "analysis backend " + name + " is not available in this build",
	}
}

// Generate produces an insight for symbol. Always disabled.
func Generate(_ context.Context, symbol string) Insight {
	return Insight{Enabled: false, Symbol: symbol}
}
