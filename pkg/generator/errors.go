package generator

import (
	"errors"
	"fmt"

	"github.com/magus-names/magus/pkg/models"
)

// ErrConfiguration marks template problems that make generation impossible.
// Requests hitting it are rejected, never retried.
var ErrConfiguration = errors.New("culture configuration error")

// ConfigError describes which part of a template could not be used.
type ConfigError struct {
	Culture  string
	Position models.Position
	Pattern  string
	Symbol   string
	Reason   string
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("culture %q", e.Culture)
	if e.Position != "" {
		msg += fmt.Sprintf(" position %s", e.Position)
	}
	if e.Pattern != "" {
		msg += fmt.Sprintf(" pattern %q", e.Pattern)
	}
	if e.Symbol != "" {
		msg += fmt.Sprintf(" symbol %s", e.Symbol)
	}
	return msg + ": " + e.Reason
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }
