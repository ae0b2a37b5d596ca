package llm

import (
	"context"
	"fmt"
)

// ModelVariant selects which backend model handles a generation request.
type ModelVariant string

const (
	// VariantPrimary is used for player-visible narrative and classification.
	VariantPrimary ModelVariant = "primary"

	// VariantFast selects a cheaper model for high-frequency, low-stakes
	// calls such as psychology updates and cost estimates.
	VariantFast ModelVariant = "fast"
)

// Generator is the contract for LLM text generation. Implementations are
// stateless across invocations and own their retry/backoff behavior.
type Generator interface {
	Generate(ctx context.Context, prompt string, variant ModelVariant) (string, error)
}

// GenerationError is returned when a backend request fails after
// exhausting all retries. Callers distinguish it from an empty
// completion, which is a bug rather than an error.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
