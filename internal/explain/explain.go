// Package explain turns a passage of text into a plain-language
// explanation using a generative-language model.
package explain

import (
	"context"
	"errors"
)

// PromptPrefix precedes the paragraph in every request.
const PromptPrefix = "Explain this paragraph in simple language:\n\n"

// ErrNoAPIKey is returned when the provider credential is missing.
var ErrNoAPIKey = errors.New("explain: api key not configured")

// Explainer is the capability the HTTP layer depends on.
type Explainer interface {
	Explain(ctx context.Context, paragraph string) (string, error)
}

// Prompt wraps paragraph in the fixed instruction.
func Prompt(paragraph string) string {
	return PromptPrefix + paragraph
}

// Func adapts an ordinary function to Explainer.
type Func func(ctx context.Context, paragraph string) (string, error)

func (f Func) Explain(ctx context.Context, paragraph string) (string, error) {
	return f(ctx, paragraph)
}
