package adk

import (
	"context"
	"errors"
	"fmt"
)

var ErrUnknownProvider = errors.New("unknown provider")

// Providers lists the supported provider names.
var Providers = []string{"gemini"}

func NewProvider(ctx context.Context, providerName, apiKey, modelName string) (LLMProvider, error) {
	switch providerName {
	case "gemini", "":
		return NewGeminiProvider(ctx, apiKey, modelName)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}
}
