package prompts

import (
	"context"

	"github.com/SaiNageswarS/go-api-boot/llm"
	"github.com/SaiNageswarS/go-collection-boot/async"
)

// InferenceClient is the slice of llm.AnthropicClient the prompt functions
// need. Tests substitute a canned implementation.
type InferenceClient interface {
	GenerateInference(ctx context.Context, request *llm.AnthropicRequest) <-chan async.Result[string]
}
