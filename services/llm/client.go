package llm

import "context"

// ModelTier selects which configured model serves a request.
type ModelTier string

const (
	// TierStandard is the inexpensive default model for routine steps.
	TierStandard ModelTier = "standard"

	// TierPremium is the stronger model reserved for synthesis and review.
	TierPremium ModelTier = "premium"
)

type GenerationParams struct {
	Tier        ModelTier `json:"tier"`
	Temperature *float32  `json:"temperature"`
	TopK        *int      `json:"top_k"`
	TopP        *float32  `json:"top_p"`
	MaxTokens   *int      `json:"max_tokens"`
	Stop        []string  `json:"stop"`
}

// Client defines the standard interface for any LLM backend.
// Generate produces a completion for a system prompt plus user prompt pair.
type Client interface {
	Generate(ctx context.Context, system, user string, params GenerationParams) (string, error)
}

// DefaultParams returns the per-tier parameter defaults. Premium gets the
// larger completion budget; callers override Temperature per role.
func DefaultParams(tier ModelTier) GenerationParams {
	maxTokens := 1024
	if tier == TierPremium {
		maxTokens = 2048
	}
	return GenerationParams{
		Tier:      tier,
		MaxTokens: Int(maxTokens),
	}
}

// Float32 returns a pointer to v, for optional GenerationParams fields.
func Float32(v float32) *float32 { return &v }

// Int returns a pointer to v, for optional GenerationParams fields.
func Int(v int) *int { return &v }
