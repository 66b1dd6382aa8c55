package agent

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/flowgrid/flowgrid/pkg/domain"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// estimateUsage approximates token usage for providers that do not report
// it, using the cl100k_base encoding. When the encoding is unavailable
// (offline first run) it falls back to a bytes/4 heuristic.
func estimateUsage(messages []domain.Message, completion string) domain.TokenUsage {
	var promptText string
	for _, msg := range messages {
		promptText += msg.Content
	}

	usage := domain.TokenUsage{
		PromptTokens:     countTokens(promptText),
		CompletionTokens: countTokens(completion),
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	return usage
}

func countTokens(text string) int {
	if text == "" {
		return 0
	}
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return len(text) / 4
	}
	return len(encoding.Encode(text, nil, nil))
}
