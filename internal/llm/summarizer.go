// Package llm provides LLM-based summary generation for the arXiv Pulse
// service.
//
// This package defines the abstractions and prompt engineering required to
// turn an English paper title and abstract into a short Chinese summary
// using an OpenAI-compatible chat completions API.
//
// Example usage:
//
//	summarizer := llm.NewOpenAIProvider(cfg, 0.3, 60*time.Second, 3)
//	summary, err := summarizer.Summarize(ctx, paper.Title, paper.Abstract)
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Summarizer defines the interface for LLM-based summary generation.
//
// Implementations handle provider-specific API calls, response parsing,
// and error handling while conforming to this unified interface.
type Summarizer interface {
	// Summarize generates a Chinese summary for the given title and
	// English abstract. The context should be used for cancellation and
	// deadline propagation. A successful call never returns an empty
	// summary.
	Summarize(ctx context.Context, title, abstract string) (string, error)

	// Provider returns the name of the LLM provider.
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}

// BuildSummaryPrompt builds the system and user prompts for summary
// generation. The system prompt sets the assistant's role; the user prompt
// carries the paper and the output constraints.
func BuildSummaryPrompt(title, abstract string) (systemPrompt, userPrompt string) {
	systemPrompt = "你是一个专业的学术论文摘要生成助手，擅长将英文学术论文转换为简洁易懂的中文摘要。"

	var sb strings.Builder
	sb.WriteString("请为以下学术论文生成一个简洁的中文摘要，要求：\n")
	sb.WriteString("1. 保持学术性但通俗易懂\n")
	sb.WriteString("2. 突出论文的主要贡献和创新点\n")
	sb.WriteString("3. 控制在 200 字以内\n\n")
	sb.WriteString(fmt.Sprintf("论文标题：%s\n\n", title))
	sb.WriteString(fmt.Sprintf("英文摘要：%s\n\n", abstract))
	sb.WriteString("请生成中文摘要：")

	return systemPrompt, sb.String()
}

// isTransientError reports whether the error may succeed on retry.
func isTransientError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsTransient()
	}
	return false
}
