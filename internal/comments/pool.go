// Package comments supplies the text used for reply actions during
// engagement runs.
package comments

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// Pool hands out comment text for reply actions. Operators load a fixed list;
// when an OpenAI key is configured each pick is paraphrased so repeated
// replies do not read identically. Paraphrase failures fall back to the
// original text.
type Pool struct {
	logger *slog.Logger
	client *openai.Client

	mu      sync.Mutex
	entries []string
	rng     *rand.Rand
}

// NewPool creates a pool without AI variation.
func NewPool(entries []string, logger *slog.Logger) *Pool {
	return &Pool{
		logger:  logger,
		entries: cleanEntries(entries),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewPoolWithVariation creates a pool that paraphrases each pick.
func NewPoolWithVariation(entries []string, apiKey string, logger *slog.Logger) *Pool {
	p := NewPool(entries, logger)
	if apiKey != "" {
		p.client = openai.NewClient(apiKey)
	}
	return p
}

func cleanEntries(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if trimmed := strings.TrimSpace(e); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Replace swaps the pool contents.
func (p *Pool) Replace(entries []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = cleanEntries(entries)
}

// Entries returns a copy of the current pool.
func (p *Pool) Entries() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.entries...)
}

// Len reports the number of loaded comments.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Pick returns one comment, paraphrased when variation is enabled.
func (p *Pool) Pick(ctx context.Context) (string, error) {
	p.mu.Lock()
	if len(p.entries) == 0 {
		p.mu.Unlock()
		return "", fmt.Errorf("comment pool is empty")
	}
	base := p.entries[p.rng.Intn(len(p.entries))]
	p.mu.Unlock()

	if p.client == nil {
		return base, nil
	}

	varied, err := p.paraphrase(ctx, base)
	if err != nil {
		p.logger.Warn("comment variation failed, using original", "error", err)
		return base, nil
	}
	return varied, nil
}

func (p *Pool) paraphrase(ctx context.Context, text string) (string, error) {
	apiCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(apiCtx, openai.ChatCompletionRequest{
		Model:       openai.GPT4oMini,
		Temperature: 0.9,
		MaxTokens:   120,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Rewrite the user's social media comment with the same meaning and tone but different wording. Keep it short and casual. Reply with the rewritten comment only.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	varied := strings.TrimSpace(resp.Choices[0].Message.Content)
	if varied == "" {
		return "", fmt.Errorf("chat completion returned empty text")
	}
	return varied, nil
}
