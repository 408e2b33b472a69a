package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/quickjot/quickjot/llm"
)

// Enhancement is the title/summary pair produced for a reading note.
type Enhancement struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// TitleFetcher produces an enhancement from the page itself, used as a
// local fallback when the LLM enhancement call fails. Returns nil on any
// failure; the caller treats nil as "no enhancement", not as an error.
type TitleFetcher func(ctx context.Context, link string) *Enhancement

// enhanceReading issues the secondary schema-constrained call that adds a
// title and summary to a reading note. Any failure (timeout, non-2xx,
// unparseable output) yields nil and the note keeps its original metadata.
func (p *Pipeline) enhanceReading(ctx context.Context, content, link string) *Enhancement {
	resp, err := p.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: EnhancePrompt(link)},
			{Role: "user", Content: fmt.Sprintf("Please extract title and summary for this reading content: %q\n\nURL: %s", content, link)},
		},
		Schema:    EnhanceSchema(),
		MaxTokens: 150,
		Caller:    "enhance-reading",
	})
	if err != nil {
		p.logger.Warn("Failed to enhance reading metadata",
			"link", link,
			"error", err)
		return p.enhanceFallback(ctx, link)
	}

	var enh Enhancement
	if err := json.Unmarshal([]byte(resp.Content), &enh); err != nil {
		p.logger.Warn("Failed to parse enhanced reading metadata",
			"link", link,
			"error", err)
		return p.enhanceFallback(ctx, link)
	}
	if enh.Title == "" {
		return p.enhanceFallback(ctx, link)
	}

	return &enh
}

func (p *Pipeline) enhanceFallback(ctx context.Context, link string) *Enhancement {
	if p.fetchTitle == nil {
		return nil
	}
	return p.fetchTitle(ctx, link)
}

// ReadabilityFetcher builds a TitleFetcher that downloads the page and
// extracts its title and excerpt with go-readability. No LLM call is made.
func ReadabilityFetcher(timeout time.Duration, logger *slog.Logger) TitleFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, link string) *Enhancement {
		article, err := readability.FromURL(link, timeout)
		if err != nil {
			logger.Warn("Readability fetch failed",
				"link", link,
				"error", err)
			return nil
		}
		if article.Title == "" {
			return nil
		}
		return &Enhancement{
			Title:   article.Title,
			Summary: article.Excerpt,
		}
	}
}
