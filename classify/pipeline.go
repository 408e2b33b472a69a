package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quickjot/quickjot/llm"
	"github.com/quickjot/quickjot/note"
)

// Completer is the LLM surface the pipeline depends on.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Store persists classification results onto note records.
type Store interface {
	// UpdateNoteClassification sets category and metadata in one write.
	UpdateNoteClassification(ctx context.Context, noteID string, category note.Category, metadata note.Metadata) error

	// UpdateNoteMetadata replaces a note's metadata.
	UpdateNoteMetadata(ctx context.Context, noteID string, metadata note.Metadata) error
}

// Result is the transient outcome of one classification. It is merged into
// the note record, never persisted as its own entity.
type Result struct {
	Category note.Category `json:"category"`
	Metadata note.Metadata `json:"metadata"`
}

// ErrMissingField is returned when a required request field is absent.
// Handlers surface it as a 400.
type ErrMissingField struct {
	Field string
}

func (e *ErrMissingField) Error() string {
	return fmt.Sprintf("missing %s", e.Field)
}

// Pipeline orchestrates prompt construction, the schema-constrained LLM
// call, fallback parsing, reading enhancement, and persistence.
type Pipeline struct {
	llm    Completer
	store  Store
	logger *slog.Logger

	// now anchors relative-date resolution; injectable for tests.
	now func() time.Time

	// fetchTitle, when set, is the local fallback used if the LLM
	// enhancement call fails for a reading note with a link.
	fetchTitle TitleFetcher
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithClock sets the time source used as the relative-date anchor.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithTitleFetcher enables the local reading-enhancement fallback.
func WithTitleFetcher(f TitleFetcher) PipelineOption {
	return func(p *Pipeline) {
		p.fetchTitle = f
	}
}

// NewPipeline creates a classification pipeline.
func NewPipeline(completer Completer, store Store, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		llm:    completer,
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// classificationOutput mirrors the classification schema.
type classificationOutput struct {
	Category       string        `json:"category"`
	Metadata       note.Metadata `json:"metadata"`
	CleanedContent string        `json:"cleaned_content"`
}

// Classify runs the full pipeline for one note. The note's category
// transitions null → classified exactly once via this path.
//
// Classification is best-effort: LLM failures, parse failures, and
// persistence failures all degrade to a usable result instead of an error.
// The only error return is request validation.
func (p *Pipeline) Classify(ctx context.Context, noteID, content string) (*Result, error) {
	if noteID == "" {
		return nil, &ErrMissingField{Field: "note_id"}
	}
	if content == "" {
		return nil, &ErrMissingField{Field: "content"}
	}

	today := ISODate(p.now())

	resp, err := p.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: ClassificationPrompt(today)},
			{Role: "user", Content: content},
		},
		Schema:    ClassificationSchema(),
		MaxTokens: 200,
		Caller:    "classify",
	})
	if err != nil {
		p.logger.Error("Classification call failed, downgrading to misc",
			"note_id", noteID,
			"error", err)
		result := &Result{Category: note.CategoryMisc, Metadata: note.Metadata{}}
		p.persist(ctx, noteID, result)
		return result, nil
	}

	out := parseClassification(resp.Content, content)

	category := note.ParseCategory(out.Category)
	metadata := out.Metadata
	if metadata == nil {
		metadata = note.Metadata{}
	}
	cleaned := out.CleanedContent
	if cleaned == "" {
		cleaned = content
	}

	// The note's content field is never overwritten; the cleaned task
	// variant travels in metadata only.
	if category == note.CategoryTask && cleaned != content {
		metadata["cleaned_content"] = cleaned
	}

	if category == note.CategoryReading {
		if link, ok := metadata["link"].(string); ok && link != "" {
			if enh := p.enhanceReading(ctx, content, link); enh != nil {
				metadata["title"] = enh.Title
				metadata["summary"] = enh.Summary
			}
		}
	}

	result := &Result{Category: category, Metadata: metadata}
	p.persist(ctx, noteID, result)

	p.logger.Info("Note classified",
		"note_id", noteID,
		"category", category,
		"metadata_keys", len(metadata))

	return result, nil
}

// parseClassification decodes the model's message content. If it is not
// valid JSON (directly or wrapped in a markdown fence), the raw trimmed
// lower-cased content is treated as a bare category label with empty
// metadata and the original content as the cleaned fallback.
func parseClassification(raw, original string) classificationOutput {
	var out classificationOutput
	if err := json.Unmarshal([]byte(raw), &out); err == nil && out.Category != "" {
		return out
	}

	if extracted := llm.ExtractJSON(raw); extracted != "" {
		if err := json.Unmarshal([]byte(extracted), &out); err == nil && out.Category != "" {
			return out
		}
	}

	label := strings.ToLower(strings.TrimSpace(raw))
	return classificationOutput{
		Category:       string(note.ParseCategory(label)),
		Metadata:       note.Metadata{},
		CleanedContent: original,
	}
}

// ExtractMetadata re-runs metadata extraction for an already-categorized
// note, e.g. after a manual re-classification. Prior metadata is discarded;
// extraction starts from scratch for the new category. Journal and misc
// notes skip the LLM entirely and get an empty map.
func (p *Pipeline) ExtractMetadata(ctx context.Context, noteID, content string, category note.Category) (note.Metadata, error) {
	if noteID == "" {
		return nil, &ErrMissingField{Field: "note_id"}
	}
	if content == "" {
		return nil, &ErrMissingField{Field: "content"}
	}

	schema, ok := MetadataSchema(category)
	if !ok {
		return note.Metadata{}, nil
	}

	today := ISODate(p.now())
	systemPrompt := fmt.Sprintf("Extract metadata for a %s note. %s", category, CategoryPrompt(category, today))

	metadata := note.Metadata{}

	resp, err := p.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: content},
		},
		Schema:    schema,
		MaxTokens: 200,
		Caller:    "extract-metadata",
	})
	if err != nil {
		p.logger.Error("Metadata extraction call failed, returning empty metadata",
			"note_id", noteID,
			"category", category,
			"error", err)
		return metadata, nil
	}

	if err := json.Unmarshal([]byte(resp.Content), &metadata); err != nil {
		if extracted := llm.ExtractJSON(resp.Content); extracted != "" {
			err = json.Unmarshal([]byte(extracted), &metadata)
		}
		if err != nil {
			p.logger.Warn("Failed to parse extracted metadata",
				"note_id", noteID,
				"category", category,
				"error", err)
			metadata = note.Metadata{}
		}
	}

	if category == note.CategoryReading {
		if link, ok := metadata["link"].(string); ok && link != "" {
			if enh := p.enhanceReading(ctx, content, link); enh != nil {
				metadata["title"] = enh.Title
				metadata["summary"] = enh.Summary
			}
		}
	}

	if err := p.store.UpdateNoteMetadata(ctx, noteID, metadata); err != nil {
		p.logger.Error("Failed to persist extracted metadata",
			"note_id", noteID,
			"error", err)
	}

	return metadata, nil
}

// persist writes the classification result onto the note. Write failures
// are logged, never propagated; the caller's response is already decided.
func (p *Pipeline) persist(ctx context.Context, noteID string, result *Result) {
	if err := p.store.UpdateNoteClassification(ctx, noteID, result.Category, result.Metadata); err != nil {
		p.logger.Error("Failed to persist classification",
			"note_id", noteID,
			"category", result.Category,
			"error", err)
	}
}
