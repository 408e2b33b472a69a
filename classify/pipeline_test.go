package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickjot/quickjot/llm"
	"github.com/quickjot/quickjot/note"
)

// completerStub returns canned responses in order, recording requests.
type completerStub struct {
	responses []string
	errs      []error
	requests  []llm.Request
}

func (c *completerStub) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	i := len(c.requests)
	c.requests = append(c.requests, req)

	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	content := ""
	if i < len(c.responses) {
		content = c.responses[i]
	}
	return &llm.Response{Content: content, Model: "test-model", FinishReason: "stop"}, nil
}

// storeStub records persistence calls.
type storeStub struct {
	classifications map[string]*Result
	metadata        map[string]note.Metadata
	updateErr       error
}

func newStoreStub() *storeStub {
	return &storeStub{
		classifications: make(map[string]*Result),
		metadata:        make(map[string]note.Metadata),
	}
}

func (s *storeStub) UpdateNoteClassification(_ context.Context, noteID string, category note.Category, metadata note.Metadata) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.classifications[noteID] = &Result{Category: category, Metadata: metadata}
	return nil
}

func (s *storeStub) UpdateNoteMetadata(_ context.Context, noteID string, metadata note.Metadata) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.metadata[noteID] = metadata
	return nil
}

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2024, 12, 25, 10, 0, 0, 0, time.UTC)
	}
}

func TestPipeline_Classify_Task(t *testing.T) {
	completer := &completerStub{
		responses: []string{`{"category": "task", "metadata": {"due_date": "2024-12-26"}, "cleaned_content": "Fix the login bug"}`},
	}
	store := newStoreStub()
	p := NewPipeline(completer, store, WithClock(fixedClock()))

	result, err := p.Classify(context.Background(), "note-1", "Fix the login bug due tomorrow")

	require.NoError(t, err)
	assert.Equal(t, note.CategoryTask, result.Category)
	assert.Equal(t, "2024-12-26", result.Metadata["due_date"])
	// The cleaned variant differs from the input, so it rides along in metadata.
	assert.Equal(t, "Fix the login bug", result.Metadata["cleaned_content"])

	// Persisted with the same category and metadata.
	require.Contains(t, store.classifications, "note-1")
	assert.Equal(t, note.CategoryTask, store.classifications["note-1"].Category)

	// The prompt is anchored to the injected clock.
	require.Len(t, completer.requests, 1)
	assert.Contains(t, completer.requests[0].Messages[0].Content, "2024-12-25")
	assert.Equal(t, "classify", completer.requests[0].Caller)
	assert.NotNil(t, completer.requests[0].Schema)
}

func TestPipeline_Classify_CleanedContentUnchangedNotStored(t *testing.T) {
	completer := &completerStub{
		responses: []string{`{"category": "task", "metadata": {}, "cleaned_content": "Buy milk"}`},
	}
	store := newStoreStub()
	p := NewPipeline(completer, store)

	result, err := p.Classify(context.Background(), "note-1", "Buy milk")

	require.NoError(t, err)
	assert.NotContains(t, result.Metadata, "cleaned_content")
}

func TestPipeline_Classify_BareLabelFallback(t *testing.T) {
	completer := &completerStub{responses: []string{"idea"}}
	store := newStoreStub()
	p := NewPipeline(completer, store)

	result, err := p.Classify(context.Background(), "note-1", "an app that waters plants")

	require.NoError(t, err)
	assert.Equal(t, note.CategoryIdea, result.Category)
	assert.Empty(t, result.Metadata)
}

func TestPipeline_Classify_UnknownLabelCoercedToMisc(t *testing.T) {
	completer := &completerStub{responses: []string{`{"category": "banana", "metadata": {}}`}}
	store := newStoreStub()
	p := NewPipeline(completer, store)

	result, err := p.Classify(context.Background(), "note-1", "some text")

	require.NoError(t, err)
	assert.Equal(t, note.CategoryMisc, result.Category)
}

func TestPipeline_Classify_LLMFailureDowngradesToMisc(t *testing.T) {
	completer := &completerStub{errs: []error{errors.New("provider down")}}
	store := newStoreStub()
	p := NewPipeline(completer, store)

	result, err := p.Classify(context.Background(), "note-1", "some text")

	require.NoError(t, err)
	assert.Equal(t, note.CategoryMisc, result.Category)
	assert.Empty(t, result.Metadata)

	// The downgrade is still persisted.
	require.Contains(t, store.classifications, "note-1")
	assert.Equal(t, note.CategoryMisc, store.classifications["note-1"].Category)
}

func TestPipeline_Classify_PersistFailureDoesNotSurface(t *testing.T) {
	completer := &completerStub{responses: []string{`{"category": "journal", "metadata": {}}`}}
	store := newStoreStub()
	store.updateErr = errors.New("disk full")
	p := NewPipeline(completer, store)

	result, err := p.Classify(context.Background(), "note-1", "dear diary")

	require.NoError(t, err)
	assert.Equal(t, note.CategoryJournal, result.Category)
}

func TestPipeline_Classify_Validation(t *testing.T) {
	p := NewPipeline(&completerStub{}, newStoreStub())

	_, err := p.Classify(context.Background(), "", "content")
	var missing *ErrMissingField
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "note_id", missing.Field)

	_, err = p.Classify(context.Background(), "note-1", "")
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "content", missing.Field)
}

func TestPipeline_Classify_ReadingEnhancement(t *testing.T) {
	completer := &completerStub{
		responses: []string{
			`{"category": "reading", "metadata": {"link": "https://example.com/post"}}`,
			`{"title": "A Great Post", "summary": "Worth reading."}`,
		},
	}
	store := newStoreStub()
	p := NewPipeline(completer, store)

	result, err := p.Classify(context.Background(), "note-1", "https://example.com/post")

	require.NoError(t, err)
	assert.Equal(t, note.CategoryReading, result.Category)
	assert.Equal(t, "A Great Post", result.Metadata["title"])
	assert.Equal(t, "Worth reading.", result.Metadata["summary"])

	// Two calls: classification then enhancement.
	require.Len(t, completer.requests, 2)
	assert.Equal(t, "enhance-reading", completer.requests[1].Caller)
}

func TestPipeline_Classify_ReadingEnhancementFailureKeepsMetadata(t *testing.T) {
	completer := &completerStub{
		responses: []string{
			`{"category": "reading", "metadata": {"link": "https://example.com/post"}}`,
			"",
		},
		errs: []error{nil, errors.New("enhance failed")},
	}
	store := newStoreStub()
	p := NewPipeline(completer, store)

	result, err := p.Classify(context.Background(), "note-1", "https://example.com/post")

	require.NoError(t, err)
	assert.Equal(t, note.CategoryReading, result.Category)
	assert.Equal(t, "https://example.com/post", result.Metadata["link"])
	assert.NotContains(t, result.Metadata, "title")
}

func TestPipeline_Classify_ReadingEnhancementFallbackFetcher(t *testing.T) {
	completer := &completerStub{
		responses: []string{
			`{"category": "reading", "metadata": {"link": "https://example.com/post"}}`,
			"not json at all",
		},
	}
	store := newStoreStub()

	fetched := false
	fetcher := func(_ context.Context, link string) *Enhancement {
		fetched = true
		assert.Equal(t, "https://example.com/post", link)
		return &Enhancement{Title: "Fetched Title", Summary: "Fetched excerpt"}
	}

	p := NewPipeline(completer, store, WithTitleFetcher(fetcher))

	result, err := p.Classify(context.Background(), "note-1", "https://example.com/post")

	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Equal(t, "Fetched Title", result.Metadata["title"])
	assert.Equal(t, "Fetched excerpt", result.Metadata["summary"])
}

func TestPipeline_ExtractMetadata(t *testing.T) {
	completer := &completerStub{
		responses: []string{`{"due_date": "2024-12-31"}`},
	}
	store := newStoreStub()
	p := NewPipeline(completer, store, WithClock(fixedClock()))

	metadata, err := p.ExtractMetadata(context.Background(), "note-1", "ship the release by new year", note.CategoryTask)

	require.NoError(t, err)
	assert.Equal(t, "2024-12-31", metadata["due_date"])

	// Replaced, not merged.
	assert.Equal(t, metadata, store.metadata["note-1"])

	require.Len(t, completer.requests, 1)
	assert.Equal(t, "extract-metadata", completer.requests[0].Caller)
	assert.Contains(t, completer.requests[0].Messages[0].Content, "task")
}

func TestPipeline_ExtractMetadata_SkipsJournalAndMisc(t *testing.T) {
	completer := &completerStub{}
	store := newStoreStub()
	p := NewPipeline(completer, store)

	for _, cat := range []note.Category{note.CategoryJournal, note.CategoryMisc} {
		metadata, err := p.ExtractMetadata(context.Background(), "note-1", "content", cat)
		require.NoError(t, err)
		assert.Empty(t, metadata)
	}

	// No LLM calls for categories without a metadata schema.
	assert.Empty(t, completer.requests)
}

func TestPipeline_ExtractMetadata_LLMFailureReturnsEmpty(t *testing.T) {
	completer := &completerStub{errs: []error{errors.New("provider down")}}
	store := newStoreStub()
	p := NewPipeline(completer, store)

	metadata, err := p.ExtractMetadata(context.Background(), "note-1", "content", note.CategoryIdea)

	require.NoError(t, err)
	assert.Empty(t, metadata)
}

func TestPipeline_ExtractMetadata_UnparseableReturnsEmpty(t *testing.T) {
	completer := &completerStub{responses: []string{"garbage output"}}
	store := newStoreStub()
	p := NewPipeline(completer, store)

	metadata, err := p.ExtractMetadata(context.Background(), "note-1", "content", note.CategoryMeeting)

	require.NoError(t, err)
	assert.Empty(t, metadata)
}

func TestParseClassification_MarkdownFence(t *testing.T) {
	out := parseClassification("```json\n{\"category\": \"idea\", \"metadata\": {\"title\": \"x\"}}\n```", "orig")

	assert.Equal(t, "idea", out.Category)
	assert.Equal(t, "x", out.Metadata["title"])
}
