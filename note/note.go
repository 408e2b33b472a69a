// Package note defines the domain model for captured notes: the closed
// category enumeration, the note record itself, and the cost ledger entry
// written for every LLM call made on a note's behalf.
package note

import "time"

// Category is the fixed classification a note can receive.
// Unknown values never survive parsing; ParseCategory coerces them to misc.
type Category string

const (
	// CategoryTask is an actionable item, optionally with a due date.
	CategoryTask Category = "task"

	// CategoryIdea is a thought worth keeping, with a title and summary.
	CategoryIdea Category = "idea"

	// CategoryJournal is a diary-style entry. No metadata is extracted.
	CategoryJournal Category = "journal"

	// CategoryMeeting is a scheduled meeting with title, date, and time.
	CategoryMeeting Category = "meeting"

	// CategoryReading is a link or text to read later.
	CategoryReading Category = "reading"

	// CategoryMisc is everything else, and the coercion target for any
	// category string the model invents.
	CategoryMisc Category = "misc"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryTask,
	CategoryIdea,
	CategoryJournal,
	CategoryMeeting,
	CategoryReading,
	CategoryMisc,
}

// IsValid checks whether c is one of the six known categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryTask, CategoryIdea, CategoryJournal, CategoryMeeting, CategoryReading, CategoryMisc:
		return true
	}
	return false
}

// String returns the string representation of the category.
func (c Category) String() string {
	return string(c)
}

// ExtractsMetadata reports whether this category has a metadata schema.
// Journal and misc notes never carry extracted metadata.
func (c Category) ExtractsMetadata() bool {
	switch c {
	case CategoryTask, CategoryIdea, CategoryMeeting, CategoryReading:
		return true
	case CategoryJournal, CategoryMisc:
		return false
	}
	return false
}

// ParseCategory converts a raw string to a Category. Anything that is not
// one of the six known labels coerces to misc; model output is untrusted.
func ParseCategory(s string) Category {
	c := Category(s)
	if c.IsValid() {
		return c
	}
	return CategoryMisc
}

// Source indicates how a note entered the system.
type Source string

const (
	// SourceAuto marks notes submitted through the capture flow, which
	// triggers automatic classification.
	SourceAuto Source = "auto"

	// SourceManual marks notes entered with a category picked by hand.
	SourceManual Source = "manual"
)

// Metadata is the open key-value map attached to a classified note.
// The permitted keys depend on the category; see classify.MetadataSchema.
type Metadata = map[string]any

// Note is a captured piece of text. Content is immutable once classified;
// the cleaned task variant lives under metadata, never in Content.
type Note struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	Category  Category   `json:"category,omitempty"`
	Metadata  Metadata   `json:"metadata,omitempty"`
	Source    Source     `json:"source"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Classified reports whether the note has received a category.
func (n *Note) Classified() bool {
	return n.Category != ""
}

// CostEntry is one row of the append-only LLM cost ledger.
type CostEntry struct {
	// Endpoint tags the caller that triggered the LLM call
	// (e.g. "classify", "extract-metadata", "enhance-reading").
	Endpoint string `json:"endpoint"`

	// Model is the model name the call was billed against.
	Model string `json:"model"`

	// InputTokens and OutputTokens are heuristic estimates (chars/4),
	// not exact tokenizer counts.
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	// CostUSD is derived from the per-model price table.
	CostUSD float64 `json:"cost_usd"`

	// Date is the calendar day the call happened on (YYYY-MM-DD).
	Date string `json:"date"`
}
