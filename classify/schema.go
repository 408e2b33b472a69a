// Package classify implements the note classification pipeline: prompt
// construction, the schema-constrained LLM call, fallback parsing of model
// output, category validation, reading enhancement, and persistence of the
// result. Classification is best-effort by contract: internal failures
// degrade to a safe default rather than blocking note capture.
package classify

import (
	"encoding/json"

	"github.com/quickjot/quickjot/note"
)

// Static JSON Schemas constraining LLM output shape. All schemas forbid
// additional properties so the model cannot invent metadata keys.
var (
	taskSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"due_date": {"type": "string"},
			"cleaned_content": {"type": "string"}
		},
		"additionalProperties": false
	}`)

	ideaSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"title": {"type": "string"},
			"summary": {"type": "string"}
		},
		"required": ["title", "summary"],
		"additionalProperties": false
	}`)

	meetingSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"title": {"type": "string"},
			"date": {"type": "string"},
			"time": {"type": "string"}
		},
		"additionalProperties": false
	}`)

	readingSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"link": {"type": "string"},
			"title": {"type": "string"},
			"summary": {"type": "string"}
		},
		"additionalProperties": false
	}`)

	classificationSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"category": {
				"type": "string",
				"enum": ["task", "idea", "journal", "meeting", "reading", "misc"]
			},
			"metadata": {
				"type": "object",
				"properties": {
					"due_date": {"type": "string"},
					"title": {"type": "string"},
					"summary": {"type": "string"},
					"date": {"type": "string"},
					"time": {"type": "string"},
					"link": {"type": "string"},
					"cleaned_content": {"type": "string"}
				},
				"additionalProperties": false
			},
			"cleaned_content": {"type": "string"}
		},
		"required": ["category", "metadata"],
		"additionalProperties": false
	}`)

	enhanceSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"title": {"type": "string"},
			"summary": {"type": "string"}
		},
		"required": ["title", "summary"],
		"additionalProperties": false
	}`)
)

// MetadataSchema returns the metadata schema for a category. The second
// return is false for categories that never carry extracted metadata
// (journal, misc); callers must skip extraction for those.
func MetadataSchema(c note.Category) (json.RawMessage, bool) {
	switch c {
	case note.CategoryTask:
		return taskSchema, true
	case note.CategoryIdea:
		return ideaSchema, true
	case note.CategoryMeeting:
		return meetingSchema, true
	case note.CategoryReading:
		return readingSchema, true
	case note.CategoryJournal, note.CategoryMisc:
		return nil, false
	}
	return nil, false
}

// ClassificationSchema returns the top-level schema for the unified
// one-shot classification call.
func ClassificationSchema() json.RawMessage {
	return classificationSchema
}

// EnhanceSchema returns the schema for the reading-enhancement call.
func EnhanceSchema() json.RawMessage {
	return enhanceSchema
}
