package classify

import (
	"fmt"
	"time"

	"github.com/quickjot/quickjot/note"
)

// ISODate formats t as the YYYY-MM-DD anchor date interpolated into prompts
// so the model resolves relative expressions ("due tomorrow") correctly.
func ISODate(t time.Time) string {
	return t.Format("2006-01-02")
}

// ClassificationPrompt builds the system prompt for the unified one-shot
// classification call, embedding extraction rules for every category.
func ClassificationPrompt(today string) string {
	return fmt.Sprintf(`Classify the note content and extract metadata based on these rules:

For tasks:
- Extract due date from phrases like: "due tomorrow", "due next week", "by Friday", "deadline Monday", "needs to be done by [date]", "complete by [date]", specific dates like "January 15", "15th", "next Tuesday"
- Convert relative dates to ISO format (YYYY-MM-DD). Today is %[1]s
- Remove all due date references from the content to create a clean task description
- Example: "Fix the login bug due tomorrow" → cleaned_content: "Fix the login bug", metadata: {"due_date": "2024-12-26"}

For ideas:
- Extract "title" (short descriptive title) and "summary" (brief 1-2 sentence summary)

For meetings:
- Extract "title" (meeting title), "date" (ISO date string YYYY-MM-DD), "time" (HH:MM format) if present
- Convert relative dates to ISO format. Today is %[1]s
- Extract time in 24-hour format (e.g., "14:30" for 2:30 PM)

For reading:
- Extract "link" if URL found
- If no link found, extract "title" and "summary"

For other categories, include only clearly present metadata fields.

Only include cleaned_content for tasks when due dates are removed.`, today)
}

// CategoryPrompt builds the extraction rules for a single category.
// Unknown categories get a generic "extract clearly present fields"
// instruction; there is no error condition.
func CategoryPrompt(c note.Category, today string) string {
	switch c {
	case note.CategoryTask:
		return fmt.Sprintf(`Extract due date from phrases like: "due tomorrow", "due next week", "by Friday", "deadline Monday", "needs to be done by [date]", "complete by [date]", specific dates like "January 15", "15th", "next Tuesday". Convert relative dates to ISO format (YYYY-MM-DD). Today is %s. Remove all due date references from the content to create a clean task description.`, today)
	case note.CategoryIdea:
		return "Extract a short descriptive title and brief 1-2 sentence summary."
	case note.CategoryMeeting:
		return fmt.Sprintf(`Extract meeting title, date (ISO format YYYY-MM-DD), and time (24-hour format HH:MM) if present. Convert relative dates to ISO format. Today is %s.`, today)
	case note.CategoryReading:
		return "Extract link if URL found. If no link found, extract title and summary."
	default:
		return "Extract any relevant metadata fields that are clearly present in the content."
	}
}

// EnhancePrompt builds the system prompt for the reading-enhancement call.
// The model does not fetch the URL; it infers title and summary from the
// link text and note content.
func EnhancePrompt(link string) string {
	return fmt.Sprintf(`You are tasked with extracting title and summary for reading content. First, try to fetch information about the URL: %s. If you cannot access the URL, generate a reasonable title and summary based on the URL structure and any context provided by the user.`, link)
}
