package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"osce-station/internal/casefile"
	"osce-station/internal/report"
	"osce-station/internal/station"
)

const (
	examinerSystemPrompt = "You are a senior UKMLA OSCE examiner giving structured feedback."
	examinerTemperature  = 0.4
	examinerMaxTokens    = 800
)

// FeedbackHeadings are the sections the examiner must cover, in order.
var FeedbackHeadings = []string{
	"Summary (max 3 lines)",
	"Score (/10)",
	"Missed Key Questions",
	"Differential Diagnoses",
	"Safety Netting",
	"Risk Factors",
	"Management Plan",
	"Investigations",
	"One Improvement Suggestion",
}

// Examiner is a report.NarrativeProvider backed by a chat model.
type Examiner struct {
	llm   Completer
	model string
}

func NewExaminer(llm Completer, model string) *Examiner {
	return &Examiner{llm: llm, model: model}
}

// Critique asks the model for structured examiner feedback. Errors are
// returned to the caller, which owns the fallback.
func (e *Examiner) Critique(ctx context.Context, s report.Summary, c *casefile.Case) (string, error) {
	if c == nil {
		return "", errors.New("examiner: no case")
	}
	out, err := e.llm.Complete(ctx, ChatRequest{
		Model: e.model,
		Messages: []Message{
			{Role: "system", Content: examinerSystemPrompt},
			{Role: "user", Content: BuildExaminerPrompt(s, c)},
		},
		Temperature: examinerTemperature,
		MaxTokens:   examinerMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("examiner feedback: %w", err)
	}
	return strings.TrimSpace(strings.ReplaceAll(out, "**", "")), nil
}

func BuildExaminerPrompt(s report.Summary, c *casefile.Case) string {
	var b strings.Builder
	b.WriteString("You are a UKMLA OSCE examiner providing structured and professional feedback.\n\n")

	b.WriteString("CASE DETAILS:\n")
	summary := s.CaseSummary
	if summary == "" {
		summary = c.Summary()
	}
	b.WriteString(summary)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "QUESTIONS: %s\n", quoteList(s.Questions))
	fmt.Fprintf(&b, "DUPLICATES: %s\n", quoteList(s.Duplicates))
	fmt.Fprintf(&b, "DOMAIN TAGS: Data: %s | Interpersonal: %s | Management: %s\n\n",
		tagList(s.Tags[station.DomainDataGathering]),
		tagList(s.Tags[station.DomainInterpersonal]),
		tagList(s.Tags[station.DomainManagement]),
	)

	b.WriteString("Give feedback under these headings:\n")
	for i, h := range FeedbackHeadings {
		fmt.Fprintf(&b, "%d. %s\n", i+1, h)
	}
	return b.String()
}

func quoteList(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = fmt.Sprintf("%q", it)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func tagList(tags []string) string {
	if len(tags) == 0 {
		return "none"
	}
	return strings.Join(tags, ", ")
}
