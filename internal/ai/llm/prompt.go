package llm

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/kiranshivaraju/feedlens/pkg/models"
)

// SystemPrompt instructs the model to answer with a single JSON object.
const SystemPrompt = `You are a support engineer triaging user feedback for a software product.
Respond with exactly one JSON object and nothing else, using this shape:
{
  "summary": "one paragraph diagnosis",
  "confirmedFacts": ["facts established by the report or by answers"],
  "confidence": "low" | "medium" | "high",
  "suggestedActions": ["concrete next steps for the engineering team"],
  "affectedAreas": ["modules or screens likely involved"],
  "questions": [
    {"id": "short-stable-id", "question": "what you still need to know", "isRequired": true, "category": "reproduction" | "environment" | "expectation" | "other"}
  ]
}
Only ask questions whose answers would change the diagnosis. Return an empty
"questions" array when the report is clear enough.`

// BuildAnalysisPrompt renders the user prompt for one analysis round.
func BuildAnalysisPrompt(report models.FeedbackReport, previous []models.ClarifyingQuestion, opts models.AnalyzeOptions) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Feedback type: %s\n", report.Type)
	fmt.Fprintf(&b, "Title: %s\n", report.Title)
	if c := report.Context; c.Module != "" || c.Tab != "" || c.Device != "" {
		fmt.Fprintf(&b, "Context: module=%q tab=%q device=%q\n", c.Module, c.Tab, c.Device)
	}
	b.WriteString("\nDescription:\n")
	b.WriteString(strings.TrimSpace(report.Description))
	b.WriteString("\n")

	if len(previous) > 0 {
		b.WriteString("\nAnswers to earlier clarifying questions:\n")
		for _, q := range previous {
			fmt.Fprintf(&b, "- [%s] %s\n  Answer (%s): %s\n", q.ID, q.Question, q.AnsweredBy, q.Answer)
		}
		b.WriteString("\nDo not repeat questions that are already answered.\n")
	}

	if opts.MaxRounds > 0 {
		fmt.Fprintf(&b, "\nThis is clarification round %d of at most %d.", opts.Round, opts.MaxRounds)
		if opts.Round >= opts.MaxRounds {
			b.WriteString(" No further questions can be asked; give your best final diagnosis.")
		}
		b.WriteString("\n")
	}

	return b.String()
}

var followUpTemplate = template.Must(template.New("follow-up").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Parse(
	`Fix the following issue reported by a user.

## Report
Type: {{.Report.Type}}
Title: {{.Report.Title}}
{{- with .Report.Context}}{{if .Module}}
Module: {{.Module}}{{end}}{{if .Tab}}
Tab: {{.Tab}}{{end}}{{if .Device}}
Device: {{.Device}}{{end}}{{end}}

{{.Report.Description}}

## Diagnosis ({{.Result.Confidence}} confidence)
{{.Result.Summary}}
{{- if .Result.ConfirmedFacts}}

## Confirmed facts
{{range .Result.ConfirmedFacts}}- {{.}}
{{end}}{{end}}
{{- if .Result.AffectedAreas}}
## Likely affected areas
{{range .Result.AffectedAreas}}- {{.}}
{{end}}{{end}}
{{- if .Result.SuggestedActions}}
## Suggested actions
{{range $i, $a := .Result.SuggestedActions}}{{inc $i}}. {{$a}}
{{end}}{{end}}
Keep the change minimal and explain how you verified it.
`))

// BuildFollowUpPrompt renders a remediation prompt from a finished diagnosis.
func BuildFollowUpPrompt(report models.FeedbackReport, result models.AnalysisResult) string {
	var b strings.Builder
	data := struct {
		Report models.FeedbackReport
		Result models.AnalysisResult
	}{report, result}
	if err := followUpTemplate.Execute(&b, data); err != nil {
		return fmt.Sprintf("%s\n\n%s", report.Title, result.Summary)
	}
	return b.String()
}
