package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/kiranshivaraju/feedlens/pkg/models"
)

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// printAnalysis renders an analysis record for humans.
func printAnalysis(w io.Writer, a *models.FeedbackAnalysis) error {
	fmt.Fprintf(w, "Feedback:  %s\n", a.FeedbackID)
	fmt.Fprintf(w, "Status:    %s\n", a.Status)
	fmt.Fprintf(w, "Round:     %d/%d\n", a.QuestionRound, a.MaxRounds)
	if a.ModelID != "" {
		fmt.Fprintf(w, "Model:     %s/%s\n", a.Provider, a.ModelID)
	}

	if a.Error != nil {
		retry := ""
		if a.Error.Retryable {
			retry = " (retryable)"
		}
		fmt.Fprintf(w, "\nError: %s: %s%s\n", a.Error.Code, a.Error.Message, retry)
	}

	if r := a.Result; r != nil {
		fmt.Fprintf(w, "\nSummary (%s confidence):\n  %s\n", r.Confidence, r.Summary)
		printList(w, "Confirmed facts", r.ConfirmedFacts)
		printList(w, "Suggested actions", r.SuggestedActions)
		printList(w, "Affected areas", r.AffectedAreas)
	}

	if len(a.ClarifyingQuestions) > 0 {
		fmt.Fprintln(w, "\nQuestions:")
		tw := newTable(w)
		fmt.Fprintln(tw, "  ID\tREQUIRED\tSTATE\tQUESTION")
		for _, q := range a.ClarifyingQuestions {
			fmt.Fprintf(tw, "  %s\t%t\t%s\t%s\n", q.ID, q.IsRequired, questionState(q), q.Question)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(a.FollowUpArtifacts) > 0 {
		fmt.Fprintln(w, "\nFollow-ups:")
		for _, f := range a.FollowUpArtifacts {
			copied := ""
			if f.Copied {
				copied = " (copied)"
			}
			fmt.Fprintf(w, "  %s  %s%s\n", f.ID, f.GeneratedAt.Format("2006-01-02 15:04"), copied)
		}
	}

	if u := a.TokenUsage; u != nil {
		fmt.Fprintf(w, "\nTokens: %d in / %d out", u.Input, u.Output)
		if u.EstimatedCost != nil {
			fmt.Fprintf(w, " (~$%.4f)", *u.EstimatedCost)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", it)
	}
}

func questionState(q models.ClarifyingQuestion) string {
	switch {
	case q.Answer != "":
		by := q.AnsweredBy
		if by == "" {
			by = "user"
		}
		return "answered by " + by
	case q.PassedToUser:
		return "with reporter"
	default:
		return "open"
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
