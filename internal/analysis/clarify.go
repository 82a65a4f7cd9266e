// Package analysis holds the pure clarification-merging rules of the
// workflow. Nothing here performs I/O.
package analysis

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/feedlens/pkg/models"
)

const clarificationCategory = "clarification"

// MergeQuestions appends the incoming questions whose id is not already
// present. Existing questions keep their position and their answers; an
// incoming question never overwrites one. Duplicate ids within incoming are
// collapsed to the first occurrence. Returns an empty slice, never nil.
func MergeQuestions(existing, incoming []models.ClarifyingQuestion) []models.ClarifyingQuestion {
	merged := make([]models.ClarifyingQuestion, 0, len(existing)+len(incoming))
	seen := make(map[string]bool, len(existing)+len(incoming))

	for _, q := range existing {
		merged = append(merged, q)
		seen[q.ID] = true
	}
	for _, q := range incoming {
		if q.ID == "" || seen[q.ID] {
			continue
		}
		seen[q.ID] = true
		merged = append(merged, q)
	}
	return merged
}

// IsSatisfied reports whether every required question has a non-blank answer.
func IsSatisfied(questions []models.ClarifyingQuestion) bool {
	for _, q := range questions {
		if q.IsRequired && !answered(q) {
			return false
		}
	}
	return true
}

// AnsweredQuestions returns the questions that carry an answer, in order.
func AnsweredQuestions(questions []models.ClarifyingQuestion) []models.ClarifyingQuestion {
	out := make([]models.ClarifyingQuestion, 0, len(questions))
	for _, q := range questions {
		if answered(q) {
			out = append(out, q)
		}
	}
	return out
}

// FindQuestion returns the index of the question with the given id, or -1.
func FindQuestion(questions []models.ClarifyingQuestion, id string) int {
	for i, q := range questions {
		if q.ID == id {
			return i
		}
	}
	return -1
}

// HasPendingUserQuestion reports whether a question handed to the reporter is
// still unanswered.
func HasPendingUserQuestion(questions []models.ClarifyingQuestion) bool {
	for _, q := range questions {
		if q.PassedToUser && !answered(q) {
			return true
		}
	}
	return false
}

// AdminClarification wraps operator free text as an already-answered question.
func AdminClarification(text string, now time.Time) models.ClarifyingQuestion {
	return models.ClarifyingQuestion{
		ID:         "admin-" + uuid.NewString(),
		Question:   "Additional context from admin",
		IsRequired: false,
		Category:   clarificationCategory,
		Answer:     strings.TrimSpace(text),
		AnsweredBy: models.AnsweredByAdmin,
		AnsweredAt: &now,
	}
}

func answered(q models.ClarifyingQuestion) bool {
	return strings.TrimSpace(q.Answer) != ""
}
