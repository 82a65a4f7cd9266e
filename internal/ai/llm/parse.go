package llm

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/kiranshivaraju/feedlens/pkg/models"
)

// DegradedSummary is the summary of a result whose raw response could not be parsed.
const DegradedSummary = "Analysis failed – could not parse AI response"

const defaultCategory = "general"

type wireAnalysis struct {
	Summary          string         `json:"summary"`
	ConfirmedFacts   *[]string      `json:"confirmedFacts"`
	Confidence       string         `json:"confidence"`
	SuggestedActions *[]string      `json:"suggestedActions"`
	AffectedAreas    []string       `json:"affectedAreas"`
	Questions        []wireQuestion `json:"questions"`
}

type wireQuestion struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	IsRequired bool   `json:"isRequired"`
	Category   string `json:"category"`
}

// DegradedResult is returned in place of a diagnosis the model failed to produce.
func DegradedResult() models.AnalysisResult {
	return models.AnalysisResult{
		Summary:          DegradedSummary,
		ConfirmedFacts:   []string{},
		Confidence:       models.ConfidenceLow,
		SuggestedActions: []string{"Retry analysis", "Review raw response"},
	}
}

// ParseAnalysis extracts the structured diagnosis and any clarifying questions
// from raw model output. It never fails: when the output holds no valid
// object of the expected shape, the degraded result and no questions are
// returned and ok is false.
func ParseAnalysis(raw string) (result models.AnalysisResult, questions []models.ClarifyingQuestion, ok bool) {
	obj, found := ExtractJSON(raw)
	if !found {
		return DegradedResult(), []models.ClarifyingQuestion{}, false
	}

	var w wireAnalysis
	if err := json.Unmarshal([]byte(obj), &w); err != nil {
		return DegradedResult(), []models.ClarifyingQuestion{}, false
	}

	confidence, valid := parseConfidence(w.Confidence)
	if strings.TrimSpace(w.Summary) == "" || !valid || w.ConfirmedFacts == nil || w.SuggestedActions == nil {
		return DegradedResult(), []models.ClarifyingQuestion{}, false
	}

	result = models.AnalysisResult{
		Summary:          strings.TrimSpace(w.Summary),
		ConfirmedFacts:   nonNil(*w.ConfirmedFacts),
		Confidence:       confidence,
		SuggestedActions: nonNil(*w.SuggestedActions),
		AffectedAreas:    w.AffectedAreas,
	}

	questions = make([]models.ClarifyingQuestion, 0, len(w.Questions))
	for _, q := range w.Questions {
		text := strings.TrimSpace(q.Question)
		if text == "" {
			continue
		}
		id := strings.TrimSpace(q.ID)
		if id == "" {
			id = questionID(text)
		}
		category := strings.TrimSpace(q.Category)
		if category == "" {
			category = defaultCategory
		}
		questions = append(questions, models.ClarifyingQuestion{
			ID:         id,
			Question:   text,
			IsRequired: q.IsRequired,
			Category:   category,
		})
	}
	return result, questions, true
}

// ExtractJSON returns the first balanced JSON object embedded in s. Models
// often wrap their answer in prose or Markdown code fences.
func ExtractJSON(s string) (string, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end := matchBrace(s, start); end > start {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBrace returns the index of the brace closing the one at s[start], or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func parseConfidence(s string) (models.Confidence, bool) {
	switch models.Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case models.ConfidenceLow:
		return models.ConfidenceLow, true
	case models.ConfidenceMedium:
		return models.ConfidenceMedium, true
	case models.ConfidenceHigh:
		return models.ConfidenceHigh, true
	}
	return "", false
}

// questionID derives a stable id from the question text so a model that asks
// the same thing again in a later round does not produce a duplicate.
func questionID(text string) string {
	sum := sha1.Sum([]byte(strings.ToLower(text)))
	return "q-" + hex.EncodeToString(sum[:4])
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
