package ai

import (
	"errors"
	"fmt"

	"github.com/kiranshivaraju/feedlens/internal/ai/llm"
)

var (
	ErrQuestionNotFound = fmt.Errorf("clarifying question %w", llm.ErrNotFound)
	ErrArtifactNotFound = fmt.Errorf("follow-up artifact %w", llm.ErrNotFound)

	ErrNoResult                = errors.New("analysis has no result yet")
	ErrEmptyAnswer             = errors.New("answer must not be empty")
	ErrRoundsExhausted         = errors.New("clarification rounds exhausted without a result")
	ErrModelListingUnsupported = errors.New("provider cannot list installed models")
)
