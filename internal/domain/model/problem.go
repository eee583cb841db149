package model

import (
	"time"
)

type ProblemDifficulty string

const (
	DifficultyEasy   ProblemDifficulty = "easy"
	DifficultyMedium ProblemDifficulty = "medium"
	DifficultyHard   ProblemDifficulty = "hard"
)

// ValidTags is the fixed set of problem categories.
var ValidTags = map[string]bool{
	"array":       true,
	"linked list": true,
	"graph":       true,
	"tree":        true,
	"stack":       true,
	"queue":       true,
	"dp":          true,
	"strings":     true,
	"search":      true,
}

func ValidDifficulty(d ProblemDifficulty) bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

type Problem struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Slug        string            `json:"slug"`
	Description string            `json:"description"`
	Difficulty  ProblemDifficulty `json:"difficulty"`
	Tag         string            `json:"tag"`
	CreatedByID *string           `json:"created_by_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`

	VisibleTestCases   []VisibleTestCase   `json:"visible_test_cases,omitempty"`
	HiddenTestCases    []HiddenTestCase    `json:"hidden_test_cases,omitempty"` // Admin only view
	StarterCodes       []StarterCode       `json:"starter_codes,omitempty"`
	ReferenceSolutions []ReferenceSolution `json:"reference_solutions,omitempty"` // Admin only view

	CreatedByUsername *string `json:"created_by_username,omitempty"` // For display
}

// VisibleTestCase is an example shown to the user; its explanation is required.
type VisibleTestCase struct {
	ID             string    `json:"id"`
	ProblemID      string    `json:"problem_id"`
	Input          string    `json:"input"`
	ExpectedOutput string    `json:"expected_output"`
	Explanation    string    `json:"explanation"`
	SortOrder      int       `json:"sort_order"`
	CreatedAt      time.Time `json:"created_at"`
}

// HiddenTestCase is the source of truth for grading correctness.
type HiddenTestCase struct {
	ID             string    `json:"id"`
	ProblemID      string    `json:"problem_id"`
	Input          string    `json:"input"`
	ExpectedOutput string    `json:"expected_output"`
	SortOrder      int       `json:"sort_order"`
	CreatedAt      time.Time `json:"created_at"`
}

type StarterCode struct {
	ID        string `json:"id"`
	ProblemID string `json:"problem_id"`
	Language  string `json:"language"`
	Code      string `json:"code"`
}

type ReferenceSolution struct {
	ID        string `json:"id"`
	ProblemID string `json:"problem_id"`
	Language  string `json:"language"`
	Code      string `json:"code"`
}
