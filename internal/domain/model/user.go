package model

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"` // Not exposed
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SolvedProblem is one entry of a user's solved set, joined with problem
// metadata for display.
type SolvedProblem struct {
	ProblemID  string            `json:"problem_id"`
	Title      string            `json:"title"`
	Difficulty ProblemDifficulty `json:"difficulty"`
	Tag        string            `json:"tag"`
	SolvedAt   time.Time         `json:"solved_at"`
}
