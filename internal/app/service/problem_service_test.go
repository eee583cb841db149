package service_test

import (
	"context"
	"testing"

	"codebench/internal/app/service"
	"codebench/internal/common"
	"codebench/internal/domain/model"
	"codebench/internal/judge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProblemRequest() service.ProblemRequest {
	return service.ProblemRequest{
		Title:       "Reverse Linked List",
		Description: "Reverse a singly linked list.",
		Difficulty:  model.DifficultyMedium,
		Tag:         "linked list",
		VisibleTestCases: []model.VisibleTestCase{
			{Input: "1 2 3", ExpectedOutput: "3 2 1", Explanation: "reversed order"},
		},
		HiddenTestCases: []model.HiddenTestCase{
			{Input: "1 2 3 4 5", ExpectedOutput: "5 4 3 2 1"},
		},
		StarterCodes: []model.StarterCode{
			{Language: "javascript", Code: "function reverse(head) {}"},
		},
		ReferenceSolutions: []model.ReferenceSolution{
			{Language: "javascript", Code: "function reverse(head) { /* ... */ }"},
		},
	}
}

func newProblemService(t *testing.T, problems *fakeProblemRepo, executor *fakeExecutor) *service.ProblemService {
	t.Helper()
	return service.NewProblemService(problems, executor, newTxDB(t))
}

func TestCreateProblem(t *testing.T) {
	problems := newFakeProblemRepo()
	executor := &fakeExecutor{results: []judge.TestResult{acceptedResult("0.010", 3000)}}
	svc := newProblemService(t, problems, executor)

	problem, err := svc.CreateProblem(context.Background(), "admin-1", validProblemRequest())
	require.NoError(t, err)

	assert.Equal(t, "Reverse Linked List", problem.Title)
	assert.Equal(t, "reverse-linked-list", problem.Slug)
	require.NotNil(t, problem.CreatedByID)
	assert.Equal(t, "admin-1", *problem.CreatedByID)
	assert.Equal(t, 1, problems.problemCount())

	// The reference solution was graded against the visible cases.
	assert.Equal(t, 1, executor.calls)
	require.Len(t, executor.lastItems, 1)
	assert.Equal(t, "1 2 3", executor.lastItems[0].Stdin)
	assert.Equal(t, "3 2 1", executor.lastItems[0].ExpectedOutput)

	visible, err := problems.GetVisibleTestCases(context.Background(), problem.ID)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.NotEmpty(t, visible[0].ID)
}

func TestCreateProblemReferenceSolutionGate(t *testing.T) {
	problems := newFakeProblemRepo()
	executor := &fakeExecutor{results: []judge.TestResult{
		{StatusID: 5, Stderr: strPtr("wrong output")},
	}}
	svc := newProblemService(t, problems, executor)

	_, err := svc.CreateProblem(context.Background(), "admin-1", validProblemRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Zero(t, problems.problemCount(), "a problem with a failing reference solution must not be persisted")
}

func TestCreateProblemValidation(t *testing.T) {
	svc := newProblemService(t, newFakeProblemRepo(), &fakeExecutor{})

	tests := []struct {
		name   string
		mutate func(*service.ProblemRequest)
	}{
		{"missing title", func(r *service.ProblemRequest) { r.Title = "" }},
		{"bad difficulty", func(r *service.ProblemRequest) { r.Difficulty = "extreme" }},
		{"unknown tag", func(r *service.ProblemRequest) { r.Tag = "recursion" }},
		{"no visible cases", func(r *service.ProblemRequest) { r.VisibleTestCases = nil }},
		{"visible case without explanation", func(r *service.ProblemRequest) {
			r.VisibleTestCases[0].Explanation = ""
		}},
		{"no hidden cases", func(r *service.ProblemRequest) { r.HiddenTestCases = nil }},
		{"no reference solutions", func(r *service.ProblemRequest) { r.ReferenceSolutions = nil }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validProblemRequest()
			tc.mutate(&req)
			_, err := svc.CreateProblem(context.Background(), "admin-1", req)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestCreateProblemUnsupportedSolutionLanguage(t *testing.T) {
	svc := newProblemService(t, newFakeProblemRepo(), &fakeExecutor{})

	req := validProblemRequest()
	req.ReferenceSolutions[0].Language = "python"
	_, err := svc.CreateProblem(context.Background(), "admin-1", req)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnsupportedLanguage)
}

func TestCreateProblemDuplicateTitle(t *testing.T) {
	problems := newFakeProblemRepo()
	executor := &fakeExecutor{results: []judge.TestResult{acceptedResult("0.010", 3000)}}
	svc := newProblemService(t, problems, executor)

	_, err := svc.CreateProblem(context.Background(), "admin-1", validProblemRequest())
	require.NoError(t, err)

	_, err = svc.CreateProblem(context.Background(), "admin-1", validProblemRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.Equal(t, 1, problems.problemCount())
}

func TestGetProblemOmitsHiddenData(t *testing.T) {
	problems := newFakeProblemRepo()
	seedTwoSum(problems)
	svc := newProblemService(t, problems, &fakeExecutor{})

	problem, err := svc.GetProblem(context.Background(), "prob-two-sum")
	require.NoError(t, err)
	assert.Len(t, problem.VisibleTestCases, 1)
	assert.Empty(t, problem.HiddenTestCases)
	assert.Empty(t, problem.ReferenceSolutions)
}
