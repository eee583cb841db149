package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"codebench/internal/common"
	"codebench/internal/domain/model"
	"codebench/internal/domain/repository"
	"codebench/internal/judge"

	"github.com/google/uuid"
)

// CodeExecutor runs one batch of test-case executions to completion against
// the external execution service. judge.Pipeline is the production
// implementation; tests inject fakes.
type CodeExecutor interface {
	Execute(ctx context.Context, items []judge.BatchItem) ([]judge.TestResult, error)
}

type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	problemRepo    repository.ProblemRepository
	executor       CodeExecutor
	db             *sql.DB // For transactions
}

func NewSubmissionService(
	subRepo repository.SubmissionRepository,
	probRepo repository.ProblemRepository,
	executor CodeExecutor,
	db *sql.DB,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: subRepo,
		problemRepo:    probRepo,
		executor:       executor,
		db:             db,
	}
}

// GradeRequest is the body of both run and submit calls.
type GradeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// RunCode grades the submitted code against the problem's visible test cases
// and returns the raw per-test-case results. Nothing is persisted.
func (s *SubmissionService) RunCode(ctx context.Context, userID, problemID string, req GradeRequest) ([]judge.TestResult, error) {
	if userID == "" || problemID == "" || req.Code == "" || req.Language == "" {
		return nil, common.Errorf("missing required fields: %w", common.ErrBadRequest)
	}

	if _, err := s.problemRepo.FindProblemByID(ctx, problemID); err != nil {
		return nil, common.Errorf("problem not found: %w", err)
	}

	languageID, err := judge.ResolveLanguage(req.Language)
	if err != nil {
		return nil, err
	}

	cases, err := s.problemRepo.GetVisibleTestCases(ctx, problemID)
	if err != nil {
		return nil, common.Errorf("failed to fetch visible test cases: %w", err)
	}
	if len(cases) == 0 {
		return nil, common.Errorf("problem %s has no visible test cases: %w", problemID, common.ErrValidation)
	}

	items := make([]judge.BatchItem, len(cases))
	for i, tc := range cases {
		items[i] = judge.BatchItem{
			SourceCode:     req.Code,
			LanguageID:     languageID,
			Stdin:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
		}
	}

	return s.executor.Execute(ctx, items)
}

// SubmitCode grades the submitted code against the problem's hidden test
// cases and records the outcome. The pending submission row is created before
// the external call so the attempt stays retrievable even if grading fails;
// it is always finalized to a terminal status before this method returns.
func (s *SubmissionService) SubmitCode(ctx context.Context, userID, problemID string, req GradeRequest) (*model.Submission, error) {
	if userID == "" || problemID == "" || req.Code == "" || req.Language == "" {
		return nil, common.Errorf("missing required fields: %w", common.ErrBadRequest)
	}

	if _, err := s.problemRepo.FindProblemByID(ctx, problemID); err != nil {
		return nil, common.Errorf("problem not found: %w", err)
	}

	// Client-input errors are rejected before a submission row exists.
	languageID, err := judge.ResolveLanguage(req.Language)
	if err != nil {
		return nil, err
	}

	cases, err := s.problemRepo.GetHiddenTestCases(ctx, problemID)
	if err != nil {
		return nil, common.Errorf("failed to fetch hidden test cases: %w", err)
	}
	if len(cases) == 0 {
		return nil, common.Errorf("problem %s has no hidden test cases: %w", problemID, common.ErrInternalServer)
	}

	submission := &model.Submission{
		ID:             uuid.NewString(),
		UserID:         userID,
		ProblemID:      problemID,
		Code:           req.Code,
		Language:       req.Language,
		Status:         model.StatusPending,
		TestCasesTotal: len(cases),
	}
	if err := s.submissionRepo.CreateSubmission(ctx, nil, submission); err != nil {
		return nil, common.Errorf("failed to create submission: %w", err)
	}

	items := make([]judge.BatchItem, len(cases))
	for i, tc := range cases {
		items[i] = judge.BatchItem{
			SourceCode:     req.Code,
			LanguageID:     languageID,
			Stdin:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
		}
	}

	results, err := s.executor.Execute(ctx, items)
	if err != nil {
		s.finalizeFailed(ctx, submission, err)
		return nil, err
	}

	verdict := judge.Aggregate(results)
	submission.Status = verdict.Status
	submission.TestCasesPassed = verdict.Passed
	submission.Runtime = verdict.Runtime
	submission.Memory = verdict.Memory
	submission.ErrorMessage = verdict.ErrorMessage

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.submissionRepo.FinalizeSubmission(ctx, tx, submission); err != nil {
		return nil, common.Errorf("failed to finalize submission: %w", err)
	}

	if verdict.Status == model.StatusAccepted {
		if err := s.submissionRepo.MarkProblemSolved(ctx, tx, userID, problemID, submission.ID); err != nil {
			return nil, common.Errorf("failed to mark problem solved: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, common.Errorf("failed to commit transaction: %w", err)
	}

	return submission, nil
}

// finalizeFailed degrades a pending submission to a terminal error status so
// no row is ever left pending after the flow returns.
func (s *SubmissionService) finalizeFailed(ctx context.Context, submission *model.Submission, cause error) {
	msg := "grading failed due to an internal error"
	switch {
	case errors.Is(cause, common.ErrGradingTimeout):
		msg = "grading timed out waiting for the execution service"
	case errors.Is(cause, common.ErrExecutorUnavailable):
		msg = "execution service is unavailable, please retry"
	}

	submission.Status = model.StatusError
	submission.ErrorMessage = &msg
	submission.TestCasesPassed = 0

	// The request context may already be canceled (client disconnect, request
	// timeout); the terminal write must still go through.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.submissionRepo.FinalizeSubmission(ctx, nil, submission); err != nil {
		log.Printf("ERROR: Failed to finalize submission %s after grading failure: %v", submission.ID, err)
	}
}

func (s *SubmissionService) ListForProblem(ctx context.Context, userID, problemID string, limit, offset int) ([]model.Submission, int, error) {
	if userID == "" || problemID == "" {
		return nil, 0, common.Errorf("missing required fields: %w", common.ErrBadRequest)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.submissionRepo.ListForUserProblem(ctx, userID, problemID, limit, offset)
}

func (s *SubmissionService) SolvedProblems(ctx context.Context, userID string) ([]model.SolvedProblem, error) {
	if userID == "" {
		return nil, common.Errorf("missing user id: %w", common.ErrBadRequest)
	}
	return s.submissionRepo.ListSolvedProblems(ctx, userID)
}
