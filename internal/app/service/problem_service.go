package service

import (
	"context"
	"database/sql"
	"errors"

	"codebench/internal/common"
	"codebench/internal/domain/model"
	"codebench/internal/domain/repository"
	"codebench/internal/judge"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type ProblemService struct {
	problemRepo repository.ProblemRepository
	executor    CodeExecutor
	db          *sql.DB // For transactions
}

func NewProblemService(
	problemRepo repository.ProblemRepository,
	executor CodeExecutor,
	db *sql.DB,
) *ProblemService {
	return &ProblemService{
		problemRepo: problemRepo,
		executor:    executor,
		db:          db,
	}
}

type ProblemRequest struct {
	Title              string                    `json:"title"`
	Description        string                    `json:"description"`
	Difficulty         model.ProblemDifficulty   `json:"difficulty"`
	Tag                string                    `json:"tag"`
	VisibleTestCases   []model.VisibleTestCase   `json:"visible_test_cases"`
	HiddenTestCases    []model.HiddenTestCase    `json:"hidden_test_cases"`
	StarterCodes       []model.StarterCode       `json:"starter_codes"`
	ReferenceSolutions []model.ReferenceSolution `json:"reference_solutions"`
}

func (s *ProblemService) CreateProblem(ctx context.Context, userID string, req ProblemRequest) (*model.Problem, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	// Titles are globally unique.
	if _, err := s.problemRepo.FindProblemByTitle(ctx, req.Title); err == nil {
		return nil, common.Errorf("a problem with this title already exists: %w", common.ErrConflict)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, common.Errorf("failed to check title uniqueness: %w", err)
	}

	if err := s.gateReferenceSolutions(ctx, req); err != nil {
		return nil, err
	}

	problem := &model.Problem{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Slug:        slug.Make(req.Title),
		Description: req.Description,
		Difficulty:  req.Difficulty,
		Tag:         req.Tag,
		CreatedByID: &userID,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.problemRepo.CreateProblem(ctx, tx, problem); err != nil {
		return nil, common.Errorf("failed to create problem in DB: %w", err)
	}
	if err := s.writeChildren(ctx, tx, problem.ID, req); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, common.Errorf("failed to commit transaction: %w", err)
	}

	problem.VisibleTestCases = req.VisibleTestCases
	problem.HiddenTestCases = req.HiddenTestCases
	problem.StarterCodes = req.StarterCodes
	problem.ReferenceSolutions = req.ReferenceSolutions
	return problem, nil
}

func (s *ProblemService) UpdateProblem(ctx context.Context, problemID string, req ProblemRequest) (*model.Problem, error) {
	if problemID == "" {
		return nil, common.Errorf("missing problem id: %w", common.ErrBadRequest)
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	existing, err := s.problemRepo.FindProblemByID(ctx, problemID)
	if err != nil {
		return nil, common.Errorf("problem not found: %w", err)
	}

	if req.Title != existing.Title {
		if _, err := s.problemRepo.FindProblemByTitle(ctx, req.Title); err == nil {
			return nil, common.Errorf("a problem with this title already exists: %w", common.ErrConflict)
		} else if !errors.Is(err, common.ErrNotFound) {
			return nil, common.Errorf("failed to check title uniqueness: %w", err)
		}
	}

	if err := s.gateReferenceSolutions(ctx, req); err != nil {
		return nil, err
	}

	problem := &model.Problem{
		ID:          problemID,
		Title:       req.Title,
		Slug:        slug.Make(req.Title),
		Description: req.Description,
		Difficulty:  req.Difficulty,
		Tag:         req.Tag,
		CreatedByID: existing.CreatedByID,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.problemRepo.UpdateProblem(ctx, tx, problem); err != nil {
		return nil, common.Errorf("failed to update problem in DB: %w", err)
	}

	// Full replace of test cases, starter code and solutions.
	if err := s.problemRepo.DeleteVisibleTestCases(ctx, tx, problemID); err != nil {
		return nil, common.Errorf("failed to clear visible test cases: %w", err)
	}
	if err := s.problemRepo.DeleteHiddenTestCases(ctx, tx, problemID); err != nil {
		return nil, common.Errorf("failed to clear hidden test cases: %w", err)
	}
	if err := s.problemRepo.DeleteStarterCodes(ctx, tx, problemID); err != nil {
		return nil, common.Errorf("failed to clear starter codes: %w", err)
	}
	if err := s.problemRepo.DeleteReferenceSolutions(ctx, tx, problemID); err != nil {
		return nil, common.Errorf("failed to clear reference solutions: %w", err)
	}
	if err := s.writeChildren(ctx, tx, problemID, req); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, common.Errorf("failed to commit transaction: %w", err)
	}

	problem.VisibleTestCases = req.VisibleTestCases
	problem.HiddenTestCases = req.HiddenTestCases
	problem.StarterCodes = req.StarterCodes
	problem.ReferenceSolutions = req.ReferenceSolutions
	return problem, nil
}

func (s *ProblemService) DeleteProblem(ctx context.Context, problemID string) error {
	if problemID == "" {
		return common.Errorf("missing problem id: %w", common.ErrBadRequest)
	}
	return s.problemRepo.DeleteProblem(ctx, problemID)
}

// GetProblem returns the user-facing view: visible test cases and starter
// code only. Hidden cases and reference solutions stay admin-only.
func (s *ProblemService) GetProblem(ctx context.Context, problemID string) (*model.Problem, error) {
	problem, err := s.problemRepo.FindProblemByID(ctx, problemID)
	if err != nil {
		return nil, common.Errorf("problem not found: %w", err)
	}
	if problem.VisibleTestCases, err = s.problemRepo.GetVisibleTestCases(ctx, problemID); err != nil {
		return nil, common.Errorf("failed to fetch visible test cases: %w", err)
	}
	if problem.StarterCodes, err = s.problemRepo.GetStarterCodes(ctx, problemID); err != nil {
		return nil, common.Errorf("failed to fetch starter codes: %w", err)
	}
	return problem, nil
}

func (s *ProblemService) GetProblemAdmin(ctx context.Context, problemID string) (*model.Problem, error) {
	problem, err := s.GetProblem(ctx, problemID)
	if err != nil {
		return nil, err
	}
	if problem.HiddenTestCases, err = s.problemRepo.GetHiddenTestCases(ctx, problemID); err != nil {
		return nil, common.Errorf("failed to fetch hidden test cases: %w", err)
	}
	if problem.ReferenceSolutions, err = s.problemRepo.GetReferenceSolutions(ctx, problemID); err != nil {
		return nil, common.Errorf("failed to fetch reference solutions: %w", err)
	}
	return problem, nil
}

func (s *ProblemService) ListProblems(ctx context.Context, page, pageSize int, difficulty model.ProblemDifficulty, tag string) ([]model.Problem, int, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return s.problemRepo.ListProblems(ctx, pageSize, (page-1)*pageSize, difficulty, tag)
}

func (s *ProblemService) validateRequest(req ProblemRequest) error {
	if req.Title == "" || req.Description == "" {
		return common.Errorf("title and description are required: %w", common.ErrValidation)
	}
	if !model.ValidDifficulty(req.Difficulty) {
		return common.Errorf("difficulty must be easy, medium or hard: %w", common.ErrValidation)
	}
	if !model.ValidTags[req.Tag] {
		return common.Errorf("unknown tag %q: %w", req.Tag, common.ErrValidation)
	}
	if len(req.VisibleTestCases) == 0 {
		return common.Errorf("at least one visible test case is required: %w", common.ErrValidation)
	}
	for _, tc := range req.VisibleTestCases {
		if tc.Input == "" || tc.ExpectedOutput == "" || tc.Explanation == "" {
			return common.Errorf("visible test cases require input, expected output and explanation: %w", common.ErrValidation)
		}
	}
	if len(req.HiddenTestCases) == 0 {
		return common.Errorf("at least one hidden test case is required: %w", common.ErrValidation)
	}
	for _, tc := range req.HiddenTestCases {
		if tc.Input == "" || tc.ExpectedOutput == "" {
			return common.Errorf("hidden test cases require input and expected output: %w", common.ErrValidation)
		}
	}
	if len(req.ReferenceSolutions) == 0 {
		return common.Errorf("at least one reference solution is required: %w", common.ErrValidation)
	}
	for _, rs := range req.ReferenceSolutions {
		if _, err := judge.ResolveLanguage(rs.Language); err != nil {
			return err
		}
		if rs.Code == "" {
			return common.Errorf("reference solution for %s has no code: %w", rs.Language, common.ErrValidation)
		}
	}
	for _, sc := range req.StarterCodes {
		if _, err := judge.ResolveLanguage(sc.Language); err != nil {
			return err
		}
	}
	return nil
}

// gateReferenceSolutions grades every reference solution against the visible
// test cases. A problem is never persisted with a solution that fails its own
// examples.
func (s *ProblemService) gateReferenceSolutions(ctx context.Context, req ProblemRequest) error {
	for _, rs := range req.ReferenceSolutions {
		languageID, err := judge.ResolveLanguage(rs.Language)
		if err != nil {
			return err
		}

		items := make([]judge.BatchItem, len(req.VisibleTestCases))
		for i, tc := range req.VisibleTestCases {
			items[i] = judge.BatchItem{
				SourceCode:     rs.Code,
				LanguageID:     languageID,
				Stdin:          tc.Input,
				ExpectedOutput: tc.ExpectedOutput,
			}
		}

		results, err := s.executor.Execute(ctx, items)
		if err != nil {
			return err
		}

		verdict := judge.Aggregate(results)
		if verdict.Status != model.StatusAccepted || verdict.Passed != len(items) {
			return common.Errorf("reference solution for %s failed visible test cases (%d/%d passed): %w",
				rs.Language, verdict.Passed, len(items), common.ErrValidation)
		}
	}
	return nil
}

func (s *ProblemService) writeChildren(ctx context.Context, tx *sql.Tx, problemID string, req ProblemRequest) error {
	for i := range req.VisibleTestCases {
		if req.VisibleTestCases[i].ID == "" {
			req.VisibleTestCases[i].ID = uuid.NewString()
		}
	}
	if err := s.problemRepo.AddVisibleTestCases(ctx, tx, problemID, req.VisibleTestCases); err != nil {
		return common.Errorf("failed to add visible test cases: %w", err)
	}

	for i := range req.HiddenTestCases {
		if req.HiddenTestCases[i].ID == "" {
			req.HiddenTestCases[i].ID = uuid.NewString()
		}
	}
	if err := s.problemRepo.AddHiddenTestCases(ctx, tx, problemID, req.HiddenTestCases); err != nil {
		return common.Errorf("failed to add hidden test cases: %w", err)
	}

	for i := range req.StarterCodes {
		if req.StarterCodes[i].ID == "" {
			req.StarterCodes[i].ID = uuid.NewString()
		}
	}
	if err := s.problemRepo.AddStarterCodes(ctx, tx, problemID, req.StarterCodes); err != nil {
		return common.Errorf("failed to add starter codes: %w", err)
	}

	for i := range req.ReferenceSolutions {
		if req.ReferenceSolutions[i].ID == "" {
			req.ReferenceSolutions[i].ID = uuid.NewString()
		}
	}
	if err := s.problemRepo.AddReferenceSolutions(ctx, tx, problemID, req.ReferenceSolutions); err != nil {
		return common.Errorf("failed to add reference solutions: %w", err)
	}
	return nil
}
