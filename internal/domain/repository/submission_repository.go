package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"codebench/internal/common"
	"codebench/internal/domain/model"
)

type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
	GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error)
	// FinalizeSubmission writes the verdict fields onto a pending submission.
	// Terminal states are write-once: a row that already left pending is not touched.
	FinalizeSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error
	ListForUserProblem(ctx context.Context, userID, problemID string, limit, offset int) ([]model.Submission, int, error)

	// MarkProblemSolved inserts into the user's solved set; inserting an
	// already-solved problem is a no-op, so concurrent accepted submissions
	// cannot produce duplicates.
	MarkProblemSolved(ctx context.Context, tx *sql.Tx, userID, problemID, submissionID string) error
	ListSolvedProblems(ctx context.Context, userID string) ([]model.SolvedProblem, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) CreateSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	query := `INSERT INTO submissions (id, user_id, problem_id, code, language, status, test_cases_total)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, sub.ID, sub.UserID, sub.ProblemID, sub.Code, sub.Language, sub.Status, sub.TestCasesTotal)
	} else {
		_, err = r.db.ExecContext(ctx, query, sub.ID, sub.UserID, sub.ProblemID, sub.Code, sub.Language, sub.Status, sub.TestCasesTotal)
	}
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.CreateSubmission: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT id, user_id, problem_id, code, language, status, runtime, memory,
	                 error_message, test_cases_passed, test_cases_total, submitted_at, updated_at
	          FROM submissions WHERE id = $1`
	sub := &model.Submission{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&sub.ID, &sub.UserID, &sub.ProblemID, &sub.Code, &sub.Language, &sub.Status, &sub.Runtime, &sub.Memory,
		&sub.ErrorMessage, &sub.TestCasesPassed, &sub.TestCasesTotal, &sub.SubmittedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.GetSubmissionByID: %w", err)
	}
	return sub, nil
}

func (r *pgSubmissionRepository) FinalizeSubmission(ctx context.Context, tx *sql.Tx, sub *model.Submission) error {
	query := `UPDATE submissions SET
	            status = $1, runtime = $2, memory = $3, error_message = $4,
	            test_cases_passed = $5, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $6 AND status = $7`
	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, sub.Status, sub.Runtime, sub.Memory, sub.ErrorMessage, sub.TestCasesPassed, sub.ID, model.StatusPending)
	} else {
		res, err = r.db.ExecContext(ctx, query, sub.Status, sub.Runtime, sub.Memory, sub.ErrorMessage, sub.TestCasesPassed, sub.ID, model.StatusPending)
	}
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.FinalizeSubmission: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("submission %s is not pending: %w", sub.ID, common.ErrConflict)
	}
	return nil
}

func (r *pgSubmissionRepository) ListForUserProblem(ctx context.Context, userID, problemID string, limit, offset int) ([]model.Submission, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM submissions WHERE user_id = $1 AND problem_id = $2`
	if err := r.db.QueryRowContext(ctx, countQuery, userID, problemID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListForUserProblem count: %w", err)
	}

	query := `SELECT id, user_id, problem_id, code, language, status, runtime, memory,
	                 error_message, test_cases_passed, test_cases_total, submitted_at, updated_at
	          FROM submissions
	          WHERE user_id = $1 AND problem_id = $2
	          ORDER BY submitted_at DESC LIMIT $3 OFFSET $4`
	rows, err := r.db.QueryContext(ctx, query, userID, problemID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListForUserProblem query: %w", err)
	}
	defer rows.Close()

	submissions := []model.Submission{}
	for rows.Next() {
		var sub model.Submission
		if err := rows.Scan(
			&sub.ID, &sub.UserID, &sub.ProblemID, &sub.Code, &sub.Language, &sub.Status, &sub.Runtime, &sub.Memory,
			&sub.ErrorMessage, &sub.TestCasesPassed, &sub.TestCasesTotal, &sub.SubmittedAt, &sub.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("pgSubmissionRepository.ListForUserProblem scan: %w", err)
		}
		submissions = append(submissions, sub)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgSubmissionRepository.ListForUserProblem rows.Err: %w", err)
	}
	return submissions, total, nil
}

func (r *pgSubmissionRepository) MarkProblemSolved(ctx context.Context, tx *sql.Tx, userID, problemID, submissionID string) error {
	query := `INSERT INTO user_solved_problems (user_id, problem_id, submission_id)
	          VALUES ($1, $2, $3)
	          ON CONFLICT (user_id, problem_id) DO NOTHING`
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, userID, problemID, submissionID)
	} else {
		_, err = r.db.ExecContext(ctx, query, userID, problemID, submissionID)
	}
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.MarkProblemSolved: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) ListSolvedProblems(ctx context.Context, userID string) ([]model.SolvedProblem, error) {
	query := `SELECT usp.problem_id, p.title, p.difficulty, p.tag, usp.solved_at
	          FROM user_solved_problems usp
	          JOIN problems p ON usp.problem_id = p.id
	          WHERE usp.user_id = $1
	          ORDER BY usp.solved_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListSolvedProblems query: %w", err)
	}
	defer rows.Close()

	solved := []model.SolvedProblem{}
	for rows.Next() {
		var sp model.SolvedProblem
		if err := rows.Scan(&sp.ProblemID, &sp.Title, &sp.Difficulty, &sp.Tag, &sp.SolvedAt); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.ListSolvedProblems scan: %w", err)
		}
		solved = append(solved, sp)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListSolvedProblems rows.Err: %w", err)
	}
	return solved, nil
}
