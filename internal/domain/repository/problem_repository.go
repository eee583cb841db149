package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"codebench/internal/common"
	"codebench/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type ProblemRepository interface {
	CreateProblem(ctx context.Context, tx *sql.Tx, problem *model.Problem) error
	UpdateProblem(ctx context.Context, tx *sql.Tx, problem *model.Problem) error
	DeleteProblem(ctx context.Context, id string) error
	FindProblemByID(ctx context.Context, id string) (*model.Problem, error)
	FindProblemByTitle(ctx context.Context, title string) (*model.Problem, error)
	ListProblems(ctx context.Context, limit, offset int, difficulty model.ProblemDifficulty, tag string) ([]model.Problem, int, error)

	AddVisibleTestCases(ctx context.Context, tx *sql.Tx, problemID string, cases []model.VisibleTestCase) error
	GetVisibleTestCases(ctx context.Context, problemID string) ([]model.VisibleTestCase, error)
	DeleteVisibleTestCases(ctx context.Context, tx *sql.Tx, problemID string) error

	AddHiddenTestCases(ctx context.Context, tx *sql.Tx, problemID string, cases []model.HiddenTestCase) error
	GetHiddenTestCases(ctx context.Context, problemID string) ([]model.HiddenTestCase, error)
	DeleteHiddenTestCases(ctx context.Context, tx *sql.Tx, problemID string) error

	AddStarterCodes(ctx context.Context, tx *sql.Tx, problemID string, codes []model.StarterCode) error
	GetStarterCodes(ctx context.Context, problemID string) ([]model.StarterCode, error)
	DeleteStarterCodes(ctx context.Context, tx *sql.Tx, problemID string) error

	AddReferenceSolutions(ctx context.Context, tx *sql.Tx, problemID string, solutions []model.ReferenceSolution) error
	GetReferenceSolutions(ctx context.Context, problemID string) ([]model.ReferenceSolution, error)
	DeleteReferenceSolutions(ctx context.Context, tx *sql.Tx, problemID string) error
}

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

func (r *pgProblemRepository) CreateProblem(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	query := `INSERT INTO problems (id, title, slug, description, difficulty, tag, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.exec(ctx, tx, query, p.ID, p.Title, p.Slug, p.Description, p.Difficulty, p.Tag, p.CreatedByID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint for title/slug
			return fmt.Errorf("problem with this title already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgProblemRepository.CreateProblem: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) UpdateProblem(ctx context.Context, tx *sql.Tx, p *model.Problem) error {
	query := `UPDATE problems SET
                title = $1, slug = $2, description = $3, difficulty = $4, tag = $5,
                updated_at = CURRENT_TIMESTAMP
              WHERE id = $6`

	_, err := r.exec(ctx, tx, query, p.Title, p.Slug, p.Description, p.Difficulty, p.Tag, p.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("problem with this title already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgProblemRepository.UpdateProblem: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) DeleteProblem(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM problems WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.DeleteProblem: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgProblemRepository) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	query := `
        SELECT p.id, p.title, p.slug, p.description, p.difficulty, p.tag,
               p.created_by, cb_user.username as created_by_username,
               p.created_at, p.updated_at
        FROM problems p
        LEFT JOIN users cb_user ON p.created_by = cb_user.id
        WHERE p.id = $1`
	return r.scanProblem(r.db.QueryRowContext(ctx, query, id), "FindProblemByID")
}

func (r *pgProblemRepository) FindProblemByTitle(ctx context.Context, title string) (*model.Problem, error) {
	query := `
        SELECT p.id, p.title, p.slug, p.description, p.difficulty, p.tag,
               p.created_by, cb_user.username as created_by_username,
               p.created_at, p.updated_at
        FROM problems p
        LEFT JOIN users cb_user ON p.created_by = cb_user.id
        WHERE p.title = $1`
	return r.scanProblem(r.db.QueryRowContext(ctx, query, title), "FindProblemByTitle")
}

func (r *pgProblemRepository) ListProblems(ctx context.Context, limit, offset int, difficulty model.ProblemDifficulty, tag string) ([]model.Problem, int, error) {
	var conditions []string
	var args []interface{}
	argID := 1

	if difficulty != "" {
		conditions = append(conditions, fmt.Sprintf("p.difficulty = $%d", argID))
		args = append(args, difficulty)
		argID++
	}
	if tag != "" {
		conditions = append(conditions, fmt.Sprintf("p.tag = $%d", argID))
		args = append(args, tag)
		argID++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM problems p` + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems count: %w", err)
	}

	query := `SELECT p.id, p.title, p.slug, p.description, p.difficulty, p.tag, p.created_at, p.updated_at
	          FROM problems p` + whereClause +
		fmt.Sprintf(" ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d", argID, argID+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems query: %w", err)
	}
	defer rows.Close()

	problems := []model.Problem{}
	for rows.Next() {
		var p model.Problem
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.Description, &p.Difficulty, &p.Tag, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems scan: %w", err)
		}
		problems = append(problems, p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgProblemRepository.ListProblems rows.Err: %w", err)
	}

	return problems, total, nil
}

func (r *pgProblemRepository) AddVisibleTestCases(ctx context.Context, tx *sql.Tx, problemID string, cases []model.VisibleTestCase) error {
	if len(cases) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO visible_test_cases (id, problem_id, input, expected_output, explanation, sort_order) VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.AddVisibleTestCases prepare: %w", err)
	}
	defer stmt.Close()

	for i, tc := range cases {
		_, err := stmt.ExecContext(ctx, tc.ID, problemID, tc.Input, tc.ExpectedOutput, tc.Explanation, i+1)
		if err != nil {
			return fmt.Errorf("pgProblemRepository.AddVisibleTestCases exec for case %s: %w", tc.ID, err)
		}
	}
	return nil
}

func (r *pgProblemRepository) GetVisibleTestCases(ctx context.Context, problemID string) ([]model.VisibleTestCase, error) {
	query := `SELECT id, problem_id, input, expected_output, explanation, sort_order, created_at
              FROM visible_test_cases WHERE problem_id = $1 ORDER BY sort_order ASC`
	rows, err := r.db.QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetVisibleTestCases query: %w", err)
	}
	defer rows.Close()

	var cases []model.VisibleTestCase
	for rows.Next() {
		var tc model.VisibleTestCase
		if err := rows.Scan(&tc.ID, &tc.ProblemID, &tc.Input, &tc.ExpectedOutput, &tc.Explanation, &tc.SortOrder, &tc.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.GetVisibleTestCases scan: %w", err)
		}
		cases = append(cases, tc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetVisibleTestCases rows.Err: %w", err)
	}
	return cases, nil
}

func (r *pgProblemRepository) DeleteVisibleTestCases(ctx context.Context, tx *sql.Tx, problemID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM visible_test_cases WHERE problem_id = $1`, problemID); err != nil {
		return fmt.Errorf("pgProblemRepository.DeleteVisibleTestCases: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) AddHiddenTestCases(ctx context.Context, tx *sql.Tx, problemID string, cases []model.HiddenTestCase) error {
	if len(cases) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO hidden_test_cases (id, problem_id, input, expected_output, sort_order) VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.AddHiddenTestCases prepare: %w", err)
	}
	defer stmt.Close()

	for i, tc := range cases {
		_, err := stmt.ExecContext(ctx, tc.ID, problemID, tc.Input, tc.ExpectedOutput, i+1)
		if err != nil {
			return fmt.Errorf("pgProblemRepository.AddHiddenTestCases exec for case %s: %w", tc.ID, err)
		}
	}
	return nil
}

func (r *pgProblemRepository) GetHiddenTestCases(ctx context.Context, problemID string) ([]model.HiddenTestCase, error) {
	query := `SELECT id, problem_id, input, expected_output, sort_order, created_at
              FROM hidden_test_cases WHERE problem_id = $1 ORDER BY sort_order ASC`
	rows, err := r.db.QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetHiddenTestCases query: %w", err)
	}
	defer rows.Close()

	var cases []model.HiddenTestCase
	for rows.Next() {
		var tc model.HiddenTestCase
		if err := rows.Scan(&tc.ID, &tc.ProblemID, &tc.Input, &tc.ExpectedOutput, &tc.SortOrder, &tc.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.GetHiddenTestCases scan: %w", err)
		}
		cases = append(cases, tc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetHiddenTestCases rows.Err: %w", err)
	}
	return cases, nil
}

func (r *pgProblemRepository) DeleteHiddenTestCases(ctx context.Context, tx *sql.Tx, problemID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM hidden_test_cases WHERE problem_id = $1`, problemID); err != nil {
		return fmt.Errorf("pgProblemRepository.DeleteHiddenTestCases: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) AddStarterCodes(ctx context.Context, tx *sql.Tx, problemID string, codes []model.StarterCode) error {
	if len(codes) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO starter_codes (id, problem_id, language, code) VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.AddStarterCodes prepare: %w", err)
	}
	defer stmt.Close()

	for _, sc := range codes {
		if _, err := stmt.ExecContext(ctx, sc.ID, problemID, sc.Language, sc.Code); err != nil {
			return fmt.Errorf("pgProblemRepository.AddStarterCodes exec for %s: %w", sc.Language, err)
		}
	}
	return nil
}

func (r *pgProblemRepository) GetStarterCodes(ctx context.Context, problemID string) ([]model.StarterCode, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, problem_id, language, code FROM starter_codes WHERE problem_id = $1 ORDER BY language ASC`, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetStarterCodes query: %w", err)
	}
	defer rows.Close()

	var codes []model.StarterCode
	for rows.Next() {
		var sc model.StarterCode
		if err := rows.Scan(&sc.ID, &sc.ProblemID, &sc.Language, &sc.Code); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.GetStarterCodes scan: %w", err)
		}
		codes = append(codes, sc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetStarterCodes rows.Err: %w", err)
	}
	return codes, nil
}

func (r *pgProblemRepository) DeleteStarterCodes(ctx context.Context, tx *sql.Tx, problemID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM starter_codes WHERE problem_id = $1`, problemID); err != nil {
		return fmt.Errorf("pgProblemRepository.DeleteStarterCodes: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) AddReferenceSolutions(ctx context.Context, tx *sql.Tx, problemID string, solutions []model.ReferenceSolution) error {
	if len(solutions) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO reference_solutions (id, problem_id, language, code) VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.AddReferenceSolutions prepare: %w", err)
	}
	defer stmt.Close()

	for _, rs := range solutions {
		if _, err := stmt.ExecContext(ctx, rs.ID, problemID, rs.Language, rs.Code); err != nil {
			return fmt.Errorf("pgProblemRepository.AddReferenceSolutions exec for %s: %w", rs.Language, err)
		}
	}
	return nil
}

func (r *pgProblemRepository) GetReferenceSolutions(ctx context.Context, problemID string) ([]model.ReferenceSolution, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, problem_id, language, code FROM reference_solutions WHERE problem_id = $1 ORDER BY language ASC`, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetReferenceSolutions query: %w", err)
	}
	defer rows.Close()

	var solutions []model.ReferenceSolution
	for rows.Next() {
		var rs model.ReferenceSolution
		if err := rows.Scan(&rs.ID, &rs.ProblemID, &rs.Language, &rs.Code); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.GetReferenceSolutions scan: %w", err)
		}
		solutions = append(solutions, rs)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetReferenceSolutions rows.Err: %w", err)
	}
	return solutions, nil
}

func (r *pgProblemRepository) DeleteReferenceSolutions(ctx context.Context, tx *sql.Tx, problemID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM reference_solutions WHERE problem_id = $1`, problemID); err != nil {
		return fmt.Errorf("pgProblemRepository.DeleteReferenceSolutions: %w", err)
	}
	return nil
}

func (r *pgProblemRepository) exec(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (sql.Result, error) {
	if tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return r.db.ExecContext(ctx, query, args...)
}

func (r *pgProblemRepository) scanProblem(row *sql.Row, method string) (*model.Problem, error) {
	problem := &model.Problem{}
	err := row.Scan(
		&problem.ID, &problem.Title, &problem.Slug, &problem.Description, &problem.Difficulty, &problem.Tag,
		&problem.CreatedByID, &problem.CreatedByUsername,
		&problem.CreatedAt, &problem.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProblemRepository.%s: %w", method, err)
	}
	return problem, nil
}
