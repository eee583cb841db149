package service_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"
	"time"

	"codebench/internal/common"
	"codebench/internal/domain/model"
	"codebench/internal/domain/repository"
	"codebench/internal/judge"

	"github.com/stretchr/testify/require"
)

// txOnlyDriver backs the *sql.DB passed to services in tests. The services
// only use it to open and commit transactions; the writes themselves go
// through the fake repositories, which ignore the tx handle.
type txOnlyDriver struct{}

func (txOnlyDriver) Open(string) (driver.Conn, error) { return txOnlyConn{}, nil }

type txOnlyConn struct{}

func (txOnlyConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (txOnlyConn) Close() error                        { return nil }
func (txOnlyConn) Begin() (driver.Tx, error)           { return txOnlyTx{}, nil }

type txOnlyTx struct{}

func (txOnlyTx) Commit() error   { return nil }
func (txOnlyTx) Rollback() error { return nil }

var registerTxDriver sync.Once

func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	registerTxDriver.Do(func() { sql.Register("txonly", txOnlyDriver{}) })
	db, err := sql.Open("txonly", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeExecutor struct {
	results []judge.TestResult
	err     error

	calls     int
	lastItems []judge.BatchItem
}

func (f *fakeExecutor) Execute(ctx context.Context, items []judge.BatchItem) ([]judge.TestResult, error) {
	f.calls++
	f.lastItems = items
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeSubmissionRepo struct {
	mu     sync.Mutex
	subs   map[string]*model.Submission
	solved map[string]model.SolvedProblem // userID + "/" + problemID

	lastLimit  int
	lastOffset int
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{
		subs:   make(map[string]*model.Submission),
		solved: make(map[string]model.SolvedProblem),
	}
}

func (f *fakeSubmissionRepo) CreateSubmission(_ context.Context, _ *sql.Tx, sub *model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *sub
	stored.SubmittedAt = time.Now()
	f.subs[sub.ID] = &stored
	return nil
}

func (f *fakeSubmissionRepo) GetSubmissionByID(_ context.Context, id string) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *sub
	return &out, nil
}

func (f *fakeSubmissionRepo) FinalizeSubmission(ctx context.Context, _ *sql.Tx, sub *model.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.subs[sub.ID]
	if !ok {
		return common.ErrNotFound
	}
	if existing.Status != model.StatusPending {
		return common.ErrConflict
	}
	stored := *sub
	stored.UpdatedAt = time.Now()
	f.subs[sub.ID] = &stored
	return nil
}

func (f *fakeSubmissionRepo) ListForUserProblem(_ context.Context, userID, problemID string, limit, offset int) ([]model.Submission, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	f.lastOffset = offset
	var out []model.Submission
	for _, sub := range f.subs {
		if sub.UserID == userID && sub.ProblemID == problemID {
			out = append(out, *sub)
		}
	}
	return out, len(out), nil
}

func (f *fakeSubmissionRepo) MarkProblemSolved(_ context.Context, _ *sql.Tx, userID, problemID, submissionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := userID + "/" + problemID
	if _, ok := f.solved[key]; ok {
		return nil
	}
	f.solved[key] = model.SolvedProblem{ProblemID: problemID, SolvedAt: time.Now()}
	return nil
}

func (f *fakeSubmissionRepo) ListSolvedProblems(_ context.Context, userID string) ([]model.SolvedProblem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SolvedProblem
	for key, sp := range f.solved {
		if len(key) > len(userID) && key[:len(userID)] == userID {
			out = append(out, sp)
		}
	}
	return out, nil
}

func (f *fakeSubmissionRepo) submissionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeSubmissionRepo) solvedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.solved)
}

func (f *fakeSubmissionRepo) pendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, sub := range f.subs {
		if sub.Status == model.StatusPending {
			n++
		}
	}
	return n
}

type fakeProblemRepo struct {
	repository.ProblemRepository

	mu       sync.Mutex
	problems map[string]*model.Problem
	visible  map[string][]model.VisibleTestCase
	hidden   map[string][]model.HiddenTestCase
	starter  map[string][]model.StarterCode
	refs     map[string][]model.ReferenceSolution
}

func newFakeProblemRepo() *fakeProblemRepo {
	return &fakeProblemRepo{
		problems: make(map[string]*model.Problem),
		visible:  make(map[string][]model.VisibleTestCase),
		hidden:   make(map[string][]model.HiddenTestCase),
		starter:  make(map[string][]model.StarterCode),
		refs:     make(map[string][]model.ReferenceSolution),
	}
}

func (f *fakeProblemRepo) seed(p *model.Problem, visible []model.VisibleTestCase, hidden []model.HiddenTestCase) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.problems[p.ID] = p
	f.visible[p.ID] = visible
	f.hidden[p.ID] = hidden
}

func (f *fakeProblemRepo) CreateProblem(_ context.Context, _ *sql.Tx, p *model.Problem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.problems[p.ID] = p
	return nil
}

func (f *fakeProblemRepo) FindProblemByID(_ context.Context, id string) (*model.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.problems[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (f *fakeProblemRepo) FindProblemByTitle(_ context.Context, title string) (*model.Problem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.problems {
		if p.Title == title {
			out := *p
			return &out, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeProblemRepo) GetVisibleTestCases(_ context.Context, problemID string) ([]model.VisibleTestCase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible[problemID], nil
}

func (f *fakeProblemRepo) GetHiddenTestCases(_ context.Context, problemID string) ([]model.HiddenTestCase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hidden[problemID], nil
}

func (f *fakeProblemRepo) GetStarterCodes(_ context.Context, problemID string) ([]model.StarterCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starter[problemID], nil
}

func (f *fakeProblemRepo) GetReferenceSolutions(_ context.Context, problemID string) ([]model.ReferenceSolution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs[problemID], nil
}

func (f *fakeProblemRepo) AddVisibleTestCases(_ context.Context, _ *sql.Tx, problemID string, cases []model.VisibleTestCase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible[problemID] = append(f.visible[problemID], cases...)
	return nil
}

func (f *fakeProblemRepo) AddHiddenTestCases(_ context.Context, _ *sql.Tx, problemID string, cases []model.HiddenTestCase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hidden[problemID] = append(f.hidden[problemID], cases...)
	return nil
}

func (f *fakeProblemRepo) AddStarterCodes(_ context.Context, _ *sql.Tx, problemID string, codes []model.StarterCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starter[problemID] = append(f.starter[problemID], codes...)
	return nil
}

func (f *fakeProblemRepo) AddReferenceSolutions(_ context.Context, _ *sql.Tx, problemID string, solutions []model.ReferenceSolution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs[problemID] = append(f.refs[problemID], solutions...)
	return nil
}

func (f *fakeProblemRepo) problemCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.problems)
}
