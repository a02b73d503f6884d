package judge_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openjudge-dev/openjudge/internal/database"
	"github.com/openjudge-dev/openjudge/internal/database/models"
	"github.com/openjudge-dev/openjudge/internal/judge"
	"github.com/openjudge-dev/openjudge/internal/sandbox"
)

// fakeExecutor replays a scripted sequence of sandbox results.
type fakeExecutor struct {
	mu      sync.Mutex
	calls   int
	results []scripted
}

type scripted struct {
	raw *sandbox.RawResult
	err error
}

func (f *fakeExecutor) Execute(_ context.Context, _ sandbox.ExecRequest) (*sandbox.RawResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls >= len(f.results) {
		return nil, fmt.Errorf("unexpected execution call %d", f.calls+1)
	}
	next := f.results[f.calls]
	f.calls++
	return next.raw, next.err
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func raw(statusID int, timeVal, memVal any) scripted {
	r := &sandbox.RawResult{Time: timeVal, Memory: memVal}
	r.Status.ID = statusID
	return scripted{raw: r}
}

func accepted(timeSecs string, memKB float64) scripted {
	return raw(3, timeSecs, memKB)
}

func transportError() scripted {
	return scripted{err: fmt.Errorf("connection refused")}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Init(filepath.Join(t.TempDir(), "judge.db"))
	require.NoError(t, err)
	return db
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		ID:       uuid.NewString(),
		Username: "alice-" + uuid.NewString()[:8],
		Nickname: "alice",
		Role:     models.RoleUser,
	}
	require.NoError(t, database.CreateUser(db, user))
	return user
}

func seedProblem(t *testing.T, db *gorm.DB, difficulty models.Difficulty, numCases int) *models.Problem {
	t.Helper()
	problem := &models.Problem{
		ID:            uuid.NewString(),
		Slug:          "sum-" + uuid.NewString()[:8],
		Title:         "Sum of Two Numbers",
		Difficulty:    difficulty,
		TimeLimitMS:   2000,
		MemoryLimitMB: 256,
		IsActive:      true,
	}
	require.NoError(t, database.CreateProblem(db, problem))

	for i := 0; i < numCases; i++ {
		testType := models.TestCaseHidden
		if i == 0 {
			testType = models.TestCaseSample
		}
		require.NoError(t, database.CreateTestCase(db, &models.TestCase{
			ID:             uuid.NewString(),
			ProblemID:      problem.ID,
			TestType:       testType,
			InputData:      fmt.Sprintf("%d %d", i, i+1),
			ExpectedOutput: fmt.Sprintf("%d", i+i+1),
			Order:          i + 1,
			IsActive:       true,
		}))
	}
	return problem
}

func TestJudgeAllAccepted(t *testing.T) {
	db := newTestDB(t)
	exec := &fakeExecutor{results: []scripted{
		accepted("0.010", 1024),
		accepted("0.050", 2048),
		accepted("0.030", 512),
	}}
	engine := judge.NewEngine(db, exec)
	user := seedUser(t, db)
	problem := seedProblem(t, db, models.DifficultyEasy, 3)

	sub, err := engine.Judge(context.Background(), user, problem, "print(sum(map(int, input().split())))", models.LanguagePython)
	require.NoError(t, err)

	require.Equal(t, models.VerdictAccepted, sub.Verdict)
	require.Equal(t, 3, sub.TestCasesPassed)
	require.Equal(t, 3, sub.TotalTestCases)
	// Maxima across all cases.
	require.NotNil(t, sub.ExecutionTimeMS)
	require.Equal(t, 50, *sub.ExecutionTimeMS)
	require.NotNil(t, sub.MemoryUsedKB)
	require.Equal(t, 2048, *sub.MemoryUsedKB)

	stored, err := database.GetSubmission(db, sub.ID)
	require.NoError(t, err)
	require.Equal(t, models.VerdictAccepted, stored.Verdict)
	require.Len(t, stored.TestCaseResults, 3)

	// Statistics landed with the verdict.
	freshProblem, err := database.GetProblemByID(db, problem.ID)
	require.NoError(t, err)
	require.Equal(t, 1, freshProblem.TotalSubmissions)
	require.Equal(t, 1, freshProblem.AcceptedSubmissions)
	require.Equal(t, 1, freshProblem.TotalSolved)

	freshUser, err := database.GetUserByID(db, user.ID)
	require.NoError(t, err)
	require.Equal(t, 1, freshUser.TotalSolved)
	require.Equal(t, 1, freshUser.EasySolved)

	status, err := database.GetSolveStatus(db, user.ID, problem.ID)
	require.NoError(t, err)
	require.Equal(t, models.SolveSolved, status.Status)
	require.NotNil(t, status.FirstSolvedAt)
}

func TestJudgeFirstFailureDeterminesVerdict(t *testing.T) {
	db := newTestDB(t)
	// Case 2 fails WA, case 3 fails TLE; the verdict is the earlier failure.
	exec := &fakeExecutor{results: []scripted{
		accepted("0.010", 100),
		raw(4, "0.020", 200),
		raw(5, "2.000", 300),
	}}
	engine := judge.NewEngine(db, exec)
	user := seedUser(t, db)
	problem := seedProblem(t, db, models.DifficultyMedium, 3)

	sub, err := engine.Judge(context.Background(), user, problem, "code", models.LanguagePython)
	require.NoError(t, err)

	require.Equal(t, models.VerdictWrongAnswer, sub.Verdict)
	require.Equal(t, 1, sub.TestCasesPassed)
	// Maxima still cover the failing cases.
	require.Equal(t, 2000, *sub.ExecutionTimeMS)
	require.Equal(t, 300, *sub.MemoryUsedKB)

	// No solve recorded for a failed submission.
	freshUser, err := database.GetUserByID(db, user.ID)
	require.NoError(t, err)
	require.Equal(t, 0, freshUser.TotalSolved)

	freshProblem, err := database.GetProblemByID(db, problem.ID)
	require.NoError(t, err)
	require.Equal(t, 1, freshProblem.TotalSubmissions)
	require.Equal(t, 0, freshProblem.AcceptedSubmissions)
}

func TestJudgeCompileErrorShortCircuits(t *testing.T) {
	db := newTestDB(t)
	compileErr := raw(6, nil, nil)
	compileErr.raw.CompileOutput = "SyntaxError: invalid syntax"
	exec := &fakeExecutor{results: []scripted{compileErr}}
	engine := judge.NewEngine(db, exec)
	user := seedUser(t, db)
	problem := seedProblem(t, db, models.DifficultyEasy, 3)

	sub, err := engine.Judge(context.Background(), user, problem, "def broken(", models.LanguagePython)
	require.NoError(t, err)

	require.Equal(t, models.VerdictCompilationError, sub.Verdict)
	require.Equal(t, "SyntaxError: invalid syntax", sub.CompilationOutput)
	// Remaining cases were never executed.
	require.Equal(t, 1, exec.callCount())

	stored, err := database.GetSubmission(db, sub.ID)
	require.NoError(t, err)
	require.Len(t, stored.TestCaseResults, 1)
}

func TestJudgeSandboxFailureDegradesToRuntimeError(t *testing.T) {
	db := newTestDB(t)
	// First case cannot reach the sandbox; judging continues.
	exec := &fakeExecutor{results: []scripted{
		transportError(),
		accepted("0.010", 100),
	}}
	engine := judge.NewEngine(db, exec)
	user := seedUser(t, db)
	problem := seedProblem(t, db, models.DifficultyEasy, 2)

	sub, err := engine.Judge(context.Background(), user, problem, "code", models.LanguagePython)
	require.NoError(t, err)

	require.Equal(t, models.VerdictRuntimeError, sub.Verdict)
	require.Equal(t, 1, sub.TestCasesPassed)
	require.Equal(t, 2, exec.callCount())

	stored, err := database.GetSubmission(db, sub.ID)
	require.NoError(t, err)
	require.Len(t, stored.TestCaseResults, 2)
	require.Equal(t, models.VerdictRuntimeError, stored.TestCaseResults[0].Status)
	require.Equal(t, "failed to execute code", stored.TestCaseResults[0].ErrorMessage)
}

func TestJudgeNoTestCases(t *testing.T) {
	db := newTestDB(t)
	exec := &fakeExecutor{}
	engine := judge.NewEngine(db, exec)
	user := seedUser(t, db)
	problem := seedProblem(t, db, models.DifficultyEasy, 0)

	sub, err := engine.Judge(context.Background(), user, problem, "code", models.LanguagePython)
	require.NoError(t, err)
	require.Equal(t, models.VerdictInternalError, sub.Verdict)
	require.Equal(t, 0, exec.callCount())
}

func TestJudgeFirstSolveIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	exec := &fakeExecutor{results: []scripted{
		accepted("0.010", 100),
		accepted("0.010", 100),
	}}
	engine := judge.NewEngine(db, exec)
	user := seedUser(t, db)
	problem := seedProblem(t, db, models.DifficultyHard, 1)

	_, err := engine.Judge(context.Background(), user, problem, "code", models.LanguagePython)
	require.NoError(t, err)
	_, err = engine.Judge(context.Background(), user, problem, "code", models.LanguagePython)
	require.NoError(t, err)

	freshUser, err := database.GetUserByID(db, user.ID)
	require.NoError(t, err)
	require.Equal(t, 1, freshUser.TotalSolved)
	require.Equal(t, 1, freshUser.HardSolved)

	freshProblem, err := database.GetProblemByID(db, problem.ID)
	require.NoError(t, err)
	require.Equal(t, 1, freshProblem.TotalSolved)
	require.Equal(t, 2, freshProblem.TotalSubmissions)
	require.Equal(t, 2, freshProblem.AcceptedSubmissions)
}

func TestJudgeRejectsInvalidCode(t *testing.T) {
	db := newTestDB(t)
	engine := judge.NewEngine(db, &fakeExecutor{})
	user := seedUser(t, db)
	problem := seedProblem(t, db, models.DifficultyEasy, 1)

	_, err := engine.Judge(context.Background(), user, problem, "", models.LanguagePython)
	require.ErrorIs(t, err, judge.ErrEmptyCode)

	big := make([]byte, judge.MaxCodeBytes+1)
	for i := range big {
		big[i] = 'a'
	}
	_, err = engine.Judge(context.Background(), user, problem, string(big), models.LanguagePython)
	require.ErrorIs(t, err, judge.ErrCodeTooLarge)

	_, err = engine.Judge(context.Background(), user, problem, "code", models.Language("BRAINFUCK"))
	require.ErrorIs(t, err, judge.ErrUnknownLanguage)

	// No rows were created for rejected submissions.
	var count int64
	require.NoError(t, db.Model(&models.Submission{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRunSamplesPersistsNothing(t *testing.T) {
	db := newTestDB(t)
	// Only the single sample case runs, not the hidden ones.
	exec := &fakeExecutor{results: []scripted{raw(4, "0.010", 100)}}
	engine := judge.NewEngine(db, exec)
	problem := seedProblem(t, db, models.DifficultyEasy, 3)

	preview, err := engine.RunSamples(context.Background(), problem, "code", models.LanguagePython)
	require.NoError(t, err)

	require.Equal(t, models.VerdictWrongAnswer, preview.Verdict)
	require.Len(t, preview.Results, 1)
	require.Equal(t, 1, exec.callCount())

	var subs, results int64
	require.NoError(t, db.Model(&models.Submission{}).Count(&subs).Error)
	require.NoError(t, db.Model(&models.TestCaseResult{}).Count(&results).Error)
	require.Zero(t, subs)
	require.Zero(t, results)

	freshProblem, err := database.GetProblemByID(db, problem.ID)
	require.NoError(t, err)
	require.Zero(t, freshProblem.TotalSubmissions)
}

func TestJudgeZeroMeasurementIsStored(t *testing.T) {
	db := newTestDB(t)
	// The sandbox legitimately measures 0 ms and 0 KB.
	exec := &fakeExecutor{results: []scripted{accepted("0.000", 0)}}
	engine := judge.NewEngine(db, exec)
	user := seedUser(t, db)
	problem := seedProblem(t, db, models.DifficultyEasy, 1)

	sub, err := engine.Judge(context.Background(), user, problem, "pass", models.LanguagePython)
	require.NoError(t, err)

	require.Equal(t, models.VerdictAccepted, sub.Verdict)
	require.NotNil(t, sub.ExecutionTimeMS)
	require.Equal(t, 0, *sub.ExecutionTimeMS)
	require.NotNil(t, sub.MemoryUsedKB)
	require.Equal(t, 0, *sub.MemoryUsedKB)

	stored, err := database.GetSubmission(db, sub.ID)
	require.NoError(t, err)
	require.Len(t, stored.TestCaseResults, 1)
	require.NotNil(t, stored.TestCaseResults[0].ExecutionTimeMS)
	require.Equal(t, 0, *stored.TestCaseResults[0].ExecutionTimeMS)
	require.NotNil(t, stored.TestCaseResults[0].MemoryUsedKB)
	require.Equal(t, 0, *stored.TestCaseResults[0].MemoryUsedKB)
}

func TestJudgeUnmeasuredCasesStayNull(t *testing.T) {
	db := newTestDB(t)
	// Every case dies in transport; nothing was ever measured.
	exec := &fakeExecutor{results: []scripted{transportError()}}
	engine := judge.NewEngine(db, exec)
	user := seedUser(t, db)
	problem := seedProblem(t, db, models.DifficultyEasy, 1)

	sub, err := engine.Judge(context.Background(), user, problem, "pass", models.LanguagePython)
	require.NoError(t, err)

	require.Equal(t, models.VerdictRuntimeError, sub.Verdict)
	require.Nil(t, sub.ExecutionTimeMS)
	require.Nil(t, sub.MemoryUsedKB)

	stored, err := database.GetSubmission(db, sub.ID)
	require.NoError(t, err)
	require.Len(t, stored.TestCaseResults, 1)
	require.Nil(t, stored.TestCaseResults[0].ExecutionTimeMS)
	require.Nil(t, stored.TestCaseResults[0].MemoryUsedKB)
}
