package judge_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openjudge-dev/openjudge/internal/database"
	"github.com/openjudge-dev/openjudge/internal/database/models"
	"github.com/openjudge-dev/openjudge/internal/judge"
)

func seedContest(t *testing.T, db *gorm.DB, start, end time.Time) *models.Contest {
	t.Helper()
	contest := &models.Contest{
		ID:        uuid.NewString(),
		Slug:      "weekly-" + uuid.NewString()[:8],
		Title:     "Weekly Contest",
		StartTime: start,
		EndTime:   end,
		IsPublic:  true,
		IsActive:  true,
	}
	require.NoError(t, database.CreateContest(db, contest))
	return contest
}

func seedContestProblem(t *testing.T, db *gorm.DB, contestID string, points, numCases int) *models.ContestProblem {
	t.Helper()
	problem := &models.ContestProblem{
		ID:            uuid.NewString(),
		ContestID:     contestID,
		Title:         "Array Rotation",
		Points:        points,
		TimeLimitMS:   2000,
		MemoryLimitMB: 256,
		IsActive:      true,
	}
	require.NoError(t, database.CreateContestProblem(db, problem))

	for i := 0; i < numCases; i++ {
		require.NoError(t, database.CreateContestTestCase(db, &models.ContestTestCase{
			ID:             uuid.NewString(),
			ProblemID:      problem.ID,
			TestType:       models.TestCaseHidden,
			InputData:      "3 1",
			ExpectedOutput: "ok",
			Order:          i + 1,
			IsActive:       true,
		}))
	}
	return problem
}

func runningWindow() (time.Time, time.Time) {
	now := time.Now()
	return now.Add(-30 * time.Minute), now.Add(90 * time.Minute)
}

func TestJudgeContestPreconditions(t *testing.T) {
	db := newTestDB(t)
	exec := &fakeExecutor{}
	engine := judge.NewEngine(db, exec)
	user := seedUser(t, db)

	// Contest not yet started.
	future := seedContest(t, db, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	futureProblem := seedContestProblem(t, db, future.ID, 100, 1)
	_, err := engine.JudgeContest(context.Background(), user, future, futureProblem, "code", models.LanguagePython)
	require.ErrorIs(t, err, judge.ErrContestNotRunning)

	// Running contest, but the user never registered.
	start, end := runningWindow()
	contest := seedContest(t, db, start, end)
	problem := seedContestProblem(t, db, contest.ID, 100, 1)
	_, err = engine.JudgeContest(context.Background(), user, contest, problem, "code", models.LanguagePython)
	require.ErrorIs(t, err, judge.ErrNotRegistered)

	// Registered, but the problem belongs to another contest.
	require.NoError(t, database.RegisterForContest(db, user.ID, contest.ID))
	_, err = engine.JudgeContest(context.Background(), user, contest, futureProblem, "code", models.LanguagePython)
	require.ErrorIs(t, err, judge.ErrProblemNotInContest)

	// Rejected submissions leave no trace.
	var subs, participants int64
	require.NoError(t, db.Model(&models.ContestSubmission{}).Count(&subs).Error)
	require.NoError(t, db.Model(&models.ContestParticipant{}).Count(&participants).Error)
	require.Zero(t, subs)
	require.Zero(t, participants)
	require.Zero(t, exec.callCount())
}

func TestJudgeContestWrongThenAccepted(t *testing.T) {
	db := newTestDB(t)
	exec := &fakeExecutor{results: []scripted{
		raw(4, "0.020", 100),   // first attempt: wrong answer
		accepted("0.010", 200), // second attempt: accepted
	}}
	engine := judge.NewEngine(db, exec)
	user := seedUser(t, db)
	start, end := runningWindow()
	contest := seedContest(t, db, start, end)
	problem := seedContestProblem(t, db, contest.ID, 100, 1)
	require.NoError(t, database.RegisterForContest(db, user.ID, contest.ID))

	// Wrong answer first.
	sub, err := engine.JudgeContest(context.Background(), user, contest, problem, "code", models.LanguagePython)
	require.NoError(t, err)
	require.Equal(t, models.VerdictWrongAnswer, sub.Verdict)

	participant, err := database.GetOrCreateParticipant(db, contest.ID, user.ID)
	require.NoError(t, err)
	require.Equal(t, 0, participant.TotalScore)
	require.Equal(t, 0, participant.ProblemsSolved)

	statuses, err := database.GetContestProblemStatuses(db, participant.ID)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.Equal(t, 1, statuses[0].Attempts)
	require.Equal(t, 1, statuses[0].WrongAttempts)
	require.Equal(t, models.SolveAttempted, statuses[0].Status)

	// Accepted on the second attempt.
	sub, err = engine.JudgeContest(context.Background(), user, contest, problem, "code", models.LanguagePython)
	require.NoError(t, err)
	require.Equal(t, models.VerdictAccepted, sub.Verdict)

	participant, err = database.GetOrCreateParticipant(db, contest.ID, user.ID)
	require.NoError(t, err)
	require.Equal(t, 100, participant.TotalScore)
	require.Equal(t, 1, participant.ProblemsSolved)
	// One wrong attempt before the solve costs 20 penalty minutes.
	require.Equal(t, 20, participant.PenaltyTimeMinutes)
	// The window opened 30 minutes ago; allow the clock crossing a minute
	// boundary mid-test.
	require.InDelta(t, 30, participant.TotalTimeMinutes, 1)
	require.NotNil(t, participant.Rank)
	require.Equal(t, 1, *participant.Rank)
	require.NotNil(t, participant.LastSubmissionAt)

	statuses, err = database.GetContestProblemStatuses(db, participant.ID)
	require.NoError(t, err)
	require.Equal(t, models.SolveSolved, statuses[0].Status)
	require.Equal(t, 100, statuses[0].Score)
	require.Equal(t, 2, statuses[0].Attempts)
	require.Equal(t, 1, statuses[0].WrongAttempts)
	require.NotNil(t, statuses[0].SolveTimeMinutes)
	require.InDelta(t, 30, *statuses[0].SolveTimeMinutes, 1)

	// Problem counters.
	fresh, err := database.GetActiveContestProblem(db, contest.ID, problem.ID)
	require.NoError(t, err)
	require.Equal(t, 2, fresh.TotalSubmissions)
	require.Equal(t, 1, fresh.AcceptedSubmissions)
	require.Equal(t, 1, fresh.TotalSolved)

	// Contest submissions never materialize per-case rows.
	var caseRows int64
	require.NoError(t, db.Model(&models.TestCaseResult{}).Count(&caseRows).Error)
	require.Zero(t, caseRows)
}

func TestJudgeContestRepeatAcceptDoesNotDoubleCount(t *testing.T) {
	db := newTestDB(t)
	exec := &fakeExecutor{results: []scripted{
		accepted("0.010", 100),
		accepted("0.010", 100),
	}}
	engine := judge.NewEngine(db, exec)
	user := seedUser(t, db)
	start, end := runningWindow()
	contest := seedContest(t, db, start, end)
	problem := seedContestProblem(t, db, contest.ID, 100, 1)
	require.NoError(t, database.RegisterForContest(db, user.ID, contest.ID))

	for i := 0; i < 2; i++ {
		_, err := engine.JudgeContest(context.Background(), user, contest, problem, "code", models.LanguagePython)
		require.NoError(t, err)
	}

	participant, err := database.GetOrCreateParticipant(db, contest.ID, user.ID)
	require.NoError(t, err)
	require.Equal(t, 100, participant.TotalScore)
	require.Equal(t, 1, participant.ProblemsSolved)
	require.Equal(t, 0, participant.PenaltyTimeMinutes)

	statuses, err := database.GetContestProblemStatuses(db, participant.ID)
	require.NoError(t, err)
	require.Equal(t, 2, statuses[0].Attempts)
	// A resubmission after solving is not a wrong attempt.
	require.Equal(t, 0, statuses[0].WrongAttempts)
}

func TestUpdateRankingsOrdering(t *testing.T) {
	db := newTestDB(t)
	engine := judge.NewEngine(db, &fakeExecutor{})
	start, end := runningWindow()
	contest := seedContest(t, db, start, end)

	mk := func(score, minutes int) *models.ContestParticipant {
		p := &models.ContestParticipant{
			ContestID:        contest.ID,
			UserID:           uuid.NewString(),
			TotalScore:       score,
			TotalTimeMinutes: minutes,
		}
		require.NoError(t, db.Create(p).Error)
		return p
	}

	slow := mk(200, 80)
	fast := mk(200, 40)
	low := mk(100, 10)

	require.NoError(t, engine.UpdateRankings(contest.ID))

	rankOf := func(id uint) int {
		var p models.ContestParticipant
		require.NoError(t, db.First(&p, id).Error)
		require.NotNil(t, p.Rank)
		return *p.Rank
	}

	// Higher score first; equal scores break on lower total time.
	require.Equal(t, 1, rankOf(fast.ID))
	require.Equal(t, 2, rankOf(slow.ID))
	require.Equal(t, 3, rankOf(low.ID))
}

func TestLeaderboardOrdersRankedFirst(t *testing.T) {
	db := newTestDB(t)
	engine := judge.NewEngine(db, &fakeExecutor{})
	start, end := runningWindow()
	contest := seedContest(t, db, start, end)

	for _, score := range []int{50, 150, 100} {
		require.NoError(t, db.Create(&models.ContestParticipant{
			ContestID:  contest.ID,
			UserID:     uuid.NewString(),
			TotalScore: score,
		}).Error)
	}
	require.NoError(t, engine.UpdateRankings(contest.ID))

	board, err := database.GetLeaderboard(db, contest.ID)
	require.NoError(t, err)
	require.Len(t, board, 3)
	require.Equal(t, 150, board[0].TotalScore)
	require.Equal(t, 100, board[1].TotalScore)
	require.Equal(t, 50, board[2].TotalScore)
	for i, entry := range board {
		require.NotNil(t, entry.Rank)
		require.Equal(t, i+1, *entry.Rank)
	}
}
