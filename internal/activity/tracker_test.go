package activity_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openjudge-dev/openjudge/internal/activity"
	"github.com/openjudge-dev/openjudge/internal/database"
	"github.com/openjudge-dev/openjudge/internal/database/models"
	"github.com/openjudge-dev/openjudge/internal/pubsub"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Init(filepath.Join(t.TempDir(), "activity.db"))
	require.NoError(t, err)
	return db
}

func seedUser(t *testing.T, db *gorm.DB, totalSolved int) *models.User {
	t.Helper()
	user := &models.User{
		ID:          uuid.NewString(),
		Username:    "bob-" + uuid.NewString()[:8],
		TotalSolved: totalSolved,
	}
	require.NoError(t, database.CreateUser(db, user))
	return user
}

func seedAcceptedSubmission(t *testing.T, db *gorm.DB, userID, problemID string) string {
	t.Helper()
	sub := &models.Submission{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProblemID: problemID,
		Verdict:   models.VerdictAccepted,
	}
	require.NoError(t, db.Create(sub).Error)
	return sub.ID
}

func todayActivity(t *testing.T, db *gorm.DB, userID string) *models.UserActivity {
	t.Helper()
	var row models.UserActivity
	today := time.Now().Format("2006-01-02")
	require.NoError(t, db.Where("user_id = ? AND date = ?", userID, today).First(&row).Error)
	return &row
}

func TestRecordCountsSubmissions(t *testing.T) {
	db := newTestDB(t)
	tracker := activity.NewTracker(db)
	user := seedUser(t, db, 0)

	tracker.Record(pubsub.Event{
		Kind:         "judged",
		SubmissionID: uuid.NewString(),
		UserID:       user.ID,
		ProblemID:    uuid.NewString(),
		Data:         string(models.VerdictWrongAnswer),
	})

	row := todayActivity(t, db, user.ID)
	require.Equal(t, 1, row.SubmissionsCount)
	require.Equal(t, 0, row.ProblemsSolved)
}

func TestRecordSolvedOncePerProblemPerDay(t *testing.T) {
	db := newTestDB(t)
	tracker := activity.NewTracker(db)
	user := seedUser(t, db, 1)
	problemID := uuid.NewString()

	first := seedAcceptedSubmission(t, db, user.ID, problemID)
	tracker.Record(pubsub.Event{
		Kind:         "judged",
		SubmissionID: first,
		UserID:       user.ID,
		ProblemID:    problemID,
		Data:         string(models.VerdictAccepted),
	})

	row := todayActivity(t, db, user.ID)
	require.Equal(t, 1, row.SubmissionsCount)
	require.Equal(t, 1, row.ProblemsSolved)

	// Solving the same problem again on the same day counts the submission
	// but not another solve.
	second := seedAcceptedSubmission(t, db, user.ID, problemID)
	tracker.Record(pubsub.Event{
		Kind:         "judged",
		SubmissionID: second,
		UserID:       user.ID,
		ProblemID:    problemID,
		Data:         string(models.VerdictAccepted),
	})

	row = todayActivity(t, db, user.ID)
	require.Equal(t, 2, row.SubmissionsCount)
	require.Equal(t, 1, row.ProblemsSolved)
}

func TestStreakWalksBackFromToday(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 0)

	day := func(offset int) string {
		return time.Now().AddDate(0, 0, offset).Format("2006-01-02")
	}
	for _, d := range []string{day(0), day(-1)} {
		require.NoError(t, db.Create(&models.UserActivity{
			UserID:         user.ID,
			Date:           d,
			ProblemsSolved: 1,
		}).Error)
	}
	// A day with submissions but no solves breaks the streak.
	require.NoError(t, db.Create(&models.UserActivity{
		UserID:           user.ID,
		Date:             day(-2),
		SubmissionsCount: 3,
	}).Error)
	require.NoError(t, db.Create(&models.UserActivity{
		UserID:         user.ID,
		Date:           day(-3),
		ProblemsSolved: 2,
	}).Error)

	streak, err := activity.Streak(db, user.ID, time.Now())
	require.NoError(t, err)
	require.Equal(t, 2, streak)
}

func TestStreakZeroWithoutTodaySolve(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, 0)

	require.NoError(t, db.Create(&models.UserActivity{
		UserID:         user.ID,
		Date:           time.Now().AddDate(0, 0, -1).Format("2006-01-02"),
		ProblemsSolved: 1,
	}).Error)

	streak, err := activity.Streak(db, user.ID, time.Now())
	require.NoError(t, err)
	require.Zero(t, streak)
}

func TestFirstSolveAchievement(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, database.SeedAchievements(db))
	tracker := activity.NewTracker(db)
	user := seedUser(t, db, 1)
	problemID := uuid.NewString()

	subID := seedAcceptedSubmission(t, db, user.ID, problemID)
	tracker.Record(pubsub.Event{
		Kind:         "judged",
		SubmissionID: subID,
		UserID:       user.ID,
		ProblemID:    problemID,
		Data:         string(models.VerdictAccepted),
	})

	earned, err := database.GetUserAchievements(db, user.ID)
	require.NoError(t, err)
	require.Len(t, earned, 1)
	require.Equal(t, models.AchievementFirstSolve, earned[0].Achievement.Type)

	// Awards are idempotent.
	tracker.Record(pubsub.Event{
		Kind:         "judged",
		SubmissionID: seedAcceptedSubmission(t, db, user.ID, uuid.NewString()),
		UserID:       user.ID,
		ProblemID:    uuid.NewString(),
		Data:         string(models.VerdictAccepted),
	})
	earned, err = database.GetUserAchievements(db, user.ID)
	require.NoError(t, err)
	require.Len(t, earned, 1)
}
