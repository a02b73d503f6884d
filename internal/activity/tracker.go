package activity

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openjudge-dev/openjudge/internal/database"
	"github.com/openjudge-dev/openjudge/internal/database/models"
	"github.com/openjudge-dev/openjudge/internal/pubsub"
)

const dateLayout = "2006-01-02"

// Tracker maintains per-day activity counters, solve streaks, and
// achievement unlocks. It consumes judging events from the broker and stays
// off the judging critical path: its failures are logged, never surfaced.
type Tracker struct {
	db *gorm.DB
}

func NewTracker(db *gorm.DB) *Tracker {
	return &Tracker{db: db}
}

// Start consumes the submissions feed until ctx is cancelled.
func (t *Tracker) Start(ctx context.Context) {
	events, unsubscribe := pubsub.GetBroker().Subscribe(pubsub.SubmissionsTopic)
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-events:
				if !ok {
					return
				}
				var ev pubsub.Event
				if err := json.Unmarshal(raw, &ev); err != nil {
					zap.S().Errorf("activity tracker: malformed event: %v", err)
					continue
				}
				t.Record(ev)
			}
		}
	}()
}

// Record processes one judged-submission event.
func (t *Tracker) Record(ev pubsub.Event) {
	if ev.UserID == "" {
		return
	}
	now := time.Now()
	today := now.Format(dateLayout)

	activity, err := database.GetOrCreateUserActivity(t.db, ev.UserID, today)
	if err != nil {
		zap.S().Errorf("activity tracker: failed to load activity for user %s: %v", ev.UserID, err)
		return
	}

	updates := map[string]any{
		"submissions_count": gorm.Expr("submissions_count + 1"),
	}

	if models.Verdict(ev.Data) == models.VerdictAccepted {
		solvedAlready, err := t.solvedEarlierToday(ev, now)
		if err != nil {
			zap.S().Errorf("activity tracker: failed to check prior acceptance: %v", err)
		} else if !solvedAlready {
			updates["problems_solved"] = gorm.Expr("problems_solved + 1")
		}
	}

	if err := t.db.Model(&models.UserActivity{}).Where("id = ?", activity.ID).
		UpdateColumns(updates).Error; err != nil {
		zap.S().Errorf("activity tracker: failed to update activity: %v", err)
		return
	}

	t.checkAchievements(ev.UserID)
}

// solvedEarlierToday guards the at-most-once-per-(user, problem, day)
// problems_solved increment.
func (t *Tracker) solvedEarlierToday(ev pubsub.Event, now time.Time) (bool, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return database.HasOtherAcceptedSubmissionSince(t.db, ev.UserID, ev.ProblemID, dayStart, ev.SubmissionID)
}

// Streak counts consecutive calendar days with at least one solved problem,
// walking backward from today and stopping at the first gap.
func (t *Tracker) Streak(userID string) (int, error) {
	return Streak(t.db, userID, time.Now())
}

func Streak(db *gorm.DB, userID string, today time.Time) (int, error) {
	activities, err := database.GetUserActivities(db, userID, "")
	if err != nil {
		return 0, err
	}

	solvedOn := make(map[string]bool, len(activities))
	for _, a := range activities {
		if a.ProblemsSolved > 0 {
			solvedOn[a.Date] = true
		}
	}

	streak := 0
	day := today
	for solvedOn[day.Format(dateLayout)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak, nil
}

func (t *Tracker) checkAchievements(userID string) {
	user, err := database.GetUserByID(t.db, userID)
	if err != nil {
		zap.S().Errorf("activity tracker: failed to load user %s: %v", userID, err)
		return
	}

	switch {
	case user.TotalSolved >= 100:
		t.award(userID, models.AchievementSolve100)
		fallthrough
	case user.TotalSolved >= 50:
		t.award(userID, models.AchievementSolve50)
		fallthrough
	case user.TotalSolved >= 10:
		t.award(userID, models.AchievementSolve10)
		fallthrough
	case user.TotalSolved >= 1:
		t.award(userID, models.AchievementFirstSolve)
	}

	streak, err := t.Streak(userID)
	if err != nil {
		zap.S().Errorf("activity tracker: failed to compute streak for %s: %v", userID, err)
		return
	}
	if streak >= 30 {
		t.award(userID, models.AchievementSolveStreak30)
	}
	if streak >= 7 {
		t.award(userID, models.AchievementSolveStreak7)
	}
}

// award unlocks an achievement once; repeats are no-ops.
func (t *Tracker) award(userID string, achievementType models.AchievementType) {
	var achievement models.Achievement
	err := t.db.Where("type = ?", achievementType).First(&achievement).Error
	if err != nil {
		// Catalog not seeded; nothing to award.
		return
	}

	err = t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
		DoNothing: true,
	}).Create(&models.UserAchievement{
		UserID:        userID,
		AchievementID: achievement.ID,
	}).Error
	if err != nil {
		zap.S().Errorf("activity tracker: failed to award %s to %s: %v", achievementType, userID, err)
	}
}
