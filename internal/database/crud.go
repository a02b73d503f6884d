package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/openjudge-dev/openjudge/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// User CRUD
func CreateUser(db *gorm.DB, user *models.User) error {
	return db.Create(user).Error
}

func GetUserByID(db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUserByUsername(db *gorm.DB, username string) (*models.User, error) {
	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetAllUsers(db *gorm.DB) ([]models.User, error) {
	var users []models.User
	if err := db.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func UpdateUser(db *gorm.DB, user *models.User) error {
	return db.Save(user).Error
}

// Problem CRUD
func CreateProblem(db *gorm.DB, problem *models.Problem) error {
	return db.Create(problem).Error
}

func GetProblemByID(db *gorm.DB, id string) (*models.Problem, error) {
	var problem models.Problem
	if err := db.Where("id = ?", id).First(&problem).Error; err != nil {
		return nil, err
	}
	return &problem, nil
}

// GetActiveProblemBySlug resolves the slug used by all user-facing problem
// endpoints. Inactive (soft-deleted) problems are invisible here.
func GetActiveProblemBySlug(db *gorm.DB, slug string) (*models.Problem, error) {
	var problem models.Problem
	if err := db.Where("slug = ? AND is_active = ?", slug, true).First(&problem).Error; err != nil {
		return nil, err
	}
	return &problem, nil
}

type ProblemFilter struct {
	Difficulty models.Difficulty
	Search     string
}

func ListActiveProblems(db *gorm.DB, filter ProblemFilter) ([]models.Problem, error) {
	q := db.Where("is_active = ?", true)
	if filter.Difficulty != "" {
		q = q.Where("difficulty = ?", filter.Difficulty)
	}
	if filter.Search != "" {
		q = q.Where("title LIKE ?", "%"+filter.Search+"%")
	}
	var problems []models.Problem
	if err := q.Order("created_at desc").Find(&problems).Error; err != nil {
		return nil, err
	}
	return problems, nil
}

func UpdateProblem(db *gorm.DB, problem *models.Problem) error {
	return db.Save(problem).Error
}

// DeactivateProblem soft-deletes a problem; submissions referencing it stay.
func DeactivateProblem(db *gorm.DB, id string) error {
	return db.Model(&models.Problem{}).Where("id = ?", id).Update("is_active", false).Error
}

// Test case CRUD
func CreateTestCase(db *gorm.DB, tc *models.TestCase) error {
	return db.Create(tc).Error
}

// GetActiveTestCases returns the cases considered at judging time, ordered by
// their judge order. With sampleOnly set it returns the run/preview set.
func GetActiveTestCases(db *gorm.DB, problemID string, sampleOnly bool) ([]models.TestCase, error) {
	q := db.Where("problem_id = ? AND is_active = ?", problemID, true)
	if sampleOnly {
		q = q.Where("test_type = ?", models.TestCaseSample)
	}
	var cases []models.TestCase
	if err := q.Order("`order` asc").Find(&cases).Error; err != nil {
		return nil, err
	}
	return cases, nil
}

func DeleteTestCase(db *gorm.DB, id string) error {
	return db.Delete(&models.TestCase{}, "id = ?", id).Error
}

// Submission CRUD
func CreateSubmission(db *gorm.DB, sub *models.Submission) error {
	return db.Create(sub).Error
}

func GetSubmission(db *gorm.DB, id string) (*models.Submission, error) {
	var sub models.Submission
	if err := db.Preload("User").Preload("Problem").
		Preload("TestCaseResults", func(db *gorm.DB) *gorm.DB {
			return db.Order("test_case_results.`order` asc")
		}).
		Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func GetSubmissionsByUserID(db *gorm.DB, userID string) ([]models.Submission, error) {
	var subs []models.Submission
	if err := db.Preload("Problem").Where("user_id = ?", userID).
		Order("created_at desc").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

type SubmissionFilter struct {
	ProblemID string
	Verdict   models.Verdict
	Language  models.Language
	UserID    string
}

func ListSubmissions(db *gorm.DB, filter SubmissionFilter) ([]models.Submission, error) {
	q := db.Preload("User").Preload("Problem")
	if filter.ProblemID != "" {
		q = q.Where("problem_id = ?", filter.ProblemID)
	}
	if filter.Verdict != "" {
		q = q.Where("verdict = ?", filter.Verdict)
	}
	if filter.Language != "" {
		q = q.Where("language = ?", filter.Language)
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	var subs []models.Submission
	if err := q.Order("created_at desc").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// UserSubmissionStats is the aggregate returned by the my-stats endpoint.
type UserSubmissionStats struct {
	TotalSubmissions  int64   `json:"total_submissions"`
	Accepted          int64   `json:"accepted"`
	WrongAnswer       int64   `json:"wrong_answer"`
	TimeLimitExceeded int64   `json:"time_limit_exceeded"`
	RuntimeError      int64   `json:"runtime_error"`
	CompilationError  int64   `json:"compilation_error"`
	AcceptanceRate    float64 `json:"acceptance_rate"`
}

func GetUserSubmissionStats(db *gorm.DB, userID string) (*UserSubmissionStats, error) {
	var stats UserSubmissionStats
	base := db.Model(&models.Submission{}).Where("user_id = ?", userID)

	if err := base.Count(&stats.TotalSubmissions).Error; err != nil {
		return nil, err
	}
	counts := map[models.Verdict]*int64{
		models.VerdictAccepted:          &stats.Accepted,
		models.VerdictWrongAnswer:       &stats.WrongAnswer,
		models.VerdictTimeLimitExceeded: &stats.TimeLimitExceeded,
		models.VerdictRuntimeError:      &stats.RuntimeError,
		models.VerdictCompilationError:  &stats.CompilationError,
	}
	for verdict, dst := range counts {
		if err := db.Model(&models.Submission{}).
			Where("user_id = ? AND verdict = ?", userID, verdict).
			Count(dst).Error; err != nil {
			return nil, err
		}
	}
	if stats.TotalSubmissions > 0 {
		stats.AcceptanceRate = float64(stats.Accepted) / float64(stats.TotalSubmissions) * 100
	}
	return &stats, nil
}

func GetSolveStatus(db *gorm.DB, userID, problemID string) (*models.ProblemSolveStatus, error) {
	var status models.ProblemSolveStatus
	if err := db.Where("user_id = ? AND problem_id = ?", userID, problemID).
		First(&status).Error; err != nil {
		return nil, err
	}
	return &status, nil
}

func GetSolveStatusesByUser(db *gorm.DB, userID string) ([]models.ProblemSolveStatus, error) {
	var statuses []models.ProblemSolveStatus
	if err := db.Where("user_id = ?", userID).Find(&statuses).Error; err != nil {
		return nil, err
	}
	return statuses, nil
}

// Contest CRUD
func CreateContest(db *gorm.DB, contest *models.Contest) error {
	return db.Create(contest).Error
}

func GetActiveContestBySlug(db *gorm.DB, slug string) (*models.Contest, error) {
	var contest models.Contest
	if err := db.Where("slug = ? AND is_active = ?", slug, true).First(&contest).Error; err != nil {
		return nil, err
	}
	return &contest, nil
}

func ListContests(db *gorm.DB, publicOnly bool) ([]models.Contest, error) {
	q := db.Where("is_active = ?", true)
	if publicOnly {
		q = q.Where("is_public = ?", true)
	}
	var contests []models.Contest
	if err := q.Order("start_time desc").Find(&contests).Error; err != nil {
		return nil, err
	}
	return contests, nil
}

// DeactivateContest hides a contest from every user-facing endpoint while
// keeping its submissions and standings.
func DeactivateContest(db *gorm.DB, id string) error {
	return db.Model(&models.Contest{}).Where("id = ?", id).Update("is_active", false).Error
}

func UpdateContest(db *gorm.DB, contest *models.Contest) error {
	return db.Save(contest).Error
}

func IsUserRegisteredForContest(db *gorm.DB, userID, contestID string) (bool, error) {
	var count int64
	err := db.Model(&models.ContestRegistration{}).
		Where("user_id = ? AND contest_id = ?", userID, contestID).
		Count(&count).Error
	return count > 0, err
}

var ErrAlreadyRegistered = errors.New("already registered for this contest")
var ErrContestFull = errors.New("contest has reached its participant limit")

// RegisterForContest creates the registration and bumps the participant
// counter in one transaction; the unique index rejects duplicates.
func RegisterForContest(db *gorm.DB, userID, contestID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		registered, err := IsUserRegisteredForContest(tx, userID, contestID)
		if err != nil {
			return err
		}
		if registered {
			return ErrAlreadyRegistered
		}

		var contest models.Contest
		if err := tx.Where("id = ?", contestID).First(&contest).Error; err != nil {
			return err
		}
		if contest.MaxParticipants != nil && contest.TotalParticipants >= *contest.MaxParticipants {
			return ErrContestFull
		}

		if err := tx.Create(&models.ContestRegistration{
			UserID:    userID,
			ContestID: contestID,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Contest{}).Where("id = ?", contestID).
			UpdateColumn("total_participants", gorm.Expr("total_participants + 1")).Error
	})
}

// Contest announcement CRUD
func CreateContestAnnouncement(db *gorm.DB, ann *models.ContestAnnouncement) error {
	return db.Create(ann).Error
}

func GetContestAnnouncement(db *gorm.DB, id string) (*models.ContestAnnouncement, error) {
	var ann models.ContestAnnouncement
	if err := db.Where("id = ?", id).First(&ann).Error; err != nil {
		return nil, err
	}
	return &ann, nil
}

// GetContestAnnouncements returns a contest's announcements, newest first.
func GetContestAnnouncements(db *gorm.DB, contestID string) ([]models.ContestAnnouncement, error) {
	var anns []models.ContestAnnouncement
	err := db.Where("contest_id = ?", contestID).
		Order("created_at DESC").
		Find(&anns).Error
	return anns, err
}

func UpdateContestAnnouncement(db *gorm.DB, ann *models.ContestAnnouncement) error {
	return db.Save(ann).Error
}

func DeleteContestAnnouncement(db *gorm.DB, id string) error {
	return db.Where("id = ?", id).Delete(&models.ContestAnnouncement{}).Error
}

// Contest problem CRUD
func CreateContestProblem(db *gorm.DB, problem *models.ContestProblem) error {
	return db.Create(problem).Error
}

func GetActiveContestProblem(db *gorm.DB, contestID, problemID string) (*models.ContestProblem, error) {
	var problem models.ContestProblem
	if err := db.Where("id = ? AND contest_id = ? AND is_active = ?", problemID, contestID, true).
		First(&problem).Error; err != nil {
		return nil, err
	}
	return &problem, nil
}

func ListActiveContestProblems(db *gorm.DB, contestID string) ([]models.ContestProblem, error) {
	var problems []models.ContestProblem
	if err := db.Where("contest_id = ? AND is_active = ?", contestID, true).
		Order("`order` asc").Find(&problems).Error; err != nil {
		return nil, err
	}
	return problems, nil
}

func UpdateContestProblem(db *gorm.DB, problem *models.ContestProblem) error {
	return db.Save(problem).Error
}

func CreateContestTestCase(db *gorm.DB, tc *models.ContestTestCase) error {
	return db.Create(tc).Error
}

func GetActiveContestTestCases(db *gorm.DB, problemID string) ([]models.ContestTestCase, error) {
	var cases []models.ContestTestCase
	if err := db.Where("problem_id = ? AND is_active = ?", problemID, true).
		Order("`order` asc").Find(&cases).Error; err != nil {
		return nil, err
	}
	return cases, nil
}

// Contest submission / participant helpers
func GetContestSubmission(db *gorm.DB, id string) (*models.ContestSubmission, error) {
	var sub models.ContestSubmission
	if err := db.Preload("User").Preload("Problem").Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func GetContestSubmissionsByUser(db *gorm.DB, contestID, userID string) ([]models.ContestSubmission, error) {
	var subs []models.ContestSubmission
	if err := db.Preload("Problem").
		Where("contest_id = ? AND user_id = ?", contestID, userID).
		Order("created_at desc").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func GetOrCreateParticipant(db *gorm.DB, contestID, userID string) (*models.ContestParticipant, error) {
	var participant models.ContestParticipant
	err := db.Where("contest_id = ? AND user_id = ?", contestID, userID).First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		participant = models.ContestParticipant{ContestID: contestID, UserID: userID}
		err = db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "contest_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(&participant).Error
		if err != nil {
			return nil, err
		}
		// Re-read in case a concurrent request won the insert.
		err = db.Where("contest_id = ? AND user_id = ?", contestID, userID).First(&participant).Error
	}
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func GetOrCreateContestProblemStatus(db *gorm.DB, participantID uint, problemID string) (*models.ContestProblemStatus, error) {
	var status models.ContestProblemStatus
	err := db.Where("participant_id = ? AND problem_id = ?", participantID, problemID).First(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		status = models.ContestProblemStatus{ParticipantID: participantID, ProblemID: problemID}
		err = db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "participant_id"}, {Name: "problem_id"}},
			DoNothing: true,
		}).Create(&status).Error
		if err != nil {
			return nil, err
		}
		err = db.Where("participant_id = ? AND problem_id = ?", participantID, problemID).First(&status).Error
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func GetContestProblemStatuses(db *gorm.DB, participantID uint) ([]models.ContestProblemStatus, error) {
	var statuses []models.ContestProblemStatus
	if err := db.Where("participant_id = ?", participantID).Find(&statuses).Error; err != nil {
		return nil, err
	}
	return statuses, nil
}

// GetLeaderboard returns participants in their cached rank order; unranked
// participants sort last.
func GetLeaderboard(db *gorm.DB, contestID string) ([]models.ContestParticipant, error) {
	var participants []models.ContestParticipant
	if err := db.Preload("User").Where("contest_id = ?", contestID).
		Order("CASE WHEN `rank` IS NULL THEN 1 ELSE 0 END, `rank` asc").
		Find(&participants).Error; err != nil {
		return nil, err
	}
	return participants, nil
}

// Activity helpers
func GetOrCreateUserActivity(db *gorm.DB, userID string, date string) (*models.UserActivity, error) {
	var activity models.UserActivity
	err := db.Where("user_id = ? AND date = ?", userID, date).First(&activity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		activity = models.UserActivity{UserID: userID, Date: date}
		err = db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoNothing: true,
		}).Create(&activity).Error
		if err != nil {
			return nil, err
		}
		err = db.Where("user_id = ? AND date = ?", userID, date).First(&activity).Error
	}
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

func GetUserActivities(db *gorm.DB, userID string, since string) ([]models.UserActivity, error) {
	var activities []models.UserActivity
	q := db.Where("user_id = ?", userID)
	if since != "" {
		q = q.Where("date >= ?", since)
	}
	if err := q.Order("date desc").Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

func GetUserAchievements(db *gorm.DB, userID string) ([]models.UserAchievement, error) {
	var earned []models.UserAchievement
	if err := db.Preload("Achievement").Where("user_id = ?", userID).
		Order("created_at desc").Find(&earned).Error; err != nil {
		return nil, err
	}
	return earned, nil
}

// HasOtherAcceptedSubmissionSince reports whether the user has an accepted
// submission for the problem since dayStart, other than the given one. Guards
// the at-most-once-per-day problems_solved increment.
func HasOtherAcceptedSubmissionSince(db *gorm.DB, userID, problemID string, dayStart time.Time, excludeSubmissionID string) (bool, error) {
	var count int64
	err := db.Model(&models.Submission{}).
		Where("user_id = ? AND problem_id = ? AND verdict = ? AND created_at >= ? AND id <> ?",
			userID, problemID, models.VerdictAccepted, dayStart, excludeSubmissionID).
		Count(&count).Error
	return count > 0, err
}

// SeedAchievements inserts the built-in achievement catalog if missing.
func SeedAchievements(db *gorm.DB) error {
	catalog := []models.Achievement{
		{Type: models.AchievementFirstSolve, Name: "First Blood", Description: "Solved your first problem"},
		{Type: models.AchievementSolve10, Name: "Getting Warm", Description: "Solved 10 problems"},
		{Type: models.AchievementSolve50, Name: "Problem Crusher", Description: "Solved 50 problems"},
		{Type: models.AchievementSolve100, Name: "Centurion", Description: "Solved 100 problems"},
		{Type: models.AchievementSolveStreak7, Name: "One Week Streak", Description: "Solved problems 7 days in a row"},
		{Type: models.AchievementSolveStreak30, Name: "One Month Streak", Description: "Solved problems 30 days in a row"},
	}
	for _, a := range catalog {
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "type"}},
			DoNothing: true,
		}).Create(&a).Error; err != nil {
			return fmt.Errorf("failed to seed achievement %s: %w", a.Type, err)
		}
	}
	return nil
}
