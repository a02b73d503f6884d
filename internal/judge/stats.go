package judge

import (
	"errors"
	"time"

	"github.com/openjudge-dev/openjudge/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// applyProblemStats runs once per completed judging pass, inside the same
// transaction that writes the final verdict. Counter updates are SQL-level
// increments so concurrent submissions never lose one.
func applyProblemStats(tx *gorm.DB, userID string, problem *models.Problem, accepted bool) error {
	if err := tx.Model(&models.Problem{}).Where("id = ?", problem.ID).
		UpdateColumn("total_submissions", gorm.Expr("total_submissions + 1")).Error; err != nil {
		return err
	}
	if accepted {
		if err := tx.Model(&models.Problem{}).Where("id = ?", problem.ID).
			UpdateColumn("accepted_submissions", gorm.Expr("accepted_submissions + 1")).Error; err != nil {
			return err
		}
	}
	return applyFirstSolve(tx, userID, problem, accepted)
}

// applyFirstSolve transitions the (user, problem) solve status and, exactly
// once per user per problem, bumps the solved aggregates. Repeat acceptances
// of an already-solved problem change nothing here.
func applyFirstSolve(tx *gorm.DB, userID string, problem *models.Problem, accepted bool) error {
	status, err := getOrCreateSolveStatus(tx, userID, problem.ID)
	if err != nil {
		return err
	}

	if !accepted || status.Status == models.SolveSolved {
		return nil
	}

	now := time.Now()
	if err := tx.Model(&models.ProblemSolveStatus{}).Where("id = ?", status.ID).
		Updates(map[string]any{
			"status":          models.SolveSolved,
			"first_solved_at": now,
		}).Error; err != nil {
		return err
	}

	if err := tx.Model(&models.Problem{}).Where("id = ?", problem.ID).
		UpdateColumn("total_solved", gorm.Expr("total_solved + 1")).Error; err != nil {
		return err
	}

	userUpdates := map[string]any{
		"total_solved": gorm.Expr("total_solved + 1"),
	}
	switch problem.Difficulty {
	case models.DifficultyEasy:
		userUpdates["easy_solved"] = gorm.Expr("easy_solved + 1")
	case models.DifficultyMedium:
		userUpdates["medium_solved"] = gorm.Expr("medium_solved + 1")
	case models.DifficultyHard:
		userUpdates["hard_solved"] = gorm.Expr("hard_solved + 1")
	}
	return tx.Model(&models.User{}).Where("id = ?", userID).UpdateColumns(userUpdates).Error
}

func getOrCreateSolveStatus(tx *gorm.DB, userID, problemID string) (*models.ProblemSolveStatus, error) {
	var status models.ProblemSolveStatus
	err := tx.Where("user_id = ? AND problem_id = ?", userID, problemID).First(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		status = models.ProblemSolveStatus{UserID: userID, ProblemID: problemID}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "problem_id"}},
			DoNothing: true,
		}).Create(&status).Error; err != nil {
			return nil, err
		}
		err = tx.Where("user_id = ? AND problem_id = ?", userID, problemID).First(&status).Error
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}
