package judge

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/openjudge-dev/openjudge/internal/database/models"
)

// RecoverInterrupted handles startup recovery. Judging is synchronous, so a
// submission still PENDING or RUNNING in the database means the process died
// mid-request; those rows get a terminal INTERNAL_ERROR verdict so the
// "terminal verdict once judged" contract holds across restarts.
func RecoverInterrupted(db *gorm.DB) error {
	zap.S().Info("starting recovery process for interrupted submissions...")

	nonTerminal := []models.Verdict{models.VerdictPending, models.VerdictRunning}

	result := db.Model(&models.Submission{}).
		Where("verdict IN ?", nonTerminal).
		Updates(map[string]any{
			"verdict":       models.VerdictInternalError,
			"error_message": "judging interrupted by system restart",
		})
	if result.Error != nil {
		return result.Error
	}
	recovered := result.RowsAffected

	if err := db.Model(&models.TestCaseResult{}).
		Where("status = ?", models.VerdictPending).
		Update("status", models.VerdictInternalError).Error; err != nil {
		return err
	}

	result = db.Model(&models.ContestSubmission{}).
		Where("verdict IN ?", nonTerminal).
		Updates(map[string]any{
			"verdict":       models.VerdictInternalError,
			"error_message": "judging interrupted by system restart",
		})
	if result.Error != nil {
		return result.Error
	}
	recovered += result.RowsAffected

	if recovered == 0 {
		zap.S().Info("no interrupted submissions found to recover")
	} else {
		zap.S().Infof("marked %d interrupted submissions as internal error", recovered)
	}
	return nil
}
