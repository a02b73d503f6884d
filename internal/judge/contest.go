package judge

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openjudge-dev/openjudge/internal/database"
	"github.com/openjudge-dev/openjudge/internal/database/models"
	"github.com/openjudge-dev/openjudge/internal/pubsub"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// wrongAttemptPenaltyMinutes is the ICPC-style cost of each failed attempt
// before the first acceptance. It is tracked on the participant but does not
// enter the rank comparator.
const wrongAttemptPenaltyMinutes = 20

// JudgeContest runs one contest submission. Preconditions are verified before
// any row is created: a running contest window, an existing registration, and
// an active problem belonging to the contest. Contest submissions keep only
// running pass counters, no per-case rows.
func (e *Engine) JudgeContest(ctx context.Context, user *models.User, contest *models.Contest, problem *models.ContestProblem, code string, lang models.Language) (*models.ContestSubmission, error) {
	if !contest.IsRunning() {
		return nil, ErrContestNotRunning
	}
	registered, err := database.IsUserRegisteredForContest(e.db, user.ID, contest.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check contest registration: %w", err)
	}
	if !registered {
		return nil, ErrNotRegistered
	}
	if problem.ContestID != contest.ID || !problem.IsActive {
		return nil, ErrProblemNotInContest
	}
	if err := ValidateCode(code, lang); err != nil {
		return nil, err
	}

	cases, err := database.GetActiveContestTestCases(e.db, problem.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test cases: %w", err)
	}

	sub := &models.ContestSubmission{
		ID:             uuid.NewString(),
		ContestID:      contest.ID,
		UserID:         user.ID,
		ProblemID:      problem.ID,
		Code:           code,
		Language:       lang,
		Verdict:        models.VerdictRunning,
		TotalTestCases: len(cases),
	}
	if err := e.db.Create(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to create contest submission: %w", err)
	}

	participant, err := database.GetOrCreateParticipant(e.db, contest.ID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve participant: %w", err)
	}
	status, err := database.GetOrCreateContestProblemStatus(e.db, participant.ID, problem.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve problem status: %w", err)
	}

	// Attempts count every submission, accepted or not, before judging runs.
	if err := e.db.Model(&models.ContestProblemStatus{}).Where("id = ?", status.ID).
		UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error; err != nil {
		return nil, fmt.Errorf("failed to record attempt: %w", err)
	}

	units := make([]caseUnit, len(cases))
	for i, tc := range cases {
		units[i] = caseUnit{ID: tc.ID, Order: tc.Order, Input: tc.InputData, Expected: tc.ExpectedOutput}
	}

	outcome := e.runCases(ctx, units, problem.TimeLimitMS, problem.MemoryLimitMB, lang, code, func(result caseOutcome) {
		e.broker.PublishEvent(sub.ID, pubsub.Event{
			Kind:         "case_result",
			SubmissionID: sub.ID,
			Data:         string(result.Status),
		})
	})

	verdict := outcome.FinalVerdict(len(cases))
	now := time.Now()

	err = e.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"verdict":            verdict,
			"test_cases_passed":  outcome.Passed,
			"total_test_cases":   len(cases),
			"execution_time_ms":  outcome.maxTimePtr(),
			"memory_used_kb":     outcome.maxMemoryPtr(),
			"error_message":      outcome.FailureMsg,
			"compilation_output": outcome.CompileOut,
		}
		if err := tx.Model(&models.ContestSubmission{}).Where("id = ?", sub.ID).Updates(updates).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.ContestProblem{}).Where("id = ?", problem.ID).
			UpdateColumn("total_submissions", gorm.Expr("total_submissions + 1")).Error; err != nil {
			return err
		}
		accepted := verdict == models.VerdictAccepted
		if accepted {
			if err := tx.Model(&models.ContestProblem{}).Where("id = ?", problem.ID).
				UpdateColumn("accepted_submissions", gorm.Expr("accepted_submissions + 1")).Error; err != nil {
				return err
			}
		}

		// Re-read inside the transaction so two racing submissions cannot
		// both see the problem as unsolved.
		var fresh models.ContestProblemStatus
		if err := tx.Where("id = ?", status.ID).First(&fresh).Error; err != nil {
			return err
		}

		if accepted && fresh.Status != models.SolveSolved {
			solveMinutes := minutesSince(contest.StartTime)
			if err := tx.Model(&models.ContestProblemStatus{}).Where("id = ?", fresh.ID).
				Updates(map[string]any{
					"status":             models.SolveSolved,
					"score":              problem.Points,
					"first_solved_at":    now,
					"solve_time_minutes": solveMinutes,
				}).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.ContestProblem{}).Where("id = ?", problem.ID).
				UpdateColumn("total_solved", gorm.Expr("total_solved + 1")).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.ContestParticipant{}).Where("id = ?", participant.ID).
				UpdateColumns(map[string]any{
					"problems_solved":      gorm.Expr("problems_solved + 1"),
					"total_score":          gorm.Expr("total_score + ?", problem.Points),
					"penalty_time_minutes": gorm.Expr("penalty_time_minutes + ?", fresh.WrongAttempts*wrongAttemptPenaltyMinutes),
				}).Error; err != nil {
				return err
			}
		} else if !accepted && fresh.Status != models.SolveSolved {
			if err := tx.Model(&models.ContestProblemStatus{}).Where("id = ?", fresh.ID).
				UpdateColumn("wrong_attempts", gorm.Expr("wrong_attempts + 1")).Error; err != nil {
				return err
			}
		}

		// total_time is minutes from contest start to the last submission of
		// any kind, recomputed on every submission. This diverges from the
		// ICPC time-to-acceptance convention; kept as observed behavior.
		return tx.Model(&models.ContestParticipant{}).Where("id = ?", participant.ID).
			Updates(map[string]any{
				"total_time_minutes": minutesSince(contest.StartTime),
				"last_submission_at": now,
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to finalize contest submission: %w", err)
	}

	if err := e.UpdateRankings(contest.ID); err != nil {
		zap.S().Errorf("rank recompute for contest %s failed: %v", contest.ID, err)
	}

	final, err := database.GetContestSubmission(e.db, sub.ID)
	if err != nil {
		return nil, err
	}

	e.broker.PublishEvent(sub.ID, pubsub.Event{
		Kind:         "verdict",
		SubmissionID: sub.ID,
		Data:         string(verdict),
	})
	e.broker.CloseTopic(sub.ID)
	e.broker.PublishTransient(ContestTopic(contest.ID), pubsub.Event{
		Kind:         "leaderboard_changed",
		SubmissionID: sub.ID,
		UserID:       user.ID,
		ProblemID:    problem.ID,
		Data:         string(verdict),
	})

	return final, nil
}

// ContestTopic names the broker topic carrying a contest's live events.
func ContestTopic(contestID string) string {
	return "contest:" + contestID
}

// UpdateRankings recomputes the rank of every participant in a contest:
// total score descending, total time ascending, then registration time and
// participant id as deterministic tie-breaks. The pass is serialized per
// contest; concurrent submissions converge to the ordering of whichever
// re-rank ran last.
func (e *Engine) UpdateRankings(contestID string) error {
	lock, _ := e.rankLocks.LoadOrStore(contestID, &sync.Mutex{})
	lock.Lock()
	defer lock.Unlock()

	return e.db.Transaction(func(tx *gorm.DB) error {
		var participants []models.ContestParticipant
		if err := tx.Where("contest_id = ?", contestID).Find(&participants).Error; err != nil {
			return err
		}

		sort.SliceStable(participants, func(i, j int) bool {
			a, b := participants[i], participants[j]
			if a.TotalScore != b.TotalScore {
				return a.TotalScore > b.TotalScore
			}
			if a.TotalTimeMinutes != b.TotalTimeMinutes {
				return a.TotalTimeMinutes < b.TotalTimeMinutes
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		})

		for i := range participants {
			rank := i + 1
			if err := tx.Model(&models.ContestParticipant{}).
				Where("id = ?", participants[i].ID).
				UpdateColumn("rank", rank).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
