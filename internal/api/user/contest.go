package user

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/openjudge-dev/openjudge/internal/database"
	"github.com/openjudge-dev/openjudge/internal/database/models"
	"github.com/openjudge-dev/openjudge/internal/judge"
	"github.com/openjudge-dev/openjudge/internal/util"
)

func (h *Handler) listContests(c *gin.Context) {
	contests, err := database.ListContests(h.db, true)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	type contestSummary struct {
		ID                string               `json:"id"`
		Slug              string               `json:"slug"`
		Title             string               `json:"title"`
		StartTime         time.Time            `json:"start_time"`
		EndTime           time.Time            `json:"end_time"`
		Status            models.ContestStatus `json:"status"`
		TotalParticipants int                  `json:"total_participants"`
	}

	summaries := make([]contestSummary, 0, len(contests))
	for i := range contests {
		ct := &contests[i]
		summaries = append(summaries, contestSummary{
			ID:                ct.ID,
			Slug:              ct.Slug,
			Title:             ct.Title,
			StartTime:         ct.StartTime,
			EndTime:           ct.EndTime,
			Status:            ct.Status(),
			TotalParticipants: ct.TotalParticipants,
		})
	}

	util.Success(c, summaries, "Contests retrieved")
}

func (h *Handler) getContest(c *gin.Context) {
	contest, err := h.contestBySlug(c)
	if err != nil {
		return
	}

	// The problem list stays hidden until the contest starts.
	var problems []models.ContestProblem
	if contest.Status() != models.ContestNotStarted {
		problems, err = database.ListActiveContestProblems(h.db, contest.ID)
		if err != nil {
			util.Error(c, http.StatusInternalServerError, err)
			return
		}
	}

	util.Success(c, gin.H{
		"contest":  contest,
		"status":   contest.Status(),
		"problems": problems,
	}, "Contest found")
}

func (h *Handler) getContestLeaderboard(c *gin.Context) {
	contest, err := h.contestBySlug(c)
	if err != nil {
		return
	}

	leaderboard, err := database.GetLeaderboard(h.db, contest.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, leaderboard, "Leaderboard retrieved")
}

func (h *Handler) getContestAnnouncements(c *gin.Context) {
	contest, err := h.contestBySlug(c)
	if err != nil {
		return
	}

	anns, err := database.GetContestAnnouncements(h.db, contest.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, anns, "Announcements retrieved")
}

func (h *Handler) registerForContest(c *gin.Context) {
	userID := c.GetString("userID")
	contest, err := h.contestBySlug(c)
	if err != nil {
		return
	}

	if contest.Status() == models.ContestEnded {
		util.Error(c, http.StatusForbidden, "contest has ended, cannot register")
		return
	}

	if err := database.RegisterForContest(h.db, userID, contest.ID); err != nil {
		switch {
		case errors.Is(err, database.ErrAlreadyRegistered):
			util.Error(c, http.StatusConflict, err)
		case errors.Is(err, database.ErrContestFull):
			util.Error(c, http.StatusForbidden, err)
		default:
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}
	util.Success(c, nil, "Successfully registered for contest")
}

// getContestDashboard returns the caller's standing: participant row plus
// per-problem progress.
func (h *Handler) getContestDashboard(c *gin.Context) {
	userID := c.GetString("userID")
	contest, err := h.contestBySlug(c)
	if err != nil {
		return
	}

	registered, err := database.IsUserRegisteredForContest(h.db, userID, contest.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	if !registered {
		util.Error(c, http.StatusForbidden, "you are not registered for this contest")
		return
	}

	participant, err := database.GetOrCreateParticipant(h.db, contest.ID, userID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	statuses, err := database.GetContestProblemStatuses(h.db, participant.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	util.Success(c, gin.H{
		"participant":      participant,
		"problem_statuses": statuses,
	}, "Dashboard retrieved")
}

func (h *Handler) getMyContestSubmissions(c *gin.Context) {
	userID := c.GetString("userID")
	contest, err := h.contestBySlug(c)
	if err != nil {
		return
	}

	subs, err := database.GetContestSubmissionsByUser(h.db, contest.ID, userID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, subs, "Contest submissions retrieved")
}

func (h *Handler) submitToContestProblem(c *gin.Context) {
	userID := c.GetString("userID")
	problemID := c.Param("problemID")

	var req struct {
		Code     string          `json:"code" binding:"required"`
		Language models.Language `json:"language" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	contest, err := h.contestBySlug(c)
	if err != nil {
		return
	}

	user, err := database.GetUserByID(h.db, userID)
	if err != nil {
		util.Error(c, http.StatusNotFound, "user not found")
		return
	}
	if user.IsBanned() {
		util.Error(c, http.StatusForbidden, "account is banned")
		return
	}

	problem, err := database.GetActiveContestProblem(h.db, contest.ID, problemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "problem not found in this contest")
		} else {
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}

	sub, err := h.engine.JudgeContest(c.Request.Context(), user, contest, problem, req.Code, req.Language)
	if err != nil {
		switch {
		case errors.Is(err, judge.ErrContestNotRunning),
			errors.Is(err, judge.ErrNotRegistered),
			errors.Is(err, judge.ErrProblemNotInContest):
			util.Error(c, http.StatusForbidden, err)
		case isValidationErr(err):
			util.Error(c, http.StatusBadRequest, err)
		default:
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}

	util.Success(c, sub, "Submission judged")
}

// contestBySlug resolves the :slug route parameter, writing the error
// response itself so callers can just return on failure.
func (h *Handler) contestBySlug(c *gin.Context) (*models.Contest, error) {
	contest, err := database.GetActiveContestBySlug(h.db, c.Param("slug"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "contest not found")
		} else {
			util.Error(c, http.StatusInternalServerError, err)
		}
		return nil, err
	}
	return contest, nil
}
