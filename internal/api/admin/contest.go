package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/openjudge-dev/openjudge/internal/database"
	"github.com/openjudge-dev/openjudge/internal/database/models"
	"github.com/openjudge-dev/openjudge/internal/util"
)

func (h *Handler) getAllContests(c *gin.Context) {
	contests, err := database.ListContests(h.db, false)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, contests, "Contests retrieved successfully")
}

func (h *Handler) getContest(c *gin.Context) {
	contest, err := h.contestByID(c)
	if err != nil {
		return
	}

	problems, err := database.ListActiveContestProblems(h.db, contest.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	util.Success(c, gin.H{
		"contest":  contest,
		"problems": problems,
	}, "Contest retrieved successfully")
}

func (h *Handler) createContest(c *gin.Context) {
	var contest models.Contest
	if err := c.ShouldBindJSON(&contest); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}
	if contest.Slug == "" || contest.Title == "" {
		util.Error(c, http.StatusBadRequest, "slug and title are required")
		return
	}
	if !contest.EndTime.After(contest.StartTime) {
		util.Error(c, http.StatusBadRequest, "end_time must be after start_time")
		return
	}

	contest.ID = uuid.NewString()
	contest.CreatedByID = c.GetString("userID")
	contest.IsActive = true
	if contest.DurationMinutes == 0 {
		contest.DurationMinutes = int(contest.EndTime.Sub(contest.StartTime).Minutes())
	}

	if err := database.CreateContest(h.db, &contest); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	zap.S().Infof("admin created contest %s (%s)", contest.Slug, contest.ID)
	util.Success(c, contest, "Contest created successfully")
}

func (h *Handler) updateContest(c *gin.Context) {
	contest, err := h.contestByID(c)
	if err != nil {
		return
	}

	var req models.Contest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	req.ID = contest.ID
	req.CreatedAt = contest.CreatedAt
	req.CreatedByID = contest.CreatedByID
	req.TotalParticipants = contest.TotalParticipants

	if err := database.UpdateContest(h.db, &req); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, req, "Contest updated successfully")
}

func (h *Handler) deleteContest(c *gin.Context) {
	contest, err := h.contestByID(c)
	if err != nil {
		return
	}
	if err := database.DeactivateContest(h.db, contest.ID); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	zap.S().Infof("admin deactivated contest %s", contest.ID)
	util.Success(c, nil, "Contest deactivated successfully")
}

// recalculateRankings forces a full re-rank, useful after manual score fixes.
func (h *Handler) recalculateRankings(c *gin.Context) {
	contest, err := h.contestByID(c)
	if err != nil {
		return
	}
	if err := h.engine.UpdateRankings(contest.ID); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, nil, "Rankings recalculated successfully")
}

func (h *Handler) getContestProblems(c *gin.Context) {
	contest, err := h.contestByID(c)
	if err != nil {
		return
	}
	problems, err := database.ListActiveContestProblems(h.db, contest.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, problems, "Contest problems retrieved successfully")
}

func (h *Handler) createContestProblem(c *gin.Context) {
	contest, err := h.contestByID(c)
	if err != nil {
		return
	}

	var problem models.ContestProblem
	if err := c.ShouldBindJSON(&problem); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}
	if problem.Title == "" {
		util.Error(c, http.StatusBadRequest, "title is required")
		return
	}

	problem.ID = uuid.NewString()
	problem.ContestID = contest.ID
	problem.CreatedByID = c.GetString("userID")
	problem.IsActive = true
	if problem.Points == 0 {
		problem.Points = 100
	}

	if err := database.CreateContestProblem(h.db, &problem); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, problem, "Contest problem created successfully")
}

func (h *Handler) updateContestProblem(c *gin.Context) {
	contest, err := h.contestByID(c)
	if err != nil {
		return
	}

	problem, err := database.GetActiveContestProblem(h.db, contest.ID, c.Param("problemID"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "problem not found in this contest")
		} else {
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}

	var req models.ContestProblem
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	req.ID = problem.ID
	req.ContestID = problem.ContestID
	req.CreatedAt = problem.CreatedAt
	req.CreatedByID = problem.CreatedByID
	req.TotalSubmissions = problem.TotalSubmissions
	req.AcceptedSubmissions = problem.AcceptedSubmissions
	req.TotalSolved = problem.TotalSolved

	if err := database.UpdateContestProblem(h.db, &req); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, req, "Contest problem updated successfully")
}

func (h *Handler) getContestTestCases(c *gin.Context) {
	contest, err := h.contestByID(c)
	if err != nil {
		return
	}
	problem, err := database.GetActiveContestProblem(h.db, contest.ID, c.Param("problemID"))
	if err != nil {
		util.Error(c, http.StatusNotFound, "problem not found in this contest")
		return
	}

	cases, err := database.GetActiveContestTestCases(h.db, problem.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, cases, "Test cases retrieved successfully")
}

func (h *Handler) createContestTestCase(c *gin.Context) {
	contest, err := h.contestByID(c)
	if err != nil {
		return
	}
	problem, err := database.GetActiveContestProblem(h.db, contest.ID, c.Param("problemID"))
	if err != nil {
		util.Error(c, http.StatusNotFound, "problem not found in this contest")
		return
	}

	var tc models.ContestTestCase
	if err := c.ShouldBindJSON(&tc); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	tc.ID = uuid.NewString()
	tc.ProblemID = problem.ID
	tc.IsActive = true
	if tc.TestType == "" {
		tc.TestType = models.TestCaseHidden
	}

	if err := database.CreateContestTestCase(h.db, &tc); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, tc, "Test case created successfully")
}

func (h *Handler) contestByID(c *gin.Context) (*models.Contest, error) {
	var contest models.Contest
	if err := h.db.Where("id = ?", c.Param("id")).First(&contest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "contest not found")
		} else {
			util.Error(c, http.StatusInternalServerError, err)
		}
		return nil, err
	}
	return &contest, nil
}
