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

func (h *Handler) getAllProblems(c *gin.Context) {
	// Admins see inactive problems too.
	var problems []models.Problem
	if err := h.db.Order("created_at desc").Find(&problems).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, problems, "Problems retrieved successfully")
}

func (h *Handler) getProblem(c *gin.Context) {
	problem, err := database.GetProblemByID(h.db, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "problem not found")
		} else {
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}
	util.Success(c, problem, "Problem retrieved successfully")
}

func (h *Handler) createProblem(c *gin.Context) {
	var problem models.Problem
	if err := c.ShouldBindJSON(&problem); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}
	if problem.Slug == "" || problem.Title == "" {
		util.Error(c, http.StatusBadRequest, "slug and title are required")
		return
	}

	problem.ID = uuid.NewString()
	problem.CreatedByID = c.GetString("userID")
	problem.IsActive = true

	if err := database.CreateProblem(h.db, &problem); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	zap.S().Infof("admin created problem %s (%s)", problem.Slug, problem.ID)
	util.Success(c, problem, "Problem created successfully")
}

func (h *Handler) updateProblem(c *gin.Context) {
	problem, err := database.GetProblemByID(h.db, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "problem not found")
		} else {
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}

	var req models.Problem
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	// Identity and counters are not editable through this endpoint.
	req.ID = problem.ID
	req.CreatedAt = problem.CreatedAt
	req.CreatedByID = problem.CreatedByID
	req.TotalSubmissions = problem.TotalSubmissions
	req.AcceptedSubmissions = problem.AcceptedSubmissions
	req.TotalSolved = problem.TotalSolved

	if err := database.UpdateProblem(h.db, &req); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, req, "Problem updated successfully")
}

// deleteProblem deactivates; submissions that reference the problem survive.
func (h *Handler) deleteProblem(c *gin.Context) {
	id := c.Param("id")
	if _, err := database.GetProblemByID(h.db, id); err != nil {
		util.Error(c, http.StatusNotFound, "problem not found")
		return
	}
	if err := database.DeactivateProblem(h.db, id); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	zap.S().Infof("admin deactivated problem %s", id)
	util.Success(c, nil, "Problem deactivated successfully")
}

func (h *Handler) getTestCases(c *gin.Context) {
	problemID := c.Param("id")
	if _, err := database.GetProblemByID(h.db, problemID); err != nil {
		util.Error(c, http.StatusNotFound, "problem not found")
		return
	}

	cases, err := database.GetActiveTestCases(h.db, problemID, false)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, cases, "Test cases retrieved successfully")
}

func (h *Handler) createTestCase(c *gin.Context) {
	problemID := c.Param("id")
	if _, err := database.GetProblemByID(h.db, problemID); err != nil {
		util.Error(c, http.StatusNotFound, "problem not found")
		return
	}

	var tc models.TestCase
	if err := c.ShouldBindJSON(&tc); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	tc.ID = uuid.NewString()
	tc.ProblemID = problemID
	tc.IsActive = true
	if tc.TestType == "" {
		tc.TestType = models.TestCaseHidden
	}

	if err := database.CreateTestCase(h.db, &tc); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, tc, "Test case created successfully")
}

func (h *Handler) deleteTestCase(c *gin.Context) {
	if err := database.DeleteTestCase(h.db, c.Param("id")); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, nil, "Test case deleted successfully")
}
