package user

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/openjudge-dev/openjudge/internal/database"
	"github.com/openjudge-dev/openjudge/internal/database/models"
	"github.com/openjudge-dev/openjudge/internal/judge"
	"github.com/openjudge-dev/openjudge/internal/util"
)

func (h *Handler) listProblems(c *gin.Context) {
	filter := database.ProblemFilter{
		Difficulty: models.Difficulty(c.Query("difficulty")),
		Search:     c.Query("search"),
	}

	problems, err := database.ListActiveProblems(h.db, filter)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	type problemSummary struct {
		ID             string            `json:"id"`
		Slug           string            `json:"slug"`
		Title          string            `json:"title"`
		Difficulty     models.Difficulty `json:"difficulty"`
		TotalSolved    int               `json:"total_solved"`
		AcceptanceRate float64           `json:"acceptance_rate"`
	}

	summaries := make([]problemSummary, 0, len(problems))
	for i := range problems {
		p := &problems[i]
		summaries = append(summaries, problemSummary{
			ID:             p.ID,
			Slug:           p.Slug,
			Title:          p.Title,
			Difficulty:     p.Difficulty,
			TotalSolved:    p.TotalSolved,
			AcceptanceRate: p.AcceptanceRate(),
		})
	}

	util.Success(c, summaries, "Problems retrieved")
}

func (h *Handler) getProblem(c *gin.Context) {
	slug := c.Param("slug")
	problem, err := database.GetActiveProblemBySlug(h.db, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "problem not found")
		} else {
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}

	samples, err := database.GetActiveTestCases(h.db, problem.ID, true)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	util.Success(c, gin.H{
		"problem":         problem,
		"acceptance_rate": problem.AcceptanceRate(),
		"sample_cases":    samples,
	}, "Problem found")
}

// submitToProblem judges synchronously: the final verdict is in the response
// and in the database before the request returns.
func (h *Handler) submitToProblem(c *gin.Context) {
	userID := c.GetString("userID")
	slug := c.Param("slug")

	var req struct {
		Code     string          `json:"code" binding:"required"`
		Language models.Language `json:"language" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
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

	problem, err := database.GetActiveProblemBySlug(h.db, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "problem not found")
		} else {
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}

	sub, err := h.engine.Judge(c.Request.Context(), user, problem, req.Code, req.Language)
	if err != nil {
		if isValidationErr(err) {
			util.Error(c, http.StatusBadRequest, err)
			return
		}
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	util.Success(c, sub, "Submission judged")
}

// runSamples executes code against the sample cases only, persisting nothing.
func (h *Handler) runSamples(c *gin.Context) {
	slug := c.Param("slug")

	var req struct {
		Code     string          `json:"code" binding:"required"`
		Language models.Language `json:"language" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	problem, err := database.GetActiveProblemBySlug(h.db, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "problem not found")
		} else {
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}

	preview, err := h.engine.RunSamples(c.Request.Context(), problem, req.Code, req.Language)
	if err != nil {
		if isValidationErr(err) {
			util.Error(c, http.StatusBadRequest, err)
			return
		}
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	util.Success(c, preview, "Run finished")
}

func isValidationErr(err error) bool {
	return errors.Is(err, judge.ErrEmptyCode) ||
		errors.Is(err, judge.ErrCodeTooLarge) ||
		errors.Is(err, judge.ErrUnknownLanguage)
}
