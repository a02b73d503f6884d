package user

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/openjudge-dev/openjudge/internal/database"
	"github.com/openjudge-dev/openjudge/internal/database/models"
	"github.com/openjudge-dev/openjudge/internal/util"
)

func (h *Handler) getUserSubmissions(c *gin.Context) {
	userID := c.GetString("userID")

	filter := database.SubmissionFilter{
		UserID:   userID,
		Verdict:  models.Verdict(c.Query("verdict")),
		Language: models.Language(c.Query("language")),
	}
	if slug := c.Query("problem"); slug != "" {
		problem, err := database.GetActiveProblemBySlug(h.db, slug)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				util.Error(c, http.StatusNotFound, "problem not found")
			} else {
				util.Error(c, http.StatusInternalServerError, err)
			}
			return
		}
		filter.ProblemID = problem.ID
	}

	subs, err := database.ListSubmissions(h.db, filter)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, subs, "Submissions retrieved")
}

func (h *Handler) getUserSubmission(c *gin.Context) {
	subID := c.Param("id")
	userID := c.GetString("userID")

	sub, err := database.GetSubmission(h.db, subID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "submission not found")
		} else {
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}
	if sub.UserID != userID {
		util.Error(c, http.StatusForbidden, fmt.Errorf("you can only view your own submissions"))
		return
	}
	util.Success(c, sub, "ok")
}

func (h *Handler) getUserSubmissionStats(c *gin.Context) {
	userID := c.GetString("userID")
	stats, err := database.GetUserSubmissionStats(h.db, userID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, stats, "Submission statistics retrieved")
}
