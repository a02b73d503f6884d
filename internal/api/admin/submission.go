package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/openjudge-dev/openjudge/internal/database"
	"github.com/openjudge-dev/openjudge/internal/database/models"
	"github.com/openjudge-dev/openjudge/internal/util"
)

func (h *Handler) getAllSubmissions(c *gin.Context) {
	filter := database.SubmissionFilter{
		UserID:    c.Query("user_id"),
		ProblemID: c.Query("problem_id"),
		Verdict:   models.Verdict(c.Query("verdict")),
		Language:  models.Language(c.Query("language")),
	}

	subs, err := database.ListSubmissions(h.db, filter)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, subs, "Submissions retrieved successfully")
}

func (h *Handler) getSubmission(c *gin.Context) {
	sub, err := database.GetSubmission(h.db, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "submission not found")
		} else {
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}
	util.Success(c, sub, "Submission retrieved successfully")
}
