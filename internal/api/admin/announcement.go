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

func (h *Handler) getContestAnnouncements(c *gin.Context) {
	contest, err := h.contestByID(c)
	if err != nil {
		return
	}
	anns, err := database.GetContestAnnouncements(h.db, contest.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, anns, "Announcements retrieved successfully")
}

func (h *Handler) createContestAnnouncement(c *gin.Context) {
	contest, err := h.contestByID(c)
	if err != nil {
		return
	}

	var req struct {
		Title   string `json:"title" binding:"required"`
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	ann := models.ContestAnnouncement{
		ID:          uuid.NewString(),
		ContestID:   contest.ID,
		Title:       req.Title,
		Content:     req.Content,
		CreatedByID: c.GetString("userID"),
	}
	if err := database.CreateContestAnnouncement(h.db, &ann); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	zap.S().Infof("admin created announcement %s in contest %s", ann.ID, contest.ID)
	util.Success(c, ann, "Announcement created successfully")
}

func (h *Handler) updateContestAnnouncement(c *gin.Context) {
	contest, err := h.contestByID(c)
	if err != nil {
		return
	}

	ann, err := database.GetContestAnnouncement(h.db, c.Param("announcementID"))
	if err != nil || ann.ContestID != contest.ID {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusInternalServerError, err)
		} else {
			util.Error(c, http.StatusNotFound, "announcement not found")
		}
		return
	}

	var req struct {
		Title   string `json:"title" binding:"required"`
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	ann.Title = req.Title
	ann.Content = req.Content
	if err := database.UpdateContestAnnouncement(h.db, ann); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	zap.S().Infof("admin updated announcement %s in contest %s", ann.ID, contest.ID)
	util.Success(c, ann, "Announcement updated successfully")
}

func (h *Handler) deleteContestAnnouncement(c *gin.Context) {
	contest, err := h.contestByID(c)
	if err != nil {
		return
	}

	ann, err := database.GetContestAnnouncement(h.db, c.Param("announcementID"))
	if err != nil || ann.ContestID != contest.ID {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusInternalServerError, err)
		} else {
			util.Error(c, http.StatusNotFound, "announcement not found")
		}
		return
	}

	if err := database.DeleteContestAnnouncement(h.db, ann.ID); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	zap.S().Warnf("admin deleted announcement %s from contest %s", ann.ID, contest.ID)
	util.Success(c, nil, "Announcement deleted successfully")
}
