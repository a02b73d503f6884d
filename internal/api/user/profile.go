package user

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/openjudge-dev/openjudge/internal/database"
	"github.com/openjudge-dev/openjudge/internal/util"
)

func (h *Handler) getUserProfile(c *gin.Context) {
	userID := c.GetString("userID")
	user, err := database.GetUserByID(h.db, userID)
	if err != nil {
		util.Error(c, http.StatusNotFound, err)
		return
	}

	stats, err := database.GetUserSubmissionStats(h.db, userID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	util.Success(c, gin.H{
		"user":  user,
		"stats": stats,
	}, "ok")
}

func (h *Handler) updateUserProfile(c *gin.Context) {
	userID := c.GetString("userID")
	user, err := database.GetUserByID(h.db, userID)
	if err != nil {
		util.Error(c, http.StatusNotFound, err)
		return
	}
	var reqBody struct {
		Nickname string `json:"nickname"`
	}
	if err := c.ShouldBindJSON(&reqBody); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}
	user.Nickname = reqBody.Nickname
	if err := database.UpdateUser(h.db, user); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, user, "Profile updated")
}

// getPublicUserProfile exposes the solve counters anyone may see.
func (h *Handler) getPublicUserProfile(c *gin.Context) {
	user, err := database.GetUserByID(h.db, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "user not found")
		} else {
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}

	util.Success(c, gin.H{
		"id":            user.ID,
		"username":      user.Username,
		"nickname":      user.Nickname,
		"total_solved":  user.TotalSolved,
		"easy_solved":   user.EasySolved,
		"medium_solved": user.MediumSolved,
		"hard_solved":   user.HardSolved,
	}, "ok")
}

// getUserActivity returns the heat map rows, optionally bounded below by
// ?since=YYYY-MM-DD.
func (h *Handler) getUserActivity(c *gin.Context) {
	userID := c.GetString("userID")
	activities, err := database.GetUserActivities(h.db, userID, c.Query("since"))
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, activities, "Activity retrieved")
}

func (h *Handler) getUserStreak(c *gin.Context) {
	userID := c.GetString("userID")
	streak, err := h.tracker.Streak(userID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, gin.H{"streak_days": streak}, "Streak retrieved")
}

func (h *Handler) getUserAchievements(c *gin.Context) {
	userID := c.GetString("userID")
	achievements, err := database.GetUserAchievements(h.db, userID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, achievements, "Achievements retrieved")
}
