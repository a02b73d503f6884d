package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/openjudge-dev/openjudge/internal/auth"
	"github.com/openjudge-dev/openjudge/internal/database"
	"github.com/openjudge-dev/openjudge/internal/database/models"
	"github.com/openjudge-dev/openjudge/internal/util"
)

func (h *Handler) getAllUsers(c *gin.Context) {
	searchQuery := c.Query("query")
	dbQuery := h.db

	if searchQuery != "" {
		likeQuery := "%" + searchQuery + "%"
		dbQuery = dbQuery.Where("id = ? OR username LIKE ? OR nickname LIKE ?", searchQuery, likeQuery, likeQuery)
	}

	var users []models.User
	if err := dbQuery.Find(&users).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	util.Success(c, users, "Users retrieved successfully")
}

func (h *Handler) getUser(c *gin.Context) {
	userID := c.Param("id")
	user, err := database.GetUserByID(h.db, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "user not found")
		} else {
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}
	util.Success(c, user, "User retrieved successfully")
}

func (h *Handler) updateUser(c *gin.Context) {
	userID := c.Param("id")
	user, err := database.GetUserByID(h.db, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "user not found")
		} else {
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}

	var reqBody struct {
		Nickname    *string `json:"nickname"`
		Role        *string `json:"role"`
		BannedUntil *string `json:"banned_until"` // Receive as string to handle null/empty
	}

	if err := c.ShouldBindJSON(&reqBody); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	if reqBody.Nickname != nil {
		user.Nickname = *reqBody.Nickname
	}

	if reqBody.Role != nil {
		switch role := models.Role(*reqBody.Role); role {
		case models.RoleUser, models.RoleManager, models.RoleSuperUser:
			user.Role = role
		default:
			util.Error(c, http.StatusBadRequest, "invalid role")
			return
		}
	}

	// Ban logic: an empty banned_until unbans.
	if reqBody.BannedUntil != nil {
		if *reqBody.BannedUntil == "" {
			user.BannedUntil = nil
		} else {
			t, err := time.Parse(time.RFC3339, *reqBody.BannedUntil)
			if err != nil {
				// Fallback for HTML datetime-local input which doesn't include timezone
				t, err = time.Parse("2006-01-02T15:04", *reqBody.BannedUntil)
				if err != nil {
					util.Error(c, http.StatusBadRequest, "invalid banned_until time format")
					return
				}
			}
			user.BannedUntil = &t
		}
	}

	if err := database.UpdateUser(h.db, user); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, user, "User profile updated successfully")
}

func (h *Handler) resetUserPassword(c *gin.Context) {
	userID := c.Param("id")
	user, err := database.GetUserByID(h.db, userID)
	if err != nil {
		util.Error(c, http.StatusNotFound, "user not found")
		return
	}

	var req struct {
		Password string `json:"password" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, "failed to hash new password")
		return
	}

	user.PasswordHash = hashedPassword
	if err := database.UpdateUser(h.db, user); err != nil {
		util.Error(c, http.StatusInternalServerError, "failed to update user password")
		return
	}

	zap.S().Warnf("admin reset password for user %s (%s)", user.Username, user.ID)
	util.Success(c, nil, "User password reset successfully")
}
