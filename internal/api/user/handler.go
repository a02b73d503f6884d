package user

import (
	"gorm.io/gorm"

	"github.com/openjudge-dev/openjudge/internal/activity"
	"github.com/openjudge-dev/openjudge/internal/config"
	"github.com/openjudge-dev/openjudge/internal/judge"
)

// Handler holds all dependencies for the user API handlers.
type Handler struct {
	cfg     *config.Config
	db      *gorm.DB
	engine  *judge.Engine
	tracker *activity.Tracker
}

// NewHandler creates a new user handler with its dependencies.
func NewHandler(
	cfg *config.Config,
	db *gorm.DB,
	engine *judge.Engine,
	tracker *activity.Tracker,
) *Handler {
	return &Handler{
		cfg:     cfg,
		db:      db,
		engine:  engine,
		tracker: tracker,
	}
}
