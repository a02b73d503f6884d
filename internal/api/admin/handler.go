package admin

import (
	"gorm.io/gorm"

	"github.com/openjudge-dev/openjudge/internal/config"
	"github.com/openjudge-dev/openjudge/internal/judge"
)

// Handler holds all dependencies for the admin API handlers.
type Handler struct {
	cfg    *config.Config
	db     *gorm.DB
	engine *judge.Engine
}

// NewHandler creates a new admin handler with its dependencies.
func NewHandler(cfg *config.Config, db *gorm.DB, engine *judge.Engine) *Handler {
	return &Handler{
		cfg:    cfg,
		db:     db,
		engine: engine,
	}
}
