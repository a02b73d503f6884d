package admin

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/openjudge-dev/openjudge/internal/api"
	"github.com/openjudge-dev/openjudge/internal/config"
	"github.com/openjudge-dev/openjudge/internal/judge"
)

// NewAdminRouter creates and configures the admin Gin engine. Every route
// requires a staff token.
func NewAdminRouter(cfg *config.Config, db *gorm.DB, engine *judge.Engine) *gin.Engine {
	r := gin.Default()

	r.Use(api.CORSMiddleware(cfg.CORS))

	h := NewHandler(cfg, db, engine)

	v1 := r.Group("/api/v1")
	v1.Use(api.AuthMiddleware(cfg.Auth.JWT.Secret), api.RequireStaff())
	{
		// User Management
		users := v1.Group("/users")
		{
			users.GET("", h.getAllUsers)
			users.GET("/:id", h.getUser)
			users.PATCH("/:id", h.updateUser)
			users.POST("/:id/reset-password", h.resetUserPassword)
		}

		// Submission Management
		submissions := v1.Group("/submissions")
		{
			submissions.GET("", h.getAllSubmissions)
			submissions.GET("/:id", h.getSubmission)
		}

		// Problem Management
		problems := v1.Group("/problems")
		{
			problems.GET("", h.getAllProblems)
			problems.POST("", h.createProblem)
			problems.GET("/:id", h.getProblem)
			problems.PUT("/:id", h.updateProblem)
			problems.DELETE("/:id", h.deleteProblem)
			problems.GET("/:id/testcases", h.getTestCases)
			problems.POST("/:id/testcases", h.createTestCase)
		}
		v1.DELETE("/testcases/:id", h.deleteTestCase)

		// Contest Management
		contests := v1.Group("/contests")
		{
			contests.GET("", h.getAllContests)
			contests.POST("", h.createContest)
			contests.GET("/:id", h.getContest)
			contests.PUT("/:id", h.updateContest)
			contests.DELETE("/:id", h.deleteContest)
			contests.POST("/:id/recalculate", h.recalculateRankings)
			contests.GET("/:id/announcements", h.getContestAnnouncements)
			contests.POST("/:id/announcements", h.createContestAnnouncement)
			contests.PUT("/:id/announcements/:announcementID", h.updateContestAnnouncement)
			contests.DELETE("/:id/announcements/:announcementID", h.deleteContestAnnouncement)
			contests.GET("/:id/problems", h.getContestProblems)
			contests.POST("/:id/problems", h.createContestProblem)
			contests.PUT("/:id/problems/:problemID", h.updateContestProblem)
			contests.GET("/:id/problems/:problemID/testcases", h.getContestTestCases)
			contests.POST("/:id/problems/:problemID/testcases", h.createContestTestCase)
		}
	}

	return r
}
