package user

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/openjudge-dev/openjudge/internal/activity"
	"github.com/openjudge-dev/openjudge/internal/api"
	"github.com/openjudge-dev/openjudge/internal/config"
	"github.com/openjudge-dev/openjudge/internal/judge"
)

// NewUserRouter creates and configures the user Gin engine.
func NewUserRouter(
	cfg *config.Config,
	db *gorm.DB,
	engine *judge.Engine,
	tracker *activity.Tracker) *gin.Engine {

	r := gin.Default()

	r.Use(api.CORSMiddleware(cfg.CORS))

	h := NewHandler(cfg, db, engine, tracker)

	v1 := r.Group("/api/v1")
	{
		// Auth
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", h.register)
			authGroup.POST("/login", h.login)
		}

		// Websockets carry their token as a query parameter.
		v1.GET("/ws/submissions/:id", h.handleSubmissionWs)
		v1.GET("/ws/contests/:slug", h.handleContestWs)

		// Publicly accessible info
		v1.GET("/problems", h.listProblems)
		v1.GET("/problems/:slug", h.getProblem)
		v1.GET("/contests", h.listContests)
		v1.GET("/contests/:slug", h.getContest)
		v1.GET("/contests/:slug/leaderboard", h.getContestLeaderboard)
		v1.GET("/contests/:slug/announcements", h.getContestAnnouncements)
		v1.GET("/users/:id", h.getPublicUserProfile)

		// Authenticated routes
		authed := v1.Group("/")
		authed.Use(api.AuthMiddleware(cfg.Auth.JWT.Secret))
		{
			// User Profile
			profile := authed.Group("/user")
			{
				profile.GET("/profile", h.getUserProfile)
				profile.PATCH("/profile", h.updateUserProfile)
				profile.GET("/activity", h.getUserActivity)
				profile.GET("/streak", h.getUserStreak)
				profile.GET("/achievements", h.getUserAchievements)
			}

			// Problems & Submissions
			authed.POST("/problems/:slug/submit", h.submitToProblem)
			authed.POST("/problems/:slug/run", h.runSamples)

			submissions := authed.Group("/submissions")
			{
				submissions.GET("", h.getUserSubmissions)
				submissions.GET("/stats", h.getUserSubmissionStats)
				submissions.GET("/:id", h.getUserSubmission)
			}

			// Contest
			authed.POST("/contests/:slug/register", h.registerForContest)
			authed.GET("/contests/:slug/dashboard", h.getContestDashboard)
			authed.GET("/contests/:slug/submissions", h.getMyContestSubmissions)
			authed.POST("/contests/:slug/problems/:problemID/submit", h.submitToContestProblem)
		}
	}

	return r
}
