package user

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openjudge-dev/openjudge/internal/auth"
	"github.com/openjudge-dev/openjudge/internal/database"
	"github.com/openjudge-dev/openjudge/internal/judge"
	"github.com/openjudge-dev/openjudge/internal/pubsub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleSubmissionWs streams per-case progress for one submission. Browsers
// cannot set an Authorization header on a websocket, so the token travels as
// a query parameter.
func (h *Handler) handleSubmissionWs(c *gin.Context) {
	submissionID := c.Param("id")
	tokenString := c.Query("token")

	if tokenString == "" {
		c.String(http.StatusUnauthorized, "token query parameter is required")
		return
	}

	claims, err := auth.ValidateJWT(tokenString, h.cfg.Auth.JWT.Secret)
	if err != nil {
		c.String(http.StatusUnauthorized, "invalid token")
		return
	}
	userID := claims.Subject

	sub, err := database.GetSubmission(h.db, submissionID)
	if err != nil {
		c.String(http.StatusNotFound, "submission not found")
		return
	}
	if sub.UserID != userID {
		c.String(http.StatusForbidden, "you can only view your own submissions")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.S().Errorf("failed to upgrade websocket: %v", err)
		return
	}
	defer conn.Close()

	if sub.Verdict.Terminal() {
		// Judging already finished: replay the stored results instead of the
		// broker cache, which is cleared when the topic closes.
		for _, result := range sub.TestCaseResults {
			writeEvent(conn, pubsub.Event{
				Kind:         "case_result",
				SubmissionID: sub.ID,
				Data:         string(result.Status),
			})
		}
		writeEvent(conn, pubsub.Event{
			Kind:         "verdict",
			SubmissionID: sub.ID,
			Data:         string(sub.Verdict),
		})
		return
	}

	msgChan, unsubscribe := pubsub.GetBroker().Subscribe(submissionID)
	defer unsubscribe()
	h.streamTopic(conn, msgChan)
	zap.S().Infof("websocket connection closed for submission %s", submissionID)
}

// handleContestWs streams live contest events (leaderboard changes). The
// feed is transient: connecting clients see events from now on.
func (h *Handler) handleContestWs(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.String(http.StatusUnauthorized, "token query parameter is required")
		return
	}
	if _, err := auth.ValidateJWT(tokenString, h.cfg.Auth.JWT.Secret); err != nil {
		c.String(http.StatusUnauthorized, "invalid token")
		return
	}

	contest, err := database.GetActiveContestBySlug(h.db, c.Param("slug"))
	if err != nil {
		c.String(http.StatusNotFound, "contest not found")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.S().Errorf("failed to upgrade websocket: %v", err)
		return
	}
	defer conn.Close()

	msgChan, unsubscribe := pubsub.GetBroker().Subscribe(judge.ContestTopic(contest.ID))
	defer unsubscribe()
	h.streamTopic(conn, msgChan)
	zap.S().Infof("websocket connection closed for contest %s", contest.Slug)
}

// streamTopic forwards broker messages to the client until the topic closes
// or the client disconnects.
func (h *Handler) streamTopic(conn *websocket.Conn, msgChan <-chan []byte) {
	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					zap.S().Infof("websocket unexpected close error: %v", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				zap.S().Warnf("error writing to websocket: %v", err)
				return
			}
		case <-clientClosed:
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev pubsub.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		zap.S().Warnf("error writing to websocket: %v", err)
	}
}
