package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dev1d123/CyberDOJO/internal/catalog"
	"github.com/dev1d123/CyberDOJO/internal/common"
	"github.com/dev1d123/CyberDOJO/internal/game"
)

type startSessionReq struct {
	ScenarioID *uint64 `json:"scenario_id"`
}

func (h *Handler) StartSession(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req startSessionReq
	_ = c.ShouldBindJSON(&req) // allow empty {}

	res, err := h.GameSvc.StartSession(c.Request.Context(), user, req.ScenarioID)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrScenarioNotFound):
			common.Fail(c, http.StatusNotFound, 40410, "scenario not found")
		case errors.Is(err, catalog.ErrNoActiveScenario):
			common.Fail(c, http.StatusNotFound, 40411, "no active scenario")
		case errors.Is(err, game.ErrUserInactive):
			common.Fail(c, http.StatusUnauthorized, 40103, "account disabled")
		default:
			common.Fail(c, http.StatusInternalServerError, 50010, "failed to start session")
		}
		return
	}

	common.OK(c, gin.H{
		"session_id":      res.SessionID,
		"initial_message": res.OpeningMessage,
		"resumed":         false,
	})
}

type chatReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

func (h *Handler) Chat(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "session_id and message required")
		return
	}

	res, err := h.GameSvc.ProcessTurn(c.Request.Context(), user, req.SessionID, req.Message)
	if err != nil {
		var ended *game.SessionEndedError
		switch {
		case errors.Is(err, game.ErrMissingMessage):
			common.Fail(c, http.StatusBadRequest, 10002, "message required")
		case errors.As(err, &ended):
			c.JSON(http.StatusConflict, gin.H{
				"code":    40900,
				"message": "session ended",
				"data": gin.H{
					"outcome":          ended.Outcome.OrNull(),
					"is_game_over":     ended.Outcome.LegacyGameOver(),
					"game_over_reason": ended.Reason,
				},
			})
		case errors.Is(err, game.ErrSessionNotFound):
			common.Fail(c, http.StatusNotFound, 40412, "session not found")
		case errors.Is(err, game.ErrClassifierUnavailable):
			common.Fail(c, http.StatusServiceUnavailable, 50300, "classifier unavailable, try again")
		default:
			common.Fail(c, http.StatusInternalServerError, 50011, "failed to process turn")
		}
		return
	}

	common.OK(c, gin.H{
		"reply":               res.Reply,
		"session_id":          req.SessionID,
		"antagonist_attempts": res.AntagonistAttempts,
		"outcome":             res.Outcome.OrNull(),
		"is_game_over":        res.Outcome.LegacyGameOver(),
		"game_over_reason":    res.GameOverReason,
		"disclosure":          res.Disclosure,
		"disclosure_reason":   res.DisclosureReason,
	})
}

func (h *Handler) ResumeSession(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var scenarioID *uint64
	if v := c.Query("scenario_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			scenarioID = &n
		}
	}

	res, err := h.GameSvc.ResumeActiveSession(c.Request.Context(), user.ID, scenarioID)
	if err != nil {
		if errors.Is(err, game.ErrNoActiveSession) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    40413,
				"message": "no active session",
				"data":    gin.H{"resumed": false},
			})
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50012, "failed to resume session")
		return
	}

	common.OK(c, gin.H{
		"resumed":             true,
		"session_id":          res.Session.SessionID,
		"scenario":            res.Session.Snapshot,
		"antagonist_attempts": res.Session.AntagonistAttempts,
		"messages":            transcriptJSON(res.Messages),
	})
}

func (h *Handler) SessionMessages(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	sess, msgs, err := h.GameSvc.GetTranscript(c.Request.Context(), user.ID, sessionID)
	if err != nil {
		if errors.Is(err, game.ErrSessionNotFound) {
			common.Fail(c, http.StatusNotFound, 40412, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50013, "failed to load transcript")
		return
	}

	common.OK(c, gin.H{
		"session_id": sess.SessionID,
		"messages":   transcriptJSON(msgs),
		"session": gin.H{
			"scenario":            sess.Snapshot,
			"antagonist_attempts": sess.AntagonistAttempts,
			"outcome":             sess.Outcome.OrNull(),
			"is_game_over":        sess.Outcome.LegacyGameOver(),
			"game_over_reason":    sess.GameOverReason,
			"points_earned":       sess.PointsEarned,
			"started_at":          sess.StartedAt,
			"ended_at":            sess.EndedAt,
		},
	})
}

func transcriptJSON(msgs []game.ChatMessage) []gin.H {
	out := make([]gin.H, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, gin.H{
			"role":         m.Role,
			"content":      m.Content,
			"sent_at":      m.SentAt,
			"is_dangerous": m.IsDangerous,
		})
	}
	return out
}
