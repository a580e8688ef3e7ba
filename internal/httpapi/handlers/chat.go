package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/ai-debate/internal/common"
)

type createSessionReq struct {
	SessionID    string   `json:"session_id"`
	Participants []string `json:"participants"`
}

func (h *Handler) CreateSession(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var req createSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	sess, err := h.ChatSvc.CreateSession(c.Request.Context(), uid, req.SessionID, req.Participants)
	if err != nil {
		h.fail(c, "create session", err)
		return
	}
	common.OK(c, http.StatusCreated, gin.H{
		"session_id":   sess.SessionID,
		"participants": sess.ParticipantList(),
	})
}

func (h *Handler) GetSession(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	sess, err := h.ChatSvc.GetSession(c.Request.Context(), uid, c.Param("session_id"))
	if err != nil {
		h.fail(c, "load session", err)
		return
	}
	common.OK(c, http.StatusOK, sess)
}

type broadcastReq struct {
	SessionID    string   `json:"session_id" binding:"required"`
	Prompt       string   `json:"prompt" binding:"required"`
	Participants []string `json:"participants"`
}

func (h *Handler) Broadcast(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var req broadcastReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "session_id and prompt required")
		return
	}
	msgs, err := h.ChatSvc.Broadcast(c.Request.Context(), uid, req.SessionID, req.Prompt, req.Participants)
	if err != nil {
		h.fail(c, "broadcast", err)
		return
	}
	common.OK(c, http.StatusOK, gin.H{"messages": msgs})
}

type sessionSummary struct {
	SessionID    string    `json:"session_id"`
	Participants []string  `json:"participants"`
	LastActive   time.Time `json:"last_active"`
}

func (h *Handler) History(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.ChatSvc.ListSessions(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, "list sessions", err)
		return
	}
	out := make([]sessionSummary, 0, len(list))
	for _, s := range list {
		out = append(out, sessionSummary{SessionID: s.SessionID, Participants: s.ParticipantList(), LastActive: s.UpdatedAt})
	}
	common.OK(c, http.StatusOK, gin.H{"sessions": out})
}
