package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/ai-debate/internal/chat"
	"github.com/suPer8Hu/ai-debate/internal/common"
)

func digestBody(d *chat.Digest) gin.H {
	highlights := d.HighlightList()
	if highlights == nil {
		highlights = []string{}
	}
	return gin.H{
		"date":          d.Date,
		"summary":       d.Summary,
		"highlights":    highlights,
		"session_count": d.SessionCount,
		"message_count": d.MessageCount,
		"generated_at":  d.GeneratedAt,
	}
}

func (h *Handler) LatestDaily(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	d, err := h.ChatSvc.LatestDigest(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, "latest daily", err)
		return
	}
	common.OK(c, http.StatusOK, digestBody(d))
}

func (h *Handler) GenerateDaily(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	d, err := h.ChatSvc.GenerateDigest(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, "generate daily", err)
		return
	}
	common.OK(c, http.StatusOK, digestBody(d))
}
