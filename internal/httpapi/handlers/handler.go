package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/suPer8Hu/ai-debate/internal/chat"
	"github.com/suPer8Hu/ai-debate/internal/common"
	"github.com/suPer8Hu/ai-debate/internal/config"
	"github.com/suPer8Hu/ai-debate/internal/httpapi/middleware"
)

type Handler struct {
	Cfg     config.Config
	ChatSvc *chat.Service
	Logger  *slog.Logger
}

func NewHandler(cfg config.Config, svc *chat.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Cfg: cfg, ChatSvc: svc, Logger: logger}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, http.StatusOK, gin.H{"status": "ok"})
}

// currentUser reads the id set by AuthRequired; handlers behind it can rely
// on it being present.
func currentUser(c *gin.Context) (uint64, bool) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, "Not authenticated")
	}
	return uid, ok
}

// fail maps service errors onto status codes.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		common.Fail(c, http.StatusNotFound, "not found")
	case errors.Is(err, chat.ErrInvalidCredentials):
		common.Fail(c, http.StatusUnauthorized, "Incorrect email or password")
	case errors.Is(err, chat.ErrEmailTaken):
		common.Fail(c, http.StatusConflict, "Email already registered")
	case errors.Is(err, chat.ErrModelNotAllowed):
		common.Fail(c, http.StatusForbidden, err.Error())
	case errors.Is(err, chat.ErrInvalidInput):
		common.Fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrProvider):
		common.Fail(c, http.StatusBadGateway, err.Error())
	default:
		h.Logger.Error(op+" failed", "err", err, "request_id", c.GetString(middleware.RequestIDKey))
		common.Fail(c, http.StatusInternalServerError, op+" failed")
	}
}
