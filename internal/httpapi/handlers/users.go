package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/ai-debate/internal/auth"
	"github.com/suPer8Hu/ai-debate/internal/chat"
	"github.com/suPer8Hu/ai-debate/internal/common"
)

type signupReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name"`
}

type loginForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserName    string `json:"user_name"`
	UserTier    string `json:"user_tier"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "email and password required")
		return
	}
	u, err := h.ChatSvc.Signup(c.Request.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		h.fail(c, "signup", err)
		return
	}
	h.issueToken(c, http.StatusCreated, u)
}

// Login takes OAuth2 password-form fields; "username" carries the email.
func (h *Handler) Login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		common.Fail(c, http.StatusBadRequest, "username and password required")
		return
	}
	u, err := h.ChatSvc.Authenticate(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		h.fail(c, "login", err)
		return
	}
	h.issueToken(c, http.StatusOK, u)
}

func (h *Handler) issueToken(c *gin.Context, status int, u *chat.User) {
	token, err := auth.SignJWT(u.ID, u.Email, h.Cfg.JWTSecret, h.Cfg.TokenTTL)
	if err != nil {
		h.fail(c, "sign token", err)
		return
	}
	name := u.FullName
	if name == "" {
		name = u.Email
	}
	common.OK(c, status, tokenResp{
		AccessToken: token,
		TokenType:   "bearer",
		UserName:    name,
		UserTier:    string(u.Tier),
	})
}

func (h *Handler) Me(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	u, err := h.ChatSvc.GetUser(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, "load user", err)
		return
	}
	common.OK(c, http.StatusOK, gin.H{
		"id":         u.ID,
		"email":      u.Email,
		"full_name":  u.FullName,
		"tier":       u.Tier,
		"created_at": u.CreatedAt,
	})
}
