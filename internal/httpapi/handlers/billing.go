package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/ai-debate/internal/common"
	"github.com/suPer8Hu/ai-debate/internal/tokenstore"
)

type checkoutReq struct {
	Tier string `json:"tier" binding:"required"`
}

// CreateCheckout stands in for a payment processor: the returned URL is the
// dev completion endpoint below.
func (h *Handler) CreateCheckout(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "tier required")
		return
	}
	co, err := h.ChatSvc.CreateCheckout(c.Request.Context(), uid, tokenstore.Tier(req.Tier))
	if err != nil {
		h.fail(c, "create checkout", err)
		return
	}
	base := h.Cfg.CheckoutBaseURL
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + c.Request.Host
	}
	common.OK(c, http.StatusOK, gin.H{
		"id":  co.ID,
		"url": base + "/api/v1/payments/checkout/" + co.ID + "/complete",
	})
}

// CompleteCheckout plays the processor's success redirect. It needs no
// token: the checkout id is the capability.
func (h *Handler) CompleteCheckout(c *gin.Context) {
	co, err := h.ChatSvc.CompleteCheckout(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "complete checkout", err)
		return
	}
	common.OK(c, http.StatusOK, gin.H{"id": co.ID, "status": co.Status, "tier": co.Tier})
}

func (h *Handler) PaymentStatus(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	tier, err := h.ChatSvc.PaymentStatus(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, "payment status", err)
		return
	}
	common.OK(c, http.StatusOK, gin.H{"tier": tier})
}
