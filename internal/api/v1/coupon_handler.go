package v1

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"likes-hub/internal/api/sanitize"
	"likes-hub/internal/service"
)

// CouponHandler serves the public redemption flow. Responses deliberately
// give one generic message for every unredeemable coupon so callers cannot
// enumerate the code space.
type CouponHandler struct {
	coupons     *service.CouponService
	redemptions *service.RedemptionService
	logger      *zap.Logger
}

func NewCouponHandler(coupons *service.CouponService, redemptions *service.RedemptionService, logger *zap.Logger) *CouponHandler {
	return &CouponHandler{coupons: coupons, redemptions: redemptions, logger: logger}
}

func (h *CouponHandler) Check(c *gin.Context) {
	code := sanitize.Text(c.Query("code"))
	if code == "" {
		c.JSON(http.StatusOK, gin.H{"valid": false, "message": "Coupon code required"})
		return
	}

	coupon, err := h.coupons.Check(c.Request.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCouponNotFound),
			errors.Is(err, service.ErrCouponUsed),
			errors.Is(err, service.ErrCouponExpired):
			c.JSON(http.StatusOK, gin.H{"valid": false, "message": "Invalid or expired coupon"})
		default:
			h.logger.Error("coupon check failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":      true,
		"likes":      coupon.LikesCount,
		"expires_at": coupon.ExpiresAt,
		"created_at": coupon.CreatedAt,
	})
}

type useCouponRequest struct {
	Code      string `json:"code"`
	AccountID string `json:"account_id"`
	UserID    string `json:"user_id"`
	Region    string `json:"region"`
}

func (h *CouponHandler) Use(c *gin.Context) {
	var req useCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	code := sanitize.Text(req.Code)
	accountID := sanitize.Text(req.AccountID)
	if code == "" || accountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Coupon code and account id are required"})
		return
	}

	result, err := h.redemptions.Redeem(c.Request.Context(), service.RedeemRequest{
		Code:      code,
		AccountID: accountID,
		UserID:    sanitize.Text(req.UserID),
		Region:    sanitize.Text(req.Region),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		if errors.Is(err, service.ErrCouponInvalid) {
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "Invalid or expired coupon"})
			return
		}
		h.logger.Error("redemption failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        fmt.Sprintf("Successfully sent %d likes to account %s", result.LikesSent, accountID),
		"coupon_balance": 0,
		"transaction_id": result.TransactionID,
	})
}
