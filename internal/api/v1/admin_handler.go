package v1

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"likes-hub/internal/api/middleware"
	"likes-hub/internal/api/sanitize"
	"likes-hub/internal/model"
	"likes-hub/internal/service"
)

// AdminHandler serves the panel: login, coupon issuance and the coupon
// listing. Everything except login sits behind the JWT middleware.
type AdminHandler struct {
	auth    *service.AuthService
	coupons *service.CouponService
	logger  *zap.Logger
}

func NewAdminHandler(auth *service.AuthService, coupons *service.CouponService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{auth: auth, coupons: coupons, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AdminHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	username := sanitize.Text(req.Username)
	result, err := h.auth.Login(c.Request.Context(), username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "User not found"})
		case errors.Is(err, service.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid password"})
		default:
			h.logger.Error("login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   result.Token,
		"user": gin.H{
			"username": result.User.Username,
			"role":     result.User.Role,
		},
	})
}

type createCouponsRequest struct {
	Prefix      string `json:"prefix"`
	Count       int    `json:"count"`
	LikesCount  int    `json:"likes_count"`
	ExpiresDays int    `json:"expires_days"`
	CreatedBy   string `json:"created_by"`
}

func (h *AdminHandler) CreateCoupons(c *gin.Context) {
	var req createCouponsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}

	createdBy := sanitize.Text(req.CreatedBy)
	if createdBy == "" {
		if claims, ok := middleware.ClaimsFromContext(c); ok {
			createdBy = claims.Username
		}
	}

	coupons, err := h.coupons.GenerateBatch(c.Request.Context(), service.GenerateRequest{
		Likes:         req.LikesCount,
		Count:         req.Count,
		Prefix:        sanitize.Text(req.Prefix),
		ExpiresInDays: req.ExpiresDays,
		CreatedBy:     createdBy,
	})
	// Issuance is best effort: when some coupons were created before the
	// failure, report those instead of discarding them.
	if err != nil && len(coupons) == 0 {
		switch {
		case errors.Is(err, service.ErrInvalidLikes),
			errors.Is(err, service.ErrInvalidCount),
			errors.Is(err, service.ErrInvalidPrefix):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrCodeGenerationExhausted):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate unique coupon codes"})
		default:
			h.logger.Error("coupon creation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	codes := make([]string, len(coupons))
	for i, coupon := range coupons {
		codes[i] = coupon.Code
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Created %d coupon(s)", len(codes)),
		"coupons": codes,
	})
}

func (h *AdminHandler) ListCoupons(c *gin.Context) {
	summaries, err := h.coupons.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("coupon listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if summaries == nil {
		summaries = []*model.CouponSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "coupons": summaries})
}
