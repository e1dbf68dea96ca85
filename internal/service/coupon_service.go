package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"likes-hub/internal/metrics"
	"likes-hub/internal/model"
	"likes-hub/internal/repository"
)

const (
	codeAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeGroupLen  = 4
	codeGroups    = 3
	defaultPrefix = "LIKES"

	// maxCodeAttempts bounds collision retries for a single coupon. Hitting
	// the bound means the code space under this prefix is effectively full.
	maxCodeAttempts = 32

	maxBatchCount = 1000
)

var (
	ErrInvalidLikes            = errors.New("likes count must be positive")
	ErrInvalidCount            = errors.New("count must be between 1 and 1000")
	ErrInvalidPrefix           = errors.New("prefix must be 1-12 uppercase letters or digits")
	ErrCodeGenerationExhausted = errors.New("coupon code generation exhausted retries")

	ErrCouponNotFound = errors.New("coupon not found")
	ErrCouponUsed     = errors.New("coupon already used")
	ErrCouponExpired  = errors.New("coupon expired")

	prefixPattern = regexp.MustCompile(`^[A-Z0-9]{1,12}$`)
)

// GenerateRequest describes one issuance batch. ExpiresInDays of zero means
// the coupons never expire.
type GenerateRequest struct {
	Likes         int
	Count         int
	Prefix        string
	ExpiresInDays int
	CreatedBy     string
}

type CouponService struct {
	coupons repository.CouponRepository
	logger  *zap.Logger
}

func NewCouponService(coupons repository.CouponRepository, logger *zap.Logger) *CouponService {
	return &CouponService{coupons: coupons, logger: logger}
}

// GenerateBatch mints the requested coupons. Codes are random, so each insert
// may collide with an existing row; collisions retry with a fresh code up to
// maxCodeAttempts. On exhaustion the coupons created so far are returned
// alongside the error.
func (s *CouponService) GenerateBatch(ctx context.Context, req GenerateRequest) ([]*model.Coupon, error) {
	if req.Likes <= 0 {
		return nil, ErrInvalidLikes
	}
	if req.Count < 1 || req.Count > maxBatchCount {
		return nil, ErrInvalidCount
	}
	prefix := strings.ToUpper(strings.TrimSpace(req.Prefix))
	if prefix == "" {
		prefix = defaultPrefix
	}
	if !prefixPattern.MatchString(prefix) {
		return nil, ErrInvalidPrefix
	}

	now := time.Now().UTC()
	var expiresAt *time.Time
	if req.ExpiresInDays > 0 {
		t := now.AddDate(0, 0, req.ExpiresInDays)
		expiresAt = &t
	}

	coupons := make([]*model.Coupon, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		coupon, err := s.createWithRetry(ctx, prefix, req.Likes, req.CreatedBy, now, expiresAt)
		if err != nil {
			s.logger.Error("coupon batch aborted",
				zap.String("prefix", prefix),
				zap.Int("requested", req.Count),
				zap.Int("created", len(coupons)),
				zap.Error(err))
			return coupons, err
		}
		coupons = append(coupons, coupon)
	}

	s.logger.Info("coupon batch created",
		zap.String("prefix", prefix),
		zap.Int("count", len(coupons)),
		zap.Int("likes", req.Likes),
		zap.String("created_by", req.CreatedBy))
	return coupons, nil
}

func (s *CouponService) createWithRetry(ctx context.Context, prefix string, likes int, createdBy string, now time.Time, expiresAt *time.Time) (*model.Coupon, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateCode(prefix)
		if err != nil {
			return nil, err
		}
		coupon := &model.Coupon{
			ID:         uuid.New(),
			Code:       code,
			LikesCount: likes,
			Status:     model.CouponStatusActive,
			CreatedBy:  createdBy,
			CreatedAt:  now,
			ExpiresAt:  expiresAt,
		}
		err = s.coupons.Create(ctx, coupon)
		if err == nil {
			metrics.CouponsIssuedTotal.Inc()
			metrics.CodeGenerationRetries.Observe(float64(attempt))
			return coupon, nil
		}
		if !errors.Is(err, repository.ErrDuplicateCode) {
			return nil, err
		}
		s.logger.Debug("coupon code collision, retrying",
			zap.String("code", code),
			zap.Int("attempt", attempt+1))
	}
	return nil, ErrCodeGenerationExhausted
}

// Check classifies the coupon without touching it: not found, used, expired,
// or redeemable. Expiry is evaluated against the current clock.
func (s *CouponService) Check(ctx context.Context, code string) (*model.Coupon, error) {
	coupon, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, err
	}
	if coupon.Status == model.CouponStatusUsed {
		return nil, ErrCouponUsed
	}
	if coupon.Expired(time.Now().UTC()) {
		return nil, ErrCouponExpired
	}
	return coupon, nil
}

func (s *CouponService) ListAll(ctx context.Context) ([]*model.CouponSummary, error) {
	return s.coupons.ListWithUsage(ctx)
}

// generateCode returns PREFIX-XXXX-XXXX-XXXX over [A-Z0-9], sampled with
// crypto/rand so codes are not guessable from earlier ones.
func generateCode(prefix string) (string, error) {
	alphabetLen := big.NewInt(int64(len(codeAlphabet)))
	var sb strings.Builder
	sb.WriteString(prefix)
	for g := 0; g < codeGroups; g++ {
		sb.WriteByte('-')
		for i := 0; i < codeGroupLen; i++ {
			n, err := rand.Int(rand.Reader, alphabetLen)
			if err != nil {
				return "", fmt.Errorf("random code: %w", err)
			}
			sb.WriteByte(codeAlphabet[n.Int64()])
		}
	}
	return sb.String(), nil
}
