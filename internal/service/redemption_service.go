package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"likes-hub/internal/metrics"
	"likes-hub/internal/model"
	"likes-hub/internal/repository"
)

// ErrCouponInvalid covers every unredeemable state (unknown code, already
// used, expired). Callers get one answer on purpose: probing responses must
// not reveal which case it was.
var ErrCouponInvalid = errors.New("invalid or expired coupon")

const (
	defaultRegion = "ME"

	// anonymousUser stands in when the client omits a user identity.
	anonymousUser = "anonymous"
)

type RedeemRequest struct {
	Code      string
	AccountID string
	UserID    string
	Region    string
	IPAddress string
	Location  string
}

type RedemptionResult struct {
	Coupon        *model.Coupon
	LikesSent     int
	TransactionID uuid.UUID
}

// RedemptionService performs the single-use claim. The coupon transition and
// the audit row commit in one database transaction; a crash between the two
// can never leave a used coupon without its transaction record.
type RedemptionService struct {
	pool         *pgxpool.Pool
	coupons      repository.CouponRepository
	transactions repository.TransactionRepository
	logger       *zap.Logger
}

func NewRedemptionService(pool *pgxpool.Pool, coupons repository.CouponRepository, transactions repository.TransactionRepository, logger *zap.Logger) *RedemptionService {
	return &RedemptionService{
		pool:         pool,
		coupons:      coupons,
		transactions: transactions,
		logger:       logger,
	}
}

func (s *RedemptionService) Redeem(ctx context.Context, req RedeemRequest) (*RedemptionResult, error) {
	now := time.Now().UTC()
	userID := req.UserID
	if userID == "" {
		userID = anonymousUser
	}
	region := req.Region
	if region == "" {
		region = defaultRegion
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		metrics.RedemptionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("begin redemption: %w", err)
	}
	defer tx.Rollback(ctx)

	coupon, err := s.coupons.MarkUsed(ctx, tx, req.Code, userID, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RedemptionsTotal.WithLabelValues("invalid").Inc()
			s.logger.Info("redemption rejected",
				zap.String("code", req.Code),
				zap.String("account_id", req.AccountID))
			return nil, ErrCouponInvalid
		}
		metrics.RedemptionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	txn := &model.Transaction{
		ID:        uuid.New(),
		CouponID:  coupon.ID,
		UserID:    userID,
		AccountID: req.AccountID,
		LikesSent: coupon.LikesCount,
		Region:    region,
		CreatedAt: now,
	}
	if req.IPAddress != "" {
		txn.IPAddress = &req.IPAddress
	}
	if req.Location != "" {
		txn.Location = &req.Location
	}
	if err := s.transactions.Create(ctx, tx, txn); err != nil {
		metrics.RedemptionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.RedemptionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("commit redemption: %w", err)
	}

	metrics.RedemptionsTotal.WithLabelValues("success").Inc()
	s.logger.Info("coupon redeemed",
		zap.String("code", coupon.Code),
		zap.String("account_id", req.AccountID),
		zap.Int("likes_sent", coupon.LikesCount),
		zap.String("transaction_id", txn.ID.String()))

	return &RedemptionResult{
		Coupon:        coupon,
		LikesSent:     coupon.LikesCount,
		TransactionID: txn.ID,
	}, nil
}
