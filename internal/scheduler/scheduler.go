// Package scheduler runs the periodic operational jobs.
package scheduler

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Scheduler struct {
	cron   *cron.Cron
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func New(pool *pgxpool.Pool, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		pool:   pool,
		logger: logger,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@hourly", s.reportStats); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started")
	return nil
}

// Stop halts the cron loop and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// reportStats logs an hourly operational summary. It reads only; the gauges
// on the metrics endpoint are fed separately by the poller in main.
func (s *Scheduler) reportStats() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var active, used, expired int64
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'active' AND (expires_at IS NULL OR expires_at > NOW())),
			COUNT(*) FILTER (WHERE status = 'used'),
			COUNT(*) FILTER (WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= NOW())
		FROM coupons`).Scan(&active, &used, &expired)
	if err != nil {
		s.logger.Error("stats job: coupon counts", zap.Error(err))
		return
	}

	var redeemedLastHour int64
	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE created_at > NOW() - INTERVAL '1 hour'`,
	).Scan(&redeemedLastHour)
	if err != nil {
		s.logger.Error("stats job: redemption count", zap.Error(err))
		return
	}

	s.logger.Info("hourly coupon stats",
		zap.Int64("active", active),
		zap.Int64("used", used),
		zap.Int64("expired_unused", expired),
		zap.Int64("redeemed_last_hour", redeemedLastHour))
}
