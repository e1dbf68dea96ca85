package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"likes-hub/internal/api/middleware"
	v1 "likes-hub/internal/api/v1"
	"likes-hub/internal/metrics"
	"likes-hub/internal/model"
	"likes-hub/internal/repository/postgres"
	"likes-hub/internal/scheduler"
	"likes-hub/internal/service"
)

type Config struct {
	App struct {
		Env string
	}
	Server struct {
		Host        string
		Port        int
		CORSOrigins []string
	}
	Database struct {
		URL      string
		MaxConns int32
	}
	Security struct {
		JWTSecret     string
		InternalToken string
	}
	RateLimit struct {
		LoginPerMinute  int
		RedeemPerMinute int
	}
}

func loadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("app.env", "production")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("ratelimit.login_per_minute", 5)
	v.SetDefault("ratelimit.redeem_per_minute", 10)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/likes-hub")

	v.SetEnvPrefix("LIKESHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database.url", "LIKESHUB_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("security.jwt_secret", "LIKESHUB_SECURITY_JWT_SECRET", "JWT_SECRET")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	cfg.App.Env = v.GetString("app.env")
	cfg.Server.Host = v.GetString("server.host")
	cfg.Server.Port = v.GetInt("server.port")
	cfg.Server.CORSOrigins = v.GetStringSlice("server.cors_origins")
	cfg.Database.URL = v.GetString("database.url")
	cfg.Database.MaxConns = v.GetInt32("database.max_conns")
	cfg.Security.JWTSecret = v.GetString("security.jwt_secret")
	cfg.Security.InternalToken = v.GetString("security.internal_token")
	cfg.RateLimit.LoginPerMinute = v.GetInt("ratelimit.login_per_minute")
	cfg.RateLimit.RedeemPerMinute = v.GetInt("ratelimit.redeem_per_minute")

	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required (set LIKESHUB_DATABASE_URL or DATABASE_URL)")
	}
	// No fallback secret: an unset value must stop the process, never silently
	// sign tokens with a default.
	if cfg.Security.JWTSecret == "" {
		return nil, errors.New("security.jwt_secret is required (set LIKESHUB_SECURITY_JWT_SECRET or JWT_SECRET)")
	}
	for _, origin := range cfg.Server.CORSOrigins {
		if origin == "*" {
			return nil, errors.New("server.cors_origins must list explicit origins, wildcard is not allowed")
		}
	}
	return cfg, nil
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newDBPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = cfg.Database.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func runMigrations(databaseURL string, logger *zap.Logger) error {
	url := strings.Replace(databaseURL, "postgres://", "pgx5://", 1)
	m, err := migrate.New("file://migrations", url)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("migrations up to date")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("migrations applied")
	return nil
}

// pollCouponGauges refreshes the status gauges every 30 seconds until the
// context ends.
func pollCouponGauges(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		rows, err := pool.Query(queryCtx, `SELECT status, COUNT(*) FROM coupons GROUP BY status`)
		if err != nil {
			cancel()
			logger.Warn("coupon gauge poll failed", zap.Error(err))
			continue
		}
		counts := map[string]int64{
			string(model.CouponStatusActive): 0,
			string(model.CouponStatusUsed):   0,
		}
		for rows.Next() {
			var status string
			var count int64
			if err := rows.Scan(&status, &count); err != nil {
				break
			}
			counts[status] = count
		}
		rows.Close()
		cancel()
		for status, count := range counts {
			metrics.CouponsByStatus.WithLabelValues(status).Set(float64(count))
		}
	}
}

func buildRouter(cfg *Config, pool *pgxpool.Pool, logger *zap.Logger) *gin.Engine {
	couponRepo := postgres.NewCouponRepository(pool)
	txnRepo := postgres.NewTransactionRepository(pool)
	adminRepo := postgres.NewAdminUserRepository(pool)

	couponSvc := service.NewCouponService(couponRepo, logger)
	redemptionSvc := service.NewRedemptionService(pool, couponRepo, txnRepo, logger)
	authSvc := service.NewAuthService(adminRepo, cfg.Security.JWTSecret, logger)
	playerSvc := service.NewPlayerService()

	adminHandler := v1.NewAdminHandler(authSvc, couponSvc, logger)
	couponHandler := v1.NewCouponHandler(couponSvc, redemptionSvc, logger)
	playerHandler := v1.NewPlayerHandler(playerSvc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	if len(cfg.Server.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Server.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	router.GET("/internal/metrics",
		middleware.InternalTokenAuth(cfg.Security.InternalToken),
		gin.WrapH(promhttp.Handler()))

	loginLimiter := middleware.NewRateLimiter(cfg.RateLimit.LoginPerMinute, time.Minute)
	redeemLimiter := middleware.NewRateLimiter(cfg.RateLimit.RedeemPerMinute, time.Minute)

	api := router.Group("/api")
	{
		api.POST("/admin/login", middleware.RateLimitByIP(loginLimiter), adminHandler.Login)

		admin := api.Group("/admin", middleware.RequireAdmin(cfg.Security.JWTSecret))
		{
			admin.POST("/coupons", adminHandler.CreateCoupons)
			admin.GET("/coupons", adminHandler.ListCoupons)
		}

		api.GET("/check-coupon", couponHandler.Check)
		api.POST("/use-coupon",
			middleware.RateLimitByJSONField(redeemLimiter, "account_id"),
			couponHandler.Use)

		api.GET("/info", playerHandler.Info)
		api.GET("/status", playerHandler.Status)
	}

	return router
}

func runServer(cfg *Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runMigrations(cfg.Database.URL, logger); err != nil {
		return err
	}

	pool, err := newDBPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	adminRepo := postgres.NewAdminUserRepository(pool)
	authSvc := service.NewAuthService(adminRepo, cfg.Security.JWTSecret, logger)
	if err := authSvc.EnsureDefaultAdmin(ctx); err != nil {
		return err
	}

	sched := scheduler.New(pool, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	go pollCouponGauges(ctx, pool, logger)

	if cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           buildRouter(cfg, pool, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runCreateAdmin(cfg *Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
	username := fs.String("username", "", "admin username")
	password := fs.String("password", "", "admin password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return errors.New("create-admin requires -username and -password")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := newDBPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	authSvc := service.NewAuthService(postgres.NewAdminUserRepository(pool), cfg.Security.JWTSecret, logger)
	user, err := authSvc.CreateAdmin(ctx, *username, *password)
	if err != nil {
		return err
	}
	logger.Info("admin user created", zap.String("username", user.Username))
	return nil
}

func runHealthcheck(cfg *Config) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.App.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		err = runServer(cfg, logger)
	case "migrate":
		err = runMigrations(cfg.Database.URL, logger)
	case "create-admin":
		err = runCreateAdmin(cfg, logger, os.Args[2:])
	case "healthcheck":
		err = runHealthcheck(cfg)
	default:
		err = fmt.Errorf("unknown command %q (expected serve, migrate, create-admin or healthcheck)", cmd)
	}
	if err != nil {
		logger.Fatal("exiting", zap.Error(err))
	}
}
