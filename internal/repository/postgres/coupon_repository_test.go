package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	testcontainers "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"likes-hub/internal/model"
	"likes-hub/internal/repository"
)

func TestCouponCreateAndFind(t *testing.T) {
	pool := startPostgresForRepoTest(t)
	repo := NewCouponRepository(pool)
	ctx := context.Background()

	coupon := newTestCoupon("LIKES-AAAA-BBBB-CCCC", 100, nil)
	if err := repo.Create(ctx, coupon); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.FindByCode(ctx, coupon.Code)
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if got.ID != coupon.ID || got.LikesCount != 100 || got.Status != model.CouponStatusActive {
		t.Fatalf("unexpected coupon: %+v", got)
	}

	if _, err := repo.FindByCode(ctx, "LIKES-NOPE-NOPE-NOPE"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("unknown code: error = %v, want ErrNotFound", err)
	}
}

func TestCouponCreateDuplicateCode(t *testing.T) {
	pool := startPostgresForRepoTest(t)
	repo := NewCouponRepository(pool)
	ctx := context.Background()

	first := newTestCoupon("LIKES-DUPE-DUPE-DUPE", 50, nil)
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}

	second := newTestCoupon("LIKES-DUPE-DUPE-DUPE", 50, nil)
	if err := repo.Create(ctx, second); !errors.Is(err, repository.ErrDuplicateCode) {
		t.Fatalf("duplicate insert: error = %v, want ErrDuplicateCode", err)
	}
}

func TestFindActiveByCodeFiltersExpiredAndUsed(t *testing.T) {
	pool := startPostgresForRepoTest(t)
	repo := NewCouponRepository(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-time.Hour)
	expired := newTestCoupon("LIKES-EXPD-EXPD-EXPD", 10, &past)
	if err := repo.Create(ctx, expired); err != nil {
		t.Fatalf("Create expired: %v", err)
	}
	if _, err := repo.FindActiveByCode(ctx, expired.Code, now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expired coupon: error = %v, want ErrNotFound", err)
	}

	active := newTestCoupon("LIKES-LIVE-LIVE-LIVE", 10, nil)
	if err := repo.Create(ctx, active); err != nil {
		t.Fatalf("Create active: %v", err)
	}
	if _, err := repo.FindActiveByCode(ctx, active.Code, now); err != nil {
		t.Fatalf("active coupon: %v", err)
	}

	claimCoupon(t, pool, repo, active.Code, "tester")
	if _, err := repo.FindActiveByCode(ctx, active.Code, now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("used coupon: error = %v, want ErrNotFound", err)
	}
}

func TestMarkUsedClaimsOnlyOnce(t *testing.T) {
	pool := startPostgresForRepoTest(t)
	repo := NewCouponRepository(pool)
	ctx := context.Background()

	coupon := newTestCoupon("LIKES-ONCE-ONCE-ONCE", 25, nil)
	if err := repo.Create(ctx, coupon); err != nil {
		t.Fatalf("Create: %v", err)
	}

	claimed := claimCoupon(t, pool, repo, coupon.Code, "first")
	if claimed.Status != model.CouponStatusUsed || claimed.UsedBy == nil || *claimed.UsedBy != "first" {
		t.Fatalf("unexpected claimed coupon: %+v", claimed)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(ctx)
	if _, err := repo.MarkUsed(ctx, tx, coupon.Code, "second", time.Now().UTC()); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second claim: error = %v, want ErrNotFound", err)
	}
}

func TestMarkUsedConcurrentSingleWinner(t *testing.T) {
	pool := startPostgresForRepoTest(t)
	repo := NewCouponRepository(pool)
	ctx := context.Background()

	coupon := newTestCoupon("LIKES-RACE-RACE-RACE", 25, nil)
	if err := repo.Create(ctx, coupon); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const contenders = 8
	var wg sync.WaitGroup
	wins := make(chan string, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tx, err := pool.Begin(ctx)
			if err != nil {
				return
			}
			defer tx.Rollback(ctx)

			who := fmt.Sprintf("user-%d", n)
			if _, err := repo.MarkUsed(ctx, tx, coupon.Code, who, time.Now().UTC()); err != nil {
				return
			}
			if err := tx.Commit(ctx); err == nil {
				wins <- who
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("got %d winners (%v), want exactly 1", len(winners), winners)
	}

	got, err := repo.FindByCode(ctx, coupon.Code)
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if got.Status != model.CouponStatusUsed || got.UsedBy == nil || *got.UsedBy != winners[0] {
		t.Fatalf("coupon state does not match winner %s: %+v", winners[0], got)
	}
}

func TestListWithUsageAggregatesTransactions(t *testing.T) {
	pool := startPostgresForRepoTest(t)
	couponRepo := NewCouponRepository(pool)
	txnRepo := NewTransactionRepository(pool)
	ctx := context.Background()

	coupon := newTestCoupon("LIKES-LIST-LIST-LIST", 100, nil)
	if err := couponRepo.Create(ctx, coupon); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	claimed, err := couponRepo.MarkUsed(ctx, tx, coupon.Code, "9876543210", time.Now().UTC())
	if err != nil {
		t.Fatalf("MarkUsed: %v", err)
	}
	err = txnRepo.Create(ctx, tx, &model.Transaction{
		ID:        uuid.New(),
		CouponID:  claimed.ID,
		UserID:    "9876543210",
		AccountID: "9876543210",
		LikesSent: claimed.LikesCount,
		Region:    "ME",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Create transaction: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	summaries, err := couponRepo.ListWithUsage(ctx)
	if err != nil {
		t.Fatalf("ListWithUsage: %v", err)
	}
	var found *model.CouponSummary
	for _, s := range summaries {
		if s.Code == coupon.Code {
			found = s
		}
	}
	if found == nil {
		t.Fatalf("coupon %s missing from listing", coupon.Code)
	}
	if found.UsedTimes != 1 {
		t.Errorf("UsedTimes = %d, want 1", found.UsedTimes)
	}
	if found.UsedAccounts != "9876543210" {
		t.Errorf("UsedAccounts = %q, want %q", found.UsedAccounts, "9876543210")
	}

	count, err := txnRepo.CountByCoupon(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("CountByCoupon: %v", err)
	}
	if count != 1 {
		t.Errorf("CountByCoupon = %d, want 1", count)
	}
}

func TestAdminUserCreateAndFind(t *testing.T) {
	pool := startPostgresForRepoTest(t)
	repo := NewAdminUserRepository(pool)
	ctx := context.Background()

	user := &model.AdminUser{
		ID:           uuid.New(),
		Username:     "operator",
		PasswordHash: "$2a$10$notarealhashnotarealhashnotarealhashno",
		Role:         model.AdminRoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Same username again is a no-op, not an error.
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("repeat Create: %v", err)
	}

	got, err := repo.FindByUsername(ctx, "operator")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if got.ID != user.ID || got.Role != model.AdminRoleAdmin {
		t.Fatalf("unexpected user: %+v", got)
	}

	if _, err := repo.FindByUsername(ctx, "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("unknown user: error = %v, want ErrNotFound", err)
	}
}

func newTestCoupon(code string, likes int, expiresAt *time.Time) *model.Coupon {
	return &model.Coupon{
		ID:         uuid.New(),
		Code:       code,
		LikesCount: likes,
		Status:     model.CouponStatusActive,
		CreatedBy:  "admin",
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  expiresAt,
	}
}

func claimCoupon(t *testing.T, pool *pgxpool.Pool, repo *CouponRepository, code, usedBy string) *model.Coupon {
	t.Helper()
	ctx := context.Background()

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(ctx)

	claimed, err := repo.MarkUsed(ctx, tx, code, usedBy, time.Now().UTC())
	if err != nil {
		t.Fatalf("MarkUsed: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return claimed
}

func startPostgresForRepoTest(t *testing.T) *pgxpool.Pool {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "likeshub_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("skipping test because docker/testcontainers is unavailable: %v", err)
	}

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("container mapped port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/likeshub_test?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	deadline := time.Now().Add(30 * time.Second)
	for {
		err = pool.Ping(ctx)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("postgres did not become ready: %v", err)
		}
		time.Sleep(500 * time.Millisecond)
	}

	applyMigrationsForRepoTest(t, ctx, pool)
	return pool
}

func applyMigrationsForRepoTest(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()

	migrationsDir := filepath.Join(findRepoRootForRepoTest(t), "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		raw, err := os.ReadFile(filepath.Join(migrationsDir, file))
		if err != nil {
			t.Fatalf("read migration %s: %v", file, err)
		}
		if strings.TrimSpace(string(raw)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(raw)); err != nil {
			t.Fatalf("apply migration %s: %v", file, err)
		}
	}
}

func findRepoRootForRepoTest(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	for {
		_, statErr := os.Stat(filepath.Join(dir, "go.mod"))
		if statErr == nil {
			return dir
		}
		if !errors.Is(statErr, os.ErrNotExist) {
			t.Fatalf("stat go.mod: %v", statErr)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not locate repository root")
		}
		dir = parent
	}
}
