package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auditor/internal/db"
	"auditor/internal/logger"
	"auditor/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrScanLimitReached = errors.New("scan limit reached")
	ErrGateDenied       = errors.New("token gate not satisfied")
)

// Gate decides who may scan. Check runs before any upstream call, Record
// persists the scan once the analysis succeeded.
type Gate interface {
	Check(ctx context.Context, wallet string) error
	Record(ctx context.Context, scan *models.Scan) error
}

// LimitGate allows Limit scans per wallet inside a trailing Window.
// Allow-listed wallets are never limited.
type LimitGate struct {
	db        *gorm.DB
	limit     int
	window    time.Duration
	allowlist map[string]struct{}
	now       func() time.Time
	lggr      logger.Logger
}

func NewLimitGate(conn *gorm.DB, limit int, window time.Duration, allowlist []string, lggr logger.Logger) *LimitGate {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, w := range allowlist {
		allowed[w] = struct{}{}
	}
	return &LimitGate{
		db:        conn,
		limit:     limit,
		window:    window,
		allowlist: allowed,
		now:       time.Now,
		lggr:      lggr.Named("gate"),
	}
}

// WithClock replaces the wall clock, for tests.
func (g *LimitGate) WithClock(now func() time.Time) *LimitGate {
	g.now = now
	return g
}

func (g *LimitGate) allowlisted(wallet string) bool {
	_, ok := g.allowlist[wallet]
	return ok
}

func (g *LimitGate) Check(ctx context.Context, wallet string) error {
	if g.allowlisted(wallet) {
		return nil
	}

	count, err := g.recent(ctx, g.db, wallet)
	if err != nil {
		return err
	}
	if count >= int64(g.limit) {
		g.lggr.Infow("scan limit reached", "wallet", wallet, "count", count)
		return ErrScanLimitReached
	}
	return nil
}

// Record re-counts and inserts in one transaction so concurrent requests
// from the same wallet cannot overshoot the limit.
func (g *LimitGate) Record(ctx context.Context, scan *models.Scan) error {
	if scan.Timestamp.IsZero() {
		scan.Timestamp = g.now().UTC().Truncate(time.Second)
	}

	if g.allowlisted(scan.WalletAddress) {
		return insert(ctx, g.db, scan)
	}

	return g.db.Transaction(func(tx *gorm.DB) error {
		if db.IsPostgres(tx) {
			if err := tx.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", scan.WalletAddress).Error; err != nil {
				return fmt.Errorf("failed to lock wallet: %w", err)
			}
		}

		count, err := g.recent(ctx, tx, scan.WalletAddress)
		if err != nil {
			return err
		}
		if count >= int64(g.limit) {
			g.lggr.Infow("scan limit reached on record", "wallet", scan.WalletAddress, "count", count)
			return ErrScanLimitReached
		}

		return insert(ctx, tx, scan)
	})
}

func (g *LimitGate) recent(ctx context.Context, conn *gorm.DB, wallet string) (int64, error) {
	since := g.now().UTC().Add(-g.window)
	count, err := gorm.G[models.Scan](conn).
		Where("wallet_address = ?", wallet).
		Where(clause.Gt{Column: clause.Column{Name: "timestamp"}, Value: since}).
		Count(ctx, "id")
	if err != nil {
		return 0, fmt.Errorf("failed to count scans: %w", err)
	}
	return count, nil
}

// BalanceChecker reports how much of a mint a wallet holds.
type BalanceChecker interface {
	Balance(ctx context.Context, wallet, mint string) (uint64, error)
}

// HolderGate lets a wallet scan as long as it holds MinBalance of Mint.
type HolderGate struct {
	db         *gorm.DB
	checker    BalanceChecker
	mint       string
	minBalance uint64
	allowlist  map[string]struct{}
	now        func() time.Time
	lggr       logger.Logger
}

func NewHolderGate(conn *gorm.DB, checker BalanceChecker, mint string, minBalance uint64, allowlist []string, lggr logger.Logger) *HolderGate {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, w := range allowlist {
		allowed[w] = struct{}{}
	}
	return &HolderGate{
		db:         conn,
		checker:    checker,
		mint:       mint,
		minBalance: minBalance,
		allowlist:  allowed,
		now:        time.Now,
		lggr:       lggr.Named("gate"),
	}
}

func (g *HolderGate) Check(ctx context.Context, wallet string) error {
	if _, ok := g.allowlist[wallet]; ok {
		return nil
	}

	balance, err := g.checker.Balance(ctx, wallet, g.mint)
	if err != nil {
		return fmt.Errorf("failed to check holder balance: %w", err)
	}
	if balance < g.minBalance {
		g.lggr.Infow("token gate denied", "wallet", wallet, "balance", balance, "required", g.minBalance)
		return ErrGateDenied
	}
	return nil
}

func (g *HolderGate) Record(ctx context.Context, scan *models.Scan) error {
	if scan.Timestamp.IsZero() {
		scan.Timestamp = g.now().UTC().Truncate(time.Second)
	}
	return insert(ctx, g.db, scan)
}

func insert(ctx context.Context, conn *gorm.DB, scan *models.Scan) error {
	if err := gorm.G[models.Scan](conn).Create(ctx, scan); err != nil {
		return fmt.Errorf("failed to record scan: %w", err)
	}
	return nil
}
