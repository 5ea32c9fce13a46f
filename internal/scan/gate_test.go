package scan_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"auditor/internal/logger"
	"auditor/internal/models"
	"auditor/internal/scan"
	"auditor/internal/testhelpers"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

const (
	wallet      = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	allowWallet = "HgLjKiQoWK4HU4dBo9y1mP6QNu4af5vT51fFc6LupaVt"
	mint        = "So11111111111111111111111111111111111111112"
)

var _ = Describe("LimitGate", func() {
	var (
		conn *gorm.DB
		now  time.Time
		gate *scan.LimitGate
		ctx  context.Context
	)

	BeforeEach(func() {
		conn = testhelpers.NewTestDB(GinkgoT().TempDir())
		now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		gate = scan.NewLimitGate(conn, 2, 24*time.Hour, []string{allowWallet}, logger.Nop()).
			WithClock(func() time.Time { return now })
		ctx = context.Background()
	})

	record := func(w string) error {
		return gate.Record(ctx, &models.Scan{WalletAddress: w, TokenAddress: mint, InitialMarketCap: 1})
	}

	It("allows two scans and rejects the third", func() {
		Expect(gate.Check(ctx, wallet)).To(Succeed())
		Expect(record(wallet)).To(Succeed())
		Expect(gate.Check(ctx, wallet)).To(Succeed())
		Expect(record(wallet)).To(Succeed())

		Expect(gate.Check(ctx, wallet)).To(MatchError(scan.ErrScanLimitReached))
		Expect(record(wallet)).To(MatchError(scan.ErrScanLimitReached))
		Expect(testhelpers.CountScans(conn, wallet)).To(Equal(int64(2)))
	})

	It("never limits allow-listed wallets", func() {
		for i := 0; i < 5; i++ {
			Expect(gate.Check(ctx, allowWallet)).To(Succeed())
			Expect(record(allowWallet)).To(Succeed())
		}
		Expect(testhelpers.CountScans(conn, allowWallet)).To(Equal(int64(5)))
	})

	It("only counts scans inside the window", func() {
		testhelpers.CreateScan(conn, wallet, mint, now.Add(-25*time.Hour))
		testhelpers.CreateScan(conn, wallet, mint, now.Add(-48*time.Hour))
		testhelpers.CreateScan(conn, wallet, mint, now.Add(-time.Hour))

		Expect(gate.Check(ctx, wallet)).To(Succeed())
		Expect(record(wallet)).To(Succeed())
		Expect(gate.Check(ctx, wallet)).To(MatchError(scan.ErrScanLimitReached))
	})

	It("keeps wallets independent", func() {
		testhelpers.CreateScan(conn, wallet, mint, now.Add(-time.Minute))
		testhelpers.CreateScan(conn, wallet, mint, now.Add(-time.Minute))

		Expect(gate.Check(ctx, wallet)).To(MatchError(scan.ErrScanLimitReached))
		Expect(gate.Check(ctx, "AnotherWallet1111111111111111111111111111111")).To(Succeed())
	})

	It("stamps records in UTC to the second", func() {
		now = time.Date(2025, 6, 1, 14, 30, 15, 987654321, time.FixedZone("CEST", 2*3600))
		s := &models.Scan{WalletAddress: wallet, TokenAddress: mint}
		Expect(gate.Record(ctx, s)).To(Succeed())
		Expect(s.Timestamp).To(Equal(time.Date(2025, 6, 1, 12, 30, 15, 0, time.UTC)))
	})

	It("never exceeds the limit under concurrent records", func() {
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			ok, deny int
		)
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				err := record(wallet)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case errors.Is(err, scan.ErrScanLimitReached):
					deny++
				default:
					Fail("unexpected error: " + err.Error())
				}
			}()
		}
		wg.Wait()

		Expect(ok).To(Equal(2))
		Expect(deny).To(Equal(4))
		Expect(testhelpers.CountScans(conn, wallet)).To(Equal(int64(2)))
	})
})

type fakeBalances struct {
	balance uint64
	err     error
	calls   int
}

func (f *fakeBalances) Balance(context.Context, string, string) (uint64, error) {
	f.calls++
	return f.balance, f.err
}

var _ = Describe("HolderGate", func() {
	var (
		conn     *gorm.DB
		balances *fakeBalances
		gate     *scan.HolderGate
		ctx      context.Context
	)

	BeforeEach(func() {
		conn = testhelpers.NewTestDB(GinkgoT().TempDir())
		balances = &fakeBalances{}
		gate = scan.NewHolderGate(conn, balances, mint, 100, []string{allowWallet}, logger.Nop())
		ctx = context.Background()
	})

	It("admits holders and records every scan", func() {
		balances.balance = 100
		for i := 0; i < 3; i++ {
			Expect(gate.Check(ctx, wallet)).To(Succeed())
			Expect(gate.Record(ctx, &models.Scan{WalletAddress: wallet, TokenAddress: mint})).To(Succeed())
		}
		Expect(testhelpers.CountScans(conn, wallet)).To(Equal(int64(3)))
	})

	It("denies wallets below the minimum", func() {
		balances.balance = 99
		Expect(gate.Check(ctx, wallet)).To(MatchError(scan.ErrGateDenied))
	})

	It("skips the balance lookup for allow-listed wallets", func() {
		Expect(gate.Check(ctx, allowWallet)).To(Succeed())
		Expect(balances.calls).To(BeZero())
	})

	It("wraps lookup failures", func() {
		balances.err = errors.New("rpc down")
		err := gate.Check(ctx, wallet)
		Expect(err).To(MatchError(ContainSubstring("rpc down")))
		Expect(err).NotTo(MatchError(scan.ErrGateDenied))
	})
})
