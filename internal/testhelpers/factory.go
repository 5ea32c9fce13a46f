package testhelpers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"auditor/internal/db"
	"auditor/internal/models"

	g "github.com/onsi/gomega"
	"golang.org/x/image/font/gofont/goregular"
	"gorm.io/gorm"
)

// NewTestDB opens a migrated SQLite database inside dir.
func NewTestDB(dir string) *gorm.DB {
	conn, err := db.InitDB(filepath.Join(dir, "scans_test.db"))
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(db.Migrate(conn)).To(g.Succeed())
	return conn
}

// CleanupDB empties the scans table.
func CleanupDB(conn *gorm.DB) {
	err := conn.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Scan{}).Error
	g.Expect(err).NotTo(g.HaveOccurred(), "Failed to clean table: scans")
}

// CreateScan inserts a scan row at the given time.
func CreateScan(conn *gorm.DB, wallet, token string, at time.Time) *models.Scan {
	scan := &models.Scan{
		WalletAddress:    wallet,
		TokenAddress:     token,
		InitialMarketCap: 1,
		Timestamp:        at.UTC(),
	}
	result := gorm.WithResult()
	g.Expect(gorm.G[models.Scan](conn, result).Create(context.Background(), scan)).To(g.Succeed())
	g.Expect(result.RowsAffected).To(g.Equal(int64(1)))
	return scan
}

// CountScans returns how many rows the wallet has.
func CountScans(conn *gorm.DB, wallet string) int64 {
	count, err := gorm.G[models.Scan](conn).Where("wallet_address = ?", wallet).Count(context.Background(), "id")
	g.Expect(err).NotTo(g.HaveOccurred())
	return count
}

// CreateMockPNG renders a solid w x h image as PNG bytes.
func CreateMockPNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill := color.RGBA{R: 40, G: 160, B: 90, A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill)
		}
	}

	buf := new(bytes.Buffer)
	g.Expect(png.Encode(buf, img)).To(g.Succeed())
	return buf.Bytes()
}

// WriteTestFont writes a TrueType font into dir and returns its path.
func WriteTestFont(dir string) string {
	path := filepath.Join(dir, "test-font.ttf")
	g.Expect(os.WriteFile(path, goregular.TTF, 0o600)).To(g.Succeed())
	return path
}
