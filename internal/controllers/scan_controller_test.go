package controllers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"auditor/internal/config"
	"auditor/internal/models"
	"auditor/internal/testhelpers"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func decodeReport(w *httptest.ResponseRecorder) *goquery.Document {
	var body struct {
		Report string `json:"report"`
	}
	Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body.Report))
	Expect(err).NotTo(HaveOccurred())
	return doc
}

var _ = Describe("ScanController", func() {
	var (
		dbConn *gorm.DB
		cfg    *config.Config
		router *gin.Engine
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		testhelpers.Activate()
		DeferCleanup(testhelpers.Deactivate)

		dir := GinkgoT().TempDir()
		dbConn = testhelpers.NewTestDB(dir)
		testhelpers.CleanupDB(dbConn)

		cfg = testConfig(dir)
		router = newRouter(cfg, dbConn)
	})

	Describe("POST /analyze", func() {
		It("returns the rendered report and records the scan", func() {
			expectUpstreams()

			w := postJSON(router, "/analyze", gin.H{"token_address": "  " + mint + " ", "user_wallet": wallet})
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(testhelpers.IsDone()).To(BeTrue(), "pending: %v", testhelpers.Pending())

			doc := decodeReport(w)
			card := doc.Find(".report-container")
			Expect(card.AttrOr("data-degen-score", "")).To(Equal("10"))
			Expect(card.Find("h2").Text()).To(Equal("Token Report: Degen Coin ($DGN)"))
			Expect(card.Text()).To(ContainSubstring("$750,000.25"))
			Expect(card.Find(".verdict h3").Text()).To(Equal("Final Verdict"))
			Expect(card.Find(".verdict p").Text()).To(Equal("Lambo incoming."))
			Expect(card.Find(".verdict b").Length()).To(BeZero())

			scans, err := gorm.G[models.Scan](dbConn).Where("wallet_address = ?", wallet).Find(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(scans).To(HaveLen(1))
			Expect(scans[0].TokenAddress).To(Equal(mint))
			Expect(scans[0].InitialMarketCap).To(BeNumerically("~", 750000.25, 0.001))
		})

		It("rejects the third scan inside the window", func() {
			testhelpers.CreateScan(dbConn, wallet, mint, time.Now().Add(-time.Hour))
			testhelpers.CreateScan(dbConn, wallet, mint, time.Now().Add(-2*time.Hour))

			w := postJSON(router, "/analyze", gin.H{"token_address": mint, "user_wallet": wallet})
			Expect(w.Code).To(Equal(http.StatusTooManyRequests))
			Expect(w.Body.String()).To(MatchJSON(`{"error":"Scan limit reached"}`))
			Expect(testhelpers.RequestCount("rpc.helius.test")).To(BeZero())
			Expect(testhelpers.CountScans(dbConn, wallet)).To(Equal(int64(2)))
		})

		It("allows the third scan once an old one leaves the window", func() {
			testhelpers.CreateScan(dbConn, wallet, mint, time.Now().Add(-time.Hour))
			testhelpers.CreateScan(dbConn, wallet, mint, time.Now().Add(-25*time.Hour))
			expectUpstreams()

			w := postJSON(router, "/analyze", gin.H{"token_address": mint, "user_wallet": wallet})
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(testhelpers.CountScans(dbConn, wallet)).To(Equal(int64(3)))
		})

		It("never limits an allow-listed wallet", func() {
			for i := 0; i < 3; i++ {
				expectUpstreams()
				w := postJSON(router, "/analyze", gin.H{"token_address": mint, "user_wallet": allowWallet})
				Expect(w.Code).To(Equal(http.StatusOK))
			}
			Expect(testhelpers.CountScans(dbConn, allowWallet)).To(Equal(int64(3)))
		})

		It("still reports when every market cap source fails", func() {
			testhelpers.New(heliusRPC).
				Post("/?api-key=helius-test").
				Reply(200).
				BodyString(testhelpers.MustFixture("helius_asset_bare.json"))
			testhelpers.New(ipfsGateway).Get("/ipfs/QmBareCoinMetadata").Reply(404)
			testhelpers.New(moralisAPI).Get("/token/mainnet/" + mint + "/metadata").Reply(404).BodyString(`{"message":"not found"}`)
			testhelpers.New(heliusAPI).Get("/v0/tokens/" + mint + "/price?api-key=helius-test").Reply(404)
			testhelpers.New(birdeyeAPI).Get("/public/price?address=" + mint).Reply(200).BodyString(`{"success":true,"data":{"value":0}}`)
			testhelpers.New(llmHost).
				Post("/v1/chat/completions").
				BodyContains(`A true mystery`).
				Reply(200).
				Header("Content-Type", "application/json").
				BodyString(chatCompletion("<h3>Final Verdict</h3><p>Who knows.</p>"))

			w := postJSON(router, "/analyze", gin.H{"token_address": mint, "user_wallet": wallet})
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(testhelpers.IsDone()).To(BeTrue(), "pending: %v", testhelpers.Pending())

			doc := decodeReport(w)
			Expect(doc.Find(".report-container").AttrOr("data-degen-score", "")).To(Equal("0"))

			scans, err := gorm.G[models.Scan](dbConn).Where("wallet_address = ?", wallet).Find(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(scans).To(HaveLen(1))
			Expect(scans[0].InitialMarketCap).To(BeZero())
		})

		It("renders a server error card when Helius has no data", func() {
			testhelpers.New(heliusRPC).
				Post("/?api-key=helius-test").
				Reply(200).
				BodyString(`{"jsonrpc":"2.0","id":"auditor","result":null}`)

			w := postJSON(router, "/analyze", gin.H{"token_address": mint, "user_wallet": wallet})
			Expect(w.Code).To(Equal(http.StatusInternalServerError))

			doc := decodeReport(w)
			Expect(doc.Find(".report-container p").Text()).To(Equal("Server error: no Helius data"))
			Expect(testhelpers.CountScans(dbConn, wallet)).To(BeZero())
		})

		It("does not record the scan when the verdict fails", func() {
			testhelpers.New(heliusRPC).Post("/?api-key=helius-test").Reply(200).BodyString(testhelpers.MustFixture("helius_asset.json"))
			testhelpers.New(ipfsGateway).Get("/ipfs/QmDegenCoinMetadata").ReplyError(errors.New("gateway down"))
			testhelpers.New(moralisAPI).Get("/token/mainnet/" + mint + "/metadata").Reply(200).BodyString(testhelpers.MustFixture("moralis_metadata.json"))
			testhelpers.New(llmHost).
				Post("/v1/chat/completions").
				Reply(400).
				Header("Content-Type", "application/json").
				BodyString(`{"error":{"message":"bad request","type":"invalid_request_error"}}`)

			w := postJSON(router, "/analyze", gin.H{"token_address": mint, "user_wallet": wallet})
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(decodeReport(w).Find(".report-container").Text()).To(ContainSubstring("Server error"))
			Expect(testhelpers.CountScans(dbConn, wallet)).To(BeZero())
		})

		DescribeTable("rejects malformed bodies",
			func(body string) {
				req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
				req.Header.Set("Content-Type", "application/json")
				w := httptest.NewRecorder()
				router.ServeHTTP(w, req)

				Expect(w.Code).To(Equal(http.StatusBadRequest))
				Expect(w.Body.String()).To(ContainSubstring(`"error"`))
				Expect(testhelpers.RequestCount("rpc.helius.test")).To(BeZero())
			},
			Entry("not json", `token=abc`),
			Entry("missing wallet", `{"token_address":"`+mint+`"}`),
			Entry("invalid token", `{"token_address":"not-a-mint","user_wallet":"`+wallet+`"}`),
			Entry("invalid wallet", `{"token_address":"`+mint+`","user_wallet":"0xdeadbeef"}`),
		)
	})

	Describe("GET /health", func() {
		It("reports UP", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(MatchJSON(`{"status":"UP"}`))
		})
	})

	Describe("GET /", func() {
		It("serves the front end and its assets", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).To(HavePrefix("text/html"))
			Expect(w.Body.String()).To(ContainSubstring(`id="report-content"`))

			w = httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/script.js", nil))
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring("/generate_ai_card"))
		})
	})
})
