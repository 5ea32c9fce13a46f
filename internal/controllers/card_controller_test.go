package controllers_test

import (
	"bytes"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"

	"auditor/internal/card"
	"auditor/internal/config"
	"auditor/internal/testhelpers"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func expectImage(promptFragment string) {
	testhelpers.New(llmHost).
		Post("/v1/images/generations").
		BodyContains(promptFragment).
		BodyContains(`"1792x1024"`).
		Reply(200).
		Header("Content-Type", "application/json").
		BodyString(`{"created": 1700000000, "data": [{"url": "https://images.example.com/meme.png"}]}`)

	testhelpers.New("https://images.example.com").
		Get("/meme.png").
		Reply(200).
		Header("Content-Type", "image/png").
		Body(testhelpers.CreateMockPNG(1792, 1024))
}

var _ = Describe("CardController", func() {
	var (
		cfg    *config.Config
		router *gin.Engine
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		testhelpers.Activate()
		DeferCleanup(testhelpers.Deactivate)

		dir := GinkgoT().TempDir()
		cfg = testConfig(dir)
		router = newRouter(cfg, testhelpers.NewTestDB(dir))
	})

	Describe("POST /generate_ai_card", func() {
		It("returns the card as a PNG attachment", func() {
			expectImage("tuxedo")

			w := postJSON(router, "/generate_ai_card", gin.H{"name": "Degen Coin", "symbol": "$DGN", "fdv": "$750,000.25", "degen_score": 10})
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(testhelpers.IsDone()).To(BeTrue(), "pending: %v", testhelpers.Pending())

			Expect(w.Header().Get("Content-Type")).To(Equal("image/png"))
			Expect(w.Header().Get("Content-Disposition")).To(Equal(`attachment; filename="DGN_degen_card.png"`))

			img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(card.Width))
			Expect(img.Bounds().Dy()).To(Equal(card.Height))
		})

		It("accepts a numeric fdv and a string score", func() {
			expectImage("hoodie")

			w := postJSON(router, "/generate_ai_card", gin.H{"symbol": "BONK", "fdv": 1234.5, "degen_score": "5"})
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Disposition")).To(ContainSubstring("BONK_degen_card.png"))
		})

		It("defaults a missing score to the saddest card", func() {
			expectImage("Pepehands")

			w := postJSON(router, "/generate_ai_card", gin.H{"symbol": "RUG"})
			Expect(w.Code).To(Equal(http.StatusOK))
		})

		It("reports a missing font without calling the image model", func() {
			cfg.FontPath = filepath.Join(GinkgoT().TempDir(), "PressStart2P-Regular.ttf")
			router = newRouter(cfg, testhelpers.NewTestDB(GinkgoT().TempDir()))

			w := postJSON(router, "/generate_ai_card", gin.H{"symbol": "DGN", "fdv": "$1.00", "degen_score": 3})
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(w.Body.String()).To(MatchJSON(`{"error":"Font file not found on server."}`))
			Expect(testhelpers.RequestCount("llm.example.com")).To(BeZero())
		})

		It("reports image failures generically", func() {
			testhelpers.New(llmHost).
				Post("/v1/images/generations").
				Reply(400).
				Header("Content-Type", "application/json").
				BodyString(`{"error":{"message":"content policy violation","type":"invalid_request_error"}}`)

			w := postJSON(router, "/generate_ai_card", gin.H{"symbol": "DGN", "degen_score": 9})
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(w.Body.String()).To(MatchJSON(`{"error":"Failed to create and process the AI card."}`))
		})

		DescribeTable("rejects bad scores",
			func(body string) {
				req := httptest.NewRequest(http.MethodPost, "/generate_ai_card", strings.NewReader(body))
				req.Header.Set("Content-Type", "application/json")
				w := httptest.NewRecorder()
				router.ServeHTTP(w, req)

				Expect(w.Code).To(Equal(http.StatusBadRequest))
				Expect(testhelpers.RequestCount("llm.example.com")).To(BeZero())
			},
			Entry("word", `{"symbol":"DGN","degen_score":"ten"}`),
			Entry("fraction", `{"symbol":"DGN","degen_score":7.5}`),
			Entry("object", `{"symbol":"DGN","degen_score":{}}`),
			Entry("not json", `degen_score=3`),
		)
	})
})
