package card_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"path/filepath"

	"auditor/internal/card"
	"auditor/internal/logger"
	"auditor/internal/testhelpers"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeImages struct {
	url     string
	err     error
	prompts []string
}

func (f *fakeImages) GenerateImage(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.url, f.err
}

type fakeDownloader struct {
	data []byte
	err  error
	urls []string
}

func (f *fakeDownloader) GetBytes(_ context.Context, url string) ([]byte, error) {
	f.urls = append(f.urls, url)
	return f.data, f.err
}

func isWhite(img image.Image, x, y int) bool {
	r, g, b, _ := img.At(x, y).RGBA()
	return r>>8 > 240 && g>>8 > 240 && b>>8 > 240
}

func anyWhite(img image.Image, rect image.Rectangle) bool {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if isWhite(img, x, y) {
				return true
			}
		}
	}
	return false
}

var _ = Describe("Card", func() {
	var (
		ctx      context.Context
		images   *fakeImages
		download *fakeDownloader
		fontPath string
		svc      *card.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		images = &fakeImages{url: "https://images.example.com/meme.png"}
		download = &fakeDownloader{data: testhelpers.CreateMockPNG(512, 256)}
		fontPath = testhelpers.WriteTestFont(GinkgoT().TempDir())
		svc = card.NewService(fontPath, images, download, logger.Nop())
	})

	Describe("Generate", func() {
		It("renders a 1200x675 PNG with the ticker, market cap and watermark", func() {
			out, err := svc.Generate(ctx, card.Request{Name: "Degen Coin", Symbol: "$DGN", FDV: "$500,000.00", DegenScore: 9})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Filename).To(Equal("DGN_degen_card.png"))

			img, err := png.Decode(bytes.NewReader(out.PNG))
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(card.Width))
			Expect(img.Bounds().Dy()).To(Equal(card.Height))

			Expect(anyWhite(img, image.Rect(40, 40, 300, 100))).To(BeTrue(), "ticker")
			Expect(anyWhite(img, image.Rect(40, 100, 600, 145))).To(BeTrue(), "market cap")
			Expect(anyWhite(img, image.Rect(card.Width-500, card.Height-70, card.Width-40, card.Height-25))).To(BeTrue(), "watermark")
			Expect(isWhite(img, card.Width/2, card.Height/2)).To(BeFalse())

			Expect(images.prompts).To(HaveLen(1))
			Expect(images.prompts[0]).To(ContainSubstring("tuxedo"))
			Expect(download.urls).To(ConsistOf("https://images.example.com/meme.png"))
		})

		It("fails before calling the image model when the font is missing", func() {
			svc = card.NewService(filepath.Join(GinkgoT().TempDir(), "missing.ttf"), images, download, logger.Nop())

			_, err := svc.Generate(ctx, card.Request{Symbol: "DGN", DegenScore: 5})
			Expect(errors.Is(err, card.ErrFontNotFound)).To(BeTrue())
			Expect(images.prompts).To(BeEmpty())
			Expect(download.urls).To(BeEmpty())
		})

		It("surfaces image generation errors", func() {
			images.err = errors.New("content policy")

			_, err := svc.Generate(ctx, card.Request{Symbol: "DGN", DegenScore: 5})
			Expect(err).To(MatchError(ContainSubstring("content policy")))
			Expect(download.urls).To(BeEmpty())
		})

		It("rejects a download that is not an image", func() {
			download.data = []byte("<html>nope</html>")

			_, err := svc.Generate(ctx, card.Request{Symbol: "DGN", DegenScore: 5})
			Expect(err).To(MatchError(ContainSubstring("failed to decode image")))
		})

		It("falls back to placeholders for an empty symbol", func() {
			out, err := svc.Generate(ctx, card.Request{DegenScore: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Filename).To(Equal("token_degen_card.png"))
			Expect(images.prompts[0]).To(ContainSubstring("Pepehands"))
		})
	})

	DescribeTable("VisualPrompt",
		func(score int, want string) {
			Expect(card.VisualPrompt(score)).To(ContainSubstring(want))
		},
		Entry("zero", 0, "crying"),
		Entry("three", 3, "crying"),
		Entry("four", 4, "hoodie"),
		Entry("seven", 7, "hoodie"),
		Entry("eight", 8, "tuxedo"),
		Entry("ten", 10, "tuxedo"),
	)

	It("wraps the visual prompt in the meme art direction", func() {
		p := card.ImagePrompt(5)
		Expect(p).To(HavePrefix("Create a high-quality, wide digital art piece"))
		Expect(p).To(ContainSubstring(card.VisualPrompt(5)))
		Expect(p).To(HaveSuffix("No text in the image."))
	})

	DescribeTable("NormalizeSymbol",
		func(in, want string) {
			Expect(card.NormalizeSymbol(in)).To(Equal(want))
		},
		Entry("dollar prefix", "$DGN", "DGN"),
		Entry("plain", "BONK", "BONK"),
		Entry("empty", "", "???"),
		Entry("only dollar", " $ ", "???"),
	)

	DescribeTable("Filename",
		func(in, want string) {
			Expect(card.Filename(in)).To(Equal(want))
		},
		Entry("ticker", "DGN", "DGN_degen_card.png"),
		Entry("unsafe characters", "../ETC", "ETC_degen_card.png"),
		Entry("unknown", "???", "token_degen_card.png"),
	)
})
