package card

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"regexp"
	"strings"

	"auditor/internal/logger"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	_ "golang.org/x/image/webp"
)

const (
	Width  = 1200
	Height = 675

	tickerSize    = 55
	detailsSize   = 40
	watermarkSize = 25

	margin        = 40
	shadowOffset  = 2
	watermarkText = "Scanned by Retarded Auditor"
)

var (
	ErrFontNotFound = errors.New("font file not found")

	unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
)

// ImageGenerator returns the URL of a generated image for prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

type Downloader interface {
	GetBytes(ctx context.Context, url string) ([]byte, error)
}

type Request struct {
	Name       string
	Symbol     string
	FDV        string
	DegenScore int
}

type Card struct {
	PNG      []byte
	Filename string
}

type Service struct {
	fontPath string
	images   ImageGenerator
	download Downloader
	lggr     logger.Logger
}

func NewService(fontPath string, images ImageGenerator, download Downloader, lggr logger.Logger) *Service {
	return &Service{fontPath: fontPath, images: images, download: download, lggr: lggr.Named("card")}
}

// Generate renders the meme card. The font is loaded before anything else so
// a missing font never costs an image generation.
func (s *Service) Generate(ctx context.Context, req Request) (*Card, error) {
	faces, err := loadFaces(s.fontPath)
	if err != nil {
		return nil, err
	}

	symbol := NormalizeSymbol(req.Symbol)
	lggr := s.lggr.With("name", req.Name, "symbol", symbol, "score", req.DegenScore)

	lggr.Info("generating base meme image")
	url, err := s.images.GenerateImage(ctx, ImagePrompt(req.DegenScore))
	if err != nil {
		return nil, fmt.Errorf("failed to generate image: %w", err)
	}

	lggr.Debugw("downloading generated image", "url", url)
	raw, err := s.download.GetBytes(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}

	base, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	fdv := strings.TrimSpace(req.FDV)
	if fdv == "" {
		fdv = "N/A"
	}

	dc := compose(base, faces, "$"+symbol, "MC: "+fdv)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode card: %w", err)
	}

	lggr.Infow("card ready", "bytes", buf.Len())
	return &Card{PNG: buf.Bytes(), Filename: Filename(symbol)}, nil
}

type faces struct {
	ticker, details, watermark font.Face
}

func loadFaces(path string) (*faces, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFontNotFound, err)
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFontNotFound, err)
	}

	face := func(size float64) font.Face {
		return truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull})
	}
	return &faces{ticker: face(tickerSize), details: face(detailsSize), watermark: face(watermarkSize)}, nil
}

func compose(base image.Image, f *faces, ticker, mc string) *gg.Context {
	resized := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.CatmullRom.Scale(resized, resized.Bounds(), base, base.Bounds(), draw.Src, nil)

	dc := gg.NewContextForImage(resized)

	dc.SetFontFace(f.ticker)
	shadowed(dc, ticker, margin, margin)

	dc.SetFontFace(f.details)
	shadowed(dc, mc, margin, 100)

	dc.SetFontFace(f.watermark)
	w, h := dc.MeasureString(watermarkText)
	shadowed(dc, watermarkText, float64(Width)-w-margin, float64(Height)-h-30)

	return dc
}

// shadowed draws s with its top-left corner at x, y over a black offset copy.
func shadowed(dc *gg.Context, s string, x, y float64) {
	dc.SetColor(color.Black)
	dc.DrawStringAnchored(s, x+shadowOffset, y+shadowOffset, 0, 1)
	dc.SetColor(color.White)
	dc.DrawStringAnchored(s, x, y, 0, 1)
}

func NormalizeSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ReplaceAll(symbol, "$", ""))
	if symbol == "" {
		return "???"
	}
	return symbol
}

func Filename(symbol string) string {
	name := strings.Trim(unsafeFilename.ReplaceAllString(symbol, "_"), "_")
	if name == "" {
		name = "token"
	}
	return name + "_degen_card.png"
}

func VisualPrompt(score int) string {
	switch {
	case score <= 3:
		return "A sad, crying Pepe the Frog (Pepehands) looking at a downward crashing red crypto chart on his computer in a dark, messy room."
	case score <= 7:
		return "A Pepe the Frog in a hoodie, looking thoughtfully at a stable crypto chart on his computer."
	default:
		return "A very happy, rich Pepe the Frog wearing a tuxedo and pixelated 'Thug Life' sunglasses, with a green sports car on the moon."
	}
}

func ImagePrompt(score int) string {
	return fmt.Sprintf("Create a high-quality, wide digital art piece in the style of a crypto meme. The main scene must be: '%s'. The image should be clean, vibrant, and have space for text to be added later. No text in the image.",
		VisualPrompt(score))
}
