package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	NotAvailable = "N/A"
	MaxScore     = 10

	filledGlyph = "🟩"
	emptyGlyph  = "⬜"
)

//go:embed report.html.tmpl
var reportTemplate string

var tmpl = template.Must(template.New("report").Parse(reportTemplate))

var usd = message.NewPrinter(language.English)

// Report is everything shown on the token card.
type Report struct {
	Name           string
	Symbol         string
	MarketCap      float64
	MarketCapKnown bool
	Website        string
	Twitter        string
	Immutable      bool
	Score          int
	Verdict        Verdict
}

type view struct {
	Report
	MarketCapText string
	WebsiteURL    string
	TwitterURL    string
	Indicator     string
	Status        string
}

// Render produces the report fragment. Every value is escaped by html/template.
func Render(r Report) (string, error) {
	v := view{
		Report:        r,
		MarketCapText: NotAvailable,
		WebsiteURL:    safeLink(r.Website),
		TwitterURL:    safeLink(r.Twitter),
		Indicator:     Indicator(r.Score),
		Status:        "Mutable",
	}
	if r.MarketCapKnown {
		v.MarketCapText = FormatUSD(r.MarketCap)
	}
	if r.Immutable {
		v.Status = "Immutable / Renounced"
	}
	if v.Verdict.Title == "" {
		v.Verdict.Title = DefaultVerdictTitle
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

// Indicator is always exactly ten glyphs; scores outside 0..10 are clamped.
func Indicator(score int) string {
	filled := min(max(score, 0), MaxScore)
	return strings.Repeat(filledGlyph, filled) + strings.Repeat(emptyGlyph, MaxScore-filled)
}

// FormatUSD renders v as $1,234.56.
func FormatUSD(v float64) string {
	return usd.Sprintf("$%.2f", v)
}

// ErrorFragment is the card shown when the analysis fails server side.
func ErrorFragment(msg string) string {
	return "<div class='report-container card'><p style='color:red;'>Server error: " + template.HTMLEscapeString(msg) + "</p></div>"
}

// only http(s) links become anchors
func safeLink(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == NotAvailable {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return u.String()
}
