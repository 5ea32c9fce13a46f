package report

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const DefaultVerdictTitle = "Final Verdict"

var (
	codeFence  = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
	whitespace = regexp.MustCompile(`\s+`)
)

// Verdict is the model's answer reduced to plain text.
type Verdict struct {
	Title string
	Body  string
}

// ParseVerdict keeps the heading and the text of the model's HTML answer. The
// model's own markup never reaches the page.
func ParseVerdict(raw string) Verdict {
	raw = strings.TrimSpace(codeFence.ReplaceAllString(raw, ""))
	v := Verdict{Title: DefaultVerdictTitle}
	if raw == "" {
		return v
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		v.Body = collapse(raw)
		return v
	}

	doc.Find("script, style").Remove()

	heading := doc.Find("h1, h2, h3, h4").First()
	if heading.Length() > 0 {
		if title := collapse(heading.Text()); title != "" {
			v.Title = title
		}
		heading.Remove()
	}

	v.Body = collapse(doc.Find("body").Text())
	return v
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
