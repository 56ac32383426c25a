package heal

import (
	"context"
	"strings"
	"unicode/utf8"

	"cbrowser/internal/browser"
	"cbrowser/internal/logging"
)

const (
	maxVisibleText    = 20
	maxVisibleTextLen = 50
)

// ContextScript reads URL, title and the text of clickable elements in one
// page query.
const ContextScript = `(() => ({
	url: location.href,
	title: document.title,
	texts: Array.from(document.querySelectorAll('button, a, [role=button]'))
		.map((el) => (el.innerText || el.textContent || '').trim())
}))()`

type rawPageContext struct {
	URL   string   `json:"url"`
	Title string   `json:"title"`
	Texts []string `json:"texts"`
}

// CapturePageContext snapshots the live page. Any failure yields an empty
// context rather than an error.
func CapturePageContext(ctx context.Context, d browser.Driver) PageContext {
	var raw rawPageContext
	if err := d.Evaluate(ctx, ContextScript, &raw); err != nil {
		logging.New("heal").Debug("page context capture failed", "error", err)
		return NewPageContext("", "", nil)
	}
	return NewPageContext(raw.URL, raw.Title, raw.Texts)
}

// NewPageContext builds a PageContext, keeping only short, distinct,
// non-empty texts and at most maxVisibleText of them.
func NewPageContext(url, title string, texts []string) PageContext {
	visible := make([]string, 0, maxVisibleText)
	seen := make(map[string]bool)
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" || utf8.RuneCountInString(t) >= maxVisibleTextLen || seen[t] {
			continue
		}
		seen[t] = true
		visible = append(visible, t)
		if len(visible) == maxVisibleText {
			break
		}
	}
	return PageContext{URL: url, Title: title, VisibleText: visible}
}
