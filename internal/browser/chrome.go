package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"cbrowser/internal/logging"
)

// DefaultCallTimeout bounds every individual chromedp call.
const DefaultCallTimeout = 15 * time.Second

// ChromeLauncher starts a local Chrome through chromedp. Each Launch gets its
// own allocator so sessions never share cookies or tabs.
type ChromeLauncher struct {
	Headless     bool
	ExecPath     string
	WindowWidth  int
	WindowHeight int
	CallTimeout  time.Duration
}

// Launch starts a browser and returns a driver bound to its first tab.
func (l ChromeLauncher) Launch(ctx context.Context) (Driver, error) {
	width, height := l.WindowWidth, l.WindowHeight
	if width <= 0 || height <= 0 {
		width, height = 1280, 900
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(width, height),
	)
	if l.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	timeout := l.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	logging.New("browser").Debug("chrome session started", "headless", l.Headless, "exec_path", l.ExecPath)
	return &Chrome{
		ctx:     browserCtx,
		timeout: timeout,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}, nil
}

// Chrome implements Driver on top of a chromedp browser context.
type Chrome struct {
	ctx     context.Context
	timeout time.Duration
	cancel  context.CancelFunc
}

// run executes actions against the tab under the per-call timeout, aborting
// early when the caller's ctx is canceled.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (c *Chrome) SmartClick(ctx context.Context, target string) (ClickResult, error) {
	if looksLikeCSS(target) {
		err := c.run(ctx,
			chromedp.WaitVisible(target, chromedp.ByQuery),
			chromedp.Click(target, chromedp.ByQuery),
		)
		if err != nil {
			return ClickResult{Message: fmt.Sprintf("failed to click %s: %v", target, err)}, nil
		}
		return ClickResult{Success: true, Message: "clicked " + target}, nil
	}

	var res ClickResult
	if err := c.Evaluate(ctx, fmt.Sprintf(smartClickScript, jsonEncode(target)), &res); err != nil {
		return ClickResult{}, fmt.Errorf("click %q: %w", target, err)
	}
	return res, nil
}

func (c *Chrome) Fill(ctx context.Context, target, value string) error {
	var res struct {
		Found   bool   `json:"found"`
		Message string `json:"message"`
	}
	if err := c.Evaluate(ctx, fmt.Sprintf(fillScript, jsonEncode(target), jsonEncode(value)), &res); err != nil {
		return fmt.Errorf("fill %q: %w", target, err)
	}
	if !res.Found {
		return fmt.Errorf("fill %q: %w", target, ErrNoElement)
	}
	return nil
}

var (
	urlAssertPattern   = regexp.MustCompile(`(?i)\burl\s+(?:contains|includes)\s+["']?([^"']+)["']?`)
	titleAssertPattern = regexp.MustCompile(`(?i)\btitle\s+(?:contains|includes|is)\s+["']?([^"']+)["']?`)
	textQuotePattern   = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
)

type pageState struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

const pageStateScript = `(() => ({
	url: location.href,
	title: document.title,
	text: document.body ? document.body.innerText : ""
}))()`

// Assert checks a verification instruction against the live page. Forms:
// `url contains "x"`, `title contains "x"`, otherwise the first quoted text
// (or the instruction tail) must appear in the body text.
func (c *Chrome) Assert(ctx context.Context, instruction string) (AssertResult, error) {
	var st pageState
	if err := c.Evaluate(ctx, pageStateScript, &st); err != nil {
		return AssertResult{}, fmt.Errorf("assert: read page: %w", err)
	}

	if m := urlAssertPattern.FindStringSubmatch(instruction); m != nil {
		want := strings.TrimSpace(m[1])
		if strings.Contains(st.URL, want) {
			return AssertResult{Passed: true, Message: "url contains " + want}, nil
		}
		return AssertResult{Message: fmt.Sprintf("expected url to contain %q, got %q", want, st.URL)}, nil
	}
	if m := titleAssertPattern.FindStringSubmatch(instruction); m != nil {
		want := strings.TrimSpace(m[1])
		if strings.Contains(strings.ToLower(st.Title), strings.ToLower(want)) {
			return AssertResult{Passed: true, Message: "title contains " + want}, nil
		}
		return AssertResult{Message: fmt.Sprintf("expected title to contain %q, got %q", want, st.Title)}, nil
	}

	want := assertText(instruction)
	if want == "" {
		return AssertResult{Message: "nothing to verify in " + instruction}, nil
	}
	if strings.Contains(strings.ToLower(st.Text), strings.ToLower(want)) {
		return AssertResult{Passed: true, Message: "page contains " + want}, nil
	}
	return AssertResult{Message: fmt.Sprintf("expected page to contain %q", want)}, nil
}

func assertText(instruction string) string {
	if m := textQuotePattern.FindStringSubmatch(instruction); m != nil {
		if m[1] != "" {
			return m[1]
		}
		return m[2]
	}
	fields := strings.Fields(instruction)
	if len(fields) < 2 {
		return ""
	}
	tail := strings.Join(fields[1:], " ")
	for _, prefix := range []string{"page contains ", "that ", "the page shows "} {
		tail = strings.TrimPrefix(tail, prefix)
	}
	return tail
}

func (c *Chrome) ScrollBy(ctx context.Context, direction string) error {
	script := `(() => { window.scrollBy(0, window.innerHeight * 0.8); return true; })()`
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "up":
		script = `(() => { window.scrollBy(0, -window.innerHeight * 0.8); return true; })()`
	case "to top", "top":
		script = `(() => { window.scrollTo(0, 0); return true; })()`
	case "to bottom", "bottom":
		script = `(() => { window.scrollTo(0, document.body.scrollHeight); return true; })()`
	}
	var ok bool
	if err := c.Evaluate(ctx, script, &ok); err != nil {
		return fmt.Errorf("scroll %s: %w", direction, err)
	}
	return nil
}

func (c *Chrome) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := c.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// WaitForText polls the body text until it contains text or timeout passes.
func (c *Chrome) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	script := fmt.Sprintf(`(() => !!document.body && document.body.innerText.includes(%s))()`, jsonEncode(text))
	for {
		var found bool
		if err := c.Evaluate(ctx, script, &found); err == nil && found {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for text %q after %s", text, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (c *Chrome) Evaluate(ctx context.Context, script string, out any) error {
	return c.run(ctx, chromedp.Evaluate(script, out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true)
	}))
}

func (c *Chrome) Close() error {
	c.cancel()
	return nil
}

func looksLikeCSS(target string) bool {
	t := strings.TrimSpace(target)
	return strings.HasPrefix(t, "#") || strings.HasPrefix(t, ".") || strings.HasPrefix(t, "[")
}

func jsonEncode(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// smartClickScript picks the best clickable element for a text target: exact
// text or aria-label match first, then partial match.
const smartClickScript = `((target) => {
	const want = target.trim().toLowerCase();
	const nodes = Array.from(document.querySelectorAll(
		'button, a, [role=button], input[type=submit], input[type=button], [aria-label]'));
	const label = (el) => (el.innerText || el.value || el.getAttribute('aria-label') || '').trim();
	let hit = nodes.find((el) => label(el).toLowerCase() === want);
	if (!hit) hit = nodes.find((el) => {
		const l = label(el).toLowerCase();
		return l !== '' && (l.includes(want) || want.includes(l));
	});
	if (!hit) return {success: false, message: 'element not found: ' + target};
	if (hit.disabled) return {success: false, message: 'element is disabled: ' + target};
	hit.scrollIntoView({block: 'center'});
	hit.click();
	return {success: true, message: 'clicked ' + label(hit)};
})(%s)`

// fillScript finds an input by id, name, placeholder, aria-label or label
// text and sets its value, firing input and change events.
const fillScript = `((target, value) => {
	const want = target.trim().toLowerCase();
	const fields = Array.from(document.querySelectorAll('input, textarea, select'));
	const labelFor = (el) => {
		if (!el.id) return '';
		const l = document.querySelector('label[for="' + CSS.escape(el.id) + '"]');
		return l ? l.innerText.trim() : '';
	};
	const keys = (el) => [el.id, el.name, el.placeholder, el.getAttribute('aria-label'), labelFor(el)]
		.filter(Boolean).map((s) => s.trim().toLowerCase());
	let el = fields.find((f) => keys(f).includes(want));
	if (!el) el = fields.find((f) => keys(f).some((k) => k.includes(want) || want.includes(k)));
	if (!el) return {found: false, message: 'no element for ' + target};
	if (el.tagName === 'SELECT') {
		const opt = Array.from(el.options).find((o) =>
			o.value === value || o.text.trim().toLowerCase() === value.toLowerCase());
		el.value = opt ? opt.value : value;
	} else {
		el.focus();
		el.value = value;
		el.dispatchEvent(new Event('input', {bubbles: true}));
	}
	el.dispatchEvent(new Event('change', {bubbles: true}));
	return {found: true, message: 'filled ' + target};
})(%s, %s)`
