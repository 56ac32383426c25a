package heal

import (
	"context"
	"strings"

	"cbrowser/internal/browser"
	"cbrowser/internal/logging"
)

// MaxAlternatives caps the candidates returned by FindAlternatives.
const MaxAlternatives = 10

// Element is one candidate element as reported by ElementsScript.
type Element struct {
	Kind        string `json:"kind"` // button, link, input, aria
	Tag         string `json:"tag"`
	Text        string `json:"text,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Label       string `json:"label,omitempty"`
	Name        string `json:"name,omitempty"`
	AriaLabel   string `json:"aria_label,omitempty"`
}

// ElementsScript collects every element that could stand in for a failed
// target, across the whole document.
const ElementsScript = `(() => {
	const out = [];
	const text = (el) => (el.innerText || el.value || el.textContent || '').trim().slice(0, 200);
	document.querySelectorAll('button, [role=button], input[type=submit], input[type=button]').forEach((el) =>
		out.push({kind: 'button', tag: el.tagName.toLowerCase(), text: text(el)}));
	document.querySelectorAll('a').forEach((el) =>
		out.push({kind: 'link', tag: 'a', text: text(el)}));
	document.querySelectorAll('input, textarea, select').forEach((el) => {
		let label = '';
		if (el.id) {
			const l = document.querySelector('label[for="' + CSS.escape(el.id) + '"]');
			if (l) label = l.innerText.trim();
		}
		out.push({
			kind: 'input',
			tag: el.tagName.toLowerCase(),
			placeholder: el.getAttribute('placeholder') || '',
			label: label,
			name: el.getAttribute('name') || ''
		});
	});
	document.querySelectorAll('[aria-label]').forEach((el) =>
		out.push({kind: 'aria', tag: el.tagName.toLowerCase(), aria_label: (el.getAttribute('aria-label') || '').trim()}));
	return out;
})()`

// FindAlternatives queries the live page for elements whose visible text,
// labels or placeholders overlap target. It never fails: a page query error
// yields an empty list.
func FindAlternatives(ctx context.Context, d browser.Driver, target string) []string {
	if strings.TrimSpace(target) == "" {
		return []string{}
	}
	var elements []Element
	if err := d.Evaluate(ctx, ElementsScript, &elements); err != nil {
		logging.New("heal").Debug("alternative search failed", "target", target, "error", err)
		return []string{}
	}
	return MatchAlternatives(elements, target)
}

// MatchAlternatives formats the elements that overlap target, in discovery
// order (buttons, links, inputs, aria-labeled), deduplicated and capped.
func MatchAlternatives(elements []Element, target string) []string {
	out := make([]string, 0, MaxAlternatives)
	seen := make(map[string]bool)
	add := func(candidate string) {
		if len(out) >= MaxAlternatives || seen[candidate] {
			return
		}
		seen[candidate] = true
		out = append(out, candidate)
	}

	for _, kind := range []string{"button", "link", "input", "aria"} {
		for _, el := range elements {
			if el.Kind != kind {
				continue
			}
			switch kind {
			case "button", "link":
				if overlaps(el.Text, target) {
					add(kind + `: "` + strings.TrimSpace(el.Text) + `"`)
				}
			case "input":
				if overlaps(el.Placeholder, target) {
					add(`placeholder: "` + strings.TrimSpace(el.Placeholder) + `"`)
				}
				if overlaps(el.Label, target) {
					add(`label: "` + strings.TrimSpace(el.Label) + `"`)
				}
				if overlaps(el.Name, target) {
					add(`input[name]: "` + strings.TrimSpace(el.Name) + `"`)
				}
			case "aria":
				if overlaps(el.AriaLabel, target) {
					add("aria:" + el.Tag + `/"` + strings.TrimSpace(el.AriaLabel) + `"`)
				}
			}
		}
	}
	return out
}

// overlaps is the matching heuristic: case-insensitive containment in either
// direction. Both strings must be non-empty.
func overlaps(candidate, target string) bool {
	c := strings.ToLower(strings.TrimSpace(candidate))
	t := strings.ToLower(strings.TrimSpace(target))
	if c == "" || t == "" {
		return false
	}
	return strings.Contains(c, t) || strings.Contains(t, c)
}

// CandidateText extracts the quoted text from a formatted alternative such
// as `button: "Submit Order"`. Unquoted input is returned trimmed.
func CandidateText(alternative string) string {
	first := strings.Index(alternative, `"`)
	last := strings.LastIndex(alternative, `"`)
	if first < 0 || last <= first {
		return strings.TrimSpace(alternative)
	}
	return alternative[first+1 : last]
}
