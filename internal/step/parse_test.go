package step

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Step
	}{
		{"go to https://shop.test", Step{Action: Navigate, Target: "https://shop.test"}},
		{"Navigate to \"https://x.test/a\"", Step{Action: Navigate, Target: "https://x.test/a"}},
		{`click "Submit"`, Step{Action: Click, Target: "Submit"}},
		{"click on the Sign in link", Step{Action: Click, Target: "Sign in link"}},
		{"click onboarding", Step{Action: Click, Target: "onboarding"}},
		{`type "a@b.c" in Email`, Step{Action: Fill, Target: "Email", Value: "a@b.c"}},
		{`fill Password with "hunter2"`, Step{Action: Fill, Target: "Password", Value: "hunter2"}},
		{`select "Germany" from Country`, Step{Action: Select, Target: "Country", Value: "Germany"}},
		{`type "sign in now" in Email`, Step{Action: Fill, Target: "Email", Value: "sign in now"}},
		{`enter 'log in' into the Notes`, Step{Action: Fill, Target: "Notes", Value: "log in"}},
		{`select "Made in Italy" from Origin`, Step{Action: Select, Target: "Origin", Value: "Made in Italy"}},
		{`fill "Pay with card" with yes`, Step{Action: Fill, Target: "Pay with card", Value: "yes"}},
		{`type hello in Search`, Step{Action: Fill, Target: "Search", Value: "hello"}},
		{"scroll", Step{Action: Scroll, Target: "down"}},
		{"scroll up", Step{Action: Scroll, Target: "up"}},
		{"wait 2 seconds", Step{Action: Wait, Value: "2"}},
		{"wait 1.5s", Step{Action: Wait, Value: "1.5"}},
		{`wait for "Welcome"`, Step{Action: Wait, Target: "Welcome"}},
		{`verify page contains "Thanks"`, Step{Action: Assert, Target: "Thanks"}},
		{`verify url contains "/checkout/confirm"`, Step{Action: Assert, Target: "/checkout/confirm"}},
		{"check the cart is empty", Step{Action: Assert, Target: "the cart is empty"}},
		{"take a screenshot", Step{Action: Screenshot}},
		{"dance wildly", Step{Action: Unknown, Target: "dance wildly"}},
		{"# click Submit", Step{Action: Unknown, Target: "# click Submit"}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got := Parse("  " + tc.in + " ")
			tc.want.Instruction = tc.in
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tc.in, diff)
			}
		})
	}
}

func TestRender_RoundTrip(t *testing.T) {
	steps := []Step{
		{Action: Navigate, Target: "https://x.test"},
		{Action: Click, Target: "Submit Order"},
		{Action: Fill, Target: "Email", Value: "a@b.c"},
		{Action: Select, Target: "Country", Value: "Germany"},
		{Action: Fill, Target: "Email", Value: "sign in now"},
		{Action: Select, Target: "Country", Value: "Made in Italy"},
		{Action: Select, Target: "Ship from", Value: "Sold from stock"},
		{Action: Scroll, Target: "up"},
		{Action: Wait, Value: "5"},
		{Action: Wait, Target: "Welcome"},
		{Action: Assert, Target: "Thanks"},
		{Action: Screenshot},
	}
	for _, s := range steps {
		instr := Render(s.Action, s.Target, s.Value)
		got := Parse(instr)
		s.Instruction = instr
		if diff := cmp.Diff(s, got); diff != "" {
			t.Errorf("round trip of %q mismatch (-want +got):\n%s", instr, diff)
		}
	}
}

func TestWithTarget(t *testing.T) {
	if got := WithTarget(Parse(`click "Submit"`), "Submit Order"); got != "click Submit Order" {
		t.Errorf("click: got %q", got)
	}
	if got := WithTarget(Parse(`type "x" in Email`), "E-mail address"); got != `type "x" in E-mail address` {
		t.Errorf("fill: got %q", got)
	}
	if got := WithTarget(Parse("frobnicate the widget"), "Widget"); got != "click Widget" {
		t.Errorf("unknown: got %q", got)
	}
}

func TestTestCase_CloneIsIndependent(t *testing.T) {
	orig := TestCase{Name: "t", Steps: []Step{Parse("click A"), Parse("click B")}}
	c := orig.Clone()
	c.Steps[0] = Parse("click Z")
	if orig.Steps[0].Target != "A" {
		t.Errorf("clone shares storage with original: %+v", orig.Steps[0])
	}
	if diff := cmp.Diff([]string{"click A", "click B"}, orig.Instructions()); diff != "" {
		t.Errorf("Instructions mismatch:\n%s", diff)
	}
}
