package browser

import "testing"

func TestAssertText(t *testing.T) {
	cases := map[string]string{
		`verify "Order placed" appears`:         "Order placed",
		`assert 'Welcome back'`:                 "Welcome back",
		"verify page contains Thank you":        "Thank you",
		"check that the cart is empty":          "the cart is empty",
		"expect the page shows Payment details": "Payment details",
		"verify":                                "",
	}
	for in, want := range cases {
		if got := assertText(in); got != want {
			t.Errorf("assertText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLooksLikeCSS(t *testing.T) {
	for target, want := range map[string]bool{
		"#submit":           true,
		".btn-primary":      true,
		`[data-test="buy"]`: true,
		"  #padded":         true,
		"Submit Order":      false,
		"button.primary":    false,
		"":                  false,
	} {
		if got := looksLikeCSS(target); got != want {
			t.Errorf("looksLikeCSS(%q) = %v, want %v", target, got, want)
		}
	}
}

func TestJSONEncode(t *testing.T) {
	if got := jsonEncode(`say "hi"`); got != `"say \"hi\""` {
		t.Errorf("jsonEncode = %s", got)
	}
}
