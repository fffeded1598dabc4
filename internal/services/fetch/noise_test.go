package fetch

import "testing"

func TestIsBotLogin(t *testing.T) {
	cases := map[string]bool{
		"dependabot[bot]": true,
		"renovate-bot":     true,
		"alice":            false,
		"bot-alice":        false,
	}
	for login, want := range cases {
		if got := isBotLogin(login); got != want {
			t.Fatalf("isBotLogin(%q) = %v, want %v", login, got, want)
		}
	}
}

func TestIsNoiseComment(t *testing.T) {
	cases := map[string]bool{
		"LGTM":          true,
		"lgtm!":         true,
		"+1":            true,
		":shipit:":      true,
		"Ship it!":      true,
		"   ":           true,
		"":               true,
		"LGTM but fix the typo first": false,
		"looks good to me, nice work": false,
	}
	for body, want := range cases {
		if got := isNoiseComment(body); got != want {
			t.Fatalf("isNoiseComment(%q) = %v, want %v", body, got, want)
		}
	}
}
