package llm

import "testing"

func TestNormalizeModelName_StripsDateSuffix(t *testing.T) {
	cases := map[string]string{
		"gpt-4o-2024-05-13": "gpt-4o",
		"claude-opus-4-5":   "claude-opus-4-5",
		"gpt-4o":            "gpt-4o",
	}
	for in, want := range cases {
		if got := normalizeModelName(in); got != want {
			t.Fatalf("normalizeModelName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEstimateCost_UnknownModelIsZero(t *testing.T) {
	if got := estimateCost("openai", "totally-made-up-model", 1000, 1000, 0, 0); got != 0 {
		t.Fatalf("estimateCost for unknown model = %v, want 0", got)
	}
}

func TestEstimateCost_BaseTokensOnly(t *testing.T) {
	// gpt-4o-mini: 0.15 prompt, 0.60 completion per 1M tokens.
	got := estimateCost("openai", "gpt-4o-mini", 1_000_000, 1_000_000, 0, 0)
	want := 0.15 + 0.60
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("estimateCost = %v, want %v", got, want)
	}
}

func TestEstimateCost_AnthropicCacheMultipliers(t *testing.T) {
	// claude-haiku-3: prompt rate 0.25 per 1M. 1M cache-read tokens should
	// bill at 10% of that rate; 1M cache-write tokens at 125%.
	readCost := estimateCost("anthropic", "claude-haiku-3", 1_000_000, 0, 1_000_000, 0)
	if diff := readCost - 0.025; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("cache-read cost = %v, want 0.025 (10%% of base rate)", readCost)
	}

	writeCost := estimateCost("anthropic", "claude-haiku-3", 1_000_000, 0, 0, 1_000_000)
	if diff := writeCost - 0.3125; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("cache-write cost = %v, want 0.3125 (125%% of base rate)", writeCost)
	}
}

func TestEstimateCost_OpenAICacheReadHalfRate(t *testing.T) {
	got := estimateCost("openai", "gpt-4o", 1_000_000, 0, 1_000_000, 0)
	want := 2.50 * 0.50
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("openai cache-read cost = %v, want %v (50%% of base rate)", got, want)
	}
}

func TestEstimateCost_GeminiCacheReadQuarterRate(t *testing.T) {
	got := estimateCost("gemini", "gemini-2.5-flash", 1_000_000, 0, 1_000_000, 0)
	want := 0.30 * 0.25
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("gemini cache-read cost = %v, want %v (25%% of base rate)", got, want)
	}
}

func TestReasoningModel_DetectsKnownPrefixes(t *testing.T) {
	for _, m := range []string{"gpt-5", "gpt-5-mini", "o3", "o3-mini", "o4-mini"} {
		if !reasoningModel(m) {
			t.Fatalf("reasoningModel(%q) = false, want true", m)
		}
	}
	for _, m := range []string{"gpt-4o", "gpt-4.1", "claude-opus-4"} {
		if reasoningModel(m) {
			t.Fatalf("reasoningModel(%q) = true, want false", m)
		}
	}
}
