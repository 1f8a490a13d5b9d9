package textutil

import "testing"

func TestFoldStripsAccentsAndSymbols(t *testing.T) {
	cases := map[string]string{
		"Beyoncé":       "beyonce",
		"Sigur Rós":     "sigur ros",
		"Simon & Garf":  "simon  and  garf",
		"  DJ Shadow  ": "dj shadow",
		"":              "",
	}
	for input, want := range cases {
		if got := Fold(input); got != want {
			t.Errorf("Fold(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeCollapsesPunctuation(t *testing.T) {
	cases := map[string]string{
		"Jay-Z":                  "jay z",
		"  Björk -- Homogenic! ": "bjork homogenic",
		"...":                    "",
		"AC/DC":                  "ac dc",
	}
	for input, want := range cases {
		if got := Normalize(input); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCompactCatalogNumber(t *testing.T) {
	if got := CompactCatalogNumber("Warp CD-92"); got != "WARPCD92" {
		t.Fatalf("unexpected compact catalog number: %q", got)
	}
	if got := CompactCatalogNumber("  "); got != "" {
		t.Fatalf("expected empty compact value, got %q", got)
	}
}

func TestTokenizeDropsStopWords(t *testing.T) {
	got := Tokenize("The Beatles and the Stones")
	if len(got) != 2 || got[0] != "beatles" || got[1] != "stones" {
		t.Fatalf("unexpected tokens: %v", got)
	}
	if got := Tokenize("The The"); len(got) != 2 {
		t.Fatalf("expected all-stop-word names to keep their words, got %v", got)
	}
}

func TestCosineSimilarityNil(t *testing.T) {
	if got := CosineSimilarity(nil, NewFingerprint("hello world")); got != 0 {
		t.Fatalf("expected 0 for nil fingerprint, got %v", got)
	}
}

func TestSimilarity(t *testing.T) {
	if got := Similarity("Björk", "bjork"); got != 1 {
		t.Fatalf("expected folded equality to score 1, got %v", got)
	}
	if got := Similarity("Aphex Twin", "Boards of Canada"); got != 0 {
		t.Fatalf("expected disjoint names to score 0, got %v", got)
	}
	partial := Similarity("Selected Ambient Works 85-92", "Selected Ambient Works Volume II")
	if partial <= 0 || partial >= 1 {
		t.Fatalf("expected partial overlap in (0,1), got %v", partial)
	}
	if got := Similarity("", "anything"); got != 0 {
		t.Fatalf("expected empty input to score 0, got %v", got)
	}
}
