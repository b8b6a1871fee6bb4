package diag

import (
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"
)

// Suggest implements the "did you mean" notes of spec.md §7 and §4.9 ("info:
// notes ... suggesting how to qualify an ambiguous target") for undefined
// variable/target/module lookups. It normalizes multi-word dotted names via
// Porter2 stemming (grounded on the teacher's internal/semantic.Stemmer)
// before scoring candidates by Jaro-Winkler similarity (grounded on the
// teacher's internal/semantic.FuzzyMatcher), so "config.x.optoins" still
// suggests "config.x.options" despite the transposed letters, and
// "cxx.poption" still suggests "cxx.poptions" despite the missing suffix.
const suggestThreshold = 0.80

// Suggest returns the best candidate in candidates that is similar enough
// to want, or "" if none clears suggestThreshold.
func Suggest(want string, candidates []string) string {
	best := ""
	bestScore := 0.0
	normWant := normalize(want)
	for _, c := range candidates {
		if c == want {
			continue
		}
		score, err := edlib.StringsSimilarity(normWant, normalize(c), edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if float64(score) > bestScore {
			bestScore = float64(score)
			best = c
		}
	}
	if bestScore < suggestThreshold {
		return ""
	}
	return best
}

// SuggestNote formats Suggest's result as the info: note spec.md §7
// describes, or "" if there is no good-enough candidate.
func SuggestNote(kind, want string, candidates []string) string {
	if s := Suggest(want, candidates); s != "" {
		return "did you mean " + kind + " \"" + s + "\"?"
	}
	return ""
}

// normalize stems each dot-separated component independently so a
// mismatch confined to one component (a typo in the leaf name) doesn't
// drown in the unchanged prefix when scoring similarity.
func normalize(s string) string {
	parts := strings.Split(s, ".")
	for i, p := range parts {
		if len(p) >= 3 {
			parts[i] = porter2.Stem(p)
		}
	}
	return strings.Join(parts, ".")
}
