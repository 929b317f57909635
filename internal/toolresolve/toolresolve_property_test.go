package toolresolve

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// genSemverList draws a short list of plausible major.minor.patch strings.
func genSemverList(t *rapid.T) []string {
	n := rapid.IntRange(1, 8).Draw(t, "n")
	out := make([]string, n)
	for i := range out {
		major := rapid.IntRange(0, 5).Draw(t, "major")
		minor := rapid.IntRange(0, 20).Draw(t, "minor")
		patch := rapid.IntRange(0, 20).Draw(t, "patch")
		out[i] = fmt.Sprintf("%d.%d.%d", major, minor, patch)
	}
	return out
}

// TestNewestStableIsPure checks invariant 6: resolving "latest" against the
// same candidate list always yields the same version, with no dependence on
// call order or repeated invocation.
func TestNewestStableIsPure(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		versions := genSemverList(t)

		first, err1 := newestStable(versions)
		second, err2 := newestStable(versions)

		if (err1 == nil) != (err2 == nil) {
			t.Fatalf("non-deterministic error-ness: %v vs %v", err1, err2)
		}
		if first != second {
			t.Fatalf("non-deterministic resolution for %v: %q vs %q", versions, first, second)
		}
	})
}

// TestHighestWithPrefixIsPure checks the same purity property for
// prefix-constrained resolution (e.g. "node 20" style requests).
func TestHighestWithPrefixIsPure(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		versions := genSemverList(t)
		prefix := rapid.SampledFrom([]string{"0", "1", "2", "3", "4", "5"}).Draw(t, "prefix")

		first, err1 := highestWithPrefix(versions, prefix)
		second, err2 := highestWithPrefix(versions, prefix)

		if (err1 == nil) != (err2 == nil) {
			t.Fatalf("non-deterministic error-ness for prefix %q: %v vs %v", prefix, err1, err2)
		}
		if first != second {
			t.Fatalf("non-deterministic resolution for prefix %q over %v: %q vs %q", prefix, versions, first, second)
		}
	})
}
