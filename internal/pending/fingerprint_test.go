// ABOUTME: Tests for fingerprint derivation.
// ABOUTME: Validates normalization, determinism, and provider-order independence.

package pending

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_ProviderOrderIndependent(t *testing.T) {
	a := Fingerprint("Hello", "en", "zh", []string{"deepl", "openai"})
	b := Fingerprint("Hello", "en", "zh", []string{"openai", "deepl"})
	assert.Equal(t, a, b, "provider order must not affect the fingerprint")
}

func TestFingerprint_NormalizesText(t *testing.T) {
	a := Fingerprint("  Hello World  ", "en", "zh", []string{"openai"})
	b := Fingerprint("hello world", "en", "zh", []string{"openai"})
	assert.Equal(t, a, b, "trim and lowercase should collapse to the same work")
}

func TestFingerprint_Deterministic(t *testing.T) {
	providers := []string{"b", "a", "c"}
	first := Fingerprint("text", "en", "de", providers)
	second := Fingerprint("text", "en", "de", providers)
	assert.Equal(t, first, second)

	// The input slice must not be reordered by the call.
	assert.Equal(t, []string{"b", "a", "c"}, providers)
}

func TestFingerprint_DistinguishesInputs(t *testing.T) {
	base := Fingerprint("hello", "en", "zh", []string{"openai"})

	assert.NotEqual(t, base, Fingerprint("goodbye", "en", "zh", []string{"openai"}))
	assert.NotEqual(t, base, Fingerprint("hello", "en", "ja", []string{"openai"}))
	assert.NotEqual(t, base, Fingerprint("hello", "de", "zh", []string{"openai"}))
	assert.NotEqual(t, base, Fingerprint("hello", "en", "zh", []string{"deepl"}))
}
