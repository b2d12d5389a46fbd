// ABOUTME: Canonical fingerprint derivation for translation requests.
// ABOUTME: Equal fingerprints mean "the same unit of work" for dedup purposes.

package pending

import (
	"sort"
	"strings"
)

// Fingerprint derives the canonical identity of a translation request from
// its semantic inputs. The text is normalized (trimmed, lowercased) and the
// provider list is sorted, so provider order never affects the result. The
// function is pure: identical inputs always yield identical fingerprints.
func Fingerprint(text, sourceLang, targetLang string, providers []string) string {
	sorted := make([]string, len(providers))
	copy(sorted, providers)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString(sourceLang)
	b.WriteByte('|')
	b.WriteString(targetLang)
	b.WriteByte('|')
	b.WriteString(strings.Join(sorted, ","))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(strings.TrimSpace(text)))
	return b.String()
}
