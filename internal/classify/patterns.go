package classify

import (
	"regexp"
	"strings"
)

// maxCallSignatures bounds the number of call shapes sent per unit so a
// pathological file cannot blow up the oracle payload.
const maxCallSignatures = 32

// Patterns are the structural signals extracted from a bundle. They are
// the only thing that ever crosses the oracle boundary; full source never
// leaves the process.
type Patterns struct {
	Imports           []string `json:"imports"`
	APICallSignatures []string `json:"apiCallSignatures"`
	KeywordHits       []string `json:"keywordHits"`
}

// callShapeRe matches dotted call expressions like client.chat.create(.
var callShapeRe = regexp.MustCompile(`[A-Za-z_$][\w$]*(?:\.[A-Za-z_$][\w$]*)+\s*\(`)

// keywordVocabulary is the fixed vocabulary scanned for keyword hits.
var keywordVocabulary = []string{
	"api", "client", "payment", "charge", "billing", "invoice",
	"database", "query", "storage", "upload", "download", "bucket",
	"token", "completion", "embedding", "prompt", "model",
	"analytics", "track", "email", "send",
}

// ExtractPatterns reduces a bundle to its structural signals.
func ExtractPatterns(b ContextBundle) Patterns {
	p := Patterns{Imports: b.Imports}

	seen := make(map[string]bool)
	for _, m := range callShapeRe.FindAllString(b.Code, -1) {
		sig := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(m), "("))
		if sig == "" || seen[sig] {
			continue
		}
		seen[sig] = true
		p.APICallSignatures = append(p.APICallSignatures, sig)
		if len(p.APICallSignatures) >= maxCallSignatures {
			break
		}
	}

	lower := strings.ToLower(b.Code)
	for _, kw := range keywordVocabulary {
		if strings.Contains(lower, kw) {
			p.KeywordHits = append(p.KeywordHits, kw)
		}
	}
	return p
}
