package notify

import "strings"

// ParseTickers extracts ticker symbols from a free-form reply. Tokens split on
// commas and whitespace, alphanumeric (plus dashes) and at most six characters
// long, uppercased and deduplicated in order of first appearance.
func ParseTickers(body string) []string {
	fields := strings.FieldsFunc(body, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	seen := make(map[string]bool)
	out := []string{}
	for _, f := range fields {
		tok := strings.ToUpper(strings.TrimSpace(f))
		if tok == "" || len(tok) > 6 || !isTickerToken(tok) {
			continue
		}
		if seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

func isTickerToken(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}
