package intent

import (
	"regexp"
	"strings"
)

var (
	nonWordPattern    = regexp.MustCompile(`[^0-9a-zа-я_\-\s]+`)
	whitespacePattern = regexp.MustCompile(`\s+`)

	separatorReplacer = strings.NewReplacer(
		"—", "-",
		"–", "-",
		"`", " ",
		`"`, " ",
		"'", " ",
		"«", " ",
		"»", " ",
	)
)

// Normalize produces the canonical token stream consumed by the rule
// matcher: lowercase, ё folded to е, punctuation replaced by spaces,
// whitespace collapsed. No stemming or lemmatization is performed; matching
// downstream is by exact token/phrase equality.
func Normalize(text string) string {
	value := strings.ToLower(strings.TrimSpace(text))
	value = strings.ReplaceAll(value, "ё", "е")

	// Quotes and backticks become separators so quoted identifiers survive
	// as plain tokens.
	value = separatorReplacer.Replace(value)

	value = nonWordPattern.ReplaceAllString(value, " ")
	value = whitespacePattern.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

// foldRaw prepares raw text for the date/time extractor: lowercased with ё
// folded, but with digits, colons and dots left intact so clock times and
// numeric dates remain recognizable.
func foldRaw(text string) string {
	value := strings.ToLower(strings.TrimSpace(text))
	return strings.ReplaceAll(value, "ё", "е")
}
