package catalog

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugInvalid   = regexp.MustCompile(`[^A-Za-z0-9\s\-]`)
	slugSeparator = regexp.MustCompile(`[\s_\-]+`)
	nonDigits     = regexp.MustCompile(`\D`)
)

// GenerateSlug builds the capitalized, dash-separated slug used for mesas,
// produtos and empresas. Accents are folded to ASCII. A purely numeric text
// such as "1" or "01" becomes "Mesa-01".
func GenerateSlug(text string) string {
	t := strings.TrimSpace(foldASCII(text))
	if t == "" {
		return ""
	}

	digits := nonDigits.ReplaceAllString(t, "")
	if digits != "" && digits == strings.ReplaceAll(t, " ", "") {
		return "Mesa-" + zeroPad(digits, 2)
	}

	t = slugInvalid.ReplaceAllString(t, "")
	var parts []string
	for _, part := range slugSeparator.Split(t, -1) {
		if part == "" {
			continue
		}
		parts = append(parts, capitalize(part))
	}
	return strings.Join(parts, "-")
}

// UniqueSlug returns base, or base suffixed with -2, -3... until taken
// reports false.
func UniqueSlug(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if !taken(candidate) {
			return candidate
		}
	}
}

func foldASCII(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	var b strings.Builder
	for _, r := range folded {
		if r <= unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func capitalize(word string) string {
	lower := strings.ToLower(word)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func zeroPad(digits string, width int) string {
	if len(digits) >= width {
		return digits
	}
	return strings.Repeat("0", width-len(digits)) + digits
}
