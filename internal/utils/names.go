package utils

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
)

const UnknownCandidate = "Unknown Candidate"

var noiseTokens = map[string]bool{
	"resume":     true,
	"cv":         true,
	"curriculum": true,
	"vitae":      true,
	"final":      true,
	"updated":    true,
	"latest":     true,
	"new":        true,
	"copy":       true,
}

// transliterate spells Han characters out in pinyin, one word per character,
// and leaves everything else untouched.
func transliterate(s string) string {
	var b strings.Builder
	for _, r := range s {
		if !unicode.Is(unicode.Han, r) {
			b.WriteRune(r)
			continue
		}
		if py := pinyin.LazyConvert(string(r), nil); len(py) > 0 {
			b.WriteString(" " + py[0] + " ")
		}
	}
	return b.String()
}

func baseName(filename string) string {
	// browsers on Windows sometimes send the full client path
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func titleCase(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// CandidateNameFromFilename guesses a person's name from an uploaded resume
// file name, e.g. "john_doe-resume-2024.pdf" gives "John Doe".
func CandidateNameFromFilename(filename string) string {
	tokens := strings.FieldsFunc(transliterate(baseName(filename)), isSeparator)

	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if isNumber(tok) || noiseTokens[strings.ToLower(tok)] {
			continue
		}
		words = append(words, titleCase(tok))
	}

	if len(words) == 0 {
		return UnknownCandidate
	}
	return strings.Join(words, " ")
}

const maxSlugLength = 40

// Slugify produces a lowercase ASCII token safe for file names and
// Content-Disposition headers.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(transliterate(s)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.Trim(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return "file"
	}
	return slug
}
