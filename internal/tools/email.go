package tools

import (
	"errors"
	"net/mail"
	"strings"
)

// ErrEmailUnintelligible is returned when the spoken input cannot be
// reconstructed into a plausible address
var ErrEmailUnintelligible = errors.New("could not reconstruct a valid email address")

// phonetic maps NATO-alphabet (and common ad-hoc) spelling words to letters
var phonetic = map[string]string{
	"alpha": "a", "alfa": "a", "bravo": "b", "charlie": "c", "delta": "d",
	"echo": "e", "foxtrot": "f", "golf": "g", "hotel": "h", "india": "i",
	"juliet": "j", "juliett": "j", "kilo": "k", "lima": "l", "mike": "m",
	"november": "n", "oscar": "o", "papa": "p", "quebec": "q", "romeo": "r",
	"sierra": "s", "tango": "t", "uniform": "u", "victor": "v",
	"whiskey": "w", "xray": "x", "x-ray": "x", "yankee": "y", "zulu": "z",
}

// punctuation maps spoken punctuation words to symbols
var punctuation = map[string]string{
	"at": "@", "dot": ".", "period": ".", "point": ".",
	"dash": "-", "hyphen": "-", "minus": "-",
	"underscore": "_", "plus": "+",
}

var digits = map[string]string{
	"zero": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
}

// NormalizeSpokenEmail reconstructs an email address from a spoken
// spelling. It expands phonetic-alphabet tokens, "X for Y" / "X as in Y"
// patterns, spoken punctuation and digit words, then validates the result
// against the standard address grammar. Low-confidence results are
// reported as ErrEmailUnintelligible rather than guessed.
func NormalizeSpokenEmail(spoken string) (string, error) {
	tokens := tokenize(spoken)
	if len(tokens) == 0 {
		return "", ErrEmailUnintelligible
	}

	var b strings.Builder
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		// "a for apple", "b as in bravo": keep the letter, skip the word
		if len(tok) == 1 && i+2 < len(tokens) && isSpellingConnector(tokens[i+1]) {
			b.WriteString(tok)
			i += 2
			continue
		}
		if i+3 < len(tokens) && isLetter(tok) && tokens[i+1] == "as" && tokens[i+2] == "in" {
			b.WriteString(tok)
			i += 3
			continue
		}

		if v, ok := punctuation[tok]; ok {
			b.WriteString(v)
			continue
		}
		if v, ok := phonetic[tok]; ok {
			b.WriteString(v)
			continue
		}
		if v, ok := digits[tok]; ok {
			b.WriteString(v)
			continue
		}

		// Plain word or letter run: take it literally
		b.WriteString(tok)
	}

	candidate := b.String()
	if err := validateEmail(candidate); err != nil {
		return "", ErrEmailUnintelligible
	}
	return candidate, nil
}

// ValidEmail checks a literal address against the standard grammar
func ValidEmail(addr string) bool {
	return validateEmail(addr) == nil
}

func validateEmail(addr string) error {
	if strings.Count(addr, "@") != 1 {
		return ErrEmailUnintelligible
	}
	parts := strings.SplitN(addr, "@", 2)
	if parts[0] == "" || !strings.Contains(parts[1], ".") {
		return ErrEmailUnintelligible
	}
	if _, err := mail.ParseAddress(addr); err != nil {
		return ErrEmailUnintelligible
	}
	return nil
}

func tokenize(s string) []string {
	s = strings.ToLower(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', ',', ';':
			return true
		}
		return false
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		// Keep literal symbols the transcriber may already have produced
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func isSpellingConnector(tok string) bool {
	return tok == "for" || tok == "like"
}

func isLetter(tok string) bool {
	return len(tok) == 1 && tok[0] >= 'a' && tok[0] <= 'z'
}
