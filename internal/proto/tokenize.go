package proto

import (
	"fmt"
	"strings"
	"unicode"
)

type token struct {
	text string
	// quoted is set when any part of the token came from a quoted run.
	quoted bool
}

// isKey reports whether the token names an option.
func (t token) isKey() bool {
	return !t.quoted && len(t.text) > 1 && t.text[0] == '-'
}

func tokenize(line string) ([]token, error) {
	var (
		tokens  []token
		cur     strings.Builder
		inToken bool
		quoted  bool
		inQuote bool
		escape  bool
	)

	flush := func() {
		if inToken {
			tokens = append(tokens, token{text: cur.String(), quoted: quoted})
		}
		cur.Reset()
		inToken = false
		quoted = false
	}

	for _, r := range line {
		switch {
		case escape:
			escape = false
			switch r {
			case '"', '\\':
				cur.WriteRune(r)
			case 'n':
				cur.WriteByte('\n')
			case 'r':
				cur.WriteByte('\r')
			case 't':
				cur.WriteByte('\t')
			default:
				cur.WriteByte('\\')
				cur.WriteRune(r)
			}
		case inQuote:
			switch r {
			case '\\':
				escape = true
			case '"':
				inQuote = false
			default:
				cur.WriteRune(r)
			}
		case r == '"':
			inQuote = true
			inToken = true
			quoted = true
		case unicode.IsSpace(r):
			flush()
		default:
			inToken = true
			cur.WriteRune(r)
		}
	}

	if escape {
		return nil, fmt.Errorf("%w: dangling escape", ErrMalformedCommand)
	}
	if inQuote {
		return nil, fmt.Errorf("%w: unbalanced quote", ErrMalformedCommand)
	}
	flush()

	return tokens, nil
}

// Tokenize splits a line into tokens, honoring double quotes.
func Tokenize(line string) ([]string, error) {
	tokens, err := tokenize(line)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.text
	}
	return out, nil
}
