package proto

import (
	"errors"
	"sort"
	"strings"
	"unicode"
)

// ErrMalformedCommand is returned when a line cannot be tokenized.
var ErrMalformedCommand = errors.New("malformed command")

// Command is a single decoded protocol line.
type Command struct {
	Name    string
	Options map[string]string
	// Flags holds option keys that appeared without a value.
	Flags []string
	// Args holds tokens that were neither an option key nor an option value.
	Args []string
}

// Option is a key/value pair used when encoding a line.
type Option struct {
	Key   string
	Value string
}

// Opt is shorthand for building an Option.
func Opt(key, value string) Option {
	return Option{Key: key, Value: value}
}

// Parse decodes a line into a command name and its options.
// An empty line yields a zero Command with a non-nil option map.
func Parse(line string) (Command, error) {
	cmd := Command{Options: make(map[string]string)}

	tokens, err := tokenize(line)
	if err != nil {
		return cmd, err
	}
	if len(tokens) == 0 {
		return cmd, nil
	}

	cmd.Name = tokens[0].text
	for i := 1; i < len(tokens); i++ {
		tok := tokens[i]
		if !tok.isKey() {
			cmd.Args = append(cmd.Args, tok.text)
			continue
		}
		key := tok.text[1:]
		if i+1 >= len(tokens) {
			cmd.Flags = append(cmd.Flags, key)
			break
		}
		i++
		cmd.Options[key] = tokens[i].text
	}

	return cmd, nil
}

// Get returns the value of an option. A flag without a value counts as absent.
func (c Command) Get(key string) (string, bool) {
	v, ok := c.Options[key]
	return v, ok
}

// Has reports whether the option appeared on the line, with or without a value.
func (c Command) Has(key string) bool {
	if _, ok := c.Options[key]; ok {
		return true
	}
	for _, f := range c.Flags {
		if f == key {
			return true
		}
	}
	return false
}

// String renders the command in canonical form with option keys sorted.
func (c Command) String() string {
	keys := make([]string, 0, len(c.Options))
	for k := range c.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	opts := make([]Option, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, Opt(k, c.Options[k]))
	}

	var b strings.Builder
	b.WriteString(Encode(c.Name, opts...))
	for _, a := range c.Args {
		b.WriteByte(' ')
		b.WriteString(ForceQuote(a))
	}
	for _, f := range c.Flags {
		b.WriteString(" -")
		b.WriteString(f)
	}
	return b.String()
}

// Encode renders a line in the command grammar, keeping option order.
func Encode(name string, opts ...Option) string {
	var b strings.Builder
	b.WriteString(Quote(name))
	for _, o := range opts {
		b.WriteString(" -")
		b.WriteString(o.Key)
		b.WriteByte(' ')
		b.WriteString(Quote(o.Value))
	}
	return b.String()
}

// Quote wraps s in double quotes only when it would not survive as a bare token.
func Quote(s string) string {
	if s == "" || strings.HasPrefix(s, "-") || strings.ContainsAny(s, "\"\\") || strings.IndexFunc(s, needsQuote) >= 0 {
		return ForceQuote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsControl(r)
}

// ForceQuote always wraps s in double quotes, escaping as needed.
func ForceQuote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
