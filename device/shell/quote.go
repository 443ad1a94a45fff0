package shell

import (
	"errors"
	"strings"
)

var ErrUnterminatedQuote = errors.New("shell: unterminated quote")

// Quote wraps s in single quotes so a POSIX shell passes it through as one word.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Split breaks a command line into words following POSIX quoting rules
// for single quotes, double quotes and backslash escapes.
func Split(line string) ([]string, error) {
	var words []string
	var word strings.Builder

	inWord := false
	for i := 0; i < len(line); i++ {
		c := line[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n':
			if inWord {
				words = append(words, word.String())
				word.Reset()
				inWord = false
			}

		case c == '\\':
			inWord = true
			if i+1 < len(line) {
				i++
				word.WriteByte(line[i])
			}

		case c == '\'':
			inWord = true
			end := strings.IndexByte(line[i+1:], '\'')
			if end < 0 {
				return nil, ErrUnterminatedQuote
			}
			word.WriteString(line[i+1 : i+1+end])
			i += end + 1

		case c == '"':
			inWord = true
			closed := false
			for i++; i < len(line); i++ {
				if line[i] == '"' {
					closed = true
					break
				}
				if line[i] == '\\' && i+1 < len(line) && strings.IndexByte("\"\\$`", line[i+1]) >= 0 {
					i++
				}
				word.WriteByte(line[i])
			}
			if !closed {
				return nil, ErrUnterminatedQuote
			}

		default:
			inWord = true
			word.WriteByte(c)
		}
	}

	if inWord {
		words = append(words, word.String())
	}

	return words, nil
}
