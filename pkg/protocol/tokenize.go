package protocol

import "strings"

// Tokenize splits a command line into arguments. Whitespace separates
// tokens, a double-quoted run is one token with the quotes removed, and
// everything after "//" outside quotes is ignored.
func Tokenize(text string) []string {
	var (
		args []string
		b    strings.Builder
	)
	i := 0
	for i < len(text) {
		for i < len(text) && text[i] <= ' ' {
			i++
		}
		if i >= len(text) {
			break
		}
		if strings.HasPrefix(text[i:], "//") {
			break
		}

		if text[i] == '"' {
			i++
			start := i
			for i < len(text) && text[i] != '"' {
				i++
			}
			args = append(args, text[start:i])
			if i < len(text) {
				i++
			}
			continue
		}

		b.Reset()
		for i < len(text) && text[i] > ' ' && text[i] != '"' {
			if strings.HasPrefix(text[i:], "//") {
				break
			}
			b.WriteByte(text[i])
			i++
		}
		args = append(args, b.String())
	}
	return args
}

// Quote wraps s in double quotes for use as a single Tokenize argument.
// Embedded quotes cannot be represented and are dropped.
func Quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, "") + `"`
}
