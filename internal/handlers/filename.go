package handlers

import (
	"path"
	"strings"
	"unicode"
)

// SecureFilename turns a client supplied file name into one that is safe to
// use as a local file name and object key. It returns an empty string when
// nothing usable is left.
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			b.WriteRune('_')
		case r > unicode.MaxASCII:
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}

	return strings.TrimLeft(b.String(), "._")
}
