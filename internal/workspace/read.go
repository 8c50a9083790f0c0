package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// Reader loads the text content of a file.
type Reader func(path string) (string, error)

// DecodeError is returned when a file is not valid UTF-8 text.
type DecodeError struct {
	Path string
}

func (e *DecodeError) Error() string {
	return "file " + e.Path + " is not valid UTF-8 text"
}

// Read returns the content of path as text.
// Use IsNotFound to tell a vanished file from a real failure.
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", &DecodeError{Path: path}
	}
	return string(data), nil
}

// IsNotFound reports whether err means the file does not exist. Editors that
// save by delete-and-rewrite make this a normal, transient state.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// CountNonWhitespace returns the number of user-perceived characters in s
// that are not made up entirely of whitespace.
func CountNonWhitespace(s string) int {
	n := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		if !allSpace(g.Str()) {
			n++
		}
	}
	return n
}

func allSpace(cluster string) bool {
	for _, r := range cluster {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
