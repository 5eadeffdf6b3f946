package iojson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// ErrNoInput is returned when no file was given and stdin is a terminal.
var ErrNoInput = errors.New("no input provided (stdin is a terminal); use --file or pipe JSON")

// FileReader decodes a T from --file or piped stdin.
type FileReader[T any] struct {
	path  string
	stdin io.Reader
}

// Flag returns the --file flag bound to the reader.
func (fr *FileReader[T]) Flag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "file",
		Aliases:     []string{"f"},
		Usage:       "path to a JSON file (reads stdin when omitted and piped)",
		Destination: &fr.path,
	}
}

// Provided reports whether JSON input is available without prompting.
func (fr *FileReader[T]) Provided() bool {
	if fr.path != "" || fr.stdin != nil {
		return true
	}
	return !term.IsTerminal(int(os.Stdin.Fd()))
}

// Read decodes the input. Unknown fields are rejected so typos in patch
// documents fail loudly instead of being ignored.
func (fr *FileReader[T]) Read() (T, error) {
	var (
		input  T
		reader io.Reader
	)

	switch {
	case fr.path != "":
		f, err := os.Open(fr.path)
		if err != nil {
			return input, fmt.Errorf("open file: %w", err)
		}
		defer func() { _ = f.Close() }()
		reader = f
	case fr.stdin != nil:
		reader = fr.stdin
	default:
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return input, ErrNoInput
		}
		reader = os.Stdin
	}

	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		return input, fmt.Errorf("decode JSON: %w", err)
	}
	return input, nil
}
