package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// maxStdinPayload bounds piped input. Invite payloads are a few kilobytes.
const maxStdinPayload = 4 << 20

var (
	errStdinTerminal = errors.New("nothing piped on stdin (hint: pipe the invite payload to this command)")
	errStdinEmpty    = errors.New("stdin is empty")
	errStdinTooLarge = fmt.Errorf("stdin exceeds %d bytes", maxStdinPayload)
)

// ReadStdin returns the data piped to the process. It refuses to block on an
// interactive terminal.
func ReadStdin() ([]byte, error) {
	return readPiped(os.Stdin)
}

func readPiped(f *os.File) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("inspecting stdin: %w", err)
	}
	if info.Mode()&os.ModeCharDevice != 0 {
		return nil, errStdinTerminal
	}

	data, err := io.ReadAll(io.LimitReader(f, maxStdinPayload+1))
	switch {
	case err != nil:
		return nil, fmt.Errorf("reading stdin: %w", err)
	case len(data) == 0:
		return nil, errStdinEmpty
	case len(data) > maxStdinPayload:
		return nil, errStdinTooLarge
	}
	return data, nil
}
