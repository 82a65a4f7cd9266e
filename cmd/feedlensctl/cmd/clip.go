package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
	"golang.org/x/term"
)

// Terminals commonly cap OSC52 payloads around this size.
const osc52Limit = 100_000

// Replaced in tests.
var (
	nativeCopy = clipboard.WriteAll
	osc52Copy  = copyOSC52
)

// copyText puts text on the clipboard, falling back to an OSC52 escape for
// remote sessions without a native clipboard. It returns the method used.
func copyText(text string) (string, error) {
	nativeErr := nativeCopy(text)
	if nativeErr == nil {
		return "clipboard", nil
	}
	if err := osc52Copy(text); err != nil {
		return "", fmt.Errorf("copy to clipboard: %w", errors.Join(nativeErr, err))
	}
	return "terminal (OSC52)", nil
}

func copyOSC52(text string) error {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return errors.New("stderr is not a terminal")
	}
	if len(text) > osc52Limit {
		return fmt.Errorf("text too large for OSC52 (%d bytes)", len(text))
	}
	seq := osc52.New(text).Limit(osc52Limit)
	switch {
	case os.Getenv("TMUX") != "":
		seq = seq.Tmux()
	case os.Getenv("STY") != "":
		seq = seq.Screen()
	}
	_, err := seq.WriteTo(os.Stderr)
	return err
}

// readSecret prompts on stderr and reads a line from the terminal without echo.
func readSecret(prompt string, stderr io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal; set FEEDLENS_API_KEY")
	}
	fmt.Fprint(stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(stderr)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return string(b), nil
}
