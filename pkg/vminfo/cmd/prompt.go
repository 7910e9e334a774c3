package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

var errNoTerminal = errors.New("no terminal available for prompting")

// promptLine asks for a value on the error stream and reads one line of input.
func (rt *runtimeState) promptLine(label string) (string, error) {
	if rt.nonInteractive {
		return "", fmt.Errorf("%s is required in non-interactive mode", strings.ToLower(label))
	}
	_, _ = fmt.Fprintf(rt.ErrWriter(), "%s: ", label)
	if rt.reader == nil {
		rt.reader = bufio.NewReader(rt.Input())
	}
	line, err := rt.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads a value without echo when stdin is a terminal.
func (rt *runtimeState) promptSecret(label string) (string, error) {
	if rt.nonInteractive {
		return "", fmt.Errorf("%s is required in non-interactive mode", strings.ToLower(label))
	}
	if f, ok := rt.Input().(*os.File); ok {
		fd := int(f.Fd())
		if !term.IsTerminal(fd) {
			return rt.promptLine(label)
		}
		_, _ = fmt.Fprintf(rt.ErrWriter(), "%s: ", label)
		secret, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(rt.ErrWriter())
		if err != nil {
			return "", fmt.Errorf("%w: %w", errNoTerminal, err)
		}
		return strings.TrimSpace(string(secret)), nil
	}
	return rt.promptLine(label)
}
