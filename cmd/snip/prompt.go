package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"snip-go/internal/app"
)

// readPassphrase returns $SNIP_PASSPHRASE when set, otherwise prompts on the
// terminal without echo. Piped stdin is read as one line.
func readPassphrase(prompt string) (string, error) {
	if p := os.Getenv(app.EnvPassphrase); p != "" {
		return p, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

// newPassphrase prompts twice and checks both entries agree.
func newPassphrase() (string, error) {
	p, err := readPassphrase("New passphrase: ")
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	if os.Getenv(app.EnvPassphrase) != "" || !term.IsTerminal(int(os.Stdin.Fd())) {
		return p, nil
	}
	again, err := readPassphrase("Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if again != p {
		return "", fmt.Errorf("passphrases do not match")
	}
	return p, nil
}
