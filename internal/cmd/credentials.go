package cmd

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/term"
)

// Terminal hooks, replaced in tests.
var (
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword
)

// needsCredentials reports whether the repository at dsn authenticates with
// a user name and password. Local repositories fall back to the user recorded
// in them.
func needsCredentials(dsn string) bool {
	u, err := url.Parse(dsn)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "postgres", "postgresql":
		return true
	}
	return false
}

// promptCredentials asks for a missing user name or password when stdin is
// a terminal. Flags, config and environment take precedence.
func (a *app) promptCredentials(prompt io.Writer) error {
	auth := &a.cfg.Auth
	if auth.Token != "" || !needsCredentials(a.cfg.Repository.URL) {
		return nil
	}
	if auth.Username != "" && auth.Password != "" {
		return nil
	}
	if !isTerminal(a.stdinFD) {
		return nil
	}

	if auth.Username == "" {
		fmt.Fprint(prompt, "Username: ")
		line, err := bufio.NewReader(a.stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read username: %w", err)
		}
		auth.Username = strings.TrimSpace(line)
	}
	if auth.Password == "" {
		fmt.Fprint(prompt, "Password: ")
		pw, err := readPassword(a.stdinFD)
		fmt.Fprintln(prompt)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		auth.Password = string(pw)
	}
	return nil
}
