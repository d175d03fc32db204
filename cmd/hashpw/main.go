// Command hashpw prints a password digest in the format stored by the
// server, for seeding users by hand.
//
//	hashpw [-h scheme] [-n rounds]
//
// The password is read from the terminal without echo, or from the first
// line of standard input when it is not a terminal.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/securingai/internal/common"
	"github.com/dmitrijs2005/securingai/internal/server/password"
	"golang.org/x/term"
)

// readPassword and isTerminal are test seams for the x/term calls.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdin *os.File, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("hashpw", flag.ContinueOnError)
	fs.SetOutput(stderr)
	scheme := fs.String("h", password.SchemePBKDF2SHA256, "password scheme (pbkdf2_sha256, bcrypt, argon2id)")
	rounds := fs.Int("n", 0, "rounds for the scheme, 0 for its default")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, err := password.New(*scheme, *rounds)
	if err != nil {
		return err
	}

	pw, err := readSecret(stdin, stderr)
	if err != nil {
		return err
	}
	if pw == "" {
		return errors.New("empty password")
	}

	digest, err := ctx.Hash(pw)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(stdout, digest)
	return err
}

func readSecret(stdin *os.File, prompt io.Writer) (string, error) {
	fd := int(stdin.Fd())
	if !isTerminal(fd) {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(prompt, "Password: ")
	first, err := readPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(first)

	fmt.Fprint(prompt, "Repeat password: ")
	second, err := readPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(second)

	if string(first) != string(second) {
		return "", common.ErrorPasswordMismatch
	}
	return string(first), nil
}
