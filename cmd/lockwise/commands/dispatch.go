package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/lockwise/internal/action"
	"github.com/florianilch/lockwise/internal/app"
)

// errNotPublished is returned when the store rejected a dispatched value
// because it could not be persisted.
var errNotPublished = errors.New("not persisted to keychain")

// promptFunc reads a secret for the named field.
type promptFunc func(field string) (string, error)

func dispatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "dispatch",
		Usage: "dispatch one account action against the keychain",
		Commands: []*cli.Command{
			{
				Name:  "scoped-key",
				Usage: "persist a scoped key (prompted if --key is omitted)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "key", Usage: "scoped key"},
				},
				Action: withSession(dispatchScopedKey),
			},
			{
				Name:  "profile",
				Usage: "persist account profile information",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "uid", Usage: "account uid", Required: true},
					&cli.StringFlag{Name: "email", Usage: "account email", Required: true},
				},
				Action: withSession(dispatchProfile),
			},
			{
				Name:  "oauth",
				Usage: "persist OAuth tokens (missing tokens are prompted)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id-token", Usage: "OpenID Connect id token"},
					&cli.StringFlag{Name: "access-token", Usage: "access token"},
					&cli.StringFlag{Name: "refresh-token", Usage: "refresh token"},
				},
				Action: withSession(dispatchOAuth),
			},
			{
				Name:  "display",
				Usage: "set the display state",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "state", Usage: "display state", Required: true},
				},
				Action: withSession(dispatchDisplay),
			},
		},
	}
}

type sessionAction func(ctx context.Context, cmd *cli.Command, session *app.Session, prompt promptFunc) error

// withSession opens an account session for the duration of a dispatch subcommand.
func withSession(fn sessionAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, shutdown, err := setup(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = shutdown(context.Background()) }()

		session, err := app.OpenSession(cfg)
		if err != nil {
			return err
		}
		defer session.Close()

		prompt := terminalPrompt(os.Stdin, cmd.Root().ErrWriter)
		if err := fn(ctx, cmd, session, prompt); err != nil {
			return err
		}
		return printState(cmd.Root().Writer, session.Store.Snapshot())
	}
}

func dispatchScopedKey(_ context.Context, cmd *cli.Command, session *app.Session, prompt promptFunc) error {
	key, err := flagOrPrompt(cmd, "key", prompt)
	if err != nil {
		return err
	}
	a := action.ScopedKeyAction{Key: key}
	if !publishedAfter(session.Store.ScopedKey, func() { session.Dispatcher.Dispatch(a) }) {
		return fmt.Errorf("scoped key %w", errNotPublished)
	}
	return nil
}

func dispatchProfile(_ context.Context, cmd *cli.Command, session *app.Session, _ promptFunc) error {
	a := action.ProfileInfoAction{Info: action.ProfileInfo{
		UID:   cmd.String("uid"),
		Email: cmd.String("email"),
	}}
	if !publishedAfter(session.Store.ProfileInfo, func() { session.Dispatcher.Dispatch(a) }) {
		return fmt.Errorf("profile info %w", errNotPublished)
	}
	return nil
}

func dispatchOAuth(_ context.Context, cmd *cli.Command, session *app.Session, prompt promptFunc) error {
	var info action.OAuthInfo
	for _, field := range []struct {
		flag string
		dst  *string
	}{
		{"id-token", &info.IDToken},
		{"access-token", &info.AccessToken},
		{"refresh-token", &info.RefreshToken},
	} {
		value, err := flagOrPrompt(cmd, field.flag, prompt)
		if err != nil {
			return err
		}
		*field.dst = value
	}

	a := action.OAuthInfoAction{Info: info}
	if !publishedAfter(session.Store.OAuthInfo, func() { session.Dispatcher.Dispatch(a) }) {
		return fmt.Errorf("oauth info %w", errNotPublished)
	}
	return nil
}

func dispatchDisplay(_ context.Context, cmd *cli.Command, session *app.Session, _ promptFunc) error {
	state, err := action.ParseDisplayState(cmd.String("state"))
	if err != nil {
		return err
	}
	session.Dispatcher.Dispatch(action.DisplayAction{State: state})
	return nil
}

// publishedAfter reports whether the stream delivered a value while dispatch ran.
// Values replayed on subscription do not count.
func publishedAfter[T any](subscribe func(func(T)) func(), dispatch func()) bool {
	armed, published := false, false
	unsubscribe := subscribe(func(T) {
		if armed {
			published = true
		}
	})
	defer unsubscribe()

	armed = true
	dispatch()
	return published
}

func flagOrPrompt(cmd *cli.Command, name string, prompt promptFunc) (string, error) {
	if value := cmd.String(name); value != "" {
		return value, nil
	}
	value, err := prompt(name)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	if value == "" {
		return "", fmt.Errorf("%s cannot be empty", name)
	}
	return value, nil
}

// terminalPrompt reads secrets without echo when stdin is a terminal and
// falls back to one line per secret otherwise.
func terminalPrompt(stdin *os.File, stderr io.Writer) promptFunc {
	fd := int(stdin.Fd())
	if !term.IsTerminal(fd) {
		return linePrompt(stdin)
	}
	return func(field string) (string, error) {
		_, _ = fmt.Fprintf(stderr, "%s: ", field)
		secret, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}
}

func linePrompt(r io.Reader) promptFunc {
	reader := bufio.NewReader(r)
	return func(string) (string, error) {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
}
