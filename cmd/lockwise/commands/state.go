package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/lockwise/internal/action"
	"github.com/florianilch/lockwise/internal/app"
	"github.com/florianilch/lockwise/internal/fxastore"
)

// stateView is the printed account state. Secrets are reduced to presence flags.
type stateView struct {
	Profile   *action.ProfileInfo `json:"profile"`
	ScopedKey bool                `json:"scoped_key"`
	OAuth     bool                `json:"oauth"`
}

func newStateView(snap fxastore.Snapshot) stateView {
	return stateView{
		Profile:   snap.ProfileInfo,
		ScopedKey: snap.ScopedKey != nil,
		OAuth:     snap.OAuthInfo != nil,
	}
}

func stateCommand() *cli.Command {
	return &cli.Command{
		Name:   "state",
		Usage:  "print the account state restored from the keychain",
		Action: stateAction,
	}
}

func stateAction(ctx context.Context, cmd *cli.Command) error {
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

	return printState(cmd.Root().Writer, session.Store.Snapshot())
}

func printState(w io.Writer, snap fxastore.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newStateView(snap)); err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	return nil
}
