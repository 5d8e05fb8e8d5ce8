package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/syt-tools/syt/internal/checkout"
	syterrors "github.com/syt-tools/syt/internal/errors"
	"github.com/syt-tools/syt/internal/repository"
	"github.com/syt-tools/syt/internal/session"
	"github.com/syt-tools/syt/internal/workspace"
)

const argsHelp = `With no arguments the entity id is read from the .syt file in the current
directory. An argument that is not an entity id is taken as a checkout
directory and the id is read from the .syt file there.`

type lockFlags struct {
	sync  bool
	force bool
	name  string
}

func newCheckoutCmd(a *app) *cobra.Command {
	var f lockFlags
	cmd := &cobra.Command{
		Use:   "checkout [entity-id] [checkout-path]",
		Short: "Check out a project, folder, or file",
		Long: `Check out a project, folder, or file so nobody else can change it.

The check-out is refused when the entity, one of its parent folders, its
project, or anything below it is already checked out. With --force a project
administrator checks out anyway and each refusal is printed as a warning.

` + argsHelp,
		Args: maxArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, args, func(ctx context.Context, svc *checkout.Service, t workspace.Target, p *printer) error {
				res, err := svc.Checkout(ctx, checkout.Request{EntityID: t.EntityID, Path: t.Path, Sync: f.sync, Force: f.force})
				if err != nil {
					return err
				}
				p.Synced(res.Synced)
				p.Success("Check-out was successful")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&f.sync, "sync", "s", false, "download the entity's folders and files into checkout-path")
	cmd.Flags().BoolVarP(&f.force, "force", "f", false, "check out even if already checked out (project administrators only)")
	return cmd
}

func newCheckinCmd(a *app) *cobra.Command {
	var f lockFlags
	cmd := &cobra.Command{
		Use:   "checkin [entity-id] [checkout-path]",
		Short: "Check in a project, folder, or file",
		Long: `Check in an entity you checked out.

With --sync the files listed in the manifest of checkout-path are uploaded
before the check-out is released. With --force a project administrator can
release a check-out held by someone else.

` + argsHelp,
		Args: maxArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, args, func(ctx context.Context, svc *checkout.Service, t workspace.Target, p *printer) error {
				if _, err := svc.Checkin(ctx, checkout.Request{EntityID: t.EntityID, Path: t.Path, Sync: f.sync, Force: f.force}); err != nil {
					return err
				}
				p.Success("Check-in was successful")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&f.sync, "sync", "s", false, "upload local changes before checking in")
	cmd.Flags().BoolVarP(&f.force, "force", "f", false, "check in even if checked out by someone else (project administrators only)")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var f lockFlags
	cmd := &cobra.Command{
		Use:   "show [entity-id] [checkout-path]",
		Short: "List check-outs at or below an entity",
		Long: `List who has checked out the entity or anything below it.

For a project every check-out in the project is listed.

` + argsHelp,
		Args: maxArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, args, func(ctx context.Context, svc *checkout.Service, t workspace.Target, p *printer) error {
				res, err := svc.Show(ctx, checkout.Request{EntityID: t.EntityID, NameGlob: f.name})
				if err != nil {
					return err
				}
				p.CheckedOut(res.CheckedOut)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.name, "name", "", "only list entities whose name matches this glob")
	return cmd
}

type serviceFunc func(ctx context.Context, svc *checkout.Service, target workspace.Target, p *printer) error

// withService resolves the target, opens a session and runs fn with a
// Service bound to it. The session is closed when fn returns.
func (a *app) withService(cmd *cobra.Command, args []string, fn serviceFunc) error {
	cfg := a.cfg
	ws := workspace.New(cfg.Protocol.PointerFile, cfg.Repository.IDPrefix)

	cwd, err := os.Getwd()
	if err != nil {
		return syterrors.Wrap(err, "failed to get current directory")
	}
	target, err := ws.Resolve(args, cwd)
	if err != nil {
		return err
	}

	if err := a.promptCredentials(cmd.ErrOrStderr()); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sess, err := session.Dial(ctx, cfg.Repository.URL, repository.Options{
		Username:    cfg.Auth.Username,
		Password:    cfg.Auth.Password,
		Token:       cfg.Auth.Token,
		Timeout:     cfg.Repository.Timeout(),
		MaxRetries:  cfg.Repository.MaxRetries,
		ViewRefresh: repository.ViewRefresh(cfg.Repository.ViewRefresh),
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			a.logger.Warn("failed to close session", "error", cerr)
		}
	}()

	p := newPrinter(cmd.OutOrStdout(), cfg.Output.Color)
	svc := checkout.New(sess,
		checkout.WithViewName(cfg.Protocol.ViewName),
		checkout.WithManifestName(cfg.Protocol.ManifestFile),
		checkout.WithWorkspace(ws),
		checkout.WithReporter(p),
	)
	a.logger.Debug("running", "entity_id", target.EntityID, "path", target.Path)
	return fn(ctx, svc, target, p)
}
