package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/sonarbind/internal/app"
	"github.com/florianilch/sonarbind/internal/binding"
)

func bindingsCommand(opts app.Options) *cli.Command {
	return &cli.Command{
		Name:  "bindings",
		Usage: "manage workspace bindings",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list bindings whose connection exists",
				Action: withApp(opts, bindingsListAction),
			},
			{
				Name:      "show",
				Usage:     "show the binding of a workspace",
				ArgsUsage: "<workspace-path>",
				Action:    withApp(opts, bindingsShowAction),
			},
			{
				Name:      "bind",
				Usage:     "bind a workspace to a project on a connection",
				ArgsUsage: "<workspace-path>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "connection",
						Usage:    "connection id",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "project",
						Usage:    "server project key",
						Required: true,
					},
				},
				Action: withApp(opts, bindingsBindAction),
			},
			{
				Name:      "unbind",
				Usage:     "remove the binding of a workspace",
				ArgsUsage: "<workspace-path>",
				Action:    withApp(opts, bindingsUnbindAction),
			},
			{
				Name:   "watch",
				Usage:  "print binding changes until interrupted",
				Action: withApp(opts, bindingsWatchAction),
			},
		},
	}
}

func bindingsListAction(ctx context.Context, cmd *cli.Command, a *app.App) error {
	projects, err := a.Bindings.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list bindings: %w", err)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].LocalBindingKey < projects[j].LocalBindingKey
	})

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("KEY", "PROJECT", "CONNECTION")
	for _, p := range projects {
		t.Row(p.LocalBindingKey, p.ServerProjectKey, p.ServerConnection.ID())
	}
	fmt.Fprintln(cmd.Root().Writer, t.String())
	return nil
}

func bindingsShowAction(ctx context.Context, cmd *cli.Command, a *app.App) error {
	key, err := workspaceKey(cmd)
	if err != nil {
		return err
	}

	project, ok := a.Bindings.ReadByKey(ctx, key)
	if !ok {
		return fmt.Errorf("workspace %q is not bound", key)
	}
	defer eraseCredentials(project.ServerConnection.Attrs().Credentials)

	w := cmd.Root().Writer
	fmt.Fprintf(w, "Key:        %s\n", project.LocalBindingKey)
	fmt.Fprintf(w, "Project:    %s\n", project.ServerProjectKey)
	fmt.Fprintf(w, "Connection: %s\n", project.ServerConnection.ID())

	languages := make([]string, 0, len(project.Profiles))
	for lang := range project.Profiles {
		languages = append(languages, string(lang))
	}
	sort.Strings(languages)
	for _, lang := range languages {
		profile := project.Profiles[binding.Language(lang)]
		fmt.Fprintf(w, "Profile:    %s %s (%s)\n", lang, profile.ProfileKey, profile.ProfileTimestamp.Format(time.RFC3339))
	}
	return nil
}

func bindingsBindAction(ctx context.Context, cmd *cli.Command, a *app.App) error {
	key, err := workspaceKey(cmd)
	if err != nil {
		return err
	}

	id := cmd.String("connection")
	conn, ok := a.Catalog.TryGet(ctx, id)
	if !ok {
		return fmt.Errorf("connection %q not found", id)
	}
	defer eraseCredentials(conn.Attrs().Credentials)

	project := &binding.BoundProject{
		LocalBindingKey:  key,
		ServerProjectKey: cmd.String("project"),
		ServerConnection: conn,
	}
	if !a.Bindings.Write(ctx, a.Layout.BindingFilePath(key), project) {
		return fmt.Errorf("failed to write binding %q", key)
	}

	fmt.Fprintln(cmd.Root().Writer, key)
	return nil
}

func bindingsUnbindAction(ctx context.Context, cmd *cli.Command, a *app.App) error {
	key, err := workspaceKey(cmd)
	if err != nil {
		return err
	}

	if !a.Bindings.DeleteBinding(ctx, key) {
		return fmt.Errorf("workspace %q is not bound", key)
	}
	return nil
}

func bindingsWatchAction(ctx context.Context, cmd *cli.Command, a *app.App) error {
	w := cmd.Root().Writer
	return a.Watch(ctx, func(ev binding.Event, project *binding.BoundProject) {
		if project == nil {
			fmt.Fprintf(w, "%s\t%s\n", ev.Kind, ev.LocalBindingKey)
			return
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ev.Kind, ev.LocalBindingKey, project.ServerProjectKey, project.ServerConnection.ID())
	})
}

func workspaceKey(cmd *cli.Command) (string, error) {
	path, err := requireArg(cmd, "workspace-path")
	if err != nil {
		return "", err
	}
	return binding.KeyForWorkspace(path)
}
