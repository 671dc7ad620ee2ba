package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/sonarbind/internal/app"
	"github.com/florianilch/sonarbind/internal/connection"
)

func connectionsCommand(opts app.Options) *cli.Command {
	credentialFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:    "token",
				Usage:   "access token (prompted for if neither --token nor --username is given)",
				Sources: cli.EnvVars("SONARBIND_TOKEN"),
			},
			&cli.StringFlag{
				Name:  "username",
				Usage: "username for basic authentication; the password is prompted for",
			},
		}
	}

	return &cli.Command{
		Name:  "connections",
		Usage: "manage server connections",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list configured connections",
				Action: withApp(opts, connectionsListAction),
			},
			{
				Name:      "show",
				Usage:     "show a connection",
				ArgsUsage: "<id>",
				Action:    withApp(opts, connectionsShowAction),
			},
			{
				Name:  "add",
				Usage: "add a SonarQube server or SonarCloud organization",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "server-uri",
						Usage: "SonarQube server address",
					},
					&cli.StringFlag{
						Name:  "organization",
						Usage: "SonarCloud organization key",
					},
					&cli.BoolFlag{
						Name:  "smart-notifications",
						Usage: "enable smart notifications",
					},
				}, credentialFlags()...),
				Action: withApp(opts, connectionsAddAction),
			},
			{
				Name:      "delete",
				Usage:     "delete a connection and its credentials",
				ArgsUsage: "<id>",
				Action:    withApp(opts, connectionsDeleteAction),
			},
			{
				Name:      "set-notifications",
				Usage:     "enable or disable smart notifications",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "enabled",
						Usage: "whether smart notifications are enabled",
					},
				},
				Action: withApp(opts, connectionsSetNotificationsAction),
			},
			{
				Name:      "set-credentials",
				Usage:     "replace the credentials of a connection",
				ArgsUsage: "<id>",
				Flags:     credentialFlags(),
				Action:    withApp(opts, connectionsSetCredentialsAction),
			},
		},
	}
}

func connectionsListAction(ctx context.Context, cmd *cli.Command, a *app.App) error {
	w := cmd.Root().Writer

	if !a.Catalog.IsConnectionsFileExisting() {
		fmt.Fprintln(w, "no connections configured")
		return nil
	}

	conns, ok := a.Catalog.TryGetAll(ctx)
	if !ok {
		return fmt.Errorf("failed to read %s", a.Catalog.FilePath())
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TYPE", "SMART NOTIFICATIONS")
	for _, conn := range conns {
		t.Row(conn.ID(), connectionKind(conn), onOff(conn.Attrs().Settings))
	}
	fmt.Fprintln(w, t.String())
	return nil
}

func connectionsShowAction(ctx context.Context, cmd *cli.Command, a *app.App) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	conn, ok := a.Catalog.TryGet(ctx, id)
	if !ok {
		return fmt.Errorf("connection %q not found", id)
	}
	defer eraseCredentials(conn.Attrs().Credentials)

	w := cmd.Root().Writer
	fmt.Fprintf(w, "ID:                  %s\n", conn.ID())
	fmt.Fprintf(w, "Type:                %s\n", connectionKind(conn))
	switch c := conn.(type) {
	case *connection.SonarQube:
		fmt.Fprintf(w, "Server:              %s\n", c.ServerURI)
	case *connection.SonarCloud:
		fmt.Fprintf(w, "Organization:        %s\n", c.OrganizationKey)
	}
	fmt.Fprintf(w, "Smart notifications: %s\n", onOff(conn.Attrs().Settings))
	fmt.Fprintf(w, "Credentials:         %s\n", describeCredentials(conn.Attrs().Credentials))
	return nil
}

func connectionsAddAction(ctx context.Context, cmd *cli.Command, a *app.App) error {
	serverURI, organization := cmd.String("server-uri"), cmd.String("organization")
	if (serverURI == "") == (organization == "") {
		return errors.New("exactly one of --server-uri or --organization is required")
	}

	creds, err := credentialsFromFlags(cmd)
	if err != nil {
		return err
	}
	defer creds.Erase()

	settings := &connection.ConnectionSettings{IsSmartNotificationsEnabled: cmd.Bool("smart-notifications")}

	var conn connection.ServerConnection
	if serverURI != "" {
		conn, err = connection.NewSonarQube(serverURI, settings, creds)
		if err != nil {
			return err
		}
	} else {
		conn = connection.NewSonarCloud(organization, settings, creds)
	}

	if !a.Catalog.TryAdd(ctx, conn) {
		return fmt.Errorf("failed to add connection %q (it may already exist)", conn.ID())
	}

	fmt.Fprintln(cmd.Root().Writer, conn.ID())
	return nil
}

func connectionsDeleteAction(ctx context.Context, cmd *cli.Command, a *app.App) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	if !a.Catalog.TryDelete(ctx, id) {
		return fmt.Errorf("failed to delete connection %q", id)
	}
	return nil
}

func connectionsSetNotificationsAction(ctx context.Context, cmd *cli.Command, a *app.App) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	settings := connection.ConnectionSettings{IsSmartNotificationsEnabled: cmd.Bool("enabled")}
	if !a.Catalog.TryUpdateSettingsByID(ctx, id, settings) {
		return fmt.Errorf("failed to update connection %q", id)
	}
	return nil
}

func connectionsSetCredentialsAction(ctx context.Context, cmd *cli.Command, a *app.App) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}

	creds, err := credentialsFromFlags(cmd)
	if err != nil {
		return err
	}
	defer creds.Erase()

	if !a.Catalog.TryUpdateCredentialsByID(ctx, id, creds) {
		return fmt.Errorf("failed to update credentials of connection %q", id)
	}
	return nil
}

// credentialsFromFlags builds credentials from --token or --username, prompting for the
// secret when it was not passed.
func credentialsFromFlags(cmd *cli.Command) (connection.Credentials, error) {
	root := cmd.Root()

	if token := cmd.String("token"); token != "" {
		return connection.NewToken(token), nil
	}

	if username := cmd.String("username"); username != "" {
		password, err := readSecret(root.Reader, root.ErrWriter, "Password: ")
		if err != nil {
			return nil, err
		}
		return connection.NewUsernameAndPassword(username, password), nil
	}

	token, err := readSecret(root.Reader, root.ErrWriter, "Token: ")
	if err != nil {
		return nil, err
	}
	return connection.NewToken(token), nil
}

func connectionKind(conn connection.ServerConnection) string {
	switch conn.(type) {
	case *connection.SonarCloud:
		return "SonarCloud"
	default:
		return "SonarQube"
	}
}

func describeCredentials(creds connection.Credentials) string {
	switch c := creds.(type) {
	case *connection.Token:
		return "token"
	case *connection.UsernameAndPassword:
		return fmt.Sprintf("username %q", c.Username)
	default:
		return "none"
	}
}

func onOff(settings *connection.ConnectionSettings) string {
	if settings != nil && settings.IsSmartNotificationsEnabled {
		return "enabled"
	}
	return "disabled"
}

func eraseCredentials(creds connection.Credentials) {
	if creds != nil {
		creds.Erase()
	}
}
