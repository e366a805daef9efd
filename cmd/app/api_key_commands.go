package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/apikeys/cmd/app/commands"
	"github.com/allisson/apikeys/internal/app"
	apikeyUseCase "github.com/allisson/apikeys/internal/apikey/usecase"
	"github.com/allisson/apikeys/internal/config"
	"github.com/allisson/apikeys/internal/database"
)

func ownerFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "owner",
		Aliases:  []string{"o"},
		Required: true,
		Usage:    "Owner (subject) the key belongs to",
	}
}

func keyIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "id",
		Aliases:  []string{"i"},
		Required: true,
		Usage:    "API key ID (UUID)",
	}
}

// withAPIKeyUseCase builds a container, hands its API key use case to run and releases
// the container afterwards.
func withAPIKeyUseCase(
	ctx context.Context,
	run func(useCase apikeyUseCase.APIKeyUseCase, container *app.Container) error,
) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	defer func() { _ = container.Shutdown(ctx) }()

	if cfg.DBDriver == database.DriverMemory {
		container.Logger().Warn("memory driver selected: keys are discarded when the command exits")
	}

	useCase, err := container.APIKeyUseCase()
	if err != nil {
		return err
	}
	return run(useCase, container)
}

func getAPIKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-api-key",
			Usage: "Issue a new API key; the secret is printed once",
			Flags: []cli.Flag{
				ownerFlag(),
				&cli.StringFlag{
					Name:     "name",
					Aliases:  []string{"N"},
					Required: true,
					Usage:    "Human-readable key name",
				},
				&cli.StringFlag{
					Name:     "permissions",
					Aliases:  []string{"p"},
					Required: true,
					Usage:    "Comma-separated permissions (e.g., 'read,write')",
				},
				&cli.StringFlag{
					Name:    "expires-at",
					Aliases: []string{"e"},
					Usage:   "Expiration as RFC 3339 timestamp or duration from now (e.g., 720h); omit for no expiration",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withAPIKeyUseCase(ctx, func(useCase apikeyUseCase.APIKeyUseCase, c *app.Container) error {
					return commands.RunCreateAPIKey(
						ctx,
						useCase,
						c.Logger(),
						commands.DefaultIO(),
						cmd.String("owner"),
						cmd.String("name"),
						cmd.String("permissions"),
						cmd.String("expires-at"),
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "list-api-keys",
			Usage: "List the non-revoked API keys of an owner",
			Flags: []cli.Flag{ownerFlag(), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withAPIKeyUseCase(ctx, func(useCase apikeyUseCase.APIKeyUseCase, c *app.Container) error {
					return commands.RunListAPIKeys(
						ctx,
						useCase,
						c.Logger(),
						commands.DefaultIO(),
						cmd.String("owner"),
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "get-api-key",
			Usage: "Show a single API key",
			Flags: []cli.Flag{ownerFlag(), keyIDFlag(), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withAPIKeyUseCase(ctx, func(useCase apikeyUseCase.APIKeyUseCase, c *app.Container) error {
					return commands.RunGetAPIKey(
						ctx,
						useCase,
						c.Logger(),
						commands.DefaultIO(),
						cmd.String("owner"),
						cmd.String("id"),
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "update-api-key",
			Usage: "Rename an API key and/or replace its permissions",
			Flags: []cli.Flag{
				ownerFlag(),
				keyIDFlag(),
				&cli.StringFlag{
					Name:    "name",
					Aliases: []string{"N"},
					Usage:   "New key name (omit to keep)",
				},
				&cli.StringFlag{
					Name:    "permissions",
					Aliases: []string{"p"},
					Usage:   "New comma-separated permissions (omit to keep)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withAPIKeyUseCase(ctx, func(useCase apikeyUseCase.APIKeyUseCase, c *app.Container) error {
					return commands.RunUpdateAPIKey(
						ctx,
						useCase,
						c.Logger(),
						commands.DefaultIO(),
						cmd.String("owner"),
						cmd.String("id"),
						cmd.String("name"),
						cmd.String("permissions"),
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "revoke-api-key",
			Usage: "Permanently disable an API key",
			Flags: []cli.Flag{ownerFlag(), keyIDFlag(), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withAPIKeyUseCase(ctx, func(useCase apikeyUseCase.APIKeyUseCase, c *app.Container) error {
					return commands.RunRevokeAPIKey(
						ctx,
						useCase,
						c.Logger(),
						commands.DefaultIO(),
						cmd.String("owner"),
						cmd.String("id"),
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "rotate-api-key",
			Usage: "Revoke an API key and issue a replacement; the new secret is printed once",
			Flags: []cli.Flag{ownerFlag(), keyIDFlag(), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withAPIKeyUseCase(ctx, func(useCase apikeyUseCase.APIKeyUseCase, c *app.Container) error {
					return commands.RunRotateAPIKey(
						ctx,
						useCase,
						c.Logger(),
						commands.DefaultIO(),
						cmd.String("owner"),
						cmd.String("id"),
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "api-key-stats",
			Usage: "Show usage counters of an API key",
			Flags: []cli.Flag{ownerFlag(), keyIDFlag(), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withAPIKeyUseCase(ctx, func(useCase apikeyUseCase.APIKeyUseCase, c *app.Container) error {
					return commands.RunAPIKeyStats(
						ctx,
						useCase,
						c.Logger(),
						commands.DefaultIO(),
						cmd.String("owner"),
						cmd.String("id"),
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "clean-expired-api-keys",
			Usage: "Delete API keys that expired more than the specified days ago",
			Flags: []cli.Flag{
				daysFlag("Delete keys expired more than this many days ago"),
				dryRunFlag("Show how many keys would be deleted without deleting"),
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withAPIKeyUseCase(ctx, func(useCase apikeyUseCase.APIKeyUseCase, c *app.Container) error {
					return commands.RunCleanExpiredAPIKeys(
						ctx,
						useCase,
						c.Logger(),
						commands.DefaultIO(),
						int(cmd.Int("days")),
						cmd.Bool("dry-run"),
						cmd.String("format"),
					)
				})
			},
		},
	}
}
