package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/opst/knitmeta/pkg/db/postgres"
	"github.com/opst/knitmeta/pkg/utils/try"
	"github.com/youta-t/flarc"
)

type Flag struct {
	DBURI  string `flag:"dburi" help:"Connection string of the database. Default: $KNITMETA_DBURI"`
	Schema string `flag:"schema-repo" help:"The path to the schema repository directory."`

	Current bool `flag:"current" help:"Print the schema version of the database, and exit without upgrading."`
}

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt, os.Kill,
	)
	defer cancel()

	cmd := try.To(flarc.NewCommand(
		"database schema upgrader",
		Flag{
			DBURI:  os.Getenv("KNITMETA_DBURI"),
			Schema: os.Getenv("KNITMETA_SCHEMA"),
		},
		flarc.Args{},
		func(ctx context.Context, c flarc.Commandline[Flag], a []any) error {
			flags := c.Flags()
			if flags.DBURI == "" {
				return fmt.Errorf("%w: --dburi is required", flarc.ErrUsage)
			}
			if !flags.Current && flags.Schema == "" {
				return fmt.Errorf("%w: --schema-repo is required to upgrade", flarc.ErrUsage)
			}

			db, err := postgres.New(
				ctx, flags.DBURI,
				postgres.WithSchemaRepository(flags.Schema),
			)
			if err != nil {
				return err
			}
			defer db.Close()

			if flags.Current {
				v, err := db.Schema().Version(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(c.Stdout(), v)
				return err
			}

			logger.Printf("upgrading schema with %s", flags.Schema)
			if err := db.Schema().Upgrade(ctx); err != nil {
				return err
			}
			v, err := db.Schema().Version(ctx)
			if err != nil {
				return err
			}
			logger.Printf("schema version: %d", v)
			return nil
		},
	)).OrFatal(logger)

	os.Exit(flarc.Run(ctx, cmd))
}
