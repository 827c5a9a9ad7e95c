package website

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"git.handmade.network/hmn/forumwiki/src/db"
	"git.handmade.network/hmn/forumwiki/src/logging"
	"git.handmade.network/hmn/forumwiki/src/migration"
	"git.handmade.network/hmn/forumwiki/src/migration/types"
	"github.com/spf13/cobra"
)

var listMigrations bool

func init() {
	migrateCommand := &cobra.Command{
		Use:   "migrate [target migration id]",
		Short: "Run database migrations",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conn, err := db.NewConn(ctx)
			if err != nil {
				logging.Fatal().Err(err).Msg("failed to connect to the database")
			}
			defer conn.Close(ctx)

			if listMigrations {
				migration.ListMigrations(ctx, conn)
				return
			}

			targetVersion := time.Time{}
			if len(args) > 0 {
				targetVersion, err = time.Parse(time.RFC3339, args[0])
				if err != nil {
					fmt.Printf("ERROR: bad version string: %v", err)
					os.Exit(1)
				}
			}
			if err := migration.Migrate(ctx, conn, types.MigrationVersion(targetVersion)); err != nil {
				logging.Fatal().Err(err).Msg("migration failed")
			}
		},
	}
	migrateCommand.Flags().BoolVar(&listMigrations, "list", false, "List available migrations")

	makeMigrationCommand := &cobra.Command{
		Use:   "makemigration <name> <description>...",
		Short: "Create a new database migration file",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 2 {
				fmt.Printf("You must provide a name and a description.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			name := args[0]
			description := strings.Join(args[1:], " ")

			migration.MakeMigration(name, description)
		},
	}

	WebsiteCommand.AddCommand(migrateCommand)
	WebsiteCommand.AddCommand(makeMigrationCommand)
}
