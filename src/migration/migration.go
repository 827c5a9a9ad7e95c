/*
Package migration applies the versioned schema changes in the migrations
package. The commands that drive it are registered by the website package.
*/
package migration

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"git.handmade.network/hmn/forumwiki/src/db"
	"git.handmade.network/hmn/forumwiki/src/migration/migrations"
	"git.handmade.network/hmn/forumwiki/src/migration/types"
	"github.com/jackc/pgx/v5"
)

func getSortedMigrationVersions() []types.MigrationVersion {
	var allVersions []types.MigrationVersion
	for migrationTime := range migrations.All {
		allVersions = append(allVersions, migrationTime)
	}
	sort.Slice(allVersions, func(i, j int) bool {
		return allVersions[i].Before(allVersions[j])
	})

	return allVersions
}

func LatestVersion() types.MigrationVersion {
	allVersions := getSortedMigrationVersions()
	return allVersions[len(allVersions)-1]
}

func getCurrentVersion(ctx context.Context, conn db.ConnOrTx) (types.MigrationVersion, error) {
	var currentVersion time.Time
	row := conn.QueryRow(ctx, "SELECT version FROM forumwiki_migration")
	err := row.Scan(&currentVersion)
	if err != nil {
		return types.MigrationVersion{}, err
	}
	currentVersion = currentVersion.UTC()

	return types.MigrationVersion(currentVersion), nil
}

func ListMigrations(ctx context.Context, conn db.ConnOrTx) {
	currentVersion, _ := getCurrentVersion(ctx, conn)
	for _, version := range getSortedMigrationVersions() {
		migration := migrations.All[version]
		indicator := "  "
		if version.Equal(currentVersion) {
			indicator = "✔ "
		}
		fmt.Printf("%s%v (%s: %s)\n", indicator, version, migration.Name(), migration.Description())
	}
}

/*
Migrates the database forward or backward to targetVersion. A zero version
means the latest migration. Each migration runs in its own transaction
together with the update of the version table, so a failed migration leaves
the database at the last one that succeeded.
*/
func Migrate(ctx context.Context, conn db.ConnOrTx, targetVersion types.MigrationVersion) error {
	// create migration table
	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS forumwiki_migration (
			version		TIMESTAMP WITH TIME ZONE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	// ensure there is a row
	var numRows int
	err = conn.QueryRow(ctx, "SELECT COUNT(*) FROM forumwiki_migration").Scan(&numRows)
	if err != nil {
		return err
	}
	if numRows < 1 {
		_, err := conn.Exec(ctx, "INSERT INTO forumwiki_migration (version) VALUES ($1)", time.Time{})
		if err != nil {
			return fmt.Errorf("failed to insert initial migration row: %w", err)
		}
	}

	// run migrations
	currentVersion, err := getCurrentVersion(ctx, conn)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if currentVersion.IsZero() {
		fmt.Println("This is the first time you have run database migrations.")
	} else {
		fmt.Printf("Current version: %s\n", currentVersion.String())
	}

	allVersions := getSortedMigrationVersions()
	if targetVersion.IsZero() {
		targetVersion = allVersions[len(allVersions)-1]
	}

	currentIndex := -1
	targetIndex := -1
	for i, version := range allVersions {
		if currentVersion.Equal(version) {
			currentIndex = i
		}
		if targetVersion.Equal(version) {
			targetIndex = i
		}
	}

	if targetIndex < 0 {
		return fmt.Errorf("could not find migration with version %v", targetVersion)
	}

	if currentIndex < targetIndex {
		// roll forward
		for i := currentIndex + 1; i <= targetIndex; i++ {
			version := allVersions[i]
			migration := migrations.All[version]
			fmt.Printf("Applying migration %v (%v)\n", version, migration.Name())

			err := inTransaction(ctx, conn, func(tx pgx.Tx) error {
				if err := migration.Up(ctx, tx); err != nil {
					return fmt.Errorf("migration %v failed: %w", version, err)
				}
				_, err := tx.Exec(ctx, "UPDATE forumwiki_migration SET version = $1", time.Time(version))
				return err
			})
			if err != nil {
				return err
			}
		}
	} else if currentIndex > targetIndex {
		// roll back
		for i := currentIndex; i > targetIndex; i-- {
			version := allVersions[i]
			previousVersion := types.MigrationVersion{}
			if i > 0 {
				previousVersion = allVersions[i-1]
			}

			fmt.Printf("Rolling back migration %v\n", version)
			migration := migrations.All[version]
			err := inTransaction(ctx, conn, func(tx pgx.Tx) error {
				if err := migration.Down(ctx, tx); err != nil {
					return fmt.Errorf("rollback of migration %v failed: %w", version, err)
				}
				_, err := tx.Exec(ctx, "UPDATE forumwiki_migration SET version = $1", time.Time(previousVersion))
				return err
			})
			if err != nil {
				return err
			}
		}
	} else {
		fmt.Println("Already migrated; nothing to do.")
	}

	return nil
}

func inTransaction(ctx context.Context, conn db.ConnOrTx, f func(tx pgx.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := f(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

//go:embed migrationTemplate.txt
var migrationTemplate string

func MakeMigration(name, description string) {
	result := migrationTemplate
	result = strings.ReplaceAll(result, "%NAME%", name)
	result = strings.ReplaceAll(result, "%DESCRIPTION%", fmt.Sprintf("%#v", description))

	now := time.Now().UTC()
	nowConstructor := fmt.Sprintf("time.Date(%d, %d, %d, %d, %d, %d, 0, time.UTC)", now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second())
	result = strings.ReplaceAll(result, "%DATE%", nowConstructor)

	safeVersion := strings.ReplaceAll(types.MigrationVersion(now).String(), ":", "")
	filename := fmt.Sprintf("%v_%v.go", safeVersion, name)
	path := filepath.Join("src", "migration", "migrations", filename)

	err := os.WriteFile(path, []byte(result), 0644)
	if err != nil {
		panic(fmt.Errorf("failed to write migration file: %w", err))
	}

	fmt.Println("Successfully created migration file:")
	fmt.Println(path)
}
