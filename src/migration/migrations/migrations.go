package migrations

import (
	"git.handmade.network/hmn/forumwiki/src/migration/types"
)

var All = make(map[types.MigrationVersion]types.Migration)

func registerMigration(m types.Migration) {
	All[m.Version()] = m
}
