package database

import (
	"strconv"
	"strings"
)

// dialect captures the differences between the supported SQL engines.
type dialect struct {
	name       string
	blobType   string
	integer    string
	positional bool
}

var (
	sqliteDialect = dialect{
		name:     "sqlite",
		blobType: "BLOB",
		integer:  "INTEGER",
	}

	postgresDialect = dialect{
		name:       "postgres",
		blobType:   "BYTEA",
		integer:    "BIGINT",
		positional: true,
	}
)

// rebind rewrites '?' placeholders into '$n' for engines that need positional parameters.
func (d dialect) rebind(query string) string {
	if !d.positional {
		return query
	}

	var sb strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(c)
	}

	return sb.String()
}

func (d dialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS adbfs_devices (
			id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			attached_at ` + d.integer + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS adbfs_entries (
			device TEXT NOT NULL,
			path TEXT NOT NULL,
			parent TEXT NOT NULL,
			mode ` + d.integer + ` NOT NULL,
			size ` + d.integer + ` NOT NULL DEFAULT 0,
			modify_time ` + d.integer + ` NOT NULL,
			content ` + d.blobType + `,
			PRIMARY KEY (device, path)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_adbfs_entries_parent ON adbfs_entries(device, parent)`,
	}
}
