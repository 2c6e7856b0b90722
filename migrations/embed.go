// Package migrations embeds the goose schema migrations for each supported driver.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Postgres returns the migrations for the pgx-backed store
func Postgres() fs.FS {
	return sub("postgres")
}

// SQLite returns the migrations for the modernc sqlite store
func SQLite() fs.FS {
	return sub("sqlite")
}

func sub(dir string) fs.FS {
	fsys, err := fs.Sub(files, dir)
	if err != nil {
		// dir is a compile-time constant covered by the embed pattern
		panic(err)
	}
	return fsys
}
