// Package migrations embeds the versioned SQL schema for each supported store.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
