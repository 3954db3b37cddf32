// Package migrations embeds the versioned SQL migrations for the
// PostgreSQL remote-configuration store, for golang-migrate's iofs
// source driver.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
