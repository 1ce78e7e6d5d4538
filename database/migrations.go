// Package database embeds the schema migrations.
package database

import "embed"

// Migrations holds the versioned sqlite schema under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations.
const MigrationsDir = "migrations"
