package migrations

import "embed"

// PostgresFS holds the PostgreSQL schema migrations, applied in lexical
// order by RunPostgresMigrations.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the ClickHouse schema migrations, applied in
// lexical order by RunClickhouseMigrations.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
