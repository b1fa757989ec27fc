package store

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Config selects the database backing the report store.
type Config struct {
	// Driver is "sqlite" (default) or "pgx".
	Driver string `yaml:"driver"`

	// DSN is a file path or URI for sqlite, a connection string for pgx.
	DSN string `yaml:"dsn"`
}

func DefaultConfig() Config {
	return Config{
		Driver: DriverSQLite,
		DSN:    "darklens.db",
	}
}
