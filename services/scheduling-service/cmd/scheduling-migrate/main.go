// Command scheduling-migrate applies the embedded schema migrations.
//
//	scheduling-migrate            # up
//	scheduling-migrate down 1     # roll back one step
//	scheduling-migrate force 1    # mark version 1 as clean
package main

import (
	"database/sql"
	"errors"
	"os"
	"strconv"

	"github.com/agendoai/agendo/libs/config"
	"github.com/agendoai/agendo/libs/runtime"
	"github.com/agendoai/agendo/services/scheduling-service/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	_ = config.LoadDotEnv()
	logger := runtime.NewLogger("scheduling-migrate", config.String("LOG_LEVEL", "info"))

	fail := func(msg string, err error) {
		logger.Error(msg, "err", err)
		os.Exit(1)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		fail("config", err)
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		fail("open db", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.Ping(); err != nil {
		fail("ping db", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "scheduling_schema_migrations"})
	if err != nil {
		fail("db driver", err)
	}
	srcDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		fail("source driver", err)
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		fail("create migrator", err)
	}
	defer func() { _, _ = m.Close() }()

	cmd := "up"
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
	}
	arg := func() int {
		if len(os.Args) < 3 {
			fail(cmd+" needs a number", errors.New("missing argument"))
		}
		n, err := strconv.Atoi(os.Args[2])
		if err != nil {
			fail("invalid number", err)
		}
		return n
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-arg())
	case "force":
		err = m.Force(arg())
	default:
		fail("unknown command", errors.New(cmd))
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fail("migrate "+cmd, err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		fail("read version", verr)
	}
	logger.Info("migrations complete", "command", cmd, "version", version, "dirty", dirty)
}
