package postgrescontainer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/adeilh/kvgate/internal/testutil/container"
)

const (
	user     = "kvgate"
	password = "secret"
	dbName   = "kvgate_test"
)

var postgres = &container.Container{
	Name:          "kvgate-postgres-test",
	Image:         "postgres:16-alpine",
	HostPort:      "55432",
	ContainerPort: "5432",
	Env: []string{
		"POSTGRES_USER=" + user,
		"POSTGRES_PASSWORD=" + password,
		"POSTGRES_DB=" + dbName,
	},
	ReadyTimeout: 15 * time.Second,
	Ready:        func(addr string) error { return ping(dsn(addr)) },
}

// Addr returns host:port for connecting to the test Postgres instance.
func Addr() string { return postgres.Addr() }

// DSN returns a lib/pq formatted connection string.
func DSN() string { return dsn(Addr()) }

// Setup launches the Postgres container if it isn't already running.
func Setup() error { return postgres.Setup() }

// Teardown stops the container launched by Setup.
func Teardown() error { return postgres.Teardown() }

func dsn(addr string) string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", user, password, addr, dbName)
}

func ping(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return db.PingContext(ctx)
}
