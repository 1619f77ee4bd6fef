package migrations

import (
	"database/sql"
	"embed"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Run выполняет все встроенные миграции
func Run(db *sql.DB, logger logrus.FieldLogger) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{logger})

	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "set goose dialect")
	}
	if err := goose.Up(db, "sql"); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	version, err := goose.GetDBVersion(db)
	if err != nil {
		return errors.Wrap(err, "get migration version")
	}
	logger.WithField("version", version).Info("Database migrations applied")
	return nil
}

type gooseLogger struct {
	logrus.FieldLogger
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.FieldLogger.Fatalf(format, v...)
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.FieldLogger.Infof(format, v...)
}
