package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/smallbiznis/salesledger/internal/config"
	ledgertxdomain "github.com/smallbiznis/salesledger/internal/ledgertx/domain"
	lineitemdomain "github.com/smallbiznis/salesledger/internal/lineitem/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrator brings the schema up to date. Postgres runs the embedded SQL
// migrations; mysql and sqlite are created from the gorm models.
type Migrator struct {
	conn   *gorm.DB
	dbType string
	log    *zap.Logger
}

func New(conn *gorm.DB, cfg config.Config, log *zap.Logger) *Migrator {
	return &Migrator{
		conn:   conn,
		dbType: strings.ToLower(strings.TrimSpace(cfg.DBType)),
		log:    log.Named("migration"),
	}
}

func (m *Migrator) Up() error {
	if m.conn == nil {
		return errors.New("migration database handle is required")
	}

	switch m.dbType {
	case "postgres":
		sqlDB, err := m.conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
	case "mysql", "sqlite":
		if err := AutoMigrate(m.conn); err != nil {
			return err
		}
		if m.dbType == "mysql" {
			if err := enforceBinaryNumberCollation(m.conn); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported %s type", m.dbType)
	}

	m.log.Info("migration.done", zap.String("db_type", m.dbType))
	return nil
}

// AutoMigrate creates the tables from the gorm models.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&lineitemdomain.SourceLineItem{},
		&ledgertxdomain.LedgerTransaction{},
		&ledgertxdomain.LedgerTransactionSource{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Default mysql collations are case-insensitive; numbers must compare binary.
func enforceBinaryNumberCollation(conn *gorm.DB) error {
	err := conn.Exec(
		"ALTER TABLE ledger_transactions MODIFY number VARCHAR(15) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL",
	).Error
	if err != nil {
		return fmt.Errorf("set number collation: %w", err)
	}
	return nil
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}
