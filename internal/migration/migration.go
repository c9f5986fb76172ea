package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	aggdomain "github.com/smallbiznis/commission/internal/aggregation/domain"
	budgetdomain "github.com/smallbiznis/commission/internal/budget/domain"
	ledgerdomain "github.com/smallbiznis/commission/internal/ledger/domain"
	turndomain "github.com/smallbiznis/commission/internal/turn/domain"
	"github.com/smallbiznis/commission/pkg/db"
	"gorm.io/gorm"
)

// Run brings the schema up to date. Postgres uses the embedded SQL
// migrations; other dialects are for local work and are auto-migrated from
// the models.
func Run(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != db.TypePostgres {
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(sqlDB *sql.DB) error {
	if sqlDB == nil {
		return errors.New("migration database handle is required")
	}

	src, err := Source()
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
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

// Source exposes the embedded migrations as a golang-migrate source.
func Source() (source.Driver, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	driver, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	return driver, nil
}

func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&budgetdomain.Budget{},
		&budgetdomain.Category{},
		&budgetdomain.RoleCommissionRule{},
		&budgetdomain.User{},
		&turndomain.BudgetUserTurn{},
		&ledgerdomain.Sale{},
		&aggdomain.BudgetUserCategoryTotal{},
		&aggdomain.BudgetUserTotal{},
	)
}
