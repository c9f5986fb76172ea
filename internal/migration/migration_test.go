package migration

import (
	"errors"
	"io"
	"io/fs"
	"strings"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	aggdomain "github.com/smallbiznis/commission/internal/aggregation/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

func TestEmbeddedMigrationsAreSequential(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	var versions []uint
	version, err := src.First()
	require.NoError(t, err)
	for {
		versions = append(versions, version)

		up, _, err := src.ReadUp(version)
		require.NoError(t, err)
		body, err := io.ReadAll(up)
		require.NoError(t, err)
		up.Close()
		assert.NotEmpty(t, strings.TrimSpace(string(body)))

		down, _, err := src.ReadDown(version)
		require.NoError(t, err, "version %d has no down migration", version)
		down.Close()

		version, err = src.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, []uint{1, 2, 3}, versions)
}

func TestRunAutoMigratesNonPostgres(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Run(conn))

	for _, table := range []string{
		"budgets", "budget_categories", "role_commission_rules", "users",
		"budget_user_turns", "sales", "budget_user_category_totals", "budget_user_totals",
	} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestTotalsMigrationMatchesModelPrecision(t *testing.T) {
	body, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000003_commission_totals.up.sql")
	require.NoError(t, err)
	ddl := strings.ToUpper(string(body))

	for _, model := range []any{&aggdomain.BudgetUserCategoryTotal{}, &aggdomain.BudgetUserTotal{}} {
		s, err := schema.Parse(model, &sync.Map{}, schema.NamingStrategy{})
		require.NoError(t, err)
		for _, field := range s.Fields {
			dataType := strings.ToUpper(field.TagSettings["TYPE"])
			if !strings.HasPrefix(dataType, "NUMERIC") {
				continue
			}
			assert.Contains(t, ddl, strings.ToUpper(field.DBName)+" "+dataType, "%s.%s", s.Table, field.DBName)
		}
	}
}
