package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func withDialector(d gorm.Dialector) *gorm.DB {
	return &gorm.DB{Config: &gorm.Config{Dialector: d}}
}

func TestSnapshotTxOptions(t *testing.T) {
	for _, d := range []gorm.Dialector{postgres.Open("host=localhost"), mysql.Open("user@tcp(localhost:3306)/db")} {
		opts := SnapshotTxOptions(withDialector(d))
		if assert.NotNil(t, opts, d.Name()) {
			assert.Equal(t, sql.LevelRepeatableRead, opts.Isolation)
		}
	}

	assert.Nil(t, SnapshotTxOptions(withDialector(sqlite.Open(":memory:"))))
	assert.Nil(t, SnapshotTxOptions(nil))
}
