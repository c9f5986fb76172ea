package classification

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixtureVocabulary = []string{
	"",
	"  ",
	"10",
	"11",
	"12",
	"012",
	"Linea 11 - Fragancias",
	"7",
	"0025",
	"Cat. 25 Maquillaje",
	"Perfumería",
	"PERFUMES",
	"Fragancias!",
	"Cuidado   de la  Piel",
	"Maquillaje/Ojos.",
	"Accesorios Cámara",
	"???",
	"O'Brien Línea",
}

type rawClassification struct {
	ID   int `gorm:"primaryKey"`
	Code *string
}

func (rawClassification) TableName() string { return "raw_classifications" }

func setupClassificationDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&rawClassification{}))
	return conn
}

func TestSQLExprAgreesWithNormalize(t *testing.T) {
	n := newTestNormalizer()
	conn := setupClassificationDB(t)

	for i, raw := range fixtureVocabulary {
		value := raw
		require.NoError(t, conn.Create(&rawClassification{ID: i + 1, Code: &value}).Error)
	}
	require.NoError(t, conn.Create(&rawClassification{ID: len(fixtureVocabulary) + 1}).Error)

	expr, args, err := n.SQLExpr("code", fixtureVocabulary)
	require.NoError(t, err)

	type row struct {
		ID            int
		Code          *string
		CategoryGroup string
	}
	var rows []row
	require.NoError(t, conn.Raw(
		"SELECT id, code, "+expr+" AS category_group FROM raw_classifications ORDER BY id",
		args...,
	).Scan(&rows).Error)
	require.Len(t, rows, len(fixtureVocabulary)+1)

	for _, r := range rows {
		raw := ""
		if r.Code != nil {
			raw = *r.Code
		}
		assert.Equal(t, n.Normalize(raw), r.CategoryGroup, "raw %q", raw)
	}
}

func TestSQLExprGroupsInsideGroupBy(t *testing.T) {
	n := newTestNormalizer()
	conn := setupClassificationDB(t)

	codes := []string{"10", "11", "Perfumes", "7", "007"}
	for i, raw := range codes {
		value := raw
		require.NoError(t, conn.Create(&rawClassification{ID: i + 1, Code: &value}).Error)
	}

	expr, args, err := n.SQLExpr("code", codes)
	require.NoError(t, err)

	type groupCount struct {
		CategoryGroup string
		Total         int
	}
	var rows []groupCount
	require.NoError(t, conn.Raw(
		"SELECT "+expr+" AS category_group, COUNT(*) AS total FROM raw_classifications GROUP BY category_group ORDER BY category_group",
		args...,
	).Scan(&rows).Error)

	assert.Equal(t, []groupCount{
		{CategoryGroup: "7", Total: 2},
		{CategoryGroup: "fragrance", Total: 3},
	}, rows)
}

func TestSQLExprRejectsUnsafeColumn(t *testing.T) {
	n := newTestNormalizer()
	_, _, err := n.SQLExpr("code; DROP TABLE sales", nil)
	assert.ErrorIs(t, err, ErrInvalidColumn)
}

func TestSQLExprMarksValuesOutsideVocabulary(t *testing.T) {
	n := newTestNormalizer()
	conn := setupClassificationDB(t)

	for i, raw := range []string{"7", "Cat 25"} {
		value := raw
		require.NoError(t, conn.Create(&rawClassification{ID: i + 1, Code: &value}).Error)
	}

	expr, args, err := n.SQLExpr("code", []string{"7"})
	require.NoError(t, err)

	var groups []string
	require.NoError(t, conn.Raw(
		"SELECT "+expr+" AS category_group FROM raw_classifications ORDER BY id",
		args...,
	).Scan(&groups).Error)

	assert.Equal(t, []string{"7", UnmappedKey}, groups)
	assert.NotEqual(t, UnmappedKey, n.Normalize(UnmappedKey))
}
