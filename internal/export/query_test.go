package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leonkenneth/RNB-coeur/internal/area"
)

func TestBuildQuery_National(t *testing.T) {
	q := BuildQuery(area.National)

	assert.NotContains(t, q, departmentTable)
	assert.NotContains(t, q, "dpt.code")
	assert.Contains(t, q, "WHERE is_active\n")
}

func TestBuildQuery_Department(t *testing.T) {
	q := BuildQuery(area.Area("75"))

	assert.Contains(t, q, "LEFT JOIN batid_department_subdivided AS dpt ON ST_Intersects(dpt.shape, bdg.point)")
	assert.Contains(t, q, "WHERE is_active AND dpt.code = '75'")
}

func TestBuildQuery_Shape(t *testing.T) {
	q := BuildQuery(area.Area("2A"))

	assert.True(t, strings.HasPrefix(strings.TrimSpace(q), "COPY ("))
	assert.True(t, strings.HasSuffix(q, "TO STDOUT WITH CSV HEADER DELIMITER ';'"))
	assert.Contains(t, q, "'[]'::json) AS addresses")
	assert.Contains(t, q, "WHEN ST_GeometryType(bdg.shape) = 'ST_Point' THEN 1.0")
	assert.Contains(t, q, "WHEN ST_Area(bdg.shape) > 0 THEN")
	for _, col := range Columns {
		assert.Contains(t, q, " AS "+col)
	}
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, "'75'", quoteLiteral("75"))
	assert.Equal(t, "'a''b'", quoteLiteral("a'b"))
}

func TestCSVPath(t *testing.T) {
	assert.Equal(t, "work/RNB_nat.csv", CSVPath("work", area.National))
}
