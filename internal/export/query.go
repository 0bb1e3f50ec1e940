// Package export extracts the building registry of one area to a
// semicolon-delimited CSV file using PostgreSQL COPY.
package export

import (
	"fmt"
	"strings"

	"github.com/leonkenneth/RNB-coeur/internal/area"
)

// CSV columns, in COPY output order.
var Columns = []string{"rnb_id", "point", "shape", "status", "ext_ids", "addresses", "plots"}

const departmentTable = "batid_department_subdivided"

// queryTemplate takes the department join then the department filter.
// Both are empty for the national export.
const queryTemplate = `
COPY (
    SELECT bdg.rnb_id AS rnb_id,
        ST_AsEWKT(bdg.point) AS point,
        ST_AsEWKT(bdg.shape) AS shape,
        bdg.status AS status,
        bdg.ext_ids AS ext_ids,
        coalesce(json_agg(
            json_build_object(
                'cle_interop_ban', addr.id,
                'street_number', addr.street_number,
                'street_rep', addr.street_rep,
                'street', addr.street,
                'city_zipcode', addr.city_zipcode,
                'city_name', addr.city_name
            )
        ) FILTER (WHERE addr.id IS NOT NULL), '[]'::json) AS addresses,
        (
            SELECT json_agg(json_build_object('id', p.id, 'bdg_cover_ratio',
                CASE
                    WHEN ST_GeometryType(bdg.shape) = 'ST_Point' THEN 1.0
                    WHEN ST_GeometryType(bdg.shape) IN ('ST_Polygon', 'ST_MultiPolygon') THEN
                        CASE
                            WHEN ST_Area(bdg.shape) > 0 THEN
                                ST_Area(ST_Intersection(bdg.shape, p.shape)) / ST_Area(bdg.shape)
                            ELSE 0.0
                        END
                    ELSE 0.0
                END
            ))
            FROM batid_plot p
            WHERE ST_Intersects(p.shape, bdg.shape)
        ) AS plots
    FROM batid_building bdg
    LEFT JOIN batid_buildingaddressesreadonly bdg_addr ON bdg_addr.building_id = bdg.id
    LEFT JOIN batid_address addr ON addr.id = bdg_addr.address_id%s
    WHERE is_active%s
    GROUP BY bdg.rnb_id, bdg.point, bdg.shape, bdg.status, bdg.ext_ids
) TO STDOUT WITH CSV HEADER DELIMITER ';'`

// BuildQuery returns the COPY statement for a. COPY cannot take bind
// parameters, so the department code is inlined as a quoted literal; callers
// pass areas that went through area.Parse.
func BuildQuery(a area.Area) string {
	var join, where string
	if !a.IsNational() {
		join = "\n    LEFT JOIN " + departmentTable + " AS dpt ON ST_Intersects(dpt.shape, bdg.point)"
		where = " AND dpt.code = " + quoteLiteral(string(a))
	}
	return fmt.Sprintf(queryTemplate, join, where)
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
