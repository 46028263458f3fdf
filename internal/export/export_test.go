package export

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/iwmi/leaf-dss/internal/unit"
)

func square() *geom.MultiPolygon {
	return geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{
		{{{95, 27}, {95, 27.2}, {95.2, 27.2}, {95.2, 27}, {95, 27}}},
	})
}

func sample() unit.Collection {
	return unit.Collection{
		Kind:    unit.KindBlock,
		Columns: []string{"BLOCK_ID", "Block_name", "AD", "feasibility"},
		Units: []unit.Unit{
			{Geometry: square(), Attrs: map[string]any{"BLOCK_ID": int64(1), "Block_name": "Margherita", "AD": 40.5, "feasibility": 100.0}},
			{Attrs: map[string]any{"BLOCK_ID": int64(2), "Block_name": "Sadiya", "AD": math.NaN(), "feasibility": nil}},
		},
	}
}

func TestFeatureCollection(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, sample()))

	var decoded struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry   map[string]any `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "FeatureCollection", decoded.Type)
	require.Len(t, decoded.Features, 2)

	first := decoded.Features[0]
	assert.Equal(t, "MultiPolygon", first.Geometry["type"])
	assert.Equal(t, "Margherita", first.Properties["Block_name"])
	assert.Equal(t, 40.5, first.Properties["AD"])

	second := decoded.Features[1]
	assert.Nil(t, second.Geometry)
	assert.Contains(t, second.Properties, "AD")
	assert.Nil(t, second.Properties["AD"], "NaN is null")
	assert.Nil(t, second.Properties["feasibility"])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))
	assert.Equal(t, "BLOCK_ID,Block_name,AD,feasibility\n1,Margherita,40.5,100\n2,Sadiya,,\n", buf.String())
}

func TestInferTypes(t *testing.T) {
	c := unit.Collection{
		Columns: []string{"int", "real", "text", "empty", "mixed"},
		Units: []unit.Unit{
			{Attrs: map[string]any{"int": int64(1), "real": 1.5, "text": "a", "empty": nil, "mixed": int64(1)}},
			{Attrs: map[string]any{"int": nil, "real": int64(2), "text": nil, "empty": math.NaN(), "mixed": "x"}},
		},
	}
	assert.Equal(t, []ColumnType{TypeInteger, TypeReal, TypeText, TypeText, TypeText}, InferTypes(c))
}

func TestEncodeEWKB(t *testing.T) {
	mp := square()
	data, err := EncodeEWKB(mp)
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	decoded, ok := g.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, SRID, decoded.SRID())
	assert.Equal(t, mp.FlatCoords(), decoded.FlatCoords())
	assert.Equal(t, 0, mp.SRID(), "source geometry untouched")

	data, err = EncodeEWKB(nil)
	assert.NoError(t, err)
	assert.Nil(t, data)
}

func TestWriteSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaf.db")
	ctx := context.Background()

	n, err := WriteSQLite(ctx, path, "units", sample())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// A second write replaces the table.
	n, err = WriteSQLite(ctx, path, "units", sample())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	conn, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer conn.Close()

	var count int
	require.NoError(t, conn.QueryRow(`SELECT count(*) FROM units`).Scan(&count))
	assert.Equal(t, 2, count)

	var (
		id    int64
		name  string
		ad    sql.NullFloat64
		geomN sql.NullInt64
	)
	require.NoError(t, conn.QueryRow(`SELECT "BLOCK_ID", "Block_name", "AD", length(geom) FROM units WHERE "BLOCK_ID" = 2`).
		Scan(&id, &name, &ad, &geomN))
	assert.Equal(t, "Sadiya", name)
	assert.False(t, ad.Valid)
	assert.False(t, geomN.Valid)

	var adType string
	require.NoError(t, conn.QueryRow(`SELECT type FROM pragma_table_info('units') WHERE name = 'AD'`).Scan(&adType))
	assert.Equal(t, "REAL", adType)
}

func TestCopyToPostgres(t *testing.T) {
	orig := stageSuffix
	stageSuffix = func() string { return "abcd1234" }
	t.Cleanup(func() { stageSuffix = orig })

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE "leaf"."units_stage_abcd1234" ("BLOCK_ID" bigint, "Block_name" text, "AD" double precision, "feasibility" double precision, "geom" geometry(MultiPolygon, 4326))`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"leaf", "units_stage_abcd1234"}, []string{"BLOCK_ID", "Block_name", "AD", "feasibility", "geom"}).
		WillReturnResult(2)
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "leaf"."units"`)).
		WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "leaf"."units_stage_abcd1234" RENAME TO "units"`)).
		WillReturnResult(pgxmock.NewResult("ALTER", 0))

	n, err := CopyToPostgres(context.Background(), mock, "leaf", "units", sample(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyToPostgres_CopyFailureDropsStage(t *testing.T) {
	orig := stageSuffix
	stageSuffix = func() string { return "ffff0000" }
	t.Cleanup(func() { stageSuffix = orig })

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE "leaf"\."units_stage_ffff0000"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"leaf", "units_stage_ffff0000"}, []string{"BLOCK_ID", "Block_name", "AD", "feasibility", "geom"}).
		WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "leaf"."units_stage_ffff0000"`)).
		WillReturnResult(pgxmock.NewResult("DROP", 0))

	_, err = CopyToPostgres(context.Background(), mock, "leaf", "units", sample(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}
