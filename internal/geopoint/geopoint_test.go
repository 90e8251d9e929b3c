package geopoint

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"survey-map/internal/fieldpath"
	"survey-map/internal/logger"
	"survey-map/internal/submission"
)

func init() { logger.Discard() }

func parseRecords(t *testing.T, raw string) []submission.Record {
	t.Helper()
	var recs []submission.Record
	require.NoError(t, json.Unmarshal([]byte(raw), &recs))
	return recs
}

func TestExtract(t *testing.T) {
	t.Run("swaps lon/lat and drops missing coordinates", func(t *testing.T) {
		recs := []submission.Record{
			submission.FromMap(map[string]any{"__id": "a", "G6": map[string]any{"Q9_5": map[string]any{"coordinates": []any{79.8, 6.9}}}}),
			submission.FromMap(map[string]any{"__id": "b", "G6": map[string]any{}}),
		}
		pts := Extract(recs, "G6/Q9_5")
		assert.Equal(t, []GeoPoint{{ID: "a", Lat: 6.9, Lon: 79.8}}, pts)
	})

	t.Run("no geopoint field yields empty list", func(t *testing.T) {
		recs := parseRecords(t, `[{"__id":"a","G6":{"Q9_5":{"coordinates":[79.8,6.9]}}}]`)
		pts := Extract(recs, "")
		assert.NotNil(t, pts)
		assert.Empty(t, pts)

		b, _ := json.Marshal(pts)
		assert.Equal(t, "[]", string(b))
	})

	t.Run("leading slash path from schema", func(t *testing.T) {
		recs := parseRecords(t, `[{"__id":"a","G6":{"Q9_5":{"type":"Point","coordinates":[79.8,6.9,12.5,5]}}}]`)
		assert.Equal(t, Extract(recs, "G6/Q9_5"), Extract(recs, "/G6/Q9_5"))
		assert.Len(t, Extract(recs, "/G6/Q9_5"), 1)
	})

	t.Run("malformed shapes are filtered, order preserved", func(t *testing.T) {
		recs := parseRecords(t, `[
			{"__id":"1","g":{"coordinates":[10,20]}},
			{"__id":"2","g":{"coordinates":["10","20"]}},
			{"__id":"3","g":{"coordinates":[10]}},
			{"__id":"4","g":{"coordinates":null}},
			{"__id":"5","g":null},
			{"__id":"6","g":"POINT(10 20)"},
			{"__id":"7","g":{"coordinates":{"0":10,"1":20}}},
			{"__id":"8","g":{"coordinates":[1e400,20]}},
			{"__id":"9","g":{"coordinates":[10,95]}},
			{"__id":"10","g":{"coordinates":[-181,0]}},
			{"__id":"11","g":{"coordinates":[-180,-90]}},
			{"__id":"12"},
			{"__id":"13","g":{"coordinates":[30.5,-1.25]}}
		]`)
		pts := Extract(recs, "g")
		assert.Equal(t, []GeoPoint{
			{ID: "1", Lat: 20, Lon: 10},
			{ID: "11", Lat: -90, Lon: -180},
			{ID: "13", Lat: -1.25, Lon: 30.5},
		}, pts)
	})

	t.Run("output always finite and in range", func(t *testing.T) {
		var recs []submission.Record
		vals := []float64{0, 45, -45, 90, -90, 180, -180, 200, -200, math.Inf(1), math.NaN()}
		for i, lon := range vals {
			for _, lat := range vals {
				n := fieldpath.NewObject().
					Set("__id", fieldpath.NewString(string(rune('a'+i)))).
					Set("loc", fieldpath.NewObject().Set("coordinates", fieldpath.NewArray(fieldpath.NewNumber(lon), fieldpath.NewNumber(lat))))
				recs = append(recs, submission.NewRecord(n))
			}
		}
		pts := Extract(recs, "loc")
		require.NotEmpty(t, pts)
		for _, p := range pts {
			assert.False(t, math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0))
			assert.False(t, math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0))
			assert.True(t, p.Lat >= -90 && p.Lat <= 90)
			assert.True(t, p.Lon >= -180 && p.Lon <= 180)
		}
	})
}

func TestExtractEntities(t *testing.T) {
	recs := parseRecords(t, `[
		{"__id":"a","__system":{"reviewState":"approved"},"G6":{"Q9_5":{"coordinates":[79.8,6.9]}},"name":"site A"},
		{"__id":"b","G6":{}}
	]`)
	ents := ExtractEntities(recs, "/G6/Q9_5")
	require.Len(t, ents, 1)
	assert.Equal(t, GeoPoint{ID: "a", Lat: 6.9, Lon: 79.8}, ents[0].GeoPoint)
	assert.Equal(t, Extract(recs, "/G6/Q9_5"), []GeoPoint{ents[0].GeoPoint})

	b, err := json.Marshal(ents[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a","lat":6.9,"lon":79.8,"fullData":{"__id":"a","__system":{"reviewState":"approved"},"G6":{"Q9_5":{"coordinates":[79.8,6.9]}},"name":"site A"}}`, string(b))

	assert.Empty(t, ExtractEntities(recs, ""))
}

func TestParse(t *testing.T) {
	v, err := fieldpath.Parse([]byte(`{"type":"Point","coordinates":[79.84,6.93]}`))
	require.NoError(t, err)
	lat, lon, ok := Parse(v)
	assert.True(t, ok)
	assert.Equal(t, 6.93, lat)
	assert.Equal(t, 79.84, lon)

	_, _, ok = Parse(nil)
	assert.False(t, ok)
}

func TestToFeatureCollection(t *testing.T) {
	b, err := json.Marshal(ToFeatureCollection([]GeoPoint{{ID: "a", Lat: 6.9, Lon: 79.8}}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[79.8,6.9]},"properties":{"id":"a"}}
	]}`, string(b))

	b, err = json.Marshal(ToFeatureCollection(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(b))
}
