package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestRecordDocument(t *testing.T) {
	rec := newTestRecord("rec1")
	rec.Columns = []string{"region", "age", "region_table"}
	rec.Rows = [][]string{{"n", "12", "x"}, {"s", "13", "y"}}

	doc := RecordDocument(rec)
	keys := make([]string, len(doc))
	for i, e := range doc {
		keys[i] = e.Key
	}
	assert.Equal(t, []string{
		"_id", "region", "school", "ingestion_time", "activity", "filename", "registry",
		"region_table", "age", "region_table_table", "table_data",
	}, keys)

	m := make(map[string]any, len(doc))
	for _, e := range doc {
		m[e.Key] = e.Value
	}
	assert.Equal(t, "South", m["region"])
	assert.Equal(t, "2024-06-01T10:00:00Z", m["ingestion_time"])
	assert.Equal(t, bson.A{"n", "s"}, m["region_table"])
	assert.Equal(t, bson.A{"12", "13"}, m["age"])

	rows, ok := m["table_data"].(bson.A)
	require.True(t, ok)
	require.Len(t, rows, 2)
	first := rows[0].(bson.D)
	assert.Equal(t, bson.D{{Key: "region", Value: "n"}, {Key: "age", Value: "12"}, {Key: "region_table", Value: "x"}}, first)
}

func TestMongoConfig_Defaults(t *testing.T) {
	var cfg MongoConfig
	cfg.applyDefaults()
	assert.Equal(t, "data_quality_service", cfg.Database)
	assert.Equal(t, "records", cfg.Collection)
	assert.Equal(t, 3, cfg.RetryAttempts)
}
