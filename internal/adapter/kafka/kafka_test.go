package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/config"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2025, 9, 12, 15, 10, 0, 0, time.UTC)
	rec := domain.DistrictCount{
		Ubigeo:      "150101",
		Name:        "LIMA",
		Department:  "LIMA",
		Hospitals:   3,
		GeneratedAt: now,
	}

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	assert.Equal(t, []byte("150101"), msg.Key)
	assert.JSONEq(t,
		`{"ubigeo":"150101","name":"LIMA","department":"LIMA","n_hospitales":3,"generated_at":"2025-09-12T15:10:00Z"}`,
		string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "department", msg.Headers[0].Key)
	assert.Equal(t, []byte("LIMA"), msg.Headers[0].Value)
	assert.Equal(t, "generated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestSerializeToMessage_ZeroHospitals(t *testing.T) {
	msg, err := serializeToMessage(domain.DistrictCount{Ubigeo: "150103", Name: "ATE"})
	require.NoError(t, err)

	assert.Contains(t, string(msg.Value), `"n_hospitales":0`)
	assert.NotContains(t, string(msg.Value), `"department"`)
	assert.Empty(t, msg.Headers[0].Value)
}

func TestExportDistricts_EmptyIsNoop(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"127.0.0.1:1"}, KafkaTopic: "unused"}
	e := NewExporter(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = e.Close() })

	assert.NoError(t, e.ExportDistricts(context.Background(), nil))
}
