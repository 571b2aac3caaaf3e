package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDB struct{ err error }

func (d fakeDB) Ping(context.Context) error { return d.err }

type fakeGateway struct{}

func (fakeGateway) Latency() time.Duration { return 42 * time.Millisecond }

func (fakeGateway) Guilds() []*discordgo.Guild {
	return []*discordgo.Guild{{ID: "g1"}, {ID: "g2"}}
}

func get(t *testing.T, db Database) (*httptest.ResponseRecorder, Status) {
	t.Helper()
	server := NewServer(":0", db, fakeGateway{}, zap.NewNop())
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	return rec, status
}

func TestHealthOK(t *testing.T) {
	rec, status := get(t, fakeDB{})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, int64(42), status.LatencyMS)
	assert.Equal(t, 2, status.Guilds)
}

func TestHealthDegradedWhenDatabaseDown(t *testing.T) {
	rec, status := get(t, fakeDB{err: errors.New("connection refused")})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "connection refused", status.Database)
}
