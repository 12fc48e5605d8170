package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/driftsearch/snaprestore/internal/allocation"
	"github.com/driftsearch/snaprestore/internal/cluster"
	"github.com/driftsearch/snaprestore/internal/config"
	"github.com/driftsearch/snaprestore/internal/features"
	"github.com/driftsearch/snaprestore/internal/health"
	"github.com/driftsearch/snaprestore/internal/model"
	"github.com/driftsearch/snaprestore/internal/repository"
	"github.com/driftsearch/snaprestore/internal/service"
	"github.com/driftsearch/snaprestore/internal/store"
	"github.com/driftsearch/snaprestore/internal/util/workerpool"
)

func newTestServer(t *testing.T) (*Server, *store.InMemoryHistoryStore) {
	t.Helper()
	logger := zap.NewNop()

	initial := model.NewClusterState("node-1")
	initial.Nodes["node-1"] = model.Node{
		ID: "node-1", Name: "node-1", FormatVersion: 2, MinCompatibleVersion: 1, DataNode: true,
	}
	state := cluster.NewStateService(initial, logger)
	t.Cleanup(state.Stop)

	pool := workerpool.New(&workerpool.Config{Name: "test-fetch", MaxWorkers: 2, QueueSize: 16, Logger: logger})
	t.Cleanup(pool.Stop)

	repo := repository.NewMemoryRepository("repo-1", "repo-uuid-1")
	repo.AddSnapshot(model.SnapshotInfo{
		ID:            model.SnapshotID{Name: "snap-1", UUID: "uuid-snap-1"},
		State:         model.SnapshotStateSuccess,
		FormatVersion: 2,
		Indices:       []string{"logs-2024"},
	}, model.GlobalMetadata{}, []model.IndexMetadata{{
		Name:           "logs-2024",
		UUID:           "snap-uuid",
		State:          model.IndexStateOpen,
		NumberOfShards: 1,
		Settings: model.Settings{
			model.SettingNumberOfShards: "1",
			model.SettingVersionCreated: "1",
		},
		PrimaryTerms: []int64{1},
	}})

	registry := features.NewRegistry(nil)
	resolver := service.NewResolverService(repository.NewMemoryService(repo), registry, pool, false, logger)
	restores := service.NewRestoreService(
		state, resolver, allocation.NewRoundRobinAllocator(logger),
		service.NewDefaultSettingsPolicy(), service.StaticShardLimiter{}, registry, nil, logger)

	history := store.NewInMemoryHistoryStore()
	restoreHandler := NewRestoreHandler(restores, history, 5*time.Second, logger)
	checker := health.NewChecker(nil, history, logger)
	server := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0}, restoreHandler, checker, logger)
	return server, history
}

func TestStartRestoreEndpoint_Accepted(t *testing.T) {
	server, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"repository": "repo-1",
		"snapshot":   "snap-1",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/restores", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var handle service.RestoreHandle
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &handle))
	assert.NotEmpty(t, handle.RestoreID)
}

func TestStartRestoreEndpoint_MalformedBody(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/restores", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartRestoreEndpoint_UnknownSnapshot(t *testing.T) {
	server, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"repository": "repo-1",
		"snapshot":   "missing",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/restores", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp errorResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotZero(t, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "snapshot does not exist")
}

func TestGetRestoreEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"repository": "repo-1",
		"snapshot":   "snap-1",
	})
	start := httptest.NewRequest(http.MethodPost, "/v1/restores", bytes.NewReader(body))
	startRec := httptest.NewRecorder()
	server.Router().ServeHTTP(startRec, start)
	assert.Equal(t, http.StatusAccepted, startRec.Code)

	var handle service.RestoreHandle
	assert.NoError(t, json.Unmarshal(startRec.Body.Bytes(), &handle))

	req := httptest.NewRequest(http.MethodGet, "/v1/restores/"+handle.RestoreID, nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var op model.RestoreOperation
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &op))
	assert.Equal(t, handle.RestoreID, op.ID)
	assert.Len(t, op.Shards, 1)
}

func TestGetRestoreEndpoint_NotFound(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/restores/unknown-id", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRestoringIndicesEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]interface{}{
		"repository": "repo-1",
		"snapshot":   "snap-1",
	})
	start := httptest.NewRequest(http.MethodPost, "/v1/restores", bytes.NewReader(body))
	startRec := httptest.NewRecorder()
	server.Router().ServeHTTP(startRec, start)
	assert.Equal(t, http.StatusAccepted, startRec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/restores/indices?index=logs-2024&index=other", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Indices []string `json:"indices"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"logs-2024"}, resp.Indices)
}

func TestHistoryEndpoints(t *testing.T) {
	server, history := newTestServer(t)

	op := model.RestoreOperation{
		ID:    "restore-1",
		State: model.RestoreStateSuccess,
		Shards: map[model.ShardID]model.ShardRestoreStatus{
			{Index: "logs-2024", Shard: 0}: {State: model.RestoreStateSuccess},
		},
	}
	assert.NoError(t, history.SaveCompleted(context.Background(), op, time.Now().UTC()))

	listReq := httptest.NewRequest(http.MethodGet, "/v1/restores/history", nil)
	listRec := httptest.NewRecorder()
	server.Router().ServeHTTP(listRec, listReq)
	assert.Equal(t, http.StatusOK, listRec.Code)

	var listResp struct {
		Restores []*store.ArchivedRestore `json:"restores"`
	}
	assert.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listResp))
	assert.Len(t, listResp.Restores, 1)

	getReq := httptest.NewRequest(http.MethodGet, "/v1/restores/history/restore-1", nil)
	getRec := httptest.NewRecorder()
	server.Router().ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)

	missingReq := httptest.NewRequest(http.MethodGet, "/v1/restores/history/other", nil)
	missingRec := httptest.NewRecorder()
	server.Router().ServeHTTP(missingRec, missingReq)
	assert.Equal(t, http.StatusNotFound, missingRec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	live := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	liveRec := httptest.NewRecorder()
	server.Router().ServeHTTP(liveRec, live)
	assert.Equal(t, http.StatusOK, liveRec.Code)

	ready := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	readyRec := httptest.NewRecorder()
	server.Router().ServeHTTP(readyRec, ready)
	assert.Equal(t, http.StatusOK, readyRec.Code)
}
