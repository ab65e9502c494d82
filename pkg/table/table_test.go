package table

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/models"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Body   map[string]any
}

type fakeBackend struct {
	mu       sync.Mutex
	records  []map[string]any
	requests []recordedRequest
	status   int
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: map[string]string{}}
	for k := range r.URL.Query() {
		req.Query[k] = r.URL.Query().Get(k)
	}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &req.Body)
	}
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if b.status != 0 {
		w.WriteHeader(b.status)
		_, _ = w.Write([]byte(`{"error": {"message": "Invalid table", "detail": "ignored"}, "status": "failure"}`))
		return
	}

	switch r.Method {
	case http.MethodGet:
		limit, _ := strconv.Atoi(req.Query["sysparm_limit"])
		offset, _ := strconv.Atoi(req.Query["sysparm_offset"])
		end := offset + limit
		if end > len(b.records) {
			end = len(b.records)
		}
		page := []map[string]any{}
		if offset < len(b.records) {
			page = b.records[offset:end]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": page})
	case http.MethodPost:
		result := map[string]any{"sys_id": "new-id"}
		for k, v := range req.Body {
			result[k] = v
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
	case http.MethodPatch:
		result := map[string]any{"sys_id": "abc", "number": "INC0001"}
		for k, v := range req.Body {
			result[k] = v
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
	case http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	}
}

func newTestClient(t *testing.T, backend *fakeBackend, pageSize int) *Client {
	t.Helper()
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	transport, err := httpclient.NewClient(httpclient.Config{BaseURL: server.URL, Username: "admin", Password: "pw"}, logger)
	require.NoError(t, err)

	return NewClient(transport, pageSize, logger)
}

func incidents(n int) []map[string]any {
	records := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, map[string]any{
			"sys_id": fmt.Sprintf("id-%d", i),
			"number": fmt.Sprintf("INC%04d", i),
		})
	}
	return records
}

func TestList_Paging(t *testing.T) {
	backend := &fakeBackend{records: incidents(5)}
	client := newTestClient(t, backend, 2)

	records, err := client.List(context.Background(), "incident", ListOptions{
		Query:  "state=1",
		Fields: []string{"sys_id", "number"},
	})
	require.NoError(t, err)

	require.Len(t, records, 5)
	assert.Equal(t, "id-4", records[4].SysID())
	require.Len(t, backend.requests, 3)

	first := backend.requests[0]
	assert.Equal(t, "/api/now/table/incident", first.Path)
	assert.Equal(t, "state=1", first.Query["sysparm_query"])
	assert.Equal(t, "sys_id,number", first.Query["sysparm_fields"])
	assert.Equal(t, "true", first.Query["sysparm_exclude_reference_link"])
	assert.Equal(t, "0", first.Query["sysparm_offset"])
	assert.Equal(t, "2", first.Query["sysparm_limit"])
	assert.Equal(t, "2", backend.requests[1].Query["sysparm_offset"])
	assert.Equal(t, "4", backend.requests[2].Query["sysparm_offset"])
}

func TestList_Limit(t *testing.T) {
	backend := &fakeBackend{records: incidents(10)}
	client := newTestClient(t, backend, 4)

	records, err := client.List(context.Background(), "incident", ListOptions{Limit: 6})
	require.NoError(t, err)

	assert.Len(t, records, 6)
	require.Len(t, backend.requests, 2)
	assert.Equal(t, "2", backend.requests[1].Query["sysparm_limit"])
}

func TestList_ExactPageBoundary(t *testing.T) {
	backend := &fakeBackend{records: incidents(4)}
	client := newTestClient(t, backend, 2)

	records, err := client.List(context.Background(), "incident", ListOptions{})
	require.NoError(t, err)

	assert.Len(t, records, 4)
	// the third, empty page ends the listing
	assert.Len(t, backend.requests, 3)
}

func TestGet(t *testing.T) {
	t.Run("no match", func(t *testing.T) {
		client := newTestClient(t, &fakeBackend{}, 10)
		record, err := client.Get(context.Background(), "incident", "number=INC1", false)
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("no match when it must exist", func(t *testing.T) {
		client := newTestClient(t, &fakeBackend{}, 10)
		_, err := client.Get(context.Background(), "incident", "number=INC1", true)
		require.Error(t, err)
		assert.True(t, httperror.IsHTTPError(err))
		assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	})

	t.Run("single match", func(t *testing.T) {
		client := newTestClient(t, &fakeBackend{records: incidents(1)}, 10)
		record, err := client.GetByID(context.Background(), "incident", "id-0", true)
		require.NoError(t, err)
		assert.Equal(t, "INC0000", record.GetString("number"))
	})

	t.Run("ambiguous", func(t *testing.T) {
		client := newTestClient(t, &fakeBackend{records: incidents(3)}, 10)
		_, err := client.Get(context.Background(), "incident", "active=true", false)
		require.Error(t, err)
		assert.True(t, ferrors.IsAmbiguousLookup(err))
		assert.Contains(t, err.Error(), "3 records")
	})
}

func TestCreateUpdateDelete(t *testing.T) {
	backend := &fakeBackend{}
	client := newTestClient(t, backend, 10)
	ctx := context.Background()

	created, err := client.Create(ctx, "incident", models.Record{"short_description": models.String("disk full")}, false)
	require.NoError(t, err)
	assert.Equal(t, "new-id", created.SysID())
	assert.Equal(t, "disk full", created.GetString("short_description"))

	updated, err := client.Update(ctx, "incident", "abc", models.Record{
		"sys_id": models.String("abc"),
		"state":  models.String("2"),
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "2", updated.GetString("state"))
	assert.Equal(t, "INC0001", updated.GetString("number"))

	require.NoError(t, client.Delete(ctx, "incident", "abc", false))

	require.Len(t, backend.requests, 3)
	assert.Equal(t, http.MethodPost, backend.requests[0].Method)
	assert.Equal(t, http.MethodPatch, backend.requests[1].Method)
	assert.Equal(t, "/api/now/table/incident/abc", backend.requests[1].Path)
	assert.NotContains(t, backend.requests[1].Body, "sys_id")
	assert.Equal(t, http.MethodDelete, backend.requests[2].Method)
}

func TestCheckModeDoesNotCallBackend(t *testing.T) {
	backend := &fakeBackend{}
	client := newTestClient(t, backend, 10)
	ctx := context.Background()
	payload := models.Record{"state": models.String("2")}

	created, err := client.Create(ctx, "incident", payload, true)
	require.NoError(t, err)
	assert.Equal(t, payload, created)

	updated, err := client.Update(ctx, "incident", "abc", payload, true)
	require.NoError(t, err)
	assert.Equal(t, "abc", updated.SysID())
	assert.NotContains(t, payload, "sys_id")

	require.NoError(t, client.Delete(ctx, "incident", "abc", true))

	assert.Empty(t, backend.requests)
}

func TestUnexpectedStatusCarriesBackendMessage(t *testing.T) {
	client := newTestClient(t, &fakeBackend{status: http.StatusBadRequest}, 10)

	_, err := client.List(context.Background(), "nope", ListOptions{})
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	assert.Contains(t, err.Error(), "Invalid table")
}

func TestPing(t *testing.T) {
	backend := &fakeBackend{records: incidents(3)}
	client := newTestClient(t, backend, 10)

	require.NoError(t, client.Ping(context.Background(), "sys_db_object"))
	require.Len(t, backend.requests, 1)
	assert.Equal(t, "/api/now/table/sys_db_object", backend.requests[0].Path)
	assert.Equal(t, "1", backend.requests[0].Query["sysparm_limit"])
	assert.Equal(t, "sys_id", backend.requests[0].Query["sysparm_fields"])

	failing := newTestClient(t, &fakeBackend{status: http.StatusForbidden}, 10)
	err := failing.Ping(context.Background(), "sys_db_object")
	require.Error(t, err)
	assert.True(t, ferrors.IsTransportError(err))
}
