package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockbot/gostock/internal/domain"
	"github.com/stockbot/gostock/internal/store"
	"github.com/stockbot/gostock/pkg/config"
	"github.com/stockbot/gostock/pkg/persistence"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(persistence.NewJSONFileStore(filepath.Join(t.TempDir(), "state.json")))
	require.NoError(t, err)
	return st
}

func TestArchiveSyncAndQuery(t *testing.T) {
	st := newTestStore(t)
	_, err := st.SaveExecution("20260824", "005930", domain.ExecutionRecord{
		Side: domain.SideBuy, Quantity: 124, Price: 8010, Time: "100001", OrderNo: "71",
	})
	require.NoError(t, err)
	_, err = st.SaveExecution("20260824", "005930", domain.ExecutionRecord{
		Side: domain.SideSell, Quantity: 37, Price: 8290, Time: "110001", OrderNo: "88",
	})
	require.NoError(t, err)
	_, err = st.SaveExecution("20260824", "000660", domain.ExecutionRecord{
		Side: domain.SideBuy, Quantity: 10, Price: 120000, Time: "100500", OrderNo: "99",
	})
	require.NoError(t, err)

	a, err := OpenArchive(filepath.Join(t.TempDir(), "executions.db"))
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	require.NoError(t, a.SyncFrom(ctx, st, "20260824"))
	// 重复同步不产生重复行
	require.NoError(t, a.SyncFrom(ctx, st, "20260824"))

	all, err := a.Query(ctx, "20260824", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	samsung, err := a.Query(ctx, "20260824", "005930")
	require.NoError(t, err)
	require.Len(t, samsung, 2)
	assert.Equal(t, "100001", samsung[0].Time)
	assert.Equal(t, int64(8010), samsung[0].Price)

	empty, err := a.Query(ctx, "20260823", "")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

type fakeDeposit struct{}

func (fakeDeposit) DepositDetail(ctx context.Context) (domain.DepositDetail, error) {
	return domain.DepositDetail{Deposit: 10_000_000, OrderAvailable: 8_000_000}, nil
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st := newTestStore(t)
	srv, err := New(config.MonitorConfig{
		Listen: "127.0.0.1:0",
		DBPath: filepath.Join(t.TempDir(), "executions.db"),
	}, st, fakeDeposit{})
	require.NoError(t, err)
	t.Cleanup(func() { srv.archive.Close() })
	return srv, st
}

func TestRouterEndpoints(t *testing.T) {
	srv, st := newTestServer(t)
	require.NoError(t, st.UpdatePosition("005930", func(p *domain.Position) {
		p.Name = "삼성전자"
		p.Quantity = 124
		p.AvgPrice = 8050
	}))
	router := srv.router()

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, get("/healthz").Code)

	w := get("/api/positions/005930")
	require.Equal(t, http.StatusOK, w.Code)
	var pos domain.Position
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pos))
	assert.Equal(t, int64(124), pos.Quantity)

	assert.Equal(t, http.StatusNotFound, get("/api/positions/999999").Code)
	assert.Equal(t, http.StatusOK, get("/api/pending_orders").Code)
	assert.Equal(t, http.StatusOK, get("/api/session").Code)
	assert.Equal(t, http.StatusOK, get("/api/watchlist").Code)

	// date 必填
	assert.Equal(t, http.StatusBadRequest, get("/api/executions").Code)
	assert.Equal(t, http.StatusOK, get("/api/executions?date=20260824").Code)

	w = get("/api/deposit")
	require.Equal(t, http.StatusOK, w.Code)
	var dep domain.DepositDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dep))
	assert.Equal(t, int64(10_000_000), dep.Deposit)
}
