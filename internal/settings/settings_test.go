package settings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &Service{
		Client:   rdb,
		Defaults: Features{TicketPrinting: true, Reductions: true},
	}
}

func TestGetReturnsDefaultsWhenUnset(t *testing.T) {
	svc := newTestService(t)
	f, err := svc.Get(context.Background())
	require.NoError(t, err)
	require.True(t, f.TicketPrinting)
	require.True(t, f.Reductions)
	require.False(t, f.PriceEditing)
}

func TestSetPersistsToggle(t *testing.T) {
	svc := newTestService(t)

	f, err := svc.Set(context.Background(), FeaturePriceEditing, true)
	require.NoError(t, err)
	require.True(t, f.PriceEditing)
	// Defaults carry over into the first persisted flag set.
	require.True(t, f.TicketPrinting)

	f, err = svc.Get(context.Background())
	require.NoError(t, err)
	require.True(t, f.PriceEditing)

	f, err = svc.Set(context.Background(), FeaturePriceEditing, false)
	require.NoError(t, err)
	require.False(t, f.PriceEditing)
}

func TestSetUnknownFeature(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Set(context.Background(), "telepathy", true)
	require.ErrorIs(t, err, ErrUnknownFeature)
}

func TestHandlerToggle(t *testing.T) {
	h := &Handler{Service: newTestService(t)}
	r := chi.NewRouter()
	h.Routes(r)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/settings/autoTicketPrinting", strings.NewReader(`{"enabled":true}`))
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"autoTicketPrinting":true`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"autoTicketPrinting":true`)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/settings/telepathy", strings.NewReader(`{"enabled":true}`))
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
