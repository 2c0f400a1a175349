package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	validator "github.com/go-playground/validator/v10"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gero-pdv/caisse/internal/backend"
	"github.com/gero-pdv/caisse/internal/cart"
	"github.com/gero-pdv/caisse/internal/pricing"
	"github.com/gero-pdv/caisse/internal/resilience"
)

type fakeQueue struct {
	requests []backend.VenteRequest
	err      error
}

func (q *fakeQueue) EnqueueVente(_ context.Context, req backend.VenteRequest) error {
	if q.err != nil {
		return q.err
	}
	q.requests = append(q.requests, req)
	return nil
}

func newTestRegistry(t *testing.T) *cart.Registry {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cart.NewRegistry(cart.NewStore(rdb, 0))
}

func newTestService(t *testing.T, baseURL string, offline OfflineQueue) (*Service, *cart.Registry) {
	t.Helper()
	registry := newTestRegistry(t)
	svc := &Service{
		Backend: &backend.Client{
			BaseURL: baseURL,
			Token:   "test-token",
			HTTP:    resilience.Client{HTTP: &http.Client{}},
		},
		Sessions: registry,
		Offline:  offline,
		Logger:   zerolog.Nop(),
		Validate: validator.New(),
	}
	return svc, registry
}

func sessionWithLine(t *testing.T, registry *cart.Registry) *cart.Session {
	t.Helper()
	session, err := registry.Create(context.Background())
	require.NoError(t, err)
	_, err = registry.Update(context.Background(), session, func(c *cart.Cart) error {
		c.AddLine(cart.Product{ID: "p1", Designation: "Stylo", Price: 33.33, Tax: 20})
		c.SetClient(cart.Client{ID: 7, Name: "Durand"})
		return nil
	})
	require.NoError(t, err)
	return session
}

func TestCreateSubmitsVenteAndClearsCart(t *testing.T) {
	var got backend.VenteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ventes", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"vente créée","data":{"id":"V-1001","total":40.00}}`))
	}))
	defer srv.Close()

	svc, registry := newTestService(t, srv.URL, nil)
	session := sessionWithLine(t, registry)

	out, err := svc.Create(context.Background(), session, Input{})
	require.NoError(t, err)
	require.Equal(t, "V-1001", out.OrderID)
	require.InDelta(t, 40.00, out.Total, 1e-9)
	require.False(t, out.Queued)
	require.True(t, out.Order.Active)

	require.Equal(t, "vente", got.Type)
	require.Equal(t, int64(7), got.ClientID)
	require.Len(t, got.Lignes, 1)
	require.InDelta(t, 40.00, got.Lignes[0].Total, 1e-9)

	snap := session.Snapshot()
	require.Empty(t, snap.Lines)
	require.Nil(t, snap.Client)
	require.Equal(t, "V-1001", snap.Order.OrderID)
}

func TestCreateUsesBackendTotalWhenProvided(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"V-2","total":39.99}}`))
	}))
	defer srv.Close()

	svc, registry := newTestService(t, srv.URL, nil)
	session := sessionWithLine(t, registry)

	out, err := svc.Create(context.Background(), session, Input{})
	require.NoError(t, err)
	require.InDelta(t, 39.99, out.Total, 1e-9)
	require.InDelta(t, 39.99, session.Snapshot().Order.Total, 1e-9)
}

func TestCreateEmptyCart(t *testing.T) {
	svc, registry := newTestService(t, "http://127.0.0.1:0", nil)
	session, err := registry.Create(context.Background())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), session, Input{})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCreateRequiresClient(t *testing.T) {
	svc, registry := newTestService(t, "http://127.0.0.1:0", nil)
	session, err := registry.Create(context.Background())
	require.NoError(t, err)
	_, err = registry.Update(context.Background(), session, func(c *cart.Cart) error {
		c.AddLine(cart.Product{ID: "p1", Price: 10, Tax: 20})
		return nil
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), session, Input{})
	require.ErrorIs(t, err, ErrNoClient)
}

func TestCreateValidationErrorKeepsCart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"données invalides","errors":{"client_id":["client inconnu"]}}`))
	}))
	defer srv.Close()

	svc, registry := newTestService(t, srv.URL, nil)
	session := sessionWithLine(t, registry)

	_, err := svc.Create(context.Background(), session, Input{})
	var verr *backend.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "client inconnu", verr.Fields["client_id"])

	snap := session.Snapshot()
	require.Len(t, snap.Lines, 1)
	require.NotNil(t, snap.Client)
	require.False(t, snap.Order.Active)
}

func TestCreateCapturesOfflineWhenBackendDown(t *testing.T) {
	queue := &fakeQueue{}
	// Nothing listens on this address; transport errors become ErrUnavailable.
	svc, registry := newTestService(t, "http://127.0.0.1:1", queue)
	session := sessionWithLine(t, registry)

	amount := 40.00
	out, err := svc.Create(context.Background(), session, Input{
		Payment: &PaymentInput{Amount: amount, AccountID: "c1", MethodID: "m1"},
	})
	require.NoError(t, err)
	require.True(t, out.Queued)
	require.Contains(t, out.OrderID, "offline-")
	require.InDelta(t, 40.00, out.Total, 1e-9)

	require.Len(t, queue.requests, 1)
	require.Len(t, queue.requests[0].Lignes, 1)
	require.NotNil(t, queue.requests[0].Paiement)
	require.InDelta(t, amount, queue.requests[0].Paiement.Montant, 1e-9)

	snap := session.Snapshot()
	require.Empty(t, snap.Lines)
	require.True(t, snap.Order.Active)
	require.True(t, snap.Order.Complete)
}

func TestCreateOfflineEnqueueFailureKeepsCart(t *testing.T) {
	queue := &fakeQueue{err: errors.New("queue down")}
	svc, registry := newTestService(t, "http://127.0.0.1:1", queue)
	session := sessionWithLine(t, registry)

	_, err := svc.Create(context.Background(), session, Input{})
	require.Error(t, err)
	require.Len(t, session.Snapshot().Lines, 1)
}

func TestCreateCreditOpensUnpaidOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req backend.VenteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, req.Credit)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"V-3"}}`))
	}))
	defer srv.Close()

	svc, registry := newTestService(t, srv.URL, nil)
	session := sessionWithLine(t, registry)

	out, err := svc.Create(context.Background(), session, Input{Credit: true})
	require.NoError(t, err)
	require.True(t, out.Order.Active)
	require.InDelta(t, 0, out.Order.Paid, 1e-9)
	require.False(t, out.Order.Complete)
}

func TestCreateRejectsInvalidPayment(t *testing.T) {
	svc, registry := newTestService(t, "http://127.0.0.1:0", nil)
	session := sessionWithLine(t, registry)

	_, err := svc.Create(context.Background(), session, Input{
		Payment: &PaymentInput{Amount: 0, AccountID: "c1", MethodID: "m1"},
	})
	require.Error(t, err)
	require.Len(t, session.Snapshot().Lines, 1)
}

func TestAddPaymentUpdatesTracker(t *testing.T) {
	var paid struct {
		VenteID string  `json:"vente_id"`
		Montant float64 `json:"montant"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ventes":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":{"id":"V-4","total":100.00}}`))
		case "/ventes-ajouter-paiement":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&paid))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"message":"paiement ajouté"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	svc, registry := newTestService(t, srv.URL, nil)
	session := sessionWithLine(t, registry)

	_, err := svc.Create(context.Background(), session, Input{Credit: true})
	require.NoError(t, err)

	status, err := svc.AddPayment(context.Background(), session, PaymentInput{
		Amount: 60, AccountID: "c1", MethodID: "m1",
	})
	require.NoError(t, err)
	require.Equal(t, "V-4", paid.VenteID)
	require.InDelta(t, 60, paid.Montant, 1e-9)
	require.InDelta(t, 60, status.Paid, 1e-9)
	require.InDelta(t, 40, status.Remaining, 1e-9)
	require.False(t, status.Complete)
}

func TestAddPaymentWithoutOrder(t *testing.T) {
	svc, registry := newTestService(t, "http://127.0.0.1:0", nil)
	session, err := registry.Create(context.Background())
	require.NoError(t, err)

	_, err = svc.AddPayment(context.Background(), session, PaymentInput{
		Amount: 10, AccountID: "c1", MethodID: "m1",
	})
	require.ErrorIs(t, err, ErrNoOrder)
}

func TestBuildVenteSendsStoredLineReductions(t *testing.T) {
	c := cart.New()
	c.AddLine(cart.Product{ID: "p1", Price: 100, Tax: 20})
	c.SetLineReduction("p1", pricing.Reduction{Amount: 10, Kind: pricing.ReductionPercent})
	c.SetGlobalReduction(5)
	c.SetClient(cart.Client{ID: 1})

	req := buildVente(c, Input{})
	require.InDelta(t, 5, req.ReductionGlobale, 1e-9)
	require.Len(t, req.Lignes, 1)
	// The suppressed line reduction still travels on the wire.
	require.InDelta(t, 10, req.Lignes[0].Reduction, 1e-9)
	require.Equal(t, backend.WireReductionPercent, req.Lignes[0].ReductionType)
}
