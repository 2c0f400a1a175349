package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gero-pdv/caisse/internal/backend"
	"github.com/gero-pdv/caisse/internal/resilience"
)

func newTestClient(srv *httptest.Server) *backend.Client {
	return &backend.Client{
		BaseURL: srv.URL,
		Token:   "test-token",
		HTTP:    resilience.Client{HTTP: srv.Client(), MaxAttempts: 2, BaseBackoff: time.Millisecond},
	}
}

func TestCreateVente(t *testing.T) {
	var got backend.VenteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ventes", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Vente enregistrée","data":{"id":"V-55","total":204.30}}`))
	}))
	defer srv.Close()

	cl := newTestClient(srv)
	resp, err := cl.CreateVente(context.Background(), backend.VenteRequest{
		Type:     backend.WireTypeSale,
		ClientID: 9,
		Lignes: []backend.VenteLine{
			{ProduitID: "a1", Quantite: 2, PrixUnitaire: 33.33, Total: 80.00},
		},
		Total: 80.00,
	})
	require.NoError(t, err)
	require.Equal(t, "V-55", resp.ID)
	require.NotNil(t, resp.Total)
	require.Equal(t, 204.30, *resp.Total)
	require.Equal(t, "Vente enregistrée", resp.Message)
	require.Equal(t, int64(9), got.ClientID)
	require.Len(t, got.Lignes, 1)
}

func TestCreateVenteValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Données invalides","errors":{"client_id":["Le client est requis"]}}`))
	}))
	defer srv.Close()

	cl := newTestClient(srv)
	_, err := cl.CreateVente(context.Background(), backend.VenteRequest{})
	var verr *backend.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "Données invalides", verr.Message)
	require.Equal(t, "Le client est requis", verr.Fields["client_id"])
}

func TestCreateVenteUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cl := newTestClient(srv)
	_, err := cl.CreateVente(context.Background(), backend.VenteRequest{})
	require.ErrorIs(t, err, backend.ErrUnavailable)
}

func TestArticles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/articles-all", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"data":[{"id":"a1","designation":"Espresso","prix":33.33,"tva":20,"unit":"piece","reference":"ESP-01","quantity":12}]}`))
	}))
	defer srv.Close()

	cl := newTestClient(srv)
	articles, err := cl.Articles(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, articles, 1)

	p := articles[0].Product()
	require.Equal(t, "Espresso", p.Designation)
	require.Equal(t, 33.33, p.Price)
	require.Equal(t, 20.0, p.Tax)
}

func TestAddPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ventes-ajouter-paiement", r.URL.Path)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "V-55", payload["vente_id"])
		require.Equal(t, 40.0, payload["montant"])
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	cl := newTestClient(srv)
	err := cl.AddPayment(context.Background(), "V-55", backend.Paiement{
		Montant:   40,
		CompteID:  "1",
		MethodeID: "espece",
	})
	require.NoError(t, err)
}

func TestSearchClients(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "dup", r.URL.Query().Get("search"))
		_, _ = w.Write([]byte(`{"data":[{"id":7,"nom":"Dupont"}]}`))
	}))
	defer srv.Close()

	cl := newTestClient(srv)
	clients, err := cl.SearchClients(context.Background(), "dup")
	require.NoError(t, err)
	require.Len(t, clients, 1)
	require.Equal(t, "Dupont", clients[0].Nom)
}
