package backend

import (
	"encoding/json"

	"github.com/gero-pdv/caisse/internal/cart"
	"github.com/gero-pdv/caisse/internal/pricing"
)

// Wire values for reduction kinds and order types used by the backend.
const (
	WireReductionPercent = "pourcentage"
	WireReductionFixed   = "fixe"
	WireTypeSale         = "vente"
	WireTypeReturn       = "retour"
)

// VenteLine is one order line as submitted to the backend.
type VenteLine struct {
	ProduitID     string  `json:"produit_id"`
	Quantite      int     `json:"quantite"`
	PrixUnitaire  float64 `json:"prix_unitaire"`
	Reduction     float64 `json:"reduction"`
	ReductionType string  `json:"reduction_type,omitempty"`
	Total         float64 `json:"total"`
}

// Paiement is the payment block attached to an order or sent as a follow-up
// payment. DatePrevue and CheckReference apply to deferred instruments.
type Paiement struct {
	Montant        float64 `json:"montant"`
	CompteID       string  `json:"compte_id"`
	MethodeID      string  `json:"methode_paiement_id"`
	Note           string  `json:"note,omitempty"`
	DatePrevue     string  `json:"date_prevu,omitempty"`
	CheckReference string  `json:"check_reference,omitempty"`
}

// VenteRequest is the create-order payload.
type VenteRequest struct {
	Type             string      `json:"type"`
	ClientID         int64       `json:"client_id"`
	Lignes           []VenteLine `json:"lignes"`
	ReductionGlobale float64     `json:"reduction_globale"`
	Total            float64     `json:"total"`
	Paiement         *Paiement   `json:"paiement,omitempty"`
	Credit           bool        `json:"credit,omitempty"`
}

// VenteResponse is the backend's answer to a created order. Total and Ticket
// are optional; a missing total means the locally computed one stands.
type VenteResponse struct {
	Message string          `json:"message"`
	ID      string          `json:"id"`
	Total   *float64        `json:"total,omitempty"`
	Ticket  json.RawMessage `json:"ticket,omitempty"`
}

// Article is a catalog product as served by the backend.
type Article struct {
	ID          string  `json:"id"`
	Designation string  `json:"designation"`
	Prix        float64 `json:"prix"`
	TVA         float64 `json:"tva"`
	Unit        string  `json:"unit"`
	Reference   string  `json:"reference"`
	Quantity    float64 `json:"quantity"`
}

// Product converts the wire article into the cart's product shape.
func (a Article) Product() cart.Product {
	return cart.Product{
		ID:          a.ID,
		Designation: a.Designation,
		Price:       a.Prix,
		Tax:         a.TVA,
		Unit:        a.Unit,
		Reference:   a.Reference,
		OnHand:      a.Quantity,
	}
}

// ClientRecord is a customer directory entry.
type ClientRecord struct {
	ID  int64  `json:"id"`
	Nom string `json:"nom"`
}

// Compte is a payment account.
type Compte struct {
	ID  string `json:"id"`
	Nom string `json:"nom"`
}

// MethodePaiement is a payment method.
type MethodePaiement struct {
	ID  string `json:"id"`
	Nom string `json:"nom"`
}

// WireReduction maps an engine reduction kind onto the backend vocabulary.
func WireReduction(k pricing.ReductionKind) string {
	switch k {
	case pricing.ReductionPercent:
		return WireReductionPercent
	case pricing.ReductionFixed:
		return WireReductionFixed
	default:
		return ""
	}
}

// WireOrderType maps the cart order type onto the backend vocabulary.
func WireOrderType(t cart.OrderType) string {
	if t == cart.OrderReturn {
		return WireTypeReturn
	}
	return WireTypeSale
}
