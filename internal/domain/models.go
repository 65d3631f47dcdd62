package domain

import "time"

// TokenState is the persisted marketplace OAuth token pair.
type TokenState struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresIn    int       `json:"expires_in,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Merge applies the non-empty fields of other over s and returns the result.
// A refresh response that omits the refresh token keeps the old one.
func (s TokenState) Merge(other TokenState) TokenState {
	out := s
	if other.AccessToken != "" {
		out.AccessToken = other.AccessToken
	}
	if other.RefreshToken != "" {
		out.RefreshToken = other.RefreshToken
	}
	if other.ExpiresIn != 0 {
		out.ExpiresIn = other.ExpiresIn
	}
	if !other.UpdatedAt.IsZero() {
		out.UpdatedAt = other.UpdatedAt
	} else {
		out.UpdatedAt = time.Now().UTC()
	}
	return out
}

// VariantQuote is one size/price fact fetched from the marketplace.
// AskPrice is nil when the marketplace has no current ask for the size.
type VariantQuote struct {
	SizeEU               string
	SizeUS               string
	AskPrice             *float64
	MarketplaceVariantID string
}

// HasAsk reports whether the marketplace had a sellable ask for this size.
func (q VariantQuote) HasAsk() bool {
	return q.AskPrice != nil
}

// ProductPriceSnapshot is the immutable fetched-and-normalized price data
// for one SKU at one point in time.
type ProductPriceSnapshot struct {
	Title    string
	SKU      string
	ImageURL string
	Brand    string
	Variants []VariantQuote
}

// StorefrontVariant is a variant node as currently stored in the catalog.
type StorefrontVariant struct {
	ID              string
	Price           float64
	SKU             string
	InventoryItemID string
	Size            string
}

// DesiredVariant is one target size/price the storefront should converge to.
type DesiredVariant struct {
	Size  string
	Price float64
}

// PriceUpdate pairs an existing variant with its refreshed price.
type PriceUpdate struct {
	Variant StorefrontVariant
	Price   float64
}

// ReconciliationPlan is the per-run diff between existing and desired
// variant sets. A size present in both sets is an update, never a
// create+delete pair.
type ReconciliationPlan struct {
	ToCreate      []DesiredVariant
	ToUpdatePrice []PriceUpdate
	ToDelete      []StorefrontVariant
	DesiredOrder  []string
}

// Empty reports whether applying the plan would change nothing.
func (p ReconciliationPlan) Empty() bool {
	return len(p.ToCreate) == 0 && len(p.ToUpdatePrice) == 0 && len(p.ToDelete) == 0
}

// SyncStatus is the outcome class of one product reconciliation.
type SyncStatus string

const (
	SyncCreated SyncStatus = "created"
	SyncUpdated SyncStatus = "updated"
	SyncSkipped SyncStatus = "skipped"
	SyncError   SyncStatus = "error"
)

// SyncResult is the structured outcome of one reconciliation run.
type SyncResult struct {
	Status       SyncStatus `json:"status"`
	SKU          string     `json:"sku,omitempty"`
	Title        string     `json:"title,omitempty"`
	VariantCount int        `json:"variant_count,omitempty"`
	Message      string     `json:"message,omitempty"`
}
