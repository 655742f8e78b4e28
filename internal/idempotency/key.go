// Package idempotency derives the fingerprint used to deduplicate run submissions.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"rcmos/internal/domain"
)

// Material is the semantic content of a submission that participates in the key.
type Material struct {
	Purpose      string
	PayerID      string
	ProviderNPI  string
	Business     map[string]any
	BusinessDate string
}

type canonical struct {
	BusinessDate *string        `json:"business_date"`
	Business     map[string]any `json:"business"`
	PayerID      string         `json:"payer_id"`
	ProviderNPI  *string        `json:"provider_npi"`
	Purpose      string         `json:"purpose"`
}

// Derive returns the hex sha256 of the canonical JSON form of m. Map keys
// are emitted sorted at every depth, so field order never affects the result.
func Derive(m Material) (string, error) {
	if m.Purpose == "" {
		return "", domain.Validationf("purpose is required")
	}
	if m.PayerID == "" {
		return "", domain.Validationf("payer_id is required")
	}

	business := m.Business
	if business == nil {
		business = map[string]any{}
	}

	payload, err := json.Marshal(canonical{
		BusinessDate: optional(m.BusinessDate),
		Business:     business,
		PayerID:      m.PayerID,
		ProviderNPI:  optional(m.ProviderNPI),
		Purpose:      m.Purpose,
	})
	if err != nil {
		return "", fmt.Errorf("%w: business fields are not serializable: %v", domain.ErrValidation, err)
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// MergeHints overlays caller hints on the business fields. Hints win on collision.
func MergeHints(business, hints map[string]any) map[string]any {
	merged := make(map[string]any, len(business)+len(hints))
	for k, v := range business {
		merged[k] = v
	}
	for k, v := range hints {
		merged[k] = v
	}
	return merged
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
