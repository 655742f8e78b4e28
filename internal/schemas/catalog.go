// Package schemas publishes the JSON schemas of the per-purpose run inputs
// and results.
package schemas

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3gen"
)

type EligibilityInput struct {
	PayerID          string  `json:"payer_id"`
	ProviderNPI      string  `json:"provider_npi"`
	MemberID         string  `json:"member_id"`
	PatientLastName  string  `json:"patient_last_name"`
	PatientFirstName *string `json:"patient_first_name,omitempty"`
	PatientDOB       string  `json:"patient_dob"`
	ServiceDate      string  `json:"service_date"`
	ServiceTypeCode  *string `json:"service_type_code,omitempty"`
}

type EligibilityResponse struct {
	CorrelationID string         `json:"correlation_id"`
	MemberID      string         `json:"member_id"`
	Payer         string         `json:"payer"`
	PlanName      *string        `json:"plan_name,omitempty"`
	Coverage      map[string]any `json:"coverage"`
	Copay         map[string]any `json:"copay,omitempty"`
	Deductible    map[string]any `json:"deductible,omitempty"`
	AsOf          string         `json:"as_of"`
	Source        string         `json:"source"`
	TraceID       string         `json:"trace_id"`
}

type ClaimStatusInput struct {
	PayerID         string  `json:"payer_id"`
	ProviderNPI     string  `json:"provider_npi"`
	ClaimID         *string `json:"claim_id,omitempty"`
	PatientLastName *string `json:"patient_last_name,omitempty"`
	PatientDOB      *string `json:"patient_dob,omitempty"`
	FromDate        string  `json:"from_date"`
	ToDate          string  `json:"to_date"`
}

type ClaimStatusResponse struct {
	CorrelationID string           `json:"correlation_id"`
	Status        string           `json:"status"`
	PaidAmount    *float64         `json:"paid_amount,omitempty"`
	Denials       []map[string]any `json:"denials,omitempty"`
	LastUpdate    *string          `json:"last_update,omitempty"`
	Source        string           `json:"source"`
	TraceID       string           `json:"trace_id"`
}

// Catalog is the schema set keyed by model name.
type Catalog map[string]*openapi3.SchemaRef

var models = []struct {
	name  string
	value any
}{
	{"EligibilityInput", EligibilityInput{}},
	{"EligibilityResponse", EligibilityResponse{}},
	{"ClaimStatusInput", ClaimStatusInput{}},
	{"ClaimStatusResponse", ClaimStatusResponse{}},
}

func Build() (Catalog, error) {
	catalog := make(Catalog, len(models))
	for _, m := range models {
		ref, err := openapi3gen.NewSchemaRefForValue(m.value, openapi3.Schemas{},
			openapi3gen.SchemaCustomizer(markRequired))
		if err != nil {
			return nil, fmt.Errorf("failed to generate schema for %s: %w", m.name, err)
		}
		ref.Value.Title = m.name
		catalog[m.name] = ref
	}
	return catalog, nil
}

// markRequired lists every non-pointer field without omitempty as required.
func markRequired(name string, t reflect.Type, tag reflect.StructTag, schema *openapi3.Schema) error {
	if t.Kind() != reflect.Struct {
		return nil
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		jsonName, opts, _ := strings.Cut(field.Tag.Get("json"), ",")
		if jsonName == "" || jsonName == "-" {
			continue
		}
		if field.Type.Kind() == reflect.Pointer || strings.Contains(opts, "omitempty") {
			continue
		}
		schema.Required = append(schema.Required, jsonName)
	}
	return nil
}
