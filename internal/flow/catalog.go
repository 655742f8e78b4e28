package flow

import "rcmos/internal/domain"

// ForPurpose returns the portal flow used for runs of purpose. Unknown
// purposes get a single no-op step.
func ForPurpose(purpose string) Definition {
	switch purpose {
	case "eligibility":
		return Definition{
			FlowID: "eligibility-portal",
			Steps: []domain.Step{
				{"op": "open_portal"},
				{"op": "login"},
				{"op": "search_member", "when": "input.member_id != nil"},
				{"op": "capture_coverage"},
			},
		}
	case "claim_status":
		return Definition{
			FlowID: "claim-status-portal",
			Steps: []domain.Step{
				{"op": "open_portal"},
				{"op": "login"},
				{"op": "search_claim", "when": "input.claim_id != nil"},
				{"op": "search_patient", "when": "input.claim_id == nil"},
				{"op": "capture_status"},
			},
		}
	default:
		return Definition{
			FlowID: purpose,
			Steps:  []domain.Step{{"op": "noop"}},
		}
	}
}
