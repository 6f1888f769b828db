// Package names is the boundary to the external AI name-validation service.
// The service receives an ordered list of raw names and returns a
// same-length ordered list of corrections and validity verdicts.
package names

import "context"

type Result struct {
	OriginalName  string `json:"originalName"`
	CorrectedName string `json:"correctedName"`
	IsValid       bool   `json:"isValid"`
	Reason        string `json:"reason,omitempty"`
}

type Validator interface {
	ValidateNames(ctx context.Context, names []string) ([]Result, error)
}
