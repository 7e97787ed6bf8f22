package reportquery

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/playreport/api/pkg/domain/report"
	"github.com/playreport/api/pkg/domain/scope"
)

// fingerprintVersion changes whenever the fingerprint input changes shape,
// so entries written by older builds stop matching.
const fingerprintVersion = "v1"

type fingerprintInput struct {
	Version    string                     `json:"v"`
	TemplateID string                     `json:"t"`
	Columns    []string                   `json:"c"`
	Filters    []report.ReportFilter      `json:"f"`
	GroupBy    []string                   `json:"g"`
	OrderBy    []report.OrderBy           `json:"o"`
	PageNumber int                        `json:"pn"`
	PageSize   int                        `json:"ps"`
	Scope      []scope.MandatoryPredicate `json:"s"`
}

// Fingerprint identifies a request as seen by one resolved scope. Callers
// with different scopes never share a fingerprint, even for identical
// request text.
func Fingerprint(req report.ReportRequest, scopePreds []scope.MandatoryPredicate) (string, error) {
	in := fingerprintInput{
		Version:    fingerprintVersion,
		TemplateID: req.TemplateID,
		Columns:    nonNil(req.Columns),
		Filters:    nonNil(req.Filters),
		GroupBy:    nonNil(req.GroupBy),
		OrderBy:    nonNil(req.OrderBy),
		PageNumber: req.PageNumber,
		PageSize:   req.PageSize,
		Scope:      nonNil(scopePreds),
	}

	data, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("encode fingerprint: %w", err)
	}
	sum := sha256.Sum256(data)
	return req.TemplateID + ":" + hex.EncodeToString(sum[:]), nil
}

// nonNil makes nil and empty slices encode the same way.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
