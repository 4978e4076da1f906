package handler

import (
	"strings"

	id "permitpulse/pkg/domain"
	dErrors "permitpulse/pkg/domain-errors"
)

// CheckRequest is the HTTP request body for POST /address-checks.
type CheckRequest struct {
	Address  string         `json:"address"`
	CityCode string         `json:"city_code"`
	Context  map[string]any `json:"context"`

	// Parsed values (populated by Validate)
	parsedCity id.CityCode
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CheckRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Address = strings.TrimSpace(r.Address)
	if r.Address == "" {
		return dErrors.New(dErrors.CodeValidation, "address is required")
	}
	if len(r.Address) > 255 {
		return dErrors.New(dErrors.CodeValidation, "address must be at most 255 characters")
	}

	city, err := id.ParseCityCode(r.CityCode)
	if err != nil {
		return err
	}
	r.parsedCity = city

	if r.Context == nil {
		r.Context = map[string]any{}
	}
	return nil
}

// ParsedCity returns the validated city code.
func (r *CheckRequest) ParsedCity() id.CityCode {
	return r.parsedCity
}
