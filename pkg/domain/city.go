package domain

import (
	"strings"

	dErrors "permitpulse/pkg/domain-errors"
)

// CityCode identifies a supported jurisdiction.
type CityCode string

const (
	CityNYC CityCode = "NYC"
	CityLA  CityCode = "LA"
	CitySF  CityCode = "SF"
)

var cityNames = map[CityCode]string{
	CityNYC: "New York City",
	CityLA:  "Los Angeles",
	CitySF:  "San Francisco",
}

// SupportedCities returns the fixed registry in canonical order.
func SupportedCities() []CityCode {
	return []CityCode{CityNYC, CityLA, CitySF}
}

// ParseCityCode accepts any casing and surrounding whitespace.
func ParseCityCode(s string) (CityCode, error) {
	code := CityCode(strings.ToUpper(strings.TrimSpace(s)))
	if code == "" {
		return "", dErrors.New(dErrors.CodeValidation, "city_code is required")
	}
	if _, ok := cityNames[code]; !ok {
		return "", dErrors.New(dErrors.CodeValidation, "unsupported city_code: "+string(code))
	}
	return code, nil
}

func (c CityCode) String() string { return string(c) }

// Name returns the display name, or the code itself for unknown cities.
func (c CityCode) Name() string {
	if name, ok := cityNames[c]; ok {
		return name
	}
	return string(c)
}

// IsSupported reports whether c is a registered city.
func (c CityCode) IsSupported() bool {
	_, ok := cityNames[c]
	return ok
}
