// Package domain holds identifier and value types shared across bounded contexts.
//
// Typed IDs keep a snapshot ID from being passed where an event ID is expected;
// the compiler enforces what a bare uuid.UUID cannot.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "permitpulse/pkg/domain-errors"
)

type (
	OrganizationID uuid.UUID
	SnapshotID     uuid.UUID
	CheckID        uuid.UUID
	EventID        uuid.UUID
	RollbackID     uuid.UUID
	AlertID        uuid.UUID
	MetricID       uuid.UUID
)

func (id OrganizationID) String() string { return uuid.UUID(id).String() }
func (id OrganizationID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SnapshotID) String() string     { return uuid.UUID(id).String() }
func (id SnapshotID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id CheckID) String() string        { return uuid.UUID(id).String() }
func (id CheckID) IsNil() bool           { return uuid.UUID(id) == uuid.Nil }
func (id EventID) String() string        { return uuid.UUID(id).String() }
func (id EventID) IsNil() bool           { return uuid.UUID(id) == uuid.Nil }
func (id RollbackID) String() string     { return uuid.UUID(id).String() }
func (id AlertID) String() string        { return uuid.UUID(id).String() }
func (id MetricID) String() string       { return uuid.UUID(id).String() }

// MarshalText lets typed IDs render as plain UUID strings in JSON payloads.
func (id OrganizationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id SnapshotID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id CheckID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id EventID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id RollbackID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id AlertID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id MetricID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }

func NewOrganizationID() OrganizationID { return OrganizationID(uuid.New()) }
func NewSnapshotID() SnapshotID         { return SnapshotID(uuid.New()) }
func NewCheckID() CheckID               { return CheckID(uuid.New()) }
func NewEventID() EventID               { return EventID(uuid.New()) }
func NewRollbackID() RollbackID         { return RollbackID(uuid.New()) }
func NewAlertID() AlertID               { return AlertID(uuid.New()) }
func NewMetricID() MetricID             { return MetricID(uuid.New()) }

// maxIDLength bounds input before it reaches the UUID parser.
const maxIDLength = 64

func parseUUID(s, kind string) (uuid.UUID, error) {
	if len(s) > maxIDLength || strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return parsed, nil
}

func ParseOrganizationID(s string) (OrganizationID, error) {
	u, err := parseUUID(s, "organization id")
	return OrganizationID(u), err
}

func ParseSnapshotID(s string) (SnapshotID, error) {
	u, err := parseUUID(s, "snapshot id")
	return SnapshotID(u), err
}

func ParseCheckID(s string) (CheckID, error) {
	u, err := parseUUID(s, "check id")
	return CheckID(u), err
}

func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s, "event id")
	return EventID(u), err
}
