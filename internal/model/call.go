// Package model defines the core data structures for callhud.
package model

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Call represents one dispatch event displayed as a notification.
// ID is the sole identity key: two Calls with the same ID are the same
// logical notification, whatever their other fields say.
type Call struct {
	ID      string `json:"id" yaml:"id"`
	Offense string `json:"offense" yaml:"offense"`
	Code    string `json:"code" yaml:"code"`
	Info    Info   `json:"info" yaml:"info"`
}

// Info holds the details shown beneath a call's header.
type Info struct {
	Time     time.Time `json:"time" yaml:"time"`
	Location string    `json:"location,omitempty" yaml:"location,omitempty"`
	Plate    string    `json:"plate,omitempty" yaml:"plate,omitempty"`
	Vehicle  string    `json:"vehicle,omitempty" yaml:"vehicle,omitempty"`
}

// Validation errors.
var (
	ErrEmptyID     = errors.New("call id cannot be empty")
	ErrMissingTime = errors.New("call info time is required")
)

// NewID returns a fresh ULID string.
func NewID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}

// NewCall creates a Call with a generated ULID and the current time.
func NewCall(offense, code string) (*Call, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}

	return &Call{
		ID:      id,
		Offense: offense,
		Code:    code,
		Info:    Info{Time: time.Now()},
	}, nil
}

// Validate checks that the call has all required fields.
func (c *Call) Validate() error {
	if c.ID == "" {
		return ErrEmptyID
	}
	if c.Info.Time.IsZero() {
		return ErrMissingTime
	}
	return nil
}

// SameIdentity reports whether both calls refer to the same notification.
func (c Call) SameIdentity(other Call) bool {
	return c.ID == other.ID
}

// VisibleKey returns a fingerprint of the fields a renderer displays.
// It changes whenever the rendered card would change (except for relative time).
func (c Call) VisibleKey() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%d\x00%s\x00%s\x00%s",
		c.ID, c.Offense, c.Code, c.Info.Time.UnixNano(),
		c.Info.Location, c.Info.Plate, c.Info.Vehicle)
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// HasLocation returns true if a location is known.
func (c Call) HasLocation() bool { return c.Info.Location != "" }

// HasPlate returns true if a plate is known.
func (c Call) HasPlate() bool { return c.Info.Plate != "" }

// HasVehicle returns true if a vehicle description is known.
func (c Call) HasVehicle() bool { return c.Info.Vehicle != "" }
