package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCall(id string) Call {
	return Call{
		ID:      id,
		Offense: "Shots Fired",
		Code:    "10-71",
		Info: Info{
			Time:     time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
			Location: "Vinewood Blvd",
		},
	}
}

func TestNewCall(t *testing.T) {
	c, err := NewCall("Store Robbery", "10-90")
	require.NoError(t, err)

	assert.Len(t, c.ID, 26)
	assert.Equal(t, "Store Robbery", c.Offense)
	assert.Equal(t, "10-90", c.Code)
	assert.False(t, c.Info.Time.IsZero())
	assert.NoError(t, c.Validate())

	other, err := NewCall("Store Robbery", "10-90")
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, other.ID)
}

func TestCall_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Call)
		wantErr error
	}{
		{
			name:    "valid call",
			modify:  func(c *Call) {},
			wantErr: nil,
		},
		{
			name:    "empty id",
			modify:  func(c *Call) { c.ID = "" },
			wantErr: ErrEmptyID,
		},
		{
			name:    "missing time",
			modify:  func(c *Call) { c.Info.Time = time.Time{} },
			wantErr: ErrMissingTime,
		},
		{
			name: "optional info fields absent",
			modify: func(c *Call) {
				c.Info.Location = ""
				c.Info.Plate = ""
				c.Info.Vehicle = ""
			},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testCall("c1")
			tt.modify(&c)
			assert.ErrorIs(t, c.Validate(), tt.wantErr)
		})
	}
}

func TestCall_SameIdentity(t *testing.T) {
	a := testCall("c1")
	b := testCall("c1")
	b.Info.Location = "Grove Street"
	b.Offense = "Shots Fired (updated)"

	assert.True(t, a.SameIdentity(b), "identity ignores non-id fields")
	assert.False(t, a.SameIdentity(testCall("c2")))
}

func TestCall_VisibleKey(t *testing.T) {
	a := testCall("c1")
	b := testCall("c1")
	assert.Equal(t, a.VisibleKey(), b.VisibleKey())

	b.Info.Plate = "46EEK572"
	assert.NotEqual(t, a.VisibleKey(), b.VisibleKey())

	c := testCall("c2")
	assert.NotEqual(t, a.VisibleKey(), c.VisibleKey())
}

func TestCall_OptionalFields(t *testing.T) {
	c := testCall("c1")
	assert.True(t, c.HasLocation())
	assert.False(t, c.HasPlate())
	assert.False(t, c.HasVehicle())

	c.Info.Plate = "ABC123"
	c.Info.Vehicle = "Declasse Vigero"
	assert.True(t, c.HasPlate())
	assert.True(t, c.HasVehicle())
}
