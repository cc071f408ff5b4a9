package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/callhud/internal/model"
)

var filterNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func testCalls() []model.Call {
	return []model.Call{
		{ID: "1", Code: "10-90", Offense: "Store Robbery", Info: model.Info{
			Time: filterNow.Add(-30 * time.Second), Location: "Innocence Blvd", Plate: "46EEK572",
		}},
		{ID: "2", Code: "10-71", Offense: "Shots Fired", Info: model.Info{
			Time: filterNow.Add(-10 * time.Minute), Location: "Route 68",
		}},
		{ID: "3", Code: "10-13", Offense: "Officer Down", Info: model.Info{
			Time: filterNow.Add(-2 * time.Hour), Location: "route 1", Vehicle: "Police Cruiser",
		}},
	}
}

func matching(t *testing.T, expr string) []string {
	t.Helper()
	f, err := ParseFilter(expr)
	require.NoError(t, err)
	f.Now = func() time.Time { return filterNow }

	var ids []string
	for _, c := range testCalls() {
		if f.Match(c) {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func TestFilterExpr_Match(t *testing.T) {
	tests := []struct {
		expr string
		want []string
	}{
		{"", []string{"1", "2", "3"}},
		{"code=10-90", []string{"1"}},
		{"CODE=10-90", []string{"1"}},
		{"code!=10-90", []string{"2", "3"}},
		{"offense~robbery", []string{"1"}},
		{"summary~SHOTS", []string{"2"}},
		{"location~=^[Rr]oute", []string{"2", "3"}},
		{"location~=^Route", []string{"2"}},
		{"plate~46", []string{"1"}},
		{"plate=", []string{"2", "3"}},
		{"vehicle~cruiser", []string{"3"}},
		{"time>1m", []string{"1"}},
		{"time>15m", []string{"1", "2"}},
		{"time<15m", []string{"3"}},
		{"time>=10m", []string{"1", "2"}},
		{"time<=10m", []string{"2", "3"}},
		{"time>1d", []string{"1", "2", "3"}},
		{"location~route, time>1h", []string{"2"}},
		{"id=3", []string{"3"}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, matching(t, tt.expr))
		})
	}
}

func TestFilterExpr_ZeroTimeNeverMatches(t *testing.T) {
	f, err := ParseFilter("time<1h")
	require.NoError(t, err)
	assert.False(t, f.Match(model.Call{ID: "x", Offense: "Unknown"}))
}

func TestParseFilter_Errors(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr string
	}{
		{"code", "missing operator"},
		{"urgency=critical", "unknown filter field"},
		{"offense~=(", "invalid regex"},
		{"time=5m", "time only supports"},
		{"time>soon", "invalid time value"},
		{"code>10", "does not support"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseFilter(tt.expr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFilterExpr_String(t *testing.T) {
	f, err := ParseFilter(" title~theft , loc=Route 68 ")
	require.NoError(t, err)
	assert.Equal(t, "offense~theft,location=Route 68", f.String())

	var empty *FilterExpr
	assert.True(t, empty.Empty())
	assert.Equal(t, "", empty.String())
	assert.True(t, empty.Match(model.Call{}))
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		hasError bool
	}{
		{"0", 0, false},
		{"", 0, false},
		{"90s", 90 * time.Second, false},
		{"30m", 30 * time.Minute, false},
		{"2h", 2 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"invalid", 0, true},
		{"xd", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseDuration(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}
