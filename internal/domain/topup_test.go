package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopUpAmount(t *testing.T) {
	const unit = int64(1_000_000)
	cases := []struct {
		name                                      string
		balance, threshold, configured, shortfall int64
		want                                      int64
	}{
		{name: "below threshold rounds up to multiple", balance: 15, threshold: 20, configured: 50, shortfall: 40, want: 100},
		{name: "not below threshold uses configured", balance: 25, threshold: 20, configured: 50, shortfall: 10, want: 50},
		{name: "empty balance covered by configured", balance: 0, threshold: 20, configured: 100, shortfall: 30, want: 100},
		{name: "shortfall larger than configured above threshold", balance: 30, threshold: 20, configured: 50, shortfall: 70, want: 70},
		{name: "shortfall larger than configured below threshold", balance: 10, threshold: 20, configured: 50, shortfall: 70, want: 100},
		{name: "below threshold already clears", balance: 5, threshold: 20, configured: 50, shortfall: 10, want: 50},
		{name: "proactive top-up", balance: 5, threshold: 20, configured: 50, shortfall: 0, want: 50},
		{name: "proactive top-up with small configured amount", balance: 0, threshold: 20, configured: 5, shortfall: 0, want: 20},
		{name: "exactly at threshold after top-up", balance: 10, threshold: 20, configured: 50, shortfall: 30, want: 50},
		{name: "several multiples needed", balance: 0, threshold: 20, configured: 10, shortfall: 45, want: 70},
		{name: "negative balance proactive", balance: -30, threshold: 20, configured: 15, shortfall: 0, want: 60},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := TopUpAmount(tc.balance*unit, tc.threshold*unit, tc.configured*unit, tc.shortfall*unit)
			assert.Equal(t, tc.want*unit, got)
		})
	}
}

func TestTopUpAmountLargeThreshold(t *testing.T) {
	// one micro per multiple against a trillion-micro threshold
	got := TopUpAmount(0, 1_000_000_000_000, 1, 0)
	assert.Equal(t, int64(1_000_000_000_000), got)

	got = TopUpAmount(0, 1_000_000_000_000, 3, 7)
	assert.Equal(t, int64(1_000_000_000_008), got)
}

func TestParseRouteCode(t *testing.T) {
	code, err := ParseRouteCode("event_entry")
	assert.NoError(t, err)
	assert.Equal(t, RouteEventEntry, code)

	code, err = ParseRouteCode("")
	assert.NoError(t, err)
	assert.Equal(t, RouteGeneric, code)

	_, err = ParseRouteCode("BATCH")
	assert.Error(t, err)
	_, err = ParseRouteCode("bogus")
	assert.Error(t, err)
}
