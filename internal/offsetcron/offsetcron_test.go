package offsetcron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustParseUTC(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts.UTC()
}

func TestOffsetCronPositive(t *testing.T) {
	oc, err := New("0 0 * * *", 6*3600)
	require.NoError(t, err)

	now := mustParseUTC(t, "2024-06-14T23:00:00Z")
	next := oc.Next(now)

	require.Equal(t, mustParseUTC(t, "2024-06-15T06:00:00Z"), next)
	require.True(t, next.After(now))
}

func TestOffsetCronNegative(t *testing.T) {
	oc, err := New("0 16 * * *", -60)
	require.NoError(t, err)

	now := mustParseUTC(t, "2024-01-14T15:00:00Z")
	next := oc.Next(now)

	require.Equal(t, mustParseUTC(t, "2024-01-14T15:59:00Z"), next)
	require.True(t, next.After(now))
}

func TestOffsetCronZero(t *testing.T) {
	oc, err := New("*/5 * * * *", 0)
	require.NoError(t, err)

	now := mustParseUTC(t, "2024-01-14T15:01:00Z")
	next := oc.Next(now)

	require.Equal(t, mustParseUTC(t, "2024-01-14T15:05:00Z"), next)
}

// TestOffsetCronInvariant checks the general fixed-point relation from
// the testable properties: next_C+δ(now) = next_C(now+max(0,−δ)) + δ,
// and the result is strictly greater than now.
func TestOffsetCronInvariant(t *testing.T) {
	cases := []struct {
		expr  string
		delta int
	}{
		{"0 0 * * *", 3600},
		{"0 16 * * *", -30},
		{"*/15 * * * *", -120},
		{"0 9 * * 1", 900},
	}

	base := mustParseUTC(t, "2024-03-01T08:17:00Z")

	for _, tc := range cases {
		oc, err := New(tc.expr, tc.delta)
		require.NoError(t, err)

		plain, err := New(tc.expr, 0)
		require.NoError(t, err)

		shift := time.Duration(0)
		if tc.delta < 0 {
			shift = time.Duration(-tc.delta) * time.Second
		}

		want := plain.Next(base.Add(shift)).Add(time.Duration(tc.delta) * time.Second)
		got := oc.Next(base)

		require.Equal(t, want, got, "expr=%s delta=%d", tc.expr, tc.delta)
		require.True(t, got.After(base))
	}
}

func TestOffsetCronInvalidExpr(t *testing.T) {
	_, err := New("not a cron", 0)
	require.Error(t, err)
}
