package entitlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every historical encoding of used=1 limit=3 must normalize identically.
func TestLegacyShapesNormalizeAlike(t *testing.T) {
	for name, body := range map[string]string{
		"usage":        `{"usage":{"used":1,"limit":3,"remaining":2,"blocked":false}}`,
		"freeAttempts": `{"freeAttempts":{"count":1,"limit":3}}`,
		"sttAttempts":  `{"sttAttempts":{"count":1,"limit":3}}`,
		"flat":         `{"freeAttemptsUsed":1,"freeAttemptsLimit":3}`,
	} {
		t.Run(name, func(t *testing.T) {
			s, err := ParseSnapshot([]byte(body))
			require.NoError(t, err)
			assert.Equal(t, 1, s.Used)
			assert.Equal(t, 3, s.Limit)
			assert.Equal(t, 2, s.Remaining)
			assert.False(t, s.Blocked)
		})
	}
}

func TestCanonicalShapeWinsWhenSeveralPresent(t *testing.T) {
	body := `{"usage":{"used":2,"limit":5,"remaining":3},"freeAttempts":{"count":9,"limit":9}}`
	s, err := ParseSnapshot([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Used)
	assert.Equal(t, 5, s.Limit)
}

func TestUnboundedSentinel(t *testing.T) {
	s, err := ParseSnapshot([]byte(`{"usage":{"used":40,"limit":-1,"remaining":-1,"blocked":false}}`))
	require.NoError(t, err)
	assert.Equal(t, Unbounded, s.Limit)
	assert.Equal(t, Unbounded, s.Remaining)
	assert.False(t, Blocked(&s))
}

func TestServerBlockedFlagIsAuthoritative(t *testing.T) {
	// Arithmetic says fine, server says blocked (e.g. suspended account).
	s, err := ParseSnapshot([]byte(`{"usage":{"used":0,"limit":3,"remaining":3,"blocked":true}}`))
	require.NoError(t, err)
	assert.True(t, s.Blocked)
	assert.True(t, Blocked(&s))
}

func TestBlockedDerivedForLegacyShapes(t *testing.T) {
	s, err := ParseSnapshot([]byte(`{"freeAttempts":{"count":3,"limit":3}}`))
	require.NoError(t, err)
	assert.True(t, s.Blocked)
	assert.Equal(t, 0, s.Remaining)
}

func TestOveruseClampsRemainingToZero(t *testing.T) {
	s, err := ParseSnapshot([]byte(`{"freeAttemptsUsed":5,"freeAttemptsLimit":3}`))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Remaining)
	assert.True(t, Blocked(&s))
}

func TestUnknownShapeIsAnError(t *testing.T) {
	_, err := ParseSnapshot([]byte(`{"somethingElse":true}`))
	assert.Error(t, err)

	_, err = ParseSnapshot([]byte(`not json`))
	assert.Error(t, err)
}

func TestBlockedPredicate(t *testing.T) {
	assert.False(t, Blocked(nil), "missing data must fail open")

	for _, tt := range []struct {
		name string
		s    Snapshot
		want bool
	}{
		{"room left", Snapshot{Used: 1, Limit: 3, Remaining: 2}, false},
		{"remaining zero", Snapshot{Used: 3, Limit: 3, Remaining: 0}, true},
		{"used at limit", Snapshot{Used: 3, Limit: 3, Remaining: 1}, true},
		{"server blocked", Snapshot{Used: 0, Limit: 3, Remaining: 3, Blocked: true}, true},
		{"unbounded", Snapshot{Used: 100, Limit: Unbounded, Remaining: Unbounded}, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Blocked(&tt.s))
		})
	}
}

func TestExhaustedForcesCounterToLimit(t *testing.T) {
	got := FailOpen().Exhausted()
	assert.True(t, got.Blocked)
	assert.Equal(t, 0, got.Remaining)
	assert.Equal(t, got.Limit, got.Used)

	unb := Snapshot{Used: 10, Limit: Unbounded, Remaining: Unbounded}.Exhausted()
	assert.True(t, Blocked(&unb))
	assert.NotEqual(t, Unbounded, unb.Used)
}

func TestUpgradeErrorClassification(t *testing.T) {
	var err error = &UpgradeError{Status: 402, Message: "free tier exhausted"}
	assert.ErrorIs(t, err, ErrUpgradeRequired)
	assert.Contains(t, err.Error(), "402")
}
