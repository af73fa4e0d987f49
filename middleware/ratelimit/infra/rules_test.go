package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sliding-gateway/middleware/ratelimit/domain"
)

func TestRuleTable_ResolveFallsBackToDefault(t *testing.T) {
	def := domain.Rule{Limit: 5, Window: 15 * time.Second}
	rt, err := NewRuleTable(def)
	require.NoError(t, err)

	require.NoError(t, rt.Set("/limited", domain.Rule{Limit: 2, Window: 10 * time.Second}))

	assert.Equal(t, domain.Rule{Limit: 2, Window: 10 * time.Second}, rt.Resolve("/limited"))
	assert.Equal(t, def, rt.Resolve("/"))
	assert.Equal(t, def, rt.Resolve("/other"))
	assert.True(t, rt.Has("/limited"))
	assert.False(t, rt.Has("/"))
	assert.Equal(t, def, rt.Default())
}

func TestRuleTable_LastRegistrationWins(t *testing.T) {
	rt, err := NewRuleTable(domain.Rule{Limit: 5, Window: time.Second})
	require.NoError(t, err)

	require.NoError(t, rt.Set("/x", domain.Rule{Limit: 2, Window: time.Second}))
	require.NoError(t, rt.Set("/x", domain.Rule{Limit: 7, Window: time.Minute}))

	assert.Equal(t, domain.Rule{Limit: 7, Window: time.Minute}, rt.Resolve("/x"))
	assert.Len(t, rt.Endpoints(), 1)
}

func TestRuleTable_RejectsInvalidRules(t *testing.T) {
	_, err := NewRuleTable(domain.Rule{Limit: 0, Window: time.Second})
	require.ErrorIs(t, err, domain.ErrInvalidLimit)

	_, err = NewRuleTable(domain.Rule{Limit: 1, Window: 0})
	require.ErrorIs(t, err, domain.ErrInvalidWindow)

	rt, err := NewRuleTable(domain.Rule{Limit: 1, Window: time.Second})
	require.NoError(t, err)

	require.ErrorIs(t, rt.Set("", domain.Rule{Limit: 1, Window: time.Second}), domain.ErrInvalidEndpoint)
	require.ErrorIs(t, rt.Set("/x", domain.Rule{Limit: -1, Window: time.Second}), domain.ErrConfiguration)
	require.ErrorIs(t, rt.Set("/x", domain.Rule{Limit: 1, Window: -1}), domain.ErrInvalidWindow)
	assert.False(t, rt.Has("/x"))
}
