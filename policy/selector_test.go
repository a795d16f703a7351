package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavolo/posdata/types"
)

func TestResolveCategories(t *testing.T) {
	s := NewSelector(&types.PolicyConfig{})

	cases := []struct {
		path     string
		name     string
		strategy types.StrategyKind
		sync     bool
	}{
		{"/api/menu", "menu", types.StrategyCacheFirst, false},
		{"/api/menu/items?category=drinks", "menu", types.StrategyCacheFirst, false},
		{"/api/orders/active", "orders", types.StrategyNetworkFirst, true},
		{"/api/tables", "tables", types.StrategyNetworkFirst, true},
		{"/api/business-settings", "settings", types.StrategyCacheFirst, false},
		{"/api/settings/printer", "settings", types.StrategyCacheFirst, false},
	}

	for _, tc := range cases {
		pol := s.Resolve(tc.path)
		require.NotNil(t, pol, tc.path)
		assert.Equal(t, tc.name, pol.Name, tc.path)
		assert.Equal(t, tc.strategy, pol.Strategy, tc.path)
		assert.Equal(t, tc.sync, pol.BackgroundSync, tc.path)
	}
}

func TestResolveUnmatchedPathIsNil(t *testing.T) {
	s := NewSelector(&types.PolicyConfig{})

	assert.Nil(t, s.Resolve("/api/reports/daily"))
	assert.Nil(t, s.Resolve("/healthz"))
}

func TestResolvePriorityOrder(t *testing.T) {
	s := NewSelector(&types.PolicyConfig{})

	// "menu" outranks "order" when both substrings appear.
	pol := s.Resolve("/api/menu/order-of-day")
	require.NotNil(t, pol)
	assert.Equal(t, "menu", pol.Name)
}

func TestResolveMaxAgeOverrides(t *testing.T) {
	s := NewSelector(&types.PolicyConfig{
		MenuMaxAge:   "1h",
		OrdersMaxAge: "10s",
	})

	assert.Equal(t, time.Hour, s.Resolve("/api/menu").MaxAge)
	assert.Equal(t, 10*time.Second, s.Resolve("/api/orders").MaxAge)

	// Unset categories keep their defaults.
	assert.Equal(t, time.Minute, s.Resolve("/api/tables").MaxAge)
}

func TestResolveReturnsCopy(t *testing.T) {
	s := NewSelector(&types.PolicyConfig{})

	first := s.Resolve("/api/menu")
	first.MaxAge = 0

	second := s.Resolve("/api/menu")
	assert.Equal(t, 5*time.Minute, second.MaxAge)
}
