package policy

import (
	"strings"
	"time"

	"github.com/tavolo/posdata/types"
	"github.com/tavolo/posdata/utils"
)

type rule struct {
	substrings []string
	policy     types.CachePolicy
}

// Selector maps an endpoint path to its caching policy. Rules are checked
// in fixed priority order and the first substring match wins; an unmatched
// path resolves to nil and bypasses caching entirely.
type Selector struct {
	rules []rule
}

func NewSelector(config *types.PolicyConfig) *Selector {
	menuMaxAge := utils.ParseDurationOr(config.MenuMaxAge, 5*time.Minute)
	ordersMaxAge := utils.ParseDurationOr(config.OrdersMaxAge, 30*time.Second)
	tablesMaxAge := utils.ParseDurationOr(config.TablesMaxAge, time.Minute)
	settingsMaxAge := utils.ParseDurationOr(config.SettingsMaxAge, 10*time.Minute)

	return &Selector{
		rules: []rule{
			{
				substrings: []string{"menu"},
				policy: types.CachePolicy{
					Name:     "menu",
					Strategy: types.StrategyCacheFirst,
					MaxAge:   menuMaxAge,
				},
			},
			{
				substrings: []string{"order"},
				policy: types.CachePolicy{
					Name:           "orders",
					Strategy:       types.StrategyNetworkFirst,
					MaxAge:         ordersMaxAge,
					BackgroundSync: true,
				},
			},
			{
				substrings: []string{"table"},
				policy: types.CachePolicy{
					Name:           "tables",
					Strategy:       types.StrategyNetworkFirst,
					MaxAge:         tablesMaxAge,
					BackgroundSync: true,
				},
			},
			{
				substrings: []string{"settings", "business"},
				policy: types.CachePolicy{
					Name:     "settings",
					Strategy: types.StrategyCacheFirst,
					MaxAge:   settingsMaxAge,
				},
			},
		},
	}
}

// Resolve is a pure lookup; it never errors and never mutates.
func (s *Selector) Resolve(endpointPath string) *types.CachePolicy {
	for i := range s.rules {
		for _, sub := range s.rules[i].substrings {
			if strings.Contains(endpointPath, sub) {
				policy := s.rules[i].policy
				return &policy
			}
		}
	}

	return nil
}
