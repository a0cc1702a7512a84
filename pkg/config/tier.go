package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/screencraft/api/pkg/cachex"
	"github.com/screencraft/api/pkg/kernel"
)

// TierConfig lets an operator retune the fixed tier table (§4.3) without a
// redeploy; an empty map leaves cachex.DefaultTierWindows untouched.
type TierConfig struct {
	Windows map[kernel.Tier]cachex.TierWindow
}

// tierEnvKeys maps each tier to the env var that can override its
// "limit:window" budget, e.g. TIER_LIMIT_PRO=10000:1h.
var tierEnvKeys = map[kernel.Tier]string{
	kernel.TierFree:       "TIER_LIMIT_FREE",
	kernel.TierPro:        "TIER_LIMIT_PRO",
	kernel.TierBusiness:   "TIER_LIMIT_BUSINESS",
	kernel.TierEnterprise: "TIER_LIMIT_ENTERPRISE",
}

func loadTierConfig() TierConfig {
	windows := make(map[kernel.Tier]cachex.TierWindow, len(cachex.DefaultTierWindows))
	for tier, w := range cachex.DefaultTierWindows {
		windows[tier] = w
	}

	for tier, key := range tierEnvKeys {
		raw := getEnv(key, "")
		if raw == "" {
			continue
		}
		if w, ok := parseTierWindow(raw); ok {
			windows[tier] = w
		}
	}

	return TierConfig{Windows: windows}
}

func parseTierWindow(raw string) (cachex.TierWindow, bool) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return cachex.TierWindow{}, false
	}
	limit, err := strconv.Atoi(parts[0])
	if err != nil {
		return cachex.TierWindow{}, false
	}
	window, err := time.ParseDuration(parts[1])
	if err != nil {
		return cachex.TierWindow{}, false
	}
	return cachex.TierWindow{Limit: limit, Window: window}, true
}
