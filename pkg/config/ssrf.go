package config

// SSRFConfig extends renderx's fixed private-address deny list with
// operator-supplied CIDRs (a cloud provider's own metadata ranges, an
// internal VPC block), read once at startup and folded into the package's
// guard via renderx.AddBlockedCIDRs.
type SSRFConfig struct {
	ExtraBlockedCIDRs []string
}

func loadSSRFConfig() SSRFConfig {
	return SSRFConfig{
		ExtraBlockedCIDRs: getEnvStringSlice("SSRF_EXTRA_BLOCKED_CIDRS", nil),
	}
}
