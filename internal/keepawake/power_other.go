//go:build !darwin

package keepawake

// NewDefaultPowerProvider returns a provider reporting unknown power state
// on platforms without a battery probe.
func NewDefaultPowerProvider() PowerProvider {
	return &unknownPowerProvider{}
}

type unknownPowerProvider struct{}

func (p *unknownPowerProvider) Snapshot() PowerSnapshot {
	return PowerSnapshot{}
}
