package keepawake

import (
	"context"
	"log"
	"time"
)

// BatteryGuard cancels an active keep-awake session once the host switches to
// battery power. It implements the "deactivate when on battery" preference:
// holding a sleep assertion on battery drains the machine, so users can opt
// to drop it automatically.
type BatteryGuard struct {
	supervisor *Supervisor
	provider   PowerProvider
	interval   time.Duration
}

// NewBatteryGuard creates a guard polling the provider at the given interval.
// A non-positive interval defaults to 30 seconds.
func NewBatteryGuard(supervisor *Supervisor, provider PowerProvider, interval time.Duration) *BatteryGuard {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &BatteryGuard{
		supervisor: supervisor,
		provider:   provider,
		interval:   interval,
	}
}

// Run polls until ctx is cancelled. Unknown power readings never trigger a
// cancel; only a positive on-battery reading does.
func (g *BatteryGuard) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.check()
		}
	}
}

func (g *BatteryGuard) check() {
	if !g.supervisor.Active() {
		return
	}
	snap := g.provider.Snapshot()
	if snap.OnBattery != nil && *snap.OnBattery {
		log.Printf("keepawake: host on battery power, cancelling active session")
		g.supervisor.Cancel()
	}
}
