package rates

import (
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/energyrates/pkg/freshness"
	"github.com/raterudder/energyrates/pkg/metrics"
	"github.com/raterudder/energyrates/pkg/storage"
	"github.com/raterudder/energyrates/pkg/utility"
)

// Configured sets up the Service based on flags.
func Configured(db storage.Database, s DaySyncer) *Service {
	recent := lflag.Duration("freshness-recent-threshold", freshness.DefaultRecentThreshold, "Maximum age of rates for today and future days")
	past := lflag.Duration("freshness-past-threshold", freshness.DefaultPastThreshold, "Maximum age of rates for past days")
	refreshTimeout := lflag.Duration("refresh-timeout", 20*time.Second, "Timeout for a refresh triggered by a read")
	serveStale := lflag.Bool("serve-stale-on-timeout", true, "Serve stored rates when a refresh times out")

	svc := New(db, s, freshness.Policy{}, Options{})

	lflag.Do(func() {
		svc.policy = freshness.Policy{
			Now:                   time.Now,
			Location:              utility.Location(),
			RecentThreshold:       *recent,
			PastThreshold:         *past,
			MinElectricityRecords: freshness.DefaultMinElectricityRecords,
		}
		svc.refreshTimeout = *refreshTimeout
		svc.serveStaleOnTimeout = *serveStale
		svc.metrics = metrics.Default()
	})

	return svc
}
