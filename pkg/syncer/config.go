package syncer

import (
	"fmt"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/energyrates/pkg/metrics"
	"github.com/raterudder/energyrates/pkg/storage"
	"github.com/raterudder/energyrates/pkg/utility"
)

// Configured sets up the Syncer based on flags.
func Configured(fetcher utility.Fetcher, db storage.Database) *Syncer {
	merge := lflag.Bool("sync-merge-previous-day", true, "Also fetch the previous day when syncing electricity and merge the results")
	rangePolicy := lflag.String("sync-range-policy", string(RangeFailFast), "What a range sync does when a day fails (available: fail-fast, continue)")

	s := New(fetcher, db, Options{})

	lflag.Do(func() {
		policy, err := ParseRangePolicy(*rangePolicy)
		if err != nil {
			panic(fmt.Sprintf("syncer validation failed: %v", err))
		}
		s.mergePreviousDay = *merge
		s.rangePolicy = policy
		s.metrics = metrics.Default()
	})

	return s
}
