package utility

import (
	"fmt"
	"time"
)

// Zonneplan publishes days in Dutch local time
var amsLocation = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		panic(fmt.Errorf("failed to load amsterdam time location: %w", err))
	}
	return loc
}()

// Location returns the time zone the supplier's calendar days are defined in.
func Location() *time.Location {
	return amsLocation
}
