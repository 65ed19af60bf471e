package utility

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/energyrates/pkg/common"
)

// Configured sets up the Zonneplan client based on flags.
// It uses lflag to register command-line flags for configuration.
func Configured() *Zonneplan {
	z := &Zonneplan{
		now: time.Now,
	}
	apiURL := lflag.String("zonneplan-api-url", "", "Base URL for the Zonneplan energy price API")
	apiKey := lflag.String("zonneplan-api-key", "", "Secret for the Zonneplan energy price API")
	timeout := lflag.Duration("zonneplan-timeout", 10*time.Second, "Timeout for a single Zonneplan request")

	lflag.Do(func() {
		z.apiURL = *apiURL
		z.apiKey = *apiKey
		z.client = common.HTTPClient(*timeout)
		if err := z.Validate(); err != nil {
			panic(fmt.Sprintf("zonneplan validation failed: %v", err))
		}
	})

	return z
}

// Validate ensures the configuration is valid.
func (z *Zonneplan) Validate() error {
	if z.apiURL == "" {
		return errors.New("zonneplan-api-url is required")
	}
	u, err := url.Parse(z.apiURL)
	if err != nil {
		return fmt.Errorf("failed to parse zonneplan url (%s): %w", z.apiURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("zonneplan url (%s) must be http or https", z.apiURL)
	}
	if z.apiKey == "" {
		return errors.New("zonneplan-api-key is required")
	}
	return nil
}
