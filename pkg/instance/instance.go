package instance

import "github.com/campuscart/marketplace-backend/pkg/env"

// ID returns the process instance identifier. Heroku style DYNO wins over
// WORKER_ID; fallback is used when neither is set.
func ID(fallback string) string {
	return env.First(fallback, "DYNO", "WORKER_ID")
}
