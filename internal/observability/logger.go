package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ComponentLogger derives a logger from the global one, tagged with the
// component name and the daemon or actor id it serves.
func ComponentLogger(component, id string) zerolog.Logger {
	ctx := log.Logger.With().Str("component", component)
	if id != "" {
		ctx = ctx.Str("id", id)
	}
	return ctx.Logger()
}
