package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pushgate/apns/internal/logging"
)

// InitLogger applies the runtime logging profile and tags the global
// logger with the application name. The profile owns level, timestamp
// and color settings via the PUSHGATE_LOG_* environment variables.
func InitLogger(app string) zerolog.Logger {
	logging.ConfigureRuntime()
	logger := log.Logger.With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
