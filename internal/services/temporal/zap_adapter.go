package temporal

import (
	tlog "go.temporal.io/sdk/log"
	"go.uber.org/zap"

	applog "github.com/GalaDe/payments-webhooks/internal/log/log"
)

// NewZapAdapter exposes a zap logger through the Temporal SDK logger
// interface. The caller skip points log lines at the SDK call site.
func NewZapAdapter(logger *zap.Logger) tlog.Logger {
	return applog.FromZap(logger.WithOptions(zap.AddCallerSkip(1)))
}
