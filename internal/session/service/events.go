package service

import (
	"context"
	"log/slog"

	"github.com/lamplight/frontsession/internal/session/domain"
)

// AuthEventSink receives typed notifications at auth lifecycle points.
// Optional collaborators (chat notifiers, audit trails) implement it and are
// injected into the dispatcher; there is no string-keyed hook lookup.
type AuthEventSink interface {
	// OnAfterSignup fires once a new account has been created, before the
	// confirmation mails go out.
	OnAfterSignup(ctx context.Context, tenant domain.Tenant, u domain.User)
}

// LogEventSink is the default sink; it just records the event.
type LogEventSink struct {
	Logger *slog.Logger
}

func (s *LogEventSink) OnAfterSignup(_ context.Context, tenant domain.Tenant, u domain.User) {
	s.Logger.Info("user signed up", "user_id", u.ID, "tenant_id", tenant.ID)
}
