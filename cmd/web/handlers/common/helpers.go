package common

import (
	"context"

	"videoflix.systems/videoflix/cmd/web/auth"
	"videoflix.systems/videoflix/cmd/web/ctxkeys"
)

// SessionFromContext returns the session the access middleware attached,
// if any.
func SessionFromContext(ctx context.Context) (*auth.Session, bool) {
	s, ok := ctx.Value(ctxkeys.Session).(*auth.Session)
	return s, ok && s != nil
}
