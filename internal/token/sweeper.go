package token

import (
	"context"
	"log/slog"
	"time"

	"github.com/openbank/authcore/params"
)

// SweepExpired periodically deletes token rows whose expiry is past the
// retention window. Rows inside the window stay for audit correlation.
// It returns when ctx is canceled.
func SweepExpired(ctx context.Context, repo TokenRepository) {
	ticker := time.NewTicker(params.TokenSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-params.TokenRetention)
			n, err := repo.DeleteExpiredBefore(ctx, cutoff)
			if err != nil {
				slog.Warn("Token retention sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("Token retention sweep", "deleted", n)
			}
		}
	}
}
