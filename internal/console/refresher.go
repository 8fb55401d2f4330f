package console

import (
	"context"
	"time"

	"naimuAdmin/internal/console/permission"
)

const permissionRefreshTimeout = 30 * time.Second

// PermissionLoader produces a fresh permission table.
type PermissionLoader interface {
	Load(ctx context.Context) (*permission.Table, error)
}

// StartPermissionRefresher reloads the permission table every interval and
// swaps it into gate. A failed load keeps the previous table.
func StartPermissionRefresher(ctx context.Context, loader PermissionLoader, gate *permission.Gate, interval time.Duration, logger Logger) {
	if loader == nil || gate == nil || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refreshPermissions(ctx, loader, gate, logger)
			}
		}
	}()
}

func refreshPermissions(ctx context.Context, loader PermissionLoader, gate *permission.Gate, logger Logger) {
	runCtx, cancel := context.WithTimeout(ctx, permissionRefreshTimeout)
	defer cancel()

	table, err := loader.Load(runCtx)
	if err != nil {
		logger.Errorf("permission refresher: reload failed: %v", err)
		return
	}
	gate.Replace(table)
	logger.Infof("permission refresher: loaded %d screens", table.Screens())
}
