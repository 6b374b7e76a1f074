// SPDX-License-Identifier: MPL-2.0

package live

import (
	"context"
	"errors"

	"github.com/cmdtree/cmdtree/pkg/cmdtree"
)

// ReloadOnChange reloads the tree. Its signature matches the watch package's
// OnChange callback. Rejected batches are already logged and reported to
// listeners, so they are not returned as callback errors.
func (m *Manager) ReloadOnChange(ctx context.Context, changed []string) error {
	m.logger.Debug("reload triggered", "changed", changed)
	_, err := m.Reload(ctx)
	var re *cmdtree.ReloadError
	if errors.As(err, &re) {
		return nil
	}
	return err
}

// ReloadOn reloads once for every burst of values received on triggers,
// such as document ids announced over Redis pub/sub. Values that arrive
// while a reload runs are folded into one follow-up reload. It returns when
// ctx ends or triggers is closed.
func (m *Manager) ReloadOn(ctx context.Context, triggers <-chan string) error {
	return Coalesce(ctx, triggers, func(ctx context.Context, changed []string) error {
		if err := m.ReloadOnChange(ctx, changed); err != nil && ctx.Err() == nil {
			m.logger.Error("triggered reload failed", "err", err)
		}
		return nil
	})
}

// Coalesce calls fn once for every burst of values received on triggers,
// passing everything received since the previous call. It returns nil when
// ctx ends or triggers is closed, and the first error fn returns otherwise.
func Coalesce(ctx context.Context, triggers <-chan string, fn func(ctx context.Context, changed []string) error) error {
	for {
		var changed []string
		select {
		case <-ctx.Done():
			return nil
		case id, ok := <-triggers:
			if !ok {
				return nil
			}
			changed = append(changed, id)
		}
	drain:
		for {
			select {
			case id, ok := <-triggers:
				if !ok {
					break drain
				}
				changed = append(changed, id)
			default:
				break drain
			}
		}
		if err := fn(ctx, changed); err != nil {
			return err
		}
	}
}
