package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ViewedRepository persists the ceremony "viewed" flags in Redis, one
// boolean key per (mode, scope, month key). Marking is idempotent.
type ViewedRepository struct {
	client *redis.Client
}

// NewViewedRepository constructs a viewed-flag repository.
func NewViewedRepository(client *redis.Client) *ViewedRepository {
	return &ViewedRepository{client: client}
}

func viewedKey(mode, scope, monthKey string) string {
	return fmt.Sprintf("ceremony:viewed:%s:%s:%s", mode, scope, monthKey)
}

// MarkViewed sets the flag; repeated calls are no-ops.
func (r *ViewedRepository) MarkViewed(ctx context.Context, mode, scope, monthKey string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.SetNX(ctx, viewedKey(mode, scope, monthKey), "1", 0).Err(); err != nil {
		return fmt.Errorf("mark ceremony viewed: %w", err)
	}
	return nil
}

// IsViewed reports whether the ceremony was already played.
func (r *ViewedRepository) IsViewed(ctx context.Context, mode, scope, monthKey string) (bool, error) {
	if r.client == nil {
		return false, nil
	}
	n, err := r.client.Exists(ctx, viewedKey(mode, scope, monthKey)).Result()
	if err != nil {
		return false, fmt.Errorf("check ceremony viewed: %w", err)
	}
	return n > 0, nil
}
