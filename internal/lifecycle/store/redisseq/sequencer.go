// Package redisseq hands out label sequence numbers with Redis INCR, which is
// atomic across every service instance sharing the Redis.
package redisseq

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/sentinel"
)

const keyPrefix = "bloodbank:seq:"

// Sequencer implements ports.Sequencer.
type Sequencer struct {
	client redis.Cmdable
}

func New(client redis.Cmdable) *Sequencer {
	return &Sequencer{client: client}
}

func (s *Sequencer) Next(ctx context.Context, org id.OrgID, scope string) (int64, error) {
	next, err := s.client.Incr(ctx, Key(org, scope)).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s sequence: %w: %w", scope, sentinel.ErrUnavailable, err)
	}
	return next, nil
}

// Key is the Redis key holding one org's counter for scope.
func Key(org id.OrgID, scope string) string {
	return keyPrefix + string(org) + ":" + scope
}
