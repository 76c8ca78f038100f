package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "bloodbank/pkg/domain"
)

func TestAccessors(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		assert.True(t, OrgID(ctx).IsZero())
		assert.Equal(t, id.SystemActor, ActorID(ctx))
		assert.Empty(t, RequestID(ctx))
		assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
	})

	t.Run("principal and request values round through context", func(t *testing.T) {
		fixed := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
		ctx := WithPrincipal(ctx, "org-1", "tech-7")
		ctx = WithRequestID(ctx, "req-1")
		ctx = WithTime(ctx, fixed)

		assert.Equal(t, id.OrgID("org-1"), OrgID(ctx))
		assert.Equal(t, id.ActorID("tech-7"), ActorID(ctx))
		assert.Equal(t, "req-1", RequestID(ctx))
		assert.Equal(t, fixed, Now(ctx))
	})

	t.Run("empty actor falls back to system", func(t *testing.T) {
		assert.Equal(t, id.SystemActor, ActorID(WithActorID(ctx, "")))
	})
}
