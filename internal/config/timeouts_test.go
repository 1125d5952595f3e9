package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInteractionTimeoutRelationships(t *testing.T) {
	t.Parallel()

	assert.Less(t, AckDeadline, InteractionAckLimit, "router must ack before Discord gives up")
	assert.Less(t, PermissionLookup, InteractionAckLimit, "permission check runs before the ack")
	assert.Less(t, HandlerProcessing, InteractionTokenLifetime, "final edit must land while the token is valid")
	assert.Less(t, PaginationIdle, InteractionTokenLifetime, "sessions expire before their token does")
	assert.Less(t, PaginationSweep, PaginationIdle)
}

func TestHTTPTimeouts(t *testing.T) {
	t.Parallel()

	assert.Greater(t, HTTPWrite, HTTPRead)
	assert.Greater(t, HTTPIdle, HTTPWrite)
	assert.Less(t, ReadinessCheck, HTTPWrite)
}

func TestJobIntervals(t *testing.T) {
	t.Parallel()

	assert.Less(t, MaintenanceCheckInterval, DatabaseOptimizeInterval)
	assert.Less(t, MetricsUpdateInterval, MaintenanceCheckInterval)
}

func TestBotConfigDefaultsAreValid(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultBotConfig().Validate())
	assert.NoError(t, DefaultAniListConfig().Validate())
}
