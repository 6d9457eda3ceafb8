package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	apperrors "github.com/Emperor1p/nclexkeysinternational/pkg/errors"
)

func setupTestRedis(t *testing.T) (*FlowRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	repo := NewFlowRepository(client, time.Hour)
	return repo, mr
}

func sampleFlow() *domain.EnrollmentFlow {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.EnrollmentFlow{
		ID:    "flow-001",
		State: domain.FlowSelectingPlan,
		Draft: domain.AccountDraft{
			FirstName:       "Ada",
			LastName:        "Obi",
			Email:           "a@b.com",
			Password:        "12345678",
			ConfirmPassword: "12345678",
		},
		PlanID:    "nigeria",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestFlowRepository_SaveAndGet(t *testing.T) {
	repo, _ := setupTestRedis(t)
	flow := sampleFlow()

	require.NoError(t, repo.Save(context.Background(), flow))

	got, err := repo.Get(context.Background(), flow.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FlowSelectingPlan, got.State)
	assert.Equal(t, "a@b.com", got.Draft.Email)
	assert.Equal(t, "nigeria", got.PlanID)
}

func TestFlowRepository_GetMissing(t *testing.T) {
	repo, _ := setupTestRedis(t)

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFlowRepository_Delete(t *testing.T) {
	repo, _ := setupTestRedis(t)
	flow := sampleFlow()

	require.NoError(t, repo.Save(context.Background(), flow))
	require.NoError(t, repo.Delete(context.Background(), flow.ID))

	_, err := repo.Get(context.Background(), flow.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// Deleting again is a no-op.
	assert.NoError(t, repo.Delete(context.Background(), flow.ID))
}

func TestFlowRepository_TTLExpiry(t *testing.T) {
	repo, mr := setupTestRedis(t)
	flow := sampleFlow()

	require.NoError(t, repo.Save(context.Background(), flow))

	mr.FastForward(2 * time.Hour)

	_, err := repo.Get(context.Background(), flow.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
