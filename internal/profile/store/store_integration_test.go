//go:build integration

package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/profile/models"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/testutil/containers"
)

func TestRedisDrafts(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	s := NewRedisDrafts(rc.Client, time.Hour)
	org := id.NewOrgID()

	_, err := s.LoadDraft(ctx, org)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	d := models.NewDefaultDraft(models.CategoryHospital)
	d.Identity.Name = "St. Mary"
	require.NoError(t, s.SaveDraft(ctx, org, d))

	got, err := s.LoadDraft(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, d, got)

	ttl, err := rc.Client.TTL(ctx, draftKey(org)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	require.NoError(t, s.DeleteDraft(ctx, org))
	_, err = s.LoadDraft(ctx, org)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestRedisUpdateDraftUnderContention(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	s := NewRedisDrafts(rc.Client, time.Hour)
	org := id.NewOrgID()

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.UpdateDraft(ctx, org, func(cur *models.ProfileDraft) (*models.ProfileDraft, error) {
				if cur == nil {
					cur = models.NewDefaultDraft(models.CategoryHospital)
				}
				cur.Capacity.TotalBeds++
				return cur, nil
			}))
		}()
	}
	wg.Wait()

	got, err := s.LoadDraft(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Capacity.TotalBeds)

	refused := errors.New("refused")
	err = s.UpdateDraft(ctx, org, func(*models.ProfileDraft) (*models.ProfileDraft, error) { return nil, refused })
	assert.ErrorIs(t, err, refused)
}

func TestPostgresProfiles(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()
	s := NewPostgres(pc.DB)
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureSchema(ctx), "schema is idempotent")

	org := id.NewOrgID()
	_, err := s.LoadProfile(ctx, org)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	d := models.NewDefaultDraft(models.CategoryBloodBank)
	d.Identity.Name = "City Blood Bank"
	d.Documents[0].Status = models.UploadCompleted
	d.Documents[0].RemoteURL = "https://cdn.example/bloodbank.pdf"
	d.Documents[0].FileName = "bloodbank.pdf"

	assert.ErrorIs(t, s.SaveProfile(ctx, org, d), sentinel.ErrInvalidState)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	d.CompletedAt = &at
	require.NoError(t, s.SaveProfile(ctx, org, d))
	require.NoError(t, s.SaveProfile(ctx, org, d), "resubmission upserts")

	got, err := s.LoadProfile(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, "City Blood Bank", got.Identity.Name)
	assert.True(t, got.CompletedAt.Equal(at))

	urls, err := s.DocumentURLs(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, map[models.DocumentType]string{"bloodbank": "https://cdn.example/bloodbank.pdf"}, urls)
}
