package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"onboard/internal/profile/models"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

const (
	draftKeyPrefix  = "onboard:draft:"
	DefaultDraftTTL = 30 * 24 * time.Hour

	maxUpdateAttempts = 10
)

// RedisDrafts stores in-progress drafts as JSON values that expire after a
// period of inactivity. Every save refreshes the TTL.
type RedisDrafts struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisDrafts(client redis.UniversalClient, ttl time.Duration) *RedisDrafts {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &RedisDrafts{client: client, ttl: ttl}
}

func draftKey(orgID id.OrgID) string {
	return draftKeyPrefix + orgID.String()
}

func (s *RedisDrafts) LoadDraft(ctx context.Context, orgID id.OrgID) (*models.ProfileDraft, error) {
	raw, err := s.client.Get(ctx, draftKey(orgID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("draft %s: %w", orgID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	var d models.ProfileDraft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", orgID, err)
	}
	return &d, nil
}

func (s *RedisDrafts) SaveDraft(ctx context.Context, orgID id.OrgID, d *models.ProfileDraft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.client.Set(ctx, draftKey(orgID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("set draft: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}

// UpdateDraft is an optimistic read-modify-write: the key is watched while
// fn runs and the write is retried when another writer got there first.
// Errors returned by fn are passed through unchanged.
func (s *RedisDrafts) UpdateDraft(ctx context.Context, orgID id.OrgID, fn func(cur *models.ProfileDraft) (*models.ProfileDraft, error)) error {
	key := draftKey(orgID)
	var fnErr error
	txf := func(tx *redis.Tx) error {
		var cur *models.ProfileDraft
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			cur = &models.ProfileDraft{}
			if err := json.Unmarshal(raw, cur); err != nil {
				return fmt.Errorf("decode draft %s: %w", orgID, err)
			}
		}

		next, err := fn(cur)
		if err != nil {
			fnErr = err
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode draft: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for range maxUpdateAttempts {
		err := s.client.Watch(ctx, txf, key)
		if fnErr != nil {
			return fnErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("update draft: %w", errors.Join(sentinel.ErrUnavailable, err))
		}
		return nil
	}
	return fmt.Errorf("update draft %s: %w", orgID, sentinel.ErrConflict)
}

func (s *RedisDrafts) DeleteDraft(ctx context.Context, orgID id.OrgID) error {
	if err := s.client.Del(ctx, draftKey(orgID)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}
