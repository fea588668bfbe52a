package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"onboard/internal/profile/models"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
	txcontext "onboard/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

// Postgres stores completed profiles. The full draft is kept as JSONB and
// completed documents are mirrored into facility_documents for querying.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// RunInTx runs fn inside a transaction carried on ctx. A transaction already
// on ctx is reused.
func (s *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return txcontext.Run(ctx, s.db, fn)
}

func (s *Postgres) LoadProfile(ctx context.Context, orgID id.OrgID) (*models.ProfileDraft, error) {
	var raw []byte
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT profile FROM facility_profiles WHERE org_id = $1`,
		uuid.UUID(orgID),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", orgID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select profile: %w", err)
	}
	var d models.ProfileDraft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", orgID, err)
	}
	return &d, nil
}

// SaveProfile upserts a completed profile and replaces its document rows in
// one transaction.
func (s *Postgres) SaveProfile(ctx context.Context, orgID id.OrgID, d *models.ProfileDraft) error {
	if !d.IsComplete() {
		return fmt.Errorf("profile %s: %w", orgID, sentinel.ErrInvalidState)
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return s.RunInTx(ctx, func(ctx context.Context) error {
		db := s.execer(ctx)
		_, err := db.ExecContext(ctx, `
			INSERT INTO facility_profiles (org_id, category, profile, completed_at, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (org_id) DO UPDATE
			SET category = EXCLUDED.category,
			    profile = EXCLUDED.profile,
			    completed_at = EXCLUDED.completed_at,
			    updated_at = now()
		`, uuid.UUID(orgID), string(d.Category), raw, *d.CompletedAt)
		if err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
		if _, err := db.ExecContext(ctx, `DELETE FROM facility_documents WHERE org_id = $1`, uuid.UUID(orgID)); err != nil {
			return fmt.Errorf("clear documents: %w", err)
		}
		for _, slot := range d.Documents {
			if slot.Status != models.UploadCompleted {
				continue
			}
			_, err := db.ExecContext(ctx,
				`INSERT INTO facility_documents (org_id, doc_type, file_url, file_name) VALUES ($1, $2, $3, $4)`,
				uuid.UUID(orgID), string(slot.Type), slot.RemoteURL, slot.FileName,
			)
			if err != nil {
				return fmt.Errorf("insert document %s: %w", slot.Type, err)
			}
		}
		return nil
	})
}

// DocumentURLs returns the stored file URL per document type of a completed
// profile.
func (s *Postgres) DocumentURLs(ctx context.Context, orgID id.OrgID) (map[models.DocumentType]string, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT doc_type, file_url FROM facility_documents WHERE org_id = $1`,
		uuid.UUID(orgID),
	)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer rows.Close()

	out := make(map[models.DocumentType]string)
	for rows.Next() {
		var docType, url string
		if err := rows.Scan(&docType, &url); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out[models.DocumentType(docType)] = url
	}
	return out, rows.Err()
}
