package media

import (
	"context"
	"database/sql"
	"fmt"
	"path"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier/pkg/observability"
)

// Service manages asset metadata and presigned transfers
type Service struct {
	db      *sql.DB
	storage Storage
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewService creates a new media service. metrics may be nil.
func NewService(db *sql.DB, storage Storage, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{db: db, storage: storage, logger: logger, metrics: metrics}
}

// InitiateUpload records the asset and returns a presigned upload ticket
func (s *Service) InitiateUpload(ctx context.Context, projectID, uploaderID int64, filename, contentType string, sizeBytes int64) (*UploadTicket, error) {
	if filename == "" {
		return nil, fmt.Errorf("filename is required")
	}
	if sizeBytes <= 0 {
		return nil, fmt.Errorf("size must be positive")
	}

	key := storageKey(projectID, filename)

	var a Asset
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO assets (project_id, uploader_id, filename, content_type, size_bytes, storage_key)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, project_id, uploader_id, filename, content_type, size_bytes, storage_key, created_at`,
		projectID, uploaderID, filename, contentType, sizeBytes, key,
	).Scan(&a.ID, &a.ProjectID, &a.UploaderID, &a.Filename, &a.ContentType, &a.SizeBytes, &a.StorageKey, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("recording asset: %w", err)
	}

	url, expiresAt, err := s.storage.PresignUpload(ctx, key, contentType)
	if err != nil {
		if s.metrics != nil {
			s.metrics.MediaUploadsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.MediaUploadsTotal.WithLabelValues("initiated").Inc()
		s.metrics.MediaUploadBytes.Add(float64(sizeBytes))
	}

	return &UploadTicket{Asset: &a, URL: url, ExpiresAt: expiresAt}, nil
}

// GetAsset fetches asset metadata
func (s *Service) GetAsset(ctx context.Context, id int64) (*Asset, error) {
	var a Asset
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, uploader_id, filename, content_type, size_bytes, storage_key, created_at
		 FROM assets WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.ProjectID, &a.UploaderID, &a.Filename, &a.ContentType, &a.SizeBytes, &a.StorageKey, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying asset: %w", err)
	}
	return &a, nil
}

// DownloadURL returns a presigned GET URL for the asset
func (s *Service) DownloadURL(ctx context.Context, id int64) (string, error) {
	a, err := s.GetAsset(ctx, id)
	if err != nil {
		return "", err
	}

	url, _, err := s.storage.PresignDownload(ctx, a.StorageKey)
	if err != nil {
		return "", err
	}
	return url, nil
}

// ListAssets lists a project's assets, newest first
func (s *Service) ListAssets(ctx context.Context, projectID int64) ([]Asset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, uploader_id, filename, content_type, size_bytes, storage_key, created_at
		 FROM assets WHERE project_id = $1 ORDER BY created_at DESC, id DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.UploaderID, &a.Filename, &a.ContentType, &a.SizeBytes, &a.StorageKey, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// DeleteAsset removes the asset record and its stored object. The record
// is removed even when the object delete fails so a retry is safe.
func (s *Service) DeleteAsset(ctx context.Context, id int64) error {
	a, err := s.GetAsset(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting asset record: %w", err)
	}

	if err := s.storage.Delete(ctx, a.StorageKey); err != nil {
		s.logger.WithError(err).WithField("storage_key", a.StorageKey).Warn("orphaned object left in storage")
	}
	return nil
}

func storageKey(projectID int64, filename string) string {
	return fmt.Sprintf("projects/%d/%s%s", projectID, uuid.NewString(), path.Ext(filename))
}
