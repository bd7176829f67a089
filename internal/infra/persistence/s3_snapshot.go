package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/spounge-ai/parishvault/internal/domain"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Snapshotter writes the registry, ciphertext only, to S3 so a rotation
// can be audited or rolled back by hand.
type S3Snapshotter struct {
	client objectPutter
	bucket string
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

func NewS3Snapshotter(cfg aws.Config, bucket, prefix string, logger *slog.Logger) *S3Snapshotter {
	return &S3Snapshotter{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		logger: logger,
		now:    time.Now,
	}
}

type snapshotEntry struct {
	ID                  int64     `json:"id"`
	PublicID            uuid.UUID `json:"public_id"`
	DisplayName         string    `json:"display_name"`
	EncryptedConnection string    `json:"encrypted_connection"`
	KeyVersion          int       `json:"key_version"`
	CreatedAt           time.Time `json:"created_at"`
}

type snapshotDocument struct {
	TakenAt time.Time       `json:"taken_at"`
	Reason  string          `json:"reason"`
	Entries []snapshotEntry `json:"entries"`
}

// Snapshot uploads entries and returns the object key.
func (s *S3Snapshotter) Snapshot(ctx context.Context, reason string, entries []*domain.TenantEntry) (string, error) {
	takenAt := s.now().UTC()
	doc := snapshotDocument{
		TakenAt: takenAt,
		Reason:  reason,
		Entries: make([]snapshotEntry, 0, len(entries)),
	}
	for _, e := range entries {
		doc.Entries = append(doc.Entries, snapshotEntry{
			ID:                  e.ID,
			PublicID:            e.PublicID,
			DisplayName:         e.DisplayName,
			EncryptedConnection: e.EncryptedConnection,
			KeyVersion:          e.KeyVersion,
			CreatedAt:           e.CreatedAt,
		})
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal registry snapshot: %w", err)
	}

	key := s.objectKey(takenAt)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: types.ServerSideEncryptionAwsKms,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload registry snapshot to s3://%s/%s: %w", s.bucket, key, err)
	}

	s.logger.InfoContext(ctx, "registry snapshot stored", "bucket", s.bucket, "key", key, "entries", len(entries))
	return key, nil
}

func (s *S3Snapshotter) objectKey(t time.Time) string {
	prefix := s.prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + "registry-" + t.Format("20060102T150405Z") + ".json"
}
