// Package artifacts lists the blobs a run produced and hands out
// time-limited download links for them.
package artifacts

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"rcmos/internal/domain"
	"rcmos/internal/logger"

	"github.com/minio/minio-go/v7"
)

type Artifact struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type Store interface {
	List(ctx context.Context, runID string) ([]Artifact, error)
}

// ObjectClient is the subset of *minio.Client used here.
type ObjectClient interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

type minioStore struct {
	client     ObjectClient
	bucket     string
	presignTTL time.Duration
	logger     logger.Logger
}

func NewMinioStore(client ObjectClient, bucket string, presignTTL time.Duration, log logger.Logger) Store {
	return &minioStore{
		client:     client,
		bucket:     bucket,
		presignTTL: presignTTL,
		logger:     log.With(logger.String("component", "artifact_store")),
	}
}

// Prefix is the namespace holding one run's artifacts.
func Prefix(runID string) string {
	return "runs/" + runID + "/"
}

func (s *minioStore) List(ctx context.Context, runID string) ([]Artifact, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: Prefix(runID), Recursive: true}) {
		if obj.Err != nil {
			return nil, domain.Transport("list artifacts", obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)

	artifacts := make([]Artifact, 0, len(keys))
	for _, key := range keys {
		u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignTTL, nil)
		if err != nil {
			return nil, domain.Transport("presign artifact", fmt.Errorf("%s: %w", key, err))
		}
		artifacts = append(artifacts, Artifact{Key: key, URL: u.String()})
	}

	s.logger.Debug("artifacts listed",
		logger.String("run_id", runID),
		logger.Int("count", len(artifacts)))
	return artifacts, nil
}

// EnsureBucket creates bucket when it does not exist yet.
func EnsureBucket(ctx context.Context, client *minio.Client, bucket, region string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

type emptyStore struct{}

// NewEmptyStore is used when no object store is configured; every run has
// no artifacts.
func NewEmptyStore() Store {
	return emptyStore{}
}

func (emptyStore) List(ctx context.Context, runID string) ([]Artifact, error) {
	return []Artifact{}, nil
}
