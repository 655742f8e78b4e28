package artifacts

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"rcmos/internal/domain"
	"rcmos/internal/logger"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	objects    []minio.ObjectInfo
	prefix     string
	presignErr error
	ttl        time.Duration
}

func (f *fakeObjects) ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	f.prefix = opts.Prefix
	ch := make(chan minio.ObjectInfo, len(f.objects))
	for _, o := range f.objects {
		ch <- o
	}
	close(ch)
	return ch
}

func (f *fakeObjects) PresignedGetObject(ctx context.Context, bucket, object string, expires time.Duration, params url.Values) (*url.URL, error) {
	if f.presignErr != nil {
		return nil, f.presignErr
	}
	f.ttl = expires
	return url.Parse("http://minio.local/" + bucket + "/" + object + "?X-Amz-Signature=sig")
}

func TestListScopesToRunPrefix(t *testing.T) {
	client := &fakeObjects{objects: []minio.ObjectInfo{
		{Key: "runs/r1/screenshot.png"},
		{Key: "runs/r1/dom.html"},
	}}
	store := NewMinioStore(client, "rcmos-artifacts", 15*time.Minute, logger.NewNop())

	got, err := store.List(context.Background(), "r1")
	require.NoError(t, err)

	assert.Equal(t, "runs/r1/", client.prefix)
	assert.Equal(t, 15*time.Minute, client.ttl)
	require.Len(t, got, 2)
	assert.Equal(t, "runs/r1/dom.html", got[0].Key)
	assert.Contains(t, got[0].URL, "rcmos-artifacts/runs/r1/dom.html")
}

func TestListEmpty(t *testing.T) {
	got, err := NewMinioStore(&fakeObjects{}, "b", time.Minute, logger.NewNop()).List(context.Background(), "r2")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListErrorsAreTransport(t *testing.T) {
	listing := &fakeObjects{objects: []minio.ObjectInfo{{Err: errors.New("connection reset")}}}
	_, err := NewMinioStore(listing, "b", time.Minute, logger.NewNop()).List(context.Background(), "r")
	assert.ErrorIs(t, err, domain.ErrTransport)

	presign := &fakeObjects{objects: []minio.ObjectInfo{{Key: "runs/r/a"}}, presignErr: errors.New("no creds")}
	_, err = NewMinioStore(presign, "b", time.Minute, logger.NewNop()).List(context.Background(), "r")
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestEmptyStoreListsNothing(t *testing.T) {
	list, err := NewEmptyStore().List(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)
}
