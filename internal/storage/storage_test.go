package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicBaseURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com",
		PublicBaseURL(Config{Bucket: "b", Region: "us-east-1", PublicBaseURL: "https://cdn.example.com/"}))
	assert.Equal(t, "http://minio:9000/b",
		PublicBaseURL(Config{Bucket: "b", Endpoint: "http://minio:9000"}))
	assert.Equal(t, "https://b.s3.eu-west-1.amazonaws.com",
		PublicBaseURL(Config{Bucket: "b", Region: "eu-west-1"}))
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), Config{Region: "us-east-1"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPutAgainstCompatibleEndpoint(t *testing.T) {
	var gotPath, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := NewS3Store(context.Background(), Config{
		Region:          "us-east-1",
		Bucket:          "seeds",
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "seeds/u/1.png", "image/png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/seeds/seeds/u/1.png", url)
	assert.Equal(t, "/seeds/seeds/u/1.png", gotPath)
	assert.Equal(t, "image/png", gotType)
	assert.Contains(t, string(gotBody), "png")
}
