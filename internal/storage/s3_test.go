package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartSize(t *testing.T) {
	tests := []struct {
		name string
		size int64
		want int64
	}{
		{"empty", 0, 1},
		{"tiny", 500, 1},
		{"1MB", 1_000_000, 1_200},
		{"5GB", 5_000_000_000, 6_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PartSize(tt.size, DefaultMaxParts))
		})
	}
}

func TestPartSize_StaysUnderCeiling(t *testing.T) {
	for _, size := range []int64{1_000_000, 123_456_789, 5_000_000_000, 100_000_000_000} {
		ps := PartSize(size, DefaultMaxParts)
		parts := (size + ps - 1) / ps
		assert.LessOrEqual(t, parts, int64(DefaultMaxParts), "size %d", size)

		eff := EffectivePartSize(size, DefaultMaxParts)
		assert.GreaterOrEqual(t, eff, ps)
		assert.LessOrEqual(t, (size+eff-1)/eff, int64(DefaultMaxParts), "size %d", size)
	}
}

func TestKeyAndPublicURL(t *testing.T) {
	u := NewWithClient(nil, Config{Bucket: "rnb-opendata", Region: "fr-par", Directory: "/files/"})
	key := u.Key("RNB_75.csv.zip")
	assert.Equal(t, "files/RNB_75.csv.zip", key)
	assert.Equal(t, "https://rnb-opendata.s3.fr-par.scw.cloud/files/RNB_75.csv.zip", u.PublicURL(key))

	u = NewWithClient(nil, Config{Bucket: "b", PublicBaseURL: "https://cdn.example.org/"})
	assert.Equal(t, "RNB_nat.csv.zip", u.Key("RNB_nat.csv.zip"))
	assert.Equal(t, "https://cdn.example.org/RNB_nat.csv.zip", u.PublicURL("RNB_nat.csv.zip"))
}

// fakeS3 accepts path-style PUT and HEAD for single-part uploads.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	acl     map[string]string
	heads   int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		f.acl[r.URL.Path] = r.Header.Get("X-Amz-Acl")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		f.heads++
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestUpload(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, acl: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	cfg := Config{
		Endpoint:     srv.URL,
		Region:       "fr-par",
		Bucket:       "rnb-opendata",
		Directory:    "files",
		UsePathStyle: true,
	}
	client := s3.New(s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
		HTTPClient:  srv.Client(),
		Retryer:     aws.NopRetryer{},
	}, ClientOptions(cfg))
	u := NewWithClient(client, cfg)

	path := filepath.Join(t.TempDir(), "RNB_75.csv.zip")
	payload := []byte("PK fake zip content")
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	url, err := u.Upload(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "https://rnb-opendata.s3.fr-par.scw.cloud/files/RNB_75.csv.zip", url)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, payload, fake.objects["/rnb-opendata/files/RNB_75.csv.zip"])
	assert.Equal(t, "public-read", fake.acl["/rnb-opendata/files/RNB_75.csv.zip"])
	assert.GreaterOrEqual(t, fake.heads, 1)
}

func TestUpload_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := Config{Endpoint: srv.URL, Region: "fr-par", Bucket: "b", UsePathStyle: true}
	client := s3.New(s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
		HTTPClient:  srv.Client(),
		Retryer:     aws.NopRetryer{},
	}, ClientOptions(cfg))

	path := filepath.Join(t.TempDir(), "RNB_nat.csv.zip")
	require.NoError(t, os.WriteFile(path, []byte("zip"), 0o644))

	_, err := NewWithClient(client, cfg).Upload(context.Background(), path)
	assert.Error(t, err)
}
