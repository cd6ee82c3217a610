package s3

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/punchamoorthee/shelfledger/internal/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedPut struct {
	path        string
	contentType string
}

// fakeS3 answers HEAD and PUT for path-style requests without network access.
type fakeS3 struct {
	mu     sync.Mutex
	keys   map[string]bool
	denied map[string]bool
	puts   []recordedPut
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	respond := func(code int) *http.Response {
		return &http.Response{
			StatusCode: code,
			Body:       io.NopCloser(bytes.NewReader(nil)),
			Header:     http.Header{"Etag": {`"etag"`}},
			Request:    req,
		}
	}
	switch req.Method {
	case http.MethodHead:
		if f.denied[req.URL.Path] {
			return respond(http.StatusForbidden), nil
		}
		if f.keys[req.URL.Path] {
			return respond(http.StatusOK), nil
		}
		return respond(http.StatusNotFound), nil
	case http.MethodPut:
		if req.Body != nil {
			_, _ = io.Copy(io.Discard, req.Body)
		}
		f.keys[req.URL.Path] = true
		f.puts = append(f.puts, recordedPut{path: req.URL.Path, contentType: req.Header.Get("Content-Type")})
		return respond(http.StatusOK), nil
	}
	return respond(http.StatusNotImplemented), nil
}

func newFakeStore(t *testing.T) (*Store, *fakeS3) {
	t.Helper()
	fake := &fakeS3{keys: make(map[string]bool), denied: make(map[string]bool)}
	s, err := New(context.Background(), Config{
		Bucket:          "library-exports",
		Region:          "us-east-1",
		Endpoint:        "https://s3.test.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		HTTPClient:      &http.Client{Transport: fake},
	})
	require.NoError(t, err)
	return s, fake
}

func Test_Put_UploadsPathStyle(t *testing.T) {
	// arrange
	s, fake := newFakeStore(t)

	// act
	err := s.Put(context.Background(), "snapshots/ledger.json", strings.NewReader(`{}`), "application/json")

	// assert
	require.NoError(t, err)
	require.Len(t, fake.puts, 1)
	assert.Equal(t, "/library-exports/snapshots/ledger.json", fake.puts[0].path)
	assert.Equal(t, "application/json", fake.puts[0].contentType)
	assert.Equal(t, "s3://library-exports/snapshots/ledger.json", s.Location("snapshots/ledger.json"))
}

func Test_Put_ExistingKey(t *testing.T) {
	s, fake := newFakeStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "a.json", strings.NewReader("1"), ""))

	err := s.Put(ctx, "a.json", strings.NewReader("2"), "")

	assert.ErrorIs(t, err, blob.ErrExists)
	assert.Len(t, fake.puts, 1)
}

func Test_Put_HeadFailureStopsUpload(t *testing.T) {
	// arrange
	s, fake := newFakeStore(t)
	fake.denied["/library-exports/locked.json"] = true

	// act
	err := s.Put(context.Background(), "locked.json", strings.NewReader("1"), "")

	// assert
	require.Error(t, err)
	assert.NotErrorIs(t, err, blob.ErrExists)
	assert.Contains(t, err.Error(), "head object locked.json")
	assert.Empty(t, fake.puts)
}

func Test_New_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}
