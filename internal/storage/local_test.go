package storage

import (
	"context"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_UploadSignOpen(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "http://localhost:8080/", "secret")
	require.NoError(t, err)
	ctx := context.Background()
	name := ExportObjectName("u1", "e1")

	p, err := s.Upload(ctx, name, "application/pdf", strings.NewReader("%PDF-1.7"))
	require.NoError(t, err)
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(b))

	raw, err := s.SignedGetURL(ctx, name, "Jane_Doe_CV.pdf", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "http://localhost:8080/files/exports/u1/e1.pdf?"))

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "Jane_Doe_CV.pdf", q.Get("name"))

	got, err := s.Open(name, q.Get("name"), q.Get("expires"), q.Get("sig"))
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = s.Open("exports/u1/other.pdf", q.Get("name"), q.Get("expires"), q.Get("sig"))
	assert.Error(t, err, "signature is bound to the object")

	_, err = s.Open(name, "Someone_Else.pdf", q.Get("expires"), q.Get("sig"))
	assert.Error(t, err, "signature is bound to the download name")

	s.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = s.Open(name, q.Get("name"), q.Get("expires"), q.Get("sig"))
	assert.EqualError(t, err, "link expired")
}

func TestLocalStore_RejectsTraversalAndDeletesIdempotently(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "", "k")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Upload(ctx, "../escape.pdf", "application/pdf", strings.NewReader("x"))
	assert.Error(t, err)

	_, err = s.Upload(ctx, "a/b.pdf", "application/pdf", strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "a/b.pdf"))
	require.NoError(t, s.Delete(ctx, "a/b.pdf"))
}

func TestLocalStore_UnnamedLinkOmitsName(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "", "k")
	require.NoError(t, err)

	raw, err := s.SignedGetURL(context.Background(), "a/b.pdf", "", time.Minute)
	require.NoError(t, err)
	assert.NotContains(t, raw, "name=")
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, "attachment; filename=CV.pdf", ContentDisposition("CV.pdf"))
	assert.Equal(t, `attachment; filename="Jane Doe CV.pdf"`, ContentDisposition("Jane Doe CV.pdf"))
}
