package files

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/koustreak/hydrahub/internal/errs"
	"github.com/koustreak/hydrahub/internal/filestore"
	"github.com/koustreak/hydrahub/internal/filestore/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucket = "hydra-data"

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New(bucket)
	gw := filestore.NewGateway(store, bucket, filestore.GatewayOptions{})
	return New(gw, DefaultOptions(), nil), store
}

func int64p(v int64) *int64 { return &v }

func keys(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out
}

func TestList_ExtensionFilter(t *testing.T) {
	svc, store := newService(t)
	store.Put(bucket, "a.json", bytes.Repeat([]byte("x"), 10))
	store.Put(bucket, "b.txt", bytes.Repeat([]byte("x"), 20))

	got, err := svc.List(context.Background(), ListOptions{
		Recursive: true,
		Filter:    &Filter{Extensions: []string{"json"}},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a.json", got[0].Name)
	assert.Equal(t, int64(10), got[0].Size)
	assert.Empty(t, got[0].Metadata)
	assert.Contains(t, got[0].RawSource, `"key":"a.json"`)
}

func TestList_ExtensionFilterIsCaseInsensitive(t *testing.T) {
	svc, store := newService(t)
	store.Put(bucket, "a.json", []byte("{}"))
	store.Put(bucket, "B.JSON", []byte("{}"))
	store.Put(bucket, "README", []byte("no extension"))

	got, err := svc.List(context.Background(), ListOptions{
		Recursive: true,
		Filter:    &Filter{Extensions: []string{".JSON"}},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.json", "B.JSON"}, keys(got))
}

func TestList_FilterPredicatesAreANDed(t *testing.T) {
	svc, store := newService(t)
	store.PutAt(bucket, "raw/flight-01.laz", bytes.Repeat([]byte("x"), 500), t0)
	store.PutAt(bucket, "raw/flight-02.laz", bytes.Repeat([]byte("x"), 50), t0)
	store.PutAt(bucket, "raw/flight-03.LAZ", bytes.Repeat([]byte("x"), 700), t0.Add(48*time.Hour))
	store.PutAt(bucket, "raw/notes-flight.txt", bytes.Repeat([]byte("x"), 600), t0)

	after := t0.Add(-time.Hour)
	before := t0.Add(time.Hour)
	filter := &Filter{
		NameContains:   "FLIGHT",
		NameStartsWith: "raw/f",
		NameEndsWith:   ".laz",
		Extensions:     []string{"laz"},
		MinSize:        int64p(100),
		MaxSize:        int64p(1000),
		ModifiedAfter:  &after,
		ModifiedBefore: &before,
	}

	all, err := svc.List(context.Background(), DefaultListOptions())
	require.NoError(t, err)
	got, err := svc.List(context.Background(), ListOptions{Recursive: true, Filter: filter})
	require.NoError(t, err)

	assert.Equal(t, []string{"raw/flight-01.laz"}, keys(got))
	for _, e := range got {
		assert.True(t, filter.Match(e))
		assert.Contains(t, keys(all), e.Key)
	}
}

func TestList_SizeBoundsAreInclusive(t *testing.T) {
	svc, store := newService(t)
	store.Put(bucket, "five", bytes.Repeat([]byte("x"), 5))
	store.Put(bucket, "ten", bytes.Repeat([]byte("x"), 10))
	store.Put(bucket, "fifteen", bytes.Repeat([]byte("x"), 15))

	got, err := svc.List(context.Background(), ListOptions{
		Recursive: true,
		Filter:    &Filter{MinSize: int64p(5), MaxSize: int64p(10)},
		Sort:      &Sort{By: SortBySize},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"five", "ten"}, keys(got))
}

func TestList_Path(t *testing.T) {
	svc, store := newService(t)
	store.Put(bucket, "raw/a.txt", []byte("a"))
	store.Put(bucket, "processed/b.txt", []byte("b"))

	got, err := svc.List(context.Background(), ListOptions{Path: "/raw", Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"raw/a.txt"}, keys(got))
}

func TestList_SortIsStable(t *testing.T) {
	svc, store := newService(t)
	// Lexical listing order: a, b, c, d.
	store.Put(bucket, "a", bytes.Repeat([]byte("x"), 20))
	store.Put(bucket, "b", bytes.Repeat([]byte("x"), 10))
	store.Put(bucket, "c", bytes.Repeat([]byte("x"), 20))
	store.Put(bucket, "d", bytes.Repeat([]byte("x"), 10))

	asc, err := svc.List(context.Background(), ListOptions{Recursive: true, Sort: &Sort{By: SortBySize}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d", "a", "c"}, keys(asc))

	desc, err := svc.List(context.Background(), ListOptions{Recursive: true, Sort: &Sort{By: SortBySize, Order: Desc}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b", "d"}, keys(desc))
}

func TestList_SortByNameAndLastModified(t *testing.T) {
	svc, store := newService(t)
	store.PutAt(bucket, "b.txt", []byte("b"), t0.Add(2*time.Hour))
	store.PutAt(bucket, "a.txt", []byte("a"), t0.Add(3*time.Hour))
	store.PutAt(bucket, "C.txt", []byte("c"), t0.Add(1*time.Hour))

	byName, err := svc.List(context.Background(), ListOptions{Recursive: true, Sort: &Sort{By: SortByName}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "C.txt"}, keys(byName))

	byTime, err := svc.List(context.Background(), ListOptions{Recursive: true, Sort: &Sort{By: SortByLastModified, Order: Desc}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "C.txt"}, keys(byTime))

	byTimeAsc, err := svc.List(context.Background(), ListOptions{Recursive: true, Sort: &Sort{By: SortByLastModified}})
	require.NoError(t, err)
	assert.Equal(t, []string{"C.txt", "b.txt", "a.txt"}, keys(byTimeAsc))
}

func TestList_StorageFailurePropagates(t *testing.T) {
	svc, store := newService(t)
	store.Fail = func(op, _, _ string) error {
		return errs.New(errs.ErrKindConnectionFailed, "unreachable")
	}

	got, err := svc.List(context.Background(), DefaultListOptions())
	assert.Nil(t, got)
	assert.True(t, errs.IsStorageUnavailable(err))
}

func TestStats(t *testing.T) {
	svc, store := newService(t)

	empty, err := svc.Stats(context.Background(), "", true)
	require.NoError(t, err)
	assert.Equal(t, &Stats{FileCount: 0, TotalSize: 0}, empty)

	store.Put(bucket, "x/a", bytes.Repeat([]byte("x"), 5))
	store.Put(bucket, "x/b", bytes.Repeat([]byte("x"), 15))

	st, err := svc.Stats(context.Background(), "x/", true)
	require.NoError(t, err)
	assert.Equal(t, &Stats{FileCount: 2, TotalSize: 20}, st)
}

func TestStats_NonRecursiveSkipsDirectories(t *testing.T) {
	svc, store := newService(t)
	store.Put(bucket, "top.txt", bytes.Repeat([]byte("x"), 3))
	store.Put(bucket, "dir/nested.txt", bytes.Repeat([]byte("x"), 100))

	st, err := svc.Stats(context.Background(), "", false)
	require.NoError(t, err)
	assert.Equal(t, &Stats{FileCount: 1, TotalSize: 3}, st)
}

func TestPreview_Image(t *testing.T) {
	svc, store := newService(t)
	store.Fail = func(op, _, _ string) error {
		if op == "get" {
			t.Fatalf("image preview must not read content")
		}
		return nil
	}

	tests := []struct {
		expiry int
		want   int
	}{
		{0, 300},
		{10, 60},
		{900, 900},
		{99999, 3600},
	}
	for _, tt := range tests {
		p, err := svc.Preview(context.Background(), PreviewOptions{Key: "img/photo.PNG", ExpirySeconds: tt.expiry})
		require.NoError(t, err)
		assert.Equal(t, PreviewImage, p.Kind)
		assert.NotEmpty(t, p.URL)
		assert.Equal(t, tt.want, p.ExpiresIn)
	}
}

func TestPreview_TextTruncates(t *testing.T) {
	svc, store := newService(t)
	store.Put(bucket, "big.txt", bytes.Repeat([]byte("a"), 20_000))
	store.Put(bucket, "small.json", []byte(`{"ok":true}`))

	p, err := svc.Preview(context.Background(), PreviewOptions{Key: "big.txt", Limit: 10_000})
	require.NoError(t, err)
	assert.Equal(t, PreviewText, p.Kind)
	assert.True(t, p.Truncated)
	assert.Len(t, p.Content, 10_000)

	p, err = svc.Preview(context.Background(), PreviewOptions{Key: "small.json"})
	require.NoError(t, err)
	assert.False(t, p.Truncated)
	assert.Equal(t, `{"ok":true}`, p.Content)
}

func TestPreview_ExactLimitIsNotTruncated(t *testing.T) {
	svc, store := newService(t)
	store.Put(bucket, "exact.txt", []byte("12345"))

	p, err := svc.Preview(context.Background(), PreviewOptions{Key: "exact.txt", Limit: 5})
	require.NoError(t, err)
	assert.False(t, p.Truncated)
	assert.Equal(t, "12345", p.Content)
}

func TestPreview_TruncationKeepsValidUTF8(t *testing.T) {
	svc, store := newService(t)
	// "é" is two bytes; a limit of 5 splits the second one.
	store.Put(bucket, "accents.txt", []byte("abééé"))

	p, err := svc.Preview(context.Background(), PreviewOptions{Key: "accents.txt", Limit: 5})
	require.NoError(t, err)
	assert.True(t, p.Truncated)
	assert.Equal(t, "abé", p.Content)
}

func TestPreview_LimitIsClamped(t *testing.T) {
	svc, store := newService(t)
	store.Put(bucket, "big.txt", bytes.Repeat([]byte("a"), 20_000))

	p, err := svc.Preview(context.Background(), PreviewOptions{Key: "big.txt", Limit: 50_000})
	require.NoError(t, err)
	assert.Len(t, p.Content, MaxPreviewLimit)

	p, err = svc.Preview(context.Background(), PreviewOptions{Key: "big.txt", Limit: -3})
	require.NoError(t, err)
	assert.Len(t, p.Content, 1)
}

func TestPreview_Gzip(t *testing.T) {
	svc, store := newService(t)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(strings.Repeat("line\n", 10)))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	store.Put(bucket, "logs/run.txt.gz", buf.Bytes())
	store.Put(bucket, "logs/bad.txt.gz", []byte("not gzip"))

	p, err := svc.Preview(context.Background(), PreviewOptions{Key: "logs/run.txt.gz", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, PreviewText, p.Kind)
	assert.Equal(t, "line\nline\n", p.Content)
	assert.True(t, p.Truncated)

	_, err = svc.Preview(context.Background(), PreviewOptions{Key: "logs/bad.txt.gz"})
	assert.True(t, errs.IsMalformed(err))

	_, err = svc.Preview(context.Background(), PreviewOptions{Key: "archive.tar.gz"})
	assert.True(t, errs.IsUnsupported(err))
}

func TestPreview_Unsupported(t *testing.T) {
	svc, _ := newService(t)

	for _, key := range []string{"cloud.laz", "README", "data.bin"} {
		_, err := svc.Preview(context.Background(), PreviewOptions{Key: key})
		assert.True(t, errs.IsUnsupported(err), key)
	}
}

func TestPreview_MissingTextObject(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Preview(context.Background(), PreviewOptions{Key: "missing.txt"})
	assert.True(t, errs.IsNotFound(err))
}

func TestSignedURL(t *testing.T) {
	svc, _ := newService(t)

	u, err := svc.SignedURL(context.Background(), "//raw/a.laz", 0)
	require.NoError(t, err)
	assert.Equal(t, "raw/a.laz", u.Key)
	assert.Equal(t, 300, u.ExpiresIn)
	assert.Contains(t, u.URL, "raw/a.laz")

	_, err = svc.SignedURL(context.Background(), "/", 0)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestSanitizeKey(t *testing.T) {
	assert.Equal(t, "raw/a.txt", SanitizeKey("/raw/a.txt"))
	assert.Equal(t, "raw///etc/passwd", SanitizeKey("raw/../../etc/passwd"))
	assert.Equal(t, "a.b", SanitizeKey("a.b"))
}

func TestOpenAndContentType(t *testing.T) {
	svc, store := newService(t)
	store.Put(bucket, "docs/readme.txt", []byte("hi"))

	obj, err := svc.Open(context.Background(), "/docs/readme.txt")
	require.NoError(t, err)
	defer obj.Close()
	assert.Equal(t, int64(2), obj.Info().Size)

	assert.Equal(t, "application/json", ContentTypeFor("a.JSON"))
	assert.Equal(t, "text/plain; charset=utf-8", ContentTypeFor("a.txt"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("cloud.laz"))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "json", Extension("a/b.c.JSON"))
	assert.Equal(t, "", Extension("README"))
	assert.Equal(t, "", Extension("trailing."))
}

func TestPreview_ServiceDefaults(t *testing.T) {
	store := memory.New(bucket)
	gw := filestore.NewGateway(store, bucket, filestore.GatewayOptions{})
	opts := DefaultOptions()
	opts.DefaultLimit = 4
	opts.DefaultExpirySeconds = 120
	svc := New(gw, opts, nil)
	store.Put(bucket, "notes.txt", []byte("hello world"))

	p, err := svc.Preview(context.Background(), PreviewOptions{Key: "notes.txt"})
	require.NoError(t, err)
	assert.Equal(t, "hell", p.Content)
	assert.True(t, p.Truncated)

	p, err = svc.Preview(context.Background(), PreviewOptions{Key: "a.png"})
	require.NoError(t, err)
	assert.Equal(t, 120, p.ExpiresIn)

	u, err := svc.SignedURL(context.Background(), "notes.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, 120, u.ExpiresIn)
}
