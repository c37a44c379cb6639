package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomwire/ingest/pkg/domain"
)

func TestFingerprint_Stability(t *testing.T) {
	h1 := Fingerprint("s1", "ext-42")
	h2 := Fingerprint("s1", "ext-42")
	assert.Equal(t, h1, h2, "fingerprint is deterministic")
	assert.Len(t, h1, 64)

	// title/body are not part of the hash by construction; a different
	// external id must produce a different hash
	assert.NotEqual(t, h1, Fingerprint("s1", "ext-43"))
	assert.NotEqual(t, h1, Fingerprint("s2", "ext-42"))
}

func TestNormalizer_Normalize(t *testing.T) {
	n := New()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src := domain.Source{ID: 7, Slug: "world-nuclear", Language: "de"}

	published := time.Date(2024, 5, 30, 8, 0, 0, 0, time.UTC)
	item := domain.RawItem{
		ExternalID:  " ext-1 ",
		ExternalURL: "http://example.com/a1",
		Title:       "  Reactor update  ",
		BodyHTML:    `<p>body</p><script>alert("x")</script>`,
		Excerpt:     " short ",
		PublishedAt: &published,
	}

	draft, err := n.Normalize(src, item, now)
	require.NoError(t, err)

	assert.Equal(t, int64(7), draft.SourceID)
	assert.Equal(t, "ext-1", draft.ExternalID)
	assert.Equal(t, "Reactor update", draft.Title)
	assert.Equal(t, "<p>body</p>", draft.Content, "script tags stripped")
	assert.Equal(t, "short", draft.Excerpt)
	assert.Equal(t, "de", draft.Language)
	assert.Empty(t, draft.Tags)
	assert.Equal(t, now, draft.ScrapedAt)
	assert.Equal(t, &published, draft.PublishedAt)
	assert.Equal(t, Fingerprint("world-nuclear", "ext-1"), draft.ContentHash)
}

func TestNormalizer_LanguageDefault(t *testing.T) {
	n := New()
	draft, err := n.Normalize(domain.Source{Slug: "s"}, domain.RawItem{ExternalID: "e", Title: "t"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "en", draft.Language)
}

func TestNormalizer_ExternalIDFallback(t *testing.T) {
	n := New()
	draft, err := n.Normalize(domain.Source{Slug: "s"},
		domain.RawItem{ExternalURL: "http://example.com/x", Title: "t"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/x", draft.ExternalID)
}

func TestNormalizer_Errors(t *testing.T) {
	n := New()

	_, err := n.Normalize(domain.Source{Slug: "s"}, domain.RawItem{Title: "t"}, time.Now())
	require.Error(t, err, "no external id or url")

	_, err = n.Normalize(domain.Source{Slug: "s"}, domain.RawItem{ExternalID: "e", Title: "   "}, time.Now())
	require.Error(t, err, "blank title")
}

func TestNormalizer_Images(t *testing.T) {
	n := New()
	item := domain.RawItem{
		ExternalID: "e",
		Title:      "t",
		Images: []domain.Image{
			{URL: "http://example.com/1.jpg"},
			{URL: "http://example.com/2.jpg", IsCover: true},
			{URL: "   "},
			{URL: "http://example.com/3.jpg", IsCover: true},
		},
	}

	draft, err := n.Normalize(domain.Source{Slug: "s"}, item, time.Now())
	require.NoError(t, err)
	require.Len(t, draft.Images, 3, "blank urls dropped")

	assert.Equal(t, "http://example.com/1.jpg", draft.Images[0].URL, "order preserved")
	assert.False(t, draft.Images[0].IsCover)
	assert.True(t, draft.Images[1].IsCover, "first cover signal wins")
	assert.False(t, draft.Images[2].IsCover, "second cover demoted")
}
