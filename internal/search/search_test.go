package search

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podibleapp/podible-server/internal/domain"
)

func testIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() }) //nolint:errcheck
	return idx
}

func testBooks() []*domain.Book {
	return []*domain.Book{
		{ID: "dune", Title: "Dune", Author: "Frank Herbert", Description: "Spice and sandworms on Arrakis."},
		{ID: "emma", Title: "Emma", Author: "Jane Austen", Description: "A novel of manners."},
		{ID: "persuasion", Title: "Persuasion", Author: "Jane Austen"},
	}
}

func TestSearchByTitle(t *testing.T) {
	idx := testIndex(t)
	require.NoError(t, idx.Rebuild(testBooks()))

	ids, err := idx.Search("dune")
	require.NoError(t, err)
	assert.Equal(t, []string{"dune"}, ids)
}

func TestSearchByAuthorMatchesMultiple(t *testing.T) {
	idx := testIndex(t)
	require.NoError(t, idx.Rebuild(testBooks()))

	ids, err := idx.Search("austen")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"emma", "persuasion"}, ids)
}

func TestSearchByDescription(t *testing.T) {
	idx := testIndex(t)
	require.NoError(t, idx.Rebuild(testBooks()))

	ids, err := idx.Search("sandworms")
	require.NoError(t, err)
	assert.Equal(t, []string{"dune"}, ids)
}

func TestSearchNoMatches(t *testing.T) {
	idx := testIndex(t)
	require.NoError(t, idx.Rebuild(testBooks()))

	ids, err := idx.Search("zzzzz")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRebuildReplacesContents(t *testing.T) {
	idx := testIndex(t)
	require.NoError(t, idx.Rebuild(testBooks()))

	require.NoError(t, idx.Rebuild([]*domain.Book{
		{ID: "solo", Title: "Solo", Author: "Nobody"},
	}))

	ids, err := idx.Search("austen")
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = idx.Search("solo")
	require.NoError(t, err)
	assert.Equal(t, []string{"solo"}, ids)
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := testIndex(t)

	ids, err := idx.Search("anything")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
