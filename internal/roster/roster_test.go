package roster

import (
	"context"
	"testing"

	"github.com/MarcoPoloResearchLab/sortie/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Created int64  `json:"createdAt"`
	Count   int    `json:"count"`
}

func (i item) RecordID() string       { return i.ID }
func (i item) RecordName() string     { return i.Name }
func (i item) CreatedAtMillis() int64 { return i.Created }

func TestRosterLifecycle(t *testing.T) {
	ctx := context.Background()
	roster := New[item](store.NewMemoryStore(), "items")

	empty, err := roster.List(ctx, "owner")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, roster.Add(ctx, "owner", item{ID: "2", Name: "late", Created: 20}))
	require.NoError(t, roster.Add(ctx, "owner", item{ID: "1", Name: "early", Created: 10}))
	require.NoError(t, roster.Add(ctx, "other", item{ID: "3", Name: "early", Created: 5}))

	items, err := roster.List(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].ID)

	found, err := roster.Find(ctx, "owner", "late")
	require.NoError(t, err)
	assert.Equal(t, "2", found.ID)

	_, err = roster.Find(ctx, "owner", "3")
	require.ErrorIs(t, err, ErrRecordNotFound)

	updated, err := roster.Mutate(ctx, "owner", "1", func(i *item) error {
		i.Count = 9
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 9, updated.Count)

	removed, err := roster.Delete(ctx, "owner", "early")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = roster.Delete(ctx, "owner", "early")
	require.NoError(t, err)
	assert.False(t, removed)

	others, err := roster.List(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestPaginate(t *testing.T) {
	values := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

	first := Paginate(values, 0, 10)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, first.Items)
	assert.Equal(t, 2, first.Pages)
	assert.False(t, first.HasPrev())
	assert.True(t, first.HasNext())

	clamped := Paginate(values, 7, 10)
	assert.Equal(t, 1, clamped.Index)
	assert.Equal(t, []int{11, 12}, clamped.Items)
	assert.Equal(t, 10, clamped.Offset)

	none := Paginate([]int{}, 0, 10)
	assert.Equal(t, 1, none.Pages)
	assert.Empty(t, none.Items)
}
