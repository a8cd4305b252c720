package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cabinet-estimator/catalog"
)

func entry(category, name, price string) catalog.PriceListEntry {
	return catalog.PriceListEntry{Category: category, ItemName: name, UnitPrice: dec(price)}
}

func listCategoryNames(t *testing.T, s *Store) []string {
	t.Helper()
	cats, err := s.ListCategories(context.Background())
	require.NoError(t, err)
	return categoryNames(cats)
}

func TestPriceListEntries_ExportOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	hw, err := store.AddCategory(ctx, "Hardware")
	require.NoError(t, err)
	trim, err := store.AddCategory(ctx, "Trim")
	require.NoError(t, err)
	addItem(t, store, trim.ID, "Crown", "12.5")
	addItem(t, store, hw.ID, "Hinge", "4")
	cats, err := store.ListCategories(ctx)
	require.NoError(t, err)
	addItem(t, store, cats[len(cats)-1].ID, "Loose part", "1")
	addItem(t, store, hw.ID, "Pull", "6")

	entries, err := store.PriceListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	var got []string
	for _, e := range entries {
		got = append(got, e.Category+"/"+e.ItemName)
	}
	assert.Equal(t, []string{"Hardware/Hinge", "Hardware/Pull", "Trim/Crown", "Uncategorized/Loose part"}, got)
	assert.Equal(t, "12.5", entries[2].UnitPrice.String())
}

func TestReplacePriceList_CreatesCategories(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN: an existing list
	hw, err := store.AddCategory(ctx, "Hardware")
	require.NoError(t, err)
	addItem(t, store, hw.ID, "Old hinge", "3")

	// WHEN: replaced by entries naming one known and one new category
	result, err := store.ReplacePriceList(ctx, []catalog.PriceListEntry{
		entry("Hardware", "Hinge", "4"),
		entry("Panels", "End panel", "80"),
		entry("Hardware", "Pull", "6"),
	})
	require.NoError(t, err)

	// THEN: old items are gone, the new category is appended before Uncategorized
	assert.Equal(t, 3, result.Items)
	assert.Equal(t, 1, result.CategoriesCreated)
	assert.Equal(t, []string{"Hardware", "Panels", "Uncategorized"}, listCategoryNames(t, store))

	items, err := store.ListItems(ctx, hw.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hinge", "Pull"}, itemNames(items))
	assert.Equal(t, 0, countRows(t, store, `SELECT COUNT(*) FROM pricelist WHERE item_name = 'Old hinge'`))
}

func TestReplacePriceList_InvalidEntryLeavesListUntouched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	hw, err := store.AddCategory(ctx, "Hardware")
	require.NoError(t, err)
	addItem(t, store, hw.ID, "Hinge", "4")
	addItem(t, store, hw.ID, "Pull", "6")
	before, err := store.PriceListEntries(ctx)
	require.NoError(t, err)

	cases := map[string][]catalog.PriceListEntry{
		"negative price": {entry("Hardware", "Knob", "2"), entry("Hardware", "Bad", "-1")},
		"blank name":     {entry("Hardware", "Knob", "2"), entry("Hardware", " ", "1")},
		"blank category": {entry("Hardware", "Knob", "2"), entry("", "Loose", "1")},
	}
	for name, entries := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := store.ReplacePriceList(ctx, entries)
			require.Error(t, err)
			assert.ErrorIs(t, err, catalog.ErrInvalid)

			after, err := store.PriceListEntries(ctx)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.Equal(t, []string{"Hardware", "Uncategorized"}, listCategoryNames(t, store))
		})
	}
}

func TestReplacePriceList_FailureRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	hw, err := store.AddCategory(ctx, "Hardware")
	require.NoError(t, err)
	addItem(t, store, hw.ID, "Hinge", "4")
	before, err := store.PriceListEntries(ctx)
	require.NoError(t, err)

	// A cancelled context fails inside the transaction after validation.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.ReplacePriceList(cancelled, []catalog.PriceListEntry{entry("New", "Thing", "1")})
	require.Error(t, err)

	after, err := store.PriceListEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, []string{"Hardware", "Uncategorized"}, listCategoryNames(t, store))
}
