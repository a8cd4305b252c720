package sqlite

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cabinet-estimator/catalog"
	"github.com/warp/cabinet-estimator/estimate"
)

func addItem(t *testing.T, s *Store, categoryID int64, name, price string) catalog.PriceItem {
	t.Helper()
	item, err := s.AddItem(context.Background(), catalog.PriceItem{
		Name:       name,
		UnitPrice:  decimal.RequireFromString(price),
		CategoryID: categoryID,
	})
	require.NoError(t, err)
	return item
}

func itemNames(items []catalog.PriceItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func categoryNames(cats []catalog.Category) []string {
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = c.Name
	}
	return out
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func TestCustomers_SaveListSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.SaveCustomer(ctx, catalog.Customer{Name: " Zed Builders ", Phone: "555-0101"})
	require.NoError(t, err)
	_, err = store.SaveCustomer(ctx, catalog.Customer{Name: "Ada Homes", Email: "ada@example.com"})
	require.NoError(t, err)

	all, err := store.ListCustomers(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Ada Homes", all[0].Name)
	assert.Equal(t, "Zed Builders", all[1].Name)

	found, err := store.ListCustomers(ctx, "0101")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, id, found[0].ID)

	_, err = store.SaveCustomer(ctx, catalog.Customer{ID: id, Name: "Zed Builders LLC"})
	require.NoError(t, err)
	got, err := store.GetCustomer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Zed Builders LLC", got.Name)

	_, err = store.SaveCustomer(ctx, catalog.Customer{Name: ""})
	assert.ErrorIs(t, err, catalog.ErrInvalid)

	_, err = store.SaveCustomer(ctx, catalog.Customer{ID: 999, Name: "Ghost"})
	assert.ErrorIs(t, err, catalog.ErrCustomerNotFound)
}

func TestDeleteCustomer_CascadesToEstimates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN: two customers with saved estimates
	keep, err := store.SaveCustomer(ctx, catalog.Customer{Name: "Keep"})
	require.NoError(t, err)
	drop, err := store.SaveCustomer(ctx, catalog.Customer{Name: "Drop"})
	require.NoError(t, err)

	for _, cust := range []int64{keep, drop, drop} {
		agg := estimate.New(store, store, estimate.Defaults{})
		agg.SetCustomer(cust)
		_, err := agg.AddWriteIn("Panel", 1, decimal.NewFromInt(10))
		require.NoError(t, err)
		_, err = agg.Save(ctx)
		require.NoError(t, err)
	}

	// WHEN
	removed, err := store.DeleteCustomer(ctx, drop)
	require.NoError(t, err)

	// THEN: no orphans remain
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, countRows(t, store, `SELECT COUNT(*) FROM estimate_jobs WHERE customer_id = ?`, drop))
	assert.Equal(t, 0, countRows(t, store,
		`SELECT COUNT(*) FROM estimate_line_items WHERE job_id NOT IN (SELECT job_id FROM estimate_jobs)`))
	assert.Equal(t, 1, countRows(t, store, `SELECT COUNT(*) FROM estimate_jobs`))
	assert.Equal(t, 1, countRows(t, store, `SELECT COUNT(*) FROM estimate_line_items`))

	_, err = store.DeleteCustomer(ctx, drop)
	assert.ErrorIs(t, err, catalog.ErrCustomerNotFound)
}

// =============================================================================
// CATEGORIES
// =============================================================================

func TestCategories_SentinelAlwaysLast(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddCategory(ctx, "Cabinets")
	require.NoError(t, err)
	_, err = store.AddCategory(ctx, "Hardware")
	require.NoError(t, err)

	// A sentinel with a low sort order still lists last.
	_, err = store.db.Exec(`UPDATE categories SET sort_order = -5 WHERE name = 'Uncategorized'`)
	require.NoError(t, err)

	cats, err := store.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cabinets", "Hardware", "Uncategorized"}, categoryNames(cats))
}

func TestCategories_DuplicateNameIsDistinctError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.AddCategory(ctx, "Hardware")
	require.NoError(t, err)

	_, err = store.AddCategory(ctx, "Hardware")
	assert.ErrorIs(t, err, catalog.ErrCategoryExists)

	other, err := store.AddCategory(ctx, "Trim")
	require.NoError(t, err)
	err = store.RenameCategory(ctx, other.ID, "Hardware")
	assert.ErrorIs(t, err, catalog.ErrCategoryExists)
}

func TestCategories_SentinelIsProtected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cats, err := store.ListCategories(ctx)
	require.NoError(t, err)
	sentinel := cats[0].ID

	assert.ErrorIs(t, store.RenameCategory(ctx, sentinel, "Misc"), catalog.ErrProtectedCategory)
	assert.ErrorIs(t, store.MoveCategory(ctx, sentinel, catalog.Up), catalog.ErrProtectedCategory)
	_, err = store.DeleteCategory(ctx, sentinel)
	assert.ErrorIs(t, err, catalog.ErrProtectedCategory)
}

func TestDeleteCategory_ReassignsItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN: a category with two items and one item already uncategorized
	hw, err := store.AddCategory(ctx, "Hardware")
	require.NoError(t, err)
	cats, err := store.ListCategories(ctx)
	require.NoError(t, err)
	sentinel := cats[len(cats)-1].ID

	addItem(t, store, sentinel, "Loose part", "1")
	addItem(t, store, hw.ID, "Hinge", "4")
	addItem(t, store, hw.ID, "Pull", "6")

	before, err := store.ListItems(ctx, sentinel)
	require.NoError(t, err)

	// WHEN
	moved, err := store.DeleteCategory(ctx, hw.ID)
	require.NoError(t, err)

	// THEN
	assert.Equal(t, 2, moved)
	after, err := store.ListItems(ctx, sentinel)
	require.NoError(t, err)
	assert.Equal(t, len(before)+moved, len(after))
	assert.Equal(t, []string{"Loose part", "Hinge", "Pull"}, itemNames(after))

	got, err := store.GetCategory(ctx, hw.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMoveCategory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, _ := store.AddCategory(ctx, "A")
	b, _ := store.AddCategory(ctx, "B")
	c, _ := store.AddCategory(ctx, "C")

	// Boundaries are no-ops.
	require.NoError(t, store.MoveCategory(ctx, a.ID, catalog.Up))
	require.NoError(t, store.MoveCategory(ctx, c.ID, catalog.Down))
	cats, _ := store.ListCategories(ctx)
	assert.Equal(t, []string{"A", "B", "C", "Uncategorized"}, categoryNames(cats))

	// Middle element swaps exactly two values.
	require.NoError(t, store.MoveCategory(ctx, b.ID, catalog.Down))
	cats, _ = store.ListCategories(ctx)
	assert.Equal(t, []string{"A", "C", "B", "Uncategorized"}, categoryNames(cats))
	assert.Equal(t, []int{1, 2, 3, 9999}, []int{cats[0].SortOrder, cats[1].SortOrder, cats[2].SortOrder, cats[3].SortOrder})

	// Deleting renumbers densely.
	_, err := store.DeleteCategory(ctx, a.ID)
	require.NoError(t, err)
	cats, _ = store.ListCategories(ctx)
	assert.Equal(t, 1, cats[0].SortOrder)
	assert.Equal(t, 2, cats[1].SortOrder)
}

// =============================================================================
// PRICE ITEMS
// =============================================================================

func TestMoveItem_HardwareExample(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN: Hardware with A($10, order 1) and B($20, order 2)
	hw, err := store.AddCategory(ctx, "Hardware")
	require.NoError(t, err)
	a := addItem(t, store, hw.ID, "A", "10")
	b := addItem(t, store, hw.ID, "B", "20")
	assert.Equal(t, 1, a.SortOrder)
	assert.Equal(t, 2, b.SortOrder)

	// WHEN: B moves up
	require.NoError(t, store.MoveItem(ctx, b.ID, catalog.Up))

	// THEN
	items, err := store.ListItems(ctx, hw.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, itemNames(items))
	assert.Equal(t, 1, items[0].SortOrder)
	assert.Equal(t, 2, items[1].SortOrder)

	// Moving the first item up again is a no-op.
	require.NoError(t, store.MoveItem(ctx, b.ID, catalog.Up))
	items, _ = store.ListItems(ctx, hw.ID)
	assert.Equal(t, []string{"B", "A"}, itemNames(items))
}

func TestMoveItem_OnlyTwoValuesChange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	hw, _ := store.AddCategory(ctx, "Hardware")
	var ids []int64
	for _, n := range []string{"A", "B", "C", "D"} {
		ids = append(ids, addItem(t, store, hw.ID, n, "1").ID)
	}

	require.NoError(t, store.MoveItem(ctx, ids[2], catalog.Up))

	orders := map[int64]int{}
	items, _ := store.ListItems(ctx, hw.ID)
	for _, it := range items {
		orders[it.ID] = it.SortOrder
	}
	assert.Equal(t, 1, orders[ids[0]])
	assert.Equal(t, 3, orders[ids[1]])
	assert.Equal(t, 2, orders[ids[2]])
	assert.Equal(t, 4, orders[ids[3]])
}

func TestItems_UpdateAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cab, _ := store.AddCategory(ctx, "Cabinets")
	trim, _ := store.AddCategory(ctx, "Trim")
	a := addItem(t, store, cab.ID, "Base", "100")
	b := addItem(t, store, cab.ID, "Wall", "80")
	addItem(t, store, trim.ID, "Crown", "30")

	// Moving Base to Trim appends it there and closes the gap in Cabinets.
	a.CategoryID = trim.ID
	a.UnitPrice = decimal.NewFromInt(110)
	require.NoError(t, store.UpdateItem(ctx, a))

	got, err := store.GetItem(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trim", got.CategoryName)
	assert.Equal(t, 2, got.SortOrder)
	assert.True(t, got.UnitPrice.Equal(decimal.NewFromInt(110)))

	wall, _ := store.GetItem(ctx, b.ID)
	assert.Equal(t, 1, wall.SortOrder)

	require.NoError(t, store.DeleteItem(ctx, b.ID))
	assert.ErrorIs(t, store.DeleteItem(ctx, b.ID), catalog.ErrItemNotFound)

	_, err = store.AddItem(ctx, catalog.PriceItem{Name: "Bad", UnitPrice: decimal.NewFromInt(-1), CategoryID: cab.ID})
	assert.ErrorIs(t, err, catalog.ErrInvalid)
	_, err = store.AddItem(ctx, catalog.PriceItem{Name: "Lost", UnitPrice: decimal.NewFromInt(1), CategoryID: 404})
	assert.ErrorIs(t, err, catalog.ErrCategoryNotFound)

	found, err := store.SearchItems(ctx, "crow")
	require.NoError(t, err)
	assert.Equal(t, []string{"Crown"}, itemNames(found))
}

func TestListItems_CategoryOrderThenItemOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cats, _ := store.ListCategories(ctx)
	sentinel := cats[0].ID
	cab, _ := store.AddCategory(ctx, "Cabinets")
	trim, _ := store.AddCategory(ctx, "Trim")

	addItem(t, store, sentinel, "Loose", "1")
	addItem(t, store, trim.ID, "Crown", "30")
	addItem(t, store, cab.ID, "Base", "100")
	addItem(t, store, cab.ID, "Wall", "80")

	items, err := store.ListItems(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Base", "Wall", "Crown", "Loose"}, itemNames(items))

	looked, err := store.LookupItem(ctx, items[2].ID)
	require.NoError(t, err)
	assert.Equal(t, "Trim", looked.CategoryName)

	missing, err := store.LookupItem(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
