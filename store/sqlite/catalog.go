package sqlite

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/warp/cabinet-estimator/catalog"
)

// =============================================================================
// CUSTOMERS
// =============================================================================

const customerColumns = `id, name, COALESCE(address, '') AS address,
	COALESCE(phone, '') AS phone, COALESCE(email, '') AS email`

// ListCustomers returns customers ordered by name. A non-blank search matches
// name, phone or email.
func (s *Store) ListCustomers(ctx context.Context, search string) ([]catalog.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := []catalog.Customer{}
	err := s.db.SelectContext(ctx, &customers, `
		SELECT `+customerColumns+` FROM customers
		WHERE ? = '' OR name LIKE ? ESCAPE '\' OR phone LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\'
		ORDER BY name COLLATE NOCASE, id`,
		search, likePattern(search), likePattern(search), likePattern(search))
	return customers, errors.Wrap(err, "list customers")
}

// GetCustomer retrieves a customer by ID, or nil when absent.
func (s *Store) GetCustomer(ctx context.Context, id int64) (*catalog.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c catalog.Customer
	err := s.db.GetContext(ctx, &c, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get customer %d", id)
	}
	return &c, nil
}

// SaveCustomer inserts a customer when ID is zero and updates it otherwise.
func (s *Store) SaveCustomer(ctx context.Context, c catalog.Customer) (int64, error) {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == 0 {
		res, err := s.db.NamedExecContext(ctx, `
			INSERT INTO customers (name, address, phone, email)
			VALUES (:name, :address, :phone, :email)`, c)
		if err != nil {
			return 0, errors.Wrap(err, "insert customer")
		}
		return res.LastInsertId()
	}

	res, err := s.db.NamedExecContext(ctx, `
		UPDATE customers SET name = :name, address = :address, phone = :phone, email = :email
		WHERE id = :id`, c)
	if err != nil {
		return 0, errors.Wrapf(err, "update customer %d", c.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, catalog.ErrCustomerNotFound
	}
	return c.ID, nil
}

// DeleteCustomer removes a customer with all their estimates and estimate
// lines. Returns the number of estimates removed.
func (s *Store) DeleteCustomer(ctx context.Context, id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobs int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM estimate_line_items
			WHERE job_id IN (SELECT job_id FROM estimate_jobs WHERE customer_id = ?)`, id); err != nil {
			return errors.Wrap(err, "delete customer estimate lines")
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM estimate_jobs WHERE customer_id = ?`, id)
		if err != nil {
			return errors.Wrap(err, "delete customer estimates")
		}
		jobs, _ = res.RowsAffected()

		res, err = tx.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
		if err != nil {
			return errors.Wrap(err, "delete customer")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return catalog.ErrCustomerNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{"customer_id": id, "estimates": jobs}).Info("deleted customer")
	return int(jobs), nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

// sentinelLast orders the Uncategorized category after every other one.
const sentinelLast = `CASE WHEN c.name IS NULL OR c.name = 'Uncategorized' THEN 1 ELSE 0 END`

// ListCategories returns categories by sort order, Uncategorized last.
func (s *Store) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cats := []catalog.Category{}
	err := s.db.SelectContext(ctx, &cats, `
		SELECT c.id, c.name, COALESCE(c.sort_order, 0) AS sort_order
		FROM categories c
		ORDER BY `+sentinelLast+`, c.sort_order, c.id`)
	return cats, errors.Wrap(err, "list categories")
}

// GetCategory retrieves a category by ID, or nil when absent.
func (s *Store) GetCategory(ctx context.Context, id int64) (*catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getCategory(ctx, s.db, id)
}

func getCategory(ctx context.Context, q sqlx.QueryerContext, id int64) (*catalog.Category, error) {
	var c catalog.Category
	err := sqlx.GetContext(ctx, q, &c,
		`SELECT id, name, COALESCE(sort_order, 0) AS sort_order FROM categories WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get category %d", id)
	}
	return &c, nil
}

func sentinelID(ctx context.Context, q sqlx.QueryerContext) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id, `SELECT id FROM categories WHERE name = ?`, catalog.UncategorizedName)
	return id, errors.Wrap(err, "look up Uncategorized category")
}

// AddCategory appends a category after every existing one except the
// sentinel.
func (s *Store) AddCategory(ctx context.Context, name string) (catalog.Category, error) {
	name, err := catalog.ValidateCategoryName(name)
	if err != nil {
		return catalog.Category{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var cat catalog.Category
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		cat, err = insertCategory(ctx, tx, name)
		return err
	})
	return cat, err
}

func insertCategory(ctx context.Context, tx *sqlx.Tx, name string) (catalog.Category, error) {
	var next int
	if err := tx.GetContext(ctx, &next,
		`SELECT COALESCE(MAX(sort_order), 0) + 1 FROM categories WHERE name <> ?`,
		catalog.UncategorizedName); err != nil {
		return catalog.Category{}, errors.Wrap(err, "next category position")
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO categories (name, sort_order) VALUES (?, ?)`, name, next)
	if isUniqueConstraintError(err) {
		return catalog.Category{}, &catalog.CategoryExistsError{Name: name}
	}
	if err != nil {
		return catalog.Category{}, errors.Wrap(err, "insert category")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return catalog.Category{}, errors.Wrap(err, "insert category")
	}
	return catalog.Category{ID: id, Name: name, SortOrder: next}, nil
}

// RenameCategory changes a category name. The sentinel cannot be renamed.
func (s *Store) RenameCategory(ctx context.Context, id int64, name string) error {
	name, err := catalog.ValidateCategoryName(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := getCategory(ctx, s.db, id)
	if err != nil {
		return err
	}
	if cur == nil {
		return catalog.ErrCategoryNotFound
	}
	if cur.IsSentinel() {
		return catalog.ErrProtectedCategory
	}

	_, err = s.db.ExecContext(ctx, `UPDATE categories SET name = ? WHERE id = ?`, name, id)
	if isUniqueConstraintError(err) {
		return &catalog.CategoryExistsError{Name: name}
	}
	return errors.Wrapf(err, "rename category %d", id)
}

// DeleteCategory moves the category's items to Uncategorized, keeping their
// relative order, then removes the category. Returns the number of items
// reassigned.
func (s *Store) DeleteCategory(ctx context.Context, id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var moved int
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := getCategory(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return catalog.ErrCategoryNotFound
		}
		if cur.IsSentinel() {
			return catalog.ErrProtectedCategory
		}
		target, err := sentinelID(ctx, tx)
		if err != nil {
			return err
		}

		items, err := itemScope(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := nextItemPosition(ctx, tx, target)
		if err != nil {
			return err
		}
		for i, it := range items {
			if _, err := tx.ExecContext(ctx,
				`UPDATE pricelist SET category_id = ?, sort_order = ? WHERE id = ?`,
				target, next+i, it.ID); err != nil {
				return errors.Wrap(err, "reassign price item")
			}
		}
		moved = len(items)

		if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
			return errors.Wrapf(err, "delete category %d", id)
		}
		rest, err := categoryScope(ctx, tx)
		if err != nil {
			return err
		}
		return renumber(ctx, tx, "categories", rest)
	})
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{"category_id": id, "reassigned": moved}).Info("deleted category")
	return moved, nil
}

// MoveCategory swaps a category with its neighbor. No-op at either end; the
// sentinel cannot move.
func (s *Store) MoveCategory(ctx context.Context, id int64, dir catalog.Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := getCategory(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return catalog.ErrCategoryNotFound
		}
		if cur.IsSentinel() {
			return catalog.ErrProtectedCategory
		}
		scope, err := categoryScope(ctx, tx)
		if err != nil {
			return err
		}
		return swapInScope(ctx, tx, "categories", scope, id, dir)
	})
}

// =============================================================================
// PRICE ITEMS
// =============================================================================

const itemSelect = `
	SELECT p.id, p.item_name, p.unit_price,
		COALESCE(p.sort_order, 0) AS sort_order,
		COALESCE(p.category_id, 0) AS category_id,
		COALESCE(c.name, 'Uncategorized') AS category_name
	FROM pricelist p
	LEFT JOIN categories c ON c.id = p.category_id`

const itemOrder = ` ORDER BY ` + sentinelLast + `, c.sort_order, c.id, p.sort_order, p.id`

// ListItems returns price items grouped by category order, then item order.
// categoryID zero lists every item.
func (s *Store) ListItems(ctx context.Context, categoryID int64) ([]catalog.PriceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := []catalog.PriceItem{}
	err := s.db.SelectContext(ctx, &items,
		itemSelect+` WHERE ? = 0 OR p.category_id = ?`+itemOrder, categoryID, categoryID)
	return items, errors.Wrap(err, "list price items")
}

// SearchItems matches item or category names.
func (s *Store) SearchItems(ctx context.Context, term string) ([]catalog.PriceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := likePattern(term)
	items := []catalog.PriceItem{}
	err := s.db.SelectContext(ctx, &items,
		itemSelect+` WHERE p.item_name LIKE ? ESCAPE '\' OR c.name LIKE ? ESCAPE '\'`+itemOrder, p, p)
	return items, errors.Wrap(err, "search price items")
}

// GetItem retrieves a price item by ID, or nil when absent.
func (s *Store) GetItem(ctx context.Context, id int64) (*catalog.PriceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getItem(ctx, s.db, id)
}

// LookupItem implements estimate.PriceLookup.
func (s *Store) LookupItem(ctx context.Context, id int64) (*catalog.PriceItem, error) {
	return s.GetItem(ctx, id)
}

func getItem(ctx context.Context, q sqlx.QueryerContext, id int64) (*catalog.PriceItem, error) {
	var it catalog.PriceItem
	err := sqlx.GetContext(ctx, q, &it, itemSelect+` WHERE p.id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get price item %d", id)
	}
	return &it, nil
}

// AddItem appends an item to the end of its category.
func (s *Store) AddItem(ctx context.Context, item catalog.PriceItem) (catalog.PriceItem, error) {
	if err := item.Validate(); err != nil {
		return catalog.PriceItem{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out catalog.PriceItem
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		cat, err := getCategory(ctx, tx, item.CategoryID)
		if err != nil {
			return err
		}
		if cat == nil {
			return catalog.ErrCategoryNotFound
		}
		id, err := insertItem(ctx, tx, cat.ID, item.Name, item.UnitPrice)
		if err != nil {
			return err
		}
		got, err := getItem(ctx, tx, id)
		if err != nil {
			return err
		}
		out = *got
		return nil
	})
	return out, err
}

func insertItem(ctx context.Context, tx *sqlx.Tx, categoryID int64, name string, price decimal.Decimal) (int64, error) {
	next, err := nextItemPosition(ctx, tx, categoryID)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO pricelist (item_name, unit_price, sort_order, category_id) VALUES (?, ?, ?, ?)`,
		name, price.InexactFloat64(), next, categoryID)
	if err != nil {
		return 0, errors.Wrap(err, "insert price item")
	}
	return res.LastInsertId()
}

// UpdateItem changes name, price and category. An item moved to another
// category goes to the end of it.
func (s *Store) UpdateItem(ctx context.Context, item catalog.PriceItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := getItem(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		if cur == nil {
			return catalog.ErrItemNotFound
		}
		cat, err := getCategory(ctx, tx, item.CategoryID)
		if err != nil {
			return err
		}
		if cat == nil {
			return catalog.ErrCategoryNotFound
		}

		position := cur.SortOrder
		if cur.CategoryID != item.CategoryID {
			if position, err = nextItemPosition(ctx, tx, item.CategoryID); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE pricelist SET item_name = ?, unit_price = ?, category_id = ?, sort_order = ? WHERE id = ?`,
			item.Name, item.UnitPrice.InexactFloat64(), item.CategoryID, position, item.ID); err != nil {
			return errors.Wrapf(err, "update price item %d", item.ID)
		}

		if cur.CategoryID != item.CategoryID {
			rest, err := itemScope(ctx, tx, cur.CategoryID)
			if err != nil {
				return err
			}
			return renumber(ctx, tx, "pricelist", rest)
		}
		return nil
	})
}

// DeleteItem removes a price item. Estimates that used it keep their copy of
// name and price.
func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := getItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return catalog.ErrItemNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM pricelist WHERE id = ?`, id); err != nil {
			return errors.Wrapf(err, "delete price item %d", id)
		}
		rest, err := itemScope(ctx, tx, cur.CategoryID)
		if err != nil {
			return err
		}
		return renumber(ctx, tx, "pricelist", rest)
	})
}

// MoveItem swaps an item with its neighbor in the same category. No-op at
// either end.
func (s *Store) MoveItem(ctx context.Context, id int64, dir catalog.Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := getItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return catalog.ErrItemNotFound
		}
		scope, err := itemScope(ctx, tx, cur.CategoryID)
		if err != nil {
			return err
		}
		return swapInScope(ctx, tx, "pricelist", scope, id, dir)
	})
}

func nextItemPosition(ctx context.Context, q sqlx.QueryerContext, categoryID int64) (int, error) {
	var next int
	err := sqlx.GetContext(ctx, q, &next,
		`SELECT COALESCE(MAX(sort_order), 0) + 1 FROM pricelist WHERE category_id = ?`, categoryID)
	return next, errors.Wrap(err, "next item position")
}

// =============================================================================
// ORDERED SCOPES
// =============================================================================

type orderedRow struct {
	ID        int64         `db:"id"`
	SortOrder sql.NullInt64 `db:"sort_order"`
}

func categoryScope(ctx context.Context, q sqlx.QueryerContext) ([]orderedRow, error) {
	var rows []orderedRow
	err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT id, sort_order FROM categories WHERE name <> ? ORDER BY sort_order, id`,
		catalog.UncategorizedName)
	return rows, errors.Wrap(err, "load category order")
}

func itemScope(ctx context.Context, q sqlx.QueryerContext, categoryID int64) ([]orderedRow, error) {
	var rows []orderedRow
	err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT id, sort_order FROM pricelist WHERE category_id = ? ORDER BY sort_order, id`, categoryID)
	return rows, errors.Wrap(err, "load item order")
}

func isDense(rows []orderedRow) bool {
	for i, r := range rows {
		if !r.SortOrder.Valid || r.SortOrder.Int64 != int64(i+1) {
			return false
		}
	}
	return true
}

// renumber rewrites sort_order to 1..n in the current order, touching only
// rows whose value changes. table is one of the two ordered tables.
func renumber(ctx context.Context, tx *sqlx.Tx, table string, rows []orderedRow) error {
	for i, r := range rows {
		want := int64(i + 1)
		if r.SortOrder.Valid && r.SortOrder.Int64 == want {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE `+table+` SET sort_order = ? WHERE id = ?`, want, r.ID); err != nil {
			return errors.Wrapf(err, "renumber %s", table)
		}
		rows[i].SortOrder = sql.NullInt64{Int64: want, Valid: true}
	}
	return nil
}

// swapInScope exchanges the sort_order of id and its neighbor. Scopes with
// gaps, duplicates or NULLs are renumbered first so the swap is meaningful.
func swapInScope(ctx context.Context, tx *sqlx.Tx, table string, rows []orderedRow, id int64, dir catalog.Direction) error {
	idx := -1
	for i, r := range rows {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	n := dir.Neighbor(idx, len(rows))
	if n < 0 {
		return nil
	}

	if !isDense(rows) {
		if err := renumber(ctx, tx, table, rows); err != nil {
			return err
		}
	}

	a, b := rows[idx], rows[n]
	if _, err := tx.ExecContext(ctx, `UPDATE `+table+` SET sort_order = ? WHERE id = ?`, b.SortOrder.Int64, a.ID); err != nil {
		return errors.Wrapf(err, "move in %s", table)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE `+table+` SET sort_order = ? WHERE id = ?`, a.SortOrder.Int64, b.ID); err != nil {
		return errors.Wrapf(err, "move in %s", table)
	}
	return nil
}
