package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/warp/cabinet-estimator/catalog"
)

// ImportResult summarizes a price-list replacement.
type ImportResult struct {
	Items             int
	CategoriesCreated int
}

// PriceListEntries returns every item in category order then item order,
// Uncategorized last.
func (s *Store) PriceListEntries(ctx context.Context) ([]catalog.PriceListEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := []catalog.PriceListEntry{}
	err := s.db.SelectContext(ctx, &entries, `
		SELECT COALESCE(c.name, 'Uncategorized') AS category_name, p.item_name, p.unit_price
		FROM pricelist p
		LEFT JOIN categories c ON c.id = p.category_id`+itemOrder)
	return entries, errors.Wrap(err, "export price list")
}

// ReplacePriceList deletes every price item and inserts entries in order,
// creating missing categories at the end of the ordering. Runs in one
// transaction: on any failure the previous price list is left untouched.
func (s *Store) ReplacePriceList(ctx context.Context, entries []catalog.PriceListEntry) (ImportResult, error) {
	entries = append([]catalog.PriceListEntry(nil), entries...)
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return ImportResult{}, errors.Wrapf(err, "entry %d", i+1)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result ImportResult
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pricelist`); err != nil {
			return errors.Wrap(err, "clear price list")
		}

		var cats []catalog.Category
		if err := tx.SelectContext(ctx, &cats,
			`SELECT id, name, COALESCE(sort_order, 0) AS sort_order FROM categories`); err != nil {
			return errors.Wrap(err, "load categories")
		}
		byName := make(map[string]int64, len(cats))
		for _, c := range cats {
			byName[c.Name] = c.ID
		}

		for _, e := range entries {
			name := e.Category
			id, ok := byName[name]
			if !ok {
				cat, err := insertCategory(ctx, tx, name)
				if err != nil {
					return err
				}
				id = cat.ID
				byName[name] = id
				result.CategoriesCreated++
			}
			if _, err := insertItem(ctx, tx, id, e.ItemName, e.UnitPrice); err != nil {
				return err
			}
			result.Items++
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	log.WithFields(log.Fields{
		"items":              result.Items,
		"categories_created": result.CategoriesCreated,
	}).Info("replaced price list")
	return result, nil
}
