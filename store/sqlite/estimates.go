package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/warp/cabinet-estimator/estimate"
)

// DateLayout is how estimate_date is stored. Text dates in this layout sort
// chronologically.
const DateLayout = "2006-01-02 15:04"

// =============================================================================
// ROWS
// =============================================================================

type jobRow struct {
	ID               int64               `db:"job_id"`
	CustomerID       sql.NullInt64       `db:"customer_id"`
	CustomerName     string              `db:"customer_name"`
	JobName          string              `db:"job_name"`
	EstimateDate     string              `db:"estimate_date"`
	TotalAmount      decimal.NullDecimal `db:"total_amount"`
	InstallTotal     decimal.NullDecimal `db:"install_total"`
	MarkupPercent    decimal.NullDecimal `db:"markup_percent"`
	MiscCharge       decimal.NullDecimal `db:"misc_charge"`
	InstallQty       decimal.NullDecimal `db:"install_qty"`
	InstallUnitPrice decimal.NullDecimal `db:"install_unit_price"`
}

func (r jobRow) toJob() estimate.Job {
	qty, price := estimate.ResolveInstall(r.InstallQty, r.InstallUnitPrice, orZero(r.InstallTotal))
	return estimate.Job{
		ID:           r.ID,
		CustomerID:   r.CustomerID.Int64,
		CustomerName: r.CustomerName,
		JobName:      r.JobName,
		EstimateDate: parseDate(r.EstimateDate),
		TotalAmount:  orZero(r.TotalAmount),
		Adjustments: estimate.Adjustments{
			MarkupPercent:    orZero(r.MarkupPercent),
			InstallQty:       qty,
			InstallUnitPrice: price,
			MiscCharge:       orZero(r.MiscCharge),
		},
	}
}

type lineRow struct {
	ID          int64               `db:"item_id"`
	Name        string              `db:"item_name"`
	Category    string              `db:"category_name"`
	Quantity    int                 `db:"quantity"`
	UnitPrice   decimal.NullDecimal `db:"unit_price"`
	PriceListID sql.NullInt64       `db:"pricelist_id"`
	Kind        string              `db:"line_kind"`
}

func (r lineRow) toLine() estimate.LineItem {
	kind := estimate.KindFromStored(r.Kind, r.Category)
	category := r.Category
	if kind == estimate.KindWriteIn && category == "" {
		category = estimate.WriteInCategory
	}
	line := estimate.LineItem{
		Kind:      kind,
		Name:      r.Name,
		Category:  category,
		Quantity:  r.Quantity,
		UnitPrice: orZero(r.UnitPrice),
	}
	if kind == estimate.KindCatalog {
		line.ItemID = r.PriceListID.Int64
	}
	return line
}

const jobSelect = `
	SELECT j.job_id, j.customer_id,
		COALESCE(c.name, '') AS customer_name,
		COALESCE(j.job_name, '') AS job_name,
		COALESCE(j.estimate_date, '') AS estimate_date,
		j.total_amount, j.install_total, j.markup_percent, j.misc_charge,
		j.install_qty, j.install_unit_price
	FROM estimate_jobs j
	LEFT JOIN customers c ON c.id = j.customer_id`

// =============================================================================
// QUERIES
// =============================================================================

// ListJobs returns estimate summaries, newest first. A non-blank search
// matches customer or job name.
func (s *Store) ListJobs(ctx context.Context, search string) ([]estimate.JobSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := likePattern(search)
	var rows []jobRow
	err := s.db.SelectContext(ctx, &rows, jobSelect+`
		WHERE ? = '' OR c.name LIKE ? ESCAPE '\' OR j.job_name LIKE ? ESCAPE '\'
		ORDER BY j.estimate_date DESC, j.job_id DESC`, search, p, p)
	if err != nil {
		return nil, errors.Wrap(err, "list estimates")
	}

	out := make([]estimate.JobSummary, len(rows))
	for i, r := range rows {
		out[i] = estimate.JobSummary{
			ID:           r.ID,
			CustomerName: r.CustomerName,
			JobName:      r.JobName,
			EstimateDate: parseDate(r.EstimateDate),
			TotalAmount:  orZero(r.TotalAmount),
		}
	}
	return out, nil
}

// GetJob implements estimate.Repository. Lines come back in the order they
// were written.
func (s *Store) GetJob(ctx context.Context, id int64) (*estimate.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row jobRow
	err := s.db.GetContext(ctx, &row, jobSelect+` WHERE j.job_id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get estimate %d", id)
	}

	var lines []lineRow
	err = s.db.SelectContext(ctx, &lines, `
		SELECT item_id, COALESCE(item_name, '') AS item_name,
			COALESCE(category_name, '') AS category_name,
			COALESCE(quantity, 0) AS quantity, unit_price, pricelist_id,
			COALESCE(line_kind, '') AS line_kind
		FROM estimate_line_items WHERE job_id = ? ORDER BY item_id`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get estimate %d lines", id)
	}

	job := row.toJob()
	job.Lines = make([]estimate.LineItem, len(lines))
	for i, l := range lines {
		job.Lines[i] = l.toLine()
	}
	return &job, nil
}

// DeleteJob removes an estimate and its lines.
func (s *Store) DeleteJob(ctx context.Context, id int64) error {
	return s.WithTx(ctx, func(tx estimate.Tx) error {
		return tx.DeleteJob(ctx, id)
	})
}

// =============================================================================
// TRANSACTIONAL STORE (estimate.Repository)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx estimate.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

type txStore struct {
	tx *sqlx.Tx
}

func (ts *txStore) InsertJob(ctx context.Context, h estimate.JobHeader) (int64, error) {
	adj := h.Adjustments
	res, err := ts.tx.ExecContext(ctx, `
		INSERT INTO estimate_jobs (customer_id, job_name, estimate_date, total_amount,
			install_total, markup_percent, misc_charge, install_qty, install_unit_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.CustomerID, h.JobName, h.EstimateDate.Format(DateLayout), h.TotalAmount.InexactFloat64(),
		adj.InstallTotal().InexactFloat64(), adj.MarkupPercent.InexactFloat64(), adj.MiscCharge.InexactFloat64(),
		adj.InstallQty.InexactFloat64(), adj.InstallUnitPrice.InexactFloat64())
	if err != nil {
		return 0, errors.Wrap(err, "insert estimate")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "insert estimate")
	}
	log.WithFields(log.Fields{"job_id": id, "customer_id": h.CustomerID}).Debug("inserted estimate")
	return id, nil
}

func (ts *txStore) UpdateJob(ctx context.Context, h estimate.JobHeader) error {
	adj := h.Adjustments
	res, err := ts.tx.ExecContext(ctx, `
		UPDATE estimate_jobs SET customer_id = ?, job_name = ?, estimate_date = ?, total_amount = ?,
			install_total = ?, markup_percent = ?, misc_charge = ?, install_qty = ?, install_unit_price = ?
		WHERE job_id = ?`,
		h.CustomerID, h.JobName, h.EstimateDate.Format(DateLayout), h.TotalAmount.InexactFloat64(),
		adj.InstallTotal().InexactFloat64(), adj.MarkupPercent.InexactFloat64(), adj.MiscCharge.InexactFloat64(),
		adj.InstallQty.InexactFloat64(), adj.InstallUnitPrice.InexactFloat64(), h.ID)
	if err != nil {
		return errors.Wrapf(err, "update estimate %d", h.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return estimate.ErrJobNotFound
	}
	return nil
}

func (ts *txStore) ReplaceLines(ctx context.Context, jobID int64, lines []estimate.LineItem) error {
	if _, err := ts.tx.ExecContext(ctx, `DELETE FROM estimate_line_items WHERE job_id = ?`, jobID); err != nil {
		return errors.Wrapf(err, "clear estimate %d lines", jobID)
	}

	stmt, err := ts.tx.PreparexContext(ctx, `
		INSERT INTO estimate_line_items (job_id, item_name, category_name, quantity,
			unit_price, line_total, pricelist_id, line_kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare line insert")
	}
	defer stmt.Close()

	for i, l := range lines {
		var itemID sql.NullInt64
		if l.Kind == estimate.KindCatalog && l.ItemID != 0 {
			itemID = sql.NullInt64{Int64: l.ItemID, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, jobID, l.Name, l.Category, l.Quantity,
			l.UnitPrice.InexactFloat64(), l.Total().InexactFloat64(), itemID, string(l.Kind)); err != nil {
			return errors.Wrapf(err, "insert estimate %d line %d", jobID, i)
		}
	}
	return nil
}

func (ts *txStore) DeleteJob(ctx context.Context, id int64) error {
	if _, err := ts.tx.ExecContext(ctx, `DELETE FROM estimate_line_items WHERE job_id = ?`, id); err != nil {
		return errors.Wrapf(err, "delete estimate %d lines", id)
	}
	res, err := ts.tx.ExecContext(ctx, `DELETE FROM estimate_jobs WHERE job_id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "delete estimate %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return estimate.ErrJobNotFound
	}
	log.WithField("job_id", id).Info("deleted estimate")
	return nil
}

// Helper functions

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

func parseDate(s string) time.Time {
	for _, layout := range []string{DateLayout, "2006-01-02 15:04:05", "2006-01-02", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}
