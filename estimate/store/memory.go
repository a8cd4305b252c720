// Package store provides in-memory estimate.Repository implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/cabinet-estimator/catalog"
	"github.com/warp/cabinet-estimator/estimate"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds estimates and a flat price list in maps.
type Memory struct {
	mu        sync.RWMutex
	jobs      map[int64]estimate.Job
	customers map[int64]string
	items     map[int64]catalog.PriceItem
	nextJobID int64
}

func NewMemory() *Memory {
	return &Memory{
		jobs:      make(map[int64]estimate.Job),
		customers: make(map[int64]string),
		items:     make(map[int64]catalog.PriceItem),
	}
}

// PutCustomer registers a customer name for listings.
func (m *Memory) PutCustomer(id int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[id] = name
}

// PutItem adds or replaces a price item.
func (m *Memory) PutItem(item catalog.PriceItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
}

// LookupItem implements estimate.PriceLookup.
func (m *Memory) LookupItem(_ context.Context, id int64) (*catalog.PriceItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

// GetJob implements estimate.Repository.
func (m *Memory) GetJob(_ context.Context, id int64) (*estimate.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	job.Lines = append([]estimate.LineItem(nil), job.Lines...)
	return &job, nil
}

// JobCount returns the number of stored estimates.
func (m *Memory) JobCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(estimate.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&txMemoryView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	jobs      map[int64]estimate.Job
	nextJobID int64
}

func (m *Memory) snapshot() memorySnapshot {
	jobsCopy := make(map[int64]estimate.Job, len(m.jobs))
	for k, v := range m.jobs {
		v.Lines = append([]estimate.LineItem(nil), v.Lines...)
		jobsCopy[k] = v
	}
	return memorySnapshot{jobs: jobsCopy, nextJobID: m.nextJobID}
}

func (m *Memory) restore(s memorySnapshot) {
	m.jobs = s.jobs
	m.nextJobID = s.nextJobID
}

type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) InsertJob(_ context.Context, h estimate.JobHeader) (int64, error) {
	tv.parent.nextJobID++
	id := tv.parent.nextJobID
	tv.parent.jobs[id] = jobFromHeader(id, h, tv.parent.customers[h.CustomerID])
	return id, nil
}

func (tv *txMemoryView) UpdateJob(_ context.Context, h estimate.JobHeader) error {
	cur, ok := tv.parent.jobs[h.ID]
	if !ok {
		return estimate.ErrJobNotFound
	}
	next := jobFromHeader(h.ID, h, tv.parent.customers[h.CustomerID])
	next.Lines = cur.Lines
	tv.parent.jobs[h.ID] = next
	return nil
}

func (tv *txMemoryView) ReplaceLines(_ context.Context, jobID int64, lines []estimate.LineItem) error {
	job, ok := tv.parent.jobs[jobID]
	if !ok {
		return estimate.ErrJobNotFound
	}
	job.Lines = append([]estimate.LineItem(nil), lines...)
	tv.parent.jobs[jobID] = job
	return nil
}

func (tv *txMemoryView) DeleteJob(_ context.Context, id int64) error {
	if _, ok := tv.parent.jobs[id]; !ok {
		return estimate.ErrJobNotFound
	}
	delete(tv.parent.jobs, id)
	return nil
}

func jobFromHeader(id int64, h estimate.JobHeader, customerName string) estimate.Job {
	return estimate.Job{
		ID:           id,
		CustomerID:   h.CustomerID,
		CustomerName: customerName,
		JobName:      h.JobName,
		EstimateDate: h.EstimateDate,
		TotalAmount:  h.TotalAmount,
		Adjustments:  h.Adjustments,
	}
}
