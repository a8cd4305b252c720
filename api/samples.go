/*
samples.go - Demo catalogs for trying the estimator

PURPOSE:
  Provides ready-made price lists and customers so a fresh install has
  something to estimate with.

AVAILABLE SAMPLES:
  kitchen:   Base, wall and tall cabinets, hardware, trim
  bathroom:  Vanities, medicine cabinets, hardware
  hardware:  Hardware only, for a small parts shop

HOW SAMPLES LOAD:
 1. The price list is replaced by the sample's items (one transaction)
 2. Sample customers are added unless a customer of that name exists
 3. Saved estimates and settings are left alone

USAGE VIA API:
  POST /api/samples/load?confirm=true
  {"sample_id": "kitchen"}

ADDING NEW SAMPLES:
 1. Add an entry to 'samples' with ID, name, description, items, customers
*/
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/warp/cabinet-estimator/catalog"
	"github.com/warp/cabinet-estimator/store/sqlite"
)

// =============================================================================
// SAMPLE DEFINITIONS
// =============================================================================

type sample struct {
	SampleDTO
	items     []catalog.PriceListEntry
	customers []catalog.Customer
}

func entries(category string, pairs ...any) []catalog.PriceListEntry {
	out := make([]catalog.PriceListEntry, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, catalog.PriceListEntry{
			Category:  category,
			ItemName:  pairs[i].(string),
			UnitPrice: decimal.RequireFromString(pairs[i+1].(string)),
		})
	}
	return out
}

func concat(groups ...[]catalog.PriceListEntry) []catalog.PriceListEntry {
	var out []catalog.PriceListEntry
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var hardwareEntries = entries("Hardware",
	"Soft-close hinge", "4.50",
	"Bar pull 5in", "6.25",
	"Round knob", "3.75",
	"Full-extension slide 18in", "18.00",
)

var samples = []sample{
	{
		SampleDTO: SampleDTO{
			ID:          "kitchen",
			Name:        "Kitchen",
			Description: "Base, wall and tall cabinets with hardware and trim",
		},
		items: concat(
			entries("Base Cabinets",
				"Base 12in", "185.00",
				"Base 18in", "215.00",
				"Base 24in", "245.00",
				"Sink base 36in", "310.00",
				"Drawer base 3-drawer 18in", "340.00",
			),
			entries("Wall Cabinets",
				"Wall 12x30", "120.00",
				"Wall 24x30", "165.00",
				"Wall 30x30", "190.00",
				"Microwave wall 30x18", "150.00",
			),
			entries("Tall Cabinets",
				"Pantry 18x84", "520.00",
				"Oven tower 30x84", "680.00",
			),
			hardwareEntries,
			entries("Trim",
				"Crown molding 8ft", "42.00",
				"Toe kick 8ft", "18.00",
				"Filler strip 3in", "22.00",
			),
		),
		customers: []catalog.Customer{
			{Name: "Jordan Ellis", Address: "14 Birch Lane", Phone: "555-0142", Email: "jordan@example.com"},
			{Name: "Maple Street Builders", Address: "800 Maple St", Phone: "555-0199"},
		},
	},
	{
		SampleDTO: SampleDTO{
			ID:          "bathroom",
			Name:        "Bathroom",
			Description: "Vanities, medicine cabinets and hardware",
		},
		items: concat(
			entries("Vanities",
				"Vanity 24in", "260.00",
				"Vanity 36in", "340.00",
				"Double vanity 60in", "590.00",
			),
			entries("Storage",
				"Medicine cabinet 24x30", "145.00",
				"Linen tower 18x84", "410.00",
			),
			hardwareEntries,
		),
		customers: []catalog.Customer{
			{Name: "Riley Chen", Address: "52 Harbor View", Phone: "555-0177"},
		},
	},
	{
		SampleDTO: SampleDTO{
			ID:          "hardware",
			Name:        "Hardware Only",
			Description: "A short hardware price list",
		},
		items: hardwareEntries,
	},
}

func findSample(id string) (sample, bool) {
	for _, s := range samples {
		if s.ID == id {
			return s, true
		}
	}
	return sample{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListSamples returns the available demo catalogs.
func (h *Handler) ListSamples(w http.ResponseWriter, r *http.Request) {
	dtos := make([]SampleDTO, len(samples))
	for i, s := range samples {
		dtos[i] = s.SampleDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentSample returns the sample loaded last, or null.
func (h *Handler) GetCurrentSample(w http.ResponseWriter, r *http.Request) {
	h.sampleMu.Lock()
	id := h.currentSample
	h.sampleMu.Unlock()

	if s, ok := findSample(id); ok {
		writeJSON(w, http.StatusOK, s.SampleDTO)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadSample replaces the price list with a demo catalog.
func (h *Handler) LoadSample(w http.ResponseWriter, r *http.Request) {
	var req LoadSampleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, ok := findSample(req.SampleID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown sample", nil)
		return
	}
	if !h.confirm(w, r, true) {
		return
	}

	result, added, err := loadSample(r.Context(), h.Store, s)
	if err != nil {
		writeFailure(w, "Failed to load sample", err)
		return
	}

	h.sampleMu.Lock()
	h.currentSample = s.ID
	h.sampleMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "loaded",
		"sample":          s.ID,
		"items":           result.Items,
		"customers_added": added,
	})
}

// loadSample writes a sample and returns the import result and the number
// of customers added.
func loadSample(ctx context.Context, store *sqlite.Store, s sample) (sqlite.ImportResult, int, error) {
	result, err := store.ReplacePriceList(ctx, s.items)
	if err != nil {
		return result, 0, err
	}

	added := 0
	for _, c := range s.customers {
		existing, err := store.ListCustomers(ctx, c.Name)
		if err != nil {
			return result, added, err
		}
		if hasCustomer(existing, c.Name) {
			continue
		}
		if _, err := store.SaveCustomer(ctx, c); err != nil {
			return result, added, err
		}
		added++
	}

	log.WithFields(log.Fields{"sample": s.ID, "items": result.Items, "customers_added": added}).Info("sample loaded")
	return result, added, nil
}

func hasCustomer(list []catalog.Customer, name string) bool {
	for _, c := range list {
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}
