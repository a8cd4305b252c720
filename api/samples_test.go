package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamples_ListAndLoad(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/samples", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]SampleDTO](t, rec)
	require.Len(t, list, 3)
	assert.Equal(t, "kitchen", list[0].ID)

	rec = s.do(http.MethodGet, "/api/samples/current", nil)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	// Loading replaces the price list, so it needs confirmation.
	rec = s.do(http.MethodPost, "/api/samples/load", LoadSampleRequest{SampleID: "bathroom"})
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)

	rec = s.do(http.MethodPost, "/api/samples/load?confirm=true", LoadSampleRequest{SampleID: "bathroom"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, s.itemNames(), 9)

	rec = s.do(http.MethodGet, "/api/samples/current", nil)
	assert.Equal(t, "bathroom", decode[SampleDTO](t, rec).ID)

	// Loading again does not duplicate customers.
	rec = s.do(http.MethodPost, "/api/samples/load?confirm=true", LoadSampleRequest{SampleID: "bathroom"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode[map[string]any](t, rec)["customers_added"])

	rec = s.do(http.MethodGet, "/api/customers", nil)
	assert.Len(t, decode[[]CustomerDTO](t, rec), 1)
}

func TestSamples_UnknownID(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/samples/load?confirm=true", LoadSampleRequest{SampleID: "garage"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
