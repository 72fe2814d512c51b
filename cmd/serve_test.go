package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tariff-cli/internal/invoice"
	"github.com/sells-group/tariff-cli/internal/model"
	"github.com/sells-group/tariff-cli/internal/pipeline"
	"github.com/sells-group/tariff-cli/internal/store"
	"github.com/sells-group/tariff-cli/internal/tariff"
)

func newTestEnv(t *testing.T) *env {
	t.Helper()
	st := store.NewMemoryWithReferenceData()
	detector := invoice.NewCountryDetector()
	extractor := invoice.NewExtractor(invoice.PatternStrategy{P: invoice.NewPatternExtractor()})
	analyzer := pipeline.New(detector, extractor, tariff.NewResolver(st))
	return &env{Analyzer: analyzer, Extractor: extractor, Detector: detector, Store: st}
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServeHealth(t *testing.T) {
	rec := doRequest(t, newRouter(newTestEnv(t)), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServeParseInvoice(t *testing.T) {
	body := `{"text": "Acme Imports Inc\nCountry of Origin: China\nProduct Quantity Unit Price Total\nSteel Coil 2 50.00 100.00\n"}`
	rec := doRequest(t, newRouter(newTestEnv(t)), http.MethodPost, "/api/parse-invoice", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Invoice   model.StructuredInvoice `json:"invoice"`
		Detection model.CountryDetection  `json:"country_detection"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Acme Imports Inc", resp.Invoice.VendorName)
	require.Len(t, resp.Invoice.LineItems, 1)
	assert.Equal(t, "China", resp.Detection.Country)
}

func TestServeParseInvoiceMissingText(t *testing.T) {
	rec := doRequest(t, newRouter(newTestEnv(t)), http.MethodPost, "/api/parse-invoice", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "text is required")
}

func TestServeParseInvoiceBadBody(t *testing.T) {
	rec := doRequest(t, newRouter(newTestEnv(t)), http.MethodPost, "/api/parse-invoice", "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
}

func TestServeAnalyzeTariffs(t *testing.T) {
	body := `{"text": "Acme Imports Inc\nCountry of Origin: China\nProduct Quantity Unit Price Total\nSteel Coil 2 50.00 100.00\nHTS Code: 7208.39.00\n"}`
	rec := doRequest(t, newRouter(newTestEnv(t)), http.MethodPost, "/api/analyze-tariffs", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var res model.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "China", res.CountryOfOrigin)
	require.Len(t, res.Tariff.Items, 1)
	assert.InDelta(t, 25.0, res.Tariff.TotalTariffCost, 1e-9)
	assert.Equal(t, "25%", res.Tariff.Items[0].Rate.CurrentRate)
}

func TestServeAnalyzeTariffsWhitespaceText(t *testing.T) {
	rec := doRequest(t, newRouter(newTestEnv(t)), http.MethodPost, "/api/analyze-tariffs", `{"text": "   "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
