package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tariff-cli/internal/model"
)

func TestLoadInput_TextFlag(t *testing.T) {
	analyzeText = "inline invoice text"
	t.Cleanup(func() { analyzeText = "" })

	in, err := loadInput(&cobra.Command{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "inline invoice text", in.Text)
	assert.Empty(t, in.OCRText)
}

func TestLoadInput_TextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoice.txt")
	require.NoError(t, os.WriteFile(path, []byte("file invoice text"), 0644))

	in, err := loadInput(&cobra.Command{}, []string{path})
	require.NoError(t, err)
	assert.Equal(t, "file invoice text", in.Text)
}

func TestLoadInput_MissingArg(t *testing.T) {
	_, err := loadInput(&cobra.Command{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provide a file argument or --text")
}

func TestLoadInput_FileNotFound(t *testing.T) {
	_, err := loadInput(&cobra.Command{}, []string{"/nonexistent/invoice.txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read invoice file")
}

func TestPrintResult(t *testing.T) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	item := model.LineItem{Product: "Steel Coil", Quantity: 2, UnitPrice: 50, TotalPrice: 100, HTSCode: "7208.39.00"}
	res := &model.AnalysisResult{
		VendorName:      "Acme Imports Inc",
		CountryOfOrigin: "China",
		LineItems:       []model.LineItem{item},
		TotalAmount:     100,
		Country: model.CountryDetection{
			Country:    "China",
			Confidence: model.ConfidenceHigh,
			Method:     model.MethodPatternMatching,
		},
		Tariff: model.TariffAnalysis{
			Items: []model.ItemAnalysis{
				{
					Item:         item,
					Rate:         model.TariffRateRecord{CurrentRate: "25%"},
					TariffCost:   25,
					HTSCodeFound: true,
				},
			},
			TotalTariffCost: 25,
			Summary:         model.Summary{TotalItems: 1, TotalTariffCost: 25, CountryOfOrigin: "China"},
		},
	}
	printResult(cmd, res)

	out := buf.String()
	assert.Contains(t, out, "Acme Imports Inc")
	assert.Contains(t, out, "China")
	assert.Contains(t, out, "Total tariff cost: $25.00")
}
