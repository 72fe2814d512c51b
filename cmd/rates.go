package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/tariff-cli/internal/model"
	"github.com/sells-group/tariff-cli/internal/store"
)

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Manage the tariff rate store",
}

var ratesLoadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Bulk-load tariff rates from a YAML or XLSX file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recs, err := readRates(args[0])
		if err != nil {
			return err
		}
		for i, rec := range recs {
			if rec.HTSCode == "" || rec.Country == "" {
				return eris.Errorf("rate entry %d: hts_code and country are required", i)
			}
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.PutRates(cmd.Context(), recs)
		if err != nil {
			return err
		}
		zap.L().Info("loaded tariff rates",
			zap.Int64("rows", n),
			zap.String("file", args[0]),
		)
		return nil
	},
}

var ratesGetCmd = &cobra.Command{
	Use:   "get <hts-code> <country>",
	Short: "Look up the tariff rate for an HTS code and country",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.FetchRate(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

// readRates parses a rate file by extension: a YAML list of records, or an
// XLSX sheet with hts_code / country / current_rate columns.
func readRates(path string) ([]model.TariffRateRecord, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readRatesXLSX(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read rates file")
	}
	var recs []model.TariffRateRecord
	if err := yaml.Unmarshal(data, &recs); err != nil {
		return nil, eris.Wrap(err, "parse rates file")
	}
	return recs, nil
}

// readRatesXLSX reads the first sheet of a workbook. Row 0 is the header;
// column order maps by header name.
func readRatesXLSX(path string) ([]model.TariffRateRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("xlsx: sheet is empty")
	}

	cols := map[string]int{}
	for j, cell := range sheet.Rows[0].Cells {
		cols[strings.ToLower(strings.TrimSpace(cell.String()))] = j
	}
	for _, required := range []string{"hts_code", "country", "current_rate"} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("xlsx: missing column %q", required)
		}
	}

	cellAt := func(row *xlsx.Row, name string) string {
		j, ok := cols[name]
		if !ok || j >= len(row.Cells) {
			return ""
		}
		return strings.TrimSpace(row.Cells[j].String())
	}

	var recs []model.TariffRateRecord
	for _, row := range sheet.Rows[1:] {
		rec := model.TariffRateRecord{
			HTSCode:     cellAt(row, "hts_code"),
			Country:     cellAt(row, "country"),
			CurrentRate: cellAt(row, "current_rate"),
			BoundRate:   cellAt(row, "bound_rate"),
			AppliedRate: cellAt(row, "applied_rate"),
			Source:      cellAt(row, "source"),
			Notes:       cellAt(row, "notes"),
		}
		if rec.HTSCode == "" && rec.Country == "" {
			continue // blank row
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

var ratesListLimit int

var ratesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored tariff rates",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recs, err := st.ListRates(cmd.Context(), store.RateFilter{Limit: ratesListLimit})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	},
}

func init() {
	ratesListCmd.Flags().IntVar(&ratesListLimit, "limit", 100, "maximum rows to list")
	ratesCmd.AddCommand(ratesLoadCmd, ratesGetCmd, ratesListCmd)
	rootCmd.AddCommand(ratesCmd)
}
