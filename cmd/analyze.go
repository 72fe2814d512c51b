package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/tariff-cli/internal/export"
	"github.com/sells-group/tariff-cli/internal/invoice"
	"github.com/sells-group/tariff-cli/internal/model"
	"github.com/sells-group/tariff-cli/internal/ocr"
)

var (
	analyzeText     string
	analyzeJSONOut  bool
	analyzeXLSXPath string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze an invoice document and estimate tariff costs",
	Long:  "Reads an invoice from a PDF or text file (or --text), extracts line items, detects the country of origin, and computes tariff costs per item.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := loadInput(cmd, args)
		if err != nil {
			return err
		}

		e, err := initAnalyzer(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.Analyzer.Analyze(cmd.Context(), in)
		if err != nil {
			return err
		}

		if analyzeXLSXPath != "" {
			if err := export.WriteXLSX(res, analyzeXLSXPath); err != nil {
				return err
			}
			zap.L().Info("wrote workbook", zap.String("path", analyzeXLSXPath))
		}

		if analyzeJSONOut {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		printResult(cmd, res)
		return nil
	},
}

// loadInput resolves the invoice text from --text, a PDF (via OCR), or a
// plain text file.
func loadInput(cmd *cobra.Command, args []string) (invoice.Input, error) {
	if analyzeText != "" {
		return invoice.Input{Text: analyzeText}, nil
	}
	if len(args) == 0 {
		return invoice.Input{}, eris.New("provide a file argument or --text")
	}

	path := args[0]
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		ext, err := ocr.NewExtractor(cfg.OCR)
		if err != nil {
			return invoice.Input{}, err
		}
		text, err := ext.ExtractText(cmd.Context(), path)
		if err != nil {
			return invoice.Input{}, err
		}
		return invoice.Input{Text: text, OCRText: text}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return invoice.Input{}, eris.Wrap(err, "read invoice file")
	}
	return invoice.Input{Text: string(data)}, nil
}

// printResult renders a human-readable summary to the command's stdout.
func printResult(cmd *cobra.Command, res *model.AnalysisResult) {
	p := message.NewPrinter(language.AmericanEnglish)
	out := cmd.OutOrStdout()

	p.Fprintf(out, "Vendor:            %s\n", res.VendorName)
	p.Fprintf(out, "Country of origin: %s (%s, %s)\n",
		res.CountryOfOrigin, res.Country.Confidence, res.Country.Method)
	p.Fprintf(out, "Invoice total:     $%.2f\n\n", res.TotalAmount)

	for _, ia := range res.Tariff.Items {
		code := ia.Item.HTSCode
		if !ia.HTSCodeFound {
			code = "no HTS code"
		}
		p.Fprintf(out, "  %-40s %s  rate %-6s  tariff $%.2f\n",
			ia.Item.Product, code, ia.Rate.CurrentRate, ia.TariffCost)
	}

	p.Fprintf(out, "\nItems analyzed:    %d\n", res.Tariff.Summary.TotalItems)
	p.Fprintf(out, "Total tariff cost: $%.2f\n", res.Tariff.TotalTariffCost)
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeText, "text", "", "invoice text (instead of a file)")
	analyzeCmd.Flags().BoolVar(&analyzeJSONOut, "json", false, "print the full analysis as JSON")
	analyzeCmd.Flags().StringVar(&analyzeXLSXPath, "xlsx", "", "write the analysis to an XLSX workbook")
	rootCmd.AddCommand(analyzeCmd)
}
