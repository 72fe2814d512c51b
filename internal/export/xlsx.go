// Package export renders analysis results to spreadsheet files.
package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/tariff-cli/internal/model"
)

const moneyFormat = "#,##0.00"

// WriteXLSX writes one analysis result to an XLSX workbook with a summary
// sheet and a per-item breakdown sheet.
func WriteXLSX(res *model.AnalysisResult, path string) error {
	f := xlsx.NewFile()

	if err := addSummarySheet(f, res); err != nil {
		return err
	}
	if err := addItemsSheet(f, res); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}
	return nil
}

func addSummarySheet(f *xlsx.File, res *model.AnalysisResult) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}

	rows := [][2]string{
		{"Analysis ID", res.ID},
		{"Vendor", res.VendorName},
		{"Country of Origin", res.CountryOfOrigin},
		{"Detection Method", string(res.Country.Method)},
		{"Detection Confidence", string(res.Country.Confidence)},
		{"Analysis Date", res.Tariff.Summary.AnalysisDate},
	}
	for _, kv := range rows {
		row := sheet.AddRow()
		row.AddCell().Value = kv[0]
		row.AddCell().Value = kv[1]
	}

	row := sheet.AddRow()
	row.AddCell().Value = "Invoice Total"
	row.AddCell().SetFloatWithFormat(res.TotalAmount, moneyFormat)

	row = sheet.AddRow()
	row.AddCell().Value = "Total Tariff Cost"
	row.AddCell().SetFloatWithFormat(res.Tariff.TotalTariffCost, moneyFormat)

	row = sheet.AddRow()
	row.AddCell().Value = "Items Analyzed"
	row.AddCell().SetInt(res.Tariff.Summary.TotalItems)

	return nil
}

func addItemsSheet(f *xlsx.File, res *model.AnalysisResult) error {
	sheet, err := f.AddSheet("Line Items")
	if err != nil {
		return eris.Wrap(err, "export: add items sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"Product", "Quantity", "Unit Price", "Total Price",
		"HTS Code", "Tariff Rate", "Tariff Cost",
	} {
		header.AddCell().Value = h
	}

	for _, ia := range res.Tariff.Items {
		row := sheet.AddRow()
		row.AddCell().Value = ia.Item.Product
		row.AddCell().SetFloat(ia.Item.Quantity)
		row.AddCell().SetFloatWithFormat(ia.Item.UnitPrice, moneyFormat)
		row.AddCell().SetFloatWithFormat(ia.Item.TotalPrice, moneyFormat)
		hts := ""
		if ia.HTSCodeFound {
			hts = ia.Item.HTSCode
		}
		row.AddCell().Value = hts
		row.AddCell().Value = ia.Rate.CurrentRate
		row.AddCell().SetFloatWithFormat(ia.TariffCost, moneyFormat)
	}

	return nil
}
