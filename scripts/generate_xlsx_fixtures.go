package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
)

func main() {
	out := flag.String("out", "testdata", "directory to write fixtures to")
	flag.Parse()

	if err := os.MkdirAll(*out, 0o755); err != nil {
		log.Fatal(err)
	}

	generateEnglishPnL(*out)
	generateSpanishCashFlow(*out)
	fmt.Println("\n✅ All XLSX fixtures generated successfully!")
}

// generateEnglishPnL writes a monthly P&L whose period headers are real dates
// with a month format, the way accounting exports usually store them
func generateEnglishPnL(dir string) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "P&L"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		log.Fatal(err)
	}

	monthFmt := "mmm-yy"
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &monthFmt})
	if err != nil {
		log.Fatal(err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		log.Fatal(err)
	}

	f.SetCellValue(sheet, "A1", "Acme Corp - Income Statement")
	f.SetCellValue(sheet, "A3", "Code")
	f.SetCellValue(sheet, "B3", "Account")
	for i := range 3 {
		cell, _ := excelize.CoordinatesToCellName(i+3, 3)
		f.SetCellValue(sheet, cell, time.Date(2024, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC))
		f.SetCellStyle(sheet, cell, cell, dateStyle)
	}
	f.SetCellValue(sheet, "F3", "Total")

	data := [][]interface{}{
		{"4010", "Sales Revenue", 125000.00, 132000.00, 128500.00},
		{"4020", "Service Income", 18000.00, 17500.00, 19250.00},
		{"5010", "Cost of Goods Sold", -52000.00, -54800.00, -53100.00},
		{"", "Gross Profit", 91000.00, 94700.00, 94650.00},
		{"6100", "Salaries and Wages", -38000.00, -38000.00, -39500.00},
		{"6200", "Office Rent", -6500.00, -6500.00, -6500.00},
		{"6300", "Marketing", -4200.00, -5100.00, -3900.00},
		{"6900", "Income Tax", -9800.00, -10400.00, -10100.00},
		{"", "Net Income", 32500.00, 34700.00, 34650.00},
	}
	for rowIdx, row := range data {
		for colIdx, val := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+4)
			f.SetCellValue(sheet, cell, val)
		}
		first, _ := excelize.CoordinatesToCellName(3, rowIdx+4)
		last, _ := excelize.CoordinatesToCellName(6, rowIdx+4)
		f.SetCellFormula(sheet, last, fmt.Sprintf("SUM(C%d:E%d)", rowIdx+4, rowIdx+4))
		f.SetCellStyle(sheet, first, last, amountStyle)
	}

	save(f, filepath.Join(dir, "pnl_en.xlsx"))
}

// generateSpanishCashFlow writes a cash flow with Spanish labels, text period
// headers and amounts stored as es-MX formatted text
func generateSpanishCashFlow(dir string) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Flujo de Efectivo"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		log.Fatal(err)
	}

	headers := []string{"Concepto", "Categoría", "Ene-24", "Feb-24", "Mar-24"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	data := [][]interface{}{
		{"Saldo inicial", "", "$ 250.000,00", "$ 262.450,00", "$ 251.150,00"},
		{"Cobro a clientes", "Ingreso", "$ 145.000,00", "$ 138.200,00", "$ 151.900,00"},
		{"Pago a proveedores", "Costo de venta", "(62.300,00)", "(71.000,00)", "(65.400,00)"},
		{"Nómina", "Gastos operativos", "(48.000,00)", "(48.000,00)", "(49.500,00)"},
		{"Arrendamiento", "Gastos operativos", "(12.500,00)", "(12.500,00)", "(12.500,00)"},
		{"ISR", "Impuesto", "(9.750,00)", "(18.000,00)", "(10.100,00)"},
		{"Flujo neto", "", "12.450,00", "(11.300,00)", "14.400,00"},
		{"Saldo final", "", "$ 262.450,00", "$ 251.150,00", "$ 265.550,00"},
	}
	for rowIdx, row := range data {
		for colIdx, val := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheet, cell, val)
		}
	}

	save(f, filepath.Join(dir, "flujo_es.xlsx"))
}

func save(f *excelize.File, path string) {
	if err := f.SaveAs(path); err != nil {
		log.Fatal(err)
	}
	fmt.Println("✓ Generated", path)
}
