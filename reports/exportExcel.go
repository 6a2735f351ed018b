package reports

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Sheet1"

func allBankReserveDateGroups(ctx context.Context, filters BankReserveFilters) ([]*BankReserveDateGroup, error) {
	var groups []*BankReserveDateGroup
	for page := 1; ; page++ {
		detail, err := GetBankReserveDetail(ctx, filters, page, maxPageSize)
		if err != nil {
			return nil, err
		}
		groups = append(groups, detail.DateGroups...)
		if page >= detail.Pagination.TotalPages {
			return groups, nil
		}
	}
}

// ExportBankReserveDetailExcel renders a full (unpaginated) bank reserve
// detail view as a workbook, one row per entity per date plus the stored
// daily total. Every page of the detail view is walked.
func ExportBankReserveDetailExcel(ctx context.Context, filters BankReserveFilters) (*excelize.File, error) {
	groups, err := allBankReserveDateGroups(ctx, filters)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if _, err := f.NewSheet(exportSheet); err != nil {
		return nil, err
	}

	f.SetCellValue(exportSheet, "A1", "Date")
	f.SetCellValue(exportSheet, "B1", "Entity")
	f.SetCellValue(exportSheet, "C1", "ES")
	f.SetCellValue(exportSheet, "D1", "NonES")
	f.SetCellValue(exportSheet, "E1", "Total")

	rowNo := 2
	for _, group := range groups {
		for _, row := range group.Rows {
			f.SetCellValue(exportSheet, "A"+fmt.Sprint(rowNo), group.Date.Format("2006-01-02"))
			f.SetCellValue(exportSheet, "B"+fmt.Sprint(rowNo), row.BusinessEntityName)
			f.SetCellValue(exportSheet, "C"+fmt.Sprint(rowNo), row.EsAmount.String())
			f.SetCellValue(exportSheet, "D"+fmt.Sprint(rowNo), row.NonEsAmount.String())
			f.SetCellValue(exportSheet, "E"+fmt.Sprint(rowNo), row.TotalAmount.String())
			rowNo++
		}
		f.SetCellValue(exportSheet, "A"+fmt.Sprint(rowNo), group.Date.Format("2006-01-02"))
		f.SetCellValue(exportSheet, "B"+fmt.Sprint(rowNo), "Daily Total")
		f.SetCellValue(exportSheet, "C"+fmt.Sprint(rowNo), group.EsTotal.String())
		f.SetCellValue(exportSheet, "D"+fmt.Sprint(rowNo), group.NonEsTotal.String())
		f.SetCellValue(exportSheet, "E"+fmt.Sprint(rowNo), group.GrandTotal.String())
		rowNo++
	}
	return f, nil
}

func allSalesCollectionDateGroups(ctx context.Context, filters SalesCollectionFilters) ([]*SalesCollectionDateGroup, error) {
	var groups []*SalesCollectionDateGroup
	for page := 1; ; page++ {
		detail, err := GetSalesCollectionDetail(ctx, filters, page, maxPageSize)
		if err != nil {
			return nil, err
		}
		groups = append(groups, detail.DateGroups...)
		if page >= detail.Pagination.TotalPages {
			return groups, nil
		}
	}
}

// ExportSalesCollectionDetailExcel renders a sales collection detail view,
// one row per entity+project per date plus the Grand Summary amounts.
// Every page of the detail view is walked.
func ExportSalesCollectionDetailExcel(ctx context.Context, filters SalesCollectionFilters) (*excelize.File, error) {
	groups, err := allSalesCollectionDateGroups(ctx, filters)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if _, err := f.NewSheet(exportSheet); err != nil {
		return nil, err
	}

	f.SetCellValue(exportSheet, "A1", "Date")
	f.SetCellValue(exportSheet, "B1", "Entity")
	f.SetCellValue(exportSheet, "C1", "Project")
	f.SetCellValue(exportSheet, "D1", "Collected")
	f.SetCellValue(exportSheet, "E1", "Invoiced")

	rowNo := 2
	for _, group := range groups {
		for _, row := range group.Rows {
			f.SetCellValue(exportSheet, "A"+fmt.Sprint(rowNo), group.Date.Format("2006-01-02"))
			f.SetCellValue(exportSheet, "B"+fmt.Sprint(rowNo), row.BusinessEntityName)
			f.SetCellValue(exportSheet, "C"+fmt.Sprint(rowNo), row.ProjectName)
			f.SetCellValue(exportSheet, "D"+fmt.Sprint(rowNo), row.CollectedAmount.String())
			f.SetCellValue(exportSheet, "E"+fmt.Sprint(rowNo), row.InvoicedAmount.String())
			rowNo++
		}
		f.SetCellValue(exportSheet, "A"+fmt.Sprint(rowNo), group.Date.Format("2006-01-02"))
		f.SetCellValue(exportSheet, "B"+fmt.Sprint(rowNo), "Grand Summary")
		f.SetCellValue(exportSheet, "C"+fmt.Sprint(rowNo), "")
		f.SetCellValue(exportSheet, "D"+fmt.Sprint(rowNo), group.CollectedTotal.String())
		f.SetCellValue(exportSheet, "E"+fmt.Sprint(rowNo), group.InvoicedTotal.String())
		rowNo++
	}
	return f, nil
}
