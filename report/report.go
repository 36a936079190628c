// Package report writes collection results to an Excel workbook.
package report

import (
	"fmt"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"dev.hon.one/niobium/common"
)

// SummarySheet - Name of the sheet listing every device.
const SummarySheet = "Devices"

// Excel limit on sheet name length, in characters
const maxSheetNameLength = 31

var summaryHeader = []interface{}{"№", "Product ID", "Serial Number", "IOS", "IP", "Hostname", "Status"}
var interfaceHeader = []interface{}{"interface", "description", "status", "vlan", "mac", "ip"}

var sheetNameReplacer = strings.NewReplacer("[", "_", "]", "_", ":", "_", "*", "_", "?", "_", "/", "_", "\\", "_")

// WriteWorkbook - Write the device summaries and one sheet per device table to path, replacing any existing file.
func WriteWorkbook(path string, summaries []common.DeviceSummary, tables []common.DeviceTable) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeSummarySheet(file, summaries); err != nil {
		return err
	}

	used := map[string]bool{strings.ToLower(SummarySheet): true}
	for _, table := range tables {
		sheet := uniqueSheetName(sanitizeSheetName(table.Hostname), used)
		if _, err := file.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %q: %w", sheet, err)
		}
		if err := writeInterfaceSheet(file, sheet, table.Interfaces); err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"device": table.Address,
			"sheet":  sheet,
		}).Trace("Added device sheet")
	}

	if err := file.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %v: %w", path, err)
	}
	return nil
}

func writeSummarySheet(file *excelize.File, summaries []common.DeviceSummary) error {
	rows := [][]interface{}{summaryHeader}
	for i, summary := range summaries {
		rows = append(rows, []interface{}{
			i + 1,
			summary.ProductID,
			summary.SerialNumber,
			summary.FirmwareImage,
			summary.Address,
			summary.Hostname,
			summary.Status.Description(),
		})
	}
	return writeRows(file, SummarySheet, rows)
}

func writeInterfaceSheet(file *excelize.File, sheet string, interfaces []common.InterfaceRecord) error {
	rows := [][]interface{}{interfaceHeader}
	for _, record := range interfaces {
		rows = append(rows, []interface{}{
			record.Name,
			record.Description,
			record.LinkStatus,
			record.VLAN,
			record.MACList(),
			record.IPList(),
		})
	}
	return writeRows(file, sheet, rows)
}

func writeRows(file *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d of sheet %q: %w", i+1, sheet, err)
		}
	}
	return nil
}

// Replace characters Excel forbids and cut to the maximum length.
func sanitizeSheetName(name string) string {
	name = strings.Trim(sheetNameReplacer.Replace(strings.TrimSpace(name)), "'")
	if utf8.RuneCountInString(name) > maxSheetNameLength {
		name = string([]rune(name)[:maxSheetNameLength])
	}
	if name == "" {
		name = "device"
	}
	return name
}

// Sheet names are case-insensitively unique, so suffix duplicates with a counter.
func uniqueSheetName(name string, used map[string]bool) string {
	candidate := name
	for i := 2; used[strings.ToLower(candidate)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		base := []rune(name)
		if len(base)+utf8.RuneCountInString(suffix) > maxSheetNameLength {
			base = base[:maxSheetNameLength-utf8.RuneCountInString(suffix)]
		}
		candidate = string(base) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
