package export

import (
	"github.com/smallbiznis/orgchart/internal/orgtree"
	"github.com/xuri/excelize/v2"
)

const (
	sheetChart    = "Org Chart"
	sheetUnplaced = "Unplaced"
)

var chartHeader = []string{"Section", "Depth", "ID", "Name", "Email", "Role", "Reports To", "Status"}

func RenderXLSX(tree *orgtree.Tree) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetChart); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	if err := writeRow(f, sheetChart, 1, toCells(chartHeader)); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetChart, "A1", "H1", headerStyle); err != nil {
		return nil, err
	}

	indentStyles := map[int]int{}
	for i, r := range Flatten(tree) {
		cells := []interface{}{string(r.Section), r.Depth, r.ID, r.FullName, r.Email, r.Role, r.Manager, activeLabel(r.Active)}
		if err := writeRow(f, sheetChart, i+2, cells); err != nil {
			return nil, err
		}
		if r.Depth > 0 {
			style, ok := indentStyles[r.Depth]
			if !ok {
				style, err = f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{Indent: r.Depth}})
				if err != nil {
					return nil, err
				}
				indentStyles[r.Depth] = style
			}
			cell, _ := excelize.CoordinatesToCellName(4, i+2)
			if err := f.SetCellStyle(sheetChart, cell, cell, style); err != nil {
				return nil, err
			}
		}
	}
	if err := f.SetColWidth(sheetChart, "C", "E", 28); err != nil {
		return nil, err
	}

	if tree != nil && (len(tree.Excluded) > 0 || len(tree.Duplicates) > 0) {
		if _, err := f.NewSheet(sheetUnplaced); err != nil {
			return nil, err
		}
		if err := writeRow(f, sheetUnplaced, 1, toCells([]string{"ID", "Reason"})); err != nil {
			return nil, err
		}
		row := 2
		for _, id := range tree.Excluded {
			if err := writeRow(f, sheetUnplaced, row, []interface{}{id, "reporting cycle"}); err != nil {
				return nil, err
			}
			row++
		}
		for _, id := range tree.Duplicates {
			if err := writeRow(f, sheetUnplaced, row, []interface{}{id, "duplicate id"}); err != nil {
				return nil, err
			}
			row++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
