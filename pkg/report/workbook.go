package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	SheetPredictions     = "Predictions"
	SheetImportance      = "Importance"
	SheetCrossValidation = "CrossValidation"
	SheetConfusion       = "Confusion"
)

// WriteWorkbook saves the prediction, importance, cross-validation and
// confusion tables as an xlsx workbook.
func WriteWorkbook(path string, r Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetPredictions); err != nil {
		return fmt.Errorf("report: workbook: %w", err)
	}
	for _, name := range []string{SheetImportance, SheetCrossValidation, SheetConfusion} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("report: workbook sheet %s: %w", name, err)
		}
	}

	preds := [][]any{{"problem_id", "prediction"}}
	for i, id := range r.IDs {
		preds = append(preds, []any{id, r.Predictions[i]})
	}

	imp := [][]any{{"feature", "mean_decrease_accuracy", "selected"}}
	selected := make(map[string]bool, len(r.Selected))
	for _, s := range r.Selected {
		selected[s] = true
	}
	for _, rk := range r.Importance {
		imp = append(imp, []any{rk.Name, rk.Importance, selected[rk.Name]})
	}

	cv := [][]any{{"n_var", "error_cv"}}
	for _, row := range r.CV {
		cv = append(cv, []any{row.NVar, row.Error})
	}

	header := []any{"true \\ predicted"}
	for _, c := range r.Classes {
		header = append(header, c)
	}
	header = append(header, "class_error")
	conf := [][]any{header}
	for i, row := range r.Confusion {
		line := []any{r.Classes[i]}
		for _, v := range row {
			line = append(line, v)
		}
		line = append(line, r.ClassError[i])
		conf = append(conf, line)
	}

	for sheet, rows := range map[string][][]any{
		SheetPredictions:     preds,
		SheetImportance:      imp,
		SheetCrossValidation: cv,
		SheetConfusion:       conf,
	} {
		if err := writeRows(f, sheet, rows); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("report: save workbook %s: %w", path, err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("report: sheet %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
