package reportsvc

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/nbkrcse/labtrack/core/stats"
	"github.com/nbkrcse/labtrack/core/user"
)

const (
	SheetName   = "Progress"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var header = []interface{}{
	"Roll Number", "Name", "Section", "Experiment", "Packet Tracer", "Experiment Completed",
	"PDF Submitted", "Viva Completed", "Score", "Max Score", "Remarks",
}

// ProgressRow is one student on one experiment.
type ProgressRow struct {
	RollNumber            string
	Name                  string
	Section               string
	Experiment            string
	PacketTracerCompleted bool
	ExperimentCompleted   bool
	PDFSubmitted          bool
	VivaCompleted         bool
	Score                 int
	MaxScore              int
	Remarks               string
}

// ProgressRows lists every student × experiment pair, students in collection order.
// A non-empty sectionID restricts the rows to that section.
func ProgressRows(c stats.Collections, sectionID string) []ProgressRow {
	sectionNames := make(map[string]string, len(c.Sections))
	for _, sec := range c.Sections {
		sectionNames[sec.ID] = sec.Name
	}

	students := c.Students
	if sectionID != "" {
		students = stats.StudentsBySection(students, sectionID)
	}

	rows := make([]ProgressRow, 0, len(students)*len(c.Experiments))
	for _, stu := range students {
		rows = append(rows, studentRows(c, stu, sectionNames[stu.SectionID()])...)
	}
	return rows
}

func studentRows(c stats.Collections, stu user.User, section string) []ProgressRow {
	rep := stats.Report(c, stu)
	rows := make([]ProgressRow, 0, len(rep.Rows))
	for _, r := range rep.Rows {
		rows = append(rows, ProgressRow{
			RollNumber:            stu.RollNumber(),
			Name:                  stu.Name,
			Section:               section,
			Experiment:            r.Experiment.Title,
			PacketTracerCompleted: r.Status.PacketTracerCompleted,
			ExperimentCompleted:   r.Status.ExperimentCompleted,
			PDFSubmitted:          r.Status.PDFSubmitted,
			VivaCompleted:         r.Status.VivaCompleted,
			Score:                 r.Score.Int,
			MaxScore:              r.MaxScore,
			Remarks:               r.Status.FacultyRemarks.String,
		})
	}
	return rows
}

// WriteProgressXLSX writes rows as a workbook with a single sheet.
func WriteProgressXLSX(w io.Writer, rows []ProgressRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return errors.Wrap(err, "naming sheet")
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return errors.Wrap(err, "f.NewStreamWriter()")
	}

	if err := sw.SetRow("A1", header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			sanitize(r.RollNumber), sanitize(r.Name), sanitize(r.Section), sanitize(r.Experiment),
			yesNo(r.PacketTracerCompleted), yesNo(r.ExperimentCompleted), yesNo(r.PDFSubmitted), yesNo(r.VivaCompleted),
			score(r), r.MaxScore, sanitize(r.Remarks),
		}
		if err := sw.SetRow(cell, row); err != nil {
			return errors.Wrap(err, fmt.Sprintf("writing row %d", i+2))
		}
	}
	if err := sw.Flush(); err != nil {
		return errors.Wrap(err, "sw.Flush()")
	}
	return errors.Wrap(f.Write(w), "f.Write()")
}

func score(r ProgressRow) interface{} {
	if !r.VivaCompleted {
		return ""
	}
	return r.Score
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// sanitize escapes values that spreadsheet applications would run as formulas.
func sanitize(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
