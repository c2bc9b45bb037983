package db

import (
	"errors"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"
	"markme-server-go/models"
)

const attendanceSheet = "Attendance"

// ImportStudentsFromExcel reads student names from column A of the first sheet (row 1 is a header)
// and appends the ones not yet on the roster of className. The class is created if missing.
// It returns how many students were added.
func (s *AttendanceStore) ImportStudentsFromExcel(file io.Reader, className string) (int, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		log.Printf("Error opening Excel reader: %v", err)
		return 0, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing excel file: %v", err)
		}
	}()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return 0, errors.New("excel file does not contain any sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		log.Printf("Error getting rows from sheet '%s': %v", sheetName, err)
		return 0, fmt.Errorf("failed to get rows from sheet %s: %w", sheetName, err)
	}

	var names []string
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			log.Printf("Skipping row %d without a student name", i+1)
			continue
		}
		names = append(names, strings.TrimSpace(row[0]))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.addClassLocked(className); err != nil {
		return 0, fmt.Errorf("target class %s does not exist and failed to create it: %w", className, err)
	}

	list := s.loadClasses()
	idx := findClass(list, className)
	if idx < 0 {
		return 0, fmt.Errorf("class %s vanished during import", className)
	}

	imported := 0
	for _, name := range names {
		if slices.Contains(list[idx].Students, name) {
			continue
		}
		list[idx].Students = append(list[idx].Students, name)
		imported++
	}
	if imported == 0 {
		return 0, nil
	}
	if err := s.saveClasses(list); err != nil {
		return 0, fmt.Errorf("failed to save imported students: %w", err)
	}

	log.Printf("Successfully imported %d students into class %s", imported, className)
	return imported, nil
}

// ExportAttendanceToExcel writes the by-class history of className as a workbook:
// one row per student, one column per date, cells holding status codes.
func (s *AttendanceStore) ExportAttendanceToExcel(w io.Writer, className string) error {
	history := s.GetAttendanceHistory(className)

	var students []string
	for _, rec := range history {
		for _, st := range rec.Students {
			if !slices.Contains(students, st.Name) {
				students = append(students, st.Name)
			}
		}
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing excel file: %v", err)
		}
	}()
	if err := f.SetSheetName(f.GetSheetName(0), attendanceSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := setCell(f, 1, 1, "Student"); err != nil {
		return err
	}
	for col, rec := range history {
		if err := setCell(f, col+2, 1, rec.Date.Key()); err != nil {
			return err
		}
	}
	for row, name := range students {
		if err := setCell(f, 1, row+2, name); err != nil {
			return err
		}
		for col, rec := range history {
			if status, ok := statusOf(rec.Students, name); ok {
				if err := setCell(f, col+2, row+2, status); err != nil {
					return err
				}
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write excel file: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("invalid cell (%d, %d): %w", col, row, err)
	}
	if err := f.SetCellValue(attendanceSheet, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
	return nil
}

func statusOf(students []models.StudentAttendance, name string) (string, bool) {
	for _, st := range students {
		if st.Name == name {
			return st.Status, true
		}
	}
	return "", false
}
