package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"markme-server-go/models"
)

// Document file names inside the store directory
const (
	classesDocument        = "classes.json"
	classTeachersDocument  = "class_teachers.json"
	attendanceByDateDoc    = "attendance_by_date.json"
	attendanceByClassDoc   = "attendance_by_class.json"
	documentFileMode       = 0o644
	documentTempFileSuffix = ".tmp"
)

// attendanceIndex is the shape of both attendance documents: key -> records
type attendanceIndex = map[string][]models.ClassAttendance

func (s *AttendanceStore) documentPath(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *AttendanceStore) documentExists(name string) bool {
	_, err := os.Stat(s.documentPath(name))
	return err == nil
}

// readDocument reads a JSON document. A missing file yields the zero value and no error.
func readDocument[T any](s *AttendanceStore, name string) (T, error) {
	var doc T
	data, err := os.ReadFile(s.documentPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		var empty T
		return empty, err
	}
	return doc, nil
}

// loadDocument is readDocument for the read paths: an unreadable or malformed file
// yields the zero value and is reported to the load error hook.
func loadDocument[T any](s *AttendanceStore, name string) T {
	doc, err := readDocument[T](s, name)
	if err != nil {
		s.onLoadError(name, err)
	}
	return doc
}

// saveDocument rewrites a whole document via temp file and rename
func saveDocument(s *AttendanceStore, name string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	path := s.documentPath(name)
	tmp := path + documentTempFileSuffix
	if err := os.WriteFile(tmp, data, documentFileMode); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
