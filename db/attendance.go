package db

import (
	"cmp"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"markme-server-go/models"
)

// DefaultStatus is the status given to students with no saved attendance
const DefaultStatus = "A"

// Problems reported by CheckIndices
const (
	ProblemMissingFromClassIndex = "missing from by-class index"
	ProblemMissingFromDateIndex  = "missing from by-date index"
	ProblemStudentsDiffer        = "student lists differ"
	ProblemDuplicateRecord       = "duplicate record"
	ProblemWrongDateKey          = "filed under another date"
)

// ErrUnreadableIndex is returned when an index repair cannot trust the by-date document
var ErrUnreadableIndex = errors.New("attendance index is unreadable")

// IndexMismatch describes one (date, class) pair on which the two indices disagree
type IndexMismatch struct {
	ClassName string `json:"className"`
	Date      string `json:"date"`
	Problem   string `json:"problem"`
}

func (s *AttendanceStore) loadByDate() attendanceIndex {
	return loadDocument[attendanceIndex](s, attendanceByDateDoc)
}

func (s *AttendanceStore) loadByClass() attendanceIndex {
	return loadDocument[attendanceIndex](s, attendanceByClassDoc)
}

// GetAttendance returns the saved attendance of className on date.
// Without a saved record it returns the current roster, everyone marked DefaultStatus.
func (s *AttendanceStore) GetAttendance(date time.Time, className string) []models.StudentAttendance {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := models.DateOf(date)
	for _, rec := range s.loadByDate()[day.Key()] {
		if rec.ClassName == className {
			return copyStudents(rec.Students)
		}
	}

	roster := s.studentsForClassLocked(className)
	defaults := make([]models.StudentAttendance, 0, len(roster))
	for _, name := range roster {
		defaults = append(defaults, models.StudentAttendance{Name: name, Status: DefaultStatus})
	}
	return defaults
}

// SaveAttendance files the record under both indices, by-date first.
// The two documents are written independently; a failure after the first write leaves them divergent
// until the next save of the same pair or RebuildClassIndex.
func (s *AttendanceStore) SaveAttendance(date time.Time, className string, students []models.StudentAttendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := newRecord(date, className, students)
	if err := s.saveByDateLocked(rec); err != nil {
		return err
	}
	if err := s.saveByClassLocked(rec); err != nil {
		return err
	}
	s.mirrorAttendance(rec)
	return nil
}

// SaveAttendanceAsync runs SaveAttendance on its own goroutine.
// The channel yields exactly one result and is then closed.
func (s *AttendanceStore) SaveAttendanceAsync(date time.Time, className string, students []models.StudentAttendance) <-chan error {
	done := make(chan error, 1)
	students = copyStudents(students)
	go func() {
		defer close(done)
		done <- s.SaveAttendance(date, className, students)
	}()
	return done
}

// SaveAttendanceByDate writes only the by-date index
func (s *AttendanceStore) SaveAttendanceByDate(date time.Time, className string, students []models.StudentAttendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveByDateLocked(newRecord(date, className, students))
}

// SaveAttendanceByClass writes only the by-class index
func (s *AttendanceStore) SaveAttendanceByClass(date time.Time, className string, students []models.StudentAttendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveByClassLocked(newRecord(date, className, students))
}

func (s *AttendanceStore) saveByDateLocked(rec models.ClassAttendance) error {
	index := s.loadByDate()
	if index == nil {
		index = attendanceIndex{}
	}
	key := rec.Date.Key()
	index[key] = append(
		slices.DeleteFunc(index[key], func(r models.ClassAttendance) bool { return r.ClassName == rec.ClassName }),
		rec,
	)
	if err := saveDocument(s, attendanceByDateDoc, index); err != nil {
		log.Printf("Error saving attendance of %s on %s by date: %v", rec.ClassName, key, err)
		return fmt.Errorf("failed to save attendance by date: %w", err)
	}
	return nil
}

func (s *AttendanceStore) saveByClassLocked(rec models.ClassAttendance) error {
	index := s.loadByClass()
	if index == nil {
		index = attendanceIndex{}
	}
	key := rec.ClassName
	index[key] = append(
		slices.DeleteFunc(index[key], func(r models.ClassAttendance) bool { return r.Date == rec.Date }),
		rec,
	)
	if err := saveDocument(s, attendanceByClassDoc, index); err != nil {
		log.Printf("Error saving attendance of %s on %s by class: %v", key, rec.Date, err)
		return fmt.Errorf("failed to save attendance by class: %w", err)
	}
	return nil
}

// GetAttendanceHistory returns every record filed under className in the by-class index, oldest first
func (s *AttendanceStore) GetAttendanceHistory(className string) []models.ClassAttendance {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.loadByClass()[className]
	history := make([]models.ClassAttendance, 0, len(records))
	for _, rec := range records {
		history = append(history, models.ClassAttendance{
			ClassName: rec.ClassName,
			Date:      rec.Date,
			Students:  copyStudents(rec.Students),
		})
	}
	slices.SortStableFunc(history, func(a, b models.ClassAttendance) int {
		return a.Date.Time().Compare(b.Date.Time())
	})
	return history
}

// CheckIndices compares the two attendance documents and reports every disagreement
func (s *AttendanceStore) CheckIndices() []IndexMismatch {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDate := s.loadByDate()
	byClass := s.loadByClass()
	var problems []IndexMismatch

	seen := map[[2]string]bool{}
	for key, records := range byDate {
		counts := map[string]int{}
		for _, rec := range records {
			counts[rec.ClassName]++
			if counts[rec.ClassName] == 2 {
				problems = append(problems, IndexMismatch{rec.ClassName, key, ProblemDuplicateRecord})
			}
			if counts[rec.ClassName] > 1 {
				continue
			}
			seen[[2]string{key, rec.ClassName}] = true
			if rec.Date.Key() != key {
				problems = append(problems, IndexMismatch{rec.ClassName, key, ProblemWrongDateKey})
			}

			idx := slices.IndexFunc(byClass[rec.ClassName], func(r models.ClassAttendance) bool { return r.Date.Key() == key })
			switch {
			case idx < 0:
				problems = append(problems, IndexMismatch{rec.ClassName, key, ProblemMissingFromClassIndex})
			case !slices.Equal(rec.Students, byClass[rec.ClassName][idx].Students):
				problems = append(problems, IndexMismatch{rec.ClassName, key, ProblemStudentsDiffer})
			}
		}
	}

	for className, records := range byClass {
		counts := map[string]int{}
		for _, rec := range records {
			key := rec.Date.Key()
			counts[key]++
			if counts[key] == 2 {
				problems = append(problems, IndexMismatch{className, key, ProblemDuplicateRecord})
			}
			if counts[key] == 1 && !seen[[2]string{key, className}] {
				problems = append(problems, IndexMismatch{className, key, ProblemMissingFromDateIndex})
			}
		}
	}

	slices.SortFunc(problems, func(a, b IndexMismatch) int {
		return cmp.Or(cmp.Compare(a.Date, b.Date), cmp.Compare(a.ClassName, b.ClassName), cmp.Compare(a.Problem, b.Problem))
	})
	return problems
}

// RebuildClassIndex regenerates the by-class document from the by-date document.
// Records found only in the by-class document are first copied into the by-date document,
// so a rebuild never drops saved attendance. Within a date key the last record of a class wins,
// matching how saves replace records. An unreadable by-date document aborts the rebuild
// with ErrUnreadableIndex and leaves both files untouched.
func (s *AttendanceStore) RebuildClassIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDate, err := readDocument[attendanceIndex](s, attendanceByDateDoc)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnreadableIndex, attendanceByDateDoc, err)
	}
	if byDate == nil {
		byDate = attendanceIndex{}
	}
	byClass, err := readDocument[attendanceIndex](s, attendanceByClassDoc)
	if err != nil {
		log.Printf("Warning: %s is unreadable, rebuilding it from %s alone: %v", attendanceByClassDoc, attendanceByDateDoc, err)
	}

	if restored := restoreClassOnlyRecords(byDate, byClass); restored > 0 {
		if err := saveDocument(s, attendanceByDateDoc, byDate); err != nil {
			return fmt.Errorf("failed to restore attendance by date: %w", err)
		}
		log.Printf("Restored %d records found only in the by-class index", restored)
	}

	keys := make([]string, 0, len(byDate))
	for key := range byDate {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	rebuilt := attendanceIndex{}
	for _, key := range keys {
		for _, rec := range byDate[key] {
			if day, err := models.ParseDate(key); err == nil {
				rec.Date = day
			}
			rebuilt[rec.ClassName] = append(
				slices.DeleteFunc(rebuilt[rec.ClassName], func(r models.ClassAttendance) bool { return r.Date == rec.Date }),
				rec,
			)
		}
	}

	if err := saveDocument(s, attendanceByClassDoc, rebuilt); err != nil {
		return fmt.Errorf("failed to rebuild attendance by class: %w", err)
	}
	log.Printf("Rebuilt attendance by class index: %d classes", len(rebuilt))
	return nil
}

// restoreClassOnlyRecords adds to byDate every (date, class) pair that only byClass holds.
// For duplicates inside byClass the last record wins.
func restoreClassOnlyRecords(byDate, byClass attendanceIndex) int {
	classes := make([]string, 0, len(byClass))
	for className := range byClass {
		classes = append(classes, className)
	}
	slices.Sort(classes)

	restored := 0
	for _, className := range classes {
		records := byClass[className]
		for i := len(records) - 1; i >= 0; i-- {
			rec := records[i]
			rec.ClassName = className
			key := rec.Date.Key()
			if slices.ContainsFunc(byDate[key], func(r models.ClassAttendance) bool { return r.ClassName == className }) {
				continue
			}
			byDate[key] = append(byDate[key], rec)
			restored++
		}
	}
	return restored
}

func newRecord(date time.Time, className string, students []models.StudentAttendance) models.ClassAttendance {
	return models.ClassAttendance{
		ClassName: className,
		Date:      models.DateOf(date),
		Students:  copyStudents(students),
	}
}

func copyStudents(students []models.StudentAttendance) []models.StudentAttendance {
	return append(make([]models.StudentAttendance, 0, len(students)), students...)
}
