package db

import (
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"slices"
	"sync"

	"markme-server-go/models"
)

// mirrorQueueSize bounds the snapshots waiting for the mirror; further ones are dropped
const mirrorQueueSize = 256

// Mirror receives a copy of every successfully persisted roster and attendance record.
// Calls arrive in persistence order on a single goroutine, never while the store is locked.
type Mirror interface {
	MirrorRoster(classes []models.ClassInfo)
	MirrorAttendance(record models.ClassAttendance)
}

// AttendanceStore owns the four JSON documents: the class roster, the class teachers,
// and the two attendance indices (by date and by class).
// Every operation re-reads its documents from disk, so out-of-process edits are picked up.
type AttendanceStore struct {
	mu          sync.Mutex
	dir         string
	onLoadError func(document string, err error)
	mirror      Mirror
	mirrorQueue chan func()
	mirrorDone  chan struct{}
}

// Option configures an AttendanceStore
type Option func(*AttendanceStore)

// WithLoadErrorHook is called whenever a document exists but cannot be read or parsed.
// The store still treats such a document as empty.
func WithLoadErrorHook(hook func(document string, err error)) Option {
	return func(s *AttendanceStore) {
		if hook != nil {
			s.onLoadError = hook
		}
	}
}

// WithMirror attaches a best-effort mirror for persisted data
func WithMirror(m Mirror) Option {
	return func(s *AttendanceStore) {
		s.mirror = m
	}
}

// NewAttendanceStore creates a store rooted at dir, creating the directory if needed
func NewAttendanceStore(dir string, opts ...Option) (*AttendanceStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}

	s := &AttendanceStore{dir: dir, onLoadError: logLoadError}
	for _, opt := range opts {
		opt(s)
	}
	if s.mirror != nil {
		s.mirrorQueue = make(chan func(), mirrorQueueSize)
		s.mirrorDone = make(chan struct{})
		go s.runMirror(s.mirrorQueue)
	}
	return s, nil
}

func (s *AttendanceStore) runMirror(queue <-chan func()) {
	defer close(s.mirrorDone)
	for deliver := range queue {
		deliver()
	}
}

// enqueueMirror hands a delivery to the mirror goroutine. Callers hold s.mu,
// which keeps the queue in persistence order.
func (s *AttendanceStore) enqueueMirror(what string, deliver func()) {
	if s.mirrorQueue == nil {
		return
	}
	select {
	case s.mirrorQueue <- deliver:
	default:
		log.Printf("Warning: mirror queue full, dropping %s", what)
	}
}

func (s *AttendanceStore) mirrorRoster(list []models.ClassInfo) {
	snapshot := cloneClasses(list)
	s.enqueueMirror("roster", func() { s.mirror.MirrorRoster(snapshot) })
}

func (s *AttendanceStore) mirrorAttendance(rec models.ClassAttendance) {
	rec.Students = copyStudents(rec.Students)
	s.enqueueMirror("attendance of "+rec.ClassName, func() { s.mirror.MirrorAttendance(rec) })
}

// Close stops the mirror after delivering everything already queued.
// Writes made after Close are no longer mirrored. It is safe to call more than once.
func (s *AttendanceStore) Close() error {
	s.mu.Lock()
	queue := s.mirrorQueue
	s.mirrorQueue = nil
	s.mu.Unlock()

	if queue != nil {
		close(queue)
		<-s.mirrorDone
	}
	return nil
}

func logLoadError(document string, err error) {
	log.Printf("Warning: treating unreadable document %s as empty: %v", document, err)
}

// Dir returns the directory holding the documents
func (s *AttendanceStore) Dir() string {
	return s.dir
}

// --- Roster document ---

func (s *AttendanceStore) loadClasses() []models.ClassInfo {
	return loadDocument[[]models.ClassInfo](s, classesDocument)
}

func (s *AttendanceStore) saveClasses(list []models.ClassInfo) error {
	if list == nil {
		list = []models.ClassInfo{}
	}
	if err := saveDocument(s, classesDocument, list); err != nil {
		log.Printf("Error saving class roster: %v", err)
		return err
	}
	s.mirrorRoster(list)
	return nil
}

func findClass(list []models.ClassInfo, className string) int {
	return slices.IndexFunc(list, func(c models.ClassInfo) bool { return c.ClassName == className })
}

// GetClasses returns class names in stored order
func (s *AttendanceStore) GetClasses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.loadClasses()
	names := make([]string, 0, len(list))
	for _, c := range list {
		names = append(names, c.ClassName)
	}
	return names
}

// GetAllClasses returns a copy of the whole roster document
func (s *AttendanceStore) GetAllClasses() []models.ClassInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneClasses(s.loadClasses())
}

// GetStudentsForClass returns the roster of className, or an empty list for an unknown class
func (s *AttendanceStore) GetStudentsForClass(className string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.studentsForClassLocked(className)
}

func (s *AttendanceStore) studentsForClassLocked(className string) []string {
	list := s.loadClasses()
	idx := findClass(list, className)
	if idx < 0 {
		return []string{}
	}
	return append([]string{}, list[idx].Students...)
}

// AddClass appends an empty class unless one with the same name exists
func (s *AttendanceStore) AddClass(className string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addClassLocked(className)
}

func (s *AttendanceStore) addClassLocked(className string) error {
	list := s.loadClasses()
	if findClass(list, className) >= 0 {
		return nil
	}
	list = append(list, models.ClassInfo{ClassName: className, Students: []string{}})
	if err := s.saveClasses(list); err != nil {
		return fmt.Errorf("failed to add class %s: %w", className, err)
	}
	log.Printf("Added class: %s", className)
	return nil
}

// DeleteClass removes the class from the roster and its teacher entry.
// Attendance already filed under the class is left in both indices.
func (s *AttendanceStore) DeleteClass(className string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := slices.DeleteFunc(s.loadClasses(), func(c models.ClassInfo) bool { return c.ClassName == className })
	if err := s.saveClasses(list); err != nil {
		return fmt.Errorf("failed to delete class %s: %w", className, err)
	}

	teachers := slices.DeleteFunc(s.loadTeachers(), func(t models.ClassTeacherInfo) bool { return t.ClassName == className })
	if err := s.saveTeachers(teachers); err != nil {
		return fmt.Errorf("failed to delete teachers of class %s: %w", className, err)
	}
	log.Printf("Deleted class: %s", className)
	return nil
}

// RenameClass renames the roster entry and its teacher entry.
// Attendance already filed under oldName keeps the old name.
func (s *AttendanceStore) RenameClass(oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.loadClasses()
	idx := findClass(list, oldName)
	if idx < 0 {
		return nil
	}
	list[idx].ClassName = newName
	if err := s.saveClasses(list); err != nil {
		return fmt.Errorf("failed to rename class %s: %w", oldName, err)
	}

	teachers := s.loadTeachers()
	if t := findTeacher(teachers, oldName); t >= 0 {
		teachers[t].ClassName = newName
		if err := s.saveTeachers(teachers); err != nil {
			return fmt.Errorf("failed to rename teachers of class %s: %w", oldName, err)
		}
	}
	log.Printf("Renamed class: %s -> %s", oldName, newName)
	return nil
}

// AddStudentToClass appends studentName unless the class is unknown or already lists the student
func (s *AttendanceStore) AddStudentToClass(className, studentName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.loadClasses()
	idx := findClass(list, className)
	if idx < 0 || slices.Contains(list[idx].Students, studentName) {
		return nil
	}
	list[idx].Students = append(list[idx].Students, studentName)
	if err := s.saveClasses(list); err != nil {
		return fmt.Errorf("failed to add student %s to class %s: %w", studentName, className, err)
	}
	return nil
}

// UpdateStudentInClass replaces the first occurrence of oldName with newName.
// Attendance already recorded for oldName is not renamed.
func (s *AttendanceStore) UpdateStudentInClass(className, oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.loadClasses()
	idx := findClass(list, className)
	if idx < 0 {
		return nil
	}
	pos := slices.Index(list[idx].Students, oldName)
	if pos < 0 {
		return nil
	}
	list[idx].Students[pos] = newName
	if err := s.saveClasses(list); err != nil {
		return fmt.Errorf("failed to rename student %s in class %s: %w", oldName, className, err)
	}
	return nil
}

// DeleteStudentFromClass removes every occurrence of studentName from the class roster
func (s *AttendanceStore) DeleteStudentFromClass(className, studentName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.loadClasses()
	idx := findClass(list, className)
	if idx < 0 {
		return nil
	}
	list[idx].Students = slices.DeleteFunc(list[idx].Students, func(name string) bool { return name == studentName })
	if err := s.saveClasses(list); err != nil {
		return fmt.Errorf("failed to delete student %s from class %s: %w", studentName, className, err)
	}
	return nil
}

// GetRandomStudent picks a student from the class roster for a roll call.
// The bool is false when the class is unknown or has no students.
func (s *AttendanceStore) GetRandomStudent(className string) (string, bool) {
	students := s.GetStudentsForClass(className)
	if len(students) == 0 {
		return "", false
	}
	return students[rand.IntN(len(students))], true
}

// --- Teachers document ---

func (s *AttendanceStore) loadTeachers() []models.ClassTeacherInfo {
	return loadDocument[[]models.ClassTeacherInfo](s, classTeachersDocument)
}

func (s *AttendanceStore) saveTeachers(list []models.ClassTeacherInfo) error {
	if list == nil {
		list = []models.ClassTeacherInfo{}
	}
	return saveDocument(s, classTeachersDocument, list)
}

func findTeacher(list []models.ClassTeacherInfo, className string) int {
	return slices.IndexFunc(list, func(t models.ClassTeacherInfo) bool { return t.ClassName == className })
}

// GetTeacherInfo returns the teacher entry of className.
// A missing entry is created with empty fields and persisted before it is returned.
func (s *AttendanceStore) GetTeacherInfo(className string) (models.ClassTeacherInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.loadTeachers()
	if idx := findTeacher(list, className); idx >= 0 {
		return list[idx], nil
	}

	info := models.ClassTeacherInfo{ClassName: className}
	list = append(list, info)
	if err := s.saveTeachers(list); err != nil {
		return info, fmt.Errorf("failed to create teacher entry for class %s: %w", className, err)
	}
	return info, nil
}

// SaveTeacherInfo replaces the entry with the same class name or appends a new one
func (s *AttendanceStore) SaveTeacherInfo(info models.ClassTeacherInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.loadTeachers()
	if idx := findTeacher(list, info.ClassName); idx >= 0 {
		list[idx].Teacher = info.Teacher
		list[idx].CoTeacher = info.CoTeacher
		list[idx].Description = info.Description
	} else {
		list = append(list, info)
	}
	if err := s.saveTeachers(list); err != nil {
		return fmt.Errorf("failed to save teachers of class %s: %w", info.ClassName, err)
	}
	return nil
}

func cloneClasses(list []models.ClassInfo) []models.ClassInfo {
	out := make([]models.ClassInfo, len(list))
	for i, c := range list {
		out[i] = models.ClassInfo{ClassName: c.ClassName, Students: append([]string{}, c.Students...)}
	}
	return out
}
