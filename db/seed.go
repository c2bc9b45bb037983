package db

import (
	"fmt"
	"log"

	"markme-server-go/models"
)

// DefaultClasses is the roster written on first startup
func DefaultClasses() []models.ClassInfo {
	return []models.ClassInfo{
		{ClassName: "Class 1", Students: []string{"Alice", "Bob", "Charlie", "Diana"}},
		{ClassName: "Class 2", Students: []string{"Ethan", "Fiona", "George", "Hannah"}},
		{ClassName: "Class 3", Students: []string{"Ivy", "Jack", "Karen", "Liam"}},
	}
}

// DefaultTeachers is the teacher list written on first startup
func DefaultTeachers() []models.ClassTeacherInfo {
	return []models.ClassTeacherInfo{
		{ClassName: "Class 1", Teacher: "Mr. Smith", CoTeacher: "Mrs. Johnson", Description: "Introductory physics"},
		{ClassName: "Class 2", Teacher: "Ms. Brown", CoTeacher: "Mr. White", Description: "Mathematics essentials"},
		{ClassName: "Class 3", Teacher: "Dr. Green", CoTeacher: "Ms. Blue", Description: "Chemistry basics"},
	}
}

// Seed writes the default roster and teachers for whichever of the two documents is absent.
// It reports whether anything was written. Existing documents, even empty ones, are left alone.
func (s *AttendanceStore) Seed() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seeded := false
	if !s.documentExists(classesDocument) {
		log.Printf("No class roster found in %s. Adding default classes...", s.dir)
		if err := s.saveClasses(DefaultClasses()); err != nil {
			return seeded, fmt.Errorf("failed to seed classes: %w", err)
		}
		seeded = true
	}

	if !s.documentExists(classTeachersDocument) {
		log.Printf("No class teachers found in %s. Adding default teachers...", s.dir)
		if err := s.saveTeachers(DefaultTeachers()); err != nil {
			return seeded, fmt.Errorf("failed to seed class teachers: %w", err)
		}
		seeded = true
	}
	return seeded, nil
}
