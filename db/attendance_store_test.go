package db

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"markme-server-go/models"
)

// newTestStore returns a store in a temp dir, seeded with the default classes
func newTestStore(t *testing.T, opts ...Option) *AttendanceStore {
	t.Helper()

	s, err := NewAttendanceStore(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("NewAttendanceStore() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if _, err := s.Seed(); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}
	return s
}

func writeDocument(t *testing.T, s *AttendanceStore, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(s.Dir(), name), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestGetClassesReturnsSeededOrder(t *testing.T) {
	s := newTestStore(t)

	got := s.GetClasses()
	want := []string{"Class 1", "Class 2", "Class 3"}
	if !slices.Equal(got, want) {
		t.Errorf("GetClasses() = %v, want %v", got, want)
	}
}

func TestGetClassesMissingDocument(t *testing.T) {
	s, err := NewAttendanceStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewAttendanceStore() failed: %v", err)
	}

	if got := s.GetClasses(); len(got) != 0 {
		t.Errorf("GetClasses() = %v, want empty", got)
	}
}

func TestMalformedDocumentIsEmptyAndReported(t *testing.T) {
	var reported []string
	s := newTestStore(t, WithLoadErrorHook(func(document string, err error) {
		reported = append(reported, document)
	}))
	writeDocument(t, s, classesDocument, "{not json")

	if got := s.GetClasses(); len(got) != 0 {
		t.Errorf("GetClasses() = %v, want empty for malformed document", got)
	}
	if got := s.GetStudentsForClass("Class 1"); len(got) != 0 {
		t.Errorf("GetStudentsForClass() = %v, want empty for malformed document", got)
	}
	if !slices.Equal(reported, []string{classesDocument, classesDocument}) {
		t.Errorf("load error hook saw %v, want two reports for %s", reported, classesDocument)
	}
}

func TestAddClassIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 2; i++ {
		if err := s.AddClass("Class 4"); err != nil {
			t.Fatalf("AddClass() failed: %v", err)
		}
	}

	got := s.GetClasses()
	want := []string{"Class 1", "Class 2", "Class 3", "Class 4"}
	if !slices.Equal(got, want) {
		t.Errorf("GetClasses() = %v, want %v", got, want)
	}
	if students := s.GetStudentsForClass("Class 4"); len(students) != 0 {
		t.Errorf("new class has students %v, want none", students)
	}
}

func TestDeleteClassRemovesRosterAndTeacher(t *testing.T) {
	s := newTestStore(t)

	if err := s.DeleteClass("Class 2"); err != nil {
		t.Fatalf("DeleteClass() failed: %v", err)
	}

	if slices.Contains(s.GetClasses(), "Class 2") {
		t.Error("GetClasses() still contains Class 2")
	}
	teachers := loadDocument[[]models.ClassTeacherInfo](s, classTeachersDocument)
	if findTeacher(teachers, "Class 2") >= 0 {
		t.Error("teacher entry for Class 2 survived DeleteClass()")
	}
	if len(teachers) != 2 {
		t.Errorf("teachers has %d entries, want 2", len(teachers))
	}
}

func TestRenameClassPropagatesToTeacher(t *testing.T) {
	s := newTestStore(t)

	if err := s.RenameClass("Class 1", "Class X"); err != nil {
		t.Fatalf("RenameClass() failed: %v", err)
	}

	classes := s.GetClasses()
	if !slices.Contains(classes, "Class X") || slices.Contains(classes, "Class 1") {
		t.Errorf("GetClasses() = %v, want Class X in place of Class 1", classes)
	}
	if classes[0] != "Class X" {
		t.Errorf("renamed class moved to %v, want it first", classes)
	}

	info, err := s.GetTeacherInfo("Class X")
	if err != nil {
		t.Fatalf("GetTeacherInfo() failed: %v", err)
	}
	if info.Teacher != "Mr. Smith" || info.CoTeacher != "Mrs. Johnson" || info.Description != "Introductory physics" {
		t.Errorf("GetTeacherInfo(Class X) = %+v, want the former Class 1 teachers", info)
	}
}

func TestRenameUnknownClassIsNoop(t *testing.T) {
	s := newTestStore(t)

	if err := s.RenameClass("Nope", "Still nope"); err != nil {
		t.Fatalf("RenameClass() failed: %v", err)
	}
	if got := s.GetClasses(); len(got) != 3 || slices.Contains(got, "Still nope") {
		t.Errorf("GetClasses() = %v, want roster unchanged", got)
	}
}

func TestStudentScenario(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddStudentToClass("Class 1", "Zoe"); err != nil {
		t.Fatalf("AddStudentToClass() failed: %v", err)
	}
	got := s.GetStudentsForClass("Class 1")
	want := []string{"Alice", "Bob", "Charlie", "Diana", "Zoe"}
	if !slices.Equal(got, want) {
		t.Errorf("after add: GetStudentsForClass() = %v, want %v", got, want)
	}

	if err := s.DeleteStudentFromClass("Class 1", "Alice"); err != nil {
		t.Fatalf("DeleteStudentFromClass() failed: %v", err)
	}
	if got := s.GetStudentsForClass("Class 1"); slices.Contains(got, "Alice") {
		t.Errorf("after delete: GetStudentsForClass() = %v, still contains Alice", got)
	}
}

func TestAddStudentNoops(t *testing.T) {
	tests := []struct {
		name      string
		className string
		student   string
	}{
		{"unknown class", "Class 9", "Zoe"},
		{"duplicate student", "Class 1", "Bob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			if err := s.AddStudentToClass(tt.className, tt.student); err != nil {
				t.Fatalf("AddStudentToClass() failed: %v", err)
			}
			if got := s.GetStudentsForClass("Class 1"); len(got) != 4 {
				t.Errorf("GetStudentsForClass(Class 1) = %v, want 4 students", got)
			}
			if slices.Contains(s.GetClasses(), "Class 9") {
				t.Error("AddStudentToClass() created an unknown class")
			}
		})
	}
}

func TestUpdateStudentReplacesFirstOccurrence(t *testing.T) {
	s := newTestStore(t)
	writeDocument(t, s, classesDocument, `[{"ClassName":"Dupes","Students":["Ann","Ben","Ann"]}]`)

	if err := s.UpdateStudentInClass("Dupes", "Ann", "Anna"); err != nil {
		t.Fatalf("UpdateStudentInClass() failed: %v", err)
	}
	got := s.GetStudentsForClass("Dupes")
	want := []string{"Anna", "Ben", "Ann"}
	if !slices.Equal(got, want) {
		t.Errorf("GetStudentsForClass() = %v, want %v", got, want)
	}

	if err := s.UpdateStudentInClass("Dupes", "Nobody", "Somebody"); err != nil {
		t.Fatalf("UpdateStudentInClass() failed: %v", err)
	}
	if got := s.GetStudentsForClass("Dupes"); !slices.Equal(got, want) {
		t.Errorf("renaming a missing student changed roster to %v", got)
	}
}

func TestDeleteStudentRemovesAllOccurrences(t *testing.T) {
	s := newTestStore(t)
	writeDocument(t, s, classesDocument, `[{"ClassName":"Dupes","Students":["Ann","Ben","Ann"]}]`)

	if err := s.DeleteStudentFromClass("Dupes", "Ann"); err != nil {
		t.Fatalf("DeleteStudentFromClass() failed: %v", err)
	}
	if got := s.GetStudentsForClass("Dupes"); !slices.Equal(got, []string{"Ben"}) {
		t.Errorf("GetStudentsForClass() = %v, want [Ben]", got)
	}
}

func TestGetStudentsReturnsCopy(t *testing.T) {
	s := newTestStore(t)

	got := s.GetStudentsForClass("Class 1")
	got[0] = "Mallory"

	if again := s.GetStudentsForClass("Class 1"); again[0] != "Alice" {
		t.Errorf("caller mutation leaked into store: first student = %s", again[0])
	}
}

func TestGetTeacherInfoMaterializesMissingEntry(t *testing.T) {
	s := newTestStore(t)

	info, err := s.GetTeacherInfo("Class 4")
	if err != nil {
		t.Fatalf("GetTeacherInfo() failed: %v", err)
	}
	want := models.ClassTeacherInfo{ClassName: "Class 4"}
	if info != want {
		t.Errorf("GetTeacherInfo() = %+v, want %+v", info, want)
	}

	teachers := loadDocument[[]models.ClassTeacherInfo](s, classTeachersDocument)
	if len(teachers) != 4 || teachers[3] != want {
		t.Errorf("teachers document = %+v, want empty Class 4 entry appended", teachers)
	}
}

func TestSaveTeacherInfoUpserts(t *testing.T) {
	s := newTestStore(t)

	updated := models.ClassTeacherInfo{ClassName: "Class 2", Teacher: "Ms. Gray", CoTeacher: "", Description: "Algebra"}
	if err := s.SaveTeacherInfo(updated); err != nil {
		t.Fatalf("SaveTeacherInfo() failed: %v", err)
	}
	added := models.ClassTeacherInfo{ClassName: "Class 7", Teacher: "Mr. Black"}
	if err := s.SaveTeacherInfo(added); err != nil {
		t.Fatalf("SaveTeacherInfo() failed: %v", err)
	}

	for _, want := range []models.ClassTeacherInfo{updated, added} {
		got, err := s.GetTeacherInfo(want.ClassName)
		if err != nil {
			t.Fatalf("GetTeacherInfo() failed: %v", err)
		}
		if got != want {
			t.Errorf("GetTeacherInfo(%s) = %+v, want %+v", want.ClassName, got, want)
		}
	}

	if teachers := loadDocument[[]models.ClassTeacherInfo](s, classTeachersDocument); len(teachers) != 4 {
		t.Errorf("teachers has %d entries, want 4", len(teachers))
	}
}

func TestGetRandomStudent(t *testing.T) {
	s := newTestStore(t)

	name, ok := s.GetRandomStudent("Class 3")
	if !ok || !slices.Contains(DefaultClasses()[2].Students, name) {
		t.Errorf("GetRandomStudent(Class 3) = %q, %v, want a Class 3 student", name, ok)
	}

	if err := s.AddClass("Empty"); err != nil {
		t.Fatalf("AddClass() failed: %v", err)
	}
	if _, ok := s.GetRandomStudent("Empty"); ok {
		t.Error("GetRandomStudent(Empty) found a student in an empty class")
	}
}

func TestWriteFailureIsReturned(t *testing.T) {
	s := newTestStore(t)
	// A directory in place of the temp file makes the write fail
	if err := os.Mkdir(filepath.Join(s.Dir(), classesDocument+documentTempFileSuffix), 0o755); err != nil {
		t.Fatalf("Failed to create blocking directory: %v", err)
	}

	if err := s.AddClass("Class 4"); err == nil {
		t.Error("AddClass() succeeded, want write error")
	}
}
