package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the key format of the by-date attendance index
const DateLayout = "2006-01-02"

// legacy documents carry a midnight timestamp instead of a bare date
const legacyDateTimeLayout = "2006-01-02T15:04:05"

// ClassInfo is one roster entry in the classes document
type ClassInfo struct {
	ClassName string   `json:"ClassName"`
	Students  []string `json:"Students"`
}

// ClassTeacherInfo is one entry in the classTeachers document
type ClassTeacherInfo struct {
	ClassName   string `json:"ClassName"`
	Teacher     string `json:"Teacher"`
	CoTeacher   string `json:"CoTeacher"`
	Description string `json:"Description"`
}

// StudentAttendance is a student's status on one day. Status is an opaque code ("A", "P", ...)
type StudentAttendance struct {
	Name   string `json:"Name"`
	Status string `json:"Status"`
}

// ClassAttendance is the attendance of one class on one date
type ClassAttendance struct {
	ClassName string              `json:"ClassName"`
	Date      Date                `json:"Date"`
	Students  []StudentAttendance `json:"Students"`
}

// Date is a calendar day with no time-of-day component
type Date struct {
	year  int
	month time.Month
	day   int
}

// DateOf truncates t to its calendar day in t's own location
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{year: y, month: m, day: d}
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Key returns the YYYY-MM-DD form used as the by-date index key
func (d Date) Key() string {
	return d.Time().Format(DateLayout)
}

func (d Date) String() string { return d.Key() }

// Time returns midnight UTC of the day
func (d Date) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is an earlier day than other
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Key())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, layout := range []string{DateLayout, legacyDateTimeLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			*d = DateOf(t)
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", s)
}
