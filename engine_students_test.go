package sphereauth

import (
	"context"
	"errors"
	"math"
	"testing"
)

func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }
func stringPtr(v string) *string { return &v }

func TestGradeForScore(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "A"}, {90, "A"},
		{89, "B"}, {80, "B"},
		{79, "C"}, {70, "C"},
		{69, "D"}, {60, "D"},
		{59, "E"}, {50, "E"},
		{49, "S"}, {40, "S"},
		{39, "F"}, {0, "F"},
	}
	for _, tc := range tests {
		got := GradeForScore(intPtr(tc.score))
		if got == nil || *got != tc.want {
			t.Fatalf("GradeForScore(%d) = %v, want %s", tc.score, got, tc.want)
		}
	}
	if GradeForScore(nil) != nil {
		t.Fatal("nil score must have no grade")
	}
}

func TestUpdateStudentRecordComputesGrade(t *testing.T) {
	env := newTestEnv(t, fastConfig())
	env.register(t, "Amina", "amina@school.test", "secret1", RoleStudent)
	ctx := context.Background()

	students, err := env.engine.ListStudents(ctx)
	if err != nil || len(students) != 1 {
		t.Fatalf("expected one student, got %d (%v)", len(students), err)
	}

	updated, err := env.engine.UpdateStudentRecord(ctx, students[0].StudentID, StudentUpdate{
		ClassName:         stringPtr("  Form 2B "),
		AttendancePercent: floatPtr(96.5),
		Score:             intPtr(84),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Grade == nil || *updated.Grade != "B" {
		t.Fatalf("expected grade B, got %v", updated.Grade)
	}
	if updated.ClassName == nil || *updated.ClassName != "Form 2B" {
		t.Fatalf("expected trimmed class name, got %v", updated.ClassName)
	}

	cleared, err := env.engine.UpdateStudentRecord(ctx, students[0].StudentID, StudentUpdate{ClassName: stringPtr("   ")})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared.ClassName != nil || cleared.Score != nil || cleared.Grade != nil {
		t.Fatalf("expected absent fields after clearing, got %+v", cleared)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricStudentRecordUpdated]; got != 2 {
		t.Fatalf("expected 2 updates, got %d", got)
	}
}

func TestUpdateStudentRecordValidation(t *testing.T) {
	env := newTestEnv(t, fastConfig())
	ctx := context.Background()

	tests := []struct {
		name   string
		id     string
		update StudentUpdate
	}{
		{"blank id", " ", StudentUpdate{}},
		{"negative attendance", "s1", StudentUpdate{AttendancePercent: floatPtr(-1)}},
		{"attendance above 100", "s1", StudentUpdate{AttendancePercent: floatPtr(100.5)}},
		{"attendance NaN", "s1", StudentUpdate{AttendancePercent: floatPtr(math.NaN())}},
		{"negative score", "s1", StudentUpdate{Score: intPtr(-5)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.engine.UpdateStudentRecord(ctx, tc.id, tc.update); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestUpdateStudentRecordNotFound(t *testing.T) {
	env := newTestEnv(t, fastConfig())

	_, err := env.engine.UpdateStudentRecord(context.Background(), "missing", StudentUpdate{Score: intPtr(50)})
	if !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
}
