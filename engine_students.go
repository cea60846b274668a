package sphereauth

import (
	"context"
	"math"
	"strings"
)

// GradeForScore maps a score to a letter grade. A nil score has no grade.
func GradeForScore(score *int) *string {
	if score == nil {
		return nil
	}

	var g string
	switch s := *score; {
	case s >= 90:
		g = "A"
	case s >= 80:
		g = "B"
	case s >= 70:
		g = "C"
	case s >= 60:
		g = "D"
	case s >= 50:
		g = "E"
	case s >= 40:
		g = "S"
	default:
		g = "F"
	}
	return &g
}

// ListStudents returns every student profile joined with its user, ordered by name.
func (e *Engine) ListStudents(ctx context.Context) ([]StudentRecord, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	students, err := e.store.ListStudents(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return students, nil
}

// UpdateStudentRecord describes the updatestudentrecord operation and its observable behavior.
//
// UpdateStudentRecord replaces class, attendance and score of a student and
// recomputes the grade. Attendance must lie in [0, 100] and score must not be
// negative. An empty class name is stored as absent.
func (e *Engine) UpdateStudentRecord(ctx context.Context, studentID string, update StudentUpdate) (StudentRecord, error) {
	if e == nil || e.store == nil {
		return StudentRecord{}, ErrEngineNotReady
	}

	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return StudentRecord{}, ErrInvalidInput
	}
	if a := update.AttendancePercent; a != nil && (math.IsNaN(*a) || *a < 0 || *a > 100) {
		return StudentRecord{}, ErrInvalidInput
	}
	if s := update.Score; s != nil && *s < 0 {
		return StudentRecord{}, ErrInvalidInput
	}
	if c := update.ClassName; c != nil {
		trimmed := strings.TrimSpace(*c)
		if trimmed == "" {
			update.ClassName = nil
		} else {
			update.ClassName = &trimmed
		}
	}

	grade := GradeForScore(update.Score)
	record, err := e.store.UpdateStudent(ctx, studentID, update, grade)
	if err != nil {
		mapped := mapStoreError(err)
		e.emitAudit(ctx, auditEventStudentRecordUpdate, false, "", mapped, func() map[string]string {
			return map[string]string{
				"student_id": studentID,
			}
		})
		return StudentRecord{}, mapped
	}

	e.metricInc(MetricStudentRecordUpdated)
	e.emitAudit(ctx, auditEventStudentRecordUpdate, true, record.UserID, nil, func() map[string]string {
		md := map[string]string{
			"student_id": studentID,
		}
		if grade != nil {
			md["grade"] = *grade
		}
		return md
	})
	return record, nil
}
