package sphereauth

import (
	"context"
	"time"
)

// Role classifies a user and selects the profile and login rules that apply.
type Role string

const (
	// RoleStudent is an exported constant or variable used by the authentication engine.
	RoleStudent Role = "student"
	// RoleTeacher is an exported constant or variable used by the authentication engine.
	RoleTeacher Role = "teacher"
)

// ParseRole returns the Role named by s, or false when s is not a supported role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleStudent:
		return RoleStudent, true
	case RoleTeacher:
		return RoleTeacher, true
	default:
		return "", false
	}
}

// UserRecord defines a public type used by sphereauth APIs.
//
// UserRecord is the persisted user row plus the student registration number when the
// user is a student. ResetCode and ResetExpiresAt are either both set or both zero.
type UserRecord struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	Role           Role
	RegNo          string
	ResetCode      string
	ResetExpiresAt time.Time
	CreatedAt      time.Time
}

// HasPendingReset reports whether a reset code is attached to the record.
func (u UserRecord) HasPendingReset() bool {
	return u.ResetCode != "" && !u.ResetExpiresAt.IsZero()
}

// Identity is the public view of a user returned by registration and login.
type Identity struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Role  Role    `json:"role"`
	RegNo *string `json:"regNo"`
}

func identityFromRecord(u UserRecord) *Identity {
	id := &Identity{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
	if u.Role == RoleStudent && u.RegNo != "" {
		regNo := u.RegNo
		id.RegNo = &regNo
	}
	return id
}

// CreateUserInput defines a public type used by sphereauth APIs.
//
// CreateUserInput carries everything a store needs to insert a user and its role
// profile in one atomic step. RegNo is empty for teachers.
type CreateUserInput struct {
	ID           string
	ProfileID    string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	RegNo        string
	CreatedAt    time.Time
}

// StudentRecord is a student profile joined with its owning user.
type StudentRecord struct {
	StudentID         string   `json:"studentId"`
	UserID            string   `json:"userId"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	RegNo             string   `json:"regNo"`
	ClassName         *string  `json:"className"`
	AttendancePercent *float64 `json:"attendancePercent"`
	Score             *int     `json:"score"`
	Grade             *string  `json:"grade"`
}

// StudentUpdate replaces the academic attributes of a student profile. Nil fields are
// stored as absent.
type StudentUpdate struct {
	ClassName         *string  `json:"className"`
	AttendancePercent *float64 `json:"attendancePercent"`
	Score             *int     `json:"score"`
}

// RegisterRequest defines a public type used by sphereauth APIs.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// VerifyRequest defines a public type used by sphereauth APIs.
type VerifyRequest struct {
	Identifier string
	Password   string
	Role       string
}

// UserStore defines the persistence contract used by the Engine.
//
// Implementations must make CreateUser, SetResetCode, ClearResetCode and
// ConsumeResetCode atomic per user row. Lookups return ErrUserNotFound when no row
// matches; CreateUser returns ErrDuplicateIdentity for a taken email and
// ErrRegNoTaken for a taken registration number.
type UserStore interface {
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByRegNo(ctx context.Context, regNo string) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error

	// SetResetCode overwrites any pending code for userID.
	SetResetCode(ctx context.Context, userID, code string, expiresAt time.Time) error
	// ClearResetCode removes the pending code only if it still equals code.
	ClearResetCode(ctx context.Context, userID, code string) error
	// ConsumeResetCode replaces the password hash and clears the pending code in one
	// conditional update. It reports false when code is no longer pending or has
	// expired at now.
	ConsumeResetCode(ctx context.Context, userID, code, passwordHash string, now time.Time) (bool, error)

	ListStudents(ctx context.Context) ([]StudentRecord, error)
	// UpdateStudent returns ErrStudentNotFound when studentID does not exist.
	UpdateStudent(ctx context.Context, studentID string, update StudentUpdate, grade *string) (StudentRecord, error)
}
