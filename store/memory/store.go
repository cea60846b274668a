package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/elimusphere/sphereauth"
)

type studentProfile struct {
	id                string
	userID            string
	regNo             string
	className         *string
	attendancePercent *float64
	score             *int
	grade             *string
}

// Store is a map-backed UserStore. The zero value is not usable; call New.
type Store struct {
	mu sync.RWMutex

	users    map[string]sphereauth.UserRecord
	byEmail  map[string]string
	byRegNo  map[string]string
	students map[string]*studentProfile
	// teachers maps profile id to user id.
	teachers map[string]string
}

var _ sphereauth.UserStore = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[string]sphereauth.UserRecord),
		byEmail:  make(map[string]string),
		byRegNo:  make(map[string]string),
		students: make(map[string]*studentProfile),
		teachers: make(map[string]string),
	}
}

// CreateUser inserts the user and its profile.
func (s *Store) CreateUser(ctx context.Context, in sphereauth.CreateUserInput) (sphereauth.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return sphereauth.UserRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[in.Email]; ok {
		return sphereauth.UserRecord{}, sphereauth.ErrDuplicateIdentity
	}
	if in.Role == sphereauth.RoleStudent {
		if in.RegNo == "" {
			return sphereauth.UserRecord{}, sphereauth.ErrInvalidInput
		}
		if _, ok := s.byRegNo[in.RegNo]; ok {
			return sphereauth.UserRecord{}, sphereauth.ErrRegNoTaken
		}
	}

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	u := sphereauth.UserRecord{
		ID:           in.ID,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		CreatedAt:    createdAt,
	}

	switch in.Role {
	case sphereauth.RoleStudent:
		u.RegNo = in.RegNo
		s.students[in.ProfileID] = &studentProfile{
			id:     in.ProfileID,
			userID: in.ID,
			regNo:  in.RegNo,
		}
		s.byRegNo[in.RegNo] = in.ID
	case sphereauth.RoleTeacher:
		s.teachers[in.ProfileID] = in.ID
	}

	s.users[in.ID] = u
	s.byEmail[in.Email] = in.ID

	return u, nil
}

// GetUserByEmail matches email exactly.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (sphereauth.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return sphereauth.UserRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return sphereauth.UserRecord{}, sphereauth.ErrUserNotFound
	}
	return s.users[id], nil
}

// GetUserByRegNo matches a student's registration number exactly.
func (s *Store) GetUserByRegNo(ctx context.Context, regNo string) (sphereauth.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return sphereauth.UserRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byRegNo[regNo]
	if !ok {
		return sphereauth.UserRecord{}, sphereauth.ErrUserNotFound
	}
	return s.users[id], nil
}

// UpdatePasswordHash replaces the stored hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	return s.mutate(ctx, userID, func(u *sphereauth.UserRecord) {
		u.PasswordHash = passwordHash
	})
}

// SetResetCode overwrites any pending code.
func (s *Store) SetResetCode(ctx context.Context, userID, code string, expiresAt time.Time) error {
	return s.mutate(ctx, userID, func(u *sphereauth.UserRecord) {
		u.ResetCode = code
		u.ResetExpiresAt = expiresAt
	})
}

// ClearResetCode clears the pending code if it still equals code.
func (s *Store) ClearResetCode(ctx context.Context, userID, code string) error {
	return s.mutate(ctx, userID, func(u *sphereauth.UserRecord) {
		if u.ResetCode == code {
			u.ResetCode = ""
			u.ResetExpiresAt = time.Time{}
		}
	})
}

// ConsumeResetCode swaps the hash and clears the code when code is pending and
// unexpired at now.
func (s *Store) ConsumeResetCode(ctx context.Context, userID, code, passwordHash string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return false, sphereauth.ErrUserNotFound
	}
	if u.ResetCode == "" || u.ResetCode != code || now.After(u.ResetExpiresAt) {
		return false, nil
	}

	u.PasswordHash = passwordHash
	u.ResetCode = ""
	u.ResetExpiresAt = time.Time{}
	s.users[userID] = u
	return true, nil
}

// ListStudents returns all students ordered by name, then by student id.
func (s *Store) ListStudents(ctx context.Context) ([]sphereauth.StudentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]sphereauth.StudentRecord, 0, len(s.students))
	for _, p := range s.students {
		out = append(out, s.studentRecord(p))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out, nil
}

// UpdateStudent replaces the academic attributes of studentID.
func (s *Store) UpdateStudent(ctx context.Context, studentID string, update sphereauth.StudentUpdate, grade *string) (sphereauth.StudentRecord, error) {
	if err := ctx.Err(); err != nil {
		return sphereauth.StudentRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.students[studentID]
	if !ok {
		return sphereauth.StudentRecord{}, sphereauth.ErrStudentNotFound
	}
	p.className = copyPtr(update.ClassName)
	p.attendancePercent = copyPtr(update.AttendancePercent)
	p.score = copyPtr(update.Score)
	p.grade = copyPtr(grade)

	return s.studentRecord(p), nil
}

func (s *Store) mutate(ctx context.Context, userID string, fn func(*sphereauth.UserRecord)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return sphereauth.ErrUserNotFound
	}
	fn(&u)
	s.users[userID] = u
	return nil
}

// studentRecord must be called with s.mu held.
func (s *Store) studentRecord(p *studentProfile) sphereauth.StudentRecord {
	u := s.users[p.userID]
	return sphereauth.StudentRecord{
		StudentID:         p.id,
		UserID:            p.userID,
		Name:              u.Name,
		Email:             u.Email,
		RegNo:             p.regNo,
		ClassName:         copyPtr(p.className),
		AttendancePercent: copyPtr(p.attendancePercent),
		Score:             copyPtr(p.score),
		Grade:             copyPtr(p.grade),
	}
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
