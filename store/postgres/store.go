package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/elimusphere/sphereauth"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Store is a pgx-backed UserStore.
type Store struct {
	pool *pgxpool.Pool
}

var _ sphereauth.UserStore = (*Store)(nil)

// NewStore wraps pool. The caller owns the pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

const selectUser = `
	SELECT u.id::text, u.name, u.email, u.password_hash, u.role,
	       COALESCE(s.reg_no, ''), COALESCE(u.reset_code, ''), u.reset_expires_at, u.created_at
	FROM users u
	LEFT JOIN students s ON s.user_id = u.id
`

const selectStudent = `
	SELECT s.id::text, u.id::text, u.name, u.email, s.reg_no,
	       s.class_name, s.attendance_percent, s.score, s.grade
`

// CreateUser inserts the user row and its role profile in one transaction.
func (s *Store) CreateUser(ctx context.Context, in sphereauth.CreateUserInput) (sphereauth.UserRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return sphereauth.UserRecord{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, in.ID, in.Name, in.Email, in.PasswordHash, string(in.Role), createdAt); err != nil {
		return sphereauth.UserRecord{}, mapWriteError(err)
	}

	switch in.Role {
	case sphereauth.RoleStudent:
		_, err = tx.Exec(ctx, `INSERT INTO students (id, user_id, reg_no) VALUES ($1, $2, $3)`, in.ProfileID, in.ID, in.RegNo)
	case sphereauth.RoleTeacher:
		_, err = tx.Exec(ctx, `INSERT INTO teachers (id, user_id) VALUES ($1, $2)`, in.ProfileID, in.ID)
	default:
		return sphereauth.UserRecord{}, sphereauth.ErrInvalidInput
	}
	if err != nil {
		return sphereauth.UserRecord{}, mapWriteError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return sphereauth.UserRecord{}, mapWriteError(err)
	}

	u := sphereauth.UserRecord{
		ID:           in.ID,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		CreatedAt:    createdAt,
	}
	if in.Role == sphereauth.RoleStudent {
		u.RegNo = in.RegNo
	}
	return u, nil
}

// GetUserByEmail matches email exactly.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (sphereauth.UserRecord, error) {
	return s.getUser(ctx, selectUser+` WHERE u.email = $1`, email)
}

// GetUserByRegNo matches a student's registration number exactly.
func (s *Store) GetUserByRegNo(ctx context.Context, regNo string) (sphereauth.UserRecord, error) {
	return s.getUser(ctx, selectUser+` WHERE s.reg_no = $1`, regNo)
}

// UpdatePasswordHash replaces the stored hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	return s.execOne(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, passwordHash)
}

// SetResetCode overwrites any pending code.
func (s *Store) SetResetCode(ctx context.Context, userID, code string, expiresAt time.Time) error {
	return s.execOne(ctx, `
		UPDATE users SET reset_code = $2, reset_expires_at = $3 WHERE id = $1
	`, userID, code, expiresAt)
}

// ClearResetCode clears the pending code if it still equals code.
func (s *Store) ClearResetCode(ctx context.Context, userID, code string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return sphereauth.ErrUserNotFound
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET reset_code = NULL, reset_expires_at = NULL
		WHERE id = $1 AND reset_code = $2
	`, userID, code)
	return err
}

// ConsumeResetCode swaps the hash and clears the code in one conditional update.
func (s *Store) ConsumeResetCode(ctx context.Context, userID, code, passwordHash string, now time.Time) (bool, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return false, sphereauth.ErrUserNotFound
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $3, reset_code = NULL, reset_expires_at = NULL
		WHERE id = $1 AND reset_code = $2 AND reset_expires_at >= $4
	`, userID, code, passwordHash, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListStudents returns all students ordered by name.
func (s *Store) ListStudents(ctx context.Context) ([]sphereauth.StudentRecord, error) {
	rows, err := s.pool.Query(ctx, selectStudent+`
		FROM students s
		JOIN users u ON u.id = s.user_id
		ORDER BY u.name ASC, s.id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]sphereauth.StudentRecord, 0)
	for rows.Next() {
		rec, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateStudent replaces the academic attributes of studentID.
func (s *Store) UpdateStudent(ctx context.Context, studentID string, update sphereauth.StudentUpdate, grade *string) (sphereauth.StudentRecord, error) {
	if _, err := uuid.Parse(studentID); err != nil {
		return sphereauth.StudentRecord{}, sphereauth.ErrStudentNotFound
	}

	row := s.pool.QueryRow(ctx, `
		WITH s AS (
			UPDATE students
			SET class_name = $2, attendance_percent = $3, score = $4, grade = $5
			WHERE id = $1
			RETURNING *
		)
	`+selectStudent+`
		FROM s
		JOIN users u ON u.id = s.user_id
	`, studentID, update.ClassName, update.AttendancePercent, update.Score, grade)

	rec, err := scanStudent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return sphereauth.StudentRecord{}, sphereauth.ErrStudentNotFound
	}
	return rec, err
}

func (s *Store) getUser(ctx context.Context, query string, arg string) (sphereauth.UserRecord, error) {
	var (
		u         sphereauth.UserRecord
		role      string
		expiresAt *time.Time
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.RegNo,
		&u.ResetCode,
		&expiresAt,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return sphereauth.UserRecord{}, sphereauth.ErrUserNotFound
	}
	if err != nil {
		return sphereauth.UserRecord{}, err
	}
	u.Role = sphereauth.Role(role)
	if expiresAt != nil {
		u.ResetExpiresAt = *expiresAt
	}
	return u, nil
}

func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	if id, ok := args[0].(string); ok {
		if _, err := uuid.Parse(id); err != nil {
			return sphereauth.ErrUserNotFound
		}
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sphereauth.ErrUserNotFound
	}
	return nil
}

func scanStudent(row pgx.Row) (sphereauth.StudentRecord, error) {
	var rec sphereauth.StudentRecord
	err := row.Scan(
		&rec.StudentID,
		&rec.UserID,
		&rec.Name,
		&rec.Email,
		&rec.RegNo,
		&rec.ClassName,
		&rec.AttendancePercent,
		&rec.Score,
		&rec.Grade,
	)
	return rec, err
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case "users_email_key":
			return sphereauth.ErrDuplicateIdentity
		case "students_reg_no_key":
			return sphereauth.ErrRegNoTaken
		}
	}
	return err
}
