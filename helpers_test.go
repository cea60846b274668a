package sphereauth

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/elimusphere/sphereauth/mail"
	"github.com/redis/go-redis/v9"
)

const testHMACKey = "01234567890123456789012345678901"

// fakeStore is a map-backed UserStore with call counters and injectable failures.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]UserRecord
	students map[string]StudentRecord

	createErrs  []error
	lookupErr   error
	consumeErr  error
	createCalls int
	updateCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]UserRecord),
		students: make(map[string]StudentRecord),
	}
}

func (s *fakeStore) CreateUser(_ context.Context, in CreateUserInput) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.createCalls++
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			return UserRecord{}, err
		}
	}
	for _, u := range s.users {
		if u.Email == in.Email {
			return UserRecord{}, ErrDuplicateIdentity
		}
		if in.RegNo != "" && u.RegNo == in.RegNo {
			return UserRecord{}, ErrRegNoTaken
		}
	}

	u := UserRecord{
		ID:           in.ID,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		RegNo:        in.RegNo,
		CreatedAt:    in.CreatedAt,
	}
	s.users[u.ID] = u
	if in.Role == RoleStudent {
		s.students[in.ProfileID] = StudentRecord{
			StudentID: in.ProfileID,
			UserID:    in.ID,
			Name:      in.Name,
			Email:     in.Email,
			RegNo:     in.RegNo,
		}
	}
	return u, nil
}

func (s *fakeStore) find(match func(UserRecord) bool) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return UserRecord{}, s.lookupErr
	}
	for _, u := range s.users {
		if match(u) {
			return u, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func (s *fakeStore) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	return s.find(func(u UserRecord) bool { return u.Email == email })
}

func (s *fakeStore) GetUserByRegNo(_ context.Context, regNo string) (UserRecord, error) {
	return s.find(func(u UserRecord) bool { return u.RegNo != "" && u.RegNo == regNo })
}

func (s *fakeStore) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	s.updateCalls++
	u.PasswordHash = hash
	s.users[userID] = u
	return nil
}

func (s *fakeStore) SetResetCode(_ context.Context, userID, code string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.ResetCode = code
	u.ResetExpiresAt = expiresAt
	s.users[userID] = u
	return nil
}

func (s *fakeStore) ClearResetCode(_ context.Context, userID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if u.ResetCode == code {
		u.ResetCode = ""
		u.ResetExpiresAt = time.Time{}
		s.users[userID] = u
	}
	return nil
}

func (s *fakeStore) ConsumeResetCode(_ context.Context, userID, code, hash string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumeErr != nil {
		return false, s.consumeErr
	}
	u, ok := s.users[userID]
	if !ok || u.ResetCode == "" || u.ResetCode != code || now.After(u.ResetExpiresAt) {
		return false, nil
	}
	u.PasswordHash = hash
	u.ResetCode = ""
	u.ResetExpiresAt = time.Time{}
	s.users[userID] = u
	return true, nil
}

func (s *fakeStore) ListStudents(context.Context) ([]StudentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StudentRecord, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) UpdateStudent(_ context.Context, studentID string, update StudentUpdate, grade *string) (StudentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[studentID]
	if !ok {
		return StudentRecord{}, ErrStudentNotFound
	}
	st.ClassName = update.ClassName
	st.AttendancePercent = update.AttendancePercent
	st.Score = update.Score
	st.Grade = grade
	s.students[studentID] = st
	return st, nil
}

func (s *fakeStore) user(t *testing.T, email string) UserRecord {
	t.Helper()
	u, err := s.GetUserByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("lookup %s: %v", email, err)
	}
	return u
}

// testClock is a settable clock shared by the engine under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	engine *Engine
	store  *fakeStore
	redis  *miniredis.Miniredis
	clock  *testClock
	mail   chan mail.Message
}

// fastConfig keeps Argon2 cheap and removes the enumeration delay.
func fastConfig() Config {
	cfg := defaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.PasswordReset.EnumerationDelayMin = 0
	cfg.PasswordReset.EnumerationDelayMax = 0
	cfg.JWT.PrivateKey = []byte(testHMACKey)
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := &testEnv{
		store: newFakeStore(),
		redis: mr,
		clock: newTestClock(),
		mail:  make(chan mail.Message, 16),
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(env.store).
		WithClock(env.clock.Now).
		WithMailSender(mail.SenderFunc(func(_ context.Context, msg mail.Message) error {
			env.mail <- msg
			return nil
		})).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	env.engine = engine
	return env
}

func (env *testEnv) register(t *testing.T, name, email, password string, role Role) *Identity {
	t.Helper()
	id, err := env.engine.Register(context.Background(), RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     string(role),
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return id
}

func (env *testEnv) awaitMail(t *testing.T) mail.Message {
	t.Helper()
	select {
	case msg := <-env.mail:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mail")
		return mail.Message{}
	}
}

func (env *testEnv) noMail(t *testing.T) {
	t.Helper()
	select {
	case msg := <-env.mail:
		t.Fatalf("unexpected mail to %s", msg.To)
	case <-time.After(50 * time.Millisecond):
	}
}

func newRedisClient(t *testing.T, env *testEnv) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: env.redis.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}
