package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rrrrrr/school-system/backend/internal/auth"
	"github.com/rrrrrr/school-system/backend/internal/domain"
	"github.com/rrrrrr/school-system/backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testNow = time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)

type fakeMails struct {
	mu   sync.Mutex
	sent []domain.MailMessage
	err  error
}

func (f *fakeMails) Publish(_ context.Context, msg domain.MailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

// brokenRepository 模拟存储不可用
type brokenRepository struct {
	*repository.MemoryRepository
	err error
}

func (b *brokenRepository) GetUserByUsername(context.Context, string) (*domain.User, error) {
	return nil, b.err
}

func (b *brokenRepository) CountUsersByRole(context.Context, domain.Role, domain.UserStatus) (int, error) {
	return 0, b.err
}

// blindRepository 的查询永远找不到用户，注册时只能依靠存储层的唯一约束
type blindRepository struct {
	*repository.MemoryRepository
}

func (blindRepository) GetUserByUsername(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func (blindRepository) GetUserByEmail(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

type testEnv struct {
	repo      *repository.MemoryRepository
	tokens    *auth.TokenIssuer
	mails     *fakeMails
	auth      *AuthService
	directory *DirectoryService
	now       time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		repo:  repository.NewMemoryRepository(),
		mails: &fakeMails{},
		now:   testNow,
	}
	clock := func() time.Time { return env.now }
	env.tokens = auth.NewTokenIssuer([]byte("test-secret"), 30*time.Minute).WithClock(clock)
	env.auth = NewAuthService(env.repo, auth.NewHasher(bcrypt.MinCost), env.tokens, env.mails).WithClock(clock)
	env.directory = NewDirectoryService(env.repo)
	return env
}

func aliceInput() RegisterInput {
	return RegisterInput{
		Username:   "alice",
		Password:   "secret1",
		Email:      "a@x.edu",
		Role:       "student",
		Name:       "Alice",
		Department: "资讯工程系",
	}
}

func (e *testEnv) register(t *testing.T, in RegisterInput) *domain.User {
	t.Helper()
	user, err := e.auth.Register(context.Background(), in)
	require.NoError(t, err)
	return user
}

func (e *testEnv) login(t *testing.T, username, password string, role domain.Role) *LoginResult {
	t.Helper()
	res, err := e.auth.Login(context.Background(), username, password, role)
	require.NoError(t, err)
	return res
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	user := env.register(t, aliceInput())
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, domain.RoleStudent, user.Role)
	assert.Equal(t, domain.StatusActive, user.Status)
	assert.True(t, testNow.Equal(user.CreatedAt))
	assert.Nil(t, user.LastLogin)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")))

	require.Len(t, env.mails.sent, 1)
	msg := env.mails.sent[0]
	assert.Equal(t, domain.MailTypeWelcome, msg.Type)
	assert.Equal(t, "a@x.edu", msg.To)
	assert.Equal(t, domain.WelcomeMailData{
		Name:       "Alice",
		Username:   "alice",
		Role:       domain.RoleStudent,
		Department: "资讯工程系",
	}, msg.Data)
}

func TestRegister_Duplicates(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, aliceInput())

	in := aliceInput()
	in.Email = "other@x.edu"
	_, err := env.auth.Register(context.Background(), in)
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	in = aliceInput()
	in.Username = "alice2"
	_, err = env.auth.Register(context.Background(), in)
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	count, err := env.repo.CountUsersByRole(context.Background(), domain.RoleStudent, domain.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRegister_DuplicateFromStore(t *testing.T) {
	repo := blindRepository{repository.NewMemoryRepository()}
	svc := NewAuthService(repo, auth.NewHasher(bcrypt.MinCost), auth.NewTokenIssuer([]byte("s"), 0), nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, aliceInput())
	require.NoError(t, err)

	in := aliceInput()
	in.Email = "other@x.edu"
	_, err = svc.Register(ctx, in)
	assert.Equal(t, ErrDuplicateUsername, err)

	in = aliceInput()
	in.Username = "alice2"
	_, err = svc.Register(ctx, in)
	assert.Equal(t, ErrDuplicateEmail, err)

	count, err := repo.CountUsersByRole(ctx, domain.RoleStudent, domain.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRegister_ConcurrentSameUsername(t *testing.T) {
	env := newTestEnv(t)

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.auth.Register(context.Background(), aliceInput())
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, ErrDuplicateUsername) || errors.Is(err, ErrDuplicateEmail), err)
	}
	assert.Equal(t, 1, succeeded)
}

func TestRegister_InvalidRole(t *testing.T) {
	env := newTestEnv(t)

	in := aliceInput()
	in.Role = "teacher"
	_, err := env.auth.Register(context.Background(), in)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, env.mails.sent)
}

func TestRegister_MailFailureDoesNotFail(t *testing.T) {
	env := newTestEnv(t)
	env.mails.err = errors.New("broker down")

	user := env.register(t, aliceInput())
	assert.Equal(t, "alice", user.Username)
}

func TestRegister_WithoutMailPublisher(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := NewAuthService(repo, auth.NewHasher(bcrypt.MinCost), auth.NewTokenIssuer([]byte("s"), 0), nil)

	_, err := svc.Register(context.Background(), aliceInput())
	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, aliceInput())

	env.now = testNow.Add(time.Hour)
	res := env.login(t, "alice", "secret1", domain.RoleStudent)

	assert.Equal(t, TokenTypeBearer, res.TokenType)
	assert.True(t, env.now.Add(30*time.Minute).Equal(res.ExpiresAt))
	require.NotNil(t, res.User.LastLogin)
	assert.True(t, env.now.Equal(*res.User.LastLogin))

	subject, err := env.tokens.Validate(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)

	stored, err := env.repo.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
	assert.True(t, env.now.Equal(*stored.LastLogin))
}

func TestLogin_UpdatesLastLoginEachTime(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, aliceInput())

	env.login(t, "alice", "secret1", domain.RoleStudent)
	env.now = testNow.Add(24 * time.Hour)
	env.login(t, "alice", "secret1", domain.RoleStudent)

	stored, err := env.repo.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, env.now.Equal(*stored.LastLogin))
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, aliceInput())

	cases := []struct {
		name     string
		username string
		password string
		role     domain.Role
	}{
		{"unknown username", "bob", "secret1", domain.RoleStudent},
		{"wrong password", "alice", "wrong", domain.RoleStudent},
		{"wrong role", "alice", "secret1", domain.RoleAdmin},
		{"wrong password and role", "alice", "wrong", domain.RoleStaff},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.auth.Login(context.Background(), tc.username, tc.password, tc.role)
			require.Error(t, err)
			assert.Equal(t, ErrInvalidCredentials, err)
		})
	}

	stored, err := env.repo.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, stored.LastLogin)
}

func TestLogin_InactiveUser(t *testing.T) {
	env := newTestEnv(t)

	user := &domain.User{
		Username:   "retired",
		Email:      "retired@x.edu",
		Role:       domain.RoleStaff,
		Name:       "退休教师",
		Department: "数学系",
		Status:     domain.StatusInactive,
		CreatedAt:  testNow,
	}
	hash, err := auth.NewHasher(bcrypt.MinCost).Hash("pw")
	require.NoError(t, err)
	user.PasswordHash = hash
	require.NoError(t, env.repo.CreateUser(context.Background(), user))

	_, err = env.auth.Login(context.Background(), "retired", "pw", domain.RoleStaff)
	assert.Equal(t, ErrInvalidCredentials, err)
}

func TestLogin_StoreUnavailable(t *testing.T) {
	repo := &brokenRepository{MemoryRepository: repository.NewMemoryRepository(), err: errors.New("connection refused")}
	svc := NewAuthService(repo, auth.NewHasher(bcrypt.MinCost), auth.NewTokenIssuer([]byte("s"), 0), nil)

	_, err := svc.Login(context.Background(), "alice", "secret1", domain.RoleStudent)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolveCurrentUser(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, aliceInput())
	res := env.login(t, "alice", "secret1", domain.RoleStudent)

	user, err := env.auth.ResolveCurrentUser(context.Background(), res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
}

func TestResolveCurrentUser_Expired(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, aliceInput())
	res := env.login(t, "alice", "secret1", domain.RoleStudent)

	env.now = res.ExpiresAt.Add(-time.Second)
	_, err := env.auth.ResolveCurrentUser(context.Background(), res.AccessToken)
	require.NoError(t, err)

	env.now = res.ExpiresAt
	_, err = env.auth.ResolveCurrentUser(context.Background(), res.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestResolveCurrentUser_InvalidToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.auth.ResolveCurrentUser(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.auth.ResolveCurrentUser(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestResolveCurrentUser_UnknownSubject(t *testing.T) {
	env := newTestEnv(t)

	token, _, err := env.tokens.Issue("ghost", 0)
	require.NoError(t, err)

	_, err = env.auth.ResolveCurrentUser(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestResolveCurrentUser_Inactive(t *testing.T) {
	env := newTestEnv(t)

	user := &domain.User{
		Username:   "retired",
		Email:      "retired@x.edu",
		Role:       domain.RoleAdmin,
		Name:       "前管理员",
		Department: "资讯中心",
		Status:     domain.StatusInactive,
		CreatedAt:  testNow,
	}
	require.NoError(t, env.repo.CreateUser(context.Background(), user))

	token, _, err := env.tokens.Issue("retired", 0)
	require.NoError(t, err)

	_, err = env.auth.ResolveCurrentUser(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegisterThenLoginRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	inputs := []RegisterInput{
		{Username: "s1", Password: "p-s1", Email: "s1@x.edu", Role: "student", Name: "学生", Department: "化学系"},
		{Username: "t1", Password: "p-t1", Email: "t1@x.edu", Role: "staff", Name: "教师", Department: "物理系"},
		{Username: "h1", Password: "p-h1", Email: "h1@x.edu", Role: "hr", Name: "人事", Department: "人事部"},
		{Username: "a1", Password: "p-a1", Email: "a1@x.edu", Role: "admin", Name: "管理员", Department: "资讯中心"},
	}

	for _, in := range inputs {
		t.Run(in.Username, func(t *testing.T) {
			env.register(t, in)

			role, err := domain.ParseRole(in.Role)
			require.NoError(t, err)
			res := env.login(t, in.Username, in.Password, role)

			subject, err := env.tokens.Validate(res.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, in.Username, subject)
		})
	}
}

func TestDirectory_Gate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.directory.GetUserStats(ctx, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.directory.GetUsersByRole(ctx, nil, "student")
	assert.ErrorIs(t, err, ErrUnauthorized)

	for _, role := range []domain.Role{domain.RoleStudent, domain.RoleStaff, domain.RoleHR} {
		actor := &domain.User{Username: "x", Role: role, Status: domain.StatusActive}

		_, err := env.directory.GetUserStats(ctx, actor)
		assert.ErrorIs(t, err, ErrForbidden, role)

		// 权限检查先于参数检查
		_, err = env.directory.GetUsersByRole(ctx, actor, "bogus")
		assert.ErrorIs(t, err, ErrForbidden, role)
	}
}

func TestDirectory_StatsScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.register(t, RegisterInput{
		Username: "admin", Password: "admin123", Email: "admin@school.edu.tw",
		Role: "admin", Name: "系统管理员", Department: "资讯中心",
	})
	alice := env.register(t, aliceInput())

	_, err := env.directory.GetUserStats(ctx, alice)
	assert.ErrorIs(t, err, ErrForbidden)

	stats, err := env.directory.GetUserStats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, map[domain.Role]int{
		domain.RoleAdmin:   1,
		domain.RoleStudent: 1,
		domain.RoleStaff:   0,
		domain.RoleHR:      0,
	}, stats)
}

func TestDirectory_GetUsersByRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.register(t, RegisterInput{
		Username: "admin", Password: "admin123", Email: "admin@school.edu.tw",
		Role: "admin", Name: "系统管理员", Department: "资讯中心",
	})
	env.register(t, aliceInput())

	users, err := env.directory.GetUsersByRole(ctx, admin, "student")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)

	users, err = env.directory.GetUsersByRole(ctx, admin, "hr")
	require.NoError(t, err)
	assert.Empty(t, users)

	_, err = env.directory.GetUsersByRole(ctx, admin, "bogus")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDirectory_StoreUnavailable(t *testing.T) {
	repo := &brokenRepository{MemoryRepository: repository.NewMemoryRepository(), err: errors.New("timeout")}
	svc := NewDirectoryService(repo)

	_, err := svc.GetUserStats(context.Background(), &domain.User{Role: domain.RoleAdmin})
	assert.ErrorIs(t, err, ErrUnavailable)
}
