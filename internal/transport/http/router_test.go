package http

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bookshelf/internal/config"
	"bookshelf/internal/handler"
	"bookshelf/internal/httputil"
	"bookshelf/internal/model"
	"bookshelf/internal/repository"
	"bookshelf/internal/service"
)

const routerSecret = "router-secret"

type testServer struct {
	router http.Handler
	mock   sqlmock.Sqlmock
	auth   *service.AuthService
}

// newTestServer wires the real repositories, services and handlers over sqlmock.
// Redis and R2 are left out, as they are when unconfigured.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		rawDB.Close()
	})
	db := sqlx.NewDb(rawDB, "postgres")

	cfg := &config.Config{JWTSecret: routerSecret, AccessTokenMaxAge: 900, DefaultProfileImage: config.DefaultProfileImage}
	userRepo := repository.NewUserRepository(db)
	userService := service.NewUserService(userRepo, cfg.DefaultProfileImage)
	authService := service.NewAuthService(cfg)
	listFollowService := service.NewListFollowService(repository.NewListFollowRepository(db), nil, nil)

	router := NewRouter(RouterConfig{
		AuthHandler:       handler.NewAuthHandler(userService, authService),
		UserHandler:       handler.NewUserHandler(userService, listFollowService),
		MediaHandler:      handler.NewMediaHandler(nil),
		AdminHandler:      handler.NewAdminHandler(userService),
		ListFollowHandler: handler.NewListFollowHandler(listFollowService),
		Users:             userService,
		JWTSecret:         routerSecret,
	})

	return &testServer{router: router, mock: mock, auth: authService}
}

func (s *testServer) do(t *testing.T, method, path, body string, user *model.User) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != nil {
		token, err := s.auth.GenerateAccessToken(user)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func errorCodeOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegister(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		s := newTestServer(t)
		s.mock.ExpectQuery(q("WHERE username = $1)")).WithArgs("anna").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		s.mock.ExpectQuery(q("WHERE email = $1)")).WithArgs("anna@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		s.mock.ExpectQuery(q("INSERT INTO users")).
			WillReturnRows(sqlmock.NewRows([]string{"id_user"}).AddRow(11))

		rec := s.do(t, http.MethodPost, "/auth/register", `{"username":"anna","email":"anna@example.com","password":"secret1"}`, nil)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"id_user":11}`, rec.Body.String())
	})

	t.Run("duplicate email is a conflict without insert", func(t *testing.T) {
		s := newTestServer(t)
		s.mock.ExpectQuery(q("WHERE username = $1)")).WithArgs("anna").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		s.mock.ExpectQuery(q("WHERE email = $1)")).WithArgs("anna@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		rec := s.do(t, http.MethodPost, "/auth/register", `{"username":"anna","email":"anna@example.com","password":"secret1"}`, nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, httputil.ErrCodeConflict, errorCodeOf(t, rec))
	})

	t.Run("invalid email is rejected before the store", func(t *testing.T) {
		s := newTestServer(t)
		rec := s.do(t, http.MethodPost, "/auth/register", `{"username":"anna","email":"not-an-email","password":"secret1"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, httputil.ErrCodeValidation, errorCodeOf(t, rec))
	})

	t.Run("role cannot be self-assigned", func(t *testing.T) {
		s := newTestServer(t)
		rec := s.do(t, http.MethodPost, "/auth/register", `{"username":"anna","email":"anna@example.com","password":"secret1","role":"admin"}`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	rows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id_user", "username", "email", "password", "role", "profile_image"}).
			AddRow(3, "anna", "anna@example.com", string(hash), "user", config.DefaultProfileImage)
	}

	t.Run("by email", func(t *testing.T) {
		s := newTestServer(t)
		s.mock.ExpectQuery(q("WHERE username = $1 OR email = $1")).WithArgs("anna@example.com").WillReturnRows(rows())

		rec := s.do(t, http.MethodPost, "/auth/login", `{"identifier":"anna@example.com","password":"secret1"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			User        map[string]interface{} `json:"user"`
			AccessToken string                 `json:"access_token"`
			ExpiresIn   int                    `json:"expires_in"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.AccessToken)
		assert.Equal(t, 900, resp.ExpiresIn)
		assert.NotContains(t, resp.User, "password")

		claims, err := s.auth.ParseAccessToken(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, int64(3), claims.UserID)
	})

	t.Run("wrong password", func(t *testing.T) {
		s := newTestServer(t)
		s.mock.ExpectQuery(q("WHERE username = $1 OR email = $1")).WithArgs("anna").WillReturnRows(rows())

		rec := s.do(t, http.MethodPost, "/auth/login", `{"identifier":"anna","password":"nope"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

// expectStoredRole queues the admin gate's lookup of the caller.
func (s *testServer) expectStoredRole(id int64, role model.Role) {
	s.mock.ExpectQuery(q("FROM users WHERE id_user = $1")).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id_user", "username", "email", "password", "role", "profile_image"}).
			AddRow(id, "admin", "admin@example.com", "hash", string(role), config.DefaultProfileImage))
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	t.Run("user token is rejected without a lookup", func(t *testing.T) {
		s := newTestServer(t)
		rec := s.do(t, http.MethodDelete, "/admin/users/4", "", &model.User{ID: 2, Role: model.RoleUser})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = s.do(t, http.MethodGet, "/admin/users", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("demoted admin loses access before the token expires", func(t *testing.T) {
		s := newTestServer(t)
		s.expectStoredRole(1, model.RoleUser)

		// The DELETE must never reach the store.
		rec := s.do(t, http.MethodDelete, "/admin/users/4", "", &model.User{ID: 1, Role: model.RoleAdmin})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("deleted admin", func(t *testing.T) {
		s := newTestServer(t)
		s.mock.ExpectQuery(q("FROM users WHERE id_user = $1")).WithArgs(int64(1)).WillReturnError(sql.ErrNoRows)

		rec := s.do(t, http.MethodGet, "/admin/users", "", &model.User{ID: 1, Role: model.RoleAdmin})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("current admin", func(t *testing.T) {
		s := newTestServer(t)
		s.expectStoredRole(1, model.RoleAdmin)
		s.mock.ExpectExec(q("DELETE FROM users WHERE id_user = $1")).WithArgs(int64(4)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		rec := s.do(t, http.MethodDelete, "/admin/users/4", "", &model.User{ID: 1, Role: model.RoleAdmin})
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestAvailability(t *testing.T) {
	t.Run("both fields", func(t *testing.T) {
		s := newTestServer(t)
		s.mock.ExpectQuery(q("WHERE username = $1)")).WithArgs("anna").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		s.mock.ExpectQuery(q("WHERE email = $1)")).WithArgs("zoe@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		rec := s.do(t, http.MethodGet, "/auth/availability?username=anna&email=zoe@example.com", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"username_taken":true,"email_taken":false}`, rec.Body.String())
	})

	t.Run("nothing to check", func(t *testing.T) {
		s := newTestServer(t)
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/auth/availability", "", nil).Code)
	})
}

func TestAdminUpdateUser(t *testing.T) {
	admin := &model.User{ID: 1, Role: model.RoleAdmin}

	t.Run("collision with another user", func(t *testing.T) {
		s := newTestServer(t)
		s.expectStoredRole(1, model.RoleAdmin)
		s.mock.ExpectQuery(q("WHERE username = $1 AND id_user <> $2")).WithArgs("bryan", int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		rec := s.do(t, http.MethodPatch, "/admin/users/4", `{"username":"bryan"}`, admin)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("invalid role", func(t *testing.T) {
		s := newTestServer(t)
		s.expectStoredRole(1, model.RoleAdmin)
		rec := s.do(t, http.MethodPatch, "/admin/users/4", `{"role":"root"}`, admin)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, httputil.ErrCodeValidation, errorCodeOf(t, rec))
	})

	t.Run("partial update", func(t *testing.T) {
		s := newTestServer(t)
		s.expectStoredRole(1, model.RoleAdmin)
		s.mock.ExpectQuery(q("WHERE email = $1 AND id_user <> $2")).WithArgs("new@example.com", int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		s.mock.ExpectExec(q("UPDATE users")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		s.mock.ExpectQuery(q("FROM users WHERE id_user = $1")).WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"id_user", "username", "email", "password", "role", "profile_image"}).
				AddRow(4, "dora", "new@example.com", "hash", "user", config.DefaultProfileImage))

		rec := s.do(t, http.MethodPatch, "/admin/users/4", `{"email":"new@example.com"}`, admin)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"username":"dora"`)
	})
}

func TestListFollowRoutes(t *testing.T) {
	user := &model.User{ID: 2, Role: model.RoleUser}

	t.Run("follow missing list", func(t *testing.T) {
		s := newTestServer(t)
		s.mock.ExpectQuery(q("SELECT EXISTS(SELECT 1 FROM lists WHERE id_list = $1)")).WithArgs(int64(77)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		rec := s.do(t, http.MethodPost, "/lists/77/follow", "", user)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("follow twice", func(t *testing.T) {
		s := newTestServer(t)
		for _, affected := range []int64{1, 0} {
			s.mock.ExpectQuery(q("FROM lists WHERE id_list = $1")).WithArgs(int64(7)).
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			s.mock.ExpectBegin()
			s.mock.ExpectExec(q("pg_advisory_xact_lock")).WithArgs(int64(2), int64(7)).
				WillReturnResult(sqlmock.NewResult(0, 0))
			s.mock.ExpectExec(q("WHERE NOT EXISTS")).WithArgs(int64(2), int64(7)).
				WillReturnResult(sqlmock.NewResult(0, affected))
			s.mock.ExpectCommit()
		}

		assert.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/lists/7/follow", "", user).Code)
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/lists/7/follow", "", user).Code)
	})

	t.Run("follow requires auth", func(t *testing.T) {
		s := newTestServer(t)
		assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/lists/7/follow", "", nil).Code)
	})

	t.Run("most followed rejects bad limit", func(t *testing.T) {
		s := newTestServer(t)
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/lists/most-followed?limit=abc", "", nil).Code)
	})

	t.Run("most followed", func(t *testing.T) {
		s := newTestServer(t)
		s.mock.ExpectQuery(q("ORDER BY COUNT(ufl.id_list) DESC")).WithArgs(model.MostFollowedCap).
			WillReturnRows(sqlmock.NewRows([]string{"id_list"}).AddRow(4).AddRow(2).AddRow(9))

		rec := s.do(t, http.MethodGet, "/lists/most-followed?limit=2", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"list_ids":[4,2]}`, rec.Body.String())
	})

	t.Run("followers count", func(t *testing.T) {
		s := newTestServer(t)
		s.mock.ExpectQuery(q("FROM lists WHERE id_list = $1")).WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		s.mock.ExpectQuery(q("SELECT COUNT(*) FROM user_follow_lists")).WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

		rec := s.do(t, http.MethodGet, "/lists/7/followers/count", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"id_list":7,"followersNum":3}`, rec.Body.String())
	})
}

func TestProfileImageUploadDisabled(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/me/profile-image", "", &model.User{ID: 2, Role: model.RoleUser})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, model.CodeMediaDisabled, errorCodeOf(t, rec))
}
