//go:build integration

package integration

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/studypath/studypath/internal/activity"
	"github.com/studypath/studypath/internal/api"
	"github.com/studypath/studypath/internal/auth"
	"github.com/studypath/studypath/internal/cache"
	"github.com/studypath/studypath/internal/clients/source"
	"github.com/studypath/studypath/internal/config"
	"github.com/studypath/studypath/internal/dashboard"
	"github.com/studypath/studypath/internal/database"
	"github.com/studypath/studypath/internal/forecast"
	"github.com/studypath/studypath/internal/remediation"
	"github.com/studypath/studypath/internal/students"
)

const (
	testStudentID = "2251061234"
	testPassword  = "portal-secret"
	encryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
)

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	Portal      *httptest.Server
	Students    *students.Service
	Activity    *activity.Repository
}

var testEnv *TestEnv

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "studypath_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/studypath_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if err := database.RunMigrations(dsn, getMigrationsPath()); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	portalSrv := httptest.NewServer(fakePortal())
	t.Cleanup(portalSrv.Close)

	// Setup services
	portal := source.New(config.SourceConfig{BaseURL: portalSrv.URL, Timeout: 5 * time.Second}, nil)
	store := cache.New(cache.NewPostgresBackend(pool))
	studentSvc := students.NewService(students.NewRepository(pool))
	activityRepo := activity.NewRepository(pool)
	recorder := activity.NewRecorder(nil, activityRepo)

	generator := remediation.NewGenerator(nil, nil, store)
	dashSvc := dashboard.NewService(portal, store, studentSvc,
		forecast.NewPredictor(rand.New(rand.NewSource(1))), nil, generator, recorder,
		dashboard.Config{SnapshotTTL: time.Hour})
	dashHandler := dashboard.NewHandler(dashSvc)

	encryptor, err := auth.NewEncryptor(encryptionKey)
	if err != nil {
		t.Fatalf("creating encryptor: %v", err)
	}
	sessions := auth.NewSessionStore(redisClient, encryptor, time.Hour)
	authSvc := auth.NewService(auth.NewJWTManager("test-access-secret-32-chars-long!!", 15*time.Minute), sessions, portal, studentSvc)
	authHandler := auth.NewHandler(authSvc)
	activityHandler := activity.NewHandler(activityRepo)

	router := api.NewRouter(api.RouterConfig{
		HealthChecks: []api.HealthCheck{
			{Name: "database", Check: func(ctx context.Context) error { return database.HealthCheck(ctx, pool) }},
			{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		},
	}, api.HandlerSet{
		Login:  authHandler.Login,
		Logout: authHandler.Logout,

		Progress:          dashHandler.Progress,
		CurrentCourses:    dashHandler.CurrentCourses,
		Predictions:       dashHandler.Predictions,
		Insights:          dashHandler.Insights,
		CourseSuggestions: dashHandler.CourseSuggestions,
		Remediation:       dashHandler.Remediation,
		Roadmap:           dashHandler.Roadmap,

		ListActivity: activityHandler.List,

		AuthMiddleware: auth.Middleware(authSvc),
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
		Portal:      portalSrv,
		Students:    studentSvc,
		Activity:    activityRepo,
	}

	return testEnv
}

// fakePortal serves one student with a weak Databases mark and a strong
// Networks mark.
func fakePortal() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("username") != testStudentID || r.PostForm.Get("password") != testPassword {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"access_token":"portal-token","token_type":"bearer","expires_in":3600}`))
	})
	authed := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer portal-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(body))
		}
	}
	mux.HandleFunc("/api/users/getCurrentUser", authed(`{"username":"`+testStudentID+`","displayName":"Tran Thi B"}`))
	mux.HandleFunc("/api/studentsubjectmark/getListMarkDetailStudent", authed(`[
		{"subject":{"subjectName":"Databases","subjectCode":"CS301"},"semester":{"semesterName":"2024_1"},"mark":4.5},
		{"subject":{"subjectName":"Networks","subjectCode":"CS302"},"semester":{"semesterName":"2024_1"},"mark":9}
	]`))
	mux.HandleFunc("/api/semester/semester_info", authed(`[{"id":1042}]`))
	mux.HandleFunc("/api/StudentCourseSubject/studentLoginUser/1042", authed(`[]`))
	return mux
}

func getMigrationsPath() string {
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// Helper functions

func LoginStudent(t *testing.T, env *TestEnv) string {
	t.Helper()
	body := map[string]string{"student_id": testStudentID, "password": testPassword}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/login", body, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	return data["access_token"].(string)
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}
