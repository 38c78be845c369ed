//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/taskdeck/apiserver/config"
	"github.com/taskdeck/apiserver/internal/db"
	"github.com/taskdeck/apiserver/internal/server"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d", "postgres"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestTaskOwnershipLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	suffix := time.Now().UnixNano()

	alice := registerUser(t, baseURL, fmt.Sprintf("alice_%d@example.com", suffix), "Alice")
	bob := registerUser(t, baseURL, fmt.Sprintf("bob_%d@example.com", suffix), "Bob")
	admin := registerUser(t, baseURL, fmt.Sprintf("admin_%d@example.com", suffix), "Admin")
	promoteUserToAdmin(t, admin.User.Email)

	task := createTask(t, baseURL, alice.Token, "Write report", "Q3 numbers")
	if task.ID == 0 {
		t.Fatalf("expected task ID to be set")
	}
	if task.UserID != alice.User.ID {
		t.Fatalf("expected task owner %d, got %d", alice.User.ID, task.UserID)
	}
	if task.Status != "todo" || task.Priority != "medium" {
		t.Fatalf("unexpected task defaults: %s/%s", task.Status, task.Priority)
	}

	// Bob cannot see or touch Alice's task.
	if tasks := listTasks(t, baseURL, bob.Token); len(tasks) != 0 {
		t.Fatalf("expected empty task list for bob, got %d", len(tasks))
	}
	expectStatus(t, http.MethodGet, fmt.Sprintf("%s/tasks/%d", baseURL, task.ID), bob.Token, nil, http.StatusForbidden)
	expectStatus(t, http.MethodDelete, fmt.Sprintf("%s/tasks/%d", baseURL, task.ID), bob.Token, nil, http.StatusForbidden)

	// Admin sees everything.
	adminTasks := listTasks(t, baseURL, admin.Token)
	if !containsTask(adminTasks, task.ID) {
		t.Fatalf("expected admin task list to contain task %d", task.ID)
	}

	updated := updateTask(t, baseURL, alice.Token, task.ID, map[string]any{"status": "completed"})
	if updated.Status != "completed" {
		t.Fatalf("unexpected status after update: %q", updated.Status)
	}
	if updated.Title != task.Title {
		t.Fatalf("partial update changed title: %q", updated.Title)
	}

	expectStatus(t, http.MethodDelete, fmt.Sprintf("%s/tasks/%d", baseURL, task.ID), alice.Token, nil, http.StatusNoContent)
	expectStatus(t, http.MethodGet, fmt.Sprintf("%s/tasks/%d", baseURL, task.ID), alice.Token, nil, http.StatusNotFound)
}

func TestNoteLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	suffix := time.Now().UnixNano()

	carol := registerUser(t, baseURL, fmt.Sprintf("carol_%d@example.com", suffix), "Carol")

	note := createNote(t, baseURL, carol.Token, "Standup", "yesterday, today, blockers", "work, meetings")
	if len(note.Tags) != 2 || note.Tags[0] != "work" || note.Tags[1] != "meetings" {
		t.Fatalf("unexpected tags: %v", note.Tags)
	}

	updated := updateNote(t, baseURL, carol.Token, note.ID, map[string]any{"tags": []string{"work"}})
	if len(updated.Tags) != 1 || updated.Tags[0] != "work" {
		t.Fatalf("unexpected tags after update: %v", updated.Tags)
	}
	if updated.Content != note.Content {
		t.Fatalf("partial update changed content: %q", updated.Content)
	}

	// Attachments are disabled without a storage driver.
	expectStatus(t, http.MethodGet, fmt.Sprintf("%s/notes/%d/attachment", baseURL, note.ID), carol.Token, nil, http.StatusServiceUnavailable)

	expectStatus(t, http.MethodDelete, fmt.Sprintf("%s/notes/%d", baseURL, note.ID), carol.Token, nil, http.StatusNoContent)
	expectStatus(t, http.MethodGet, fmt.Sprintf("%s/notes/%d", baseURL, note.ID), carol.Token, nil, http.StatusNotFound)
}

func TestAuthAndAdmin(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	suffix := time.Now().UnixNano()

	email := fmt.Sprintf("dave_%d@example.com", suffix)
	dave := registerUser(t, baseURL, email, "Dave")
	if dave.User.Role != "user" {
		t.Fatalf("expected registered role user, got %q", dave.User.Role)
	}

	// Duplicate registration conflicts, regardless of email case.
	expectStatus(t, http.MethodPost, baseURL+"/auth/register", "", map[string]any{
		"name":     "Dave Again",
		"email":    strings.ToUpper(email),
		"password": "password123",
	}, http.StatusConflict)

	// Wrong password and unknown email both yield 401.
	expectStatus(t, http.MethodPost, baseURL+"/auth/login", "", map[string]any{
		"email":    email,
		"password": "wrongpass",
	}, http.StatusUnauthorized)
	expectStatus(t, http.MethodPost, baseURL+"/auth/login", "", map[string]any{
		"email":    fmt.Sprintf("nobody_%d@example.com", suffix),
		"password": "password123",
	}, http.StatusUnauthorized)

	// Non-admins cannot use admin endpoints.
	expectStatus(t, http.MethodGet, baseURL+"/users", dave.Token, nil, http.StatusForbidden)

	admin := registerUser(t, baseURL, fmt.Sprintf("root_%d@example.com", suffix), "Root")
	promoteUserToAdmin(t, admin.User.Email)
	adminToken := login(t, baseURL, admin.User.Email, "password123")

	// Admins cannot delete their own account.
	expectStatus(t, http.MethodDelete, fmt.Sprintf("%s/users/%d", baseURL, admin.User.ID), adminToken, nil, http.StatusBadRequest)

	// Deleting dave cascades his records.
	task := createTask(t, baseURL, dave.Token, "Doomed", "will be cascaded")
	expectStatus(t, http.MethodDelete, fmt.Sprintf("%s/users/%d", baseURL, dave.User.ID), adminToken, nil, http.StatusNoContent)
	expectStatus(t, http.MethodGet, fmt.Sprintf("%s/tasks/%d", baseURL, task.ID), adminToken, nil, http.StatusNotFound)
	expectStatus(t, http.MethodGet, baseURL+"/auth/me", dave.Token, nil, http.StatusUnauthorized)
}

type userResponse struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type taskResponse struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	UserID   int    `json:"user_id"`
}

type noteResponse struct {
	ID      int      `json:"id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	UserID  int      `json:"user_id"`
}

func registerUser(t *testing.T, baseURL, email, name string) authResponse {
	t.Helper()

	var parsed authResponse
	doJSON(t, http.MethodPost, baseURL+"/auth/register", "", map[string]any{
		"name":     name,
		"email":    email,
		"password": "password123",
	}, http.StatusCreated, &parsed)
	if parsed.Token == "" {
		t.Fatalf("missing token in register response")
	}
	return parsed
}

func login(t *testing.T, baseURL, email, password string) string {
	t.Helper()

	var parsed authResponse
	doJSON(t, http.MethodPost, baseURL+"/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, http.StatusOK, &parsed)
	return parsed.Token
}

func createTask(t *testing.T, baseURL, token, title, description string) taskResponse {
	t.Helper()

	var parsed taskResponse
	doJSON(t, http.MethodPost, baseURL+"/tasks", token, map[string]any{
		"title":       title,
		"description": description,
	}, http.StatusCreated, &parsed)
	return parsed
}

func listTasks(t *testing.T, baseURL, token string) []taskResponse {
	t.Helper()

	var parsed []taskResponse
	doJSON(t, http.MethodGet, baseURL+"/tasks", token, nil, http.StatusOK, &parsed)
	return parsed
}

func updateTask(t *testing.T, baseURL, token string, id int, patch map[string]any) taskResponse {
	t.Helper()

	var parsed taskResponse
	doJSON(t, http.MethodPut, fmt.Sprintf("%s/tasks/%d", baseURL, id), token, patch, http.StatusOK, &parsed)
	return parsed
}

func createNote(t *testing.T, baseURL, token, title, content, tags string) noteResponse {
	t.Helper()

	var parsed noteResponse
	doJSON(t, http.MethodPost, baseURL+"/notes", token, map[string]any{
		"title":   title,
		"content": content,
		"tags":    tags,
	}, http.StatusCreated, &parsed)
	return parsed
}

func updateNote(t *testing.T, baseURL, token string, id int, patch map[string]any) noteResponse {
	t.Helper()

	var parsed noteResponse
	doJSON(t, http.MethodPut, fmt.Sprintf("%s/notes/%d", baseURL, id), token, patch, http.StatusOK, &parsed)
	return parsed
}

func containsTask(tasks []taskResponse, id int) bool {
	for _, task := range tasks {
		if task.ID == id {
			return true
		}
	}
	return false
}

func doJSON(t *testing.T, method, url, token string, payload any, wantStatus int, out any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s status %d, want %d: %s", method, url, resp.StatusCode, wantStatus, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func expectStatus(t *testing.T, method, url, token string, payload any, wantStatus int) {
	t.Helper()
	doJSON(t, method, url, token, payload, wantStatus, nil)
}

func promoteUserToAdmin(t *testing.T, email string) {
	t.Helper()

	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.PostgresURL(cfg))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := conn.ExecContext(ctx, "UPDATE users SET role = 'admin', updated_at = NOW() WHERE LOWER(email) = LOWER($1)", email); err != nil {
		t.Fatalf("promote user: %v", err)
	}
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.PostgresURL(cfg))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, db.PostgresURL(cfg))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func startServer() (*server.Server, error) {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "taskdeck")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "taskdeck_db")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("STORAGE_DRIVER", "")
	_ = os.Setenv("MQ_DRIVER", "")

	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
