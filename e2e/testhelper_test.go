package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/fieldpunch/api/internal/auth"
	"github.com/fieldpunch/api/internal/client"
	"github.com/fieldpunch/api/internal/config"
	"github.com/fieldpunch/api/internal/handler"
	"github.com/fieldpunch/api/internal/middleware"
	"github.com/fieldpunch/api/internal/model"
	"github.com/fieldpunch/api/internal/service"
	"github.com/fieldpunch/api/internal/store"
	ws "github.com/fieldpunch/api/internal/websocket"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app  *fiber.App
	user string
}

// setupApp creates a Fiber app wired like main.go but with unconfigured
// external clients, so extraction and photo storage run on mock fallbacks.
// Redis on localhost DB 15 must be running; tests skip otherwise.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use DB 15 for tests to avoid collision
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: "localhost:6379",
		DB:   15,
	})
	t.Cleanup(func() { asynqClient.Close() })

	validate := validator.New()

	hub := ws.NewHub()
	go hub.Run()

	// External clients left unconfigured so services use mock fallbacks
	geminiClient := client.NewGeminiClient(&config.GeminiConfig{}) // no API key → mock
	// storage = nil → mock URLs

	jobStore := store.NewRedisJobStore(redisClient)
	taskQueue := service.NewTaskQueue(asynqClient)

	categories := []model.Category{"Division 22 - Plumbing", "Division 26 - Electrical"}
	extractService := service.NewExtractService(geminiClient, categories)
	itemService := service.NewItemService(jobStore, nil)
	jobService := service.NewJobService(jobStore, taskQueue)
	draftService := service.NewDraftService(extractService, itemService, hub, categories)
	reportService := service.NewReportService(redisClient, jobStore, taskQueue)

	jobHandler := handler.NewJobHandler(jobService, hub, validate)
	itemHandler := handler.NewItemHandler(itemService, jobStore)
	draftHandler := handler.NewDraftHandler(draftService, jobStore)
	reportHandler := handler.NewReportHandler(reportService, validate)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", authMiddleware.Authenticate())

	jobs := api.Group("/jobs")
	jobs.Get("/", jobHandler.List)
	jobs.Post("/", jobHandler.Create)
	jobs.Delete("/:jobId", jobHandler.Delete)
	jobs.Delete("/:jobId/items/:itemId", itemHandler.Delete)

	draft := api.Group("/draft")
	draft.Get("/", draftHandler.Get)
	draft.Patch("/", draftHandler.Update)
	draft.Post("/cancel", draftHandler.Cancel)
	// Very high rate limits so tests don't get blocked
	draft.Post("/submit", rateLimiter.SubmitLimit(10000), draftHandler.Submit)

	reports := api.Group("/reports")
	reports.Post("/", rateLimiter.ReportLimit(10000), reportHandler.Start)
	reports.Get("/:reportId", reportHandler.Status)
	reports.Get("/:reportId/result", reportHandler.Result)

	// Fresh user per app so runs never see each other's jobs.
	return &testApp{app: app, user: "e2e-" + uuid.New().String()}
}

// generateToken creates an HMAC JWT for test requests.
func generateToken(t *testing.T, userID string) string {
	t.Helper()
	signed, err := auth.GenerateToken(userID, "test@example.com", testJWTSecret)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, ta *testApp, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t, ta.user)
	return doRequest(ta.app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// doMultipartRequest performs an authenticated multipart POST.
func doMultipartRequest(t *testing.T, ta *testApp, path string, fields map[string]string, fileField, fileName string, fileData []byte) (*http.Response, error) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(fileData); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+generateToken(t, ta.user))

	return ta.app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
