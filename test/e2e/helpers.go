//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/cloo-solutions/meetmind/internal/api/handlers"
	"github.com/cloo-solutions/meetmind/internal/api/middleware"
	"github.com/cloo-solutions/meetmind/internal/repository"
	"github.com/cloo-solutions/meetmind/internal/server"
	"github.com/cloo-solutions/meetmind/internal/service"
	"github.com/cloo-solutions/meetmind/internal/storage"
	"github.com/cloo-solutions/meetmind/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	apiToken   = "mm_e2e_token"
	bucketName = "recordings"
	dimensions = 1536
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	STT          *scriptedSTT
	TempDir      string
	HTTPClient   *http.Client
}

// SetupE2EEnv starts Postgres and RustFS and serves the full router backed by
// the pgvector store. Speech-to-text, embeddings and answers are local fakes.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSSecretKey,
		Bucket:          bucketName,
		UsePathStyle:    true,
		MaxObjectBytes:  10 * 1024 * 1024,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		S3Client:   s3Client,
		STT:        &scriptedSTT{},
		TempDir:    t.TempDir(),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	env.ServerURL, env.ServerCloser = startServer(t, env, port)
	return env
}

// Cleanup stops the server and containers.
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// APIResponse is the response envelope.
type APIResponse struct {
	Status int             `json:"-"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body, apiToken)
}

func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodDelete, path, nil, apiToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := APIResponse{Status: resp.StatusCode}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &apiResp); err != nil {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
	}

	if resp.StatusCode >= 400 {
		return &apiResp, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}
	return &apiResp, nil
}

// UploadRecording stores content in the test bucket and returns its s3 URI.
func (e *E2ETestEnv) UploadRecording(key string, content []byte) string {
	if err := e.S3Client.Upload(e.Ctx, key, bytes.NewReader(content), "audio/mpeg"); err != nil {
		e.T.Fatalf("failed to upload recording: %v", err)
	}
	return fmt.Sprintf("s3://%s/%s", bucketName, key)
}

// TempFiles lists the files left in the server's temp dir.
func (e *E2ETestEnv) TempFiles() []string {
	entries, err := os.ReadDir(e.TempDir)
	if err != nil {
		e.T.Fatalf("failed to read temp dir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func startServer(t *testing.T, env *E2ETestEnv, port int) (string, func()) {
	store := repository.NewFragmentStore(env.Pool)
	embedder := bagOfWordsEmbedder{}

	transcription := service.NewTranscriptionService(env.STT, fixedDecoder{seconds: 90}, service.TranscriptionConfig{
		TempDir: env.TempDir,
	})
	indexer := service.NewIndexService(store, embedder, nil, nil)
	retrieval := service.NewRetrievalService(store, embedder, nil, contextEchoGenerator{})

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:        middleware.StaticToken{Token: apiToken},
		TranscriptionHandler: handlers.NewTranscriptionHandler(transcription, env.S3Client, env.TempDir, 10*1024*1024),
		MeetingHandler:       handlers.NewMeetingHandler(indexer),
		QueryHandler:         handlers.NewQueryHandler(retrieval, service.DefaultTopK),
		MaxUploadBytes:       10 * 1024 * 1024,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// scriptedSTT returns Text for every file it is given.
type scriptedSTT struct {
	Text string
}

func (s *scriptedSTT) Transcribe(ctx context.Context, path, language string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return s.Text, nil
}

type fixedDecoder struct {
	seconds float64
}

func (d fixedDecoder) Duration(ctx context.Context, path string) (float64, error) {
	return d.seconds, nil
}

func (d fixedDecoder) ExtractRange(ctx context.Context, src string, startSec, durationSec float64, dst string) error {
	return fmt.Errorf("unexpected chunking of %s", src)
}

// bagOfWordsEmbedder hashes words into a unit vector so texts sharing words
// land close together.
type bagOfWordsEmbedder struct{}

func (bagOfWordsEmbedder) embed(text string) []float32 {
	v := make([]float32, dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%dimensions]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func (e bagOfWordsEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e bagOfWordsEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

// contextEchoGenerator answers with the first context entry it was given.
type contextEchoGenerator struct{}

func (contextEchoGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	lines := strings.SplitN(user, "\n", 3)
	if len(lines) < 2 {
		return "", fmt.Errorf("no context in prompt")
	}
	return "Based on your meetings: " + lines[1], nil
}
