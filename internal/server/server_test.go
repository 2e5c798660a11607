package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	jwt "github.com/golang-jwt/jwt/v5"

	"contentbrain/internal/app"
	"contentbrain/internal/ratelimit"
	"contentbrain/internal/usertoken"
	"contentbrain/pkg/domain"
	"contentbrain/pkg/store"
)

const (
	testIssuer   = "https://id.example"
	testAudience = "contentbrain-api"
	testKeyID    = "key-1"
)

type stubGenerator struct {
	answer string
	err    error
}

func (g *stubGenerator) GenerateText(context.Context, string, string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

type fakeVectors struct {
	addCalls int
	addErr   error
}

func (f *fakeVectors) EnsureReady(context.Context) error { return nil }

func (f *fakeVectors) AddTexts(_ context.Context, _ []string, _ string) error {
	f.addCalls++
	return f.addErr
}

func (f *fakeVectors) Retrieve(context.Context, string, string, int) ([]domain.KnowledgeChunk, error) {
	return nil, nil
}

type stubPhotos struct {
	urls []string
	err  error
}

func (p *stubPhotos) Search(context.Context, string, int, int) ([]string, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.urls, nil
}

type testEnv struct {
	server  *httptest.Server
	key     *rsa.PrivateKey
	memory  *store.MemoryStore
	vectors *fakeVectors
}

func newTestEnv(t *testing.T, appCfg app.Config, limiter *ratelimit.FixedWindowLimiter) *testEnv {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		payload := map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": testKeyID,
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(jwks.Close)

	verifier, err := usertoken.NewVerifier(usertoken.Config{
		JWKSURL:  jwks.URL,
		Issuer:   testIssuer,
		Audience: testAudience,
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	memory := store.NewMemoryStore()
	if appCfg.Store == nil {
		appCfg.Store = memory
	}
	vectors := &fakeVectors{}
	if appCfg.Vectors == nil {
		appCfg.Vectors = vectors
	}
	if appCfg.Generator == nil {
		appCfg.Generator = &stubGenerator{answer: "generated text"}
	}
	a, err := app.New(appCfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	srv := New(Config{App: a, TokenVerifier: verifier, Limiter: limiter})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, key: key, memory: memory, vectors: vectors}
}

func (e *testEnv) token(t *testing.T, subject string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss":   testIssuer,
		"aud":   testAudience,
		"sub":   subject,
		"email": subject + "@example.com",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(e.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, app.Config{}, nil)
	resp := env.do(t, http.MethodGet, "/healthz", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	env := newTestEnv(t, app.Config{}, nil)
	for _, path := range []string{"/api/generate", "/api/history", "/api/images"} {
		resp := env.do(t, http.MethodPost, path, "", map[string]string{})
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", path, resp.StatusCode)
		}
	}
}

func TestRequestsWithBadTokenAreRejected(t *testing.T) {
	env := newTestEnv(t, app.Config{}, nil)
	resp := env.do(t, http.MethodGet, "/api/history", "not-a-token", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestGenerateEndToEnd(t *testing.T) {
	env := newTestEnv(t, app.Config{Generator: &stubGenerator{answer: "A short post about Go."}}, nil)
	token := env.token(t, "user-1")

	resp := env.do(t, http.MethodPost, "/api/generate", token, map[string]string{
		"topic":       "Go generics",
		"contentType": "Blog Post",
		"tone":        "friendly",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Answer    string `json:"answer"`
		Topic     string `json:"topic"`
		Analytics struct {
			WordCount   int `json:"wordCount"`
			ReadingTime int `json:"readingTime"`
		} `json:"analytics"`
	}
	decodeBody(t, resp, &body)
	if body.Answer != "A short post about Go." {
		t.Errorf("answer = %q", body.Answer)
	}
	if body.Topic != "Go generics" {
		t.Errorf("topic = %q", body.Topic)
	}
	if body.Analytics.WordCount == 0 || body.Analytics.ReadingTime < 1 {
		t.Errorf("analytics missing: %+v", body.Analytics)
	}

	records, err := env.memory.ListGenerationsByOwner("user-1", 20)
	if err != nil || len(records) != 1 {
		t.Fatalf("records = %v, err = %v", records, err)
	}
}

func TestGenerateMissingTopic(t *testing.T) {
	env := newTestEnv(t, app.Config{}, nil)
	resp := env.do(t, http.MethodPost, "/api/generate", env.token(t, "user-1"), map[string]string{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGenerateModelFailure(t *testing.T) {
	env := newTestEnv(t, app.Config{Generator: &stubGenerator{err: errors.New("model down")}}, nil)
	resp := env.do(t, http.MethodPost, "/api/generate", env.token(t, "user-1"), map[string]string{"topic": "anything"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}

func TestGenerateInvalidJSON(t *testing.T) {
	env := newTestEnv(t, app.Config{}, nil)
	req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/api/generate", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+env.token(t, "user-1"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRegenerate(t *testing.T) {
	env := newTestEnv(t, app.Config{Generator: &stubGenerator{answer: "rewritten"}}, nil)
	token := env.token(t, "user-1")

	resp := env.do(t, http.MethodPost, "/api/regenerate", token, map[string]string{
		"selectedText": "original",
		"instruction":  "make it formal",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["updatedText"] != "rewritten" {
		t.Errorf("updatedText = %q", body["updatedText"])
	}

	resp = env.do(t, http.MethodPost, "/api/regenerate", token, map[string]string{"selectedText": "x"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing instruction: status = %d, want 400", resp.StatusCode)
	}
}

func TestImagesAlwaysOK(t *testing.T) {
	env := newTestEnv(t, app.Config{Photos: &stubPhotos{err: errors.New("provider down")}}, nil)
	resp := env.do(t, http.MethodPost, "/api/images?page=2", env.token(t, "user-1"), map[string]string{"topic": "mountains"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 even when the provider fails", resp.StatusCode)
	}
	var body struct {
		Images []string `json:"images"`
	}
	decodeBody(t, resp, &body)
	if body.Images == nil || len(body.Images) != 0 {
		t.Errorf("images = %v, want empty list", body.Images)
	}
}

func uploadRequest(t *testing.T, url, token, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url+"/api/knowledge/upload", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUploadKnowledge(t *testing.T) {
	env := newTestEnv(t, app.Config{}, nil)
	req := uploadRequest(t, env.server.URL, env.token(t, "user-1"),
		"notes.txt", "text/plain", []byte("Some useful background knowledge."))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body uploadResponse
	decodeBody(t, resp, &body)
	if body.Status != "indexed" || body.Filename != "notes.txt" || body.ChunksAdded != 1 {
		t.Errorf("body = %+v", body)
	}
	if env.vectors.addCalls != 1 {
		t.Errorf("addCalls = %d", env.vectors.addCalls)
	}
}

func TestUploadRejectsUnsupportedAndEmpty(t *testing.T) {
	env := newTestEnv(t, app.Config{}, nil)
	token := env.token(t, "user-1")

	req := uploadRequest(t, env.server.URL, token, "photo.png", "image/png", []byte{0x89})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unsupported type: status = %d, want 400", resp.StatusCode)
	}

	req = uploadRequest(t, env.server.URL, token, "empty.txt", "text/plain", []byte("   \n"))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty document: status = %d, want 400", resp.StatusCode)
	}
	if env.vectors.addCalls != 0 {
		t.Errorf("vector store must not be called for rejected uploads")
	}
}

func TestHistoryListAndDelete(t *testing.T) {
	env := newTestEnv(t, app.Config{}, nil)
	token := env.token(t, "user-1")
	_ = env.memory.SaveGeneration(domain.GenerationRecord{ID: "rec-1", OwnerID: "user-1", Topic: "go", CreatedAt: time.Now()})
	_ = env.memory.SaveGeneration(domain.GenerationRecord{ID: "rec-2", OwnerID: "user-2", Topic: "rust", CreatedAt: time.Now()})

	resp := env.do(t, http.MethodGet, "/api/history", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var body struct {
		History []domain.GenerationRecord `json:"history"`
	}
	decodeBody(t, resp, &body)
	if len(body.History) != 1 || body.History[0].ID != "rec-1" {
		t.Fatalf("history = %+v", body.History)
	}

	resp = env.do(t, http.MethodDelete, "/api/history/rec-2", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign delete: status = %d, want 403", resp.StatusCode)
	}

	resp = env.do(t, http.MethodDelete, "/api/history/missing", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing delete: status = %d, want 404", resp.StatusCode)
	}

	resp = env.do(t, http.MethodDelete, "/api/history/rec-1", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	var deleted map[string]string
	decodeBody(t, resp, &deleted)
	if deleted["status"] != "deleted" {
		t.Errorf("delete body = %v", deleted)
	}
	if _, ok, _ := env.memory.GetGeneration("rec-1"); ok {
		t.Errorf("record still present after delete")
	}
}

func TestRateLimitOnGenerate(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(redis.Addr(), "", "test:ratelimit", 1, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	env := newTestEnv(t, app.Config{}, limiter)
	token := env.token(t, "user-1")

	resp := env.do(t, http.MethodPost, "/api/generate", token, map[string]string{"topic": "first"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first request: status = %d", resp.StatusCode)
	}
	resp = env.do(t, http.MethodPost, "/api/generate", token, map[string]string{"topic": "second"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", resp.StatusCode)
	}
}
