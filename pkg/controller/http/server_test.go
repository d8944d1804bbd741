package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	server "github.com/secmon-lab/zatsugaku/pkg/controller/http"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model/auth"
	"github.com/secmon-lab/zatsugaku/pkg/repository/memory"
	"github.com/secmon-lab/zatsugaku/pkg/service/embedding"
	"github.com/secmon-lab/zatsugaku/pkg/usecase"
)

const validToken = "valid-token"

// mockAuth accepts only validToken
type mockAuth struct{}

func (mockAuth) ValidateToken(ctx context.Context, rawToken string) (*auth.User, error) {
	if rawToken != validToken {
		return nil, goerr.Wrap(model.ErrUnauthorized, "invalid token")
	}
	return &auth.User{Sub: "user-1", Email: "user@example.com", Name: "Test User"}, nil
}

func (mockAuth) IsNoAuthn() bool { return false }

type mockEmbeddingClient struct {
	generateFn func(ctx context.Context, dimension int, input []string) ([][]float64, error)
}

func (m *mockEmbeddingClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return m.generateFn(ctx, dimension, input)
}

// vectorByContent embeds known texts to fixed vectors
func vectorByContent(vectors map[string][]float64) *mockEmbeddingClient {
	return &mockEmbeddingClient{
		generateFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
			if v, ok := vectors[input[0]]; ok {
				return [][]float64{v}, nil
			}
			return [][]float64{{0, 0, 1}}, nil
		},
	}
}

type testServer struct {
	handler http.Handler
	repo    *memory.Repository
}

func newTestServer(t *testing.T, client *mockEmbeddingClient, genOpts ...embedding.Option) *testServer {
	t.Helper()
	repo := memory.New()

	opts := []usecase.Option{
		usecase.WithDispatcher(func(ctx context.Context, handler func(ctx context.Context) error) {
			_ = handler(ctx)
		}),
	}
	if client != nil {
		genOpts = append([]embedding.Option{embedding.WithDimension(3)}, genOpts...)
		opts = append(opts,
			usecase.WithGenerator(embedding.New(client, genOpts...)),
			usecase.WithAutoEmbedding(true),
		)
	}

	uc := usecase.New(repo, opts...)
	return &testServer{
		handler: server.New(uc, server.WithAuth(mockAuth{})),
		repo:    repo,
	}
}

type response struct {
	status int
	body   map[string]any
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		gt.NoError(t, err).Required()
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	var decoded map[string]any
	gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded)).Required()
	return response{status: w.Code, body: decoded}
}

// doRaw sends body bytes as they are, without JSON encoding
func (s *testServer) doRaw(t *testing.T, method, path, token, body string) response {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	var decoded map[string]any
	gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded)).Required()
	return response{status: w.Code, body: decoded}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.do(t, http.MethodGet, "/api/health", "", nil)
	gt.Value(t, resp.status).Equal(http.StatusOK)
	gt.Value(t, resp.body["success"]).Equal(true)
}

func TestSimilaritySearch(t *testing.T) {
	client := vectorByContent(map[string][]float64{
		"Octopuses have three hearts.":     {1, 0, 0},
		"Squids also have three hearts.":   {0.9, 0.1, 0},
		"The Eiffel Tower grows in summer": {0, 1, 0},
		"cephalopod hearts":                {1, 0.05, 0},
	})

	t.Run("anonymous callers get 401 and no data", func(t *testing.T) {
		s := newTestServer(t, client)
		resp := s.do(t, http.MethodPost, "/api/similarity-search", "", map[string]any{"content": "hearts"})
		gt.Value(t, resp.status).Equal(http.StatusUnauthorized)
		gt.Value(t, resp.body["success"]).Equal(false)
		gt.Value(t, resp.body["error"]).Equal("feature unavailable without login")
		_, hasData := resp.body["data"]
		gt.Bool(t, hasData).False()
	})

	t.Run("anonymous callers get 401 before the body is read", func(t *testing.T) {
		s := newTestServer(t, client)
		for _, body := range []string{"", "{not json"} {
			resp := s.doRaw(t, http.MethodPost, "/api/similarity-search", "", body)
			gt.Value(t, resp.status).Equal(http.StatusUnauthorized)
			gt.Value(t, resp.body["error"]).Equal("feature unavailable without login")
		}
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		s := newTestServer(t, client)
		resp := s.do(t, http.MethodPost, "/api/similarity-search", "forged", map[string]any{"content": "hearts"})
		gt.Value(t, resp.status).Equal(http.StatusUnauthorized)
	})

	t.Run("returns matches above the threshold", func(t *testing.T) {
		s := newTestServer(t, client)
		for _, content := range []string{
			"Octopuses have three hearts.",
			"Squids also have three hearts.",
			"The Eiffel Tower grows in summer",
		} {
			resp := s.do(t, http.MethodPost, "/api/entries", validToken, map[string]any{"content": content})
			gt.Value(t, resp.status).Equal(http.StatusCreated)
		}

		resp := s.do(t, http.MethodPost, "/api/similarity-search", validToken, map[string]any{
			"content":   "cephalopod hearts",
			"threshold": 0.8,
		})
		gt.Value(t, resp.status).Equal(http.StatusOK)
		data := resp.body["data"].([]any)
		gt.Array(t, data).Length(2).Required()

		first := data[0].(map[string]any)
		gt.Value(t, first["content"]).Equal("Octopuses have three hearts.")
		gt.Value(t, first["description"]).Equal("very similar")
		gt.Bool(t, first["similarity"].(float64) > 0.99).True()
	})

	t.Run("missing content is a bad request", func(t *testing.T) {
		s := newTestServer(t, client)
		resp := s.do(t, http.MethodPost, "/api/similarity-search", validToken, map[string]any{"content": ""})
		gt.Value(t, resp.status).Equal(http.StatusBadRequest)
		gt.Value(t, resp.body["error"]).Equal("invalid request")
	})

	t.Run("provider timeout maps to 504", func(t *testing.T) {
		slow := &mockEmbeddingClient{
			generateFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		}
		s := newTestServer(t, slow, embedding.WithTimeout(10*time.Millisecond))
		resp := s.do(t, http.MethodPost, "/api/similarity-search", validToken, map[string]any{"content": "hearts"})
		gt.Value(t, resp.status).Equal(http.StatusGatewayTimeout)
	})

	t.Run("no provider is a server error with a generic message", func(t *testing.T) {
		s := newTestServer(t, nil)
		resp := s.do(t, http.MethodPost, "/api/similarity-search", validToken, map[string]any{"content": "hearts"})
		gt.Value(t, resp.status).Equal(http.StatusInternalServerError)
		gt.Value(t, resp.body["error"]).Equal("internal server error")
	})
}

func TestSimilarityConfig(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.do(t, http.MethodGet, "/api/similarity/config", "", nil)
	gt.Value(t, resp.status).Equal(http.StatusOK)

	data := resp.body["data"].(map[string]any)
	gt.Value(t, data["defaultThreshold"]).Equal(0.7)
	gt.Value(t, data["defaultLimit"]).Equal(float64(5))
	gt.Array(t, data["presets"].([]any)).Length(4)
}

func TestEntriesAPI(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("writes require login", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/api/entries", "", map[string]any{"content": "fact"})
		gt.Value(t, resp.status).Equal(http.StatusUnauthorized)
	})

	t.Run("anonymous malformed writes get 401", func(t *testing.T) {
		for _, tc := range []struct{ method, path string }{
			{http.MethodPost, "/api/entries"},
			{http.MethodPut, "/api/entries/unknown"},
			{http.MethodDelete, "/api/entries/unknown"},
			{http.MethodPost, "/api/tags"},
			{http.MethodPut, "/api/tags/unknown"},
			{http.MethodDelete, "/api/tags/unknown"},
			{http.MethodPost, "/api/embeddings"},
		} {
			resp := s.doRaw(t, tc.method, tc.path, "", "{")
			gt.Value(t, resp.status).Equal(http.StatusUnauthorized)
			gt.Value(t, resp.body["error"]).Equal("authentication required")
		}
	})

	tagResp := s.do(t, http.MethodPost, "/api/tags", validToken, map[string]any{"name": "Nature"})
	gt.Value(t, tagResp.status).Equal(http.StatusCreated)
	tagID := tagResp.body["data"].(map[string]any)["id"].(string)

	created := s.do(t, http.MethodPost, "/api/entries", validToken, map[string]any{
		"content": "Bananas are berries.",
		"source":  "botany book",
		"tagIds":  []string{tagID},
	})
	gt.Value(t, created.status).Equal(http.StatusCreated)
	entry := created.body["data"].(map[string]any)
	entryID := entry["id"].(string)
	gt.Value(t, entry["hasEmbedding"]).Equal(false)
	gt.Array(t, entry["tags"].([]any)).Length(1)

	t.Run("get", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/entries/"+entryID, "", nil)
		gt.Value(t, resp.status).Equal(http.StatusOK)
		gt.Value(t, resp.body["data"].(map[string]any)["content"]).Equal("Bananas are berries.")
	})

	t.Run("malformed ID is not found", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/entries/not-a-uuid", "", nil)
		gt.Value(t, resp.status).Equal(http.StatusNotFound)

		resp = s.do(t, http.MethodGet, "/api/entries/search", "", nil)
		gt.Value(t, resp.status).Equal(http.StatusOK)
		gt.Array(t, resp.body["data"].([]any)).Length(0)
	})

	t.Run("list", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/entries?page=1&per_page=10", "", nil)
		gt.Value(t, resp.status).Equal(http.StatusOK)
		data := resp.body["data"].(map[string]any)
		gt.Value(t, data["total"]).Equal(float64(1))
		gt.Value(t, data["totalPages"]).Equal(float64(1))
	})

	t.Run("list with a malformed page", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/entries?page=abc", "", nil)
		gt.Value(t, resp.status).Equal(http.StatusBadRequest)
	})

	t.Run("search", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/entries/search?q=BANANA&tag_id="+tagID, "", nil)
		gt.Value(t, resp.status).Equal(http.StatusOK)
		gt.Array(t, resp.body["data"].([]any)).Length(1)
	})

	t.Run("recent", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/entries/recent?limit=5", "", nil)
		gt.Value(t, resp.status).Equal(http.StatusOK)
		gt.Array(t, resp.body["data"].([]any)).Length(1)
	})

	t.Run("tag page by name", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/tags/nature", "", nil)
		gt.Value(t, resp.status).Equal(http.StatusOK)
		data := resp.body["data"].(map[string]any)
		gt.Value(t, data["tag"].(map[string]any)["name"]).Equal("Nature")
		gt.Array(t, data["entries"].([]any)).Length(1)
	})

	t.Run("update", func(t *testing.T) {
		resp := s.do(t, http.MethodPut, "/api/entries/"+entryID, validToken, map[string]any{
			"content": "Bananas are botanically berries.",
		})
		gt.Value(t, resp.status).Equal(http.StatusOK)
		data := resp.body["data"].(map[string]any)
		gt.Value(t, data["content"]).Equal("Bananas are botanically berries.")
		gt.Array(t, data["tags"].([]any)).Length(0)
	})

	t.Run("unknown tag on update is a bad request", func(t *testing.T) {
		resp := s.do(t, http.MethodPut, "/api/entries/"+entryID, validToken, map[string]any{
			"content": "x",
			"tagIds":  []string{"missing"},
		})
		gt.Value(t, resp.status).Equal(http.StatusBadRequest)
	})

	t.Run("delete", func(t *testing.T) {
		resp := s.do(t, http.MethodDelete, "/api/entries/"+entryID, validToken, nil)
		gt.Value(t, resp.status).Equal(http.StatusOK)

		resp = s.do(t, http.MethodGet, "/api/entries/"+entryID, "", nil)
		gt.Value(t, resp.status).Equal(http.StatusNotFound)
		gt.Value(t, resp.body["error"]).Equal("entry not found")
	})
}

func TestTagsAPI(t *testing.T) {
	s := newTestServer(t, nil)

	created := s.do(t, http.MethodPost, "/api/tags", validToken, map[string]any{"name": "Space", "color": "#000080"})
	gt.Value(t, created.status).Equal(http.StatusCreated)
	tagID := created.body["data"].(map[string]any)["id"].(string)

	t.Run("duplicate name conflicts", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/api/tags", validToken, map[string]any{"name": "space"})
		gt.Value(t, resp.status).Equal(http.StatusConflict)
	})

	t.Run("invalid color", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/api/tags", validToken, map[string]any{"name": "Other", "color": "blue"})
		gt.Value(t, resp.status).Equal(http.StatusBadRequest)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/tags", bytes.NewReader([]byte("{")))
		req.Header.Set("Authorization", "Bearer "+validToken)
		w := httptest.NewRecorder()
		s.handler.ServeHTTP(w, req)
		gt.Value(t, w.Code).Equal(http.StatusBadRequest)
	})

	t.Run("list with counts", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/tags", "", nil)
		gt.Value(t, resp.status).Equal(http.StatusOK)
		data := resp.body["data"].([]any)
		gt.Array(t, data).Length(1).Required()
		gt.Value(t, data[0].(map[string]any)["entryCount"]).Equal(float64(0))
	})

	t.Run("update", func(t *testing.T) {
		resp := s.do(t, http.MethodPut, "/api/tags/"+tagID, validToken, map[string]any{"name": "Cosmos"})
		gt.Value(t, resp.status).Equal(http.StatusOK)
		data := resp.body["data"].(map[string]any)
		gt.Value(t, data["name"]).Equal("Cosmos")
		gt.Value(t, data["color"]).Equal("#c7c7c7")
	})

	t.Run("delete", func(t *testing.T) {
		resp := s.do(t, http.MethodDelete, "/api/tags/"+tagID, validToken, nil)
		gt.Value(t, resp.status).Equal(http.StatusOK)

		resp = s.do(t, http.MethodGet, "/api/tags/Cosmos", "", nil)
		gt.Value(t, resp.status).Equal(http.StatusNotFound)
	})
}

func TestEmbeddingsAPI(t *testing.T) {
	client := vectorByContent(map[string][]float64{"fact": {1, 0, 0}})

	t.Run("requires login", func(t *testing.T) {
		s := newTestServer(t, client)
		resp := s.do(t, http.MethodGet, "/api/embeddings/stats", "", nil)
		gt.Value(t, resp.status).Equal(http.StatusUnauthorized)

		resp = s.do(t, http.MethodPut, "/api/embeddings", "", nil)
		gt.Value(t, resp.status).Equal(http.StatusUnauthorized)
	})

	t.Run("batch and stats", func(t *testing.T) {
		s := newTestServer(t, client)
		ctx := context.Background()
		for _, content := range []string{"fact", "other fact"} {
			_, err := s.repo.Entry().Create(ctx, &model.Entry{Content: content})
			gt.NoError(t, err).Required()
		}

		resp := s.do(t, http.MethodPut, "/api/embeddings", validToken, nil)
		gt.Value(t, resp.status).Equal(http.StatusOK)
		gt.Value(t, resp.body["processed"]).Equal(float64(2))
		gt.Value(t, resp.body["failed"]).Equal(float64(0))
		gt.Value(t, resp.body["total"]).Equal(float64(2))

		resp = s.do(t, http.MethodGet, "/api/embeddings/stats", validToken, nil)
		gt.Value(t, resp.status).Equal(http.StatusOK)
		data := resp.body["data"].(map[string]any)
		gt.Value(t, data["embedded"]).Equal(float64(2))
		gt.Value(t, data["completionRate"]).Equal(float64(100))
	})

	t.Run("generate for one entry", func(t *testing.T) {
		s := newTestServer(t, client)
		entry, err := s.repo.Entry().Create(context.Background(), &model.Entry{Content: "fact"})
		gt.NoError(t, err).Required()

		resp := s.do(t, http.MethodPost, "/api/embeddings", validToken, map[string]any{
			"entryId": entry.ID.String(),
			"content": entry.Content,
		})
		gt.Value(t, resp.status).Equal(http.StatusOK)

		stored, err := s.repo.Entry().Get(context.Background(), entry.ID)
		gt.NoError(t, err).Required()
		gt.Bool(t, stored.HasEmbedding()).True()

		resp = s.do(t, http.MethodPost, "/api/embeddings", validToken, map[string]any{
			"entryId": model.NewEntryID().String(),
			"content": "fact",
		})
		gt.Value(t, resp.status).Equal(http.StatusNotFound)
	})
}

func TestAuthMe(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.do(t, http.MethodGet, "/api/auth/me", "", nil)
	gt.Value(t, resp.status).Equal(http.StatusUnauthorized)

	resp = s.do(t, http.MethodGet, "/api/auth/me", validToken, nil)
	gt.Value(t, resp.status).Equal(http.StatusOK)
	gt.Value(t, resp.body["data"].(map[string]any)["sub"]).Equal("user-1")
}

func TestNoAuthnMode(t *testing.T) {
	uc := usecase.New(memory.New())
	handler := server.New(uc, server.WithAuth(usecase.NewNoAuthnUseCase("dev", "dev@example.com", "Developer")))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	gt.Value(t, w.Code).Equal(http.StatusOK)
	var body map[string]any
	gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &body)).Required()
	gt.Value(t, body["data"].(map[string]any)["sub"]).Equal("dev")
}
