package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/extract"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) ClassifyEmail(ctx context.Context, text string) (*core.ClassificationResult, error) {
	args := m.Called(ctx, text)
	result, _ := args.Get(0).(*core.ClassificationResult)
	return result, args.Error(1)
}

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Admit(ctx context.Context, identity string) error {
	return m.Called(ctx, identity).Error(0)
}

type stubLedger struct {
	since time.Time
}

func (l *stubLedger) Record(context.Context, *core.UsageRecord) error { return nil }

func (l *stubLedger) Summary(_ context.Context, since time.Time) (*core.UsageSummary, error) {
	l.since = since
	return &core.UsageSummary{
		Since:     since,
		Requests:  2,
		Usage:     core.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		ByOutcome: map[string]int{"ok": 2},
	}, nil
}

func newTestRouter(t *testing.T, classifier Classifier, limiter core.RateLimiter, ledger core.UsageLedger) *gin.Engine {
	t.Helper()
	logger := zap.NewNop()
	h := NewHandler(classifier, extract.NewExtractor(logger), ledger, 1<<20, logger)
	router, err := NewRouter(h, limiter, RouterOptions{}, logger)
	require.NoError(t, err)
	return router
}

func postForm(router http.Handler, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func postFile(t *testing.T, router http.Handler, filename, contentType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body detailBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Detail
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &mockClassifier{}, nil, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAnalyze(t *testing.T) {
	justification := "Pedido de suporte com número de chamado."
	result := &core.ClassificationResult{
		Category:          core.CategoryProductive,
		SuggestedResponse: "Olá! Já estamos cuidando do seu chamado.",
		Confidence:        0.91,
		Highlights:        []string{"support ticket"},
		Justification:     &justification,
		Usage:             &core.Usage{PromptTokens: 120, CompletionTokens: 40, TotalTokens: 160},
		NormalizedText:    "Need help with support ticket 123",
	}

	t.Run("classifies text", func(t *testing.T) {
		classifier := &mockClassifier{}
		classifier.On("ClassifyEmail", mock.Anything, "Need help with support ticket 123").Return(result, nil)
		router := newTestRouter(t, classifier, nil, nil)

		w := postForm(router, url.Values{"text": {"Need help with support ticket 123"}})

		require.Equal(t, http.StatusOK, w.Code)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
		assert.Equal(t, "Produtivo", payload["category"])
		assert.Contains(t, payload["suggested_response"], "cuidando")
		assert.Equal(t, 0.91, payload["confidence"])
		assert.Equal(t, "Need help with support ticket 123", payload["normalized_text"])
		assert.Equal(t, map[string]any{"prompt_tokens": 120.0, "completion_tokens": 40.0, "total_tokens": 160.0}, payload["usage"])
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("classifies text file", func(t *testing.T) {
		classifier := &mockClassifier{}
		classifier.On("ClassifyEmail", mock.Anything, "Manual anexado para sua leitura.").Return(&core.ClassificationResult{
			Category:          core.CategoryUnproductive,
			SuggestedResponse: "Obrigado! Guardaremos o manual.",
			Confidence:        0.65,
		}, nil)
		router := newTestRouter(t, classifier, nil, nil)

		w := postFile(t, router, "manual.txt", "text/plain", []byte("Manual anexado para sua leitura."))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"category":"Improdutivo"`)
		classifier.AssertExpectations(t)
	})

	t.Run("missing payload", func(t *testing.T) {
		classifier := &mockClassifier{}
		router := newTestRouter(t, classifier, nil, nil)

		w := postForm(router, url.Values{})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, detail(t, w), "Envie um texto ou arquivo")
		classifier.AssertNotCalled(t, "ClassifyEmail", mock.Anything, mock.Anything)
	})

	t.Run("blank text", func(t *testing.T) {
		classifier := &mockClassifier{}
		classifier.On("ClassifyEmail", mock.Anything, "   ").Return(nil, core.ErrEmptyInput)
		router := newTestRouter(t, classifier, nil, nil)

		w := postForm(router, url.Values{"text": {"   "}})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, msgEmptyText, detail(t, w))
	})

	t.Run("empty file", func(t *testing.T) {
		classifier := &mockClassifier{}
		router := newTestRouter(t, classifier, nil, nil)

		w := postFile(t, router, "vazio.txt", "text/plain", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, msgEmptyFile, detail(t, w))
		classifier.AssertNotCalled(t, "ClassifyEmail", mock.Anything, mock.Anything)
	})

	t.Run("unsupported file type", func(t *testing.T) {
		router := newTestRouter(t, &mockClassifier{}, nil, nil)

		w := postFile(t, router, "page.html", "text/html", []byte("<p>oi</p>"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Formato não suportado: text/html", detail(t, w))
	})

	t.Run("upload too large", func(t *testing.T) {
		router := newTestRouter(t, &mockClassifier{}, nil, nil)

		w := postFile(t, router, "big.txt", "text/plain", bytes.Repeat([]byte("a"), 2<<20))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, msgUploadTooLarge, detail(t, w))
	})

	t.Run("upstream failure is a bad gateway", func(t *testing.T) {
		classifier := &mockClassifier{}
		classifier.On("ClassifyEmail", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("attempt 3: %w", core.ErrTruncatedResponse))
		router := newTestRouter(t, classifier, nil, nil)

		w := postForm(router, url.Values{"text": {"qualquer coisa"}})

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, detail(t, w), "truncated")
	})

	t.Run("missing credential is a server error", func(t *testing.T) {
		classifier := &mockClassifier{}
		classifier.On("ClassifyEmail", mock.Anything, mock.Anything).Return(nil, core.ErrCredentialMissing)
		router := newTestRouter(t, classifier, nil, nil)

		w := postForm(router, url.Values{"text": {"qualquer coisa"}})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, msgCredential, detail(t, w))
	})
}

func TestAnalyze_RateLimit(t *testing.T) {
	t.Run("rejected before classification", func(t *testing.T) {
		classifier := &mockClassifier{}
		limiter := &mockLimiter{}
		limiter.On("Admit", mock.Anything, "192.0.2.1").Return(&core.RateLimitError{RetryAfter: 42})
		router := newTestRouter(t, classifier, limiter, nil)

		w := postForm(router, url.Values{"text": {"olá"}})

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "42", w.Header().Get("Retry-After"))
		assert.Equal(t, msgRateLimited, detail(t, w))
		classifier.AssertNotCalled(t, "ClassifyEmail", mock.Anything, mock.Anything)
	})

	t.Run("limiter failure admits", func(t *testing.T) {
		classifier := &mockClassifier{}
		classifier.On("ClassifyEmail", mock.Anything, "olá").Return(&core.ClassificationResult{
			Category: core.CategoryUnproductive, SuggestedResponse: "Obrigado!", Confidence: 0.8,
		}, nil)
		limiter := &mockLimiter{}
		limiter.On("Admit", mock.Anything, mock.Anything).Return(errors.New("redis down"))
		router := newTestRouter(t, classifier, limiter, nil)

		w := postForm(router, url.Values{"text": {"olá"}})

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("health is never limited", func(t *testing.T) {
		limiter := &mockLimiter{}
		router := newTestRouter(t, &mockClassifier{}, limiter, nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		limiter.AssertNotCalled(t, "Admit", mock.Anything, mock.Anything)
	})
}

func TestUsage(t *testing.T) {
	ledger := &stubLedger{}
	router := newTestRouter(t, &mockClassifier{}, nil, ledger)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/usage?since=1h", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.WithinDuration(t, time.Now().Add(-time.Hour), ledger.since, 5*time.Second)
	assert.Contains(t, w.Body.String(), `"by_outcome":{"ok":2}`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/usage?since=ontem", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMiddleware(t *testing.T) {
	logger := zap.NewNop()

	t.Run("uses provided request ID", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, c.GetString(requestIDKey))
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Request-ID", "custom-request-id-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "custom-request-id-123", w.Body.String())
		assert.Equal(t, "custom-request-id-123", w.Header().Get("X-Request-ID"))
	})

	t.Run("recovers from panic", func(t *testing.T) {
		router := gin.New()
		router.Use(Logger(logger), Recovery(logger))
		router.GET("/test", func(c *gin.Context) {
			panic("test panic")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"detail":"internal server error"}`, w.Body.String())
	})

	t.Run("answers preflight", func(t *testing.T) {
		router := gin.New()
		router.Use(CORS([]string{"https://app.example.com"}))
		router.POST("/analyze", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
		req.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard origin", func(t *testing.T) {
		router := gin.New()
		router.Use(CORS([]string{"*"}))
		router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"empty input", core.ErrEmptyInput, http.StatusBadRequest},
		{"extraction", fmt.Errorf("%w: no text found in PDF", core.ErrExtractionFailure), http.StatusBadRequest},
		{"rate limit", &core.RateLimitError{RetryAfter: 3}, http.StatusTooManyRequests},
		{"credential", core.ErrCredentialMissing, http.StatusInternalServerError},
		{"upstream", &core.UpstreamError{Provider: "openai", Err: errors.New("dial tcp")}, http.StatusBadGateway},
		{"missing fields", &core.MissingFieldsError{Fields: []string{"confidence"}}, http.StatusBadGateway},
		{"invalid category", &core.InvalidCategoryError{Value: "Neutro"}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, MapError(tt.err).StatusCode)
		})
	}

	assert.Equal(t, "Não foi possível extrair texto do arquivo: no text found in PDF",
		MapError(fmt.Errorf("%w: no text found in PDF", core.ErrExtractionFailure)).Detail)
}
