package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/Durable/internal/engine"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// HTTP — шаг HTTP запроса к внешнему API.
//
// Входы:
//
//	Method     — метод (по умолчанию GET)
//	URL        — адрес, обязателен
//	Headers    — заголовки
//	Body       — тело: строка, []byte или значение для JSON
//	TimeoutSec — таймаут запроса
//
// Выходы: StatusCode, ResponseHeaders, ResponseBody (JSON или строка).
//
// Ответ 5xx возвращается как *HTTPError и обрабатывается политикой
// ошибок шага (по умолчанию повтор). 4xx считается результатом.
type HTTP struct {
	Method     string
	URL        string
	Headers    map[string]string
	Body       any
	TimeoutSec int

	StatusCode      int
	ResponseHeaders map[string]string
	ResponseBody    any

	client *http.Client
}

// NewHTTP создаёт HTTP шаг с клиентом по умолчанию.
func NewHTTP() *HTTP {
	return &HTTP{client: &http.Client{Timeout: defaultHTTPTimeout}}
}

// Run реализует engine.StepBody.
func (s *HTTP) Run(ctx context.Context, _ *engine.ExecutionContext) (*engine.ExecutionResult, error) {
	if s.URL == "" {
		return nil, fmt.Errorf("%w: %s: URL is required", ErrInvalidConfig, StepTypeHTTP)
	}

	req, err := s.buildRequest(ctx)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.httpClient().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := s.parseResponse(resp); err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return engine.OutcomeResult(resp.StatusCode), nil
}

func (s *HTTP) httpClient() *http.Client {
	client := s.client
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if s.TimeoutSec > 0 {
		c := *client
		c.Timeout = time.Duration(s.TimeoutSec) * time.Second
		client = &c
	}
	return client
}

// buildRequest создаёт HTTP запрос.
func (s *HTTP) buildRequest(ctx context.Context) (*http.Request, error) {
	method := strings.ToUpper(s.Method)
	if method == "" {
		method = http.MethodGet
	}

	headers := make(map[string]string, len(s.Headers)+1)
	for k, v := range s.Headers {
		headers[k] = v
	}

	var bodyReader io.Reader
	if s.Body != nil {
		bodyBytes, err := serializeBody(s.Body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)

		if _, ok := headers["Content-Type"]; !ok {
			headers["Content-Type"] = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.URL, bodyReader)
	if err != nil {
		return nil, err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

func serializeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// parseResponse заполняет выходы из ответа.
func (s *HTTP) parseResponse(resp *http.Response) error {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	var body any
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(bodyBytes, &body); err != nil {
			// не JSON — отдаём как строку
			body = string(bodyBytes)
		}
	} else {
		body = string(bodyBytes)
	}

	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	s.StatusCode = resp.StatusCode
	s.ResponseHeaders = headers
	s.ResponseBody = body
	return nil
}

// HTTPError — ответ сервера с ошибкой.
type HTTPError struct {
	StatusCode int
	Status     string
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}
