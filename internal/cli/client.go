package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// DefinitionResponse — определение workflow из API.
type DefinitionResponse struct {
	ID          string `json:"id"`
	Version     int    `json:"version"`
	TenantID    string `json:"tenant_id,omitempty"`
	Description string `json:"description,omitempty"`
	Steps       int    `json:"steps"`
}

// InstanceResponse — экземпляр из API.
type InstanceResponse struct {
	ID            string            `json:"id"`
	DefinitionID  string            `json:"definition_id"`
	Version       int               `json:"version"`
	TenantID      string            `json:"tenant_id,omitempty"`
	Description   string            `json:"description,omitempty"`
	Reference     string            `json:"reference,omitempty"`
	UserID        string            `json:"user_id,omitempty"`
	Status        string            `json:"status"`
	Data          any               `json:"data,omitempty"`
	NextExecution string            `json:"next_execution,omitempty"`
	CreateTime    string            `json:"create_time"`
	CompleteTime  string            `json:"complete_time,omitempty"`
	Pointers      []PointerResponse `json:"pointers,omitempty"`
}

// PointerResponse — указатель выполнения из API.
type PointerResponse struct {
	ID         string `json:"id"`
	StepID     int    `json:"step_id"`
	StepName   string `json:"step_name,omitempty"`
	Status     string `json:"status"`
	Active     bool   `json:"active"`
	StartTime  string `json:"start_time,omitempty"`
	EndTime    string `json:"end_time,omitempty"`
	SleepUntil string `json:"sleep_until,omitempty"`
	RetryCount int    `json:"retry_count,omitempty"`
	EventName  string `json:"event_name,omitempty"`
	EventKey   string `json:"event_key,omitempty"`
	Children   int    `json:"children,omitempty"`
}

// TransitionResponse — результат suspend/resume/terminate.
type TransitionResponse struct {
	ID        string `json:"id"`
	Operation string `json:"operation"`
	Changed   bool   `json:"changed"`
}

// ExecutionErrorResponse — запись журнала ошибок.
type ExecutionErrorResponse struct {
	PointerID string `json:"pointer_id"`
	Time      string `json:"time"`
	Message   string `json:"message"`
}

type idResponse struct {
	ID string `json:"id"`
}

// --- Request types ---

// StartInstanceRequest — запуск экземпляра.
type StartInstanceRequest struct {
	Version   int            `json:"version,omitempty"`
	TenantID  string         `json:"tenant_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Reference string         `json:"reference,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
}

// PublishEventRequest — публикация события.
type PublishEventRequest struct {
	Name          string     `json:"name"`
	Key           string     `json:"key"`
	Data          any        `json:"data,omitempty"`
	EffectiveTime *time.Time `json:"effective_time,omitempty"`
}

// ListInstancesOpts — параметры фильтрации экземпляров.
type ListInstancesOpts struct {
	Status       string
	DefinitionID string
	TenantID     string
	UserID       string
	Skip         int
	Take         int
}

func (o ListInstancesOpts) query() url.Values {
	q := url.Values{}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("status", o.Status)
	set("definition_id", o.DefinitionID)
	set("tenant_id", o.TenantID)
	set("user_id", o.UserID)
	if o.Skip > 0 {
		q.Set("skip", strconv.Itoa(o.Skip))
	}
	if o.Take > 0 {
		q.Set("take", strconv.Itoa(o.Take))
	}
	return q
}

// envelope — общий вид ответа API: {"data": ...} или {"error": {...}}.
// Поле total у списков клиенту не нужно.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

// APIError — ошибка, которую вернул сервер.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.Status)
	}
	return e.Code + ": " + e.Message
}

// --- Client ---

// Client — HTTP-клиент для Durable API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Definitions ---

// ListDefinitions возвращает зарегистрированные определения.
func (c *Client) ListDefinitions(ctx context.Context) ([]DefinitionResponse, error) {
	var defs []DefinitionResponse
	err := c.call(ctx, http.MethodGet, "/api/v1/definitions", nil, nil, &defs)
	return defs, err
}

// --- Instances ---

// StartInstance запускает экземпляр определения и возвращает его ID.
func (c *Client) StartInstance(ctx context.Context, definitionID string, req StartInstanceRequest) (string, error) {
	var resp idResponse
	err := c.call(ctx, http.MethodPost, "/api/v1/workflows/"+url.PathEscape(definitionID)+"/instances", nil, req, &resp)
	return resp.ID, err
}

// GetInstance возвращает экземпляр по ID.
func (c *Client) GetInstance(ctx context.Context, id string) (*InstanceResponse, error) {
	var inst InstanceResponse
	err := c.call(ctx, http.MethodGet, "/api/v1/instances/"+url.PathEscape(id), nil, nil, &inst)
	return &inst, err
}

// ListInstances возвращает экземпляры с фильтрацией.
func (c *Client) ListInstances(ctx context.Context, opts ListInstancesOpts) ([]InstanceResponse, error) {
	var instances []InstanceResponse
	err := c.call(ctx, http.MethodGet, "/api/v1/instances", opts.query(), nil, &instances)
	return instances, err
}

// ListErrors возвращает журнал ошибок экземпляра.
func (c *Client) ListErrors(ctx context.Context, id string) ([]ExecutionErrorResponse, error) {
	var errs []ExecutionErrorResponse
	err := c.call(ctx, http.MethodGet, "/api/v1/instances/"+url.PathEscape(id)+"/errors", nil, nil, &errs)
	return errs, err
}

// Transition выполняет suspend, resume или terminate.
func (c *Client) Transition(ctx context.Context, id, operation string) (*TransitionResponse, error) {
	var resp TransitionResponse
	err := c.call(ctx, http.MethodPost, "/api/v1/instances/"+url.PathEscape(id)+"/"+operation, nil, nil, &resp)
	return &resp, err
}

// --- Events ---

// PublishEvent публикует событие и возвращает его ID.
func (c *Client) PublishEvent(ctx context.Context, req PublishEventRequest) (string, error) {
	var resp idResponse
	err := c.call(ctx, http.MethodPost, "/api/v1/events", nil, req, &resp)
	return resp.ID, err
}

// --- HTTP ---

// call выполняет запрос и раскладывает поле data ответа в result.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, result any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= http.StatusBadRequest {
		if decodeErr != nil || env.Error == nil {
			return &APIError{Status: resp.StatusCode}
		}
		env.Error.Status = resp.StatusCode
		return env.Error
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if result == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, result)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
