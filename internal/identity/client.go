// Package identity предоставляет клиент для внешнего провайдера учётных записей.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// ErrUserExists возвращается при попытке зарегистрировать занятый адрес.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials возвращается при неверном адресе или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AuthError описывает ошибку провайдера учётных записей с его сообщением.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("identity provider: %s (status %d)", e.Message, e.StatusCode)
}

// Client инкапсулирует HTTP-взаимодействие с провайдером учётных записей.
// Временные сбои сети повторяются на уровне транспорта.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// NewClient создаёт HTTP-клиент для обращения к провайдеру по указанному адресу.
func NewClient(baseURL string) *Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.Logger = nil
	c.HTTPClient.Timeout = 5 * time.Second

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: c,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID uuid.UUID `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// SignUp регистрирует пользователя у провайдера и возвращает его идентификатор.
func (c *Client) SignUp(ctx context.Context, email, password string) (uuid.UUID, error) {
	return c.postCredentials(ctx, "/signup", email, password)
}

// SignIn проверяет учётные данные и возвращает идентификатор пользователя.
func (c *Client) SignIn(ctx context.Context, email, password string) (uuid.UUID, error) {
	return c.postCredentials(ctx, "/signin", email, password)
}

func (c *Client) postCredentials(ctx context.Context, path, email, password string) (uuid.UUID, error) {
	if c == nil || c.baseURL == "" {
		return uuid.Nil, fmt.Errorf("identity client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(credentialsRequest{Email: email, Password: password})
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, base+"/api/auth"+path, bytes.NewReader(body))
	if err != nil {
		return uuid.Nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return uuid.Nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var result userResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return uuid.Nil, fmt.Errorf("decode response: %w", err)
		}
		if result.ID == uuid.Nil {
			return uuid.Nil, fmt.Errorf("identity provider returned empty user id")
		}
		return result.ID, nil
	case http.StatusConflict:
		return uuid.Nil, ErrUserExists
	case http.StatusUnauthorized:
		return uuid.Nil, ErrInvalidCredentials
	default:
		var er errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		if er.Error == "" {
			er.Error = http.StatusText(resp.StatusCode)
		}
		return uuid.Nil, &AuthError{StatusCode: resp.StatusCode, Message: er.Error}
	}
}
