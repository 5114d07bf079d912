package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"cash-interchange-service/internal/models"
	"cash-interchange-service/pkg/errors"
	"cash-interchange-service/pkg/logger"
)

// APIConfig configures the remote ledger gateway
type APIConfig struct {
	BaseURL  string
	Email    string
	Password string
	Timeout  time.Duration
}

// Validate checks the remote gateway configuration
func (c *APIConfig) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if c.Email == "" || c.Password == "" {
		return fmt.Errorf("credentials cannot be empty")
	}
	return nil
}

// APIGateway forwards pairs to the ledger's upload endpoint. The session
// cookie is obtained on first use; an expired session is renewed at most
// once per insert.
type APIGateway struct {
	cfg    APIConfig
	client *http.Client
	logger logger.Logger

	mu            sync.Mutex
	authenticated bool
}

// NewAPIGateway creates a remote ledger gateway
func NewAPIGateway(cfg APIConfig, log logger.Logger) (*APIGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "ledger_api", cfg.BaseURL, err)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "cookie jar", err)
	}

	return &APIGateway{
		cfg:    cfg,
		client: &http.Client{Jar: jar, Timeout: cfg.Timeout},
		logger: log.WithComponent("ledger_api"),
	}, nil
}

// uploadPayload is the wire shape the upload endpoint accepts
type uploadPayload struct {
	Service     *models.ServiceRecord     `json:"service"`
	Transaction *models.TransactionRecord `json:"transaction"`
}

// uploadResponse is the endpoint's per-pair answer
type uploadResponse struct {
	Status   string `json:"status"` // "inserted" or "duplicate"
	OrderRef string `json:"orderReference"`
	Message  string `json:"message"`
}

// Insert forwards one pair. A 401 triggers exactly one re-authentication
// and one retry; a second 401 surfaces as an expired-auth error.
func (g *APIGateway) Insert(ctx context.Context, service *models.ServiceRecord, transaction *models.TransactionRecord) (Result, error) {
	if err := checkPair(service, transaction); err != nil {
		return Result{}, err
	}

	if err := g.ensureSession(ctx); err != nil {
		return Result{}, err
	}

	result, status, err := g.upload(ctx, service, transaction)
	if err != nil {
		return Result{}, err
	}

	if status == http.StatusUnauthorized {
		g.logger.Warn("Session expired, re-authenticating")
		g.invalidateSession()
		if err := g.ensureSession(ctx); err != nil {
			return Result{}, err
		}

		result, status, err = g.upload(ctx, service, transaction)
		if err != nil {
			return Result{}, err
		}
		if status == http.StatusUnauthorized {
			return Result{}, errors.NetworkError(errors.CodeAuthExpired, g.cfg.BaseURL, nil).
				WithContext("order_id", service.OrderID)
		}
	}

	return result, nil
}

// upload posts the pair once and interprets the response
func (g *APIGateway) upload(ctx context.Context, service *models.ServiceRecord, transaction *models.TransactionRecord) (Result, int, error) {
	body, err := json.Marshal(uploadPayload{Service: service, Transaction: transaction})
	if err != nil {
		return Result{}, 0, errors.InternalError(errors.CodeUnexpectedError, "payload encoding", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.BaseURL+"/api/interchange/upload-service", bytes.NewReader(body))
	if err != nil {
		return Result{}, 0, errors.InternalError(errors.CodeUnexpectedError, "request build", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{}, 0, errors.NetworkError(errors.CodeConnectionFailed, g.cfg.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return Result{}, resp.StatusCode, nil
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, resp.StatusCode, errors.LedgerError(errors.CodeWriteFailed, service.OrderID,
			fmt.Errorf("upload endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, resp.StatusCode, errors.LedgerError(errors.CodeWriteFailed, service.OrderID, err)
	}

	switch parsed.Status {
	case "duplicate":
		return Result{Outcome: AlreadyExists}, resp.StatusCode, nil
	case "inserted":
		if parsed.OrderRef == "" {
			return Result{}, resp.StatusCode, errors.LedgerError(errors.CodeNoOrderRef, service.OrderID, nil)
		}
		return Result{Outcome: Inserted, OrderRef: parsed.OrderRef}, resp.StatusCode, nil
	default:
		return Result{}, resp.StatusCode, errors.LedgerError(errors.CodeWriteFailed, service.OrderID,
			fmt.Errorf("upload endpoint reported %q: %s", parsed.Status, parsed.Message))
	}
}

// ensureSession logs in when no session is held
func (g *APIGateway) ensureSession(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.authenticated {
		return nil
	}

	form := url.Values{}
	form.Set("Email", g.cfg.Email)
	form.Set("Password", g.cfg.Password)
	form.Set("RememberMe", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.BaseURL+"/Account/Login", strings.NewReader(form.Encode()))
	if err != nil {
		return errors.InternalError(errors.CodeUnexpectedError, "login request build", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return errors.NetworkError(errors.CodeConnectionFailed, g.cfg.BaseURL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusFound {
		return errors.NetworkError(errors.CodeAuthExpired, g.cfg.BaseURL,
			fmt.Errorf("login returned %d", resp.StatusCode))
	}

	g.authenticated = true
	g.logger.Info("Ledger session established")
	return nil
}

func (g *APIGateway) invalidateSession() {
	g.mu.Lock()
	g.authenticated = false
	g.mu.Unlock()
}
