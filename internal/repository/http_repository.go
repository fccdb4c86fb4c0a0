package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rongwang/fabricstock/internal/models"
)

const (
	defaultHTTPTimeout = 15 * time.Second
	// maxPages stops a misbehaving API from paging forever
	maxPages = 500
)

// HTTPConfig describes how to reach the remote inventory API
type HTTPConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// APIError is returned when the inventory API answers with a non-2xx status
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("inventory api: %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("inventory api: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// HTTPRepository implements the Repository interface against the remote
// inventory REST API
type HTTPRepository struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPRepository builds an HTTPRepository
func NewHTTPRepository(cfg HTTPConfig) (*HTTPRepository, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("inventory api: base url must not be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("inventory api: invalid base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &HTTPRepository{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      strings.TrimSpace(cfg.Token),
		httpClient: httpClient,
	}, nil
}

type pageMeta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
}

type listEnvelope struct {
	Data []models.Reference `json:"data"`
	Meta pageMeta           `json:"meta"`
}

type transactionEnvelope struct {
	Data models.Transaction `json:"data"`
}

type detailsEnvelope struct {
	Data []models.TransactionDetail `json:"data"`
}

type errorEnvelope struct {
	Message string `json:"message"`
}

// ListReference walks every page of a reference collection
func (r *HTTPRepository) ListReference(ctx context.Context, kind models.ReferenceKind) ([]models.Reference, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	refs := []models.Reference{}
	for page := 1; page <= maxPages; page++ {
		var env listEnvelope
		path := "/" + string(kind) + "?page=" + strconv.Itoa(page)
		if err := r.do(ctx, http.MethodGet, path, nil, &env); err != nil {
			return nil, err
		}
		refs = append(refs, env.Data...)
		if env.Meta.LastPage <= page || len(env.Data) == 0 {
			break
		}
	}

	return refs, nil
}

func (r *HTTPRepository) GetTransaction(ctx context.Context, kind models.TransactionKind, id int64) (*models.Transaction, error) {
	path, err := transactionPath(kind, id)
	if err != nil {
		return nil, err
	}

	var env transactionEnvelope
	if err := r.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil // Transaction not found
		}
		return nil, err
	}

	txn := env.Data
	txn.Kind = kind
	if txn.Details == nil {
		txn.Details = []models.TransactionDetail{}
	}
	return &txn, nil
}

func (r *HTTPRepository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	path, err := transactionPath(txn.Kind, 0)
	if err != nil {
		return err
	}

	var env transactionEnvelope
	if err := r.do(ctx, http.MethodPost, path, txn, &env); err != nil {
		return err
	}
	txn.ID = env.Data.ID
	return nil
}

func (r *HTTPRepository) UpdateTransaction(ctx context.Context, txn *models.Transaction) error {
	path, err := transactionPath(txn.Kind, txn.ID)
	if err != nil {
		return err
	}
	return r.do(ctx, http.MethodPut, path, txn, nil)
}

func (r *HTTPRepository) GetAvailableStock(ctx context.Context, receiptID int64) ([]models.TransactionDetail, error) {
	var env detailsEnvelope
	path := "/receipts/" + strconv.FormatInt(receiptID, 10) + "/stock"
	if err := r.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		env.Data = []models.TransactionDetail{}
	}
	return env.Data, nil
}

func transactionPath(kind models.TransactionKind, id int64) (string, error) {
	var collection string
	switch kind {
	case models.KindReceipt:
		collection = "/receipts"
	case models.KindDelivery:
		collection = "/deliveries"
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if id == 0 {
		return collection, nil
	}
	return collection + "/" + strconv.FormatInt(id, 10), nil
}

func (r *HTTPRepository) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("inventory api: encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("inventory api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("inventory api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Method: method, Path: path}
		var env errorEnvelope
		if raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); readErr == nil {
			if json.Unmarshal(raw, &env) == nil {
				apiErr.Message = env.Message
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("inventory api: decode %s %s: %w", method, path, err)
	}
	return nil
}
