package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/consentry/consentry/internal/registry"
)

// Client talks to the consent registry service over HTTP. It implements
// registry.RemoteService plus the read-side resources the gateway
// proxies (patients, records, stats, transactions).
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "registry-client").Logger(),
	}
}

// FetchConsents lists consent records matching the scope. Scope fields
// map to query parameters; empty fields are omitted.
func (c *Client) FetchConsents(ctx context.Context, scope registry.Scope) ([]registry.ConsentRecord, error) {
	query := url.Values{}
	if scope.SubjectID != "" {
		query.Set("patientId", scope.SubjectID)
	}
	if scope.Status != nil {
		query.Set("status", string(*scope.Status))
	}

	body, err := c.do(ctx, "consents.list", http.MethodGet, "/consents", query, nil)
	if err != nil {
		return nil, err
	}
	return normalizeConsentList(body), nil
}

// CreateConsent submits a new consent record and returns the persisted
// version with its server-assigned id.
func (c *Client) CreateConsent(ctx context.Context, draft registry.ConsentRecord) (*registry.ConsentRecord, error) {
	body, err := c.do(ctx, "consents.create", http.MethodPost, "/consents", nil, draft)
	if err != nil {
		return nil, err
	}
	var created registry.ConsentRecord
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, &registry.TransportError{Op: "consents.create", Err: fmt.Errorf("decode response: %w", err)}
	}
	return &created, nil
}

// UpdateConsentStatus patches a record's status. The registry enforces
// its own transition rules; a rejection surfaces as
// registry.ErrTransitionRejected.
func (c *Client) UpdateConsentStatus(ctx context.Context, id string, status registry.Status) (*registry.ConsentRecord, error) {
	payload := map[string]string{"status": string(status)}
	body, err := c.do(ctx, "consents.update", http.MethodPatch, "/consents/"+url.PathEscape(id), nil, payload)
	if err != nil {
		return nil, err
	}
	var updated registry.ConsentRecord
	if err := json.Unmarshal(body, &updated); err != nil {
		return nil, &registry.TransportError{Op: "consents.update", Err: fmt.Errorf("decode response: %w", err)}
	}
	return &updated, nil
}

// Patients lists registered patients, paged with page/limit semantics
// and an optional search term. The registry returns either
// {"patients": [...], "pagination": {...}} or a bare array; pagination
// is nil in the latter case.
func (c *Client) Patients(ctx context.Context, page, limit int, search string) ([]Patient, *PageInfo, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if search != "" {
		query.Set("search", search)
	}

	body, err := c.do(ctx, "patients.list", http.MethodGet, "/patients", query, nil)
	if err != nil {
		return nil, nil, err
	}

	var wrapped struct {
		Patients   []Patient `json:"patients"`
		Pagination *PageInfo `json:"pagination"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Patients != nil {
		return wrapped.Patients, wrapped.Pagination, nil
	}
	return normalizeList[Patient](body, "patients"), nil, nil
}

func (c *Client) Patient(ctx context.Context, id string) (*Patient, error) {
	var out Patient
	if err := c.getJSON(ctx, "patients.get", "/patients/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PatientRecords(ctx context.Context, id string) ([]MedicalRecord, error) {
	body, err := c.do(ctx, "patients.records", http.MethodGet, "/patients/"+url.PathEscape(id)+"/records", nil, nil)
	if err != nil {
		return nil, err
	}
	return normalizeList[MedicalRecord](body, "records"), nil
}

func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.getJSON(ctx, "stats.get", "/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transactions lists chain transactions, optionally filtered to one
// wallet address.
func (c *Client) Transactions(ctx context.Context, wallet string) ([]Transaction, error) {
	query := url.Values{}
	if wallet != "" {
		query.Set("wallet", wallet)
	}
	body, err := c.do(ctx, "transactions.list", http.MethodGet, "/transactions", query, nil)
	if err != nil {
		return nil, err
	}
	return normalizeList[Transaction](body, "transactions"), nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	body, err := c.do(ctx, op, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &registry.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// do performs one request and maps failures onto the registry error
// taxonomy: network faults become TransportError, 404 becomes
// ErrNotFound, 409/422 become ErrTransitionRejected, and any other
// non-2xx status is a TransportError carrying the status code.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload any) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, &registry.TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, &registry.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &registry.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &registry.TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s %s", registry.ErrNotFound, method, path)
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", registry.ErrTransitionRejected, strings.TrimSpace(string(body)))
	default:
		c.log.Warn().Int("status", resp.StatusCode).Str("op", op).Msg("registry request failed")
		return nil, &registry.TransportError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
}
