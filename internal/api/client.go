// Package api is the request/response client for the board persistence API.
// Every mutating call returns the server's full authoritative entity, never a
// bare success flag, so optimistic state can be replaced precisely.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gosuda/boardsync/internal/domain"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client for the given server. token is the session bearer
// token (a JWT); its expiry is checked locally before each request so an
// expired session fails fast instead of burning a round trip.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SetTimeout overrides the per-request timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.httpClient.Timeout = d
}

// checkToken inspects the token's exp claim without verifying the signature;
// the server still authenticates every request.
func (c *Client) checkToken() error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.token, claims); err != nil {
		// Opaque tokens are passed through untouched.
		return nil //nolint:nilerr
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Before(time.Now()) {
		return fmt.Errorf("api.Client: %w", domain.ErrTokenExpired)
	}

	return nil
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.checkToken(); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api.Client: marshal %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("api.Client: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api.Client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(resp, method, path)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api.Client: decode %s %s: %w", method, path, err)
	}

	return nil
}

func (c *Client) statusError(resp *http.Response, method, path string) error {
	msg := ""
	var ae apiError
	if err := json.NewDecoder(resp.Body).Decode(&ae); err == nil {
		msg = ae.Error
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case http.StatusConflict:
		sentinel = domain.ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		sentinel = domain.ErrValidation
	default:
		return fmt.Errorf("api.Client: %s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}

	if msg == "" {
		return fmt.Errorf("api.Client: %s %s: %w", method, path, sentinel)
	}
	return fmt.Errorf("api.Client: %s %s: %s: %w", method, path, msg, sentinel)
}

// FetchBoard retrieves the full authoritative board state.
func (c *Client) FetchBoard(ctx context.Context, boardID uuid.UUID) (*BoardState, error) {
	var out BoardState
	if err := c.do(ctx, http.MethodGet, "/api/boards/"+boardID.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateCard(ctx context.Context, boardID uuid.UUID, in CreateCardInput) (*domain.Card, error) {
	var out domain.Card
	if err := c.do(ctx, http.MethodPost, "/api/boards/"+boardID.String()+"/cards", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCard(ctx context.Context, cardID uuid.UUID, in CardUpdate) (*domain.Card, error) {
	var out domain.Card
	if err := c.do(ctx, http.MethodPatch, "/api/cards/"+cardID.String(), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MoveCard(ctx context.Context, cardID uuid.UUID, in MoveCardInput) (*domain.Card, error) {
	var out domain.Card
	if err := c.do(ctx, http.MethodPost, "/api/cards/"+cardID.String()+"/move", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ArchiveCard(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	var out domain.Card
	if err := c.do(ctx, http.MethodPost, "/api/cards/"+cardID.String()+"/archive", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RestoreCard(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	var out domain.Card
	if err := c.do(ctx, http.MethodPost, "/api/cards/"+cardID.String()+"/restore", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCard(ctx context.Context, cardID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/cards/"+cardID.String(), nil, nil)
}

func (c *Client) CreateColumn(ctx context.Context, boardID uuid.UUID, in CreateColumnInput) (*domain.Column, error) {
	var out domain.Column
	if err := c.do(ctx, http.MethodPost, "/api/boards/"+boardID.String()+"/columns", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateColumn(ctx context.Context, columnID uuid.UUID, in ColumnUpdate) (*domain.Column, error) {
	var out domain.Column
	if err := c.do(ctx, http.MethodPatch, "/api/columns/"+columnID.String(), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteColumn(ctx context.Context, columnID uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/columns/"+columnID.String(), nil, nil)
}

// ReorderColumns persists a full column order (archive column excluded) and
// returns the authoritative column list.
func (c *Client) ReorderColumns(ctx context.Context, boardID uuid.UUID, in ColumnOrderInput) ([]*domain.Column, error) {
	var out []*domain.Column
	if err := c.do(ctx, http.MethodPut, "/api/boards/"+boardID.String()+"/column-order", in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddLabel(ctx context.Context, cardID uuid.UUID, in LabelInput) (*domain.Card, error) {
	var out domain.Card
	if err := c.do(ctx, http.MethodPost, "/api/cards/"+cardID.String()+"/labels", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveLabel(ctx context.Context, cardID, labelID uuid.UUID) (*domain.Card, error) {
	var out domain.Card
	if err := c.do(ctx, http.MethodDelete, "/api/cards/"+cardID.String()+"/labels/"+labelID.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddAttachment(ctx context.Context, cardID uuid.UUID, in AttachmentInput) (*domain.Card, error) {
	var out domain.Card
	if err := c.do(ctx, http.MethodPost, "/api/cards/"+cardID.String()+"/attachments", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveAttachment(ctx context.Context, cardID, attachmentID uuid.UUID) (*domain.Card, error) {
	var out domain.Card
	if err := c.do(ctx, http.MethodDelete, "/api/cards/"+cardID.String()+"/attachments/"+attachmentID.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddChecklistItem(ctx context.Context, cardID uuid.UUID, in ChecklistItemInput) (*domain.Card, error) {
	var out domain.Card
	if err := c.do(ctx, http.MethodPost, "/api/cards/"+cardID.String()+"/checklist", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateChecklistItem(ctx context.Context, cardID, itemID uuid.UUID, in ChecklistItemInput) (*domain.Card, error) {
	var out domain.Card
	if err := c.do(ctx, http.MethodPatch, "/api/cards/"+cardID.String()+"/checklist/"+itemID.String(), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteChecklistItem(ctx context.Context, cardID, itemID uuid.UUID) (*domain.Card, error) {
	var out domain.Card
	if err := c.do(ctx, http.MethodDelete, "/api/cards/"+cardID.String()+"/checklist/"+itemID.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ReorderChecklist(ctx context.Context, cardID uuid.UUID, in ChecklistOrderInput) (*domain.Card, error) {
	var out domain.Card
	if err := c.do(ctx, http.MethodPut, "/api/cards/"+cardID.String()+"/checklist-order", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddComment(ctx context.Context, cardID uuid.UUID, in CommentInput) (*domain.Card, error) {
	var out domain.Card
	if err := c.do(ctx, http.MethodPost, "/api/cards/"+cardID.String()+"/comments", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetEstimate(ctx context.Context, cardID uuid.UUID, in EstimateInput) (*domain.Card, error) {
	var out domain.Card
	if err := c.do(ctx, http.MethodPut, "/api/cards/"+cardID.String()+"/estimate", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddTimeEntry logs manual time; the returned card carries the recomputed
// total.
func (c *Client) AddTimeEntry(ctx context.Context, cardID uuid.UUID, in TimeEntryInput) (*domain.Card, error) {
	var out domain.Card
	if err := c.do(ctx, http.MethodPost, "/api/cards/"+cardID.String()+"/time-entries", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTimeEntry(ctx context.Context, entryID uuid.UUID) (*domain.Card, error) {
	var out domain.Card
	if err := c.do(ctx, http.MethodDelete, "/api/time-entries/"+entryID.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StartTimer(ctx context.Context, cardID uuid.UUID) (*TimerState, error) {
	var out TimerState
	if err := c.do(ctx, http.MethodPost, "/api/cards/"+cardID.String()+"/timer/start", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StopTimer stops the session user's running timer and returns the card the
// produced time entry was logged against.
func (c *Client) StopTimer(ctx context.Context) (*domain.Card, error) {
	var out domain.Card
	if err := c.do(ctx, http.MethodPost, "/api/timer/stop", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
