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

	"github.com/google/uuid"

	"github.com/syt-tools/syt/internal/entity"
	"github.com/syt-tools/syt/internal/logging"
)

// HTTPError is a non-success response that maps to no sentinel.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
	Path       string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d on %s: %s", e.StatusCode, e.Path, e.Message)
	}
	return fmt.Sprintf("http %d on %s", e.StatusCode, e.Path)
}

// Retryable reports whether the status is worth retrying later.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// HTTPClient is a Repository backed by a REST endpoint.
type HTTPClient struct {
	baseURL    string
	username   string
	password   string
	token      string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *logging.Logger
}

// NewHTTPClient creates a client for the repository rooted at baseURL.
func NewHTTPClient(baseURL string, opts Options) *HTTPClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		username:   opts.Username,
		password:   opts.Password,
		token:      strings.TrimSpace(opts.Token),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		baseDelay:  200 * time.Millisecond,
		maxDelay:   5 * time.Second,
		logger:     opts.logger(),
	}
}

type entityDTO struct {
	ID          string              `json:"id"`
	ParentID    string              `json:"parentId,omitempty"`
	Type        string              `json:"type"`
	Name        string              `json:"name"`
	Etag        string              `json:"etag"`
	Annotations map[string][]string `json:"annotations,omitempty"`
}

func (d entityDTO) toEntity() *entity.Entity {
	return &entity.Entity{
		ID:          d.ID,
		ParentID:    d.ParentID,
		Kind:        entity.ParseKind(d.Type),
		Type:        d.Type,
		Name:        d.Name,
		Version:     d.Etag,
		Annotations: entity.Annotations(d.Annotations),
	}
}

func entityToDTO(e *entity.Entity) entityDTO {
	typ := e.Type
	if typ == "" {
		typ = e.Kind.String()
	}
	return entityDTO{
		ID:          e.ID,
		ParentID:    e.ParentID,
		Type:        typ,
		Name:        e.Name,
		Etag:        e.Version,
		Annotations: e.Annotations,
	}
}

type childDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type columnDTO struct {
	Name      string `json:"name"`
	Type      string `json:"columnType"`
	MaxLength int    `json:"maximumSize,omitempty"`
}

type viewDTO struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	ProjectID string      `json:"parentId"`
	Scope     []string    `json:"scopeIds,omitempty"`
	Types     []string    `json:"viewTypes,omitempty"`
	Columns   []columnDTO `json:"columns"`
}

func (d viewDTO) toHandle() entity.ViewHandle {
	h := entity.ViewHandle{ID: d.ID, Name: d.Name, ProjectID: d.ProjectID}
	for _, c := range d.Columns {
		h.Columns = append(h.Columns, entity.Column{Name: c.Name, Type: entity.ColumnType(c.Type), MaxLength: c.MaxLength})
	}
	return h
}

type rowDTO struct {
	ID         string `json:"id"`
	ParentID   string `json:"parentId"`
	ProjectID  string `json:"projectId"`
	Type       string `json:"type"`
	Name       string `json:"name"`
	LockerID   string `json:"_syt_by_id,omitempty"`
	LockerName string `json:"_syt_by_name,omitempty"`
	LockedAt   string `json:"_syt_date,omitempty"`
}

type aclDTO struct {
	ID      string `json:"id"`
	Entries []struct {
		PrincipalID string   `json:"principalId"`
		AccessType  []string `json:"accessType"`
	} `json:"resourceAccess"`
}

type userDTO struct {
	OwnerID  string `json:"ownerId"`
	UserName string `json:"userName"`
}

type memberDTO struct {
	TeamID string  `json:"teamId"`
	Member userDTO `json:"member"`
}

type contentDTO struct {
	ID       string `json:"id,omitempty"`
	ParentID string `json:"parentId,omitempty"`
	Name     string `json:"name,omitempty"`
	Content  []byte `json:"content"`
}

// GetEntity implements Repository.
func (c *HTTPClient) GetEntity(ctx context.Context, id string) (*entity.Entity, error) {
	var out entityDTO
	if err := c.doJSON(ctx, http.MethodGet, "/entity/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.toEntity(), nil
}

// Store implements Repository.
func (c *HTTPClient) Store(ctx context.Context, e *entity.Entity) (*entity.Entity, error) {
	headers := map[string]string{"If-Match": e.Version}
	var out entityDTO
	if err := c.doJSON(ctx, http.MethodPut, "/entity/"+url.PathEscape(e.ID), headers, entityToDTO(e), &out); err != nil {
		return nil, err
	}
	return out.toEntity(), nil
}

// ListChildren implements Repository.
func (c *HTTPClient) ListChildren(ctx context.Context, parentID string, kinds ...entity.Kind) ([]entity.ChildSummary, error) {
	q := url.Values{}
	for _, k := range kinds {
		q.Add("type", k.String())
	}
	path := "/entity/" + url.PathEscape(parentID) + "/children"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Page []childDTO `json:"page"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	children := make([]entity.ChildSummary, 0, len(out.Page))
	for _, ch := range out.Page {
		children = append(children, entity.ChildSummary{ID: ch.ID, Name: ch.Name, Kind: entity.ParseKind(ch.Type)})
	}
	return children, nil
}

// GetView implements Repository.
func (c *HTTPClient) GetView(ctx context.Context, projectID, name string) (entity.ViewHandle, error) {
	q := url.Values{}
	q.Set("name", name)
	var out viewDTO
	path := "/entity/" + url.PathEscape(projectID) + "/view?" + q.Encode()
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return entity.ViewHandle{}, err
	}
	return out.toHandle(), nil
}

// CreateView implements Repository.
func (c *HTTPClient) CreateView(ctx context.Context, spec entity.ViewSpec) (entity.ViewHandle, error) {
	body := viewDTO{Name: spec.Name, ProjectID: spec.ProjectID, Scope: spec.Scope}
	for _, k := range spec.Kinds {
		body.Types = append(body.Types, k.String())
	}
	for _, col := range spec.Columns {
		body.Columns = append(body.Columns, columnDTO{Name: col.Name, Type: string(col.Type), MaxLength: col.MaxLength})
	}
	var out viewDTO
	if err := c.doJSON(ctx, http.MethodPost, "/view", nil, body, &out); err != nil {
		return entity.ViewHandle{}, err
	}
	return out.toHandle(), nil
}

// QueryView implements Repository.
func (c *HTTPClient) QueryView(ctx context.Context, viewID string, q entity.ViewQuery) ([]entity.Row, error) {
	body := struct {
		ParentID   string `json:"parentId,omitempty"`
		LockedOnly bool   `json:"lockedOnly,omitempty"`
	}{q.ParentID, q.LockedOnly}
	var out struct {
		Rows []rowDTO `json:"rows"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/view/"+url.PathEscape(viewID)+"/query", nil, body, &out); err != nil {
		return nil, err
	}
	rows := make([]entity.Row, 0, len(out.Rows))
	for _, r := range out.Rows {
		rows = append(rows, entity.Row{
			ID: r.ID, ParentID: r.ParentID, ProjectID: r.ProjectID, Kind: entity.ParseKind(r.Type), Name: r.Name,
			LockerID: r.LockerID, LockerName: r.LockerName, LockedAt: r.LockedAt,
		})
	}
	return rows, nil
}

// GetACL implements Repository.
func (c *HTTPClient) GetACL(ctx context.Context, entityID string) (entity.ACL, error) {
	var out aclDTO
	if err := c.doJSON(ctx, http.MethodGet, "/entity/"+url.PathEscape(entityID)+"/acl", nil, nil, &out); err != nil {
		return entity.ACL{}, err
	}
	acl := entity.ACL{EntityID: out.ID}
	for _, e := range out.Entries {
		entry := entity.ACLEntry{PrincipalID: e.PrincipalID}
		for _, a := range e.AccessType {
			entry.AccessTypes = append(entry.AccessTypes, entity.Permission(a))
		}
		acl.Entries = append(acl.Entries, entry)
	}
	return acl, nil
}

// GetPermissions implements Repository.
func (c *HTTPClient) GetPermissions(ctx context.Context, entityID string) ([]entity.Permission, error) {
	var out struct {
		Access []string `json:"access"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/entity/"+url.PathEscape(entityID)+"/permissions", nil, nil, &out); err != nil {
		return nil, err
	}
	perms := make([]entity.Permission, 0, len(out.Access))
	for _, a := range out.Access {
		perms = append(perms, entity.Permission(a))
	}
	return perms, nil
}

// GetUser implements Repository.
func (c *HTTPClient) GetUser(ctx context.Context, principalID string) (entity.UserProfile, error) {
	var out userDTO
	if err := c.doJSON(ctx, http.MethodGet, "/userProfile/"+url.PathEscape(principalID), nil, nil, &out); err != nil {
		return entity.UserProfile{}, err
	}
	return entity.UserProfile{OwnerID: out.OwnerID, UserName: out.UserName}, nil
}

// GetTeamMembers implements Repository.
func (c *HTTPClient) GetTeamMembers(ctx context.Context, teamID string) ([]entity.TeamMember, error) {
	var out struct {
		Results []memberDTO `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/teamMembers/"+url.PathEscape(teamID), nil, nil, &out); err != nil {
		return nil, err
	}
	members := make([]entity.TeamMember, 0, len(out.Results))
	for _, m := range out.Results {
		members = append(members, entity.TeamMember{TeamID: teamID, OwnerID: m.Member.OwnerID, UserName: m.Member.UserName})
	}
	return members, nil
}

// CurrentUser implements Repository.
func (c *HTTPClient) CurrentUser(ctx context.Context) (entity.UserProfile, error) {
	var out userDTO
	if err := c.doJSON(ctx, http.MethodGet, "/userProfile", nil, nil, &out); err != nil {
		return entity.UserProfile{}, err
	}
	return entity.UserProfile{OwnerID: out.OwnerID, UserName: out.UserName}, nil
}

// Download implements Repository.
func (c *HTTPClient) Download(ctx context.Context, fileID string) ([]byte, error) {
	var out contentDTO
	if err := c.doJSON(ctx, http.MethodGet, "/entity/"+url.PathEscape(fileID)+"/content", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Content, nil
}

// Upload implements Repository.
func (c *HTTPClient) Upload(ctx context.Context, req UploadRequest) (*entity.Entity, error) {
	body := contentDTO{ID: req.ID, ParentID: req.ParentID, Name: req.Name, Content: req.Content}
	var out entityDTO
	method, path := http.MethodPost, "/file"
	if req.ID != "" {
		method, path = http.MethodPut, "/entity/"+url.PathEscape(req.ID)+"/content"
	}
	if err := c.doJSON(ctx, method, path, nil, body, &out); err != nil {
		return nil, err
	}
	return out.toEntity(), nil
}

// Close implements Repository.
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) doJSON(
	ctx context.Context,
	method, requestPath string,
	headers map[string]string,
	body any,
	out any,
) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
		if err != nil {
			return err
		}
		c.authorize(req)
		correlationID := uuid.NewString()
		req.Header.Set("X-Correlation-Id", correlationID)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		c.logger.Debug("repository request", "method", method, "path", requestPath, "attempt", attempt, "correlation_id", correlationID)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() == nil && attempt < c.maxRetries {
				c.logger.Warn("repository request failed, retrying", "path", requestPath, "error", err.Error())
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(payload) == 0 {
				return nil
			}
			return json.Unmarshal(payload, out)
		}

		if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < c.maxRetries {
			c.logger.Warn("repository busy, retrying", "path", requestPath, "status", resp.StatusCode)
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		return statusError(resp.StatusCode, requestPath, payload)
	}
}

func (c *HTTPClient) authorize(req *http.Request) {
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	}
}

func statusError(status int, path string, payload []byte) error {
	var errPayload struct {
		Code    string `json:"code"`
		Message string `json:"reason"`
	}
	_ = json.Unmarshal(payload, &errPayload)
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case http.StatusConflict, http.StatusPreconditionFailed:
		return fmt.Errorf("%w: %s", ErrVersionConflict, path)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthenticated, path)
	}
	return &HTTPError{StatusCode: status, Code: errPayload.Code, Message: errPayload.Message, Path: path}
}

// IsRetryable reports whether err is a transient HTTP failure.
func IsRetryable(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Retryable()
}

func (c *HTTPClient) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	maxDelay := c.maxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		return min(retryAfter, maxDelay)
	}
	delay := c.baseDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return min(delay, maxDelay)
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := http.ParseTime(header); err == nil {
		if delta := time.Until(ts); delta > 0 {
			return delta
		}
	}
	return 0
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Repository = (*HTTPClient)(nil)
