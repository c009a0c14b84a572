// Package neptune talks to the exchange service holding the federation's
// providers, projects, data users and sessions.
package neptune

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gutsdata/explorer_backend/config"
	"github.com/gutsdata/explorer_backend/models"
)

const (
	endpointProviders = "providers"
	endpointProjects  = "projects"
	endpointDataUsers = "data_users"
	endpointMe        = "users/me"
	endpointSession   = "session"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("neptune %s: unsuccessful request: response code %d", e.Endpoint, e.StatusCode)
}

type Client struct {
	baseURL      string
	username     string
	password     string
	userEndpoint string
	http         *http.Client
}

type Options struct {
	BaseURL  string
	Username string
	Password string
	// CertPath points to a PEM bundle trusted in addition to the system roots.
	CertPath string
	// UserEndpoint is the collaboration user-management path, relative to BaseURL.
	UserEndpoint string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("neptune base url is empty")
	}
	if opts.Username == "" || opts.Password == "" {
		return nil, errors.New("neptune credentials not set: NEPTUNE_USERNAME and NEPTUNE_PASSWORD are required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
		if opts.CertPath != "" {
			pool, err := loadCertPool(opts.CertPath)
			if err != nil {
				return nil, err
			}
			hc.Transport = &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12},
			}
		}
	}
	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		username:     opts.Username,
		password:     opts.Password,
		userEndpoint: strings.Trim(strings.TrimSpace(opts.UserEndpoint), "/"),
		http:         hc,
	}, nil
}

// NewClientFromEnv reads NEPTUNE_* variables.
func NewClientFromEnv() (*Client, error) {
	return NewClient(Options{
		BaseURL:  os.Getenv("NEPTUNE_BASE_URL"),
		Username: os.Getenv("NEPTUNE_USERNAME"),
		Password: os.Getenv("NEPTUNE_PASSWORD"),
		CertPath:     strings.TrimSpace(os.Getenv("NEPTUNE_CERT_PATH")),
		UserEndpoint: os.Getenv("SRAM_USER_ENDPOINT"),
		Timeout:      time.Duration(config.EnvInt("NEPTUNE_TIMEOUT_SECONDS", 30)) * time.Second,
	})
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read neptune certificate: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, dest any) error {
	u := c.baseURL + "/" + endpoint + "/"
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("neptune %s: decode response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("neptune %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func (c *Client) GetMe(ctx context.Context) (models.User, error) {
	var me models.User
	err := c.get(ctx, endpointMe, nil, &me)
	return me, err
}

func (c *Client) GetProviders(ctx context.Context) ([]models.Provider, error) {
	var out []models.Provider
	err := c.get(ctx, endpointProviders, nil, &out)
	return out, err
}

func (c *Client) GetProjects(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	err := c.get(ctx, endpointProjects, nil, &out)
	return out, err
}

// GetDataUsers lists the data users of the caller's own provider.
func (c *Client) GetDataUsers(ctx context.Context) ([]models.DataUser, error) {
	me, err := c.GetMe(ctx)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("provider_id", me.ProviderID)
	var out []models.DataUser
	err = c.get(ctx, endpointDataUsers, params, &out)
	return out, err
}

func (c *Client) GetSessions(ctx context.Context) ([]models.Session, error) {
	var out []models.Session
	err := c.get(ctx, endpointSession, nil, &out)
	return out, err
}

// CreateSession submits a session descriptor and returns the service's
// response body untouched.
func (c *Client) CreateSession(ctx context.Context, session models.Session) (json.RawMessage, error) {
	payload, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpointSession, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, endpointSession)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(body) {
		quoted, _ := json.Marshal(string(body))
		return json.RawMessage(quoted), nil
	}
	return json.RawMessage(body), nil
}

var ErrUserEndpointNotConfigured = errors.New("neptune user endpoint not configured: SRAM_USER_ENDPOINT is required")

// CheckUser looks up a collaboration member by email.
func (c *Client) CheckUser(ctx context.Context, email string) (json.RawMessage, error) {
	return c.userRequest(ctx, http.MethodGet, email)
}

// InviteUser invites email to the collaboration.
func (c *Client) InviteUser(ctx context.Context, email string) (json.RawMessage, error) {
	return c.userRequest(ctx, http.MethodPost, email)
}

// DeleteUser removes email from the collaboration.
func (c *Client) DeleteUser(ctx context.Context, email string) (json.RawMessage, error) {
	return c.userRequest(ctx, http.MethodDelete, email)
}

func (c *Client) userRequest(ctx context.Context, method, email string) (json.RawMessage, error) {
	if c.userEndpoint == "" {
		return nil, ErrUserEndpointNotConfigured
	}
	u := c.baseURL + "/" + c.userEndpoint + "/" + url.QueryEscape(email)
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, c.userEndpoint)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("neptune %s: response is not JSON", c.userEndpoint)
	}
	return json.RawMessage(body), nil
}
