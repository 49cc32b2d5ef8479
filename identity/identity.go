package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"code.cloudfoundry.org/lager"
)

// TenantIdentity is owned by the external identity provider. The engine
// only ever reads it.
type TenantIdentity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

var ErrUnauthenticated = errors.New("unauthenticated")

type Resolver interface {
	Resolve(ctx context.Context, token string) (TenantIdentity, error)
}

// HTTPResolver resolves opaque session tokens against the identity
// provider's resolve endpoint.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
	logger  lager.Logger
}

func NewHTTPResolver(baseURL string, logger lager.Logger) *HTTPResolver {
	return &HTTPResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.Session("identity-resolver"),
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, token string) (TenantIdentity, error) {
	var tenant TenantIdentity

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/v1/resolve", nil)
	if err != nil {
		return tenant, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error("resolve-request", err)
		return tenant, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(&tenant); err != nil {
			r.logger.Error("resolve-decode", err)
			return tenant, err
		}
		if tenant.ID == "" {
			return tenant, ErrUnauthenticated
		}
		return tenant, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return tenant, ErrUnauthenticated
	default:
		err = fmt.Errorf("identity provider returned status %d", resp.StatusCode)
		r.logger.Error("resolve-status", err)
		return tenant, err
	}
}
