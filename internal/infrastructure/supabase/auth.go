package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/httpjson"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/resilience"
)

type AuthOptions struct {
	Timeout  time.Duration
	Executor *resilience.Executor
}

// Auth issues and refreshes anonymous sessions against the GoTrue endpoints.
type Auth struct {
	http     *httpjson.Client
	executor *resilience.Executor
	now      func() time.Time
}

func NewAuth(projectURL, apiKey string, opts AuthOptions) *Auth {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Auth{
		http: httpjson.New(projectURL, opts.Timeout, http.Header{
			"apikey":        {apiKey},
			"Authorization": {"Bearer " + apiKey},
		}),
		executor: opts.Executor,
		now:      time.Now,
	}
}

type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID          string `json:"id"`
		IsAnonymous bool   `json:"is_anonymous"`
	} `json:"user"`
}

type authErrorBody struct {
	Message string `json:"msg"`
}

func (a *Auth) SignUpAnonymous(ctx context.Context) (domain.Identity, error) {
	return a.session(ctx, "auth.signup", httpjson.Request{
		Method: http.MethodPost,
		Path:   "/auth/v1/signup",
		JSON:   map[string]any{"data": map[string]any{}},
	})
}

func (a *Auth) Refresh(ctx context.Context, refreshToken string) (domain.Identity, error) {
	if refreshToken == "" {
		return domain.Identity{}, domain.WrapError(domain.ErrUnauthorized, "auth.refresh", errors.New("no refresh token"))
	}
	return a.session(ctx, "auth.refresh", httpjson.Request{
		Method: http.MethodPost,
		Path:   "/auth/v1/token",
		Query:  url.Values{"grant_type": {"refresh_token"}},
		JSON:   map[string]string{"refresh_token": refreshToken},
	})
}

func (a *Auth) session(ctx context.Context, operation string, req httpjson.Request) (domain.Identity, error) {
	req.Operation = operation
	resp, err := resilience.Call(ctx, a.executor, operation, httpjson.Classify, func(ctx context.Context) (sessionResponse, error) {
		var out sessionResponse
		err := a.http.Do(ctx, req, &out)
		return out, err
	})
	if err != nil {
		attachAuthMessage(err)
		return domain.Identity{}, httpjson.Kind(operation, err)
	}
	if resp.User.ID == "" || resp.AccessToken == "" {
		return domain.Identity{}, errors.New(operation + ": response has no session")
	}

	var expiresAt time.Time
	switch {
	case resp.ExpiresAt > 0:
		expiresAt = time.Unix(resp.ExpiresAt, 0).UTC()
	case resp.ExpiresIn > 0:
		expiresAt = a.now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC()
	}
	return domain.Identity{
		UserID:       resp.User.ID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    expiresAt,
		Anonymous:    resp.User.IsAnonymous,
	}, nil
}

// attachAuthMessage surfaces GoTrue's "msg" field as the display text.
func attachAuthMessage(err error) {
	var statusErr *httpjson.StatusError
	if !errors.As(err, &statusErr) || statusErr.Message != "" {
		return
	}
	var body authErrorBody
	if json.Unmarshal([]byte(statusErr.Body), &body) == nil {
		statusErr.Message = body.Message
	}
}
