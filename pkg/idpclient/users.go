package idpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type userRepresentation struct {
	ID            string `json:"id,omitempty"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Enabled       bool   `json:"enabled"`
	EmailVerified bool   `json:"emailVerified"`
}

// UserExists reports whether realm has a user with exactly this email.
func (c *Client) UserExists(ctx context.Context, realm, email string) (bool, error) {
	users, err := c.usersByEmail(ctx, "user_exists", realm, email)
	return len(users) > 0, err
}

func (c *Client) usersByEmail(ctx context.Context, op, realm, email string) ([]userRepresentation, error) {
	resp, err := c.call(ctx, op, request{
		method: http.MethodGet,
		path:   c.adminPath(realm, "users"),
		query: url.Values{
			"email":               {email},
			"exact":               {"true"},
			"max":                 {"1"},
			"briefRepresentation": {"true"},
		},
	}, expectSuccess(op))
	if err != nil {
		return nil, err
	}

	var users []userRepresentation
	if err := resp.decode(&users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser creates a user and returns its id, taken from the last path
// segment of the Location header. A 409 maps to ErrUserExists, except on a
// retry: the earlier attempt may have created the user before its response
// was lost, so the id is looked up by email instead.
func (c *Client) CreateUser(ctx context.Context, realm, email, username string, enabled bool) (string, error) {
	var conflictOnRetry bool
	resp, err := c.call(ctx, "create_user", request{
		method: http.MethodPost,
		path:   c.adminPath(realm, "users"),
		jsonBody: userRepresentation{
			Username: username,
			Email:    email,
			Enabled:  enabled,
		},
	}, func(r *response) error {
		switch {
		case r.ok():
			return nil
		case r.status == http.StatusConflict && r.attempt > 1:
			conflictOnRetry = true
			return nil
		case r.status == http.StatusConflict:
			return r.apiError("create_user", ErrUserExists)
		default:
			return r.apiError("create_user", nil)
		}
	})
	if err != nil {
		return "", err
	}

	if conflictOnRetry {
		users, err := c.usersByEmail(ctx, "create_user_lookup", realm, email)
		if err != nil {
			return "", err
		}
		if len(users) == 0 || users[0].ID == "" {
			return "", resp.apiError("create_user", ErrUserExists)
		}
		c.logger.WarnContext(ctx, "create user conflicted on retry, using the account an earlier attempt created")
		return users[0].ID, nil
	}

	id, err := lastPathSegment(resp.header.Get("Location"))
	if err != nil {
		return "", err
	}
	return id, nil
}

func lastPathSegment(location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("%w: missing Location header", ErrUnexpectedResponse)
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("%w: bad Location header: %v", ErrUnexpectedResponse, err)
	}

	p := u.Path
	seg := p[strings.LastIndex(p, "/")+1:]
	if seg == "" {
		return "", fmt.Errorf("%w: Location %q has no user id", ErrUnexpectedResponse, location)
	}
	return seg, nil
}

// ExecuteActionsEmail asks the service to email the user a link to complete
// actions. An empty list sends the configured defaults.
func (c *Client) ExecuteActionsEmail(ctx context.Context, realm, userID string, actions []string) error {
	if len(actions) == 0 {
		actions = c.cfg.DefaultActions
	}
	_, err := c.call(ctx, "execute_actions_email", request{
		method:   http.MethodPut,
		path:     c.adminPath(realm, "users", escape(userID), "execute-actions-email"),
		jsonBody: actions,
	}, expectSuccess("execute_actions_email"))
	return err
}

// DeleteUser removes a user. A user that is already gone is not an error.
func (c *Client) DeleteUser(ctx context.Context, realm, userID string) error {
	_, err := c.call(ctx, "delete_user", request{
		method: http.MethodDelete,
		path:   c.adminPath(realm, "users", escape(userID)),
	}, func(r *response) error {
		if r.ok() || r.status == http.StatusNotFound {
			return nil
		}
		return r.apiError("delete_user", nil)
	})
	return err
}
