package idpclient

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strconv"
)

// Role is the representation the role-mapping endpoint requires.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AssignRealmRoles resolves every name to its full representation and then
// maps them all onto the user in one request. If any name is unknown nothing
// is assigned and the error matches ErrRoleNotFound.
func (c *Client) AssignRealmRoles(ctx context.Context, realm, userID string, roleNames []string) error {
	if len(roleNames) == 0 {
		return nil
	}

	roles := make([]Role, 0, len(roleNames))
	for _, name := range roleNames {
		role, err := c.getRealmRole(ctx, realm, name)
		if err != nil {
			return err
		}
		roles = append(roles, role)
	}

	_, err := c.call(ctx, "assign_roles", request{
		method:   http.MethodPost,
		path:     c.adminPath(realm, "users", escape(userID), "role-mappings", "realm"),
		jsonBody: roles,
	}, expectSuccess("assign_roles"))
	return err
}

func (c *Client) getRealmRole(ctx context.Context, realm, name string) (Role, error) {
	resp, err := c.call(ctx, "get_role", request{
		method: http.MethodGet,
		path:   c.adminPath(realm, "roles", escape(name)),
	}, func(r *response) error {
		switch {
		case r.ok():
			return nil
		case r.status == http.StatusNotFound:
			return &APIError{
				Op:         "get_role",
				StatusCode: r.status,
				Body:       "role " + strconv.Quote(name) + " not found in realm " + strconv.Quote(realm),
				Err:        ErrRoleNotFound,
			}
		default:
			return r.apiError("get_role", nil)
		}
	})
	if err != nil {
		return Role{}, err
	}

	var role Role
	if err := resp.decode(&role); err != nil {
		return Role{}, err
	}
	return role, nil
}

// ListRealmRoles pages through the realm's roles until a short page, or a page
// with nothing new, and returns the distinct names sorted.
func (c *Client) ListRealmRoles(ctx context.Context, realm string) ([]string, error) {
	seen := make(map[string]struct{})
	for first := 0; ; first += c.cfg.PageSize {
		resp, err := c.call(ctx, "list_roles", request{
			method: http.MethodGet,
			path:   c.adminPath(realm, "roles"),
			query: url.Values{
				"first":               {strconv.Itoa(first)},
				"max":                 {strconv.Itoa(c.cfg.PageSize)},
				"briefRepresentation": {"true"},
			},
		}, expectSuccess("list_roles"))
		if err != nil {
			return nil, err
		}

		var page []Role
		if err := resp.decode(&page); err != nil {
			return nil, err
		}
		added := 0
		for _, r := range page {
			if _, dup := seen[r.Name]; !dup {
				seen[r.Name] = struct{}{}
				added++
			}
		}
		// A full page of names we already have means the server is not
		// honouring first.
		if len(page) < c.cfg.PageSize || added == 0 {
			break
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}
