package store

import (
	"encoding/json"
	"fmt"
)

// EncodeRoles serialises role names for the roles column. Both drivers store a
// JSON array so that role names may contain any character.
func EncodeRoles(roles []string) (string, error) {
	if roles == nil {
		roles = []string{}
	}
	b, err := json.Marshal(roles)
	if err != nil {
		return "", fmt.Errorf("encode roles: %w", err)
	}
	return string(b), nil
}

// DecodeRoles is the inverse of EncodeRoles.
func DecodeRoles(raw string) ([]string, error) {
	var roles []string
	if err := json.Unmarshal([]byte(raw), &roles); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	return roles, nil
}
