package app

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// realmsFile is the optional per-realm defaults file:
//
//	realms:
//	  master:
//	    default_roles: [default-admin]
//	  acme:
//	    default_roles: [member]
type realmsFile struct {
	Realms map[string]struct {
		DefaultRoles []string `yaml:"default_roles"`
	} `yaml:"realms"`
}

// loadRealmRoles merges the realms file with INVITES_REALM_ROLES. A realm
// named in the environment replaces the file's entry for it.
func loadRealmRoles(path, env string) (map[string][]string, error) {
	roles := make(map[string][]string)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading realms file: %w", err)
		}
		var f realmsFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing realms file: %w", err)
		}
		for realm, cfg := range f.Realms {
			roles[realm] = cfg.DefaultRoles
		}
	}

	fromEnv, err := parseRealmRoles(env)
	if err != nil {
		return nil, err
	}
	for realm, r := range fromEnv {
		roles[realm] = r
	}
	return roles, nil
}

// parseRealmRoles parses "realm=role1,role2;realm2=role3".
func parseRealmRoles(s string) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		realm, list, ok := strings.Cut(entry, "=")
		realm = strings.TrimSpace(realm)
		if !ok || realm == "" {
			return nil, fmt.Errorf("INVITES_REALM_ROLES entry %q is not realm=role,...", entry)
		}
		roles := splitList(list)
		if len(roles) == 0 {
			return nil, fmt.Errorf("INVITES_REALM_ROLES entry for %q has no roles", realm)
		}
		out[realm] = roles
	}
	return out, nil
}
