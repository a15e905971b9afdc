// Package pathacl implements path-scoped access control: rules grant
// permission sets to user/IP combinations on a folder tree, with
// inheritance along ancestor paths, specificity/priority ordering, and
// override semantics.
package pathacl

import (
	"fmt"
	"sort"

	"github.com/fjordsec/fjordftpd/pkg/ipmatch"
	"github.com/fjordsec/fjordftpd/pkg/pathmatch"
)

// Common permission tokens. The engine enforces no fixed vocabulary; these
// are the tokens the FTP front end uses.
const (
	PermRead     = "read"
	PermWrite    = "write"
	PermUpload   = "upload"
	PermDownload = "download"
	PermDelete   = "delete"
	PermChmod    = "chmod"
	PermZip      = "zip"
)

// GroupPrefix marks a user specifier as a group reference, e.g. "@admins".
const GroupPrefix = "@"

// UserWildcard matches any authenticated user in a rule's user list.
const UserWildcard = "*"

// FailMode governs the decision returned when evaluation fails
// unexpectedly. It does not apply to configuration load failures, which
// disable the engine instead.
type FailMode string

const (
	// FailModeDeny denies on evaluation errors (default)
	FailModeDeny FailMode = "deny"
	// FailModeAllow allows on evaluation errors
	FailModeAllow FailMode = "allow"
	// FailModeFallback allows on evaluation errors, deferring to the
	// caller's global permission system
	FailModeFallback FailMode = "fallback"
)

// Settings holds engine-wide tuning options.
type Settings struct {
	CacheEnabled bool `json:"cache_enabled" yaml:"cache_enabled"`

	// CacheTTL is advisory: the decision cache is unbounded and only
	// emptied by ClearCache or a reload. The field is accepted so existing
	// configuration files round-trip.
	CacheTTL int `json:"cache_ttl" yaml:"cache_ttl"`

	FailMode FailMode `json:"fail_mode" yaml:"fail_mode"`

	// Accepted for config compatibility, never consulted by evaluation.
	EvaluationMode     string   `json:"evaluation_mode,omitempty" yaml:"evaluation_mode,omitempty"`
	DefaultInherit     *bool    `json:"default_inherit,omitempty" yaml:"default_inherit,omitempty"`
	DenyOverridesAllow *bool    `json:"deny_overrides_allow,omitempty" yaml:"deny_overrides_allow,omitempty"`
	TrustedProxies     []string `json:"trusted_proxies,omitempty" yaml:"trusted_proxies,omitempty"`
}

// Rule grants a permission set to a user/IP combination. User specifiers
// are literal usernames, the wildcard "*", or "@group" references.
type Rule struct {
	Users             []string `json:"users" yaml:"users"`
	IPInclusions      []string `json:"ip_inclusions,omitempty" yaml:"ip_inclusions,omitempty"`
	IPExclusions      []string `json:"ip_exclusions,omitempty" yaml:"ip_exclusions,omitempty"`
	Permissions       []string `json:"permissions" yaml:"permissions"`
	Priority          int      `json:"priority,omitempty" yaml:"priority,omitempty"`
	OverrideInherited bool     `json:"override_inherited,omitempty" yaml:"override_inherited,omitempty"`

	// Order is the rule's position in its rule list, assigned at load time
	// and used as the final sorting tie-break.
	Order int `json:"-" yaml:"-"`
}

// PathRuleSet is the ordered rule list attached to one path.
type PathRuleSet struct {
	// Inherit controls whether ancestor traversal continues past this
	// path when collecting applicable rules. Defaults to true.
	Inherit *bool  `json:"inherit,omitempty" yaml:"inherit,omitempty"`
	Rules   []Rule `json:"rules" yaml:"rules"`
}

// Inherits reports the effective inherit flag.
func (rs *PathRuleSet) Inherits() bool {
	return rs.Inherit == nil || *rs.Inherit
}

// Config is the full ACL configuration.
type Config struct {
	Enabled   bool                    `json:"enabled" yaml:"enabled"`
	Settings  Settings                `json:"settings" yaml:"settings"`
	Groups    map[string][]string     `json:"groups,omitempty" yaml:"groups,omitempty"`
	PathRules map[string]*PathRuleSet `json:"path_rules,omitempty" yaml:"path_rules,omitempty"`
}

// normalize validates the configuration and rewrites it into canonical
// form: path keys normalized, inherit defaulted, rule order assigned, IP
// patterns checked. Returns the first problem found.
func (c *Config) normalize() error {
	switch c.Settings.FailMode {
	case "":
		c.Settings.FailMode = FailModeDeny
	case FailModeDeny, FailModeAllow, FailModeFallback:
	default:
		return fmt.Errorf("unknown fail_mode %q", c.Settings.FailMode)
	}

	normalized := make(map[string]*PathRuleSet, len(c.PathRules))
	for rawPath, ruleSet := range c.PathRules {
		path, err := pathmatch.Normalize(rawPath)
		if err != nil {
			return fmt.Errorf("path_rules key %q: %w", rawPath, err)
		}
		if _, exists := normalized[path]; exists {
			return fmt.Errorf("path_rules keys collide on %q", path)
		}
		if ruleSet == nil {
			ruleSet = &PathRuleSet{}
		}

		for i := range ruleSet.Rules {
			rule := &ruleSet.Rules[i]
			rule.Order = i

			if len(rule.Users) == 0 {
				return fmt.Errorf("rule %d at %q has no user specifiers", i, path)
			}
			for _, pattern := range rule.IPInclusions {
				if !ipmatch.IsValidPattern(pattern) {
					return fmt.Errorf("rule %d at %q: invalid ip_inclusions pattern %q", i, path, pattern)
				}
			}
			for _, pattern := range rule.IPExclusions {
				if !ipmatch.IsValidPattern(pattern) {
					return fmt.Errorf("rule %d at %q: invalid ip_exclusions pattern %q", i, path, pattern)
				}
			}
		}
		normalized[path] = ruleSet
	}
	c.PathRules = normalized

	return nil
}

// groupIndex builds the reverse mapping username -> set of group names.
func (c *Config) groupIndex() map[string]map[string]bool {
	index := make(map[string]map[string]bool)
	for group, members := range c.Groups {
		for _, username := range members {
			if index[username] == nil {
				index[username] = make(map[string]bool)
			}
			index[username][group] = true
		}
	}
	return index
}

// PermissionSet is a set of permission tokens.
type PermissionSet map[string]bool

// Has reports membership of a permission token.
func (s PermissionSet) Has(permission string) bool {
	return s[permission]
}

// addAll unions tokens into the set.
func (s PermissionSet) addAll(permissions []string) {
	for _, p := range permissions {
		s[p] = true
	}
}

// Values returns the tokens in sorted order.
func (s PermissionSet) Values() []string {
	values := make([]string, 0, len(s))
	for p := range s {
		values = append(values, p)
	}
	sort.Strings(values)
	return values
}
