package pathacl

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fjordsec/fjordftpd/pkg/ipmatch"
	"github.com/fjordsec/fjordftpd/pkg/logging"
	"github.com/fjordsec/fjordftpd/pkg/pathmatch"
	"github.com/fjordsec/fjordftpd/pkg/users"
)

// aclState is one loaded configuration generation. It is immutable once
// published, so evaluation reads it without locking.
type aclState struct {
	enabled  bool
	settings Settings
	rules    map[string]*PathRuleSet
	groups   map[string]map[string]bool
}

// Engine is the permission decision engine. It has two operating states:
// Disabled (no or invalid configuration, or enabled: false; every check
// allows) and Enabled (full evaluation). A failed reload transitions an
// enabled engine back to Disabled.
type Engine struct {
	source   Source
	observer Observer

	mu    sync.RWMutex
	state *aclState
	cache *decisionCache
}

// NewEngine creates an engine and loads its configuration immediately. A
// load failure is logged and leaves the engine disabled; it is not
// returned as an error so that a broken rules file never takes the service
// down. Callers that need the load result can invoke Reload themselves.
func NewEngine(source Source, observer Observer) *Engine {
	if observer == nil {
		observer = NopObserver{}
	}
	e := &Engine{
		source:   source,
		observer: observer,
		state:    &aclState{},
		cache:    newDecisionCache(),
	}
	if err := e.Reload(); err != nil {
		logging.App.Error("ACL configuration load failed, engine disabled", "error", err)
	}
	return e
}

// Reload re-reads the configuration from the source. On failure the engine
// transitions to Disabled and the error is returned. The decision cache is
// cleared either way.
func (e *Engine) Reload() error {
	config, err := e.source.Load()
	if err == nil {
		err = config.normalize()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.state = &aclState{}
		e.cache.clear()
		return err
	}

	e.state = &aclState{
		enabled:  config.Enabled,
		settings: config.Settings,
		rules:    config.PathRules,
		groups:   config.groupIndex(),
	}
	e.cache.clear()
	return nil
}

func (e *Engine) currentState() *aclState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// IsEnabled reports whether the engine is evaluating rules. A disabled
// engine allows everything.
func (e *Engine) IsEnabled() bool {
	return e.currentState().enabled
}

// ClearCache empties the decision cache. Configuration is untouched.
func (e *Engine) ClearCache() {
	e.cache.clear()
}

// CheckPermission decides whether user, connecting from clientIP, may
// perform permission on path. Evaluation errors are absorbed according to
// the configured fail mode; deny is the default.
func (e *Engine) CheckPermission(user *users.User, clientIP, path, permission string) bool {
	st := e.currentState()

	if !st.enabled {
		e.observer.ObserveDecision(Decision{
			User: user.Username, ClientIP: clientIP, Path: path, Permission: permission,
			Allowed: true, Reason: "engine disabled",
		})
		return true
	}

	key := decisionKey{user: user.Username, ip: clientIP, path: path, permission: permission}
	if st.settings.CacheEnabled {
		if decision, ok := e.cache.get(key); ok {
			e.observer.ObserveDecision(Decision{
				User: user.Username, ClientIP: clientIP, Path: path, Permission: permission,
				Allowed: decision, Cached: true,
			})
			return decision
		}
	}

	allowed, reason, err := e.evaluate(st, user, clientIP, path, permission)
	if err != nil {
		allowed = st.settings.FailMode != FailModeDeny
		reason = fmt.Sprintf("evaluation failed (%s fail mode): %v", st.settings.FailMode, err)
	}

	if st.settings.CacheEnabled {
		e.cache.set(key, allowed)
	}
	e.observer.ObserveDecision(Decision{
		User: user.Username, ClientIP: clientIP, Path: path, Permission: permission,
		Allowed: allowed, Reason: reason,
	})
	return allowed
}

// evaluate runs the uncached decision: user-level IP gate first, then
// membership of the requested permission in the effective set.
func (e *Engine) evaluate(st *aclState, user *users.User, clientIP, path, permission string) (bool, string, error) {
	if len(user.IPInclusions) > 0 || len(user.IPExclusions) > 0 {
		if !ipmatch.IsAllowed(clientIP, user.IPInclusions, user.IPExclusions) {
			return false, "client address rejected by user-level IP restrictions", nil
		}
	}

	matches, _, err := e.collectMatches(st, user.Username, clientIP, path)
	if err != nil {
		return false, "", err
	}

	effective := mergeMatches(matches)
	if effective.Has(permission) {
		return true, fmt.Sprintf("granted by %d matching rule(s)", len(matches)), nil
	}
	return false, fmt.Sprintf("permission %q not in effective set %v", permission, effective.Values()), nil
}

// EffectivePermissions computes the merged permission set for the tuple.
// A disabled engine has no rules loaded and yields an empty set.
func (e *Engine) EffectivePermissions(user *users.User, clientIP, path string) (PermissionSet, error) {
	st := e.currentState()

	matches, _, err := e.collectMatches(st, user.Username, clientIP, path)
	if err != nil {
		return nil, err
	}
	return mergeMatches(matches), nil
}

// ruleMatch is a rule that applies to the request, tagged with the
// ancestor path it was declared at and that path's depth (specificity).
type ruleMatch struct {
	rule  *Rule
	path  string
	depth int
}

// collectMatches walks the path's ancestors from most specific to root,
// keeping every rule whose user specifiers and IP restrictions accept the
// request. An ancestor with inherit=false still contributes its rules but
// stops the ascent. The visited ancestor list is returned for diagnostics.
func (e *Engine) collectMatches(st *aclState, username, clientIP, path string) ([]ruleMatch, []string, error) {
	ancestors, err := pathmatch.Ancestors(path)
	if err != nil {
		return nil, nil, err
	}

	var matches []ruleMatch
	visited := make([]string, 0, len(ancestors))

	for _, ancestor := range ancestors {
		visited = append(visited, ancestor)
		ruleSet, ok := st.rules[ancestor]
		if !ok {
			continue
		}

		depth, err := pathmatch.Depth(ancestor)
		if err != nil {
			return nil, nil, err
		}

		for i := range ruleSet.Rules {
			rule := &ruleSet.Rules[i]
			if !st.userMatches(username, rule.Users) {
				continue
			}
			if !ipmatch.IsAllowed(clientIP, rule.IPInclusions, rule.IPExclusions) {
				continue
			}
			matches = append(matches, ruleMatch{rule: rule, path: ancestor, depth: depth})
		}

		if !ruleSet.Inherits() {
			break
		}
	}

	// Descending specificity, then descending priority, then declaration
	// order within the rule list.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].depth != matches[j].depth {
			return matches[i].depth > matches[j].depth
		}
		if matches[i].rule.Priority != matches[j].rule.Priority {
			return matches[i].rule.Priority > matches[j].rule.Priority
		}
		return matches[i].rule.Order < matches[j].rule.Order
	})

	return matches, visited, nil
}

// mergeMatches folds sorted matches into one permission set. A rule with
// override_inherited replaces everything accumulated so far and stops the
// merge; anything sorted after it never applies.
func mergeMatches(matches []ruleMatch) PermissionSet {
	effective := make(PermissionSet)
	for _, m := range matches {
		if m.rule.OverrideInherited {
			effective = make(PermissionSet)
			effective.addAll(m.rule.Permissions)
			break
		}
		effective.addAll(m.rule.Permissions)
	}
	return effective
}

// userMatches tests a username against a rule's user specifiers.
func (st *aclState) userMatches(username string, specifiers []string) bool {
	for _, spec := range specifiers {
		switch {
		case spec == UserWildcard:
			if username != "" {
				return true
			}
		case len(spec) > 1 && strings.HasPrefix(spec, GroupPrefix):
			if st.groups[username][spec[1:]] {
				return true
			}
		case spec == username:
			return true
		}
	}
	return false
}
