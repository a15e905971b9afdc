package pathacl

import (
	"fmt"

	"github.com/fjordsec/fjordftpd/pkg/ipmatch"
	"github.com/fjordsec/fjordftpd/pkg/users"
)

// MatchedRule is a rule that applied to an explained request, annotated
// with where it was declared.
type MatchedRule struct {
	Path              string   `json:"path"`
	Depth             int      `json:"depth"`
	Users             []string `json:"users"`
	Permissions       []string `json:"permissions"`
	Priority          int      `json:"priority"`
	Order             int      `json:"order"`
	OverrideInherited bool     `json:"override_inherited"`
}

// Explanation is the operator-facing breakdown of a permission decision.
// It is produced by re-running the evaluation outside the cache and is
// never used for enforcement.
type Explanation struct {
	Allowed              bool          `json:"allowed"`
	Reason               string        `json:"reason"`
	IPGatePassed         bool          `json:"ip_gate_passed"`
	MatchedRules         []MatchedRule `json:"matched_rules"`
	EffectivePermissions []string      `json:"effective_permissions"`
	Permission           string        `json:"permission"`
	Ancestors            []string      `json:"ancestors"`
}

// Explain re-evaluates a request without consulting or writing the
// decision cache and reports every intermediate result.
func (e *Engine) Explain(user *users.User, clientIP, path, permission string) *Explanation {
	st := e.currentState()

	explanation := &Explanation{
		Permission:   permission,
		IPGatePassed: true,
	}

	if !st.enabled {
		explanation.Allowed = true
		explanation.Reason = "ACL engine is disabled; all operations are permitted"
		return explanation
	}

	if len(user.IPInclusions) > 0 || len(user.IPExclusions) > 0 {
		if !ipmatch.IsAllowed(clientIP, user.IPInclusions, user.IPExclusions) {
			explanation.IPGatePassed = false
			explanation.Allowed = false
			explanation.Reason = fmt.Sprintf("client address %s rejected by user-level IP restrictions", clientIP)
			return explanation
		}
	}

	matches, visited, err := e.collectMatches(st, user.Username, clientIP, path)
	explanation.Ancestors = visited
	if err != nil {
		explanation.Allowed = false
		explanation.Reason = fmt.Sprintf("evaluation failed: %v", err)
		return explanation
	}

	for _, m := range matches {
		explanation.MatchedRules = append(explanation.MatchedRules, MatchedRule{
			Path:              m.path,
			Depth:             m.depth,
			Users:             m.rule.Users,
			Permissions:       m.rule.Permissions,
			Priority:          m.rule.Priority,
			Order:             m.rule.Order,
			OverrideInherited: m.rule.OverrideInherited,
		})
	}

	effective := mergeMatches(matches)
	explanation.EffectivePermissions = effective.Values()
	explanation.Allowed = effective.Has(permission)

	switch {
	case explanation.Allowed:
		explanation.Reason = fmt.Sprintf("permission %q granted by %d matching rule(s)", permission, len(matches))
	case len(matches) == 0:
		explanation.Reason = "no rules matched the request"
	default:
		explanation.Reason = fmt.Sprintf("permission %q not in effective set %v", permission, explanation.EffectivePermissions)
	}
	return explanation
}
