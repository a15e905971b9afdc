package pathacl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjordsec/fjordftpd/pkg/users"
)

func boolPtr(b bool) *bool { return &b }

func testUser(name string) *users.User {
	return &users.User{Username: name}
}

// projectsConfig grants john different permission sets from two networks,
// with the office network rule at higher priority.
func projectsConfig() *Config {
	return &Config{
		Enabled:  true,
		Settings: Settings{CacheEnabled: true, FailMode: FailModeDeny},
		PathRules: map[string]*PathRuleSet{
			"/projects": {
				Rules: []Rule{
					{
						Users:        []string{"john"},
						IPInclusions: []string{"192.168.1.0/24"},
						Permissions:  []string{"read", "write", "upload", "delete"},
						Priority:     20,
					},
					{
						Users:        []string{"john"},
						IPInclusions: []string{"10.8.0.0/24"},
						Permissions:  []string{"read"},
						Priority:     10,
					},
				},
			},
		},
	}
}

func TestCheckPermissionByNetwork(t *testing.T) {
	engine := NewTestEngine(projectsConfig())
	require.True(t, engine.IsEnabled())

	john := testUser("john")

	// Office network gets the full set
	assert.True(t, engine.CheckPermission(john, "192.168.1.50", "/projects", "write"))
	assert.True(t, engine.CheckPermission(john, "192.168.1.50", "/projects", "delete"))

	// VPN network is read-only
	assert.False(t, engine.CheckPermission(john, "10.8.0.50", "/projects", "write"))
	assert.True(t, engine.CheckPermission(john, "10.8.0.50", "/projects", "read"))

	// Unknown network matches no rule
	assert.False(t, engine.CheckPermission(john, "172.16.0.1", "/projects", "read"))

	// Other users match no rule
	assert.False(t, engine.CheckPermission(testUser("jane"), "192.168.1.50", "/projects", "read"))
}

func TestInheritanceThroughLevels(t *testing.T) {
	engine := NewTestEngine(&Config{
		Enabled: true,
		PathRules: map[string]*PathRuleSet{
			"/projects": {
				Rules: []Rule{{Users: []string{"john"}, Permissions: []string{"read"}}},
			},
		},
	})

	john := testUser("john")
	assert.True(t, engine.CheckPermission(john, "1.2.3.4", "/projects/alpha/file.txt", "read"))
	assert.True(t, engine.CheckPermission(john, "1.2.3.4", "/projects/alpha", "read"))
	assert.False(t, engine.CheckPermission(john, "1.2.3.4", "/other", "read"))
}

func TestInheritCutoff(t *testing.T) {
	engine := NewTestEngine(&Config{
		Enabled: true,
		Groups:  map[string][]string{"admins": {"alice"}},
		PathRules: map[string]*PathRuleSet{
			"/": {
				Rules: []Rule{{Users: []string{"*"}, Permissions: []string{"read"}}},
			},
			"/restricted": {
				Inherit: boolPtr(false),
				Rules:   []Rule{{Users: []string{"@admins"}, Permissions: []string{"read", "write"}}},
			},
		},
	})

	// Root grant reaches ordinary paths
	assert.True(t, engine.CheckPermission(testUser("bob"), "1.2.3.4", "/elsewhere", "read"))

	// Inheritance is cut off below /restricted for non-admins
	assert.False(t, engine.CheckPermission(testUser("bob"), "1.2.3.4", "/restricted", "read"))
	assert.False(t, engine.CheckPermission(testUser("bob"), "1.2.3.4", "/restricted/file", "read"))

	// Group members still match the rule declared at the cutoff
	assert.True(t, engine.CheckPermission(testUser("alice"), "1.2.3.4", "/restricted", "write"))
	assert.True(t, engine.CheckPermission(testUser("alice"), "1.2.3.4", "/restricted/deep/file", "read"))
}

func TestSamePathRulesUnion(t *testing.T) {
	engine := NewTestEngine(&Config{
		Enabled: true,
		PathRules: map[string]*PathRuleSet{
			"/shared": {
				Rules: []Rule{
					{Users: []string{"john"}, Permissions: []string{"read"}},
					{Users: []string{"john"}, Permissions: []string{"write", "upload"}},
				},
			},
		},
	})

	effective, err := engine.EffectivePermissions(testUser("john"), "1.2.3.4", "/shared")
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "upload", "write"}, effective.Values())
}

func TestSpecificityPrecedence(t *testing.T) {
	// Both rules union, but the deeper rule's override variant must win
	// when override_inherited is set.
	engine := NewTestEngine(&Config{
		Enabled: true,
		PathRules: map[string]*PathRuleSet{
			"/data": {
				Rules: []Rule{{Users: []string{"john"}, Permissions: []string{"read", "write"}}},
			},
			"/data/archive": {
				Rules: []Rule{{Users: []string{"john"}, Permissions: []string{"read"}, OverrideInherited: true}},
			},
		},
	})

	john := testUser("john")

	// The override at the more specific path discards the parent's write
	assert.True(t, engine.CheckPermission(john, "1.2.3.4", "/data/archive/file", "read"))
	assert.False(t, engine.CheckPermission(john, "1.2.3.4", "/data/archive/file", "write"))

	// The parent path itself is unaffected
	assert.True(t, engine.CheckPermission(john, "1.2.3.4", "/data/file", "write"))
}

func TestOverrideTruncatesMerge(t *testing.T) {
	engine := NewTestEngine(&Config{
		Enabled: true,
		PathRules: map[string]*PathRuleSet{
			"/p": {
				Rules: []Rule{
					{Users: []string{"john"}, Permissions: []string{"write"}, Priority: 5},
					{Users: []string{"john"}, Permissions: []string{"read"}, Priority: 10, OverrideInherited: true},
					{Users: []string{"john"}, Permissions: []string{"delete"}, Priority: 1},
				},
			},
		},
	})

	effective, err := engine.EffectivePermissions(testUser("john"), "1.2.3.4", "/p")
	require.NoError(t, err)

	// The priority-10 override replaces nothing-yet-merged and stops the
	// merge: neither the priority-5 write nor the priority-1 delete apply.
	assert.Equal(t, []string{"read"}, effective.Values())
}

func TestPriorityOrdering(t *testing.T) {
	engine := NewTestEngine(&Config{
		Enabled: true,
		PathRules: map[string]*PathRuleSet{
			"/p": {
				Rules: []Rule{
					{Users: []string{"john"}, Permissions: []string{"read"}, Priority: 1},
					{Users: []string{"john"}, Permissions: []string{"write"}, Priority: 9, OverrideInherited: true},
				},
			},
		},
	})

	// Higher priority sorts first, so its override wins even though it was
	// declared second.
	effective, err := engine.EffectivePermissions(testUser("john"), "1.2.3.4", "/p")
	require.NoError(t, err)
	assert.Equal(t, []string{"write"}, effective.Values())
}

func TestDisabledAllowsEverything(t *testing.T) {
	engine := NewTestEngine(&Config{Enabled: false})

	assert.False(t, engine.IsEnabled())
	assert.True(t, engine.CheckPermission(testUser("anyone"), "256.bad.ip", "/any/path", "anything"))

	explanation := engine.Explain(testUser("anyone"), "1.2.3.4", "/any", "read")
	assert.True(t, explanation.Allowed)
}

func TestLoadFailureDisablesEngine(t *testing.T) {
	engine := NewEngine(NewFileSource("/nonexistent/acl.yml"), NopObserver{})
	assert.False(t, engine.IsEnabled())
	assert.True(t, engine.CheckPermission(testUser("anyone"), "1.2.3.4", "/x", "read"))
}

func TestInvalidConfigDisablesEngine(t *testing.T) {
	bad := &Config{
		Enabled: true,
		PathRules: map[string]*PathRuleSet{
			"/p": {Rules: []Rule{{Users: []string{"john"}, IPInclusions: []string{"300.0.0.0/8"}, Permissions: []string{"read"}}}},
		},
	}
	engine := NewTestEngine(bad)
	assert.False(t, engine.IsEnabled())
}

func TestReloadTransitions(t *testing.T) {
	source := NewMemorySource(projectsConfig())
	engine := NewEngine(source, NopObserver{})
	require.True(t, engine.IsEnabled())

	john := testUser("john")
	assert.True(t, engine.CheckPermission(john, "192.168.1.50", "/projects", "write"))

	// Replace the config with one that revokes write; reload clears the
	// decision cache so the next call sees the new rules.
	source.SetConfig(&Config{
		Enabled:  true,
		Settings: Settings{CacheEnabled: true},
		PathRules: map[string]*PathRuleSet{
			"/projects": {Rules: []Rule{{Users: []string{"john"}, Permissions: []string{"read"}}}},
		},
	})
	require.NoError(t, engine.Reload())
	assert.False(t, engine.CheckPermission(john, "192.168.1.50", "/projects", "write"))
	assert.True(t, engine.CheckPermission(john, "192.168.1.50", "/projects", "read"))

	// A failed reload transitions to Disabled
	source.SetConfig(nil)
	assert.Error(t, engine.Reload())
	assert.False(t, engine.IsEnabled())
	assert.True(t, engine.CheckPermission(john, "192.168.1.50", "/projects", "write"))
}

func TestDecisionCaching(t *testing.T) {
	observer := &RecordingObserver{}
	engine := NewEngine(NewMemorySource(projectsConfig()), observer)

	john := testUser("john")

	first := engine.CheckPermission(john, "192.168.1.50", "/projects", "write")
	second := engine.CheckPermission(john, "192.168.1.50", "/projects", "write")
	assert.Equal(t, first, second)

	decisions := observer.Decisions()
	require.Len(t, decisions, 2)
	assert.False(t, decisions[0].Cached)
	assert.True(t, decisions[1].Cached)

	// A different tuple is computed independently
	engine.CheckPermission(john, "192.168.1.50", "/projects", "read")
	decisions = observer.Decisions()
	require.Len(t, decisions, 3)
	assert.False(t, decisions[2].Cached)

	engine.ClearCache()
	engine.CheckPermission(john, "192.168.1.50", "/projects", "write")
	decisions = observer.Decisions()
	require.Len(t, decisions, 4)
	assert.False(t, decisions[3].Cached)
}

func TestCacheDisabled(t *testing.T) {
	config := projectsConfig()
	config.Settings.CacheEnabled = false
	observer := &RecordingObserver{}
	engine := NewEngine(NewMemorySource(config), observer)

	john := testUser("john")
	engine.CheckPermission(john, "192.168.1.50", "/projects", "write")
	engine.CheckPermission(john, "192.168.1.50", "/projects", "write")

	for _, d := range observer.Decisions() {
		assert.False(t, d.Cached)
	}
}

func TestUserLevelIPGate(t *testing.T) {
	engine := NewTestEngine(&Config{
		Enabled: true,
		PathRules: map[string]*PathRuleSet{
			"/": {Rules: []Rule{{Users: []string{"*"}, Permissions: []string{"read"}}}},
		},
	})

	restricted := &users.User{
		Username:     "john",
		IPInclusions: []string{"192.168.1.0/24"},
		IPExclusions: []string{"192.168.1.13"},
	}

	assert.True(t, engine.CheckPermission(restricted, "192.168.1.50", "/file", "read"))
	assert.False(t, engine.CheckPermission(restricted, "10.0.0.1", "/file", "read"))
	assert.False(t, engine.CheckPermission(restricted, "192.168.1.13", "/file", "read"))

	// Users without IP lists are not gated
	assert.True(t, engine.CheckPermission(testUser("jane"), "10.0.0.1", "/file", "read"))
}

func TestFailModes(t *testing.T) {
	base := func(mode FailMode) *Config {
		return &Config{
			Enabled:  true,
			Settings: Settings{FailMode: mode},
			PathRules: map[string]*PathRuleSet{
				"/": {Rules: []Rule{{Users: []string{"*"}, Permissions: []string{"read"}}}},
			},
		}
	}

	john := testUser("john")

	// Traversal guard trips during evaluation; deny is the default
	engine := NewTestEngine(base(FailModeDeny))
	assert.False(t, engine.CheckPermission(john, "1.2.3.4", "/a/../b", "read"))

	engine = NewTestEngine(base(FailModeAllow))
	assert.True(t, engine.CheckPermission(john, "1.2.3.4", "/a/../b", "read"))

	engine = NewTestEngine(base(FailModeFallback))
	assert.True(t, engine.CheckPermission(john, "1.2.3.4", "/a/../b", "read"))
}

func TestWildcardRequiresUsername(t *testing.T) {
	engine := NewTestEngine(&Config{
		Enabled: true,
		PathRules: map[string]*PathRuleSet{
			"/": {Rules: []Rule{{Users: []string{"*"}, Permissions: []string{"read"}}}},
		},
	})

	assert.True(t, engine.CheckPermission(testUser("john"), "1.2.3.4", "/f", "read"))
	assert.False(t, engine.CheckPermission(testUser(""), "1.2.3.4", "/f", "read"))
}

func TestRuleIPExclusion(t *testing.T) {
	engine := NewTestEngine(&Config{
		Enabled: true,
		PathRules: map[string]*PathRuleSet{
			"/p": {
				Rules: []Rule{{
					Users:        []string{"john"},
					IPInclusions: []string{"10.0.0.0/8"},
					IPExclusions: []string{"10.0.5.0/24"},
					Permissions:  []string{"read"},
				}},
			},
		},
	})

	john := testUser("john")
	assert.True(t, engine.CheckPermission(john, "10.0.1.1", "/p", "read"))
	assert.False(t, engine.CheckPermission(john, "10.0.5.1", "/p", "read"))
}

func TestPathKeyNormalization(t *testing.T) {
	// Differently-spelled path keys resolve to the same logical path.
	engine := NewTestEngine(&Config{
		Enabled: true,
		PathRules: map[string]*PathRuleSet{
			"/projects//alpha/": {
				Rules: []Rule{{Users: []string{"john"}, Permissions: []string{"read"}}},
			},
		},
	})

	assert.True(t, engine.CheckPermission(testUser("john"), "1.2.3.4", "/projects/alpha", "read"))

	// Two spellings of one path collide at load time.
	colliding := NewTestEngine(&Config{
		Enabled: true,
		PathRules: map[string]*PathRuleSet{
			"/a/":  {Rules: []Rule{{Users: []string{"x"}, Permissions: []string{"read"}}}},
			"//a":  {Rules: []Rule{{Users: []string{"y"}, Permissions: []string{"read"}}}},
			"/b":   {},
			"/b/c": {},
		},
	})
	assert.False(t, colliding.IsEnabled())
}

func TestExplain(t *testing.T) {
	engine := NewTestEngine(projectsConfig())
	john := testUser("john")

	t.Run("allowed", func(t *testing.T) {
		explanation := engine.Explain(john, "192.168.1.50", "/projects/alpha", "write")
		assert.True(t, explanation.Allowed)
		assert.True(t, explanation.IPGatePassed)
		assert.Equal(t, "write", explanation.Permission)
		assert.Equal(t, []string{"/projects/alpha", "/projects", "/"}, explanation.Ancestors)
		require.Len(t, explanation.MatchedRules, 1)
		assert.Equal(t, "/projects", explanation.MatchedRules[0].Path)
		assert.Equal(t, 1, explanation.MatchedRules[0].Depth)
		assert.Equal(t, 20, explanation.MatchedRules[0].Priority)
		assert.Equal(t, []string{"delete", "read", "upload", "write"}, explanation.EffectivePermissions)
	})

	t.Run("denied", func(t *testing.T) {
		explanation := engine.Explain(john, "10.8.0.50", "/projects", "write")
		assert.False(t, explanation.Allowed)
		assert.Equal(t, []string{"read"}, explanation.EffectivePermissions)
		assert.Contains(t, explanation.Reason, "not in effective set")
	})

	t.Run("no matches", func(t *testing.T) {
		explanation := engine.Explain(testUser("jane"), "192.168.1.50", "/projects", "read")
		assert.False(t, explanation.Allowed)
		assert.Empty(t, explanation.MatchedRules)
		assert.Equal(t, "no rules matched the request", explanation.Reason)
	})

	t.Run("invalid path", func(t *testing.T) {
		explanation := engine.Explain(john, "192.168.1.50", "/a/../b", "read")
		assert.False(t, explanation.Allowed)
		assert.Contains(t, explanation.Reason, "evaluation failed")
	})

	t.Run("ip gate", func(t *testing.T) {
		gated := &users.User{Username: "john", IPInclusions: []string{"192.168.1.0/24"}}
		explanation := engine.Explain(gated, "10.0.0.1", "/projects", "read")
		assert.False(t, explanation.Allowed)
		assert.False(t, explanation.IPGatePassed)
	})

	t.Run("does not touch the cache", func(t *testing.T) {
		engine.ClearCache()
		engine.Explain(john, "192.168.1.50", "/projects", "write")
		assert.Equal(t, 0, engine.cache.len())
	})
}
