package pathacl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlConfig = `
enabled: true
settings:
  cache_enabled: true
  cache_ttl: 300
  fail_mode: deny
groups:
  admins:
    - alice
    - bob
path_rules:
  /projects:
    rules:
      - users: ["john"]
        ip_inclusions: ["192.168.1.0/24"]
        permissions: ["read", "write"]
        priority: 10
  /restricted:
    inherit: false
    rules:
      - users: ["@admins"]
        permissions: ["read", "write", "delete"]
`

const jsonConfig = `{
  "enabled": true,
  "settings": {"cache_enabled": true, "cache_ttl": 300, "fail_mode": "deny"},
  "groups": {"admins": ["alice", "bob"]},
  "path_rules": {
    "/projects": {
      "rules": [
        {"users": ["john"], "ip_inclusions": ["192.168.1.0/24"], "permissions": ["read", "write"], "priority": 10}
      ]
    },
    "/restricted": {
      "inherit": false,
      "rules": [
        {"users": ["@admins"], "permissions": ["read", "write", "delete"]}
      ]
    }
  }
}`

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestFileSourceFormats(t *testing.T) {
	yamlPath := writeTempConfig(t, "acl.yml", yamlConfig)
	jsonPath := writeTempConfig(t, "acl.json", jsonConfig)

	for _, path := range []string{yamlPath, jsonPath} {
		config, err := NewFileSource(path).Load()
		require.NoError(t, err, path)

		assert.True(t, config.Enabled)
		assert.True(t, config.Settings.CacheEnabled)
		assert.Equal(t, 300, config.Settings.CacheTTL)
		assert.Equal(t, FailModeDeny, config.Settings.FailMode)
		assert.Equal(t, []string{"alice", "bob"}, config.Groups["admins"])

		projects := config.PathRules["/projects"]
		require.NotNil(t, projects, path)
		assert.True(t, projects.Inherits())
		require.Len(t, projects.Rules, 1)
		assert.Equal(t, 10, projects.Rules[0].Priority)
		assert.Equal(t, []string{"192.168.1.0/24"}, projects.Rules[0].IPInclusions)

		restricted := config.PathRules["/restricted"]
		require.NotNil(t, restricted, path)
		assert.False(t, restricted.Inherits())
		assert.Equal(t, []string{"@admins"}, restricted.Rules[0].Users)
	}
}

func TestFileSourceErrors(t *testing.T) {
	_, err := NewFileSource("/nonexistent/acl.yml").Load()
	assert.Error(t, err)

	_, err = NewFileSource(writeTempConfig(t, "acl.yml", "enabled: [broken")).Load()
	assert.Error(t, err)

	_, err = NewFileSource(writeTempConfig(t, "acl.json", "{broken")).Load()
	assert.Error(t, err)
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{
			name:   "empty config defaults fail_mode",
			config: &Config{},
		},
		{
			name:    "unknown fail_mode",
			config:  &Config{Settings: Settings{FailMode: "explode"}},
			wantErr: "unknown fail_mode",
		},
		{
			name: "rule without users",
			config: &Config{PathRules: map[string]*PathRuleSet{
				"/p": {Rules: []Rule{{Permissions: []string{"read"}}}},
			}},
			wantErr: "no user specifiers",
		},
		{
			name: "invalid inclusion pattern",
			config: &Config{PathRules: map[string]*PathRuleSet{
				"/p": {Rules: []Rule{{Users: []string{"x"}, IPInclusions: []string{"not-an-ip"}, Permissions: []string{"read"}}}},
			}},
			wantErr: "invalid ip_inclusions pattern",
		},
		{
			name: "invalid exclusion pattern",
			config: &Config{PathRules: map[string]*PathRuleSet{
				"/p": {Rules: []Rule{{Users: []string{"x"}, IPExclusions: []string{"10.0.0.0/99"}, Permissions: []string{"read"}}}},
			}},
			wantErr: "invalid ip_exclusions pattern",
		},
		{
			name: "traversal in path key",
			config: &Config{PathRules: map[string]*PathRuleSet{
				"/a/../b": {Rules: []Rule{{Users: []string{"x"}, Permissions: []string{"read"}}}},
			}},
			wantErr: "path_rules key",
		},
		{
			name: "colliding path keys",
			config: &Config{PathRules: map[string]*PathRuleSet{
				"/a/": {Rules: []Rule{{Users: []string{"x"}, Permissions: []string{"read"}}}},
				"//a": {Rules: []Rule{{Users: []string{"y"}, Permissions: []string{"read"}}}},
			}},
			wantErr: "collide",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.normalize()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				assert.Equal(t, FailModeDeny, tt.config.Settings.FailMode)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNormalizeAssignsOrderAndCanonicalKeys(t *testing.T) {
	config := &Config{PathRules: map[string]*PathRuleSet{
		"/projects//alpha/": {Rules: []Rule{
			{Users: []string{"a"}, Permissions: []string{"read"}},
			{Users: []string{"b"}, Permissions: []string{"write"}},
		}},
	}}
	require.NoError(t, config.normalize())

	ruleSet := config.PathRules["/projects/alpha"]
	require.NotNil(t, ruleSet)
	assert.Equal(t, 0, ruleSet.Rules[0].Order)
	assert.Equal(t, 1, ruleSet.Rules[1].Order)
}
