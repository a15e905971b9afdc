package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the FTP server configuration
type Config struct {
	// Core server settings
	ListenAddr string `json:"listen_addr"`
	Port       int    `json:"port"`

	// Directory settings
	FTPRootDir  string `json:"ftp_root_dir"` // Root directory for FTP access
	HomePattern string `json:"home_pattern"` // Pattern for user home directories (e.g., "home/%s")

	// Data files
	UsersFilePath string `json:"users_file_path"` // Path to the user accounts file
	ACLFilePath   string `json:"acl_file_path"`   // Path to the access-control rules file

	// Security settings
	TLSCertFile string `json:"tls_cert_file,omitempty"` // Optional: Path to TLS certificate file
	TLSKeyFile  string `json:"tls_key_file,omitempty"`  // Optional: Path to TLS private key file

	// Performance settings
	PassivePortRange [2]int `json:"passive_port_range"` // Range of ports for passive mode
	MaxConnections   int    `json:"max_connections"`    // Maximum concurrent connections
	IdleTimeout      int    `json:"idle_timeout"`       // Connection idle timeout in seconds

	// Cache settings
	UserCacheTime int `json:"user_cache_time"` // How long to cache account data (seconds)

	// Logging settings
	AccessLogPath string `json:"access_log_path,omitempty"` // Optional: Path to access log file
	AppLogPath    string `json:"app_log_path,omitempty"`    // Optional: Path to application log file
	LogLevel      string `json:"log_level,omitempty"`       // debug, info, warn or error
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	// Relative paths are resolved against the config file location
	configDir := filepath.Dir(path)
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
	resolve(&config.FTPRootDir)
	resolve(&config.UsersFilePath)
	resolve(&config.ACLFilePath)
	resolve(&config.TLSCertFile)
	resolve(&config.TLSKeyFile)
	resolve(&config.AccessLogPath)
	resolve(&config.AppLogPath)

	if config.UsersFilePath == "" {
		return fmt.Errorf("users_file_path is required")
	}
	if config.ACLFilePath == "" {
		return fmt.Errorf("acl_file_path is required")
	}

	// Defaults for optional settings
	if config.Port == 0 {
		config.Port = 2121
	}
	if config.PassivePortRange[0] == 0 {
		config.PassivePortRange[0] = 50000
	}
	if config.PassivePortRange[1] == 0 {
		config.PassivePortRange[1] = 50100
	}
	if config.MaxConnections == 0 {
		config.MaxConnections = 10
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = 300
	}
	if config.UserCacheTime == 0 {
		config.UserCacheTime = 60
	}

	return nil
}
