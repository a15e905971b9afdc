package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fjordsec/fjordftpd/pkg/authentication"
	"github.com/fjordsec/fjordftpd/pkg/ftpserver"
	"github.com/fjordsec/fjordftpd/pkg/logging"
	"github.com/fjordsec/fjordftpd/pkg/pathacl"
	"github.com/fjordsec/fjordftpd/pkg/users"
)

var (
	version     = "dev" // Set during build
	cfgFile     string
	showVersion bool
)

func main() {
	cobra.CheckErr(rootCmd.Execute())
}

var rootCmd = &cobra.Command{
	Use:           "fjordftpd",
	Short:         "FjordFTPD file server",
	SilenceUsage:  false,
	SilenceErrors: true,
	Long: `FjordFTPD - FTP server with path-scoped access control

Every filesystem operation is authorized against a rules file that grants
permission sets per folder tree, user and client network. Rules inherit
along ancestor paths and can be cut off or overridden per folder.

Configuration file must be in JSON format with the following structure:
{
    "listen_addr": "0.0.0.0",
    "port": 2121,
    "ftp_root_dir": "/srv/ftp",
    "home_pattern": "home/%s",
    "users_file_path": "/etc/fjordftpd/users.json",
    "acl_file_path": "/etc/fjordftpd/acl.yml",
    "tls_cert_file": "/path/to/cert.pem",
    "tls_key_file": "/path/to/key.pem",
    "passive_port_range": [50000, 50100],
    "max_connections": 10,
    "idle_timeout": 300,
    "user_cache_time": 60,
    "access_log_path": "/var/log/fjordftpd/access.log",
    "app_log_path": "/var/log/fjordftpd/app.log",
    "log_level": "info"
}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("FjordFTPD %s\n", version)
			return nil
		}

		config, err := loadServerConfig()
		if err != nil {
			return err
		}

		if err := logging.Initialize(config.AccessLogPath, config.AppLogPath, logging.LogLevel(config.LogLevel)); err != nil {
			return fmt.Errorf("failed to initialize logging: %v", err)
		}

		repository := users.NewRepository(
			users.NewFileSource(config.UsersFilePath),
			time.Duration(config.UserCacheTime)*time.Second,
		)
		authenticator, err := authentication.NewAuthenticator(repository, nil)
		if err != nil {
			return fmt.Errorf("failed to create authenticator: %v", err)
		}

		engine := pathacl.NewEngine(pathacl.NewFileSource(config.ACLFilePath), pathacl.AccessLogObserver{})
		if !engine.IsEnabled() {
			logging.App.Warn("Access control is disabled; all operations will be permitted")
		}

		server, err := ftpserver.New(&ftpserver.Config{
			ListenAddr:           config.ListenAddr,
			Port:                 config.Port,
			RootDir:              config.FTPRootDir,
			HomePattern:          config.HomePattern,
			PassiveTransferPorts: config.PassivePortRange,
			TLSCertFile:          config.TLSCertFile,
			TLSKeyFile:           config.TLSKeyFile,
			IdleTimeout:          config.IdleTimeout,
			MaxConnections:       int32(config.MaxConnections),
		}, engine, authenticator)
		if err != nil {
			return fmt.Errorf("failed to create FTP server: %v", err)
		}

		fmt.Printf("Starting FjordFTPD %s on %s:%d\n", version, config.ListenAddr, config.Port)
		return server.ListenAndServe()
	},
}

// loadServerConfig reads the --config file, resolving it to an absolute path
// first so relative paths inside it anchor consistently.
func loadServerConfig() (*Config, error) {
	if cfgFile == "" {
		return nil, fmt.Errorf("config file is required (use --config)")
	}

	if !filepath.IsAbs(cfgFile) {
		abs, err := filepath.Abs(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path: %v", err)
		}
		cfgFile = abs
	}

	var config Config
	if err := LoadConfig(cfgFile, &config); err != nil {
		return nil, fmt.Errorf("failed to load config: %v", err)
	}
	return &config, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file (required)")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show version information")
}
