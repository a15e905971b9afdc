package ftpserver

import (
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	ftpserverlib "github.com/fclairamb/ftpserverlib"
	"github.com/spf13/afero"

	"github.com/fjordsec/fjordftpd/pkg/authentication"
	"github.com/fjordsec/fjordftpd/pkg/ipmatch"
	"github.com/fjordsec/fjordftpd/pkg/logging"
	"github.com/fjordsec/fjordftpd/pkg/pathacl"
	"github.com/fjordsec/fjordftpd/pkg/pathmatch"
	"github.com/fjordsec/fjordftpd/pkg/users"
)

// Config holds FTP server configuration
type Config struct {
	ListenAddr           string
	Port                 int
	RootDir              string // Directory FTP users are confined to
	HomePattern          string // Home directory pattern, e.g. "/home/%s" (%s is the username)
	PassiveTransferPorts [2]int
	TLSCertFile          string
	TLSKeyFile           string
	IdleTimeout          int // Seconds before an idle connection is dropped
	MaxConnections       int32
}

// Server wraps ftpserverlib with authentication and per-path access control.
type Server struct {
	config        *Config
	engine        *pathacl.Engine
	authenticator *authentication.Authenticator
	server        *ftpserverlib.FtpServer
}

// New creates a new FTP server
func New(config *Config, engine *pathacl.Engine, authenticator *authentication.Authenticator) (*Server, error) {
	if _, err := os.Stat(config.RootDir); err != nil {
		return nil, fmt.Errorf("root directory does not exist: %w", err)
	}

	s := &Server{
		config:        config,
		engine:        engine,
		authenticator: authenticator,
	}

	driver := &ftpDriver{server: s}
	s.server = ftpserverlib.NewFtpServer(driver)
	s.server.Logger = NewFTPLogger(logging.App)

	return s, nil
}

// ListenAndServe starts the server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Stop stops the server
func (s *Server) Stop() error {
	return s.server.Stop()
}

// ftpDriver implements ftpserverlib.MainDriver
type ftpDriver struct {
	server  *Server
	clients atomic.Int32
}

// GetSettings returns server settings
func (d *ftpDriver) GetSettings() (*ftpserverlib.Settings, error) {
	return &ftpserverlib.Settings{
		ListenAddr: fmt.Sprintf("%s:%d", d.server.config.ListenAddr, d.server.config.Port),
		PassiveTransferPortRange: &ftpserverlib.PortRange{
			Start: d.server.config.PassiveTransferPorts[0],
			End:   d.server.config.PassiveTransferPorts[1],
		},
		IdleTimeout: d.server.config.IdleTimeout,
	}, nil
}

// ClientConnected is called when a client connects
func (d *ftpDriver) ClientConnected(cc ftpserverlib.ClientContext) (string, error) {
	if max := d.server.config.MaxConnections; max > 0 && d.clients.Add(1) > max {
		d.clients.Add(-1)
		return "", fmt.Errorf("too many connections")
	}
	return "FjordFTPD ready", nil
}

// ClientDisconnected is called when a client disconnects
func (d *ftpDriver) ClientDisconnected(cc ftpserverlib.ClientContext) {
	if d.server.config.MaxConnections > 0 {
		d.clients.Add(-1)
	}
}

// clientIP extracts the bare address from a connection's remote endpoint.
func clientIP(cc ftpserverlib.ClientContext) string {
	addr := cc.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// AuthUser authenticates the user and returns a ClientDriver confined to the
// server root. Account-level IP restrictions are checked at login; per-path
// restrictions are evaluated on every operation.
func (d *ftpDriver) AuthUser(cc ftpserverlib.ClientContext, username, pass string) (ftpserverlib.ClientDriver, error) {
	ip := clientIP(cc)

	user, err := d.server.authenticator.Authenticate(username, pass)
	if err != nil {
		logging.Access.LogAuth("LOGIN", username, "failure", "ip", ipmatch.Anonymize(ip), "error", err.Error())
		return nil, err
	}

	if len(user.IPInclusions) > 0 || len(user.IPExclusions) > 0 {
		if !ipmatch.IsAllowed(ip, user.IPInclusions, user.IPExclusions) {
			logging.Access.LogAuth("LOGIN", username, "failure", "ip", ipmatch.Anonymize(ip), "reason", "address not permitted")
			return nil, authentication.ErrInvalidCredentials
		}
	}
	logging.Access.LogAuth("LOGIN", username, "success", "ip", ipmatch.Anonymize(ip))

	homePath := user.HomeDir
	if homePath == "" && d.server.config.HomePattern != "" {
		homePath = fmt.Sprintf(d.server.config.HomePattern, username)
	}
	if homePath != "" {
		normalized, err := pathmatch.Normalize(homePath)
		if err != nil {
			return nil, fmt.Errorf("invalid home directory: %w", err)
		}
		homePath = normalized
		if err := os.MkdirAll(filepath.Join(d.server.config.RootDir, homePath), 0755); err != nil {
			return nil, fmt.Errorf("creating home directory: %w", err)
		}
		cc.SetPath(homePath)
	} else {
		cc.SetPath("/")
	}

	return &ftpClient{
		server:   d.server,
		user:     user,
		clientIP: ip,
		fs:       afero.NewBasePathFs(afero.NewOsFs(), d.server.config.RootDir),
	}, nil
}

// GetTLSConfig returns TLS config
func (d *ftpDriver) GetTLSConfig() (*tls.Config, error) {
	if d.server.config.TLSCertFile == "" || d.server.config.TLSKeyFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(d.server.config.TLSCertFile, d.server.config.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading TLS keypair: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

// ftpClient implements ftpserverlib.ClientDriver and afero.Fs. Every
// filesystem operation is mapped to a permission token and checked against
// the ACL engine before it touches the backing filesystem.
type ftpClient struct {
	server   *Server
	user     *users.User
	clientIP string
	fs       afero.Fs
}

// resolvePath canonicalizes a client-supplied path and rejects anything that
// tries to climb out of the virtual root.
func (c *ftpClient) resolvePath(name string) (string, error) {
	path, err := pathmatch.Normalize(name)
	if err != nil {
		return "", os.ErrPermission
	}
	return path, nil
}

func (c *ftpClient) allowed(path, permission string) bool {
	return c.server.engine.CheckPermission(c.user, c.clientIP, path, permission)
}

// GetFS returns the filesystem - part of ftpserverlib.ClientDriver interface
func (c *ftpClient) GetFS() afero.Fs {
	return c.fs
}

// ReadDir is required by ftpserverlib for directory listing
func (c *ftpClient) ReadDir(name string) ([]os.FileInfo, error) {
	path, err := c.resolvePath(name)
	if err != nil {
		return nil, err
	}
	if !c.allowed(path, pathacl.PermRead) {
		return nil, os.ErrPermission
	}

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Readdir(-1)
}

// DeleteFile is required by ftpserverlib for the DELE command
func (c *ftpClient) DeleteFile(name string) error {
	path, err := c.resolvePath(name)
	if err != nil {
		return err
	}
	if !c.allowed(path, pathacl.PermDelete) {
		return os.ErrPermission
	}
	return c.fs.Remove(path)
}

// MakeDirectory is required by ftpserverlib for the MKD command
func (c *ftpClient) MakeDirectory(name string) error {
	path, err := c.resolvePath(name)
	if err != nil {
		return err
	}
	if !c.allowed(path, pathacl.PermWrite) {
		return os.ErrPermission
	}
	return c.fs.MkdirAll(path, 0755)
}

// Create creates a new file - part of afero.Fs interface
func (c *ftpClient) Create(name string) (afero.File, error) {
	path, err := c.resolvePath(name)
	if err != nil {
		return nil, err
	}
	if !c.allowed(path, pathacl.PermUpload) {
		return nil, os.ErrPermission
	}
	return c.fs.Create(path)
}

// Mkdir creates a directory - part of afero.Fs interface
func (c *ftpClient) Mkdir(name string, perm os.FileMode) error {
	path, err := c.resolvePath(name)
	if err != nil {
		return err
	}
	if !c.allowed(path, pathacl.PermWrite) {
		return os.ErrPermission
	}
	return c.fs.Mkdir(path, perm)
}

// MkdirAll creates a directory and all parents - part of afero.Fs interface
func (c *ftpClient) MkdirAll(path string, perm os.FileMode) error {
	resolved, err := c.resolvePath(path)
	if err != nil {
		return err
	}
	if !c.allowed(resolved, pathacl.PermWrite) {
		return os.ErrPermission
	}
	return c.fs.MkdirAll(resolved, perm)
}

// Open opens a file for reading - part of afero.Fs interface
func (c *ftpClient) Open(name string) (afero.File, error) {
	path, err := c.resolvePath(name)
	if err != nil {
		return nil, err
	}
	if !c.allowed(path, pathacl.PermDownload) {
		return nil, os.ErrPermission
	}
	return c.fs.Open(path)
}

// OpenFile opens a file with the given flags - part of afero.Fs interface
func (c *ftpClient) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	path, err := c.resolvePath(name)
	if err != nil {
		return nil, err
	}

	permission := pathacl.PermDownload
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		permission = pathacl.PermUpload
	}
	if !c.allowed(path, permission) {
		return nil, os.ErrPermission
	}
	return c.fs.OpenFile(path, flag, perm)
}

// Remove removes a file - part of afero.Fs interface
func (c *ftpClient) Remove(name string) error {
	path, err := c.resolvePath(name)
	if err != nil {
		return err
	}
	if !c.allowed(path, pathacl.PermDelete) {
		return os.ErrPermission
	}
	return c.fs.Remove(path)
}

// RemoveAll removes a directory tree - part of afero.Fs interface
func (c *ftpClient) RemoveAll(path string) error {
	resolved, err := c.resolvePath(path)
	if err != nil {
		return err
	}
	if !c.allowed(resolved, pathacl.PermDelete) {
		return os.ErrPermission
	}
	return c.fs.RemoveAll(resolved)
}

// Rename renames a file - part of afero.Fs interface
func (c *ftpClient) Rename(oldname, newname string) error {
	oldPath, err := c.resolvePath(oldname)
	if err != nil {
		return err
	}
	newPath, err := c.resolvePath(newname)
	if err != nil {
		return err
	}
	if !c.allowed(oldPath, pathacl.PermWrite) || !c.allowed(newPath, pathacl.PermWrite) {
		return os.ErrPermission
	}
	return c.fs.Rename(oldPath, newPath)
}

// Stat returns file info - part of afero.Fs interface
func (c *ftpClient) Stat(name string) (os.FileInfo, error) {
	path, err := c.resolvePath(name)
	if err != nil {
		return nil, err
	}
	if !c.allowed(path, pathacl.PermRead) {
		return nil, os.ErrPermission
	}
	return c.fs.Stat(path)
}

// Name returns the name of the filesystem - part of afero.Fs interface
func (c *ftpClient) Name() string {
	return "FjordFTPD"
}

// Chmod changes file mode - part of afero.Fs interface
func (c *ftpClient) Chmod(name string, mode os.FileMode) error {
	path, err := c.resolvePath(name)
	if err != nil {
		return err
	}
	if !c.allowed(path, pathacl.PermChmod) {
		return os.ErrPermission
	}
	return c.fs.Chmod(path, mode)
}

// Chown changes file owner - part of afero.Fs interface
func (c *ftpClient) Chown(name string, uid, gid int) error {
	path, err := c.resolvePath(name)
	if err != nil {
		return err
	}
	if !c.allowed(path, pathacl.PermChmod) {
		return os.ErrPermission
	}
	return c.fs.Chown(path, uid, gid)
}

// Chtimes changes file times - part of afero.Fs interface
func (c *ftpClient) Chtimes(name string, atime, mtime time.Time) error {
	path, err := c.resolvePath(name)
	if err != nil {
		return err
	}
	if !c.allowed(path, pathacl.PermWrite) {
		return os.ErrPermission
	}
	return c.fs.Chtimes(path, atime, mtime)
}
