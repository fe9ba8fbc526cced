// Package session implements the SFTP client session against a transfer
// server endpoint: SSH connection with pinned host-key verification, SFTP
// channel management, and file upload into bucket-backed paths.
package session

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// DefaultPort is the SSH port transfer servers listen on.
const DefaultPort = 22

// defaultDialTimeout bounds the TCP+handshake phase of Dial.
const defaultDialTimeout = 30 * time.Second

// DialOptions configures a Dial call. Host and User are required. A nil
// HostKeyCallback is rejected: connections must verify the host key, either
// through a HostKeyStore callback or an explicit pin.
type DialOptions struct {
	Host string
	Port int
	User string

	// Signer authenticates the user via public key.
	Signer ssh.Signer

	// HostKeyCallback verifies the server's host key. Required.
	HostKeyCallback ssh.HostKeyCallback

	// Timeout bounds connection establishment. Defaults to 30s.
	Timeout time.Duration
}

// Session is an open SSH connection with an SFTP channel on top of it.
// A Session is not safe for concurrent use.
type Session struct {
	sshClient  *ssh.Client
	sftpClient *sftp.Client
}

// Dial opens an SSH connection to the endpoint and starts an SFTP channel.
// The caller owns the returned Session and must Close it.
func Dial(opts DialOptions) (*Session, error) {
	if opts.Host == "" {
		return nil, errors.New("dial: host is required")
	}
	if opts.Signer == nil {
		return nil, errors.New("dial: signer is required")
	}
	if opts.HostKeyCallback == nil {
		return nil, errors.New("dial: host key callback is required; refusing unverified connection")
	}

	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}

	config := &ssh.ClientConfig{
		User:            opts.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(opts.Signer)},
		HostKeyCallback: opts.HostKeyCallback,
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(opts.Host, strconv.Itoa(port))
	sshClient, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("open sftp channel on %s: %w", addr, err)
	}

	return &Session{sshClient: sshClient, sftpClient: sftpClient}, nil
}

// RemotePath builds the SFTP path for an object named name in the given
// bucket-backed directory.
func RemotePath(bucket, name string) string {
	return path.Join(bucket, name)
}

// Put uploads the local file to <bucket>/<name> through the SFTP channel.
func (s *Session) Put(localPath, bucket, name string) error {
	local, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local file: %w", err)
	}
	defer local.Close()

	remotePath := RemotePath(bucket, name)
	remote, err := s.sftpClient.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote file %s: %w", remotePath, err)
	}

	if _, err := io.Copy(remote, local); err != nil {
		remote.Close()
		return fmt.Errorf("upload %s to %s: %w", localPath, remotePath, err)
	}

	if err := remote.Close(); err != nil {
		return fmt.Errorf("close remote file %s: %w", remotePath, err)
	}
	return nil
}

// Close shuts down the SFTP channel and the SSH connection. The channel is
// closed first so in-flight requests drain before the transport drops.
func (s *Session) Close() error {
	var errs []error
	if err := s.sftpClient.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sftp channel: %w", err))
	}
	if err := s.sshClient.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close ssh connection: %w", err))
	}
	return errors.Join(errs...)
}
