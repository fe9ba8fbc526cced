package session

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// HostKeyStore manages SSH host key fingerprints for transfer endpoints
// using trust-on-first-use (TOFU) semantics. Keys are stored in a simple
// key=value file at <configDir>/known_hosts, keyed by endpoint hostname.
type HostKeyStore struct {
	dir string
}

// NewHostKeyStore creates a HostKeyStore that reads and writes keys
// in the given directory.
func NewHostKeyStore(configDir string) *HostKeyStore {
	return &HostKeyStore{dir: configDir}
}

// path returns the filesystem path to the known_hosts file.
func (s *HostKeyStore) path() string {
	return filepath.Join(s.dir, "known_hosts")
}

// RecordKey saves or updates the fingerprint for the given endpoint.
func (s *HostKeyStore) RecordKey(host, fingerprint string) error {
	entries, err := s.readAll()
	if err != nil {
		return err
	}

	entries[host] = fingerprint
	return s.writeAll(entries)
}

// CheckKey compares the given fingerprint against the stored one for host.
// Returns (true, fingerprint, nil) on match, (false, existingFingerprint,
// nil) on mismatch, or (false, "", nil) if no key is stored.
func (s *HostKeyStore) CheckKey(host, fingerprint string) (matched bool, existingFingerprint string, err error) {
	entries, err := s.readAll()
	if err != nil {
		return false, "", err
	}

	existing, ok := entries[host]
	if !ok {
		return false, "", nil
	}

	return existing == fingerprint, existing, nil
}

// RemoveKey deletes the stored fingerprint for the given endpoint.
// Does not error if the endpoint has no stored key.
func (s *HostKeyStore) RemoveKey(host string) error {
	entries, err := s.readAll()
	if err != nil {
		return err
	}

	if _, ok := entries[host]; !ok {
		return nil
	}

	delete(entries, host)
	return s.writeAll(entries)
}

// Callback returns an ssh.HostKeyCallback enforcing TOFU pinning: the first
// connection to an endpoint records its key fingerprint, and every later
// connection must present the same key or the handshake is aborted. A new
// transfer server gets a fresh endpoint hostname, so a changed fingerprint
// for the same hostname is always suspicious.
func (s *HostKeyStore) Callback() ssh.HostKeyCallback {
	return func(hostname string, _ net.Addr, key ssh.PublicKey) error {
		// Strip the port; the store is keyed by bare hostname.
		host := hostname
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}

		fingerprint := ssh.FingerprintSHA256(key)

		matched, existing, err := s.CheckKey(host, fingerprint)
		if err != nil {
			return fmt.Errorf("check host key for %s: %w", host, err)
		}
		if matched {
			return nil
		}
		if existing != "" {
			return fmt.Errorf("host key mismatch for %s: stored %s, presented %s", host, existing, fingerprint)
		}

		// First contact: pin the key.
		if err := s.RecordKey(host, fingerprint); err != nil {
			return fmt.Errorf("record host key for %s: %w", host, err)
		}
		return nil
	}
}

// readAll parses the known_hosts file into a map of host -> fingerprint.
func (s *HostKeyStore) readAll() (map[string]string, error) {
	entries := make(map[string]string)

	f, err := os.Open(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, fmt.Errorf("open known_hosts: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			entries[parts[0]] = parts[1]
		}
	}

	return entries, scanner.Err()
}

// writeAll persists the entries map to the known_hosts file with 0600 permissions.
func (s *HostKeyStore) writeAll(entries map[string]string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var b strings.Builder
	for host, fp := range entries {
		fmt.Fprintf(&b, "%s=%s\n", host, fp)
	}

	return os.WriteFile(s.path(), []byte(b.String()), 0o600)
}
