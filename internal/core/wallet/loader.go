package wallet

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/vietddude/cycler/internal/core/domain"
)

// DefaultUserAgent is used when no user agent file is available.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Files locates the pool inputs.
type Files struct {
	PrivateKeys string `yaml:"private_keys"`
	Proxies     string `yaml:"proxies"`
	Validators  string `yaml:"validators"`
	UserAgents  string `yaml:"user_agents"`
}

// Loader reads accounts, validators and user agents from text files.
type Loader struct {
	files   Files
	network domain.Network
	log     *slog.Logger
}

// NewLoader creates a loader for network.
func NewLoader(files Files, network domain.Network) *Loader {
	return &Loader{files: files, network: network, log: slog.Default()}
}

// LoadPool parses the key file. Blank lines and # comments are ignored.
// Every other line consumes an ordinal even when it fails to parse, so
// indices stay stable. Proxy line N belongs to key line N.
func (l *Loader) LoadPool() ([]domain.Account, error) {
	keyLines, err := readLines(l.files.PrivateKeys)
	if err != nil {
		return nil, fmt.Errorf("%w: read private keys: %w", domain.ErrConfiguration, err)
	}

	var proxyLines []string
	if l.files.Proxies != "" {
		proxyLines, err = readLines(l.files.Proxies)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: read proxies: %w", domain.ErrConfiguration, err)
		}
	}

	var (
		pool    []domain.Account
		ordinal int
		skipped int
	)
	for lineNo, line := range keyLines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ordinal++

		kp, err := ParsePrivateKey(line)
		if err != nil {
			skipped++
			l.log.Warn("Skipping invalid private key", "account", fmt.Sprintf("PK%d", ordinal), "line", lineNo+1, "error", err)
			continue
		}

		acct := domain.Account{
			Index:      ordinal,
			Address:    kp.Address(),
			Credential: kp,
		}
		if lineNo < len(proxyLines) {
			proxy, err := ParseProxy(proxyLines[lineNo])
			if err != nil {
				l.log.Warn("Invalid proxy, using direct connection", "account", acct.Label(), "error", err)
			} else {
				acct.Proxy = proxy
			}
		}
		pool = append(pool, acct)
	}

	l.log.Info("Loaded account pool", "accounts", len(pool), "skipped", skipped)
	return pool, nil
}

// LoadValidators reads validator addresses (lines starting with 0x). When
// none are found on a non-production network the built-in list is used.
func (l *Loader) LoadValidators() ([]string, error) {
	var validators []string
	if l.files.Validators != "" {
		lines, err := readLines(l.files.Validators)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: read validators: %w", domain.ErrConfiguration, err)
		}
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "0x") {
				validators = append(validators, line)
			}
		}
	}

	if len(validators) == 0 && !l.network.IsProduction() {
		l.log.Info("No validators configured, using built-in list", "network", l.network)
		validators = append(validators, domain.DefaultValidators...)
	}
	return validators, nil
}

// LoadUserAgents reads one user agent per line, falling back to DefaultUserAgent.
func (l *Loader) LoadUserAgents() []string {
	var agents []string
	if l.files.UserAgents != "" {
		lines, err := readLines(l.files.UserAgents)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			l.log.Warn("Failed to read user agents", "error", err)
		}
		for _, line := range lines {
			if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "#") {
				agents = append(agents, line)
			}
		}
	}
	if len(agents) == 0 {
		agents = []string{DefaultUserAgent}
	}
	return agents
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
