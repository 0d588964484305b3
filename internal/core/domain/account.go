package domain

import (
	"crypto/ed25519"
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// Credential signs transaction digests on behalf of an account.
type Credential interface {
	PublicKey() ed25519.PublicKey
	Sign(digest []byte) []byte
}

// Account is one signing identity of the pool. Immutable once loaded.
type Account struct {
	Index      int // 1-based position among key lines, stable across reloads
	Address    string
	Credential Credential
	Proxy      *ProxyDescriptor // nil means direct connection
}

// Label is the short name used in logs and tables.
func (a Account) Label() string {
	return fmt.Sprintf("PK%d", a.Index)
}

// ShortAddress trims the address for display.
func (a Account) ShortAddress() string {
	if len(a.Address) <= 14 {
		return a.Address
	}
	return a.Address[:8] + "..." + a.Address[len(a.Address)-6:]
}

type ProxyFormat string

const (
	ProxyFormatNone             ProxyFormat = "none"
	ProxyFormatURL              ProxyFormat = "url"
	ProxyFormatAuthAtHost       ProxyFormat = "auth_at_host"
	ProxyFormatHostPort         ProxyFormat = "host_port"
	ProxyFormatHostPortUserPass ProxyFormat = "host_port_user_pass"
)

// ProxyDescriptor is a parsed forward proxy route.
type ProxyDescriptor struct {
	Scheme   string
	Host     string
	Port     int
	Username string
	Password string
	Format   ProxyFormat
}

// Validate checks the descriptor invariants.
func (p ProxyDescriptor) Validate() error {
	if p.Host == "" {
		return fmt.Errorf("%w: proxy host is empty", ErrConfiguration)
	}
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("%w: proxy port %d out of range", ErrConfiguration, p.Port)
	}
	if (p.Username == "") != (p.Password == "") {
		return fmt.Errorf("%w: proxy username and password must be set together", ErrConfiguration)
	}
	return nil
}

// URL renders the descriptor for http.ProxyURL.
func (p ProxyDescriptor) URL() *url.URL {
	scheme := p.Scheme
	if scheme == "" {
		scheme = "http"
	}
	u := &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
	}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// Display renders the route without credentials.
func (p *ProxyDescriptor) Display() string {
	if p == nil {
		return "LOCAL_IP"
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}
