package netutil

import (
	"net"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/idna"
)

const (
	maxDomainNameSize = 253
)

var ErrInvalidUrl = errors.New("invalid url")

// ValidateUrl parses value and checks it uses one of schemes and names a
// host, either an IP literal or a registrable domain name.
func ValidateUrl(value string, schemes ...string) (*url.URL, error) {
	value = strings.TrimSpace(value)
	if len(value) == 0 {
		return nil, errors.Wrap(ErrInvalidUrl, "url is empty")
	}

	parsed, err := url.Parse(value)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidUrl, err.Error())
	}

	var allowed bool
	for _, scheme := range schemes {
		if parsed.Scheme == scheme {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, errors.Wrapf(ErrInvalidUrl, "url scheme must be one of %s", strings.Join(schemes, ", "))
	}

	hostname := parsed.Hostname()
	if len(hostname) == 0 {
		return nil, errors.Wrap(ErrInvalidUrl, "host component missing")
	}

	if net.ParseIP(hostname) == nil {
		if err := validateDomainName(hostname); err != nil {
			return nil, errors.Wrap(ErrInvalidUrl, err.Error())
		}
	}

	return parsed, nil
}

// ValidateHttpUrl is ValidateUrl for http and https, or only https when
// requireSecureConnection is set.
func ValidateHttpUrl(value string, requireSecureConnection bool) (*url.URL, error) {
	if requireSecureConnection {
		return ValidateUrl(value, "https")
	}
	return ValidateUrl(value, "http", "https")
}

// HostKey returns the lower-cased host (with port) of a valid HTTP URL. It is
// used to partition per-host rate limits.
func HostKey(value string) (string, error) {
	parsed, err := ValidateHttpUrl(value, false)
	if err != nil {
		return "", err
	}
	return strings.ToLower(parsed.Host), nil
}

func validateDomainName(value string) error {
	if len(value) > maxDomainNameSize {
		return errors.New("domain name length exceeds limit")
	}
	if _, err := idna.Registration.ToASCII(strings.ToLower(value)); err != nil {
		return errors.Wrap(err, "domain name is invalid")
	}
	return nil
}
