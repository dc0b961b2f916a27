package source

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/miekg/dns"
)

// ErrInvalidAddress indicates a malformed "host:port" server address.
var ErrInvalidAddress = errors.New("invalid server address")

// ValidateAddress checks that addr is "host:port" where host is an IP
// address or a syntactically valid domain name and port is in 1-65535.
func ValidateAddress(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, err.Error())
	}

	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%w: bad port %q", ErrInvalidAddress, port)
	}

	if host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidAddress)
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	if _, ok := dns.IsDomainName(host); !ok {
		return fmt.Errorf("%w: bad host %q", ErrInvalidAddress, host)
	}
	return nil
}
