package whitelist

import (
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"
)

// Checker reports whether a client identity is exempt from rate limiting.
// Entries are IP addresses, CIDR ranges or literal identities.
type Checker struct {
	networks []*net.IPNet
	literals map[string]struct{}
	logger   *zap.Logger
}

// NewChecker creates a new whitelist checker
func NewChecker(entries []string, logger *zap.Logger) (*Checker, error) {
	c := &Checker{
		literals: make(map[string]struct{}),
		logger:   logger,
	}

	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, network, err := net.ParseCIDR(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid whitelist entry %q: %w", entry, err)
			}
			c.networks = append(c.networks, network)
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			entry = ip.String()
		}
		c.literals[entry] = struct{}{}
	}

	if c.Len() > 0 && logger != nil {
		logger.Info("Initialized whitelist checker",
			zap.Int("networks", len(c.networks)),
			zap.Int("addresses", len(c.literals)))
	}

	return c, nil
}

// IsWhitelisted checks if the identity is exempt
func (c *Checker) IsWhitelisted(identity string) bool {
	if c.Len() == 0 {
		return false
	}

	identity = strings.ToLower(strings.TrimSpace(identity))
	ip := net.ParseIP(identity)
	if ip != nil {
		identity = ip.String()
	}

	if _, ok := c.literals[identity]; ok {
		c.debug(identity)
		return true
	}
	if ip == nil {
		return false
	}
	for _, network := range c.networks {
		if network.Contains(ip) {
			c.debug(identity)
			return true
		}
	}

	return false
}

// Len returns the number of configured entries
func (c *Checker) Len() int {
	return len(c.networks) + len(c.literals)
}

func (c *Checker) debug(identity string) {
	if c.logger != nil {
		c.logger.Debug("Identity is whitelisted", zap.String("identity", identity))
	}
}
