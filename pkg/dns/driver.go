// Package dns resolves bare domain names to the DID published in their
// "_did" URI record. The result carries no document; it only redirects.
package dns

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strings"
	"time"

	mdns "github.com/miekg/dns"

	"github.com/b-open-io/did-resolver/pkg/did"
	"github.com/b-open-io/did-resolver/pkg/driver"
)

// DefaultResolvConf is read when no servers are configured.
const DefaultResolvConf = "/etc/resolv.conf"

var domainPattern = regexp.MustCompile(Pattern)

// Driver looks up "_did.<domain>" URI records.
type Driver struct {
	client  *mdns.Client
	servers []string
	logger  *slog.Logger
}

// NewDriver creates a driver querying servers in order. Servers without a
// port use 53. With no servers the system resolver configuration is read
// from resolvConf.
func NewDriver(servers []string, resolvConf string, timeout time.Duration, logger *slog.Logger) (*Driver, error) {
	if logger == nil {
		logger = slog.Default()
	}

	addrs := make([]string, 0, len(servers))
	for _, s := range servers {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		addrs = append(addrs, s)
	}

	if len(addrs) == 0 {
		if resolvConf == "" {
			resolvConf = DefaultResolvConf
		}
		conf, err := mdns.ClientConfigFromFile(resolvConf)
		if err != nil {
			return nil, fmt.Errorf("%w: unable to create DNS resolver: %v", driver.ErrConfiguration, err)
		}
		for _, s := range conf.Servers {
			addrs = append(addrs, net.JoinHostPort(s, conf.Port))
		}
		if len(addrs) == 0 {
			return nil, fmt.Errorf("%w: no DNS servers in %s", driver.ErrConfiguration, resolvConf)
		}
		logger.Info("created default DNS resolver", "servers", addrs)
	} else {
		logger.Info("created DNS resolver", "servers", addrs)
	}

	return &Driver{
		client:  &mdns.Client{Timeout: timeout},
		servers: addrs,
		logger:  logger,
	}, nil
}

// Servers returns the name servers in query order.
func (d *Driver) Servers() []string {
	return d.servers
}

func (d *Driver) Resolve(ctx context.Context, identifier string) (*did.ResolveResult, error) {
	if !domainPattern.MatchString(identifier) {
		return nil, nil
	}

	msg := new(mdns.Msg)
	msg.SetQuestion(mdns.Fqdn("_did."+identifier), mdns.TypeURI)

	var (
		resp    *mdns.Msg
		lastErr error
	)
	for _, server := range d.servers {
		r, _, err := d.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			d.logger.Debug("exchange failed", "server", server, "error", err)
			lastErr = err
			continue
		}
		resp = r
		break
	}
	if resp == nil {
		return nil, driver.Failf(driver.ErrBackendIO, identifier, "DNS resolution error: %v", lastErr)
	}

	switch resp.Rcode {
	case mdns.RcodeSuccess:
	case mdns.RcodeNameError:
		return nil, nil
	default:
		return nil, driver.Failf(driver.ErrBackendIO, identifier, "DNS resolution error: %s", mdns.RcodeToString[resp.Rcode])
	}

	var records []*mdns.URI
	for _, rr := range resp.Answer {
		if uri, ok := rr.(*mdns.URI); ok {
			d.logger.Debug("found entry", "identifier", identifier, "target", uri.Target, "priority", uri.Priority)
			records = append(records, uri)
		}
	}
	if len(records) == 0 {
		return nil, nil
	}

	md := did.NewMetadata()
	md.Set("redirect", records[0].Target)
	md.Set("priority", records[0].Priority)
	return did.NewDocumentResult(nil, md), nil
}

func (d *Driver) Properties(ctx context.Context) (map[string]any, error) {
	return nil, driver.ErrNotSupported
}
