// Package site derives the canonical site identity (display name and URL) of
// each retained virtual host.
package site

import (
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/net/idna"

	"github.com/JakeFAU/sitediscovery/internal/vhost"
)

// Option customizes a Deriver.
type Option func(*Deriver)

// WithLogger sets the logger used for skipped entries.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Deriver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithPunycodeURLs renders internationalized hosts in their IDNA ASCII form
// inside URLs. Names keep the declared domain.
func WithPunycodeURLs(enabled bool) Option {
	return func(d *Deriver) {
		d.punycode = enabled
	}
}

// Deriver turns virtual hosts into sites.
type Deriver struct {
	conv     vhost.Conventions
	punycode bool
	logger   *zap.Logger
}

// NewDeriver creates a Deriver bound to the given conventions.
func NewDeriver(conv vhost.Conventions, opts ...Option) *Deriver {
	d := &Deriver{
		conv:   conv.WithDefaults(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Derive builds sites using the default conventions.
func Derive(vhosts []vhost.VirtualHost, includeWWW, excludeHTTP bool) []vhost.Site {
	return NewDeriver(vhost.DefaultConventions()).Derive(vhosts, includeWWW, excludeHTTP)
}

// Derive returns one site per input virtual host, in input order. Domains with
// the www prefix are skipped unless includeWWW is set, and plain HTTP entries
// are skipped when excludeHTTP is set.
func (d *Deriver) Derive(vhosts []vhost.VirtualHost, includeWWW, excludeHTTP bool) []vhost.Site {
	sites := make([]vhost.Site, 0, len(vhosts))
	for _, v := range vhosts {
		if !includeWWW && d.conv.HasWWWPrefix(v.Domain) {
			d.logger.Debug("skip www vhost", zap.Stringer("vhost", v))
			continue
		}
		if excludeHTTP && v.Port == d.conv.HTTPPort {
			d.logger.Debug("skip http vhost", zap.Stringer("vhost", v))
			continue
		}
		sites = append(sites, vhost.Site{
			Name: d.Name(v.Domain, v.Port),
			URL:  d.URL(v.Domain, v.Port),
		})
	}
	return sites
}

// Name returns the display label: the bare domain for HTTPS, the domain with
// the http suffix for plain HTTP, and domain:port otherwise.
func (d *Deriver) Name(domain string, port int) string {
	switch port {
	case d.conv.HTTPSPort:
		return domain
	case d.conv.HTTPPort:
		return domain + d.conv.HTTPNameSuffix
	default:
		return domain + d.conv.PortSeparator + strconv.Itoa(port)
	}
}

// URL returns the reachable address. Anything that is not the HTTPS port is
// assumed to speak plain HTTP. The port separator is fixed to ":" by URL
// syntax and ignores Conventions.PortSeparator.
func (d *Deriver) URL(domain string, port int) string {
	host := d.urlHost(domain)
	switch port {
	case d.conv.HTTPSPort:
		return "https://" + host
	case d.conv.HTTPPort:
		return "http://" + host
	default:
		return "http://" + host + ":" + strconv.Itoa(port)
	}
}

func (d *Deriver) urlHost(domain string) string {
	if !d.punycode {
		return domain
	}
	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		d.logger.Debug("keep declared host, idna conversion failed", zap.String("domain", domain), zap.Error(err))
		return domain
	}
	return ascii
}
