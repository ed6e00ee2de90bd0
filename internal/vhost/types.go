package vhost

import (
	"strconv"
	"strings"
)

// VirtualHost is one declared server block: a configured hostname bound to a
// listening port. The port is taken from configuration and never verified.
type VirtualHost struct {
	Domain string
	Port   int
}

// String renders the endpoint as domain:port.
func (v VirtualHost) String() string {
	return v.Domain + ":" + strconv.Itoa(v.Port)
}

// Site is the externally reportable identity of a retained virtual host.
type Site struct {
	Name string
	URL  string
}

// Conventions carries the well-known ports and naming affixes used when
// filtering virtual hosts and deriving sites.
type Conventions struct {
	HTTPPort       int
	HTTPSPort      int
	WWWPrefix      string
	HTTPNameSuffix string
	// PortSeparator joins domain and port in site names only. URLs always
	// use ":" as URL syntax requires.
	PortSeparator  string
}

// Default convention values.
const (
	DefaultHTTPPort       = 80
	DefaultHTTPSPort      = 443
	DefaultWWWPrefix      = "www."
	DefaultHTTPNameSuffix = "_http"
	DefaultPortSeparator  = ":"
)

// DefaultConventions returns the standard web conventions (80/443, "www.").
func DefaultConventions() Conventions {
	return Conventions{
		HTTPPort:       DefaultHTTPPort,
		HTTPSPort:      DefaultHTTPSPort,
		WWWPrefix:      DefaultWWWPrefix,
		HTTPNameSuffix: DefaultHTTPNameSuffix,
		PortSeparator:  DefaultPortSeparator,
	}
}

// IsStandardPort reports whether port is the well-known HTTP or HTTPS port.
func (c Conventions) IsStandardPort(port int) bool {
	return port == c.HTTPPort || port == c.HTTPSPort
}

// HasWWWPrefix reports whether the domain starts with the www prefix.
func (c Conventions) HasWWWPrefix(domain string) bool {
	return c.WWWPrefix != "" && strings.HasPrefix(domain, c.WWWPrefix)
}

// WithDefaults fills zero-valued fields from DefaultConventions.
func (c Conventions) WithDefaults() Conventions {
	def := DefaultConventions()
	if c.HTTPPort == 0 {
		c.HTTPPort = def.HTTPPort
	}
	if c.HTTPSPort == 0 {
		c.HTTPSPort = def.HTTPSPort
	}
	if c.WWWPrefix == "" {
		c.WWWPrefix = def.WWWPrefix
	}
	if c.HTTPNameSuffix == "" {
		c.HTTPNameSuffix = def.HTTPNameSuffix
	}
	if c.PortSeparator == "" {
		c.PortSeparator = def.PortSeparator
	}
	return c
}
