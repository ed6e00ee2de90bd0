// Package filter reduces a raw list of discovered virtual hosts to a
// deduplicated, policy-compliant set.
package filter

import (
	"errors"
	"fmt"

	"github.com/gobwas/glob"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitediscovery/internal/vhost"
)

// ErrInvalidPattern is returned when an ignore pattern cannot be compiled.
var ErrInvalidPattern = errors.New("invalid ignore pattern")

// Config holds the admission policy.
type Config struct {
	// AllowCustomPorts admits ports other than the well-known HTTP/HTTPS ports.
	AllowCustomPorts bool
	// IgnorePatterns are glob patterns matched against the whole domain.
	IgnorePatterns []string
}

// Option customizes a Filter.
type Option func(*Filter)

// WithLogger sets the logger used for per-entry debug decisions.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Filter) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// Filter applies ignore patterns, port policy, dedup and HTTPS preference.
// A Filter is immutable after construction and safe for concurrent use.
type Filter struct {
	allowCustomPorts bool
	ignore           []compiledPattern
	conv             vhost.Conventions
	logger           *zap.Logger
}

type compiledPattern struct {
	raw  string
	glob glob.Glob
}

// New compiles the ignore patterns and returns a ready Filter. Any pattern the
// glob compiler rejects fails the whole construction.
func New(cfg Config, conv vhost.Conventions, opts ...Option) (*Filter, error) {
	f := &Filter{
		allowCustomPorts: cfg.AllowCustomPorts,
		conv:             conv.WithDefaults(),
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	for _, raw := range cfg.IgnorePatterns {
		// No separators: '*' spans dots and matches the whole domain.
		g, err := glob.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, raw, err)
		}
		f.ignore = append(f.ignore, compiledPattern{raw: raw, glob: g})
	}
	return f, nil
}

// Apply runs the filter with default conventions. It is the one-shot form of
// New followed by (*Filter).Apply.
func Apply(vhosts []vhost.VirtualHost, allowCustomPorts bool, ignorePatterns []string) ([]vhost.VirtualHost, error) {
	f, err := New(Config{AllowCustomPorts: allowCustomPorts, IgnorePatterns: ignorePatterns}, vhost.DefaultConventions())
	if err != nil {
		return nil, err
	}
	return f.Apply(vhosts), nil
}

// Apply returns the admitted virtual hosts in first-occurrence order, with
// plain HTTP entries dropped wherever the same domain is also served on HTTPS.
func (f *Filter) Apply(vhosts []vhost.VirtualHost) []vhost.VirtualHost {
	return f.preferHTTPS(f.admit(vhosts))
}

func (f *Filter) admit(vhosts []vhost.VirtualHost) []vhost.VirtualHost {
	admitted := make([]vhost.VirtualHost, 0, len(vhosts))
	seen := make(map[vhost.VirtualHost]struct{}, len(vhosts))
	for _, v := range vhosts {
		if pattern, ignored := f.ignored(v.Domain); ignored {
			f.logger.Debug("skip ignored vhost", zap.Stringer("vhost", v), zap.String("pattern", pattern))
			continue
		}
		if !f.allowCustomPorts && !f.conv.IsStandardPort(v.Port) {
			f.logger.Debug("skip vhost with custom port", zap.Stringer("vhost", v))
			continue
		}
		if _, dup := seen[v]; dup {
			f.logger.Debug("skip duplicate vhost", zap.Stringer("vhost", v))
			continue
		}
		seen[v] = struct{}{}
		f.logger.Debug("add vhost", zap.Stringer("vhost", v))
		admitted = append(admitted, v)
	}
	return admitted
}

func (f *Filter) preferHTTPS(admitted []vhost.VirtualHost) []vhost.VirtualHost {
	secure := make(map[string]struct{})
	for _, v := range admitted {
		if v.Port == f.conv.HTTPSPort {
			secure[v.Domain] = struct{}{}
		}
	}
	out := make([]vhost.VirtualHost, 0, len(admitted))
	for _, v := range admitted {
		if v.Port == f.conv.HTTPPort {
			if _, ok := secure[v.Domain]; ok {
				f.logger.Debug("drop http vhost superseded by https", zap.Stringer("vhost", v))
				continue
			}
		}
		out = append(out, v)
	}
	return out
}

func (f *Filter) ignored(domain string) (string, bool) {
	for _, p := range f.ignore {
		if p.glob.Match(domain) {
			return p.raw, true
		}
	}
	return "", false
}
