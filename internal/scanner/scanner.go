// Package scanner reads web server configuration trees and reports the
// virtual hosts they declare.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitediscovery/internal/vhost"
)

// Source names reported by the bundled scanners.
const (
	SourceNginx  = "nginx"
	SourceApache = "apache"
)

// Default configuration roots.
const (
	DefaultNginxRoot  = "/etc/nginx/conf.d"
	DefaultApacheRoot = "/etc/httpd/conf.d"
)

const configSuffix = ".conf"

// Scanner produces the raw virtual host list of one web server.
type Scanner interface {
	Source() string
	Scan(ctx context.Context) ([]vhost.VirtualHost, error)
}

// Option customizes a scanner.
type Option func(*options)

type options struct {
	logger      *zap.Logger
	redirect302 bool
	aliases     bool
}

// WithLogger sets the scanner logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRedirect302 makes the nginx scanner treat temporary redirects
// (return 302/307) as redirect-only server blocks.
func WithRedirect302(enabled bool) Option {
	return func(o *options) {
		o.redirect302 = enabled
	}
}

// WithAliases makes the Apache scanner report ServerAlias names as well.
func WithAliases(enabled bool) Option {
	return func(o *options) {
		o.aliases = enabled
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// configFiles lists every *.conf regular file below root in lexical order.
// A missing root yields fs.ErrNotExist.
func configFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.Type().IsRegular() && strings.HasSuffix(d.Name(), configSuffix) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

// scanTree runs parse over every config file of root. A missing root is
// logged and reported as an empty result.
func scanTree(
	ctx context.Context,
	root string,
	logger *zap.Logger,
	parse func(path string, data []byte) ([]vhost.VirtualHost, error),
) ([]vhost.VirtualHost, error) {
	files, err := configFiles(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("vhosts root not found, skipping", zap.String("root", root))
			return []vhost.VirtualHost{}, nil
		}
		return nil, err
	}
	result := make([]vhost.VirtualHost, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scan canceled: %w", err)
		}
		// #nosec G304 -- paths come from walking the configured root.
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		found, err := parse(path, data)
		if err != nil {
			logger.Warn("skip unparsable config file", zap.String("path", path), zap.Error(err))
			continue
		}
		logger.Debug("config file scanned", zap.String("path", path), zap.Int("vhosts", len(found)))
		result = append(result, found...)
	}
	return result, nil
}

// appendPort adds port to ports unless already present.
func appendPort(ports []int, port int) []int {
	for _, p := range ports {
		if p == port {
			return ports
		}
	}
	return append(ports, port)
}
