package scanner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitediscovery/internal/vhost"
)

var (
	vhostOpenRegex   = regexp.MustCompile(`(?i)^<VirtualHost(?:\s+([^>]*))?>`)
	vhostCloseRegex  = regexp.MustCompile(`(?i)^</VirtualHost\s*>`)
	serverNameRegex  = regexp.MustCompile(`(?i)^ServerName\s+(\S+)`)
	serverAliasRegex = regexp.MustCompile(`(?i)^ServerAlias\s+(.+)`)
)

// Apache scans an Apache httpd configuration tree for VirtualHost sections.
type Apache struct {
	root string
	opts options
}

// NewApache creates a scanner rooted at root.
func NewApache(root string, opts ...Option) *Apache {
	return &Apache{root: root, opts: buildOptions(opts)}
}

// Source implements Scanner.
func (a *Apache) Source() string {
	return SourceApache
}

// Scan implements Scanner.
func (a *Apache) Scan(ctx context.Context) ([]vhost.VirtualHost, error) {
	return scanTree(ctx, a.root, a.opts.logger, a.parse)
}

type apacheSection struct {
	ports   []int
	name    string
	aliases []string
}

func (a *Apache) parse(path string, data []byte) ([]vhost.VirtualHost, error) {
	var (
		result  []vhost.VirtualHost
		current *apacheSection
		lineNo  int
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := vhostOpenRegex.FindStringSubmatch(line); m != nil {
			if current != nil {
				return nil, fmt.Errorf("line %d: nested <VirtualHost>", lineNo)
			}
			current = &apacheSection{ports: apachePorts(m[1])}
			continue
		}
		if current == nil {
			continue
		}
		if vhostCloseRegex.MatchString(line) {
			result = append(result, a.sectionHosts(path, current)...)
			current = nil
			continue
		}
		if m := serverNameRegex.FindStringSubmatch(line); m != nil {
			current.name = apacheHost(m[1])
			continue
		}
		if m := serverAliasRegex.FindStringSubmatch(line); m != nil {
			for _, alias := range strings.Fields(m[1]) {
				current.aliases = append(current.aliases, apacheHost(alias))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	if current != nil {
		return nil, fmt.Errorf("unterminated <VirtualHost> section")
	}
	return result, nil
}

func (a *Apache) sectionHosts(path string, s *apacheSection) []vhost.VirtualHost {
	if s.name == "" {
		a.opts.logger.Debug("skip VirtualHost without ServerName", zap.String("path", path))
		return nil
	}
	names := []string{s.name}
	if a.opts.aliases {
		for _, alias := range s.aliases {
			if addressableName(alias) {
				names = append(names, alias)
			}
		}
	}
	hosts := make([]vhost.VirtualHost, 0, len(names)*len(s.ports))
	for _, name := range names {
		for _, port := range s.ports {
			hosts = append(hosts, vhost.VirtualHost{Domain: name, Port: port})
		}
	}
	return hosts
}

// apachePorts returns the distinct ports of a VirtualHost address list such as
// "*:80 [::]:443". Addresses without a port use the default HTTP port.
func apachePorts(addrs string) []int {
	var ports []int
	for _, addr := range strings.Fields(addrs) {
		addr = strings.Trim(addr, `"'`)
		port := vhost.DefaultHTTPPort
		hostEnd := 0
		if strings.HasPrefix(addr, "[") {
			hostEnd = strings.Index(addr, "]")
		}
		if i := strings.LastIndex(addr, ":"); i > hostEnd && hostEnd >= 0 {
			p, err := strconv.Atoi(addr[i+1:])
			if err != nil || p <= 0 || p > 65535 {
				continue
			}
			port = p
		}
		ports = appendPort(ports, port)
	}
	if len(ports) == 0 {
		return []int{vhost.DefaultHTTPPort}
	}
	return ports
}

// apacheHost strips an optional scheme and port from a ServerName value.
func apacheHost(value string) string {
	value = strings.Trim(value, `"'`)
	if i := strings.Index(value, "://"); i != -1 {
		value = value[i+3:]
	}
	if i := strings.LastIndex(value, ":"); i != -1 && isDigits(value[i+1:]) {
		value = value[:i]
	}
	return value
}
