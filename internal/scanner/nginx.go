package scanner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitediscovery/internal/vhost"
)

// Nginx scans an nginx configuration tree for server blocks.
type Nginx struct {
	root string
	opts options
}

// NewNginx creates a scanner rooted at root.
func NewNginx(root string, opts ...Option) *Nginx {
	return &Nginx{root: root, opts: buildOptions(opts)}
}

// Source implements Scanner.
func (n *Nginx) Source() string {
	return SourceNginx
}

// Scan implements Scanner.
func (n *Nginx) Scan(ctx context.Context) ([]vhost.VirtualHost, error) {
	return scanTree(ctx, n.root, n.opts.logger, n.parse)
}

func (n *Nginx) parse(path string, data []byte) ([]vhost.VirtualHost, error) {
	tokens, err := lexNginx(string(data))
	if err != nil {
		return nil, err
	}
	pos := 0
	tree, err := parseNginxBlock(tokens, &pos, false)
	if err != nil {
		return nil, err
	}
	var result []vhost.VirtualHost
	for _, server := range findServerBlocks(tree) {
		if code, ok := n.redirectCode(server); ok {
			n.opts.logger.Debug("skip redirect-only server block",
				zap.String("path", path), zap.Int("code", code), zap.Strings("names", serverNames(server)))
			continue
		}
		ports := listenPorts(server)
		for _, name := range serverNames(server) {
			for _, port := range ports {
				result = append(result, vhost.VirtualHost{Domain: name, Port: port})
			}
		}
	}
	return result, nil
}

// redirectCode reports whether a server-level return directive turns the
// whole block into a redirect.
func (n *Nginx) redirectCode(server nginxDirective) (int, bool) {
	for _, d := range server.children {
		if d.name != "return" || len(d.args) == 0 {
			continue
		}
		code, err := strconv.Atoi(d.args[0])
		if err != nil {
			continue
		}
		switch code {
		case 301, 308:
			return code, true
		case 302, 307:
			if n.opts.redirect302 {
				return code, true
			}
		}
	}
	return 0, false
}

type nginxDirective struct {
	name     string
	args     []string
	block    bool
	children []nginxDirective
}

func findServerBlocks(directives []nginxDirective) []nginxDirective {
	var servers []nginxDirective
	for _, d := range directives {
		if !d.block {
			continue
		}
		switch d.name {
		case "server":
			servers = append(servers, d)
			continue
		case "stream", "mail":
			// TCP/UDP and mail proxies are not web sites.
			continue
		}
		servers = append(servers, findServerBlocks(d.children)...)
	}
	return servers
}

func serverNames(server nginxDirective) []string {
	var names []string
	for _, d := range server.children {
		if d.name != "server_name" {
			continue
		}
		for _, name := range d.args {
			if !addressableName(name) {
				continue
			}
			names = append(names, name)
		}
	}
	return names
}

func addressableName(name string) bool {
	switch {
	case name == "", name == "_":
		return false
	case strings.HasPrefix(name, "~"), strings.Contains(name, "*"):
		return false
	default:
		return true
	}
}

func listenPorts(server nginxDirective) []int {
	var ports []int
	declared := false
	for _, d := range server.children {
		if d.name != "listen" || len(d.args) == 0 {
			continue
		}
		declared = true
		if port, ok := parseListenPort(d.args[0]); ok {
			ports = appendPort(ports, port)
		}
	}
	if !declared {
		return []int{vhost.DefaultHTTPPort}
	}
	return ports
}

// parseListenPort extracts the port of an nginx listen address. Unix sockets
// are not reachable over TCP and are reported as not ok.
func parseListenPort(addr string) (int, bool) {
	if strings.HasPrefix(addr, "unix:") {
		return 0, false
	}
	portPart := ""
	switch {
	case strings.HasPrefix(addr, "["):
		end := strings.Index(addr, "]")
		if end == -1 {
			return 0, false
		}
		if rest := addr[end+1:]; strings.HasPrefix(rest, ":") {
			portPart = rest[1:]
		}
	case strings.Contains(addr, ":"):
		portPart = addr[strings.LastIndex(addr, ":")+1:]
	case isDigits(addr):
		portPart = addr
	}
	if portPart == "" {
		return vhost.DefaultHTTPPort, true
	}
	port, err := strconv.Atoi(portPart)
	if err != nil || port <= 0 || port > 65535 {
		return 0, false
	}
	return port, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

var errUnbalancedBraces = errors.New("unbalanced braces")

func parseNginxBlock(tokens []nginxToken, pos *int, nested bool) ([]nginxDirective, error) {
	var (
		directives []nginxDirective
		words      []string
	)
	for *pos < len(tokens) {
		tok := tokens[*pos]
		*pos++
		switch tok.kind {
		case tokenWord:
			words = append(words, tok.text)
		case tokenSemicolon:
			if len(words) > 0 {
				directives = append(directives, nginxDirective{name: words[0], args: words[1:]})
			}
			words = nil
		case tokenOpen:
			children, err := parseNginxBlock(tokens, pos, true)
			if err != nil {
				return nil, err
			}
			d := nginxDirective{block: true, children: children}
			if len(words) > 0 {
				d.name, d.args = words[0], words[1:]
			}
			directives = append(directives, d)
			words = nil
		case tokenClose:
			if !nested {
				return nil, fmt.Errorf("%w: unexpected '}'", errUnbalancedBraces)
			}
			return directives, nil
		}
	}
	if nested {
		return nil, fmt.Errorf("%w: missing '}'", errUnbalancedBraces)
	}
	return directives, nil
}

type nginxTokenKind int

const (
	tokenWord nginxTokenKind = iota
	tokenSemicolon
	tokenOpen
	tokenClose
)

type nginxToken struct {
	kind nginxTokenKind
	text string
}

func lexNginx(src string) ([]nginxToken, error) {
	var (
		tokens []nginxToken
		word   strings.Builder
	)
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, nginxToken{kind: tokenWord, text: word.String()})
			word.Reset()
		}
	}
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '#' && word.Len() == 0:
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '"' || c == '\'':
			end, text, err := readQuoted(src, i)
			if err != nil {
				return nil, err
			}
			flush()
			tokens = append(tokens, nginxToken{kind: tokenWord, text: text})
			i = end
		case c == ';':
			flush()
			tokens = append(tokens, nginxToken{kind: tokenSemicolon})
		case c == '{':
			flush()
			tokens = append(tokens, nginxToken{kind: tokenOpen})
		case c == '}':
			flush()
			tokens = append(tokens, nginxToken{kind: tokenClose})
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
		default:
			word.WriteByte(c)
		}
	}
	flush()
	return tokens, nil
}

// readQuoted returns the index of the closing quote and the unquoted text.
func readQuoted(src string, start int) (int, string, error) {
	quote := src[start]
	var b strings.Builder
	for i := start + 1; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src):
			i++
			b.WriteByte(src[i])
		case c == quote:
			return i, b.String(), nil
		default:
			b.WriteByte(c)
		}
	}
	return 0, "", errors.New("unterminated quoted string")
}
