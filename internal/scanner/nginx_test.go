package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitediscovery/internal/vhost"
)

func writeConf(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

const nginxSample = `
# main site
server {
    listen 80;
    listen [::]:80;
    server_name cronbox.ru www.cronbox.ru;
    location / {
        return 404;
    }
}

server {
    listen 443 ssl http2;
    listen [::]:443 ssl;
    server_name cronbox.ru;
    ssl_certificate "/etc/ssl/cronbox.crt";
}

server {
    listen 127.0.0.1:5382;
    server_name sub.diggers.ru;
}
`

func TestNginx_Scan(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConf(t, dir, "cronbox.conf", nginxSample)
	writeConf(t, dir, "ignored.txt", "server { server_name nope.example; }")

	got, err := NewNginx(dir).Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, []vhost.VirtualHost{
		{Domain: "cronbox.ru", Port: 80},
		{Domain: "www.cronbox.ru", Port: 80},
		{Domain: "cronbox.ru", Port: 443},
		{Domain: "sub.diggers.ru", Port: 5382},
	}, got)
}

func TestNginx_ScanWalksInLexicalOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConf(t, dir, "b.conf", "server { listen 443; server_name b.example; }")
	writeConf(t, dir, "a.conf", "server { listen 443; server_name a.example; }")
	writeConf(t, dir, "sites/c.conf", "http { server { listen 8080; server_name c.example; } }")

	got, err := NewNginx(dir).Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, []vhost.VirtualHost{
		{Domain: "a.example", Port: 443},
		{Domain: "b.example", Port: 443},
		{Domain: "c.example", Port: 8080},
	}, got)
}

func TestNginx_Redirects(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConf(t, dir, "redirects.conf", `
server {
    listen 80;
    server_name permanent.example;
    return 301 https://permanent.example$request_uri;
}
server {
    listen 80;
    server_name temporary.example;
    return 302 https://temporary.example$request_uri;
}
server {
    listen 443;
    server_name located.example;
    location /old { return 301 /new; }
}
`)

	got, err := NewNginx(dir).Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, []vhost.VirtualHost{
		{Domain: "temporary.example", Port: 80},
		{Domain: "located.example", Port: 443},
	}, got)

	got, err = NewNginx(dir, WithRedirect302(true)).Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, []vhost.VirtualHost{{Domain: "located.example", Port: 443}}, got)
}

func TestNginx_SkipsUnaddressableNamesAndSockets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConf(t, dir, "default.conf", `
server {
    listen 80 default_server;
    server_name _ "" *.wild.example ~^(?<sub>.+)\.regex\.example$;
}
server {
    listen unix:/run/app.sock;
    listen 8080;
    server_name app.example;
}
server {
    server_name implicit.example;
}
stream {
    server { listen 5432; server_name db.example; }
}
upstream backend {
    server 127.0.0.1:9000;
}
`)

	got, err := NewNginx(dir).Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, []vhost.VirtualHost{
		{Domain: "app.example", Port: 8080},
		{Domain: "implicit.example", Port: 80},
	}, got)
}

func TestNginx_MissingRoot(t *testing.T) {
	t.Parallel()

	got, err := NewNginx(filepath.Join(t.TempDir(), "absent")).Scan(context.Background())
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestNginx_MalformedFileIsSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConf(t, dir, "a.conf", "server { listen 80; server_name broken.example;")
	writeConf(t, dir, "b.conf", "server { listen 80; server_name ok.example; }")

	got, err := NewNginx(dir).Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, []vhost.VirtualHost{{Domain: "ok.example", Port: 80}}, got)
}

func TestNginx_CanceledContext(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConf(t, dir, "a.conf", "server { listen 80; server_name a.example; }")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewNginx(dir).Scan(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseListenPort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr string
		port int
		ok   bool
	}{
		{"80", 80, true},
		{"443", 443, true},
		{"*:8080", 8080, true},
		{"127.0.0.1:5382", 5382, true},
		{"[::]:443", 443, true},
		{"[::1]", 80, true},
		{"localhost", 80, true},
		{"10.0.0.1", 80, true},
		{"unix:/var/run/nginx.sock", 0, false},
		{"*:http", 0, false},
		{"70000", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			t.Parallel()
			port, ok := parseListenPort(tt.addr)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.port, port)
		})
	}
}
