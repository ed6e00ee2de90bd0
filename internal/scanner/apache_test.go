package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitediscovery/internal/vhost"
)

const apacheSample = `
<VirtualHost *:80>
    ServerName tinyops.ru
    ServerAlias www.tinyops.ru
    DocumentRoot "/var/www/tinyops"
</VirtualHost>

# <VirtualHost *:8080>
<virtualhost *:443 [::]:443>
    servername https://tinyops.ru:443
    SSLEngine on
</virtualhost>

<VirtualHost 10.0.0.5:8081>
    DocumentRoot /srv/nameless
</VirtualHost>

<VirtualHost _default_:8443>
    ServerName admin.tinyops.ru
</VirtualHost>
`

func TestApache_Scan(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConf(t, dir, "tinyops.conf", apacheSample)

	got, err := NewApache(dir).Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, []vhost.VirtualHost{
		{Domain: "tinyops.ru", Port: 80},
		{Domain: "tinyops.ru", Port: 443},
		{Domain: "admin.tinyops.ru", Port: 8443},
	}, got)
}

func TestApache_Aliases(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConf(t, dir, "tinyops.conf", apacheSample)

	got, err := NewApache(dir, WithAliases(true)).Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, []vhost.VirtualHost{
		{Domain: "tinyops.ru", Port: 80},
		{Domain: "www.tinyops.ru", Port: 80},
		{Domain: "tinyops.ru", Port: 443},
		{Domain: "admin.tinyops.ru", Port: 8443},
	}, got)
}

func TestApache_UnterminatedSectionSkipsFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConf(t, dir, "a.conf", "<VirtualHost *:80>\nServerName broken.example\n")
	writeConf(t, dir, "b.conf", "<VirtualHost *:443>\nServerName ok.example\n</VirtualHost>\n")

	got, err := NewApache(dir).Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, []vhost.VirtualHost{{Domain: "ok.example", Port: 443}}, got)
}

func TestApachePorts(t *testing.T) {
	t.Parallel()

	require.Equal(t, []int{80}, apachePorts(""))
	require.Equal(t, []int{80}, apachePorts("*"))
	require.Equal(t, []int{443}, apachePorts("*:443 [::]:443"))
	require.Equal(t, []int{80, 8080}, apachePorts(`"*:80" 10.0.0.1:8080`))
	require.Equal(t, []int{80}, apachePorts("[::1]"))
}

func TestApacheHost(t *testing.T) {
	t.Parallel()

	require.Equal(t, "example.com", apacheHost("example.com"))
	require.Equal(t, "example.com", apacheHost("example.com:8080"))
	require.Equal(t, "example.com", apacheHost("https://example.com:443"))
	require.Equal(t, "Example.com", apacheHost(`"Example.com"`))
}
