package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitediscovery/internal/app"
	"github.com/JakeFAU/sitediscovery/internal/config"
)

const nginxFixture = `
server {
    listen 80;
    server_name meduttio.uk www.meduttio.uk;
    return 301 https://$host$request_uri;
}

server {
    listen 443 ssl;
    server_name meduttio.uk www.meduttio.uk;
}
`

const apacheFixture = `
<VirtualHost *:8080>
    ServerName staging.meduttio.uk
</VirtualHost>
`

// newWorkDir lays out nginx/ and apache/ fixture trees in a fresh work dir.
// The test's working directory is restored at cleanup.
func newWorkDir(t *testing.T) string {
	t.Helper()
	t.Chdir(t.TempDir())

	dir := t.TempDir()
	for path, body := range map[string]string{
		filepath.Join(dir, "nginx", "meduttio.conf"):  nginxFixture,
		filepath.Join(dir, "apache", "staging.conf"): apacheFixture,
	} {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootRunsDiscovery(t *testing.T) {
	dir := newWorkDir(t)

	out, err := execute(t, "-d", dir, "-n", "nginx", "-a", "apache")
	require.NoError(t, err)
	assert.Equal(t, `[{"{#NAME}":"meduttio.uk","{#URL}":"https://meduttio.uk"}]`+"\n", out)
}

func TestDiscoverWithDataPropertyAndCustomPorts(t *testing.T) {
	dir := newWorkDir(t)

	out, err := execute(t, "discover", "-d", dir, "-n", "nginx", "-a", "apache",
		"--use-data-property", "--include-custom-ports", "--include-www")
	require.NoError(t, err)
	assert.Equal(t, `{"data":[`+
		`{"{#NAME}":"meduttio.uk","{#URL}":"https://meduttio.uk"},`+
		`{"{#NAME}":"www.meduttio.uk","{#URL}":"https://www.meduttio.uk"},`+
		`{"{#NAME}":"staging.meduttio.uk:8080","{#URL}":"http://staging.meduttio.uk:8080"}`+
		`]}`+"\n", out)
}

func TestDiscoverIgnoreList(t *testing.T) {
	dir := newWorkDir(t)

	out, err := execute(t, "discover", "-d", dir, "-n", "nginx", "-a", "apache", "-i", "meduttio.*,*.example")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestDiscoverWritesOutputAndMetrics(t *testing.T) {
	dir := newWorkDir(t)
	promFile := filepath.Join(t.TempDir(), "sitediscovery.prom")

	out, err := execute(t, "discover", "-d", dir, "-n", "nginx", "-a", "apache",
		"-o", "lld/sites.json", "--metrics-textfile", promFile)
	require.NoError(t, err)
	assert.Empty(t, out)

	// #nosec G304 -- test reads from the controlled temp directory.
	manifest, err := os.ReadFile(filepath.Join(dir, "lld", "sites.json"))
	require.NoError(t, err)
	assert.Equal(t, `[{"{#NAME}":"meduttio.uk","{#URL}":"https://meduttio.uk"}]`+"\n", string(manifest))

	// #nosec G304 -- test reads from the controlled temp directory.
	prom, err := os.ReadFile(promFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "sitediscovery_runs_total")
}

func TestDiscoverWritesBareOutputFileIntoWorkDir(t *testing.T) {
	dir := newWorkDir(t)

	out, err := execute(t, "discover", "-d", dir, "-n", "nginx", "-a", "apache", "-o", "sites.json")
	require.NoError(t, err)
	assert.Empty(t, out)

	// #nosec G304 -- test reads from the controlled temp directory.
	manifest, err := os.ReadFile(filepath.Join(dir, "sites.json"))
	require.NoError(t, err)
	assert.Equal(t, `[{"{#NAME}":"meduttio.uk","{#URL}":"https://meduttio.uk"}]`+"\n", string(manifest))
}

func TestMissingWorkDirFails(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := execute(t, "-d", filepath.Join(t.TempDir(), "missing"))
	require.ErrorContains(t, err, "change to work dir")
}

func TestInvalidIgnorePatternFails(t *testing.T) {
	dir := newWorkDir(t)

	_, err := execute(t, "-d", dir, "-n", "nginx", "-a", "apache", "-i", "[abc")
	require.ErrorContains(t, err, "invalid ignore pattern")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "sitediscovery dev\n", out)
}

func TestRunServeShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	a, err := app.NewApp(config.Config{
		Discovery: config.DiscoveryConfig{NginxVhostsPath: "/nonexistent", ApacheVhostsPath: "/nonexistent"},
		Server:    config.ServerConfig{Port: 0, RateLimitRPS: 1, RateLimitBurst: 1},
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, runServe(ctx, a))
}
