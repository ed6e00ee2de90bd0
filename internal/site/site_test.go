package site

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitediscovery/internal/vhost"
)

const customPort = 5382

func TestDerive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       []vhost.VirtualHost
		includeWWW  bool
		excludeHTTP bool
		want        []vhost.Site
	}{
		{
			name:  "empty",
			input: nil,
			want:  []vhost.Site{},
		},
		{
			name:  "https",
			input: []vhost.VirtualHost{{Domain: "example.com", Port: 443}},
			want:  []vhost.Site{{Name: "example.com", URL: "https://example.com"}},
		},
		{
			name:  "http gets suffix",
			input: []vhost.VirtualHost{{Domain: "tinyops.ru", Port: 80}},
			want:  []vhost.Site{{Name: "tinyops.ru_http", URL: "http://tinyops.ru"}},
		},
		{
			name:  "custom port",
			input: []vhost.VirtualHost{{Domain: "example.com", Port: 8080}},
			want:  []vhost.Site{{Name: "example.com:8080", URL: "http://example.com:8080"}},
		},
		{
			name:  "www excluded",
			input: []vhost.VirtualHost{{Domain: "www.example.com", Port: 443}},
			want:  []vhost.Site{},
		},
		{
			name:        "http excluded",
			input:       []vhost.VirtualHost{{Domain: "example.com", Port: 80}},
			includeWWW:  true,
			excludeHTTP: true,
			want:        []vhost.Site{},
		},
		{
			name: "www kept when requested, order preserved",
			input: []vhost.VirtualHost{
				{Domain: "meduttio.uk", Port: 443},
				{Domain: "www.meduttio.uk", Port: 80},
			},
			includeWWW: true,
			want: []vhost.Site{
				{Name: "meduttio.uk", URL: "https://meduttio.uk"},
				{Name: "www.meduttio.uk_http", URL: "http://www.meduttio.uk"},
			},
		},
		{
			name: "www dropped from the middle",
			input: []vhost.VirtualHost{
				{Domain: "cronbox.ru", Port: 443},
				{Domain: "www.google.com", Port: 443},
				{Domain: "tinyops.ru", Port: 443},
			},
			want: []vhost.Site{
				{Name: "cronbox.ru", URL: "https://cronbox.ru"},
				{Name: "tinyops.ru", URL: "https://tinyops.ru"},
			},
		},
		{
			name:        "exclude http keeps custom ports",
			input:       []vhost.VirtualHost{{Domain: "a.com", Port: 80}, {Domain: "a.com", Port: 8080}},
			excludeHTTP: true,
			want:        []vhost.Site{{Name: "a.com:8080", URL: "http://a.com:8080"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Derive(tt.input, tt.includeWWW, tt.excludeHTTP))
		})
	}
}

func TestDeriver_NameAndURL(t *testing.T) {
	t.Parallel()

	d := NewDeriver(vhost.DefaultConventions())

	require.Equal(t, "superco.ru", d.Name("superco.ru", 443))
	require.Equal(t, "superco.ru_http", d.Name("superco.ru", 80))
	require.Equal(t, fmt.Sprintf("sub.diggers.ru:%d", customPort), d.Name("sub.diggers.ru", customPort))

	require.Equal(t, "https://quarkoman.com", d.URL("quarkoman.com", 443))
	require.Equal(t, "http://quarkoman.com", d.URL("quarkoman.com", 80))
	require.Equal(t, fmt.Sprintf("http://quarkoman.com:%d", customPort), d.URL("quarkoman.com", customPort))
}

func TestDeriver_UniqueNamesPerEndpoint(t *testing.T) {
	t.Parallel()

	input := []vhost.VirtualHost{
		{Domain: "a.com", Port: 80}, {Domain: "a.com", Port: 443},
		{Domain: "a.com", Port: 8080}, {Domain: "a.com", Port: 8443},
	}
	sites := Derive(input, true, false)
	names := make(map[string]struct{}, len(sites))
	for _, s := range sites {
		names[s.Name] = struct{}{}
	}
	require.Len(t, names, len(input))
}

func TestDeriver_CustomConventions(t *testing.T) {
	t.Parallel()

	d := NewDeriver(vhost.Conventions{
		HTTPPort:       8080,
		HTTPSPort:      8443,
		WWWPrefix:      "w3.",
		HTTPNameSuffix: "-plain",
		PortSeparator:  "#",
	})

	got := d.Derive([]vhost.VirtualHost{
		{Domain: "w3.example.com", Port: 8443},
		{Domain: "www.example.com", Port: 8443},
		{Domain: "example.com", Port: 8080},
		{Domain: "example.com", Port: 443},
	}, false, false)

	require.Equal(t, []vhost.Site{
		{Name: "www.example.com", URL: "https://www.example.com"},
		{Name: "example.com-plain", URL: "http://example.com"},
		{Name: "example.com#443", URL: "http://example.com:443"},
	}, got)
}

func TestDeriver_PunycodeURLs(t *testing.T) {
	t.Parallel()

	d := NewDeriver(vhost.DefaultConventions(), WithPunycodeURLs(true))
	got := d.Derive([]vhost.VirtualHost{{Domain: "пример.рф", Port: 443}, {Domain: "example.com", Port: 80}}, false, false)

	require.Equal(t, []vhost.Site{
		{Name: "пример.рф", URL: "https://xn--e1afmkfd.xn--p1ai"},
		{Name: "example.com_http", URL: "http://example.com"},
	}, got)

	plain := Derive([]vhost.VirtualHost{{Domain: "пример.рф", Port: 443}}, false, false)
	require.Equal(t, "https://пример.рф", plain[0].URL)
}
