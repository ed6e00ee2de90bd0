// Package lld renders sites in the low-level discovery JSON format consumed by
// Zabbix-style monitoring.
package lld

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/sitediscovery/internal/vhost"
)

// Macro names used for each discovered site.
const (
	NameMacro = "{#NAME}"
	URLMacro  = "{#URL}"
)

// DataProperty is the key of the optional wrapping object.
const DataProperty = "data"

type entry struct {
	Name string `json:"{#NAME}"`
	URL  string `json:"{#URL}"`
}

type wrapped struct {
	Data []entry `json:"data"`
}

// Encode renders sites as a JSON array of {"{#NAME}", "{#URL}"} objects, or as
// {"data": [...]} when wrap is set. The output is compact and has no trailing
// newline.
func Encode(sites []vhost.Site, wrap bool) ([]byte, error) {
	entries := make([]entry, 0, len(sites))
	for _, s := range sites {
		entries = append(entries, entry{Name: s.Name, URL: s.URL})
	}
	var payload any = entries
	if wrap {
		payload = wrapped{Data: entries}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("encode lld: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
