package servers

import (
	"fmt"
	"os"

	"github.com/titanous/json5"
)

const Unknown = "Unknown"

// Metadata describes a game server, it is joined to records by server name.
type Metadata struct {
	Location     string
	PvpType      string
	Battleye     bool
	Experimental bool
}

// UnknownMetadata is used for servers missing from the table.
var UnknownMetadata = Metadata{
	Location: Unknown,
	PvpType:  Unknown,
}

type labelled struct {
	String string `json:"string"`
}

type serverEntry struct {
	ServerLocation *labelled `json:"serverLocation"`
	PvpType        *labelled `json:"pvpType"`
	Battleye       bool      `json:"battleye"`
	Experimental   bool      `json:"experimental"`
}

type Table map[string]Metadata

// ParseTable decodes the servers.json format:
// {"Antica": {"serverLocation": {"string": "EU"}, "pvpType": {"string": "Open PvP"}, "battleye": true, "experimental": false}}
func ParseTable(contents []byte) (Table, error) {
	var entries map[string]serverEntry
	err := json5.Unmarshal(contents, &entries)
	if err != nil {
		return nil, err
	}

	table := Table{}
	for name, entry := range entries {
		meta := UnknownMetadata
		if entry.ServerLocation != nil && entry.ServerLocation.String != "" {
			meta.Location = entry.ServerLocation.String
		}
		if entry.PvpType != nil && entry.PvpType.String != "" {
			meta.PvpType = entry.PvpType.String
		}
		meta.Battleye = entry.Battleye
		meta.Experimental = entry.Experimental
		table[name] = meta
	}
	return table, nil
}

func LoadTable(path string) (Table, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	table, err := ParseTable(contents)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// Lookup returns the metadata of a server, ok is false and the metadata is
// UnknownMetadata when the server isn't in the table.
func (t Table) Lookup(name string) (Metadata, bool) {
	meta, ok := t[name]
	if !ok {
		return UnknownMetadata, false
	}
	return meta, true
}
