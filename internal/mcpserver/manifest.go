package mcpserver

import (
	"encoding/json"
)

const (
	manifestSchema = "https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json"
	// publisherMetaKey is the registry's namespace for publisher-provided metadata.
	publisherMetaKey = "io.modelcontextprotocol.registry/publisher-provided"
)

// ServerManifest is the MCP registry manifest (server.json).
type ServerManifest struct {
	Schema      string                   `json:"$schema"`
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Version     string                   `json:"version"`
	Repository  *Repository              `json:"repository,omitempty"`
	Packages    []Package                `json:"packages,omitempty"`
	Meta        map[string]PublisherMeta `json:"_meta,omitempty"`
}

// Repository contains source repository information.
type Repository struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Package describes how to run the server: the janitor image with the mcp
// subcommand over stdio.
type Package struct {
	RegistryType     string     `json:"registryType"`
	Identifier       string     `json:"identifier"`
	PackageArguments []Argument `json:"packageArguments,omitempty"`
	Transport        Transport  `json:"transport"`
}

// Argument represents a command-line argument.
type Argument struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// Transport describes the communication method.
type Transport struct {
	Type string `json:"type"`
}

// PublisherMeta advertises what the server offers before a client connects.
type PublisherMeta struct {
	Tools   []ToolSummary `json:"tools"`
	Prompts []string      `json:"prompts"`
}

// ToolSummary is a one-line description of a registered tool.
type ToolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// GenerateManifest renders server.json for the given release version. The
// tool and prompt listings come from what NewServer registers.
func GenerateManifest(version string) ([]byte, error) {
	if version == "" {
		version = "0.0.0"
	}
	workflows, err := loadWorkflows()
	if err != nil {
		return nil, err
	}

	meta := PublisherMeta{}
	for _, t := range catalog {
		meta.Tools = append(meta.Tools, ToolSummary{Name: t.Name, Description: t.Summary})
	}
	for _, w := range workflows {
		meta.Prompts = append(meta.Prompts, w.Name)
	}

	manifest := ServerManifest{
		Schema:      manifestSchema,
		Name:        "io.github.panbanda/janitor",
		Description: "Finds routes, views and translation keys that are no longer referenced in a project",
		Version:     version,
		Repository: &Repository{
			URL:    "https://github.com/panbanda/janitor",
			Source: "github",
		},
		Packages: []Package{
			{
				RegistryType:     "oci",
				Identifier:       "ghcr.io/panbanda/janitor:" + version,
				PackageArguments: []Argument{{Type: "positional", Value: "mcp"}},
				Transport:        Transport{Type: "stdio"},
			},
		},
		Meta: map[string]PublisherMeta{publisherMetaKey: meta},
	}
	return json.MarshalIndent(manifest, "", "  ")
}
