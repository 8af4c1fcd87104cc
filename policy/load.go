package policy

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/viant/accessflow/service/meta"
)

// Parse decodes a YAML (or JSON) policy document.
func Parse(data []byte) (*Policy, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("policy: invalid document: %w", err)
	}
	ret := FromConfig(cfg)
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Load reads and parses a policy document from any afs supported URL;
// ${env.KEY} expressions are expanded first.
func Load(ctx context.Context, fs afs.Service, URL string) (*Policy, error) {
	data, err := meta.New(fs).Download(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	return Parse(data)
}
