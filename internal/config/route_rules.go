package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const defaultDashboardRoot = "/dashboard"

type Routes struct{}

var _ RouteConfig = Routes{}

// GetRouteRulesFile is an optional YAML file overriding the edge route rules
func (Routes) GetRouteRulesFile() string {
	return GetEnv("ROUTE_RULES_FILE", "")
}

// RouteRule requires one of Roles for paths under Prefix
type RouteRule struct {
	Prefix string   `yaml:"prefix"`
	Roles  []string `yaml:"roles"`
}

// RouteRules is the edge gate's prefix table
type RouteRules struct {
	DashboardRoot string      `yaml:"dashboard_root"`
	Rules         []RouteRule `yaml:"rules"`
}

// DefaultRouteRules is used when no rule file is configured
func DefaultRouteRules() *RouteRules {
	return &RouteRules{
		DashboardRoot: defaultDashboardRoot,
		Rules: []RouteRule{
			{Prefix: "/dashboard/academic", Roles: []string{"Admin"}},
			{Prefix: "/dashboard/lecturer", Roles: []string{"Dosen"}},
		},
	}
}

// LoadRouteRules reads the rule file at path. An empty path yields the defaults.
func LoadRouteRules(path string) (*RouteRules, error) {
	if path == "" {
		return DefaultRouteRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "[LoadRouteRules] read")
	}

	var rules RouteRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, errors.Wrap(err, "[LoadRouteRules] parse")
	}
	if rules.DashboardRoot == "" {
		rules.DashboardRoot = defaultDashboardRoot
	}
	for i, r := range rules.Rules {
		if r.Prefix == "" || r.Prefix[0] != '/' {
			return nil, errors.Errorf("[LoadRouteRules] rule %d: prefix must be an absolute path", i)
		}
		if len(r.Roles) == 0 {
			return nil, errors.Errorf("[LoadRouteRules] rule %d (%s): at least one role is required", i, r.Prefix)
		}
	}
	return &rules, nil
}
