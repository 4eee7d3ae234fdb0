package aiprovider

// ToggleConfig and RoutingRules configure whether AI-assisted ranking
// is used for a given request, and if so which chain variant. The
// ordered check sequence below is grounded on
// orchestration.RuleBasedPolicy's ShouldApprovePlan/ShouldApproveBeforeStep
// pattern: a fixed, explicit priority order of checks, each one either
// deciding the outcome or falling through to the next.
type ToggleConfig struct {
	GlobalEnabled bool
	DenyUserIDs   map[string]bool
	AllowUserIDs  map[string]bool
	PerRoute      map[string]bool
	PerTier       map[string]bool
	PerABGroup    map[string]bool
	Whitelist     map[string]bool
	DefaultAllow  bool
}

// RoutingRules names which Chain to use for a given segment.
type RoutingRules struct {
	DefaultChain string            `yaml:"default_chain"`
	ByTier       map[string]string `yaml:"by_tier"`
	ByABGroup    string            `yaml:"by_ab_group"`
}

// RouteContext is the request's segmentation info for gate evaluation.
type RouteContext struct {
	UserID  string
	Tier    string
	ABGroup string
	Route   string
}

// ToggleGate decides, in a fixed order, whether AI-assisted ranking
// should run for a request:
//  1. global enabled flag (false short-circuits to deny)
//  2. deny-list (explicit user deny always wins over allow)
//  3. allow-list override (explicit allow bypasses segment checks)
//  4. per-route toggle
//  5. per-tier toggle
//  6. per-abGroup toggle
//  7. whitelist (beta cohort) toggle
//  8. default-allow fallback
type ToggleGate struct {
	cfg ToggleConfig
}

// NewToggleGate builds a ToggleGate from cfg.
func NewToggleGate(cfg ToggleConfig) *ToggleGate {
	return &ToggleGate{cfg: cfg}
}

// Allow reports whether AI-assisted ranking should run for ctx.
func (g *ToggleGate) Allow(ctx RouteContext) bool {
	if !g.cfg.GlobalEnabled {
		return false
	}
	if g.cfg.DenyUserIDs[ctx.UserID] {
		return false
	}
	if g.cfg.AllowUserIDs[ctx.UserID] {
		return true
	}
	if v, ok := g.cfg.PerRoute[ctx.Route]; ok {
		return v
	}
	if v, ok := g.cfg.PerTier[ctx.Tier]; ok {
		return v
	}
	if v, ok := g.cfg.PerABGroup[ctx.ABGroup]; ok {
		return v
	}
	if g.cfg.Whitelist[ctx.UserID] {
		return true
	}
	return g.cfg.DefaultAllow
}

// ChainSelector picks which named Chain variant serves a request once
// the ToggleGate has allowed AI-assisted ranking, based on the
// RoutingRules.ByTier table, falling back to RoutingRules.DefaultChain.
// The request's AB group and route are not consulted.
type ChainSelector struct {
	rules  RoutingRules
	chains map[string]*Chain
}

// NewChainSelector builds a ChainSelector over the given named chains.
func NewChainSelector(rules RoutingRules, chains map[string]*Chain) *ChainSelector {
	return &ChainSelector{rules: rules, chains: chains}
}

// Select returns the Chain to use for ctx, per tier override first,
// then the configured default.
func (s *ChainSelector) Select(ctx RouteContext) (*Chain, string) {
	if ctx.Tier != "" {
		if name, ok := s.rules.ByTier[ctx.Tier]; ok {
			if c, found := s.chains[name]; found {
				return c, name
			}
		}
	}
	name := s.rules.DefaultChain
	return s.chains[name], name
}
