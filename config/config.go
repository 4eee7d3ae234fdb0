// Package config loads process-wide configuration (toggle rules, chain
// routing rules, TTLs, admission limits, Redis URL and LLM provider
// backends) from YAML, grounded on the teacher's fail-fast-validate
// posture and gopkg.in/yaml.v3 for serialization. FSRS defaults, hybrid
// weights, mixing quotas and confidence weights are not read from YAML;
// they come from the package defaults wired in cmd/server.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codetop/reviewsched/aiprovider"
)

// TTLs bundles the cache/idempotency TTL table.
type TTLs struct {
	RecommendationCache time.Duration `yaml:"recommendation_cache"`
	IdempotencyRecord   time.Duration `yaml:"idempotency_record"`
	CandidateExclusion  time.Duration `yaml:"candidate_exclusion"`
}

func defaultTTLs() TTLs {
	return TTLs{
		RecommendationCache: 10 * time.Minute,
		IdempotencyRecord:   24 * time.Hour,
		CandidateExclusion:  6 * time.Hour,
	}
}

// Admission bundles AdmissionControl tunables.
type Admission struct {
	GlobalConcurrency int           `yaml:"global_concurrency"`
	PerUserConcurrency int          `yaml:"per_user_concurrency"`
	AcquireTimeout    time.Duration `yaml:"acquire_timeout"`
}

// LLMProviderConfig names an OpenAI-compatible scoring backend. The API
// key itself is never read from YAML; it is resolved from the
// environment variable named by APIKeyEnv so secrets don't end up in
// config files.
type LLMProviderConfig struct {
	Name      string `yaml:"name"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// Config is the full process configuration, loaded once at startup and
// frozen thereafter (no hot reload).
type Config struct {
	Toggle       aiprovider.ToggleConfig `yaml:"-"`
	RawToggle    rawToggle               `yaml:"toggle"`
	Routing      aiprovider.RoutingRules `yaml:"routing"`
	TTL          TTLs                    `yaml:"ttl"`
	Admission    Admission               `yaml:"admission"`
	RedisURL     string                  `yaml:"redis_url"`
	LLMProviders []LLMProviderConfig     `yaml:"llm_providers"`
}

type rawToggle struct {
	GlobalEnabled bool            `yaml:"global_enabled"`
	DenyUserIDs   []string        `yaml:"deny_user_ids"`
	AllowUserIDs  []string        `yaml:"allow_user_ids"`
	PerRoute      map[string]bool `yaml:"per_route"`
	PerTier       map[string]bool `yaml:"per_tier"`
	PerABGroup    map[string]bool `yaml:"per_ab_group"`
	Whitelist     []string        `yaml:"whitelist"`
	DefaultAllow  bool            `yaml:"default_allow"`
}

// Load reads and validates configuration from the YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Config{TTL: defaultTTLs(), Admission: Admission{GlobalConcurrency: 256, PerUserConcurrency: 4, AcquireTimeout: 500 * time.Millisecond}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.Toggle = aiprovider.ToggleConfig{
		GlobalEnabled: cfg.RawToggle.GlobalEnabled,
		DenyUserIDs:   toSet(cfg.RawToggle.DenyUserIDs),
		AllowUserIDs:  toSet(cfg.RawToggle.AllowUserIDs),
		PerRoute:      cfg.RawToggle.PerRoute,
		PerTier:       normalizeTierKeys(cfg.RawToggle.PerTier),
		PerABGroup:    cfg.RawToggle.PerABGroup,
		Whitelist:     toSet(cfg.RawToggle.Whitelist),
		DefaultAllow:  cfg.RawToggle.DefaultAllow,
	}
	cfg.Routing.ByTier = normalizeTierKeysStr(cfg.Routing.ByTier)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("config: redis_url is required")
	}
	if c.Routing.DefaultChain == "" {
		return fmt.Errorf("config: routing.default_chain is required")
	}
	return nil
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[it] = true
	}
	return out
}

func normalizeTierKeys(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[strings.ToUpper(k)] = v
	}
	return out
}

func normalizeTierKeysStr(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToUpper(k)] = v
	}
	return out
}
