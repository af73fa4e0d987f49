// Package config carrega a configuração do gateway: defaults, arquivo YAML
// opcional e variáveis de ambiente (rate.default_limit -> RATE_DEFAULT_LIMIT).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"sliding-gateway/middleware/ratelimit/domain"
)

type Config struct {
	ListenAddr  string `mapstructure:"listen_addr"`
	UpstreamURL string `mapstructure:"upstream_url"`

	Rate        RateConfig        `mapstructure:"rate"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency"`
	Stats       StatsConfig       `mapstructure:"stats"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Log         LogConfig         `mapstructure:"log"`
}

type RateConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	DefaultLimit  int           `mapstructure:"default_limit"`
	DefaultWindow time.Duration `mapstructure:"default_window"`

	// Endpoints vem do YAML. O viper normaliza as chaves para minúsculas;
	// para paths com maiúsculas use EndpointRules.
	Endpoints map[string]EndpointRule `mapstructure:"endpoints"`
	// EndpointRules é a forma compacta: "/limited=2/10s,/unlimited=1000/60s".
	EndpointRules string `mapstructure:"endpoint_rules"`

	// UnmatchedEndpoint agrupa paths sem regra própria num único endpoint.
	// Vazio = cada path é um endpoint.
	UnmatchedEndpoint string `mapstructure:"unmatched_endpoint"`

	KeyHeader    string        `mapstructure:"key_header"`
	TrustXFF     bool          `mapstructure:"trust_xff"`
	RetryAfter   time.Duration `mapstructure:"retry_after"`
	AddHeaders   bool          `mapstructure:"add_headers"`
	CleanupEvery time.Duration `mapstructure:"cleanup_every"`
	MaxKeys      int           `mapstructure:"max_keys"`
	Shards       int           `mapstructure:"shards"`
	DenyLogEvery time.Duration `mapstructure:"deny_log_every"`
}

type EndpointRule struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type ConcurrencyConfig struct {
	Max     int           `mapstructure:"max"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StatsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Redis        RedisConfig   `mapstructure:"redis"`
	Prefix       string        `mapstructure:"prefix"`
	TTL          time.Duration `mapstructure:"ttl"`
	Bucket       string        `mapstructure:"bucket"`
	TrackClients bool          `mapstructure:"track_clients"`
	TrackRoutes  bool          `mapstructure:"track_routes"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
	Namespace  string `mapstructure:"namespace"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NewViper devolve uma instância com os defaults e a leitura de ambiente já configuradas.
// Flags de CLI podem ser ligadas nela antes de Load.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("upstream_url", "")

	v.SetDefault("rate.enabled", true)
	v.SetDefault("rate.default_limit", 5)
	v.SetDefault("rate.default_window", 15*time.Second)
	v.SetDefault("rate.endpoints", map[string]any{})
	v.SetDefault("rate.endpoint_rules", "")
	v.SetDefault("rate.unmatched_endpoint", "")
	v.SetDefault("rate.key_header", "")
	v.SetDefault("rate.trust_xff", false)
	v.SetDefault("rate.retry_after", time.Second)
	v.SetDefault("rate.add_headers", false)
	v.SetDefault("rate.cleanup_every", time.Minute)
	v.SetDefault("rate.max_keys", 0)
	v.SetDefault("rate.shards", 64)
	v.SetDefault("rate.deny_log_every", time.Second)

	v.SetDefault("concurrency.max", 100)
	v.SetDefault("concurrency.timeout", time.Duration(0))

	v.SetDefault("stats.enabled", false)
	v.SetDefault("stats.redis.addr", "")
	v.SetDefault("stats.redis.password", "")
	v.SetDefault("stats.redis.db", 0)
	v.SetDefault("stats.prefix", "ratelimit:stats")
	v.SetDefault("stats.ttl", 24*time.Hour)
	v.SetDefault("stats.bucket", "minute")
	v.SetDefault("stats.track_clients", false)
	v.SetDefault("stats.track_routes", false)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":9090")
	v.SetDefault("metrics.namespace", "gateway")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load lê o arquivo (se path não for vazio), aplica o ambiente e valida.
// v nil usa NewViper().
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate junta todos os problemas encontrados num único erro.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.UpstreamURL) == "" {
		errs = append(errs, errors.New("upstream_url is required"))
	} else if u, err := url.Parse(c.UpstreamURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("upstream_url %q is not an absolute URL", c.UpstreamURL))
	}

	if c.Rate.Enabled {
		if _, _, err := c.Rate.Rules(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Rate.MaxKeys < 0 {
		errs = append(errs, errors.New("rate.max_keys must be >= 0"))
	}
	if c.Concurrency.Max < 0 {
		errs = append(errs, errors.New("concurrency.max must be >= 0"))
	}
	if c.Stats.Enabled && strings.TrimSpace(c.Stats.Redis.Addr) == "" {
		errs = append(errs, errors.New("stats.redis.addr is required when stats.enabled=true"))
	}
	if b := strings.ToLower(strings.TrimSpace(c.Stats.Bucket)); b != "minute" && b != "none" {
		errs = append(errs, fmt.Errorf("stats.bucket must be minute or none (got %q)", c.Stats.Bucket))
	}

	return errors.Join(errs...)
}

// Rules devolve a regra padrão e as regras por endpoint, juntando o mapa do
// YAML com a forma compacta (a compacta vence em caso de repetição).
func (r RateConfig) Rules() (domain.Rule, map[string]domain.Rule, error) {
	def := domain.Rule{Limit: r.DefaultLimit, Window: r.DefaultWindow}
	if err := def.Validate(); err != nil {
		return domain.Rule{}, nil, fmt.Errorf("rate default rule: %w", err)
	}

	rules := make(map[string]domain.Rule, len(r.Endpoints))
	for ep, er := range r.Endpoints {
		rule := domain.Rule{Limit: er.Limit, Window: er.Window}
		if err := rule.Validate(); err != nil {
			return domain.Rule{}, nil, fmt.Errorf("rate endpoint %q: %w", ep, err)
		}
		rules[ep] = rule
	}

	compact, err := ParseEndpointRules(r.EndpointRules)
	if err != nil {
		return domain.Rule{}, nil, err
	}
	for ep, rule := range compact {
		rules[ep] = rule
	}
	return def, rules, nil
}

// ParseEndpointRules interpreta "endpoint=limit/window" separados por vírgula.
// O endpoint pode conter "/"; o separador é o último "=".
func ParseEndpointRules(s string) (map[string]domain.Rule, error) {
	rules := map[string]domain.Rule{}
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		i := strings.LastIndex(item, "=")
		if i < 0 {
			return nil, fmt.Errorf("endpoint rule %q: missing '=': %w", item, domain.ErrConfiguration)
		}
		endpoint := strings.TrimSpace(item[:i])
		if endpoint == "" {
			return nil, fmt.Errorf("endpoint rule %q: %w", item, domain.ErrInvalidEndpoint)
		}

		limitStr, windowStr, ok := strings.Cut(item[i+1:], "/")
		if !ok {
			return nil, fmt.Errorf("endpoint rule %q: want limit/window: %w", item, domain.ErrConfiguration)
		}

		limit, err := strconv.Atoi(strings.TrimSpace(limitStr))
		if err != nil {
			return nil, fmt.Errorf("endpoint rule %q: %w", item, domain.ErrInvalidLimit)
		}
		window, err := time.ParseDuration(strings.TrimSpace(windowStr))
		if err != nil {
			return nil, fmt.Errorf("endpoint rule %q: %w", item, domain.ErrInvalidWindow)
		}

		rule := domain.Rule{Limit: limit, Window: window}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("endpoint rule %q: %w", item, err)
		}
		rules[endpoint] = rule
	}
	return rules, nil
}
