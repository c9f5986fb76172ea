package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CommissionConfig is the rule file shared by the normalizer, the allocator
// and the rate resolver.
type CommissionConfig struct {
	Classification ClassificationConfig `mapstructure:"classification"`
	Turns          TurnsConfig          `mapstructure:"turns"`
	Qualification  QualificationConfig  `mapstructure:"qualification"`
	Tiers          TiersConfig          `mapstructure:"tiers"`
}

type ClassificationConfig struct {
	UncategorizedKey string       `mapstructure:"uncategorized_key"`
	MergeGroups      []MergeGroup `mapstructure:"merge_groups"`
}

// MergeGroup collapses several raw codes and names into one category group.
type MergeGroup struct {
	Key      string   `mapstructure:"key"`
	Codes    []int    `mapstructure:"codes"`
	Synonyms []string `mapstructure:"synonyms"`
}

type TurnsConfig struct {
	FallbackTotalTurns int `mapstructure:"fallback_total_turns"`
}

type QualificationConfig struct {
	DefaultMinPct float64 `mapstructure:"default_min_pct"`
}

type TiersConfig struct {
	Tier100Pct float64 `mapstructure:"tier100_pct"`
	Tier120Pct float64 `mapstructure:"tier120_pct"`
}

func DefaultCommissionConfig() CommissionConfig {
	return CommissionConfig{
		Classification: ClassificationConfig{
			UncategorizedKey: "uncategorized",
			MergeGroups: []MergeGroup{
				{
					Key:      "fragrance",
					Codes:    []int{10, 11, 12},
					Synonyms: []string{"fragancia", "fragancias", "fragrance", "fragrances", "perfumeria", "perfumes"},
				},
			},
		},
		Turns:         TurnsConfig{FallbackTotalTurns: 100},
		Qualification: QualificationConfig{DefaultMinPct: 80},
		Tiers:         TiersConfig{Tier100Pct: 100, Tier120Pct: 120},
	}
}

type CommissionConfigHolder struct {
	current atomic.Value // holds CommissionConfig
}

// NewStaticCommissionConfigHolder wraps a fixed config, mostly for tests and CLI one-shots.
func NewStaticCommissionConfigHolder(cfg CommissionConfig) *CommissionConfigHolder {
	holder := &CommissionConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewCommissionConfigHolder(appCfg Config, log *zap.Logger) (*CommissionConfigHolder, error) {
	v := viper.New()

	if appCfg.CommissionConfigPath != "" {
		v.SetConfigFile(appCfg.CommissionConfigPath)
	} else {
		v.SetConfigName("commission")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/commission")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("COMMISSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultCommissionConfig()
	v.SetDefault("classification.uncategorized_key", defaults.Classification.UncategorizedKey)
	v.SetDefault("classification.merge_groups", defaults.Classification.MergeGroups)
	v.SetDefault("turns.fallback_total_turns", defaults.Turns.FallbackTotalTurns)
	v.SetDefault("qualification.default_min_pct", defaults.Qualification.DefaultMinPct)
	v.SetDefault("tiers.tier100_pct", defaults.Tiers.Tier100Pct)
	v.SetDefault("tiers.tier120_pct", defaults.Tiers.Tier120Pct)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := unmarshalCommissionConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticCommissionConfigHolder(cfg)
	if !fileLoaded {
		log.Info("commission config file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalCommissionConfig(v)
		if err != nil {
			log.Warn("commission config reload ignored", zap.Error(err), zap.String("file", e.Name))
			return
		}
		holder.current.Store(updated)
		log.Info("commission config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *CommissionConfigHolder) Get() CommissionConfig {
	return h.current.Load().(CommissionConfig)
}

func unmarshalCommissionConfig(v *viper.Viper) (CommissionConfig, error) {
	var cfg CommissionConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return CommissionConfig{}, err
	}
	if err := ValidateCommissionConfig(cfg); err != nil {
		return CommissionConfig{}, err
	}
	return cfg, nil
}

func ValidateCommissionConfig(cfg CommissionConfig) error {
	if strings.TrimSpace(cfg.Classification.UncategorizedKey) == "" {
		return errors.New("classification.uncategorized_key cannot be empty")
	}
	seenCodes := map[int]string{}
	for _, group := range cfg.Classification.MergeGroups {
		if strings.TrimSpace(group.Key) == "" {
			return errors.New("classification.merge_groups[].key cannot be empty")
		}
		for _, code := range group.Codes {
			if code < 0 {
				return fmt.Errorf("merge group %q: negative code %d", group.Key, code)
			}
			if owner, ok := seenCodes[code]; ok && owner != group.Key {
				return fmt.Errorf("code %d belongs to both %q and %q", code, owner, group.Key)
			}
			seenCodes[code] = group.Key
		}
	}
	if cfg.Turns.FallbackTotalTurns < 0 {
		return errors.New("turns.fallback_total_turns cannot be negative")
	}
	if cfg.Qualification.DefaultMinPct < 0 {
		return errors.New("qualification.default_min_pct cannot be negative")
	}
	if cfg.Tiers.Tier100Pct <= 0 || cfg.Tiers.Tier120Pct <= cfg.Tiers.Tier100Pct {
		return errors.New("tiers must satisfy 0 < tier100_pct < tier120_pct")
	}
	return nil
}
