package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EngineConfig tunes the query engine. All values have safe defaults so the
// engine is usable without a config file.
type EngineConfig struct {
	// CreditNoteMarkers are substrings matched against a voucher's reserved
	// type name; a match flips the sign of its amount in every aggregation.
	CreditNoteMarkers []string `mapstructure:"creditNoteMarkers"`
	// DefaultTopN caps plain card aggregations when the card declares no topN
	// and is not a time series.
	DefaultTopN int `mapstructure:"defaultTopN"`
	// MaxSegments is the number of segment columns retained before folding
	// into "Other" in segmented pivots.
	MaxSegments int `mapstructure:"maxSegments"`
	// MultiAxisGroupCap caps the shared axis of multi-axis cards.
	MultiAxisGroupCap int `mapstructure:"multiAxisGroupCap"`
	// RawPageLimit bounds a single raw-data page.
	RawPageLimit int `mapstructure:"rawPageLimit"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		CreditNoteMarkers: []string{"Credit Note"},
		DefaultTopN:       10,
		MaxSegments:       5,
		MultiAxisGroupCap: 10,
		RawPageLimit:      500,
	}
}

type EngineConfigHolder struct {
	current atomic.Value // holds EngineConfig
}

func NewEngineConfigHolder() (*EngineConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("engine")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/salesdashboard")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SALESDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultEngineConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		v.SetDefault("engine.creditNoteMarkers", defaults.CreditNoteMarkers)
		v.SetDefault("engine.defaultTopN", defaults.DefaultTopN)
		v.SetDefault("engine.maxSegments", defaults.MaxSegments)
		v.SetDefault("engine.multiAxisGroupCap", defaults.MultiAxisGroupCap)
		v.SetDefault("engine.rawPageLimit", defaults.RawPageLimit)
	}

	var cfg EngineConfig
	if err := v.UnmarshalKey("engine", &cfg); err != nil {
		return nil, err
	}
	applyEngineDefaults(&cfg)
	if err := validateEngineConfig(cfg); err != nil {
		return nil, err
	}

	holder := &EngineConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated EngineConfig
		if err := v.UnmarshalKey("engine", &updated); err != nil {
			log.Printf("[engine-config] reload failed: %v", err)
			return
		}
		applyEngineDefaults(&updated)
		if err := validateEngineConfig(updated); err != nil {
			log.Printf("[engine-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[engine-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *EngineConfigHolder) Get() EngineConfig {
	return h.current.Load().(EngineConfig)
}

// StaticEngineConfigHolder pins a holder to the given config with no file
// watching. Intended for tests.
func StaticEngineConfigHolder(cfg EngineConfig) *EngineConfigHolder {
	applyEngineDefaults(&cfg)
	holder := &EngineConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func applyEngineDefaults(cfg *EngineConfig) {
	defaults := DefaultEngineConfig()
	if len(cfg.CreditNoteMarkers) == 0 {
		cfg.CreditNoteMarkers = defaults.CreditNoteMarkers
	}
	if cfg.DefaultTopN == 0 {
		cfg.DefaultTopN = defaults.DefaultTopN
	}
	if cfg.MaxSegments == 0 {
		cfg.MaxSegments = defaults.MaxSegments
	}
	if cfg.MultiAxisGroupCap == 0 {
		cfg.MultiAxisGroupCap = defaults.MultiAxisGroupCap
	}
	if cfg.RawPageLimit == 0 {
		cfg.RawPageLimit = defaults.RawPageLimit
	}
}

func validateEngineConfig(cfg EngineConfig) error {
	if cfg.DefaultTopN < 1 {
		return errors.New("engine.defaultTopN must be positive")
	}
	if cfg.MaxSegments < 1 {
		return errors.New("engine.maxSegments must be positive")
	}
	if cfg.MultiAxisGroupCap < 1 {
		return errors.New("engine.multiAxisGroupCap must be positive")
	}
	if cfg.RawPageLimit < 1 {
		return errors.New("engine.rawPageLimit must be positive")
	}
	return nil
}
