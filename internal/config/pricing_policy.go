package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PricingPolicy is the hot-reloadable subset of configuration that governs
// how a new order's subtotal and tax are computed (§4.2, §6). It is kept
// separate from the static Config snapshot because, unlike DB credentials,
// operators may legitimately want to flip the tax rate or display mode
// without a restart.
type PricingPolicy struct {
	TaxRate          float64
	PriceDisplayMode PriceDisplayMode
}

func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		TaxRate:          0.16,
		PriceDisplayMode: PriceDisplayTaxExcluded,
	}
}

// PricingPolicyHolder serves the current PricingPolicy and hot-reloads it
// from a "pricing.yaml" file when present, falling back to the static
// Config-derived defaults when no such file exists.
type PricingPolicyHolder struct {
	current atomic.Value // holds PricingPolicy
}

// NewPricingPolicyHolder seeds the holder from cfg and, if a pricing.yaml
// config file is discoverable, watches it for changes.
func NewPricingPolicyHolder(cfg Config) *PricingPolicyHolder {
	holder := &PricingPolicyHolder{}
	holder.current.Store(PricingPolicy{
		TaxRate:          cfg.TaxRate,
		PriceDisplayMode: cfg.PriceDisplayMode,
	})

	v := viper.New()
	v.SetConfigName("pricing")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/kitchencore")
	v.SetEnvPrefix("KITCHENCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// No pricing.yaml on disk: the Config-derived defaults stand.
		return holder
	}

	var loaded PricingPolicy
	if err := v.UnmarshalKey("pricing", &loaded); err == nil {
		if err := validatePricingPolicy(loaded); err == nil {
			holder.current.Store(loaded)
		}
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingPolicy
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Printf("[pricing-policy] reload failed: %v", err)
			return
		}
		if err := validatePricingPolicy(updated); err != nil {
			log.Printf("[pricing-policy] invalid policy ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-policy] reloaded from %s", e.Name)
	})

	return holder
}

func (h *PricingPolicyHolder) Get() PricingPolicy {
	return h.current.Load().(PricingPolicy)
}

func validatePricingPolicy(p PricingPolicy) error {
	if p.TaxRate < 0 {
		return errors.New("pricing.taxRate cannot be negative")
	}
	switch p.PriceDisplayMode {
	case PriceDisplayTaxIncluded, PriceDisplayTaxExcluded:
	default:
		return errors.New("pricing.priceDisplayMode must be tax_included or tax_excluded")
	}
	return nil
}
