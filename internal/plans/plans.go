package plans

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/GalaDe/payments-webhooks/internal/domain"
)

// Catalog maps provider price ids to internal plan names.
type Catalog struct {
	byPrice map[string]string
}

func NewCatalog(prices map[string]string) *Catalog {
	c := &Catalog{byPrice: make(map[string]string, len(prices))}
	for price, plan := range prices {
		price, plan = strings.TrimSpace(price), strings.TrimSpace(plan)
		if price == "" || plan == "" {
			continue
		}
		c.byPrice[price] = plan
	}
	return c
}

// Resolve returns the plan for priceID, or domain.DefaultPlan when the id is
// unknown.
func (c *Catalog) Resolve(priceID string) string {
	if c == nil {
		return domain.DefaultPlan
	}
	if plan, ok := c.byPrice[priceID]; ok {
		return plan
	}
	return domain.DefaultPlan
}

// PriceFor is the reverse lookup. When several prices map to the same plan
// the lexically smallest price id wins so the answer is stable.
func (c *Catalog) PriceFor(plan string) (string, bool) {
	if c == nil {
		return "", false
	}
	var prices []string
	for price, p := range c.byPrice {
		if p == plan {
			prices = append(prices, price)
		}
	}
	if len(prices) == 0 {
		return "", false
	}
	sort.Strings(prices)
	return prices[0], true
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byPrice)
}

// Entry is one row of the plans file. The file holds a list rather than a
// map because viper lower-cases map keys and price ids are case-sensitive.
type Entry struct {
	PriceID string `mapstructure:"price_id"`
	Plan    string `mapstructure:"plan"`
}

// Load reads the catalog from an optional file (yaml, toml or json, chosen by
// extension) under the "plans" key, then applies overrides in the
// "price_a=plan_a,price_b=plan_b" form.
func Load(path, overrides string) (*Catalog, error) {
	prices := map[string]string{}

	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("plans: read %s: %w", path, err)
		}
		var entries []Entry
		if err := v.UnmarshalKey("plans", &entries); err != nil {
			return nil, fmt.Errorf("plans: decode %s: %w", path, err)
		}
		for _, e := range entries {
			if e.PriceID == "" || e.Plan == "" {
				return nil, fmt.Errorf("plans: %s has an entry without price_id or plan", path)
			}
			prices[e.PriceID] = e.Plan
		}
	}

	parsed, err := ParseOverrides(overrides)
	if err != nil {
		return nil, err
	}
	for price, plan := range parsed {
		prices[price] = plan
	}

	return NewCatalog(prices), nil
}

func ParseOverrides(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		price, plan, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(price) == "" || strings.TrimSpace(plan) == "" {
			return nil, fmt.Errorf("plans: malformed mapping %q, want price_id=plan", pair)
		}
		out[strings.TrimSpace(price)] = strings.TrimSpace(plan)
	}
	return out, nil
}
