package app

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/velvetpos/velvetpos/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/currency"
	"gorm.io/gorm"
)

//go:embed config_schemas.json
var configSchemasData []byte

// ConfigSchema describes one runtime setting.
type ConfigSchema struct {
	Key         string `json:"key"`
	Type        string `json:"type"`
	Default     string `json:"default"`
	Description string `json:"description"`
}

type ConfigSchemasJSON struct {
	Schemas []ConfigSchema `json:"schemas"`
}

var ErrUnknownSetting = errors.New("unknown setting")

// StoreConfig is the decoded "store" category of a store's settings.
type StoreConfig struct {
	Name           string          `json:"name" mapstructure:"name"`
	Currency       string          `json:"currency" mapstructure:"currency"`
	CurrencySymbol string          `json:"currency_symbol" mapstructure:"currency_symbol"`
	TaxRate        decimal.Decimal `json:"tax_rate" mapstructure:"tax_rate"`
	ThemeColor     string          `json:"theme_color" mapstructure:"theme_color"`
	LogoURL        string          `json:"logo_url" mapstructure:"logo_url"`
	Timezone       string          `json:"timezone" mapstructure:"timezone"`
	DemoMode       bool            `json:"demo_mode" mapstructure:"demo_mode"`
}

// ConfigManager serves store-scoped settings from sys_config, falling back to
// schema defaults. Values are cached per store until the store's settings change.
type ConfigManager struct {
	db      *gorm.DB
	schemas map[string]ConfigSchema
	order   []string

	mu    sync.RWMutex
	cache map[string]map[string]string
	group singleflight.Group
}

func NewConfigManager(p DBProvider) *ConfigManager {
	m := &ConfigManager{
		db:      p.DB(),
		schemas: make(map[string]ConfigSchema),
		cache:   make(map[string]map[string]string),
	}
	var data ConfigSchemasJSON
	if err := json.Unmarshal(configSchemasData, &data); err != nil {
		zap.L().Error("failed to load config schemas from JSON", zap.Error(err))
		return m
	}
	for _, s := range data.Schemas {
		m.schemas[s.Key] = s
		m.order = append(m.order, s.Key)
	}
	return m
}

// Schemas returns the setting definitions in declaration order.
func (m *ConfigManager) Schemas() []ConfigSchema {
	out := make([]ConfigSchema, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.schemas[k])
	}
	return out
}

func (m *ConfigManager) values(storeID string) map[string]string {
	m.mu.RLock()
	vals, ok := m.cache[storeID]
	m.mu.RUnlock()
	if ok {
		return vals
	}

	v, err, _ := m.group.Do(storeID, func() (interface{}, error) {
		vals := make(map[string]string, len(m.schemas))
		for k, s := range m.schemas {
			vals[k] = s.Default
		}
		var rows []domain.SysConfig
		if err := m.db.Where("store_id = ?", storeID).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			vals[r.Type+"."+r.Name] = r.Value
		}
		m.mu.Lock()
		m.cache[storeID] = vals
		m.mu.Unlock()
		return vals, nil
	})
	if err != nil {
		zap.L().Error("load settings failed", zap.String("store_id", storeID), zap.Error(err))
		vals := make(map[string]string, len(m.schemas))
		for k, s := range m.schemas {
			vals[k] = s.Default
		}
		return vals
	}
	return v.(map[string]string)
}

// Invalidate drops the cached settings of a store.
func (m *ConfigManager) Invalidate(storeID string) {
	m.mu.Lock()
	delete(m.cache, storeID)
	m.mu.Unlock()
}

func (m *ConfigManager) GetString(storeID, category, name string) string {
	return m.values(storeID)[category+"."+name]
}

func (m *ConfigManager) GetInt64(storeID, category, name string) int64 {
	return cast.ToInt64(m.GetString(storeID, category, name))
}

func (m *ConfigManager) GetBool(storeID, category, name string) bool {
	return cast.ToBool(m.GetString(storeID, category, name))
}

func (m *ConfigManager) GetDecimal(storeID, category, name string) decimal.Decimal {
	d, err := decimal.NewFromString(m.GetString(storeID, category, name))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// TaxRate returns the sales tax rate of a store.
func (m *ConfigManager) TaxRate(storeID string) decimal.Decimal {
	return m.GetDecimal(storeID, "store", "tax_rate")
}

// Category returns all settings of one category keyed by name.
func (m *ConfigManager) Category(storeID, category string) map[string]interface{} {
	out := make(map[string]interface{})
	prefix := category + "."
	for k, v := range m.values(storeID) {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		out[strings.TrimPrefix(k, prefix)] = typedValue(m.schemas[k].Type, v)
	}
	return out
}

func typedValue(typ, v string) interface{} {
	switch typ {
	case "bool":
		return cast.ToBool(v)
	case "int":
		return cast.ToInt64(v)
	default:
		return v
	}
}

func stringToDecimalHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(decimal.Decimal{}) {
		return data, nil
	}
	return decimal.NewFromString(cast.ToString(data))
}

// StoreConfig decodes the store category.
func (m *ConfigManager) StoreConfig(storeID string) (*StoreConfig, error) {
	var sc StoreConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       stringToDecimalHook,
		WeaklyTypedInput: true,
		Result:           &sc,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(m.Category(storeID, "store")); err != nil {
		return nil, errors.Wrap(err, "decode store config")
	}
	return &sc, nil
}

// normalize validates a value against its schema type and returns its stored form.
func normalize(s ConfigSchema, v interface{}) (string, error) {
	switch s.Type {
	case "bool":
		b, err := cast.ToBoolE(v)
		if err != nil {
			return "", errors.Wrapf(err, "%s", s.Key)
		}
		return cast.ToString(b), nil
	case "int":
		i, err := cast.ToInt64E(v)
		if err != nil {
			return "", errors.Wrapf(err, "%s", s.Key)
		}
		return cast.ToString(i), nil
	case "decimal":
		d, err := decimal.NewFromString(cast.ToString(v))
		if err != nil {
			return "", errors.Wrapf(err, "%s", s.Key)
		}
		if d.IsNegative() {
			return "", fmt.Errorf("%s: must not be negative", s.Key)
		}
		return d.String(), nil
	case "currency":
		unit, err := currency.ParseISO(cast.ToString(v))
		if err != nil {
			return "", errors.Wrapf(err, "%s", s.Key)
		}
		return unit.String(), nil
	default:
		return cast.ToString(v), nil
	}
}

// Update merges values into a category of a store's settings. Keys absent
// from values keep their current value.
func (m *ConfigManager) Update(storeID, category string, values map[string]interface{}) error {
	normalized := make(map[string]string, len(values))
	for name, v := range values {
		s, ok := m.schemas[category+"."+name]
		if !ok {
			return errors.Wrapf(ErrUnknownSetting, "%s.%s", category, name)
		}
		str, err := normalize(s, v)
		if err != nil {
			return err
		}
		normalized[name] = str
	}

	err := m.db.Transaction(func(tx *gorm.DB) error {
		for name, v := range normalized {
			res := tx.Model(&domain.SysConfig{}).
				Where("store_id = ? AND type = ? AND name = ?", storeID, category, name).
				Update("value", v)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				continue
			}
			s := m.schemas[category+"."+name]
			if err := tx.Create(&domain.SysConfig{
				StoreID: storeID,
				Sort:    m.sortOf(s.Key),
				Type:    category,
				Name:    name,
				Value:   v,
				Remark:  s.Description,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	m.Invalidate(storeID)
	return err
}

func (m *ConfigManager) sortOf(key string) int {
	for i, k := range m.order {
		if k == key {
			return i
		}
	}
	return len(m.order)
}
