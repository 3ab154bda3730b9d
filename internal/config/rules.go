package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	aggregationdomain "github.com/smallbiznis/salesledger/internal/aggregation/domain"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// RulesFile is the on-disk shape of aggregation.yml. Mappings are lists
// because viper lower-cases map keys and operator or card names are
// case-sensitive.
type RulesFile struct {
	KindKey             string                     `mapstructure:"kindKey"`
	PaymentKindCash     string                     `mapstructure:"paymentKindCash"`
	PaymentKindCard     string                     `mapstructure:"paymentKindCard"`
	ComposedProductKind string                     `mapstructure:"composedProductKind"`
	CashLabel           string                     `mapstructure:"cashLabel"`
	CardLabel           string                     `mapstructure:"cardLabel"`
	DataKeys            aggregationdomain.DataKeys `mapstructure:"dataKeys"`
	Operators           []OperatorRule             `mapstructure:"operators"`
	CardTypes           []CardTypeRule             `mapstructure:"cardTypes"`
	// LedgerAccountsWithVATRate lists accounts whose postings carry a VAT rate.
	LedgerAccountsWithVATRate []string `mapstructure:"ledgerAccountsWithVatRate"`
}

type OperatorRule struct {
	Name          string `mapstructure:"name"`
	LedgerAccount string `mapstructure:"ledgerAccount"`
}

type CardTypeRule struct {
	CardType      string `mapstructure:"cardType"`
	LedgerAccount string `mapstructure:"ledgerAccount"`
	DocumentType  string `mapstructure:"documentType"`
}

func DefaultRulesFile() RulesFile {
	return RulesFile{
		KindKey:             aggregationdomain.DefaultKindKey,
		PaymentKindCash:     "Bargeld",
		PaymentKindCard:     "Zahlkart",
		ComposedProductKind: aggregationdomain.DefaultComposedProductKind,
		CardLabel:           aggregationdomain.DefaultCardLabel,
		DataKeys:            aggregationdomain.DefaultDataKeys(),
	}
}

// ToRuleConfig converts the file form into the aggregation rules.
func (f RulesFile) ToRuleConfig() (aggregationdomain.RuleConfig, error) {
	cfg := aggregationdomain.RuleConfig{
		KindKey:                   strings.TrimSpace(f.KindKey),
		PaymentKindCash:           f.PaymentKindCash,
		PaymentKindCard:           f.PaymentKindCard,
		ComposedProductKind:       f.ComposedProductKind,
		CashLabel:                 f.CashLabel,
		CardLabel:                 f.CardLabel,
		DataKeys:                  f.DataKeys,
		OperatorLedgerAccounts:    make(map[string]string, len(f.Operators)),
		CardTypeLedgerAccounts:    make(map[string]string, len(f.CardTypes)),
		CardTypeDocumentTypes:     make(map[string]string, len(f.CardTypes)),
		LedgerAccountsWithVATRate: make([]string, 0, len(f.LedgerAccountsWithVATRate)),
	}

	for i, op := range f.Operators {
		if op.Name == "" {
			return aggregationdomain.RuleConfig{}, fmt.Errorf("operators[%d].name cannot be empty", i)
		}
		if _, dup := cfg.OperatorLedgerAccounts[op.Name]; dup {
			return aggregationdomain.RuleConfig{}, fmt.Errorf("operators[%d]: duplicate operator %q", i, op.Name)
		}
		cfg.OperatorLedgerAccounts[op.Name] = strings.TrimSpace(op.LedgerAccount)
	}

	for i, card := range f.CardTypes {
		if card.CardType == "" {
			return aggregationdomain.RuleConfig{}, fmt.Errorf("cardTypes[%d].cardType cannot be empty", i)
		}
		if _, dup := cfg.CardTypeLedgerAccounts[card.CardType]; dup {
			return aggregationdomain.RuleConfig{}, fmt.Errorf("cardTypes[%d]: duplicate card type %q", i, card.CardType)
		}
		cfg.CardTypeLedgerAccounts[card.CardType] = strings.TrimSpace(card.LedgerAccount)
		if documentType := strings.TrimSpace(card.DocumentType); documentType != "" {
			cfg.CardTypeDocumentTypes[card.CardType] = documentType
		}
	}

	for _, account := range f.LedgerAccountsWithVATRate {
		if account = strings.TrimSpace(account); account != "" {
			cfg.LedgerAccountsWithVATRate = append(cfg.LedgerAccountsWithVATRate, account)
		}
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return aggregationdomain.RuleConfig{}, err
	}
	return cfg, nil
}

// RulesHolder serves the current aggregation rules and swaps them in place
// when aggregation.yml changes. Invalid reloads are ignored.
type RulesHolder struct {
	current atomic.Value // holds aggregationdomain.RuleConfig
}

func NewRulesHolder(cfg Config, log *zap.Logger) (*RulesHolder, error) {
	v := viper.New()

	v.SetConfigName("aggregation")
	v.SetConfigType("yml")
	if path := cfg.RulesConfigPath; path != "" {
		switch filepath.Ext(path) {
		case ".yml", ".yaml":
			v.SetConfigFile(path)
		default:
			v.AddConfigPath(path)
		}
	}
	v.AddConfigPath("/etc/salesledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SALESLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultRulesFile()
	v.SetDefault("aggregation.kindKey", defaults.KindKey)
	v.SetDefault("aggregation.paymentKindCash", defaults.PaymentKindCash)
	v.SetDefault("aggregation.paymentKindCard", defaults.PaymentKindCard)
	v.SetDefault("aggregation.composedProductKind", defaults.ComposedProductKind)
	v.SetDefault("aggregation.cardLabel", defaults.CardLabel)
	for key, value := range dataKeyDefaults(defaults.DataKeys) {
		v.SetDefault("aggregation.dataKeys."+key, value)
	}

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
		log.Warn("rules.defaults", zap.String("reason", "aggregation.yml not found"))
	}

	rules, err := decodeRules(v)
	if err != nil {
		return nil, err
	}

	holder := &RulesHolder{}
	holder.Store(rules)

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeRules(v)
			if err != nil {
				log.Error("rules.reload.rejected", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.Store(updated)
			log.Info("rules.reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

// NewStaticRulesHolder serves a fixed rule set.
func NewStaticRulesHolder(rules aggregationdomain.RuleConfig) *RulesHolder {
	holder := &RulesHolder{}
	holder.Store(rules)
	return holder
}

func (h *RulesHolder) Rules() aggregationdomain.RuleConfig {
	return h.current.Load().(aggregationdomain.RuleConfig)
}

func (h *RulesHolder) Store(rules aggregationdomain.RuleConfig) {
	h.current.Store(rules)
}

// decodeRules unmarshals the full settings tree so per-key defaults are
// merged under a partially populated aggregation section.
func decodeRules(v *viper.Viper) (aggregationdomain.RuleConfig, error) {
	var root struct {
		Aggregation RulesFile `mapstructure:"aggregation"`
	}
	if err := v.Unmarshal(&root); err != nil {
		return aggregationdomain.RuleConfig{}, err
	}
	return root.Aggregation.ToRuleConfig()
}

func dataKeyDefaults(keys aggregationdomain.DataKeys) map[string]string {
	return map[string]string{
		"accountingCode": keys.AccountingCode,
		"operatorName":   keys.OperatorName,
		"cardType":       keys.CardType,
		"ledgerAccount":  keys.LedgerAccount,
		"documentType":   keys.DocumentType,
		"vatRate":        keys.VATRate,
		"paymentSale":    keys.PaymentSale,
		"amount":         keys.Amount,
		"costCenter":     keys.CostCenter,
		"costObject":     keys.CostObject,
	}
}
