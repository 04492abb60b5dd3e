// Package model holds the shared data-model types described in the data
// model section of the ingestion-runtime design: provider registrations,
// subscriptions, watermarks, bars, and the asset/identity tables owned by
// the registry.
package model

import "time"

// ClassType distinguishes a registered code unit's broad role.
type ClassType string

const (
	ClassTypeProvider ClassType = "provider"
	ClassTypeBroker   ClassType = "broker"
)

// ClassSubtype distinguishes a provider's capability shape.
type ClassSubtype string

const (
	SubtypeHistorical ClassSubtype = "Historical"
	SubtypeLive       ClassSubtype = "Live"
	SubtypeIndex      ClassSubtype = "Index"
)

// ProviderRegistration is a row of code_registry: an uploaded, hash-bound
// unit of provider code plus its encrypted credential envelope.
type ProviderRegistration struct {
	ClassName    string
	ClassType    ClassType
	ClassSubtype ClassSubtype
	FilePath     string
	FileHash     [32]byte
	Nonce        [12]byte
	Ciphertext   []byte
	Preferences  map[string]any
	UploadedAt   time.Time
}

// Subscription is a row of provider_subscription: scheduling intent only,
// never credentials.
type Subscription struct {
	Provider string
	Interval string
	Cron     string
	Symbol   string
}

// SubscriptionGroup is the result of aggregating Subscription rows by
// (provider, interval, cron) as the subscriptions view already does.
type SubscriptionGroup struct {
	Provider string
	Interval string
	Cron     string
	Symbols  []string
}

// JobKey returns the scheduler's primary identity for a subscription group:
// "{provider}|{interval}|{cron}".
func (g SubscriptionGroup) JobKey() string {
	return g.Provider + "|" + g.Interval + "|" + g.Cron
}

// Bar is a single OHLCV record, close-instant timestamped.
type Bar struct {
	TS       time.Time
	Sym      string
	Provider string
	Interval string
	O        float64
	H        float64
	L        float64
	C        float64
	V        float64
}

// Req is a historical data request: inclusive [Start, End] range for one
// symbol at one interval.
type Req struct {
	Sym      string
	Start    time.Time
	End      time.Time
	Interval string
}

// Asset is a row of the assets table: a provider-local symbol with
// descriptive metadata.
type Asset struct {
	ClassName     string
	ClassType     ClassType
	Symbol        string
	ExternalID    string
	ISIN          string
	Name          string
	Exchange      string
	AssetClass    string
	BaseCurrency  string
	QuoteCurrency string
	Country       string
}

// AssetMapping is a row of asset_mapping: a link between a common (FIGI)
// identity and a provider-local symbol.
type AssetMapping struct {
	CommonSymbol string
	ClassName    string
	ClassType    ClassType
	ClassSymbol  string
	IsActive     bool
}

// AssetIdentity is a seeded canonical identity record (common_symbol and
// descriptive attributes), loaded from YAML manifests at startup.
type AssetIdentity struct {
	CommonSymbol string `yaml:"common_symbol"`
	Name         string `yaml:"name"`
	AssetClass   string `yaml:"asset_class"`
	Country      string `yaml:"country"`
}

// SymbolInfo is returned by a provider's get_available_symbols.
type SymbolInfo struct {
	Symbol     string
	Name       string
	ExternalID string
	Exchange   string
}

// UpsertStats reports per-item outcomes for a bulk operation such as
// update-assets (§7.5 partial success).
type UpsertStats struct {
	Added   int
	Updated int
	Failed  int
	Errors  []string
}
