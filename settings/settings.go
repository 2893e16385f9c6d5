// Package settings is the recognized-options record for the core,
// replacing the duck-typed option bags flagged in spec.md Design Notes §9.
// Values are loaded from gocore.Config() with defaults from spec.md §6.
package settings

import (
	"strconv"
	"time"

	"github.com/ordishs/gocore"
)

// Settings holds every tunable named in spec.md §6. No silent extras: a
// caller wanting a new knob adds a field here, not a map entry.
type Settings struct {
	AnchorBatch           time.Duration
	AnchorAmountKAS       float64
	UtxoSplitCount        int
	UtxoLowThreshold      int
	UtxoUsableThresholdKAS float64
	TimeDeltaScaleMs      int64
	MaxMovesPerHeartbeat  int
	NopHeartbeat          time.Duration

	GenesisMaxAttempts int
	GenesisBaseBackoff time.Duration
	GenesisMaxBackoff  time.Duration
	GenesisAttemptDeadline time.Duration

	FinalMaxAttempts int
	FinalBaseBackoff time.Duration
	FinalMaxBackoff  time.Duration
	FinalInFlightWait time.Duration
	FinalConsolidateAttempts int

	HeartbeatFailureLimit int
	HeartbeatRearmDelay   time.Duration

	StaleReservationAge time.Duration
	PoolReplenishPeriod time.Duration

	EntropyWindowTTL  time.Duration
	VaultExpectedMoves int

	KafkaBrokers []string
	KafkaTopic   string

	NistBeaconURLFmt  string
	BtcExplorerURLFmt string
	AuditHTTPTimeout  time.Duration
}

// NewSettings returns a fully-defaulted Settings, overridden by any values
// present in gocore.Config().
func NewSettings() *Settings {
	cfg := gocore.Config()

	s := &Settings{
		AnchorBatch:            cfg.GetDuration("ANCHOR_BATCH_MS", 500*time.Millisecond),
		AnchorAmountKAS:        getFloat(cfg, "ANCHOR_AMOUNT", 0.5),
		UtxoSplitCount:         cfg.GetInt("UTXO_SPLIT_COUNT", 10),
		UtxoLowThreshold:       cfg.GetInt("UTXO_LOW_THRESHOLD", 3),
		UtxoUsableThresholdKAS: getFloat(cfg, "UTXO_USABLE_THRESHOLD_KAS", 0.6),
		TimeDeltaScaleMs:       int64(cfg.GetInt("TIME_DELTA_SCALE", 4)),
		MaxMovesPerHeartbeat:   cfg.GetInt("MAX_MOVES", 255),
		NopHeartbeat:           cfg.GetDuration("NOP_HEARTBEAT_MS", 1020*time.Millisecond),

		GenesisMaxAttempts:     cfg.GetInt("GENESIS_MAX_ATTEMPTS", 5),
		GenesisBaseBackoff:     1500 * time.Millisecond,
		GenesisMaxBackoff:      10 * time.Second,
		GenesisAttemptDeadline: 30 * time.Second,

		FinalMaxAttempts:         cfg.GetInt("FINAL_MAX_ATTEMPTS", 10),
		FinalBaseBackoff:         1500 * time.Millisecond,
		FinalMaxBackoff:          15 * time.Second,
		FinalInFlightWait:        2 * time.Second,
		FinalConsolidateAttempts: 3,

		HeartbeatFailureLimit: 5,
		HeartbeatRearmDelay:   500 * time.Millisecond,

		StaleReservationAge: 10 * time.Second,
		PoolReplenishPeriod: 2 * time.Second,

		EntropyWindowTTL:   cfg.GetDuration("ENTROPY_WINDOW_TTL_MS", 5*time.Minute),
		VaultExpectedMoves: cfg.GetInt("VAULT_EXPECTED_MOVES", 4096),

		KafkaBrokers: splitCSV(getString(cfg, "KAFKA_BROKERS", "")),
		KafkaTopic:   getString(cfg, "KAFKA_ANCHOR_EVENTS_TOPIC", "anchor-events"),

		NistBeaconURLFmt:  getString(cfg, "NIST_BEACON_URL_FMT", "https://beacon.nist.gov/beacon/2.0/chain/1/pulse/%d"),
		BtcExplorerURLFmt: getString(cfg, "BTC_EXPLORER_URL_FMT", "https://blockstream.info/api/block/%s"),
		AuditHTTPTimeout:  cfg.GetDuration("AUDIT_HTTP_TIMEOUT_MS", 10*time.Second),
	}

	return s
}

func getString(cfg *gocore.ConfigMap, key, def string) string {
	v, ok := cfg.Get(key, def)
	if !ok {
		return def
	}
	return v
}

func getFloat(cfg *gocore.ConfigMap, key string, def float64) float64 {
	s, ok := cfg.Get(key)
	if !ok || s == "" {
		return def
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}

	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
