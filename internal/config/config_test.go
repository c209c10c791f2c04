package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CANCEL_WINDOW_DAYS", "")
	t.Setenv("GATEWAY_TIMEOUT", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()
	if cfg.CancelWindowDays != 2 {
		t.Fatalf("cancel window=%d, want 2", cfg.CancelWindowDays)
	}
	if cfg.GatewayTimeout != 10*time.Second {
		t.Fatalf("gateway timeout=%s", cfg.GatewayTimeout)
	}
	if cfg.PaymentCurrency != "INR" {
		t.Fatalf("currency=%q", cfg.PaymentCurrency)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("brokers=%v", cfg.KafkaBrokers)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CANCEL_WINDOW_DAYS", "5")
	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SNAPSHOT_RETENTION_DAYS", "not-a-number")

	cfg := Load()
	if cfg.CancelWindowDays != 5 {
		t.Fatalf("cancel window=%d", cfg.CancelWindowDays)
	}
	if cfg.GatewayTimeout != 3*time.Second {
		t.Fatalf("gateway timeout=%s", cfg.GatewayTimeout)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers=%v", cfg.KafkaBrokers)
	}
	if cfg.SnapshotRetentionDays != 365 {
		t.Fatalf("invalid int must fall back to default, got %d", cfg.SnapshotRetentionDays)
	}
}
