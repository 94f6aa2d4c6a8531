package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func resetGlobalConfig() {
	globalConfig = &Config{
		DataDir:         ".sigil",
		BindAddr:        "0.0.0.0",
		MetricsPort:     12880,
		IpfsApiUrl:      "http://localhost:5001",
		GatewayBaseUrl:  "https://ipfs.io",
		StorageTimeout:  "30s",
		RetryQueueSize:  256,
		MaxRetries:      3,
		RetryDelay:      "5s",
		RetryInterval:   "1m",
		LedgerTimeout:   "30s",
		SubBatchSize:    10,
		BatchCooldown:   "2s",
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "test-sigil.yaml")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return tmpFile
}

func TestLoad_OverlaysFileOntoDefaults(t *testing.T) {
	resetGlobalConfig()
	yamlContent := `
bindAddr: "127.0.0.1"
metricsPort: 8088
ipfsApiUrl: "http://ipfs.internal:5001"
ledgerUrl: "https://ledger.example.com"
operatorAccount: "0.0.12345"
tokenClassId: "0.0.67890"
subBatchSize: 25
pinEndpoints:
  - name: "pinata"
    endpoint: "https://api.pinata.cloud/pins"
`
	tmpFile := writeConfigFile(t, yamlContent)

	cfg, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.BindAddr != "127.0.0.1" {
		t.Errorf("expected BindAddr 127.0.0.1, got: %s", cfg.BindAddr)
	}
	if cfg.MetricsPort != 8088 {
		t.Errorf("expected MetricsPort 8088, got: %d", cfg.MetricsPort)
	}
	if cfg.IpfsApiUrl != "http://ipfs.internal:5001" {
		t.Errorf("expected overridden IpfsApiUrl, got: %s", cfg.IpfsApiUrl)
	}
	if cfg.SubBatchSize != 25 {
		t.Errorf("expected SubBatchSize 25, got: %d", cfg.SubBatchSize)
	}
	// Values not present in the file keep their defaults
	if cfg.DataDir != ".sigil" {
		t.Errorf("expected default DataDir, got: %s", cfg.DataDir)
	}
	if cfg.RetryQueueSize != 256 {
		t.Errorf("expected default RetryQueueSize, got: %d", cfg.RetryQueueSize)
	}
	if len(cfg.PinEndpoints) != 1 || cfg.PinEndpoints[0].Name != "pinata" {
		t.Errorf("expected one pinata pin endpoint, got: %+v", cfg.PinEndpoints)
	}
}

func TestLoad_MissingTokenClassFails(t *testing.T) {
	resetGlobalConfig()
	yamlContent := `
ledgerUrl: "https://ledger.example.com"
operatorAccount: "0.0.12345"
`
	tmpFile := writeConfigFile(t, yamlContent)

	_, err := LoadConfig(tmpFile)
	if err == nil {
		t.Fatal("expected error for missing token class id")
	}
}

func TestLoad_InvalidDurationFails(t *testing.T) {
	resetGlobalConfig()
	yamlContent := `
ledgerUrl: "https://ledger.example.com"
operatorAccount: "0.0.12345"
tokenClassId: "0.0.67890"
batchCooldown: "not-a-duration"
`
	tmpFile := writeConfigFile(t, yamlContent)

	_, err := LoadConfig(tmpFile)
	if err == nil {
		t.Fatal("expected error for invalid batchCooldown")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	resetGlobalConfig()
	yamlContent := `
ledgerUrl: "https://ledger.example.com"
operatorAccount: "0.0.12345"
tokenClassId: "0.0.67890"
`
	tmpFile := writeConfigFile(t, yamlContent)

	t.Setenv("SIGIL_OPERATOR_ACCOUNT", "0.0.99999")
	cfg, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.OperatorAccount != "0.0.99999" {
		t.Errorf(
			"expected env override for OperatorAccount, got: %s",
			cfg.OperatorAccount,
		)
	}
}

func TestDuration(t *testing.T) {
	if d := Duration("", 5*time.Second); d != 5*time.Second {
		t.Errorf("expected fallback for empty value, got: %v", d)
	}
	if d := Duration("250ms", 5*time.Second); d != 250*time.Millisecond {
		t.Errorf("expected parsed value, got: %v", d)
	}
	if d := Duration("junk", 5*time.Second); d != 5*time.Second {
		t.Errorf("expected fallback for unparseable value, got: %v", d)
	}
}
