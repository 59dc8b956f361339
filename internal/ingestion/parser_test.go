package ingestion_test

import (
	"CoVault/internal/command"
	"CoVault/internal/ingestion"
	"CoVault/internal/vault"
	"encoding/json"
	"testing"
	"time"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawCommand {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawCommand{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func TestParseCreateVault(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":             "550e8400-e29b-41d4-a716-446655440000",
		"actor":                  "660e8400-e29b-41d4-a716-446655440001",
		"vault_id":               "vault-monet-17",
		"collection":             "gallery",
		"token_id":               int64(17),
		"window_start_us":        int64(1700000000000000),
		"window_end_us":          int64(1700086400000000),
		"initial_price":          int64(2000),
		"default_expected_price": int64(2500),
		"sequence":               int64(0),
		"timestamp_us":           int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "CreateVault")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cv, ok := cmd.(*command.CreateVault)
	if !ok {
		t.Fatalf("expected *command.CreateVault, got %T", cmd)
	}

	if cv.Vault != "vault-monet-17" {
		t.Errorf("vault: got %s, want vault-monet-17", cv.Vault)
	}
	if cv.Asset.Collection != "gallery" || cv.Asset.TokenID != 17 {
		t.Errorf("asset: got %+v", cv.Asset)
	}
	if cv.InitialPrice != 2000 {
		t.Errorf("initial_price: got %d, want 2000", cv.InitialPrice)
	}
	if cv.DefaultExpectedPrice != 2500 {
		t.Errorf("default_expected_price: got %d, want 2500", cv.DefaultExpectedPrice)
	}
	if cv.CommandType() != command.CommandTypeCreateVault {
		t.Errorf("command type: got %v, want CreateVault", cv.CommandType())
	}
}

func TestParseCreateVault_EmptyVaultID_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"actor":        "660e8400-e29b-41d4-a716-446655440001",
		"vault_id":     "",
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	if _, err := ingestion.ParseRawCommand(raw, "CreateVault"); err == nil {
		t.Fatal("expected error for empty vault_id")
	}
}

func TestParseSetVaultState(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"actor":        "660e8400-e29b-41d4-a716-446655440001",
		"vault_id":     "vault-monet-17",
		"new_state":    "Disabled",
		"sequence":     int64(3),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "SetVaultState")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	sv, ok := cmd.(*command.SetVaultState)
	if !ok {
		t.Fatalf("expected *command.SetVaultState, got %T", cmd)
	}
	if sv.NewState != vault.StateDisabled {
		t.Errorf("new_state: got %v, want Disabled", sv.NewState)
	}
}

func TestParseSetVaultState_UnknownState_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"actor":        "660e8400-e29b-41d4-a716-446655440001",
		"vault_id":     "vault-monet-17",
		"new_state":    "Frozen",
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	if _, err := ingestion.ParseRawCommand(raw, "SetVaultState"); err == nil {
		t.Fatal("expected error for unknown state")
	}
}

func TestParseDepositToWallet(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"participant":  "660e8400-e29b-41d4-a716-446655440001",
		"amount":       int64(1_000_000),
		"sequence":     int64(1),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "DepositToWallet")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	dw, ok := cmd.(*command.DepositToWallet)
	if !ok {
		t.Fatalf("expected *command.DepositToWallet, got %T", cmd)
	}
	if dw.Amount != 1_000_000 {
		t.Errorf("amount: got %d, want 1_000_000", dw.Amount)
	}
	if dw.VaultID() != nil {
		t.Errorf("wallet command must have nil vault id, got %v", dw.VaultID())
	}
}

func TestParseDepositToVault(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":             "550e8400-e29b-41d4-a716-446655440000",
		"participant":            "660e8400-e29b-41d4-a716-446655440001",
		"vault_id":               "vault-monet-17",
		"direct_amount":          int64(500),
		"wallet_amount":          int64(300),
		"expected_selling_price": int64(3000),
		"sequence":               int64(2),
		"timestamp_us":           int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "DepositToVault")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	dv, ok := cmd.(*command.DepositToVault)
	if !ok {
		t.Fatalf("expected *command.DepositToVault, got %T", cmd)
	}
	if dv.DirectAmount != 500 || dv.WalletAmount != 300 {
		t.Errorf("amounts: got (%d, %d), want (500, 300)", dv.DirectAmount, dv.WalletAmount)
	}
	if dv.ExpectedSellingPrice != 3000 {
		t.Errorf("expected_selling_price: got %d, want 3000", dv.ExpectedSellingPrice)
	}
	if dv.VaultID() == nil || *dv.VaultID() != "vault-monet-17" {
		t.Errorf("vault id: got %v", dv.VaultID())
	}
}

func TestParseWithdrawFromVault(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":       "550e8400-e29b-41d4-a716-446655440000",
		"participant":      "660e8400-e29b-41d4-a716-446655440001",
		"vault_id":         "vault-monet-17",
		"to_wallet_amount": int64(200),
		"direct_amount":    int64(100),
		"sequence":         int64(4),
		"timestamp_us":     int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "WithdrawFromVault")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	wv, ok := cmd.(*command.WithdrawFromVault)
	if !ok {
		t.Fatalf("expected *command.WithdrawFromVault, got %T", cmd)
	}
	if wv.ToWalletAmount != 200 || wv.DirectAmount != 100 {
		t.Errorf("amounts: got (%d, %d), want (200, 100)", wv.ToWalletAmount, wv.DirectAmount)
	}
}

func TestParseSetSellingPrice(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"participant":  "660e8400-e29b-41d4-a716-446655440001",
		"vault_id":     "vault-monet-17",
		"price":        int64(3000),
		"sequence":     int64(5),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "SetSellingPrice")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	sp, ok := cmd.(*command.SetSellingPrice)
	if !ok {
		t.Fatalf("expected *command.SetSellingPrice, got %T", cmd)
	}
	if sp.Price != 3000 {
		t.Errorf("price: got %d, want 3000", sp.Price)
	}
}

func TestParseCloseFunding(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"actor":        "660e8400-e29b-41d4-a716-446655440001",
		"vault_id":     "vault-monet-17",
		"bought_price": int64(900),
		"sequence":     int64(6),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "CloseFunding")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cf, ok := cmd.(*command.CloseFunding)
	if !ok {
		t.Fatalf("expected *command.CloseFunding, got %T", cmd)
	}
	if cf.BoughtPrice != 900 {
		t.Errorf("bought_price: got %d, want 900", cf.BoughtPrice)
	}
}

func TestParseUnknownCommandType_Fails(t *testing.T) {
	raw := ingestion.RawCommand{Data: []byte(`{}`)}
	if _, err := ingestion.ParseRawCommand(raw, "NonExistentType"); err == nil {
		t.Fatal("expected error for unknown command type")
	}
}

func TestParseInvalidJSON_Fails(t *testing.T) {
	raw := ingestion.RawCommand{Data: []byte(`{invalid json`)}
	if _, err := ingestion.ParseRawCommand(raw, "DepositToWallet"); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseInvalidUUID_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "not-a-uuid",
		"participant":  "also-not-a-uuid",
		"amount":       int64(1),
		"sequence":     int64(0),
		"timestamp_us": int64(0),
	}

	raw := rawFromJSON(t, payload)
	if _, err := ingestion.ParseRawCommand(raw, "DepositToWallet"); err == nil {
		t.Fatal("expected error for invalid UUID")
	}
}
