package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a queried vault or contribution does not
// exist in the projections.
var ErrNotFound = fmt.Errorf("not found")

// QueryService provides read-only access to projection tables. All
// responses include as_of_sequence so callers can reason about
// freshness relative to the event log.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetVault returns a single vault by ID.
func (qs *QueryService) GetVault(ctx context.Context, vaultID string) (*VaultResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var v VaultResponse
	v.AsOfSequence = asOfSeq
	err = qs.db.QueryRowContext(ctx, `
		SELECT vault_id, collection, token_id, window_start, window_end,
		       initial_price, default_expected_price, bought_price,
		       selling_price, total_amount, state
		FROM projections.vaults
		WHERE vault_id = $1
	`, vaultID).Scan(
		&v.VaultID, &v.Collection, &v.TokenID, &v.WindowStart, &v.WindowEnd,
		&v.InitialPrice, &v.DefaultExpectedPrice, &v.BoughtPrice,
		&v.SellingPrice, &v.TotalAmount, &v.State,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVaults returns vaults, optionally filtered by state, with
// cursor-based pagination on vault_id.
func (qs *QueryService) ListVaults(
	ctx context.Context,
	state *string,
	limit int,
	afterVaultID *string,
) ([]VaultResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT vault_id, collection, token_id, window_start, window_end,
		       initial_price, default_expected_price, bought_price,
		       selling_price, total_amount, state
		FROM projections.vaults
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if state != nil {
		query += fmt.Sprintf(" AND state = $%d", argIdx)
		args = append(args, *state)
		argIdx++
	}

	if afterVaultID != nil {
		query += fmt.Sprintf(" AND vault_id > $%d", argIdx)
		args = append(args, *afterVaultID)
		argIdx++
	}

	query += " ORDER BY vault_id ASC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vaults []VaultResponse
	for rows.Next() {
		var v VaultResponse
		v.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&v.VaultID, &v.Collection, &v.TokenID, &v.WindowStart, &v.WindowEnd,
			&v.InitialPrice, &v.DefaultExpectedPrice, &v.BoughtPrice,
			&v.SellingPrice, &v.TotalAmount, &v.State,
		); err != nil {
			return nil, err
		}
		vaults = append(vaults, v)
	}

	return vaults, rows.Err()
}

// GetContribution returns one participant's stake in a vault.
func (qs *QueryService) GetContribution(
	ctx context.Context,
	vaultID string,
	participant uuid.UUID,
) (*ContributionResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var c ContributionResponse
	c.AsOfSequence = asOfSeq
	err = qs.db.QueryRowContext(ctx, `
		SELECT vault_id, participant, amount, expected_selling_price
		FROM projections.contributions
		WHERE vault_id = $1 AND participant = $2
	`, vaultID, participant).Scan(
		&c.VaultID, &c.Participant, &c.Amount, &c.ExpectedSellingPrice,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContributions returns all contributions in a vault.
func (qs *QueryService) ListContributions(
	ctx context.Context,
	vaultID string,
) ([]ContributionResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT vault_id, participant, amount, expected_selling_price
		FROM projections.contributions
		WHERE vault_id = $1
		ORDER BY participant
	`, vaultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contributions []ContributionResponse
	for rows.Next() {
		var c ContributionResponse
		c.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&c.VaultID, &c.Participant, &c.Amount, &c.ExpectedSellingPrice,
		); err != nil {
			return nil, err
		}
		contributions = append(contributions, c)
	}

	return contributions, rows.Err()
}

// GetWalletBalance returns a participant's spending wallet balance.
// A participant with no journal activity has a zero balance, not an error.
func (qs *QueryService) GetWalletBalance(
	ctx context.Context,
	participant uuid.UUID,
) (*WalletBalanceResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	accountPath := fmt.Sprintf("wallet:%s:cash", participant)
	balance, err := qs.getProjectedBalance(ctx, accountPath)
	if err != nil {
		return nil, err
	}

	return &WalletBalanceResponse{
		Participant:  participant,
		Balance:      balance,
		AsOfSequence: asOfSeq,
	}, nil
}

// GetSettlementHistory returns settlement payouts for a participant,
// newest first, with cursor-based pagination on last_sequence.
func (qs *QueryService) GetSettlementHistory(
	ctx context.Context,
	participant uuid.UUID,
	vaultID *string,
	limit int,
	afterSequence *int64,
) ([]SettlementResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT vault_id, stake, reward, reward_pool, total_amount,
		       selling_price, bought_price, settled_at, last_sequence
		FROM projections.settlements
		WHERE participant = $1
	`
	args := []interface{}{participant}
	argIdx := 2

	if vaultID != nil {
		query += fmt.Sprintf(" AND vault_id = $%d", argIdx)
		args = append(args, *vaultID)
		argIdx++
	}

	if afterSequence != nil {
		query += fmt.Sprintf(" AND last_sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY last_sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settlements []SettlementResponse
	for rows.Next() {
		var s SettlementResponse
		s.Participant = participant
		s.AsOfSequence = asOfSeq
		var lastSeq int64
		if err := rows.Scan(
			&s.VaultID, &s.Stake, &s.Reward, &s.RewardPool, &s.TotalAmount,
			&s.SellingPrice, &s.BoughtPrice, &s.SettledAt, &lastSeq,
		); err != nil {
			return nil, err
		}
		settlements = append(settlements, s)
	}

	return settlements, rows.Err()
}

// GetJournalHistory returns journal entries touching a participant's
// wallet, newest first, with cursor-based pagination.
func (qs *QueryService) GetJournalHistory(
	ctx context.Context,
	participant uuid.UUID,
	limit int,
	afterSequence *int64,
) ([]JournalHistoryEntry, error) {
	accountPrefix := fmt.Sprintf("wallet:%s:%%", participant)

	query := `
		SELECT journal_id, batch_id, event_ref, sequence,
		       debit_account, credit_account, amount, journal_type, timestamp
		FROM covault.journal
		WHERE (debit_account LIKE $1 OR credit_account LIKE $1)
	`
	args := []interface{}{accountPrefix}
	argIdx := 2

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.Amount,
			&e.JournalType, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain continuity in the event log and the
// global zero-sum invariant over projected balances.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM covault.events e1
		LEFT JOIN covault.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.sequence > 0 AND e1.prev_hash != COALESCE(e2.state_hash, e1.prev_hash)
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Debits and credits must cancel across all accounts
	var imbalance sql.NullInt64
	if err := qs.db.QueryRowContext(ctx, `
		SELECT SUM(balance) FROM projections.balances
	`).Scan(&imbalance); err != nil {
		return nil, err
	}
	if imbalance.Valid {
		report.GlobalImbalance = imbalance.Int64
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && report.GlobalImbalance == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

func (qs *QueryService) getProjectedBalance(ctx context.Context, accountPath string) (int64, error) {
	var balance int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(balance, 0) FROM projections.balances
		WHERE account_path = $1
	`, accountPath).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}
