package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"CoVault/internal/event"
	"CoVault/internal/observability"
)

// ProjectionOutput mirrors the data needed by projection workers.
// The orchestrator bridges between core.CoreOutput and this.
type ProjectionOutput struct {
	Sequence       int64
	EventType      string
	VaultID        *string
	Payload        []byte // JSON-encoded event payload
	JournalEntries []JournalEntry
	Timestamp      int64
}

// JournalEntry is a simplified journal for projection consumption.
type JournalEntry struct {
	DebitAccount  string
	CreditAccount string
	Amount        int64
	JournalType   int32
}

// ProjectionWorker updates projection tables from processed events.
// The projection channel is non-blocking with drop: if projections fall
// behind, they can be rebuilt from the event log.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan ProjectionOutput
	metrics   *observability.Metrics
	lastSeq   int64
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan ProjectionOutput, metrics *observability.Metrics) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
	}
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			start := time.Now()
			if err := pw.processOutput(ctx, output); err != nil {
				log.Printf("WARN: projection update failed at seq=%d: %v", output.Sequence, err)
				// Continue — projections are eventually consistent
				// and can be rebuilt from the event log
			}
			if pw.metrics != nil {
				pw.metrics.ProjectionUpdateDur.Observe(time.Since(start).Seconds())
			}

			pw.lastSeq = output.Sequence
		}
	}
}

func (pw *ProjectionWorker) processOutput(ctx context.Context, output ProjectionOutput) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Update balance projections from journal entries
	for _, j := range output.JournalEntries {
		if err := pw.updateBalanceProjection(ctx, tx, j, output.Sequence); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}
	}

	// Update domain tables (vaults, contributions, settlements)
	if err := applyDomainEvent(ctx, tx, output.Sequence, output.EventType, output.Payload, output.Timestamp); err != nil {
		return fmt.Errorf("domain projection: %w", err)
	}

	// Update projection watermark
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

// updateBalanceProjection applies one journal to the balances table.
// Sign convention matches the in-memory tracker: debit increases,
// credit decreases.
func (pw *ProjectionWorker) updateBalanceProjection(ctx context.Context, tx *sql.Tx, j JournalEntry, seq int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, balance, last_sequence)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_path)
		DO UPDATE SET balance = projections.balances.balance + $2, last_sequence = $3
	`, j.DebitAccount, j.Amount, seq); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, balance, last_sequence)
		VALUES ($1, -$2, $3)
		ON CONFLICT (account_path)
		DO UPDATE SET balance = projections.balances.balance - $2, last_sequence = $3
	`, j.CreditAccount, j.Amount, seq); err != nil {
		return err
	}

	return nil
}

// applyDomainEvent routes an event payload to the vault, contribution,
// and settlement projection tables. Unknown event types are ignored so
// new event types never break an old projection worker.
func applyDomainEvent(ctx context.Context, tx *sql.Tx, seq int64, eventType string, payload []byte, ts int64) error {
	switch eventType {
	case "VaultCreated":
		var p event.VaultCreated
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.vaults
				(vault_id, collection, token_id, window_start, window_end,
				 initial_price, default_expected_price, bought_price, selling_price,
				 total_amount, state, last_sequence)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, 0, 'Funding', $8)
			ON CONFLICT (vault_id) DO NOTHING
		`, p.VaultID, p.Collection, p.TokenID, p.WindowStart, p.WindowEnd,
			p.InitialPrice, p.DefaultExpectedPrice, seq)
		return err

	case "ContributionRecorded":
		var p event.ContributionRecorded
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.contributions
				(vault_id, participant, amount, expected_selling_price, last_sequence)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (vault_id, participant)
			DO UPDATE SET amount = $3,
			              expected_selling_price = CASE WHEN $4 != 0 THEN $4 ELSE projections.contributions.expected_selling_price END,
			              last_sequence = $5
		`, p.VaultID, p.Participant, p.Stake, p.Vote, seq); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.vaults
			SET total_amount = $2, selling_price = $3, last_sequence = $4
			WHERE vault_id = $1
		`, p.VaultID, p.TotalAmount, p.Consensus, seq)
		return err

	case "ContributionWithdrawn":
		var p event.ContributionWithdrawn
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		if p.Evicted {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM projections.contributions
				WHERE vault_id = $1 AND participant = $2
			`, p.VaultID, p.Participant); err != nil {
				return err
			}
		} else {
			if _, err := tx.ExecContext(ctx, `
				UPDATE projections.contributions
				SET amount = $3, last_sequence = $4
				WHERE vault_id = $1 AND participant = $2
			`, p.VaultID, p.Participant, p.Stake, seq); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.vaults
			SET total_amount = $2, selling_price = $3, last_sequence = $4
			WHERE vault_id = $1
		`, p.VaultID, p.TotalAmount, p.Consensus, seq)
		return err

	case "PriceVoted":
		var p event.PriceVoted
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.contributions
			SET expected_selling_price = $3, last_sequence = $4
			WHERE vault_id = $1 AND participant = $2
		`, p.VaultID, p.Participant, p.Vote, seq); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.vaults
			SET selling_price = $2, last_sequence = $3
			WHERE vault_id = $1
		`, p.VaultID, p.Consensus, seq)
		return err

	case "VaultStateChanged":
		var p event.VaultStateChanged
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		if p.BoughtPrice > 0 {
			_, err := tx.ExecContext(ctx, `
				UPDATE projections.vaults
				SET state = $2, bought_price = $3, last_sequence = $4
				WHERE vault_id = $1
			`, p.VaultID, p.NewState, p.BoughtPrice, seq)
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.vaults
			SET state = $2, last_sequence = $3
			WHERE vault_id = $1
		`, p.VaultID, p.NewState, seq)
		return err

	case "VaultSettled":
		var p event.VaultSettled
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE projections.vaults
			SET state = 'Ended', selling_price = $2, bought_price = $3, last_sequence = $4
			WHERE vault_id = $1
		`, p.VaultID, p.SellingPrice, p.BoughtPrice, seq); err != nil {
			return err
		}
		for _, r := range p.Rewards {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO projections.settlements
					(vault_id, participant, stake, reward, reward_pool,
					 total_amount, selling_price, bought_price, settled_at, last_sequence)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				ON CONFLICT (vault_id, participant) DO NOTHING
			`, p.VaultID, r.Participant, r.Stake, r.Reward, p.RewardPool,
				p.TotalAmount, p.SellingPrice, p.BoughtPrice, ts, seq); err != nil {
				return err
			}
		}
		return nil
	}

	// WalletDeposited / WalletWithdrawn only move balances
	return nil
}

// RebuildProjections rebuilds all projection tables from the event log.
// Balances come from a journal aggregate; domain tables are rebuilt by
// replaying stored events in sequence order.
func RebuildProjections(ctx context.Context, db *sql.DB) error {
	truncateStatements := []string{
		`TRUNCATE projections.balances`,
		`TRUNCATE projections.vaults`,
		`TRUNCATE projections.contributions`,
		`TRUNCATE projections.settlements`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	// Debit increases, credit decreases — same convention as the live path
	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, balance, last_sequence)
		SELECT
			debit_account AS account_path,
			SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM covault.journal
		GROUP BY debit_account
	`)
	if err != nil {
		return fmt.Errorf("rebuild debit balances: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, balance, last_sequence)
		SELECT
			credit_account AS account_path,
			-SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM covault.journal
		GROUP BY credit_account
		ON CONFLICT (account_path) DO UPDATE
			SET balance = projections.balances.balance + EXCLUDED.balance,
			    last_sequence = GREATEST(projections.balances.last_sequence, EXCLUDED.last_sequence)
	`)
	if err != nil {
		return fmt.Errorf("rebuild credit balances: %w", err)
	}

	// Replay events for vault, contribution, and settlement tables
	rows, err := db.QueryContext(ctx, `
		SELECT sequence, event_type, payload, timestamp
		FROM covault.events
		ORDER BY sequence ASC
	`)
	if err != nil {
		return fmt.Errorf("load events for rebuild: %w", err)
	}
	defer rows.Close()

	var lastSeq int64
	for rows.Next() {
		var (
			seq       int64
			eventType string
			payload   []byte
			ts        time.Time
		)
		if err := rows.Scan(&seq, &eventType, &payload, &ts); err != nil {
			return err
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := applyDomainEvent(ctx, tx, seq, eventType, payload, ts.UnixMicro()); err != nil {
			tx.Rollback()
			return fmt.Errorf("replay event seq=%d: %w", seq, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		lastSeq = seq
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if lastSeq > 0 {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
			VALUES ('main', $1, NOW())
			ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
		`, lastSeq); err != nil {
			return fmt.Errorf("watermark rebuild: %w", err)
		}
	}

	log.Println("INFO: projection rebuild complete")
	return nil
}
