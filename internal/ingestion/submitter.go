package ingestion

import (
	"CoVault/internal/command"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Submission carries a typed command into the core loop together with a
// reply channel, so synchronous surfaces (the HTTP API, admin tooling)
// can observe the domain error of their own command.
type Submission struct {
	Cmd    command.Command
	Result chan error
}

// Submitter injects commands into the core processing loop and waits for
// the outcome. It is the low-volume synchronous path; NATS remains the
// high-throughput asynchronous one.
type Submitter struct {
	submitChan chan<- Submission

	// Per-partition source sequences for self-generated commands. HTTP
	// handlers call NextSequence from concurrent request goroutines, so
	// assignment is guarded even though processing itself funnels into
	// one core loop.
	mu      sync.Mutex
	nextSeq map[string]int64
}

func NewSubmitter(submitChan chan<- Submission) *Submitter {
	return &Submitter{
		submitChan: submitChan,
		nextSeq:    make(map[string]int64),
	}
}

// Submit sends the command and blocks until the core has either applied
// or rejected it.
func (s *Submitter) Submit(ctx context.Context, cmd command.Command) error {
	sub := Submission{
		Cmd:    cmd,
		Result: make(chan error, 1),
	}

	select {
	case s.submitChan <- sub:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-sub.Result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NextSequence assigns the next source sequence for a self-generated
// command on the given partition. Restore must be called on startup with
// the core's recovered partition state before any assignment.
func (s *Submitter) NextSequence(partition string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.nextSeq[partition]
	s.nextSeq[partition] = seq + 1
	return seq
}

// Restore seeds the sequence counters from recovered partition state.
func (s *Submitter) Restore(partitions map[string]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for partition, seq := range partitions {
		s.nextSeq[partition] = seq
	}
}

// InjectWalletDeposit builds and submits a DepositToWallet command on
// behalf of an operator.
func (s *Submitter) InjectWalletDeposit(
	ctx context.Context,
	participant uuid.UUID,
	amount int64,
) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}

	cmd := &command.DepositToWallet{
		CommandID:   uuid.New(),
		Participant: participant,
		Amount:      amount,
		Sequence:    s.NextSequence("global"),
		Timestamp:   time.Now(),
	}

	return s.Submit(ctx, cmd)
}
