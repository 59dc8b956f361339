package core

import (
	"fmt"
)

// SequenceValidator validates source sequences per partition. Commands
// partition by vault; wallet-only commands share the global partition.
// Not thread-safe — only accessed from the single-threaded deterministic core.
type SequenceValidator struct {
	expectedNextSeq map[string]int64 // partition -> next expected sequence
}

func NewSequenceValidator() *SequenceValidator {
	return &SequenceValidator{
		expectedNextSeq: make(map[string]int64),
	}
}

// ValidateSequence checks source sequence ordering. It mutates nothing:
// the partition advances via Commit only after the command has fully
// applied, so a rejected command leaves the validator untouched.
//
// Sequences above the expected value are accepted. Upstream counters
// burn a sequence on every attempt, and rejected commands write no
// event, so gaps are a normal consequence of rejections — both live and
// when replaying a log recorded around one.
func (sv *SequenceValidator) ValidateSequence(
	partition string,
	sourceSequence int64,
	isDuplicate bool,
) error {
	expected := sv.expectedNextSeq[partition]

	if sourceSequence < expected {
		// Stale or duplicate
		if isDuplicate {
			// Already processed
			return nil
		}
		// Out-of-order delivery of a NEW command
		return fmt.Errorf("out-of-order command: partition=%s, expected>=%d, got=%d",
			partition, expected, sourceSequence)
	}

	return nil
}

// Commit records an applied command's source sequence. Only the core
// calls this, and only once the command is certain to produce an event.
func (sv *SequenceValidator) Commit(partition string, sourceSequence int64) {
	sv.expectedNextSeq[partition] = sourceSequence + 1
}

// GetExpectedSequence returns next expected sequence for a partition
func (sv *SequenceValidator) GetExpectedSequence(partition string) int64 {
	return sv.expectedNextSeq[partition]
}

// RestorePartition initializes expected sequence (used during recovery)
func (sv *SequenceValidator) RestorePartition(partition string, seq int64) {
	sv.expectedNextSeq[partition] = seq
}

// GetAllPartitions returns a copy of the partition state (snapshot support)
func (sv *SequenceValidator) GetAllPartitions() map[string]int64 {
	out := make(map[string]int64, len(sv.expectedNextSeq))
	for k, v := range sv.expectedNextSeq {
		out[k] = v
	}
	return out
}
