// Package auditlog keeps a rolling, process-local Merkle commitment over
// the solver's recent iteration outcomes, so an operator can ask "did you
// really see batch N clear at this price" without trusting a log line
// alone. It is strictly a diagnostic aid: it is never submitted on-chain
// and its root has no relation to the order-commitment tree in
// internal/merkle, which must match the verifier circuit's exact
// domain-separated BN254 hashing.
package auditlog

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/cbergoon/merkletree"
)

// Outcome is one iteration's result: a batch that cleared, was skipped,
// or failed. It is the leaf content of the audit tree.
type Outcome struct {
	BatchID       string
	ClearingPrice string
	MatchedVolume string
	Status        string // "settled", "skipped", "failed"
	Detail        string
}

// CalculateHash implements merkletree.Content.
func (o Outcome) CalculateHash() ([]byte, error) {
	h := sha256.New()
	data := fmt.Sprintf("%s:%s:%s:%s:%s", o.BatchID, o.ClearingPrice, o.MatchedVolume, o.Status, o.Detail)
	h.Write([]byte(data))
	return h.Sum(nil), nil
}

// Equals implements merkletree.Content.
func (o Outcome) Equals(other merkletree.Content) (bool, error) {
	oo, ok := other.(Outcome)
	if !ok {
		return false, nil
	}
	return o == oo, nil
}

// MaxWindow bounds how many outcomes the rolling log retains. Older
// entries are dropped once the window is exceeded.
const MaxWindow = 256

// Log accumulates outcomes and recomputes its Merkle root on demand. It
// is safe for concurrent use: the main loop appends after each iteration
// while the health server may read Root/Recent at any time.
type Log struct {
	mu       sync.Mutex
	outcomes []Outcome
}

// New returns an empty audit log.
func New() *Log {
	return &Log{}
}

// Record appends an outcome, dropping the oldest entry if the window is
// full.
func (l *Log) Record(o Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.outcomes = append(l.outcomes, o)
	if len(l.outcomes) > MaxWindow {
		l.outcomes = l.outcomes[len(l.outcomes)-MaxWindow:]
	}
}

// Root recomputes the Merkle root over the current window of outcomes.
// An empty log has no root.
func (l *Log) Root() (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.outcomes) == 0 {
		return "", false, nil
	}

	contents := make([]merkletree.Content, len(l.outcomes))
	for i, o := range l.outcomes {
		contents[i] = o
	}

	tree, err := merkletree.NewTree(contents)
	if err != nil {
		return "", false, fmt.Errorf("auditlog: building tree: %w", err)
	}
	root := tree.MerkleRoot()
	return fmt.Sprintf("0x%x", root), true, nil
}

// Recent returns a copy of the last n outcomes (fewer if the log is
// shorter), most recent last.
func (l *Log) Recent(n int) []Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n > len(l.outcomes) {
		n = len(l.outcomes)
	}
	out := make([]Outcome, n)
	copy(out, l.outcomes[len(l.outcomes)-n:])
	return out
}
