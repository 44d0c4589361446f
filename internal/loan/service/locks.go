package service

import (
	"sync"

	id "smartlib/pkg/domain"
)

// numLoanShards spreads per-loan locks so returns and extensions of different
// loans rarely contend.
const numLoanShards = 128

// loanLocks serializes mutating sagas on the same loan within this process.
// Cross-process races are still settled by the ledger's conditional updates.
type loanLocks struct {
	shards [numLoanShards]sync.Mutex
}

// lock acquires the shard owning loanID and returns its unlock func.
func (l *loanLocks) lock(loanID id.LoanID) func() {
	m := &l.shards[hashLoanID(loanID.String())%numLoanShards]
	m.Lock()
	return m.Unlock
}

// hashLoanID is FNV-1a.
func hashLoanID(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
