package stakepool

import (
	"slices"

	"github.com/gagliardetto/solana-go"
)

// ValidatorList is the ordered, capacity bounded set of validators a pool delegates to.
// Order is insertion order; removed entries stay in place as ReadyForRemoval until Compact.
type ValidatorList struct {
	MaxValidators uint32
	Validators    []ValidatorStakeInfo
}

func NewValidatorList(capacity uint32) *ValidatorList {
	return &ValidatorList{
		MaxValidators: capacity,
		Validators:    []ValidatorStakeInfo{},
	}
}

func (l *ValidatorList) Len() int {
	return len(l.Validators)
}

func (l *ValidatorList) IsFull() bool {
	return uint64(len(l.Validators)) >= uint64(l.MaxValidators)
}

// Find returns the index of vote in the list, or -1.
func (l *ValidatorList) Find(vote solana.PublicKey) int {
	return slices.IndexFunc(l.Validators, func(info ValidatorStakeInfo) bool {
		return info.VoteAccount == vote
	})
}

// Get returns a copy of the entry for vote.
func (l *ValidatorList) Get(vote solana.PublicKey) (ValidatorStakeInfo, error) {
	idx := l.Find(vote)
	if idx == -1 {
		return ValidatorStakeInfo{}, newError(ErrNotFound).at(vote)
	}
	return l.Validators[idx], nil
}

// Add appends vote as a new Active entry. Tombstoned entries still count as present.
func (l *ValidatorList) Add(vote solana.PublicKey, stakeLamports uint64, epoch uint64) error {
	if l.Find(vote) != -1 {
		return newError(ErrDuplicateValidator).at(vote)
	}
	if l.IsFull() {
		return newError(ErrListFull).at(vote).because("capacity %d", l.MaxValidators)
	}
	l.Validators = append(l.Validators, ValidatorStakeInfo{
		ActiveStakeLamports: stakeLamports,
		LastUpdateEpoch:     epoch,
		Status:              StatusActive,
		VoteAccount:         vote,
	})
	return nil
}

// BeginRemove moves an Active entry to DeactivatingTransient, moving its active stake into
// transient while it deactivates. Repeating it on a deactivating entry changes nothing.
func (l *ValidatorList) BeginRemove(vote solana.PublicKey) error {
	idx := l.Find(vote)
	if idx == -1 {
		return newError(ErrNotFound).at(vote)
	}
	entry := &l.Validators[idx]
	switch entry.Status {
	case StatusActive:
		entry.TransientStakeLamports += entry.ActiveStakeLamports
		entry.ActiveStakeLamports = 0
		entry.Status = StatusDeactivatingTransient
		return nil
	case StatusDeactivatingTransient:
		return nil
	}
	return newError(ErrInvalidState).at(vote).because("entry is %s", entry.Status)
}

// FinalizeRemove marks a deactivating entry ReadyForRemoval once its transient stake is gone.
func (l *ValidatorList) FinalizeRemove(vote solana.PublicKey) error {
	idx := l.Find(vote)
	if idx == -1 {
		return newError(ErrNotFound).at(vote)
	}
	entry := &l.Validators[idx]
	switch entry.Status {
	case StatusDeactivatingTransient:
		if entry.TransientStakeLamports != 0 {
			return newError(ErrTransientStakeNonZero).at(vote).because("%d lamports still transient", entry.TransientStakeLamports)
		}
		entry.Status = StatusReadyForRemoval
		return nil
	case StatusReadyForRemoval:
		return nil
	}
	return newError(ErrInvalidState).at(vote).because("entry is %s, removal not started", entry.Status)
}

// UpdateStake records the latest observed stake for vote. Status is never changed here.
func (l *ValidatorList) UpdateStake(vote solana.PublicKey, active, transient, epoch uint64) error {
	idx := l.Find(vote)
	if idx == -1 {
		return newError(ErrNotFound).at(vote)
	}
	entry := &l.Validators[idx]
	entry.ActiveStakeLamports = active
	entry.TransientStakeLamports = transient
	if epoch > entry.LastUpdateEpoch {
		entry.LastUpdateEpoch = epoch
	}
	return nil
}

// AllReadyForRemoval reports whether every entry finished removal. An empty list qualifies.
func (l *ValidatorList) AllReadyForRemoval() bool {
	for _, info := range l.Validators {
		if info.Status != StatusReadyForRemoval {
			return false
		}
	}
	return true
}

// Compact drops ReadyForRemoval entries, keeping the relative order of the rest. It returns the
// number of entries dropped.
func (l *ValidatorList) Compact() int {
	before := len(l.Validators)
	l.Validators = slices.DeleteFunc(l.Validators, func(info ValidatorStakeInfo) bool {
		return info.Status == StatusReadyForRemoval
	})
	return before - len(l.Validators)
}

// TotalLamports sums active and transient stake over every entry.
func (l *ValidatorList) TotalLamports() uint64 {
	var total uint64
	for _, info := range l.Validators {
		total += info.TotalLamports()
	}
	return total
}

// CountByStatus is used for reporting.
func (l *ValidatorList) CountByStatus() map[StakeStatus]int {
	counts := map[StakeStatus]int{}
	for _, info := range l.Validators {
		counts[info.Status]++
	}
	return counts
}

func (l *ValidatorList) clone() *ValidatorList {
	return &ValidatorList{
		MaxValidators: l.MaxValidators,
		Validators:    slices.Clone(l.Validators),
	}
}
