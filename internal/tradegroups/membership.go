package tradegroups

import (
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/Xavier-Fan123/oil-trading-system-sub007/common/errors"
)

// membershipIndex is the contract -> open-group index. It is the only shared
// mutable state in the engine; every mutation goes through the mutex so
// concurrent assignments of one contract have exactly one winner. The index
// is owned separately from both the contract and group aggregates.
type membershipIndex struct {
	mu      sync.Mutex
	byGroup map[uuid.UUID]uuid.UUID
}

func newMembershipIndex() *membershipIndex {
	return &membershipIndex{byGroup: make(map[uuid.UUID]uuid.UUID)}
}

// load seeds the index from persisted open-group memberships.
func (m *membershipIndex) load(members map[uuid.UUID]uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for contractID, groupID := range members {
		m.byGroup[contractID] = groupID
	}
}

// assign is a compare-and-set: it succeeds only if the contract has no open
// group yet.
func (m *membershipIndex) assign(contractID, groupID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byGroup[contractID]; ok {
		if existing == groupID {
			return apperrors.NewConflict("contract %s is already a member of this group", contractID)
		}
		return apperrors.NewConflict("contract %s is already assigned to open trade group %s", contractID, existing)
	}
	m.byGroup[contractID] = groupID
	return nil
}

// remove drops the contract from the index, returning the group it belonged
// to, if any.
func (m *membershipIndex) remove(contractID uuid.UUID) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	groupID, ok := m.byGroup[contractID]
	if ok {
		delete(m.byGroup, contractID)
	}
	return groupID, ok
}

// releaseGroup drops every membership of a group, used when the group closes.
func (m *membershipIndex) releaseGroup(groupID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for contractID, g := range m.byGroup {
		if g == groupID {
			delete(m.byGroup, contractID)
		}
	}
}

// groupOf looks up the open group holding a contract.
func (m *membershipIndex) groupOf(contractID uuid.UUID) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	groupID, ok := m.byGroup[contractID]
	return groupID, ok
}

// snapshot copies the index for read-only use during aggregation.
func (m *membershipIndex) snapshot() map[uuid.UUID]uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]uuid.UUID, len(m.byGroup))
	for k, v := range m.byGroup {
		out[k] = v
	}
	return out
}
