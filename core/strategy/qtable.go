package strategy

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// StateKey is the discretized observation of one charger agent. All fields
// are small buckets so the key is directly usable as a map key.
type StateKey struct {
	Status      int8 // 0 available, 1 occupied, 2 failure
	Queue       int8 // queue length, capped at 3
	HourBucket  int8 // hour / 4
	LoadBucket  int8 // grid load: 0 low, 1 >60%, 2 >80%
	RenewBucket int8 // renewable ratio: 0 low, 1 >20%, 2 >50%
	Demand      int8 // nearby low-SoC users, capped at 2
}

// String encodes the key for persistence.
func (k StateKey) String() string {
	return fmt.Sprintf("%d|%d|%d|%d|%d|%d", k.Status, k.Queue, k.HourBucket, k.LoadBucket, k.RenewBucket, k.Demand)
}

// ParseStateKey decodes a persisted key.
func ParseStateKey(s string) (StateKey, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 6 {
		return StateKey{}, fmt.Errorf("state key %q: want 6 fields, got %d", s, len(parts))
	}
	var vals [6]int8
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 8)
		if err != nil {
			return StateKey{}, fmt.Errorf("state key %q: %w", s, err)
		}
		vals[i] = int8(v)
	}
	return StateKey{vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]}, nil
}

// qTable maps discretized states to fixed-length action-value vectors.
type qTable struct {
	actions int
	values  map[StateKey]*mat.VecDense
}

func newQTable(actions int) *qTable {
	return &qTable{actions: actions, values: make(map[StateKey]*mat.VecDense)}
}

// row returns the value vector for the state, creating a zero vector on
// first visit. A persisted vector of the wrong length is reset.
func (t *qTable) row(k StateKey) *mat.VecDense {
	v, ok := t.values[k]
	if !ok || v.Len() != t.actions {
		v = mat.NewVecDense(t.actions, nil)
		t.values[k] = v
	}
	return v
}

// maxValue returns the best action value for the state, zero if unvisited.
func (t *qTable) maxValue(k StateKey) float64 {
	v, ok := t.values[k]
	if !ok || v.Len() == 0 {
		return 0
	}
	best := v.AtVec(0)
	for i := 1; i < v.Len(); i++ {
		if q := v.AtVec(i); q > best {
			best = q
		}
	}
	return best
}

// export flattens the table for persistence.
func (t *qTable) export() map[string][]float64 {
	out := make(map[string][]float64, len(t.values))
	for k, v := range t.values {
		row := make([]float64, v.Len())
		copy(row, v.RawVector().Data)
		out[k.String()] = row
	}
	return out
}

// load replaces the table contents. Entries with an unparsable key or a
// vector of the wrong length are skipped and counted.
func (t *qTable) load(data map[string][]float64) (skipped int) {
	t.values = make(map[StateKey]*mat.VecDense, len(data))
	for ks, row := range data {
		k, err := ParseStateKey(ks)
		if err != nil || len(row) != t.actions {
			skipped++
			continue
		}
		t.values[k] = mat.NewVecDense(len(row), append([]float64(nil), row...))
	}
	return skipped
}

// AgentTables is the flattened persistence form of all Q-tables, keyed by
// charger id then by encoded state.
type AgentTables map[string]map[string][]float64

// QTableStore persists agent tables across runs.
type QTableStore interface {
	Save(tables AgentTables) error
	Load() (AgentTables, error)
}
