package state

import (
	"context"
	"encoding/json"
	"math/big"
	"sort"
	"strings"
)

const OrderSetKey = "mm:orders"

// LoadOrderSet returns the persisted set of order ids the bot believed were
// resting when it last saved. Ids are stored as decimal strings so they
// survive uint256 range.
func LoadOrderSet(ctx context.Context, store Store) ([]*big.Int, bool, error) {
	if store == nil {
		return nil, false, nil
	}
	raw, ok, err := store.Get(ctx, OrderSetKey)
	if err != nil {
		return nil, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, false, nil
	}
	var encoded []string
	if err := json.Unmarshal([]byte(raw), &encoded); err != nil {
		return nil, false, err
	}
	ids := make([]*big.Int, 0, len(encoded))
	for _, s := range encoded {
		id, valid := new(big.Int).SetString(s, 10)
		if !valid {
			continue
		}
		ids = append(ids, id)
	}
	return ids, true, nil
}

// SaveOrderSet persists the current resting order ids, deduplicated and
// sorted so repeated saves of the same set write identical rows.
func SaveOrderSet(ctx context.Context, store Store, ids []*big.Int) error {
	if store == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	encoded := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == nil {
			continue
		}
		s := id.String()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		encoded = append(encoded, s)
	}
	sort.Strings(encoded)
	payload, err := json.Marshal(encoded)
	if err != nil {
		return err
	}
	return store.Set(ctx, OrderSetKey, string(payload))
}
