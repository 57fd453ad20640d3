package cart

import (
	"encoding/json"
	"fmt"
)

// Snapshots are stored as {"v":1,"items":[...]} so the format can migrate
// later. Early deployments wrote a bare entry array; decodeSnapshot still
// accepts that and treats it as version 1.
const snapshotVersion = 1

type snapshotEnvelope struct {
	V     int     `json:"v"`
	Items []Entry `json:"items"`
}

func encodeSnapshot(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(snapshotEnvelope{V: snapshotVersion, Items: entries})
}

func decodeSnapshot(data []byte) ([]Entry, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err == nil && env.V != 0 {
		if env.V != snapshotVersion {
			return nil, fmt.Errorf("%w: unknown version %d", ErrCorruptSnapshot, env.V)
		}
		return validEntries(env.Items)
	}

	// Legacy bare array.
	var items []Entry
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return validEntries(items)
}

// validEntries re-checks the container invariants on rehydration: a
// snapshot holding duplicate ids or out-of-bounds quantities is corrupt,
// not something to repair entry by entry.
func validEntries(items []Entry) ([]Entry, error) {
	seen := make(map[string]struct{}, len(items))

	for _, e := range items {
		if e.Product.ID == "" {
			return nil, fmt.Errorf("%w: entry without product id", ErrCorruptSnapshot)
		}
		if _, dup := seen[e.Product.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate product %s", ErrCorruptSnapshot, e.Product.ID)
		}
		seen[e.Product.ID] = struct{}{}

		if e.Quantity < 1 || e.Quantity > e.Product.Stock {
			return nil, fmt.Errorf("%w: quantity %d out of bounds for product %s",
				ErrCorruptSnapshot, e.Quantity, e.Product.ID)
		}
		if e.Product.PriceCents < 0 {
			return nil, fmt.Errorf("%w: negative price for product %s",
				ErrCorruptSnapshot, e.Product.ID)
		}
	}

	return items, nil
}
