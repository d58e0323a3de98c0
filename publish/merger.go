package publish

import (
	"encoding/json"
	"fmt"
)

// AppendJSONArray returns a ContentMerger that appends the records of fresh
// (a JSON array) to the records already stored in the target file. Absent or
// unparseable prior content is treated as an empty array, so the first write
// to a branch and recovery from a corrupted file both work without special
// cases in the caller.
func AppendJSONArray(fresh []byte) ContentMerger {
	return func(old []byte) ([]byte, error) {
		var incoming []json.RawMessage
		if err := json.Unmarshal(fresh, &incoming); err != nil {
			return nil, fmt.Errorf("fresh content is not a JSON array: %w", err)
		}

		var existing []json.RawMessage
		if len(old) > 0 {
			if err := json.Unmarshal(old, &existing); err != nil {
				return nil, fmt.Errorf("previous content is not a JSON array: %w", err)
			}
		}

		merged, err := json.Marshal(append(existing, incoming...))
		if err != nil {
			return nil, fmt.Errorf("serialize merged records: %w", err)
		}
		return merged, nil
	}
}
