package weather

import (
	"encoding/json"
	"fmt"
)

const timeKey = "time"

// DecodeCombinedResponse parses the forecast API document. Only the "hourly"
// and "daily" sections are kept; null points decode to nil entries.
func DecodeCombinedResponse(data []byte) (*CombinedResponse, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	resp := &CombinedResponse{blocks: make(map[Granularity]block, len(Granularities))}
	for _, g := range Granularities {
		raw, ok := doc[string(g)]
		if !ok || string(raw) == "null" {
			continue
		}
		b, err := decodeBlock(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", g, err)
		}
		resp.blocks[g] = b
	}
	return resp, nil
}

func decodeBlock(raw json.RawMessage) (block, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return block{}, err
	}

	b := block{values: make(map[string][]*float64, len(fields))}
	for name, v := range fields {
		if name == timeKey {
			if err := json.Unmarshal(v, &b.time); err != nil {
				return block{}, fmt.Errorf("%s: %w", name, err)
			}
			continue
		}
		var values []*float64
		if err := json.Unmarshal(v, &values); err != nil {
			return block{}, fmt.Errorf("%s: %w", name, err)
		}
		b.values[name] = values
	}
	return b, nil
}

// MarshalJSON renders the response in the upstream shape plus fetch metadata.
func (r *CombinedResponse) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"epoch":     r.Epoch,
		"fetchedAt": r.FetchedAt,
		"range":     r.Range,
		"query":     r.Params.Encode(),
		"datasets":  r.Datasets(),
	}
	for g, b := range r.blocks {
		section := make(map[string]any, len(b.values)+1)
		section[timeKey] = b.time
		for name, values := range b.values {
			section[name] = values
		}
		out[string(g)] = section
	}
	return json.Marshal(out)
}
