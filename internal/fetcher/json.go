package fetcher

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
)

// DecodeJSONObject decodes a single JSON value from a reader.
func DecodeJSONObject[T any](r io.Reader) (*T, error) {
	var obj T
	if err := json.NewDecoder(r).Decode(&obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return &obj, nil
}

// DecodeTable decodes the Census Data API response shape: a JSON array of
// string arrays whose first element is the header row.
// Returns the header and the data rows; an empty body yields no header.
func DecodeTable(r io.Reader) ([]string, [][]string, error) {
	raw, err := DecodeJSONObject[[][]any](r)
	if err != nil {
		if eris.Is(err, io.EOF) {
			return nil, nil, nil
		}
		return nil, nil, eris.Wrap(err, "json: decode table")
	}
	if len(*raw) == 0 {
		return nil, nil, nil
	}

	header := derefRow((*raw)[0])
	rows := make([][]string, 0, len(*raw)-1)
	for _, r := range (*raw)[1:] {
		rows = append(rows, derefRow(r))
	}
	return header, rows, nil
}

// derefRow converts a decoded row into strings. JSON nulls become "";
// numbers keep their shortest decimal form.
func derefRow(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch t := v.(type) {
		case nil:
		case string:
			out[i] = t
		case float64:
			out[i] = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			out[i] = fmt.Sprint(t)
		}
	}
	return out
}
