package render

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"

	"github.com/pithecene-io/ferry/fileselector"
)

// BytesPreview is how many leading bytes Plain keeps in a byte preview.
const BytesPreview = 32

// Bytes describes a byte payload without dumping all of it.
type Bytes struct {
	Len int    `json:"len" yaml:"len"`
	Hex string `json:"hex" yaml:"hex"` // first BytesPreview bytes
}

func (b Bytes) String() string {
	if b.Len > BytesPreview {
		return fmt.Sprintf("%d bytes %s...", b.Len, b.Hex)
	}
	return fmt.Sprintf("%d bytes %s", b.Len, b.Hex)
}

// Plain converts a decoded codec value into plain maps, slices and scalars
// that the json and yaml encoders accept. Map keys become strings and byte
// payloads become previews.
func Plain(v any) any {
	switch x := v.(type) {
	case nil, bool, int64, float64, string:
		return x
	case *big.Int:
		return x.String()
	case []byte:
		return preview(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Plain(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[fmt.Sprint(Plain(k))] = Plain(item)
		}
		return out
	case *fileselector.FileResponse:
		if x == nil {
			return nil
		}
		return map[string]any{
			"path":      x.Path,
			"mime_type": x.MimeType,
			"name":      x.Name,
			"size":      x.Size,
			"bytes":     preview(x.Bytes),
		}
	case *fileselector.FileTypes:
		if x == nil {
			return nil
		}
		return map[string]any{
			"mime_types": x.MimeTypes,
			"extensions": x.Extensions,
		}
	default:
		// Typed numeric lists: []int32, []int64, []float32, []float64.
		return x
	}
}

func preview(b []byte) Bytes {
	n := min(len(b), BytesPreview)
	return Bytes{Len: len(b), Hex: hex.EncodeToString(b[:n])}
}

// Keys returns the keys of a Plain map in sorted order.
func Keys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
