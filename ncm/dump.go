package ncm

import (
	"encoding/json"
	"fmt"

	ncmdump "github.com/devgianlu/go-ncmdump"
)

const resultOk = "ok"

// DumpResult is the boundary envelope around one decode. It never carries
// an error value: Result is "ok" on success and the error message otherwise,
// in which case the other fields are empty.
type DumpResult struct {
	Data      []byte
	Metadata  string
	Extension string
	Result    string
}

func (r *DumpResult) Ok() bool {
	return r.Result == resultOk
}

// Dump decodes one container and folds any failure into the result. It
// never panics or aborts the caller. The metadata string is the embedded
// document re-serialized as JSON, empty when the container has none.
func Dump(log ncmdump.Logger, data []byte) *DumpResult {
	decoded, err := NewDecoder(log, data).Decode()
	if err != nil {
		return &DumpResult{Result: err.Error()}
	}

	res := &DumpResult{
		Data:      decoded.Data,
		Extension: decoded.Format.Extension(),
		Result:    resultOk,
	}

	if decoded.Metadata != nil {
		metaJson, err := json.Marshal(decoded.Metadata)
		if err != nil {
			return &DumpResult{Result: fmt.Sprintf("failed marshalling metadata: %s", err)}
		}
		res.Metadata = string(metaJson)
	}

	return res
}
