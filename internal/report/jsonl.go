package report

import (
	"encoding/json"
	"io"

	"github.com/programme-lv/membench/internal/bench"
)

// JSONL writes one JSON object per line: a run header followed by each
// result. Suited for appending to a results log across invocations.
type JSONL struct {
	enc *json.Encoder
}

func NewJSONL(out io.Writer) *JSONL {
	return &JSONL{enc: json.NewEncoder(out)}
}

func (j *JSONL) StartRun(info RunInfo) {
	j.enc.Encode(struct {
		Record string `json:"record"`
		RunInfo
	}{Record: "run", RunInfo: info})
}

func (j *JSONL) Report(res *bench.Result) {
	j.enc.Encode(struct {
		Record string `json:"record"`
		*bench.Result
	}{Record: "result", Result: res})
}

func (j *JSONL) FinishRun() {}
