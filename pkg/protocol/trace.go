package protocol

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const renderResultLimit = 400 // chars of tool output shown per trace line

// TraceEntry records one tool invocation made on behalf of the model.
type TraceEntry struct {
	Seq     int            `json:"seq"`
	Tool    string         `json:"tool"`
	Params  map[string]any `json:"params,omitempty"`
	Result  string         `json:"result"`
	IsError bool           `json:"is_error,omitempty"`
	Time    time.Time      `json:"time"`
	Elapsed time.Duration  `json:"elapsed_ns"`
}

// Trace is the append-only, ordered log of tool invocations for a single
// request. It exists for display only and is discarded with the request.
type Trace struct {
	Entries []TraceEntry `json:"entries"`
}

// Append records an invocation. Entries are numbered from 1 in call order.
func (t *Trace) Append(tool string, params map[string]any, result string, isError bool, elapsed time.Duration) {
	t.Entries = append(t.Entries, TraceEntry{
		Seq:     len(t.Entries) + 1,
		Tool:    tool,
		Params:  params,
		Result:  result,
		IsError: isError,
		Time:    time.Now(),
		Elapsed: elapsed,
	})
}

// Len returns the number of recorded invocations.
func (t *Trace) Len() int { return len(t.Entries) }

// Render formats the trace as a plain-text block suitable for appending
// after the model's answer. Returns "" when no tools were invoked.
func (t *Trace) Render() string {
	if len(t.Entries) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Tool calls:\n")
	for _, e := range t.Entries {
		fmt.Fprintf(&b, "%d. %s(%s)\n", e.Seq, e.Tool, formatParams(e.Params))
		result := e.Result
		if len(result) > renderResultLimit {
			result = result[:renderResultLimit] + "... [truncated]"
		}
		prefix := "   -> "
		if e.IsError {
			prefix = "   !! "
		}
		for _, line := range strings.Split(result, "\n") {
			b.WriteString(prefix + line + "\n")
			prefix = "      "
		}
	}
	return b.String()
}

// formatParams renders parameters as key=value pairs in a stable order.
func formatParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return strings.Join(parts, ", ")
}
