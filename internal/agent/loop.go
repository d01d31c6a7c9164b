package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/datasage-io/datasage/pkg/protocol"
)

// Ask runs the tool-use conversation loop for one question and returns the
// final answer with the rendered call trace appended, plus the trace itself.
// Every failure, including an unrecognized tool or a failing SQL query,
// aborts the request and is reported as an answer string beginning with
// "Error:"; nothing is retried or partially salvaged.
func (a *Analyst) Ask(ctx context.Context, question string) (string, *protocol.Trace) {
	trace := &protocol.Trace{}

	answer, err := a.run(ctx, question, trace)
	if err != nil {
		a.Logger.Warn("request failed", "error", err, "tool_calls", trace.Len())
		return "Error: " + err.Error(), trace
	}

	if rendered := trace.Render(); rendered != "" {
		answer = answer + "\n\n" + rendered
	}
	return answer, trace
}

func (a *Analyst) run(ctx context.Context, question string, trace *protocol.Trace) (string, error) {
	system := systemPrompt
	if a.CatalogSummary != nil {
		if summary := a.CatalogSummary(); summary != "" {
			system += "\n\n" + summary
		}
	}

	messages := []protocol.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: question + promptSuffix},
	}

	maxIter := a.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}

	toolDefs := a.Tools.Definitions()

	for i := 0; i < maxIter; i++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("analyst: context cancelled: %w", err)
		}

		a.Logger.Debug("chat request",
			"iteration", i+1,
			"messages", len(messages),
		)

		resp, err := a.Provider.Chat(ctx, protocol.ChatRequest{
			Messages: messages,
			Tools:    toolDefs,
		})
		if err != nil {
			return "", fmt.Errorf("analyst: provider: %w", err)
		}

		// No tool calls means the model has produced its final answer.
		if !resp.HasToolCalls() {
			a.Logger.Debug("final response",
				"iteration", i+1,
				"content_len", len(resp.Content),
				"tool_calls", trace.Len(),
			)
			return resp.Content, nil
		}

		messages = append(messages, protocol.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			a.Logger.Info(fmt.Sprintf("tool call: %s", tc.Name), "call_id", tc.ID)

			start := time.Now()
			result, err := a.Tools.Execute(ctx, tc.Name, tc.Arguments)
			elapsed := time.Since(start)

			if err != nil {
				trace.Append(tc.Name, tc.Arguments, err.Error(), true, elapsed)
				a.notify(trace)
				return "", fmt.Errorf("analyst: tool %s: %w", tc.Name, err)
			}

			trace.Append(tc.Name, tc.Arguments, result, false, elapsed)
			a.notify(trace)
			a.Logger.Info(fmt.Sprintf("tool result: %s", tc.Name),
				"call_id", tc.ID,
				"result_len", len(result),
				"elapsed", elapsed,
			)

			messages = append(messages, protocol.ChatMessage{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
				Name:       tc.Name,
			})
		}
	}

	return "", fmt.Errorf("analyst: exceeded max iterations (%d)", maxIter)
}

// notify forwards the most recent trace entry to the observer, if any.
func (a *Analyst) notify(trace *protocol.Trace) {
	if a.OnTraceEntry != nil && trace.Len() > 0 {
		a.OnTraceEntry(trace.Entries[trace.Len()-1])
	}
}
