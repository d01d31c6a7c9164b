package agent

import (
	"log/slog"

	"github.com/datasage-io/datasage/internal/provider"
	"github.com/datasage-io/datasage/internal/tool"
	"github.com/datasage-io/datasage/pkg/protocol"
)

const defaultMaxIterations = 16

const systemPrompt = `You are a data analyst with read access to a data warehouse.
Answer the user's question using the available tools to look up datasets, tables,
schemas, and to run SQL queries. Base your answer only on data you retrieved.`

// promptSuffix is appended to every user question.
const promptSuffix = ` Please give a concise, high-level summary followed by detail in
plain language about where the information in your response is coming from in the
database. Only use information that you learn from the data warehouse; do not make
up information.`

// Analyst answers natural-language questions by alternating between the chat
// model and the warehouse tools until the model stops requesting tool calls.
// One Analyst serves many requests; all per-request state lives in Ask.
type Analyst struct {
	Provider      provider.Provider
	Tools         *tool.Registry
	Logger        *slog.Logger
	MaxIterations int

	// CatalogSummary, when set, is rendered into the system prompt so the
	// model starts out knowing what datasets and tables exist.
	CatalogSummary func() string

	// OnTraceEntry, when set, is called after each tool invocation is
	// recorded. Used to stream live progress to the UI.
	OnTraceEntry func(protocol.TraceEntry)
}

// New creates an Analyst with sensible defaults.
func New(prov provider.Provider, tools *tool.Registry) *Analyst {
	return &Analyst{
		Provider:      prov,
		Tools:         tools,
		Logger:        slog.Default(),
		MaxIterations: defaultMaxIterations,
	}
}
