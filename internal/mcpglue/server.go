package mcpglue

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/slicegraph/slicegraph/internal/ledger"
	"github.com/slicegraph/slicegraph/internal/log"
)

var logger = log.For("mcpglue")

// Server wraps a ledger.Ledger with an MCP tool surface: one tool per
// operation spec §6 names, plus the server bookkeeping the go-sdk needs.
type Server struct {
	Ledger *ledger.Ledger
	server *mcp.Server
}

// New builds an MCP server around l and registers its tool set. Call
// Server() to get the *mcp.Server to run over a transport (stdio, etc).
func New(l *ledger.Ledger) *Server {
	s := &Server{
		Ledger: l,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "slicegraph-mcp-server",
			Version: "0.1.0",
		}, nil),
	}
	s.registerTools()
	return s
}

// Server returns the underlying MCP server, ready to run over a transport.
func (s *Server) Server() *mcp.Server {
	return s.server
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "index_repo",
		Description: "Index (or re-index) a configured repository and commit a new version.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"repoId": {Type: "string", Description: "Repository ID, as named in the loaded config document"},
				"mode":   {Type: "string", Description: "\"full\" or \"incremental\" (default: incremental)"},
			},
			Required: []string{"repoId"},
		},
	}, s.handleIndexRepo)

	s.server.AddTool(&mcp.Tool{
		Name:        "build_slice",
		Description: "Resolve a start-node set, run the beam search, and lease a token-budgeted slice of cards.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"repoId":          {Type: "string"},
				"entrySymbols":    {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Explicit symbol IDs to seed from"},
				"stackTrace":      {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Stack frame lines to resolve into seeds"},
				"failingTestPath": {Type: "string"},
				"editedFiles":     {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
				"taskText":        {Type: "string", Description: "Free-text task description to resolve seeds from"},
				"detailLevel":     {Type: "string", Description: "minimal|signature|deps|compact|full (default: compact)"},
				"wireFormat":      {Type: "string", Description: "v1|v2|v3 (default: v1)"},
				"maxCards":        {Type: "integer"},
				"maxTokens":       {Type: "integer"},
				"minConfidence":   {Type: "number"},
				"decayPerHop":     {Type: "number"},
				"frontierSize":    {Type: "integer"},
				"maxHops":         {Type: "integer"},
				"direction":       {Type: "string", Description: "out|in|both (default: out)"},
				"maxSymbols":      {Type: "integer"},
			},
			Required: []string{"repoId"},
		},
	}, s.handleBuildSlice)

	s.server.AddTool(&mcp.Tool{
		Name:        "refresh_slice",
		Description: "Renew a slice handle's lease and report what changed since knownVersion.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"handle":       {Type: "string"},
				"knownVersion": {Type: "string"},
			},
			Required: []string{"handle", "knownVersion"},
		},
	}, s.handleRefreshSlice)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_card",
		Description: "Fetch a single symbol's card at full detail, honoring a known ETag for cache revalidation.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"repoId":    {Type: "string"},
				"symbolId":  {Type: "string"},
				"knownEtag": {Type: "string"},
			},
			Required: []string{"repoId", "symbolId"},
		},
	}, s.handleGetCard)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_symbols",
		Description: "Search a repo's indexed symbols by name.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"repoId": {Type: "string"},
				"query":  {Type: "string"},
				"limit":  {Type: "integer", Description: "default: 20"},
			},
			Required: []string{"repoId", "query"},
		},
	}, s.handleSearchSymbols)

	s.server.AddTool(&mcp.Tool{
		Name:        "get_spillover",
		Description: "Page through the symbols a truncated build_slice/refresh_slice dropped into its frontier.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"spilloverHandle": {Type: "string"},
				"cursor":          {Type: "string"},
				"pageSize":        {Type: "integer", Description: "default: 20"},
			},
			Required: []string{"spilloverHandle"},
		},
	}, s.handleGetSpillover)
}
