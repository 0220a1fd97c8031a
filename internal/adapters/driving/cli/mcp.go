package cli

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alazoor/Mimachat/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the index to MCP clients",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server",
	Long: `Run a Model Context Protocol server with the search, ask and submit tools
and read-only document resources.

Without --port the server speaks JSON-RPC on stdin/stdout, which is what
desktop assistants expect when they launch "mima mcp serve" themselves.
With --port it serves streamable HTTP on that port until interrupted.`,
	Example: `  mima mcp serve
  mima mcp serve --port 8080`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "serve HTTP on this port instead of stdio")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, _ := cmd.Flags().GetInt("port")

	server, err := mcp.NewServer(&mcp.Ports{
		Search:   searchService,
		Ingest:   ingestService,
		Document: documentService,
	})
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	if port <= 0 {
		return server.Run(ctx)
	}

	addr := net.JoinHostPort("", strconv.Itoa(port))
	fmt.Fprintf(cmd.OutOrStdout(), "Serving MCP on http://localhost%s\n", addr)
	return server.RunHTTP(ctx, addr)
}
