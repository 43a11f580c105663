// Command mcp exposes the ask pipeline and document status over the Model
// Context Protocol so editor agents can query the corpus directly.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/akozyrev/factstack/internal/bootstrap"
	"github.com/akozyrev/factstack/internal/config"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "factstack-mcp")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	s := server.NewMCPServer("factstack", "1.0.0")

	askTool := mcp.NewTool("ask",
		mcp.WithDescription("Answer a question from the indexed document corpus. Refuses when the evidence is insufficient."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer."),
		),
		mcp.WithNumber("top_k",
			mcp.Description("How many evidence chunks to retrieve per channel."),
		),
	)
	s.AddTool(askTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		topK := request.GetInt("top_k", 0)

		result, err := app.AskUC.Ask(ctx, question, topK)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
		}

		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	})

	statusTool := mcp.NewTool("document_status",
		mcp.WithDescription("Fetch the indexing status of an uploaded document."),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("The document identifier returned at upload."),
		),
	)
	s.AddTool(statusTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("document_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		doc, err := app.Repo.GetByID(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
		}

		payload, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode document: %v", err)), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	})

	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
