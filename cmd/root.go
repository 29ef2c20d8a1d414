package cmd

import (
	"context"
	"fmt"
	"strings"
)

const usage = `formula-gateway answers spreadsheet questions with Excel formulas.

Usage:
  formula-gateway serve [--config <path>] [--port <port>] [--env-file <path>]
  formula-gateway help [command]

Commands:
  serve    Start the HTTP server (/convert-formula, /formula-assistant, /process-excel)
  help     Show help for a command

The upstream API key is read from the variable named by upstream.api_key_env
(CHATGPT_API_KEY by default), optionally loaded from --env-file.`

// Execute runs the CLI dispatcher with the provided arguments.
func Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return printUsage()
	}

	switch args[0] {
	case "serve":
		return serve(ctx, args[1:])
	case "help", "-h", "--help":
		return printHelp(args[1:])
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
}

func printHelp(args []string) error {
	if len(args) == 0 {
		return printUsage()
	}
	switch args[0] {
	case "serve":
		fmt.Println(strings.TrimSpace(serveUsage))
		return nil
	default:
		return fmt.Errorf("no help for unknown command %q", args[0])
	}
}

func printUsage() error {
	fmt.Println(strings.TrimSpace(usage))
	return nil
}
