package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"folio/internal/cli"
)

func main() {
	var (
		apiBase = flag.String("api-base", "", "API base URL (env: FOLIO_API_BASE)")
		token   = flag.String("token", "", "Bearer token (env: FOLIO_TOKEN)")
		outFmt  = flag.String("output", "text", "Output format: json|text")
	)
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		cli.Usage(os.Stderr)
		os.Exit(2)
	}

	cred := cli.SavedCredentials(os.Stderr)

	ctx := cli.Context{
		APIBase: "http://localhost:8080",
		Output:  cli.Format(strings.TrimSpace(*outFmt)),
	}
	// flag, then env, then the saved login
	switch {
	case strings.TrimSpace(*apiBase) != "":
		ctx.APIBase = strings.TrimSpace(*apiBase)
	case strings.TrimSpace(os.Getenv("FOLIO_API_BASE")) != "":
		ctx.APIBase = strings.TrimSpace(os.Getenv("FOLIO_API_BASE"))
	case cred.APIBase != "":
		ctx.APIBase = cred.APIBase
	}
	ctx.APIBase = strings.TrimRight(ctx.APIBase, "/")

	switch {
	case strings.TrimSpace(*token) != "":
		ctx.Token = strings.TrimSpace(*token)
	case strings.TrimSpace(os.Getenv("FOLIO_TOKEN")) != "":
		ctx.Token = strings.TrimSpace(os.Getenv("FOLIO_TOKEN"))
	default:
		ctx.Token = strings.TrimSpace(cred.Token)
	}

	if err := cli.Dispatch(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
