package main

import (
	"context"
	"fmt"
	"os"
	"path"

	"snapfetch/internal/core"
)

func main() {
	opts, err := core.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Usage: snapfetch [-server url] [-o dir] [-zip] <post-url>")
		os.Exit(1)
	}

	ctx := context.Background()
	client := core.NewClient(opts.ServerURL)

	result, err := client.Submit(ctx, opts.PostURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Fetched %d asset(s) (session %s)\n", len(result.Assets), result.SessionID)
	for _, a := range result.Assets {
		fmt.Printf("  %s  %s (%s)\n", a.Kind, a.Filename, a.ContentType)
	}

	if opts.Bundle {
		zipURL, err := client.RequestBundle(ctx, result.Assets, result.SessionID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error requesting bundle: %v\n", err)
			os.Exit(1)
		}
		dest, err := client.Download(ctx, zipURL, path.Base(stripQuery(zipURL)), opts.OutDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error downloading bundle: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Bundle saved to %s\n", dest)
		return
	}

	for _, a := range result.Assets {
		dest, err := client.Download(ctx, a.DownloadURL, a.Filename, opts.OutDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error downloading %s: %v\n", a.Filename, err)
			os.Exit(1)
		}
		fmt.Printf("✓ Saved %s\n", dest)
	}
}

func stripQuery(u string) string {
	for i := 0; i < len(u); i++ {
		if u[i] == '?' {
			return u[:i]
		}
	}
	return u
}
