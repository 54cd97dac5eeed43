// Command docs-crawler is the local-only front end for the crawler
// engine: it loads an optional .env file, parses CLI flags into a
// per-job config.Config, and runs the crawl end to end against the
// in-process adapters (in-memory or BadgerHold-backed, per
// ServiceConfig.StoreDir).
package main

import (
	"github.com/joho/godotenv"

	cmd "github.com/crawlkit/docscrawler/internal/cli"
)

func main() {
	_ = godotenv.Load()
	cmd.Execute()
}
