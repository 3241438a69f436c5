// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/contenttag/tagd/cmd/tag/cli"
	"github.com/contenttag/tagd/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "--version" {
		version.Print("tag")
		return nil
	}
	return root().Execute(args)
}

func root() *cli.Command {
	return &cli.Command{
		Name:    "tag",
		Summary: "Attach and query text tags on content digests.",
		Description: "Tag attaches text labels to files by content digest and queries\n" +
			"them back. Files are hashed locally; only the 64-byte digest\n" +
			"travels to the tagd service, never the content.",
		Subcommands: []*cli.Command{
			addCommand(),
			getCommand(),
			getManyCommand(),
			copyCommand(),
		},
	}
}
