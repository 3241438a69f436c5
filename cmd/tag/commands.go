// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/contenttag/tagd/cmd/tag/cli"
	"github.com/contenttag/tagd/lib/config"
	"github.com/contenttag/tagd/lib/digest"
	"github.com/contenttag/tagd/lib/tag"
	"github.com/contenttag/tagd/lib/tagrpc"
)

// commonFlags holds the flags shared by every subcommand.
type commonFlags struct {
	configPath string
	jsonOutput bool
}

func (f *commonFlags) flagSet(name string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.StringVar(&f.configPath, "config", "", "path to tagd.yaml (overrides TAGD_CONFIG)")
	flags.BoolVar(&f.jsonOutput, "json", false, "output as JSON")
	return flags
}

// connect loads configuration and dials the service.
func (f *commonFlags) connect(ctx context.Context) (*tagrpc.Client, error) {
	var cfg *config.Config
	var err error
	switch {
	case f.configPath != "":
		cfg, err = config.LoadFile(f.configPath)
	case os.Getenv("TAGD_CONFIG") != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return tagrpc.Dial(ctx, cfg.Listen.Network, cfg.Listen.Address)
}

// fileTags is the JSON output shape shared by the subcommands.
type fileTags struct {
	File string   `json:"file"`
	Hash string   `json:"hash"`
	Tags []string `json:"tags"`
}

func addCommand() *cli.Command {
	var flags commonFlags
	return &cli.Command{
		Name:    "add",
		Summary: "Attach tags to a file's content digest.",
		Usage:   "tag add [flags] FILE TAG...",
		Examples: []cli.Example{
			{Description: "Tag a photo", Command: "tag add beach.jpg vacation 2026"},
		},
		Flags: func() *pflag.FlagSet { return flags.flagSet("add") },
		Run: func(args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: tag add FILE TAG...")
			}
			file := args[0]

			// Validate tags before doing any I/O.
			tags, err := tag.ParseAll(args[1:])
			if err != nil {
				return err
			}

			d, err := digest.FromFile(file)
			if err != nil {
				return err
			}

			ctx := context.Background()
			client, err := flags.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.AddTags(ctx, d, tags); err != nil {
				return err
			}

			if flags.jsonOutput {
				return cli.WriteJSON(fileTags{File: file, Hash: d.Hex(), Tags: tag.Strings(tags)})
			}
			return nil
		},
	}
}

func getCommand() *cli.Command {
	var flags commonFlags
	return &cli.Command{
		Name:    "get",
		Summary: "Print the tags attached to a file's content digest.",
		Usage:   "tag get [flags] FILE",
		Flags:   func() *pflag.FlagSet { return flags.flagSet("get") },
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: tag get FILE")
			}
			file := args[0]

			d, err := digest.FromFile(file)
			if err != nil {
				return err
			}

			ctx := context.Background()
			client, err := flags.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			tags, err := client.GetTags(ctx, d)
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				return cli.WriteJSON(fileTags{File: file, Hash: d.Hex(), Tags: tag.Strings(tags)})
			}
			for _, t := range tags {
				fmt.Println(t)
			}
			return nil
		},
	}
}

func getManyCommand() *cli.Command {
	var flags commonFlags
	return &cli.Command{
		Name:    "get-many",
		Summary: "Print the tags of several files in one round trip.",
		Usage:   "tag get-many [flags] FILE...",
		Description: "Hashes every file and fetches all tag lists in a single batch\n" +
			"request. Files that cannot be read are reported on stderr and\n" +
			"skipped; the remaining files are still queried.",
		Flags: func() *pflag.FlagSet { return flags.flagSet("get-many") },
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("usage: tag get-many FILE...")
			}

			// Hash everything first, skipping unreadable files so one
			// bad path does not sink the whole batch.
			var files []string
			var digests []digest.Digest
			for _, file := range args {
				d, err := digest.FromFile(file)
				if err != nil {
					fmt.Fprintf(os.Stderr, "skipping %s: %v\n", file, err)
					continue
				}
				files = append(files, file)
				digests = append(digests, d)
			}
			if len(digests) == 0 {
				return fmt.Errorf("no readable files")
			}

			ctx := context.Background()
			client, err := flags.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			results, err := client.GetMultipleTags(ctx, digests)
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				output := make([]fileTags, len(files))
				for i := range files {
					output[i] = fileTags{
						File: files[i],
						Hash: digests[i].Hex(),
						Tags: tag.Strings(results[i]),
					}
				}
				return cli.WriteJSON(output)
			}

			for i, file := range files {
				fmt.Printf("%s: %s\n", file, strings.Join(tag.Strings(results[i]), ", "))
			}
			return nil
		},
	}
}

func copyCommand() *cli.Command {
	var flags commonFlags
	return &cli.Command{
		Name:    "copy",
		Summary: "Copy every tag from one file's digest to another's.",
		Usage:   "tag copy [flags] SOURCE DESTINATION",
		Description: "Attaches all tags of SOURCE's digest to DESTINATION's digest.\n" +
			"Tags already on the destination are kept; nothing is removed\n" +
			"from the source.",
		Flags: func() *pflag.FlagSet { return flags.flagSet("copy") },
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("usage: tag copy SOURCE DESTINATION")
			}

			source, err := digest.FromFile(args[0])
			if err != nil {
				return err
			}
			destination, err := digest.FromFile(args[1])
			if err != nil {
				return err
			}

			ctx := context.Background()
			client, err := flags.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.CopyTags(ctx, source, destination); err != nil {
				return err
			}

			if flags.jsonOutput {
				return cli.WriteJSON(map[string]string{
					"source_hash":      source.Hex(),
					"destination_hash": destination.Hex(),
				})
			}
			return nil
		},
	}
}
