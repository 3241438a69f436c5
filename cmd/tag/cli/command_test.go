// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"
)

func TestExecuteDispatchesSubcommand(t *testing.T) {
	var ran []string
	root := &Command{
		Name: "tag",
		Subcommands: []*Command{
			{Name: "get", Run: func(args []string) error {
				ran = append(ran, "get")
				ran = append(ran, args...)
				return nil
			}},
		},
	}

	if err := root.Execute([]string{"get", "photo.jpg"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(ran) != 2 || ran[0] != "get" || ran[1] != "photo.jpg" {
		t.Errorf("ran = %v, want [get photo.jpg]", ran)
	}
}

func TestExecuteUnknownCommandSuggests(t *testing.T) {
	root := &Command{
		Name: "tag",
		Subcommands: []*Command{
			{Name: "get-many", Run: func([]string) error { return nil }},
		},
	}

	err := root.Execute([]string{"get-mny"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), "get-many") {
		t.Errorf("error %q does not suggest get-many", err)
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"add", "add", 0},
		{"ad", "add", 1},
		{"cpy", "copy", 1},
		{"get", "copy", 4},
	}

	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
