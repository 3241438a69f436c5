// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

package tagstore_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/contenttag/tagd/lib/clock"
	"github.com/contenttag/tagd/lib/digest"
	"github.com/contenttag/tagd/lib/tag"
	"github.com/contenttag/tagd/lib/tagstore"
)

func TestAddAndGetTags(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	d := testDigest(t, "some content")

	if err := store.AddTags(ctx, d, parseTags(t, "beta", "alpha")); err != nil {
		t.Fatalf("AddTags: %v", err)
	}

	tags, err := store.GetTags(ctx, d)
	if err != nil {
		t.Fatalf("GetTags: %v", err)
	}

	// Results come back sorted by name.
	assertTags(t, tags, "alpha", "beta")
}

func TestUnknownDigestIsEmpty(t *testing.T) {
	store := openTestStore(t)

	tags, err := store.GetTags(context.Background(), testDigest(t, "never tagged"))
	if err != nil {
		t.Fatalf("GetTags: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("tags = %v, want empty", tag.Strings(tags))
	}
	if tags == nil {
		t.Error("GetTags returned nil, want empty slice")
	}
}

func TestAddTagsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	d := testDigest(t, "idempotent content")

	for n := 0; n < 3; n++ {
		if err := store.AddTags(ctx, d, parseTags(t, "repeat")); err != nil {
			t.Fatalf("AddTags: %v", err)
		}
	}

	tags, err := store.GetTags(ctx, d)
	if err != nil {
		t.Fatalf("GetTags: %v", err)
	}
	assertTags(t, tags, "repeat")
}

func TestAddTagsAccumulate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	d := testDigest(t, "growing content")

	if err := store.AddTags(ctx, d, parseTags(t, "first")); err != nil {
		t.Fatalf("AddTags: %v", err)
	}
	if err := store.AddTags(ctx, d, parseTags(t, "second", "first")); err != nil {
		t.Fatalf("AddTags: %v", err)
	}

	tags, err := store.GetTags(ctx, d)
	if err != nil {
		t.Fatalf("GetTags: %v", err)
	}
	assertTags(t, tags, "first", "second")
}

func TestSharedTagNames(t *testing.T) {
	// Two digests sharing a tag name must remain independent: tagging
	// one never affects the other.
	store := openTestStore(t)
	ctx := context.Background()
	first := testDigest(t, "first content")
	second := testDigest(t, "second content")

	if err := store.AddTags(ctx, first, parseTags(t, "shared", "only-first")); err != nil {
		t.Fatalf("AddTags first: %v", err)
	}
	if err := store.AddTags(ctx, second, parseTags(t, "shared")); err != nil {
		t.Fatalf("AddTags second: %v", err)
	}

	firstTags, err := store.GetTags(ctx, first)
	if err != nil {
		t.Fatalf("GetTags first: %v", err)
	}
	assertTags(t, firstTags, "only-first", "shared")

	secondTags, err := store.GetTags(ctx, second)
	if err != nil {
		t.Fatalf("GetTags second: %v", err)
	}
	assertTags(t, secondTags, "shared")
}

func TestGetMultipleTagsOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	digests := make([]digest.Digest, 10)
	for i := range digests {
		digests[i] = testDigest(t, fmt.Sprintf("content %d", i))
		// Leave every third digest untagged.
		if i%3 == 2 {
			continue
		}
		if err := store.AddTags(ctx, digests[i], parseTags(t, fmt.Sprintf("tag-%d", i))); err != nil {
			t.Fatalf("AddTags %d: %v", i, err)
		}
	}

	results, err := store.GetMultipleTags(ctx, digests)
	if err != nil {
		t.Fatalf("GetMultipleTags: %v", err)
	}
	if len(results) != len(digests) {
		t.Fatalf("got %d results, want %d", len(results), len(digests))
	}

	for i, tags := range results {
		if i%3 == 2 {
			if len(tags) != 0 {
				t.Errorf("result %d = %v, want empty", i, tag.Strings(tags))
			}
			continue
		}
		assertTags(t, tags, fmt.Sprintf("tag-%d", i))
	}
}

func TestGetMultipleTagsEmptyBatch(t *testing.T) {
	store := openTestStore(t)

	results, err := store.GetMultipleTags(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetMultipleTags: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestCopyTags(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	source := testDigest(t, "source content")
	destination := testDigest(t, "destination content")

	if err := store.AddTags(ctx, source, parseTags(t, "one", "two")); err != nil {
		t.Fatalf("AddTags source: %v", err)
	}
	if err := store.AddTags(ctx, destination, parseTags(t, "two", "three")); err != nil {
		t.Fatalf("AddTags destination: %v", err)
	}

	if err := store.CopyTags(ctx, source, destination); err != nil {
		t.Fatalf("CopyTags: %v", err)
	}

	// Destination holds the union.
	destinationTags, err := store.GetTags(ctx, destination)
	if err != nil {
		t.Fatalf("GetTags destination: %v", err)
	}
	assertTags(t, destinationTags, "one", "three", "two")

	// Source is untouched.
	sourceTags, err := store.GetTags(ctx, source)
	if err != nil {
		t.Fatalf("GetTags source: %v", err)
	}
	assertTags(t, sourceTags, "one", "two")
}

func TestCopyTagsEmptySource(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	destination := testDigest(t, "destination content")

	if err := store.AddTags(ctx, destination, parseTags(t, "kept")); err != nil {
		t.Fatalf("AddTags: %v", err)
	}
	if err := store.CopyTags(ctx, testDigest(t, "empty source"), destination); err != nil {
		t.Fatalf("CopyTags: %v", err)
	}

	tags, err := store.GetTags(ctx, destination)
	if err != nil {
		t.Fatalf("GetTags: %v", err)
	}
	assertTags(t, tags, "kept")
}

func TestConcurrentAddsConverge(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	d := testDigest(t, "contended content")

	const goroutineCount = 8
	tagSets := make([][]tag.Tag, goroutineCount)
	for i := range tagSets {
		tagSets[i] = parseTags(t, "common", fmt.Sprintf("worker-%d", i))
	}

	var waitGroup sync.WaitGroup
	errs := make(chan error, goroutineCount)

	for i := 0; i < goroutineCount; i++ {
		i := i
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			if err := store.AddTags(ctx, d, tagSets[i]); err != nil {
				errs <- err
			}
		}()
	}

	waitGroup.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	tags, err := store.GetTags(ctx, d)
	if err != nil {
		t.Fatalf("GetTags: %v", err)
	}
	// One "common" plus one tag per worker.
	if len(tags) != goroutineCount+1 {
		t.Errorf("got %d tags, want %d: %v",
			len(tags), goroutineCount+1, tag.Strings(tags))
	}
}

func TestOpenRequiresClockAndLogger(t *testing.T) {
	_, err := tagstore.Open(tagstore.Config{
		Path:   filepath.Join(t.TempDir(), "tags.db"),
		Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
	})
	if err == nil {
		t.Error("expected error for missing Clock")
	}

	_, err = tagstore.Open(tagstore.Config{
		Path:  filepath.Join(t.TempDir(), "tags.db"),
		Clock: clock.Real(),
	})
	if err == nil {
		t.Error("expected error for missing Logger")
	}
}

// openTestStore creates a store backed by a temporary database file,
// using a fake clock so created_at values are deterministic.
func openTestStore(t *testing.T) *tagstore.Store {
	t.Helper()

	store, err := tagstore.Open(tagstore.Config{
		Path:     filepath.Join(t.TempDir(), "tags.db"),
		PoolSize: 4,
		Clock:    clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

// testDigest returns the digest of the given content string.
func testDigest(t *testing.T, content string) digest.Digest {
	t.Helper()
	d, err := digest.FromReader(strings.NewReader(content))
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}
	return d
}

func parseTags(t *testing.T, names ...string) []tag.Tag {
	t.Helper()
	tags, err := tag.ParseAll(names)
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	return tags
}

// assertTags checks that tags match want exactly, in order.
func assertTags(t *testing.T, tags []tag.Tag, want ...string) {
	t.Helper()
	got := tag.Strings(tags)
	if len(got) != len(want) {
		t.Fatalf("tags = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tags = %v, want %v", got, want)
		}
	}
}
