package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"phraseindex/internal/queue"
	"phraseindex/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.DatabasePath())

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse an existing file without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestVideosAddAndList(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"videos", "add", "https://youtu.be/dQw4w9WgXcQ", "--title", "Launch talk"}, env.configPath)
	if err != nil {
		t.Fatalf("videos add: %v", err)
	}
	requireContains(t, out, "Registered video")
	requireContains(t, out, "dQw4w9WgXcQ")

	if _, _, err := runCLI(t, []string{"videos", "add", "dQw4w9WgXcQ"}, env.configPath); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if _, _, err := runCLI(t, []string{"videos", "add", "not a video"}, env.configPath); err == nil {
		t.Fatal("expected invalid reference to fail")
	}

	out, _, err = runCLI(t, []string{"videos", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("videos list: %v", err)
	}
	requireContains(t, out, "dQw4w9WgXcQ")
	requireContains(t, out, "Launch talk")
	requireContains(t, out, "pending")

	out, _, err = runCLI(t, []string{"videos", "list", "--status", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("videos list --status: %v", err)
	}
	requireContains(t, out, "No videos")

	if _, _, err := runCLI(t, []string{"videos", "list", "--status", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestVideosRetryResetsFailed(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	video := testsupport.NewVideo(t, env.store, "abcdefghijk")
	if err := env.store.FinishVideo(ctx, video.ID, queue.VideoFailed, "boom"); err != nil {
		t.Fatalf("FinishVideo: %v", err)
	}

	out, _, err := runCLI(t, []string{"videos", "retry"}, env.configPath)
	if err != nil {
		t.Fatalf("videos retry: %v", err)
	}
	requireContains(t, out, "Reset 1 videos")

	got, err := env.store.GetVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if got.Status != queue.VideoPending {
		t.Fatalf("expected pending after retry, got %s", got.Status)
	}
}

func TestQueueCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	out, _, err := runCLI(t, []string{"queue", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "Queue is empty")

	video := testsupport.NewVideo(t, env.store, "abcdefghijk")
	phrases := testsupport.Phrases(video.ID, 6)
	if _, err := env.store.EnqueueChunks(ctx, video.ID, [][]queue.Phrase{phrases[:3], phrases[3:]}); err != nil {
		t.Fatalf("EnqueueChunks: %v", err)
	}

	out, _, err = runCLI(t, []string{"queue", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "Pending")
	if !strings.Contains(out, "2") {
		t.Fatalf("expected chunk counts in %q", out)
	}

	if _, _, err := runCLI(t, []string{"queue", "clear"}, env.configPath); !errors.Is(err, errVideoIDRequired) {
		t.Fatalf("expected errVideoIDRequired, got %v", err)
	}

	out, _, err = runCLI(t, []string{"queue", "drain"}, env.configPath)
	if err != nil {
		t.Fatalf("queue drain: %v", err)
	}
	requireContains(t, out, "drained")

	count, err := env.store.CountPhrases(ctx, video.ID)
	if err != nil {
		t.Fatalf("CountPhrases: %v", err)
	}
	if count != 6 {
		t.Fatalf("expected 6 phrases after drain, got %d", count)
	}

	out, _, err = runCLI(t, []string{"queue", "clear", "--video", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Cleared 2 chunks")
}

func TestRecoverClearPhrases(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	video := testsupport.NewVideo(t, env.store, "abcdefghijk")
	if _, err := env.store.InsertPhrases(ctx, testsupport.Phrases(video.ID, 4)); err != nil {
		t.Fatalf("InsertPhrases: %v", err)
	}

	if _, _, err := runCLI(t, []string{"recover", "clear-phrases"}, env.configPath); !errors.Is(err, errVideoIDRequired) {
		t.Fatalf("expected errVideoIDRequired, got %v", err)
	}

	out, _, err := runCLI(t, []string{"recover", "clear-phrases", "--video", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("clear-phrases: %v", err)
	}
	requireContains(t, out, "Cleared 4 phrases")

	out, _, err = runCLI(t, []string{"recover", "reset-stuck"}, env.configPath)
	if err != nil {
		t.Fatalf("reset-stuck: %v", err)
	}
	requireContains(t, out, "Reset 0 stuck videos")
}

func TestLogsCommandFiltersByVideo(t *testing.T) {
	env := setupCLITestEnv(t)

	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	content := "2026-01-02T15:04:05Z INFO pipeline: run started video_id=3\n" +
		"2026-01-02T15:04:06Z INFO pipeline: run started video_id=4\n"
	if err := os.WriteFile(filepath.Join(env.cfg.Paths.LogDir, "phraseindex.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--video", "4"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "video_id=4")
	if strings.Contains(out, "video_id=3") {
		t.Fatalf("expected video 3 to be filtered out, got %q", out)
	}
}
