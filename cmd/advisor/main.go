// Command advisor exercises the generative advisor from the terminal:
// skill recommendations against the live directory and resume feedback.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"saedportal.org/internal/ai"
	"saedportal.org/internal/config"
	"saedportal.org/internal/directory"
	"saedportal.org/internal/gateway"
	"saedportal.org/internal/gateway/pg"
)

func main() {
	log.SetFlags(0)
	var (
		interests  = flag.String("interests", "", "Interests for skill recommendation")
		resumePath = flag.String("resume", "", "Path to a resume text file to analyze")
		timeout    = flag.Duration("timeout", time.Minute, "Request timeout")
	)
	flag.Parse()

	cfg := config.Load()
	client := ai.NewClient(cfg.AIAPIKey, ai.WithModel(cfg.AIModel))
	if !client.Enabled() {
		log.Fatal("advisor disabled: set SAED_AI_API_KEY")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch {
	case *interests != "":
		recommend(ctx, cfg, client, *interests)
	case *resumePath != "":
		analyze(ctx, client, *resumePath)
	default:
		log.Fatal("usage: advisor -interests <text> | -resume <file>")
	}
}

func recommend(ctx context.Context, cfg config.Config, client *ai.Client, interests string) {
	var store gateway.Store
	if cfg.PGDSN != "" {
		pgStore, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
	} else {
		store = gateway.NewInMemory()
	}

	dir := directory.New(store)
	dir.PopulatePublic(ctx)

	suggestions, err := client.RecommendSkills(ctx, interests, dir.ApprovedInstructors())
	if err != nil {
		log.Fatalf("recommend: %v", err)
	}
	out, _ := json.MarshalIndent(suggestions, "", "  ")
	fmt.Println(string(out))
}

func analyze(ctx context.Context, client *ai.Client, path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open resume: %v", err)
	}
	defer f.Close()

	text, err := io.ReadAll(io.LimitReader(f, 1<<20))
	if err != nil {
		log.Fatalf("read resume: %v", err)
	}

	feedback, err := client.AnalyzeResume(ctx, string(text))
	if err != nil {
		log.Fatalf("analyze: %v", err)
	}
	fmt.Println(feedback)
}
