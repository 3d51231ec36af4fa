package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"turag/internal/config"
	"turag/internal/embedding"
)

func main() {
	log.SetFlags(0)
	var (
		model = flag.String("model", "", "override model")
		text  = flag.String("text", "", "text to embed (use -stdin to read from STDIN)")
		stdin = flag.Bool("stdin", false, "read entire STDIN as input text")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if *model != "" {
		cfg.Embedding.Model = *model
	}
	if cfg.Embedding.APIKey == "" {
		log.Fatal("EMBED_API_KEY not set (set in .env, environment, or config.yaml)")
	}

	var input string
	if *stdin {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatalf("read stdin: %v", err)
		}
		input = string(b)
	} else {
		input = *text
	}
	if input == "" {
		log.Fatal("no input provided; use -text or -stdin")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Embedding.Timeout)*time.Second)
	defer cancel()

	vectors, err := embedding.EmbedText(ctx, cfg.Embedding, []string{input})
	if err != nil {
		log.Fatalf("embed: %v", err)
	}
	if len(vectors) == 0 {
		log.Fatal("no data returned")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(vectors[0]); err != nil {
		log.Fatalf("encode: %v", err)
	}
}
