package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"docs-answer-bot/internal/config"
	"docs-answer-bot/internal/llm"
	"docs-answer-bot/internal/logger"
	"docs-answer-bot/internal/search"
	"docs-answer-bot/models"
)

func usage() {
	fmt.Println("Usage: migrate <command> [arg]")
	fmt.Println("Commands:")
	fmt.Println("  ensure-index [dims]  - Create the document index if missing (dims probed from the embedding model when omitted)")
	fmt.Println("  verify-index         - Check the index is reachable and report its document count")
	fmt.Println("  purge-logs <days>    - Delete answer log records older than <days>")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	command := os.Args[1]

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.InitLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch command {
	case "ensure-index":
		err = ensureIndex(ctx, cfg, os.Args[2:])
	case "verify-index":
		err = verifyIndex(ctx, cfg)
	case "purge-logs":
		err = purgeLogs(ctx, cfg, os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", command, err)
		os.Exit(1)
	}
}

func openIndex(cfg *config.Config) (*search.Elastic, error) {
	return search.NewElastic(search.ElasticConfig{
		Address:  cfg.ElasticAddress(),
		Username: cfg.ElasticUser,
		Password: cfg.ElasticPassword,
		Index:    cfg.ElasticIndex,
	})
}

func ensureIndex(ctx context.Context, cfg *config.Config, args []string) error {
	dims, err := vectorDims(ctx, cfg, args)
	if err != nil {
		return err
	}

	es, err := openIndex(cfg)
	if err != nil {
		return err
	}
	created, err := es.EnsureIndex(ctx, dims)
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("Created index %s with %d-dimensional vectors\n", cfg.ElasticIndex, dims)
	} else {
		fmt.Printf("Index %s already exists\n", cfg.ElasticIndex)
	}
	return nil
}

// vectorDims takes the width from args or embeds a probe string.
func vectorDims(ctx context.Context, cfg *config.Config, args []string) (int, error) {
	if len(args) > 0 {
		dims, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, fmt.Errorf("invalid dims %q: %w", args[0], err)
		}
		return dims, nil
	}

	model, err := llm.NewModel(ctx, cfg, nil)
	if err != nil {
		return 0, err
	}
	defer model.Close()

	vec, err := model.EmbedQuery(ctx, "dimension probe")
	if err != nil {
		return 0, fmt.Errorf("probe embedding width: %w", err)
	}
	return len(vec), nil
}

func verifyIndex(ctx context.Context, cfg *config.Config) error {
	es, err := openIndex(cfg)
	if err != nil {
		return err
	}
	if err := es.Ping(ctx); err != nil {
		return err
	}
	n, err := es.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Index %s at %s: %d documents\n", cfg.ElasticIndex, cfg.ElasticAddress(), n)
	return nil
}

func purgeLogs(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("purge-logs needs a retention in days")
	}
	days, err := strconv.Atoi(args[0])
	if err != nil || days < 1 {
		return fmt.Errorf("invalid retention %q", args[0])
	}
	if cfg.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is not set")
	}

	client, err := config.ConnectMongoDB(cfg)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	answerLog := models.NewAnswerLogger(client.Database(cfg.DBName).Collection(config.AnswerLogCollection))
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	deleted, err := answerLog.Purge(ctx, cutoff)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d answer log records older than %s\n", deleted, cutoff.Format(time.RFC3339))
	return nil
}
