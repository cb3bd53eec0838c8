// Command runquery executes the canonical three-way join and prints its
// result as CSV to stdout, per spec §6's run-query command.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/otterlake/imdbengine/internal/btree"
	"github.com/otterlake/imdbengine/internal/buffer"
	"github.com/otterlake/imdbengine/internal/config"
	"github.com/otterlake/imdbengine/internal/logging"
	"github.com/otterlake/imdbengine/internal/operator"
	"github.com/otterlake/imdbengine/internal/query"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("run-query", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	titleLoFlag := fs.String("title-lo", "", "lower bound of the title range; overrides config")
	titleHiFlag := fs.String("title-hi", "", "upper bound of the title range; overrides config")
	bufferSizeFlag := fs.Int("buffer-size", 0, "buffer pool size in pages; overrides config")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	logger, err := logging.New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "run-query: building logger:", err)
		return 1
	}
	defer logger.Sync()

	cfg, err := config.LoadQueryConfig(*configPath)
	if err != nil {
		logger.Sugar().Errorw("loading config", "error", err)
		return 1
	}
	if *titleLoFlag != "" {
		cfg.TitleLo = *titleLoFlag
	}
	if *titleHiFlag != "" {
		cfg.TitleHi = *titleHiFlag
	}
	if *bufferSizeFlag > 0 {
		cfg.BufferSize = *bufferSizeFlag
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 64
	}
	if cfg.TitleLo == "" || cfg.TitleHi == "" {
		fmt.Fprintln(os.Stderr, "run-query: title-lo and title-hi are required")
		return 1
	}

	pool := buffer.NewPool(logger, cfg.BufferSize)
	defer pool.Close()

	for name, path := range map[string]string{
		"movies":   cfg.Files.Movies,
		"workedon": cfg.Files.WorkedOn,
		"people":   cfg.Files.People,
	} {
		if err := registerExisting(pool, name, path); err != nil {
			logger.Sugar().Errorw("opening table file", "file", path, "error", err)
			return 1
		}
	}

	var indexTree *btree.Tree
	if info, statErr := os.Stat(cfg.Files.TitleIndex); statErr == nil && !info.IsDir() {
		idxFile, openErr := os.OpenFile(cfg.Files.TitleIndex, os.O_RDWR, 0o644)
		if openErr != nil {
			logger.Sugar().Errorw("opening title index", "error", openErr)
			return 1
		}
		defer idxFile.Close()
		size := info.Size()
		if err := pool.RegisterFile("title_index", idxFile, size); err != nil {
			logger.Sugar().Errorw("registering title index", "error", err)
			return 1
		}
		indexSingle := buffer.NewSinglePool(pool, "title_index")
		tree, treeErr := btree.Open(indexSingle, logger, 200)
		if treeErr != nil {
			logger.Sugar().Errorw("opening title index tree", "error", treeErr)
			return 1
		}
		indexTree = tree
	} else {
		logger.Info("no title index found, using full scan")
	}

	files := query.Files{
		Movies:           "movies",
		WorkedOn:         "workedon",
		People:           "people",
		TitleIndex:       "title_index",
		FilteredWorkedOn: cfg.Files.FilteredWorkedOn,
	}
	params := query.Params{TitleLo: cfg.TitleLo, TitleHi: cfg.TitleHi, BufferSize: cfg.BufferSize}

	plan, err := query.Build(pool, files, params, indexTree, logger)
	if err != nil {
		logger.Sugar().Errorw("building plan", "error", err)
		return 1
	}

	if err := emitCSV(os.Stdout, plan); err != nil {
		logger.Sugar().Errorw("running query", "error", err)
		return 1
	}
	return 0
}

func registerExisting(pool *buffer.Pool, name, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("run-query: %s not found: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	return pool.RegisterFile(name, f, info.Size())
}

// emitCSV drives plan to completion, writing a "title,name" header
// followed by one row per output tuple.
func emitCSV(w io.Writer, plan operator.Operator) error {
	if err := plan.Open(); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"title", "name"}); err != nil {
		plan.Close()
		return err
	}
	for {
		t, ok, err := plan.Next()
		if err != nil {
			plan.Close()
			return err
		}
		if !ok {
			break
		}
		title, _ := t.Get("title")
		name, _ := t.Get("name")
		if err := writer.Write([]string{title, name}); err != nil {
			plan.Close()
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		plan.Close()
		return err
	}
	return plan.Close()
}
