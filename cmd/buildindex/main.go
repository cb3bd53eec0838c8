// Command buildindex bulk-loads a Movies.title B+-tree index from an
// already-populated Movies file, grounded on the Java CreateTitleIndex
// utility: scan every row, sort by title, and bulk-insert in order so
// every leaf split is a simple right-edge append.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/otterlake/imdbengine/internal/btree"
	"github.com/otterlake/imdbengine/internal/buffer"
	"github.com/otterlake/imdbengine/internal/config"
	"github.com/otterlake/imdbengine/internal/logging"
	"github.com/otterlake/imdbengine/internal/storage"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("build-index", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	bufferSizeFlag := fs.Int("buffer-size", 0, "buffer pool size in pages; overrides config")
	order := fs.Int("order", 200, "B+-tree order (max keys per node)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	logger, err := logging.New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "build-index: building logger:", err)
		return 1
	}
	defer logger.Sync()

	cfg, err := config.LoadQueryConfig(*configPath)
	if err != nil {
		logger.Sugar().Errorw("loading config", "error", err)
		return 1
	}
	if *bufferSizeFlag > 0 {
		cfg.BufferSize = *bufferSizeFlag
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 5000
	}

	moviesInfo, err := os.Stat(cfg.Files.Movies)
	if err != nil {
		logger.Sugar().Errorw("movies file not found; run pre-process first", "file", cfg.Files.Movies)
		return 1
	}
	moviesFile, err := os.OpenFile(cfg.Files.Movies, os.O_RDWR, 0o644)
	if err != nil {
		logger.Sugar().Errorw("opening movies file", "error", err)
		return 1
	}
	defer moviesFile.Close()

	if err := os.Remove(cfg.Files.TitleIndex); err != nil && !os.IsNotExist(err) {
		logger.Sugar().Errorw("removing stale index file", "error", err)
		return 1
	}
	indexFile, err := os.OpenFile(cfg.Files.TitleIndex, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		logger.Sugar().Errorw("creating index file", "error", err)
		return 1
	}
	defer indexFile.Close()

	pool := buffer.NewPool(logger, cfg.BufferSize)
	defer pool.Close()

	if err := pool.RegisterFile("movies", moviesFile, moviesInfo.Size()); err != nil {
		logger.Sugar().Errorw("registering movies file", "error", err)
		return 1
	}
	if err := pool.RegisterFile("title_index", indexFile, 0); err != nil {
		logger.Sugar().Errorw("registering index file", "error", err)
		return 1
	}
	moviesSingle := buffer.NewSinglePool(pool, "movies")
	indexSingle := buffer.NewSinglePool(pool, "title_index")

	type entry struct {
		title string
		rid   storage.RID
	}
	var entries []entry

	codec := storage.CodecFor(storage.Movies)
	maxRows := codec.MaxRowsPerPage()
	for pageID := storage.PageID(0); ; pageID++ {
		page, err := moviesSingle.GetPage(pageID)
		if err != nil {
			logger.Sugar().Errorw("reading movies page", "page", pageID, "error", err)
			return 1
		}
		if page == nil {
			break
		}
		rowPage := storage.NewRowPage(page, storage.Movies)
		for slot := storage.SlotID(0); int(slot) < maxRows; slot++ {
			row, ok := rowPage.GetRow(slot)
			if !ok {
				break
			}
			if row.Values[1] == "" {
				continue
			}
			entries = append(entries, entry{title: row.Values[1], rid: row.RID})
		}
		moviesSingle.UnpinPage(pageID)
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].title < entries[j].title })

	tree, err := btree.Open(indexSingle, logger, *order)
	if err != nil {
		logger.Sugar().Errorw("opening tree", "error", err)
		return 1
	}
	tree.SetBulkLoad(true)
	for _, e := range entries {
		if err := tree.Insert(e.title, e.rid); err != nil {
			logger.Sugar().Errorw("bulk-inserting", "title", e.title, "error", err)
			return 1
		}
	}
	if err := tree.Flush(); err != nil {
		logger.Sugar().Errorw("flushing index", "error", err)
		return 1
	}

	logger.Sugar().Infow("title index built", "entries", len(entries))
	return 0
}
