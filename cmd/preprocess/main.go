// Command preprocess populates the Movies, WorkedOn, and People files
// from the raw IMDB TSV dumps (title.basics.tsv, title.principals.tsv,
// name.basics.tsv), per spec §6's pre-process command.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/otterlake/imdbengine/internal/buffer"
	"github.com/otterlake/imdbengine/internal/config"
	"github.com/otterlake/imdbengine/internal/logging"
	"github.com/otterlake/imdbengine/internal/storage"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("pre-process", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	titleBasics := fs.String("title-basics", "title.basics.tsv", "path to title.basics.tsv")
	titlePrincipals := fs.String("title-principals", "title.principals.tsv", "path to title.principals.tsv")
	nameBasics := fs.String("name-basics", "name.basics.tsv", "path to name.basics.tsv")
	bufferSizeFlag := fs.Int("buffer-size", 0, "buffer pool size in pages; overrides config")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	logger, err := logging.New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "pre-process: building logger:", err)
		return 1
	}
	defer logger.Sync()

	cfg, err := config.LoadPreprocessConfig(*configPath)
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

	for _, path := range []string{*titleBasics, *titlePrincipals, *nameBasics} {
		if _, err := os.Stat(path); err != nil {
			logger.Sugar().Errorw("required input file not found", "path", path)
			return 1
		}
	}

	pool := buffer.NewPool(logger, cfg.BufferSize)
	defer pool.Close()

	moviesFile, err := openTruncated(cfg.Files.Movies)
	if err != nil {
		logger.Sugar().Errorw("opening movies file", "error", err)
		return 1
	}
	workedOnFile, err := openTruncated(cfg.Files.WorkedOn)
	if err != nil {
		logger.Sugar().Errorw("opening workedon file", "error", err)
		return 1
	}
	peopleFile, err := openTruncated(cfg.Files.People)
	if err != nil {
		logger.Sugar().Errorw("opening people file", "error", err)
		return 1
	}

	if err := pool.RegisterFile("movies", moviesFile, 0); err != nil {
		logger.Sugar().Errorw("registering movies file", "error", err)
		return 1
	}
	if err := pool.RegisterFile("workedon", workedOnFile, 0); err != nil {
		logger.Sugar().Errorw("registering workedon file", "error", err)
		return 1
	}
	if err := pool.RegisterFile("people", peopleFile, 0); err != nil {
		logger.Sugar().Errorw("registering people file", "error", err)
		return 1
	}

	moviesSingle := buffer.NewSinglePool(pool, "movies")
	workedOnSingle := buffer.NewSinglePool(pool, "workedon")
	peopleSingle := buffer.NewSinglePool(pool, "people")

	logger.Info("loading movies table")
	moviesLoaded, err := loadMovies(moviesSingle, *titleBasics)
	if err != nil {
		logger.Sugar().Errorw("loading movies", "error", err)
		return 1
	}
	logger.Sugar().Infow("loaded movies", "rows", moviesLoaded)

	logger.Info("loading workedon table")
	workedOnLoaded, directorCount, err := loadWorkedOn(workedOnSingle, *titlePrincipals)
	if err != nil {
		logger.Sugar().Errorw("loading workedon", "error", err)
		return 1
	}
	logger.Sugar().Infow("loaded workedon", "rows", workedOnLoaded, "directors", directorCount)

	logger.Info("loading people table")
	peopleLoaded, err := loadPeople(peopleSingle, *nameBasics)
	if err != nil {
		logger.Sugar().Errorw("loading people", "error", err)
		return 1
	}
	logger.Sugar().Infow("loaded people", "rows", peopleLoaded)

	if err := pool.ForceAll(); err != nil {
		logger.Sugar().Errorw("force-flushing tables", "error", err)
		return 1
	}
	logger.Info("pre-processing complete")
	return 0
}

func openTruncated(path string) (*os.File, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
}

// rowWriter accumulates fixed-width rows for one table across page
// boundaries, allocating a fresh page whenever the current one fills.
type rowWriter struct {
	single *buffer.SinglePool
	table  storage.TableKind
	page   *storage.RowPage
}

func newRowWriter(single *buffer.SinglePool, table storage.TableKind) (*rowWriter, error) {
	p, err := single.CreatePage()
	if err != nil {
		return nil, err
	}
	return &rowWriter{single: single, table: table, page: storage.NewRowPage(p, table)}, nil
}

func (w *rowWriter) insert(values []string) error {
	if _, ok := w.page.InsertRow(values); ok {
		w.single.MarkDirty(w.page.PageID())
		return nil
	}
	w.single.MarkDirty(w.page.PageID())
	w.single.UnpinPage(w.page.PageID())

	p, err := w.single.CreatePage()
	if err != nil {
		return err
	}
	w.page = storage.NewRowPage(p, w.table)
	if _, ok := w.page.InsertRow(values); !ok {
		return fmt.Errorf("preprocess: row too wide for a fresh page")
	}
	w.single.MarkDirty(w.page.PageID())
	return nil
}

func (w *rowWriter) finish() error {
	w.single.MarkDirty(w.page.PageID())
	w.single.UnpinPage(w.page.PageID())
	return w.single.Force()
}

// loadMovies reads title.basics.tsv (tconst, titleType, primaryTitle,
// ...), skipping rows whose movieId overflows its 9-byte field and
// truncating the title to 30 bytes.
func loadMovies(single *buffer.SinglePool, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w, err := newRowWriter(single, storage.Movies)
	if err != nil {
		return 0, err
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Scan() // header
	loaded := 0
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 3 {
			continue
		}
		movieID := fields[0]
		if len(movieID) > 9 {
			continue
		}
		title := truncate(fields[2], 30)
		if err := w.insert([]string{movieID, title}); err != nil {
			return loaded, err
		}
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return loaded, err
	}
	return loaded, w.finish()
}

// loadWorkedOn reads title.principals.tsv (tconst, ordering, nconst,
// category, ...).
func loadWorkedOn(single *buffer.SinglePool, path string) (loaded int, directors int, err error) {
	f, ferr := os.Open(path)
	if ferr != nil {
		return 0, 0, ferr
	}
	defer f.Close()

	w, werr := newRowWriter(single, storage.WorkedOn)
	if werr != nil {
		return 0, 0, werr
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Scan() // header
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 4 {
			continue
		}
		movieID := fields[0]
		if len(movieID) > 9 {
			continue
		}
		personID := fields[2]
		if len(personID) > 10 {
			continue
		}
		category := truncate(fields[3], 20)
		if strings.Contains(strings.ToLower(category), "direct") {
			directors++
		}
		if err := w.insert([]string{movieID, personID, category}); err != nil {
			return loaded, directors, err
		}
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return loaded, directors, err
	}
	return loaded, directors, w.finish()
}

// loadPeople reads name.basics.tsv (nconst, primaryName, ...).
func loadPeople(single *buffer.SinglePool, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w, err := newRowWriter(single, storage.People)
	if err != nil {
		return 0, err
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Scan() // header
	loaded := 0
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 2 {
			continue
		}
		personID := fields[0]
		if len(personID) > 10 {
			continue
		}
		name := truncate(fields[1], 105)
		if err := w.insert([]string{personID, name}); err != nil {
			return loaded, err
		}
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return loaded, err
	}
	return loaded, w.finish()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
