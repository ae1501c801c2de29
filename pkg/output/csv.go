// Package output renders the final statistics table to disk.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"

	"filmstats/pkg/models"
)

// header lists the output columns in their fixed order.
var header = []string{
	"Director Name",
	"Number of films",
	"Latest release year",
	"Earliest release year",
	"Average rating",
	"Total watched",
	"Average watched",
	"Standard deviation of watched",
	"Highest rated film",
	"Highest rating",
	"Lowest rated film",
	"Lowest rating",
	"Most watched film",
	"Most watched",
	"Least watched film",
	"Least watched",
}

// CSVWriter writes a run's OutputTable to a CSV file, replacing whatever was
// at the path before. Rows are ordered by director name so identical runs
// produce byte-identical files. All float columns are rendered with two
// decimals here and nowhere earlier; absent values render as empty cells.
type CSVWriter struct {
	path string
	log  *logrus.Entry
}

// NewCSVWriter creates a CSVWriter targeting path.
func NewCSVWriter(path string, log *logrus.Entry) *CSVWriter {
	return &CSVWriter{path: path, log: log}
}

// Write renders table to the configured path. An empty table still produces
// a valid file holding only the header row.
func (w *CSVWriter) Write(table models.OutputTable) error {
	if err := ensureDir(w.path); err != nil {
		return fmt.Errorf("creating output directory for %s: %w", w.path, err)
	}

	file, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("creating output file %s: %w", w.path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := writer.Write(row(name, table[name])); err != nil {
			return fmt.Errorf("writing CSV row for %s: %w", name, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing CSV output: %w", err)
	}

	w.log.WithFields(logrus.Fields{
		"directors": len(table),
		"path":      w.path,
	}).Info("Statistics written")
	return nil
}

// Path returns the output file location.
func (w *CSVWriter) Path() string {
	return w.path
}

func row(name string, stats *models.DirectorStatistics) []string {
	return []string{
		name,
		strconv.Itoa(stats.FilmCount),
		stats.LatestReleaseYear,
		stats.EarliestReleaseYear,
		formatFloat(stats.MeanRating),
		strconv.FormatInt(stats.TotalWatched, 10),
		fmt.Sprintf("%.2f", stats.MeanWatched),
		formatFloat(stats.StdDevWatched),
		stats.HighestRatedFilm,
		formatFloat(stats.HighestRating),
		stats.LowestRatedFilm,
		formatFloat(stats.LowestRating),
		stats.MostWatchedFilm,
		strconv.FormatInt(stats.MostWatched, 10),
		stats.LeastWatchedFilm,
		strconv.FormatInt(stats.LeastWatched, 10),
	}
}

// formatFloat renders an optional float with two decimals, or an empty cell.
func formatFloat(value *float64) string {
	if value == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *value)
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
