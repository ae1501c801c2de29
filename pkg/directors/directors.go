// Package directors loads the director roster file that drives a run.
//
// The file holds one director per line in the form
//
//	Christopher Nolan : christopher-nolan
//
// where the left side is the display name and the right side is the URL
// fragment identifying the director on the site. The separator is a colon
// surrounded by single spaces. Blank lines and lines starting with '#' are
// ignored; anything else that does not match the format is skipped with a
// warning rather than failing the run.
package directors

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"filmstats/pkg/models"
)

const separator = " : "

// Load reads the roster at path and resolves each fragment into a full
// filmography URL under baseURL. Duplicate names keep their first position
// but take the fragment from the last occurrence.
func Load(path string, baseURL string, log *logrus.Entry) ([]models.Director, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening directors file %s: %w", path, err)
	}
	defer file.Close()

	var roster []models.Director
	position := make(map[string]int)

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, separator)
		if len(parts) != 2 {
			log.WithFields(logrus.Fields{"file": path, "line": lineNum}).
				Warnf("Skipping malformed line (want 'Name%sfragment'): %q", separator, line)
			continue
		}

		name := strings.TrimSpace(parts[0])
		fragment := strings.Trim(strings.TrimSpace(parts[1]), "/")
		if name == "" || fragment == "" {
			log.WithFields(logrus.Fields{"file": path, "line": lineNum}).
				Warnf("Skipping line with empty name or fragment: %q", line)
			continue
		}

		director := models.Director{
			Name:           name,
			FilmographyURL: FilmographyURL(baseURL, fragment),
		}

		if idx, seen := position[name]; seen {
			log.WithFields(logrus.Fields{"file": path, "line": lineNum, "name": name}).
				Warn("Duplicate director name, replacing earlier entry")
			roster[idx] = director
			continue
		}
		position[name] = len(roster)
		roster = append(roster, director)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading directors file %s: %w", path, err)
	}

	return roster, nil
}

// FilmographyURL builds the films listing URL for a director fragment.
func FilmographyURL(baseURL, fragment string) string {
	return fmt.Sprintf("%s/director/%s/films/", strings.TrimRight(baseURL, "/"), fragment)
}
