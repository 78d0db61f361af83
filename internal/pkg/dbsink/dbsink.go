// Package dbsink loads final pipeline output into a SQLite database so
// that results can be queried with SQL instead of grepping part files.
package dbsink

import (
	"bufio"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/bwmills/relfreq/internal/pkg/relfs"
)

const schema = `CREATE TABLE IF NOT EXISTS bigrams (
	first  TEXT NOT NULL,
	second TEXT NOT NULL,
	weight REAL NOT NULL
)`

// Load reads the tab-separated result files matching resultsGlob from fs
// and loads them into the bigrams table of the SQLite database at dbPath,
// replacing any rows from a previous run. It returns the number of rows
// loaded. Marginal rows keep their "*" second element.
func Load(fs relfs.FileSystem, resultsGlob string, dbPath string) (int64, error) {
	files, err := fs.ListFiles(resultsGlob)
	if err != nil {
		return 0, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return 0, err
	}
	// Replace rows from any previous run.
	if _, err := db.Exec("DELETE FROM bigrams"); err != nil {
		return 0, err
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	stmt, err := tx.Prepare("INSERT INTO bigrams (first, second, weight) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	var rows int64
	for _, file := range files {
		n, err := loadFile(fs, file.Name, stmt)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		rows += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return rows, nil
}

func loadFile(fs relfs.FileSystem, path string, stmt *sql.Stmt) (int64, error) {
	reader, err := fs.OpenReader(path, 0)
	if err != nil {
		return 0, err
	}
	defer reader.Close()
	log.Debugf("Loading result file: %s", path)

	var rows int64
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			return rows, fmt.Errorf("malformed result line in %s: %q", path, line)
		}
		weight, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return rows, fmt.Errorf("malformed weight in %s: %q", path, line)
		}

		if _, err := stmt.Exec(fields[0], fields[1], weight); err != nil {
			return rows, err
		}
		rows++
	}
	return rows, scanner.Err()
}
