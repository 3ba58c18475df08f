// Package migrations applies the schema the storage backends expect.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"solana-sniper/internal/storage/postgres"
)

// PostgresFiles lists embedded migration files in apply order.
func PostgresFiles() ([]string, error) {
	entries, err := fs.ReadDir(PostgresFS, "postgres")
	if err != nil {
		return nil, fmt.Errorf("read embedded postgres migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// RunPostgresMigrations applies every embedded file in lexical order.
// Files must be idempotent: they run on every startup.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool, log logrus.FieldLogger) error {
	files, err := PostgresFiles()
	if err != nil {
		return err
	}

	for _, file := range files {
		data, err := fs.ReadFile(PostgresFS, "postgres/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		log.WithField("file", file).Debug("applied migration")
	}

	return nil
}
