package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tournament_market/internal/db"
	"tournament_market/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	apply := flag.Bool("apply", false, "apply migrations")
	dir := flag.String("dir", filepath.Join("internal", "migrations"), "migrations directory")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	pool := db.Connect(ctx, dsn, 2)
	defer pool.Close()

	files, err := os.ReadDir(*dir)
	if err != nil {
		logger.Fatal("read migrations dir", "error", err)
	}
	var names []string
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), ".sql") {
			names = append(names, f.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if !*apply {
			fmt.Println(name)
			continue
		}
		b, err := os.ReadFile(filepath.Join(*dir, name))
		if err != nil {
			logger.Fatal("read migration", "file", name, "error", err)
		}
		if _, err := pool.Exec(ctx, string(b)); err != nil {
			logger.Fatal("apply migration", "file", name, "error", err)
		}
		fmt.Printf("applied %s\n", name)
	}
}
