package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/earlyreg-backend/internal/config"
	"github.com/stemsi/earlyreg-backend/internal/database"
	"github.com/stemsi/earlyreg-backend/internal/logger"
	"github.com/stemsi/earlyreg-backend/internal/repository"
)

// import-postgres copies the three CSV collections into PostgreSQL so the
// server can run with STORAGE_DRIVER=postgres.
func main() {
	cfg := config.Load()

	var (
		dataDir  string
		truncate bool
		strict   bool
	)
	flag.StringVar(&dataDir, "data", cfg.DataDir, "Directory holding students.csv, subjects.csv and registrations.csv")
	flag.BoolVar(&truncate, "truncate", false, "Empty the tables before importing")
	flag.BoolVar(&strict, "strict", false, "Abort on the first malformed CSV row instead of skipping it")
	flag.Parse()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	src := repository.NewCSVGateway(dataDir)

	students, err := src.LoadStudents(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read students")
	}
	subjects, err := src.LoadSubjects(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read subjects")
	}
	registrations, err := src.LoadRegistrations(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read registrations")
	}

	var rejects []repository.RowError
	rejects = append(rejects, students.Rejects...)
	rejects = append(rejects, subjects.Rejects...)
	rejects = append(rejects, registrations.Rejects...)
	for _, rej := range rejects {
		log.Warn().
			Err(rej.Err).
			Str("collection", string(rej.Collection)).
			Int("line", rej.Line).
			Msg("Skipping malformed record")
	}
	if strict && len(rejects) > 0 {
		log.Fatal().Int("rejects", len(rejects)).Msg("Malformed records found, nothing imported")
	}

	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.MaxDBConns, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	dst := repository.NewPostgresGateway(pool)
	if err := dst.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare schema")
	}

	if err := dst.Import(ctx, students.Records, subjects.Records, registrations.Records, truncate); err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	fmt.Printf("Imported %d students, %d subjects, %d registrations from %s\n",
		len(students.Records), len(subjects.Records), len(registrations.Records), dataDir)
}
