package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/config"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/repository"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op string
	var n int
	var roleName string
	var collegeList string
	var jobID int64
	var staffEmail string
	var file string

	flag.StringVar(&op, "op", "", "operation to run (users, jobs, applications, import)")
	flag.IntVar(&n, "n", 5, "number of records to insert; for applications, jobs per student")
	flag.StringVar(&roleName, "role", "", "role of generated users (student, staff, admin); random when empty")
	flag.StringVar(&collegeList, "colleges", strings.Join(seed.DefaultColleges, ","), "comma separated colleges to draw from")
	flag.Int64Var(&jobID, "job-id", 0, "job receiving imported candidates")
	flag.StringVar(&staffEmail, "staff-email", "", "staff account the imported candidates are uploaded by")
	flag.StringVar(&file, "file", "", "CSV sheet of candidates to import")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Error("failed to read .env file", "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	var colleges []string
	for _, c := range strings.Split(collegeList, ",") {
		if c = strings.TrimSpace(c); c != "" {
			colleges = append(colleges, c)
		}
	}

	switch op {
	case "":
		slog.Error("no operation given, see -help")
	case "users":
		if n <= 0 || len(colleges) == 0 {
			slog.Error("need a positive -n and at least one college")
			return
		}
		var role domain.Role
		if roleName != "" {
			if role, err = domain.ParseRole(roleName); err != nil {
				slog.Error("invalid -role", "error", err)
				return
			}
		}
		cnt := seed.SeedUsers(repo, n, role, cfg.Seed.User.Password, cfg.Email.UserDomain, colleges)
		slog.Info("users inserted", slog.Int("count", cnt))
	case "jobs":
		if n <= 0 || len(colleges) == 0 {
			slog.Error("need a positive -n and at least one college")
			return
		}
		admin, err := repo.GetUserByEmail(cfg.InitialAdmin.Email)
		if err != nil {
			slog.Error("initial admin not found, start the api once first", "error", err)
			return
		}
		cnt := seed.SeedJobs(repo, n, colleges, admin.ID)
		slog.Info("jobs inserted", slog.Int("count", cnt))
	case "applications":
		cnt, err := seed.SeedApplications(repo, n)
		if err != nil {
			slog.Error("failed to insert applications", "inserted", cnt, "error", err)
			return
		}
		slog.Info("applications inserted", slog.Int("count", cnt))
	case "import":
		if jobID <= 0 || staffEmail == "" || file == "" {
			slog.Error("import needs -job-id, -staff-email and -file")
			return
		}
		f, err := os.Open(file)
		if err != nil {
			slog.Error("failed to open sheet", "error", err)
			return
		}
		defer f.Close()

		result, err := seed.ImportBulkCandidates(repo, f, jobID, strings.ToLower(staffEmail))
		if err != nil {
			slog.Error("import failed", "error", err)
			return
		}
		for _, e := range result.Errors {
			slog.Warn("row skipped", "row", e.Index+1, "name", e.StudentName, "error", e.Error)
		}
		slog.Info("candidates imported", "success", result.Success, "failed", result.Failed)
	default:
		slog.Error("unknown operation", "op", op)
	}
}
