package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"text/tabwriter"

	"student-records/internal/config"
	"student-records/internal/db"
	"student-records/internal/logger"
	"student-records/internal/messaging"
	"student-records/internal/student"

	"github.com/joho/godotenv"
)

const version = "1.0.0"

const usage = `studentctl - manage student records

Usage:
  studentctl list   [-page N]
  studentctl create -code CODE -name NAME -password PASS [-admin]
  studentctl update -id ID -code CODE -name NAME [-password PASS] [-admin]
  studentctl delete -id ID
  studentctl login  -code CODE -password PASS
`

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	slogLogger := logger.NewWithServiceContext("studentctl", version)

	// Set as default logger so package-level slog calls use the same handler
	slog.SetDefault(slogLogger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database := db.New(cfg.Database)
	defer db.Close(database)

	ctx := context.Background()
	if err := db.RunMigrations(ctx, database, (*student.Student)(nil)); err != nil {
		log.Fatal("failed to run migrations:", err)
	}

	// Lifecycle events are optional: no NATS configured means no events.
	var producer student.Producer
	if cfg.NATS.URL != "" {
		natsProducer, err := messaging.NewProducer(cfg.NATS.URL, cfg.NATS.Subject, slogLogger)
		if err != nil {
			slogLogger.Warn("failed to initialize NATS producer", "error", err)
		} else {
			defer natsProducer.Close()
			producer = natsProducer
		}
	}

	repo := student.NewRepository(database)
	service := student.NewService(repo, producer, slogLogger, cfg.Records.PageSize)

	switch os.Args[1] {
	case "list":
		runList(ctx, service, os.Args[2:])
	case "create":
		runCreate(ctx, service, cfg.Security.Pepper, os.Args[2:])
	case "update":
		runUpdate(ctx, service, cfg.Security.Pepper, os.Args[2:])
	case "delete":
		runDelete(ctx, service, os.Args[2:])
	case "login":
		runLogin(ctx, service, cfg.Security.Pepper, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func runList(ctx context.Context, service student.Service, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	page := fs.Int("page", 1, "1-based page number")
	fs.Parse(args)

	students, total, err := service.ListPage(ctx, *page)
	if err != nil {
		log.Fatal("failed to list students:", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tNAME\tADMIN\tDELETED\tUPDATED")
	for _, s := range students {
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%t\t%s\n",
			s.ID, s.Code, s.Name, s.Admin, s.Deleted, s.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
	fmt.Printf("page %d, %d records total\n", *page, total)
}

func runCreate(ctx context.Context, service student.Service, pepper string, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	code := fs.String("code", "", "student code (unique)")
	name := fs.String("name", "", "student name")
	password := fs.String("password", "", "plaintext password")
	admin := fs.Bool("admin", false, "grant admin flag")
	fs.Parse(args)

	in := student.Input{Code: *code, Name: *name, Password: *password, Admin: *admin}
	messages, err := service.Create(ctx, in, pepper)
	if err != nil {
		log.Fatal("failed to create student:", err)
	}
	if reportValidation(messages) {
		os.Exit(1)
	}
	fmt.Printf("created student %s\n", *code)
}

func runUpdate(ctx context.Context, service student.Service, pepper string, args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	id := fs.Int("id", 0, "student id")
	code := fs.String("code", "", "student code (unique)")
	name := fs.String("name", "", "student name")
	password := fs.String("password", "", "new plaintext password (blank keeps the current one)")
	admin := fs.Bool("admin", false, "grant admin flag")
	fs.Parse(args)

	in := student.Input{Code: *code, Name: *name, Password: *password, Admin: *admin}
	messages, err := service.Update(ctx, *id, in, pepper)
	if err != nil {
		if errors.Is(err, student.ErrStudentNotFound) {
			log.Fatalf("no student with id %d", *id)
		}
		log.Fatal("failed to update student:", err)
	}
	if reportValidation(messages) {
		os.Exit(1)
	}
	fmt.Printf("updated student %d\n", *id)
}

func runDelete(ctx context.Context, service student.Service, args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.Int("id", 0, "student id")
	fs.Parse(args)

	if err := service.Destroy(ctx, *id); err != nil {
		if errors.Is(err, student.ErrStudentNotFound) {
			log.Fatalf("no student with id %d", *id)
		}
		log.Fatal("failed to delete student:", err)
	}
	fmt.Printf("deleted student %d\n", *id)
}

func runLogin(ctx context.Context, service student.Service, pepper string, args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	code := fs.String("code", "", "student code")
	password := fs.String("password", "", "plaintext password")
	fs.Parse(args)

	stud, err := service.Authenticate(ctx, *code, *password, pepper)
	if err != nil {
		if errors.Is(err, student.ErrInvalidCredentials) {
			fmt.Fprintln(os.Stderr, "login failed")
			os.Exit(1)
		}
		log.Fatal("failed to authenticate:", err)
	}
	fmt.Printf("login ok: %s (id %d, admin %t)\n", stud.Name, stud.ID, stud.Admin)
}

func reportValidation(messages []string) bool {
	for _, m := range messages {
		fmt.Fprintln(os.Stderr, m)
	}
	return len(messages) > 0
}
