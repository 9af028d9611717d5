// Command ledger_audit reports duplicate same-day attendance marks and, when
// asked, diffs the CSV ledger against the Postgres ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/noah-isme/smart-attendance/internal/models"
	"github.com/noah-isme/smart-attendance/internal/repository"
	"github.com/noah-isme/smart-attendance/pkg/config"
	"github.com/noah-isme/smart-attendance/pkg/database"
)

type ledgerReader interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
}

type markKey struct {
	StudentID string
	Date      string
}

type ledgerReport struct {
	Source     string
	Records    int
	Keys       map[markKey]int
	Duplicates []markKey
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var (
		csvPath    string
		date       string
		compareSQL bool
		strict     bool
		timeout    time.Duration
	)
	flag.StringVar(&csvPath, "csv", cfg.Paths.AttendanceCSV, "Path to the attendance CSV ledger")
	flag.StringVar(&date, "date", "", "Only audit one day (YYYY-MM-DD)")
	flag.BoolVar(&compareSQL, "compare-sql", false, "Also read the Postgres ledger and diff the two")
	flag.BoolVar(&strict, "strict", false, "Exit non-zero when duplicates or differences are found")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	filter := models.AttendanceFilter{Date: date}
	reports := make([]ledgerReport, 0, 2)

	csvReport, err := audit(ctx, "csv", repository.NewAttendanceRepository(csvPath), filter)
	if err != nil {
		log.Fatalf("failed to read csv ledger: %v", err)
	}
	reports = append(reports, csvReport)

	var missing, extra []markKey
	if compareSQL {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer db.Close() //nolint:errcheck

		sqlReport, err := audit(ctx, "postgres", repository.NewAttendanceSQLRepository(db), filter)
		if err != nil {
			log.Fatalf("failed to read postgres ledger: %v", err)
		}
		reports = append(reports, sqlReport)
		missing, extra = diffKeys(csvReport.Keys, sqlReport.Keys)
	}

	printReport(reports, missing, extra, compareSQL)

	problems := len(missing) + len(extra)
	for _, r := range reports {
		problems += len(r.Duplicates)
	}
	if strict && problems > 0 {
		os.Exit(1)
	}
}

func audit(ctx context.Context, source string, ledger ledgerReader, filter models.AttendanceFilter) (ledgerReport, error) {
	records, err := ledger.List(ctx, filter)
	if err != nil {
		return ledgerReport{}, err
	}
	report := ledgerReport{Source: source, Records: len(records), Keys: make(map[markKey]int, len(records))}
	for _, record := range records {
		report.Keys[markKey{StudentID: record.StudentID, Date: record.Date}]++
	}
	for key, count := range report.Keys {
		if count > 1 {
			report.Duplicates = append(report.Duplicates, key)
		}
	}
	sortKeys(report.Duplicates)
	return report, nil
}

// diffKeys returns keys only in a (missing from b) and keys only in b.
func diffKeys(a, b map[markKey]int) (onlyA, onlyB []markKey) {
	for key := range a {
		if _, ok := b[key]; !ok {
			onlyA = append(onlyA, key)
		}
	}
	for key := range b {
		if _, ok := a[key]; !ok {
			onlyB = append(onlyB, key)
		}
	}
	sortKeys(onlyA)
	sortKeys(onlyB)
	return onlyA, onlyB
}

func sortKeys(keys []markKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Date != keys[j].Date {
			return keys[i].Date < keys[j].Date
		}
		return keys[i].StudentID < keys[j].StudentID
	})
}

func printReport(reports []ledgerReport, missing, extra []markKey, compared bool) {
	fmt.Println("Ledger Audit Report")
	fmt.Println("===================")
	for _, r := range reports {
		status := "OK"
		if len(r.Duplicates) > 0 {
			status = "DUPLICATES"
		}
		fmt.Printf("[%s] %s: %d record(s), %d student-day(s)\n", status, r.Source, r.Records, len(r.Keys))
		for _, key := range r.Duplicates {
			fmt.Printf("  %s marked %d times on %s\n", key.StudentID, r.Keys[key], key.Date)
		}
	}
	if !compared {
		return
	}
	fmt.Printf("Only in csv: %d, only in postgres: %d\n", len(missing), len(extra))
	for _, key := range missing {
		fmt.Printf("  csv only: %s %s\n", key.Date, key.StudentID)
	}
	for _, key := range extra {
		fmt.Printf("  postgres only: %s %s\n", key.Date, key.StudentID)
	}
}
