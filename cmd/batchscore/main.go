// Batch client that scores an applicant CSV against a running Kestrel.
//
// Usage:
//
//	go run ./cmd/batchscore -csv applicants.csv -url http://localhost:8080
//
// The header row names each column with the JSON field of the decision
// request (age or age_group, gender, region, monthly_income, ...). Every row
// is posted to POST /decisions and the run ends with counts per decision,
// counts per error status, the mean credit score and throughput.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Row is one parsed applicant with its CSV line number.
type Row struct {
	Line    int
	Profile domain.ApplicantProfile
}

// Result is the part of the decision response the batch client reads.
type Result struct {
	ID          string         `json:"id"`
	Decision    domain.Outcome `json:"decision"`
	CreditScore int            `json:"credit_score"`
	LoanAmount  *float64       `json:"loan_amount,omitempty"`
}

// statusError is a non-200 response.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, strings.TrimSpace(e.Body))
}

// Metrics tracks batch results.
type Metrics struct {
	mu        sync.Mutex
	decisions map[domain.Outcome]int64
	failures  map[string]int64

	TotalProcessed   int64
	ScoreSum         int64
	ProcessingTimeMs int64
}

func newMetrics() *Metrics {
	return &Metrics{
		decisions: make(map[domain.Outcome]int64),
		failures:  make(map[string]int64),
	}
}

func (m *Metrics) record(res *Result, err error, elapsed time.Duration) {
	atomic.AddInt64(&m.TotalProcessed, 1)
	atomic.AddInt64(&m.ProcessingTimeMs, elapsed.Milliseconds())

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			m.failures[strconv.Itoa(se.Code)]++
		} else {
			m.failures["transport"]++
		}
		return
	}
	m.decisions[res.Decision]++
	m.ScoreSum += int64(res.CreditScore)
}

func main() {
	csvPath := flag.String("csv", "", "Path to applicant CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	limit := flag.Int("limit", 0, "Maximum applicants to score (0 = all)")
	workers := flag.Int("workers", 8, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each decision")
	username := flag.String("user", os.Getenv("KESTREL_USER"), "Officer username")
	password := flag.String("password", os.Getenv("KESTREL_PASSWORD"), "Officer password")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: batchscore -csv applicants.csv -user officer1 -password ... [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *workers < 1 {
		*workers = 1
	}

	fmt.Println("+---------------------------------------------------------------+")
	fmt.Println("|                 KESTREL BATCH SCORING                         |")
	fmt.Println("+---------------------------------------------------------------+")
	fmt.Printf("\nCSV File:     %s\n", *csvPath)
	fmt.Printf("Kestrel URL:  %s\n", *baseURL)
	fmt.Printf("Workers:      %d\n", *workers)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		os.Exit(1)
	}
	fmt.Println("Kestrel is healthy")

	file, err := os.Open(*csvPath)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
	rows, skipped, err := readApplicants(file, *limit)
	file.Close()
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d applicants (%d malformed rows skipped)\n", len(rows), skipped)

	fmt.Printf("\nScoring with %d workers...\n", *workers)
	start := time.Now()
	metrics := run(rows, target{URL: *baseURL, Username: *username, Password: *password}, *workers, *verbose)
	printResults(metrics, time.Since(start))
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// readApplicants parses CSV rows into profiles. Rows that cannot be parsed
// are counted and skipped; validation is left to the server.
func readApplicants(r io.Reader, limit int) ([]Row, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var (
		rows    []Row
		skipped int
		line    = 1
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			skipped++
			continue
		}

		profile, err := parseProfile(header, record)
		if err != nil {
			skipped++
			continue
		}
		rows = append(rows, Row{Line: line, Profile: profile})

		if limit > 0 && len(rows) >= limit {
			break
		}
	}
	return rows, skipped, nil
}

func parseProfile(header, record []string) (domain.ApplicantProfile, error) {
	var p domain.ApplicantProfile
	if len(record) != len(header) {
		return p, fmt.Errorf("expected %d columns, got %d", len(header), len(record))
	}

	for i, col := range header {
		v := strings.TrimSpace(record[i])
		var err error
		switch col {
		case "age_group":
			p.AgeGroup = v
		case "age":
			if v != "" {
				p.Age, err = strconv.Atoi(v)
			}
		case "gender":
			p.Gender = v
		case "region":
			p.Region = v
		case "monthly_income":
			p.MonthlyIncome, err = strconv.ParseFloat(v, 64)
		case "employment_status":
			p.EmploymentStatus = v
		case "kcse_grade":
			p.EducationGrade = v
		case "learning_adaptability":
			p.LearningAdaptability = v
		case "support_services_usage":
			p.SupportServicesUsage = v
		case "psychosocial_support":
			p.PsychosocialSupport = v
		case "repayment_history":
			p.RepaymentHistory = v
		case "has_collateral":
			p.HasCollateral, err = parseBool(v)
		case "missing_documents":
			p.MissingDocuments, err = parseBool(v)
		case "requested_amount":
			p.RequestedAmount, err = strconv.ParseFloat(v, 64)
		}
		if err != nil {
			return p, fmt.Errorf("column %s: %w", col, err)
		}
	}
	return p, nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "yes", "y":
		return true, nil
	case "no", "n", "":
		return false, nil
	}
	return strconv.ParseBool(v)
}

// target is the Kestrel instance and the officer account decisions are made as.
type target struct {
	URL      string
	Username string
	Password string
}

func run(rows []Row, t target, numWorkers int, verbose bool) *Metrics {
	metrics := newMetrics()

	work := make(chan Row, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for row := range work {
				start := time.Now()
				res, err := decide(client, t, &row.Profile)
				metrics.record(res, err, time.Since(start))

				if !verbose {
					continue
				}
				if err != nil {
					fmt.Printf("line %d: ERROR %v\n", row.Line, err)
					continue
				}
				fmt.Printf("line %d: %-8s score %d\n", row.Line, res.Decision, res.CreditScore)
			}
		}()
	}

	for _, row := range rows {
		work <- row
	}
	close(work)

	wg.Wait()
	return metrics
}

func decide(client *http.Client, t target, profile *domain.ApplicantProfile) (*Result, error) {
	body, err := json.Marshal(profile)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, t.URL+"/decisions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(t.Username, t.Password)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{Code: resp.StatusCode, Body: string(msg)}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n+---------------------------------------------------------------+")
	fmt.Println("|                        BATCH RESULTS                          |")
	fmt.Println("+---------------------------------------------------------------+")

	var decided int64
	fmt.Printf("\nDECISIONS\n")
	for _, o := range []domain.Outcome{domain.OutcomeApproved, domain.OutcomeReview, domain.OutcomeRejected} {
		n := m.decisions[o]
		decided += n
		fmt.Printf("   %-10s %d\n", o, n)
	}

	if len(m.failures) > 0 {
		keys := make([]string, 0, len(m.failures))
		for k := range m.failures {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Printf("\nERRORS\n")
		for _, k := range keys {
			fmt.Printf("   %-10s %d\n", k, m.failures[k])
		}
	}

	fmt.Printf("\nSCORES\n")
	if decided > 0 {
		fmt.Printf("   Mean credit score: %.1f\n", float64(m.ScoreSum)/float64(decided))
	} else {
		fmt.Println("   No decisions")
	}

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f applicants/sec\n", rps)
	}
	fmt.Println()
}
