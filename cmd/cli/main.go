package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/rentaladmin/migrations"
	"github.com/aryan0dhankhar/rentaladmin/pkg/database"
)

var client = &http.Client{
	Timeout: 30 * time.Second,
	CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "properties":
		handleProperties(args)
	case "bookings":
		handleBookings(args)
	case "users":
		handleUsers(args)
	case "activity":
		showActivity()
	case "analytics":
		handleAnalytics(args)
	case "db":
		handleDB(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: rentaladmin auth <login|logout|who>")
		return
	}

	switch args[0] {
	case "login":
		loginUser(args[1:])
	case "logout":
		logoutUser()
	case "who":
		whoAmI()
	default:
		fmt.Printf("unknown auth command: %s\n", args[0])
	}
}

func handleProperties(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: rentaladmin properties <list|approve|reject|suspend>")
		return
	}

	switch args[0] {
	case "list":
		listProperties(args[1:])
	case "approve":
		setPropertyStatus("approved", args[1:])
	case "reject":
		setPropertyStatus("rejected", args[1:])
	case "suspend":
		setPropertyStatus("suspended", args[1:])
	default:
		fmt.Printf("unknown properties command: %s\n", args[0])
	}
}

func handleBookings(args []string) {
	if len(args) < 1 || args[0] != "list" {
		fmt.Println("Usage: rentaladmin bookings list [-status s] [-page n]")
		return
	}
	listBookings(args[1:])
}

func handleUsers(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: rentaladmin users <list|role>")
		return
	}

	switch args[0] {
	case "list":
		listUsers(args[1:])
	case "role":
		setUserRole(args[1:])
	default:
		fmt.Printf("unknown users command: %s\n", args[0])
	}
}

func handleAnalytics(args []string) {
	if len(args) < 1 || args[0] != "export" {
		fmt.Println("Usage: rentaladmin analytics export [-o file.xlsx]")
		return
	}
	exportAnalytics(args[1:])
}

func handleDB(args []string) {
	if len(args) < 1 || args[0] != "migrate" {
		fmt.Println("Usage: rentaladmin db migrate")
		return
	}
	migrate()
}

// Auth commands
func loginUser(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "admin email")
	password := fs.String("password", "", "password")

	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		fs.PrintDefaults()
		return
	}

	var result struct {
		Token    string `json:"token"`
		Redirect string `json:"redirect"`
		Error    string `json:"error"`
	}
	status, err := call(http.MethodPost, "/auth/login", map[string]string{"email": *email, "password": *password}, &result)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status != http.StatusOK {
		fmt.Printf("✗ Login failed: %s\n", result.Error)
		return
	}
	if err := saveToken(result.Token); err != nil {
		fmt.Printf("Error: failed to save token: %v\n", err)
		return
	}
	if result.Redirect != "/admin" {
		fmt.Printf("✓ Logged in as %s (no admin access)\n", *email)
		return
	}
	fmt.Printf("✓ Logged in as %s\n", *email)
}

func logoutUser() {
	if loadToken() != "" {
		if _, err := call(http.MethodPost, "/auth/logout", nil, nil); err != nil {
			fmt.Printf("Warning: server logout failed: %v\n", err)
		}
	}
	os.Remove(tokenFile())
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	token := loadToken()
	if token == "" {
		fmt.Println("Not logged in")
		return
	}
	fmt.Printf("✓ Logged in (token: %s...)\n", token[:min(20, len(token))])
}

// Property commands
func listProperties(args []string) {
	fs := flag.NewFlagSet("properties list", flag.ExitOnError)
	status := fs.String("status", "all", "pending|approved|rejected|suspended|all")
	page := fs.Int("page", 1, "page number")
	fs.Parse(args)

	var result struct {
		Items []struct {
			ID            string  `json:"id"`
			Title         string  `json:"title"`
			City          string  `json:"city"`
			Status        string  `json:"status"`
			PricePerNight float64 `json:"price_per_night"`
		} `json:"items"`
		TotalCount    int `json:"total_count"`
		MatchingPages int `json:"matching_pages"`
	}
	if !getJSON(listPath("/admin/properties", "status", *status, *page), &result) {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCITY\tSTATUS\tPRICE")
	for _, p := range result.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\n", p.ID, p.Title, p.City, p.Status, p.PricePerNight)
	}
	w.Flush()
	fmt.Printf("page %d of %d (%d properties total)\n", *page, result.MatchingPages, result.TotalCount)
}

func setPropertyStatus(status string, args []string) {
	fs := flag.NewFlagSet("properties "+status, flag.ExitOnError)
	notes := fs.String("notes", "", "note stored with the audit record")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Println("Usage: rentaladmin properties <approve|reject|suspend> [-notes text] <property-id>")
		return
	}
	id := fs.Arg(0)

	body := map[string]any{"status": status}
	if *notes != "" {
		body["notes"] = *notes
	}
	if mutate(http.MethodPatch, "/admin/properties/"+url.PathEscape(id)+"/status", body) {
		fmt.Printf("✓ Property %s is now %s\n", id, status)
	}
}

// Booking commands
func listBookings(args []string) {
	fs := flag.NewFlagSet("bookings list", flag.ExitOnError)
	status := fs.String("status", "all", "pending|confirmed|cancelled|completed|all")
	page := fs.Int("page", 1, "page number")
	fs.Parse(args)

	var result struct {
		Items []struct {
			ID            string  `json:"id"`
			Status        string  `json:"status"`
			PaymentStatus string  `json:"payment_status"`
			TotalAmount   float64 `json:"total_amount"`
			CheckInDate   string  `json:"check_in_date"`
		} `json:"items"`
		MatchingPages int `json:"matching_pages"`
	}
	if !getJSON(listPath("/admin/bookings", "status", *status, *page), &result) {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPAYMENT\tAMOUNT\tCHECK-IN")
	for _, b := range result.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n", b.ID, b.Status, b.PaymentStatus, b.TotalAmount, b.CheckInDate)
	}
	w.Flush()
	fmt.Printf("page %d of %d\n", *page, result.MatchingPages)
}

// User commands
func listUsers(args []string) {
	fs := flag.NewFlagSet("users list", flag.ExitOnError)
	role := fs.String("role", "all", "user|owner|admin|super_admin|all")
	page := fs.Int("page", 1, "page number")
	fs.Parse(args)

	var result struct {
		Items []struct {
			ID     string `json:"id"`
			Email  string `json:"email"`
			Role   string `json:"role"`
			Status string `json:"status"`
		} `json:"items"`
		MatchingPages int `json:"matching_pages"`
	}
	if !getJSON(listPath("/admin/users", "role", *role, *page), &result) {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tROLE\tSTATUS")
	for _, u := range result.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, u.Status)
	}
	w.Flush()
	fmt.Printf("page %d of %d\n", *page, result.MatchingPages)
}

func setUserRole(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: rentaladmin users role <user-id> <user|owner|admin|super_admin>")
		return
	}
	if mutate(http.MethodPatch, "/admin/users/"+url.PathEscape(args[0])+"/role", map[string]string{"role": args[1]}) {
		fmt.Printf("✓ User %s is now %s\n", args[0], args[1])
	}
}

// Analytics commands
func showActivity() {
	var result struct {
		Activity []struct {
			ActionType string `json:"action_type"`
			TargetType string `json:"target_type"`
			TargetID   string `json:"target_id"`
			CreatedAt  string `json:"created_at"`
			Admin      struct {
				Email *string `json:"email"`
			} `json:"admin"`
		} `json:"activity"`
	}
	if !getJSON("/admin/activity", &result) {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tADMIN\tACTION\tTARGET")
	for _, a := range result.Activity {
		admin := "-"
		if a.Admin.Email != nil {
			admin = *a.Admin.Email
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s/%s\n", a.CreatedAt, admin, a.ActionType, a.TargetType, a.TargetID)
	}
	w.Flush()
}

func exportAnalytics(args []string) {
	fs := flag.NewFlagSet("analytics export", flag.ExitOnError)
	out := fs.String("o", "", "output file (default: server-provided name)")
	fs.Parse(args)

	resp, err := send(http.MethodGet, "/admin/analytics/export", nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("✗ Export failed: %s\n", resp.Status)
		return
	}

	name := *out
	if name == "" {
		name = fmt.Sprintf("analytics-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	}
	f, err := os.Create(name)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer f.Close()

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("✓ Wrote %s (%d bytes)\n", name, n)
}

// Database commands
func migrate() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fmt.Println("Error: DATABASE_URL is required")
		return
	}

	log := logger.NewLogger(getEnv("LOG_LEVEL", "info"))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewConnectionPool(ctx, &database.Config{URL: dsn, MaxOpenConns: 2, MaxIdleConns: 1}, log)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	applied, err := migrations.Apply(ctx, pool.GetDB(), log)
	if err != nil {
		fmt.Printf("✗ Migration failed: %v\n", err)
		os.Exit(1)
	}
	if len(applied) == 0 {
		fmt.Println("✓ Schema is up to date")
		return
	}
	for _, name := range applied {
		fmt.Printf("✓ Applied %s\n", name)
	}
}

// Helper functions
func listPath(base, filterKey, filter string, page int) string {
	q := url.Values{}
	q.Set(filterKey, filter)
	q.Set("page", strconv.Itoa(page))
	return base + "?" + q.Encode()
}

func send(method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, getAPIURL()+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("apikey", os.Getenv("RENTALADMIN_API_KEY"))
	addAuthHeader(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	// the admin area answers redirects instead of 401/403
	if resp.StatusCode == http.StatusSeeOther {
		resp.Body.Close()
		return nil, fmt.Errorf("admin access required (redirected to %s); run `rentaladmin auth login`", resp.Header.Get("Location"))
	}
	return resp, nil
}

func call(method, path string, body, out any) (int, error) {
	resp, err := send(method, path, body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return resp.StatusCode, fmt.Errorf("invalid response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func getJSON(path string, out any) bool {
	status, err := call(http.MethodGet, path, nil, out)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return false
	}
	if status != http.StatusOK {
		fmt.Printf("✗ Request failed: HTTP %d\n", status)
		return false
	}
	return true
}

func mutate(method, path string, body any) bool {
	var result struct {
		Error string `json:"error"`
	}
	status, err := call(method, path, body, &result)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return false
	}
	if status >= 300 {
		fmt.Printf("✗ Request failed: %s\n", result.Error)
		return false
	}
	return true
}

func getAPIURL() string {
	return getEnv("RENTALADMIN_API", "http://localhost:8080")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".rentaladmin", "token")
}

func saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(tokenFile()), 0700); err != nil {
		return err
	}
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func addAuthHeader(req *http.Request) {
	if token := loadToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func printUsage() {
	fmt.Print(`Rental admin CLI

Usage:
  rentaladmin <command> [options]

Commands:
  auth        Session management (login, logout, who)
  properties  Listing moderation (list, approve, reject, suspend)
  bookings    Booking overview (list)
  users       User management (list, role)
  activity    Recent admin activity
  analytics   Analytics workbook (export)
  db          Schema management (migrate)
  help        Show this help message

Environment Variables:
  RENTALADMIN_API       API endpoint (default: http://localhost:8080)
  RENTALADMIN_API_KEY   Public API key sent as the apikey header
  DATABASE_URL          Postgres DSN, used by db migrate

Examples:
  rentaladmin auth login -email admin@example.com -password secret
  rentaladmin properties list -status pending
  rentaladmin properties approve -notes "verified photos" 4f1c...
  rentaladmin users role 9a2b... owner
  rentaladmin analytics export -o report.xlsx
`)
}
