package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kianh03/fraudlens/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	portalURL string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fraudlens",
	Short: "FraudLens CLI",
	Long: `fraudlens is the command-line interface for the FraudLens portal.

It scans URLs for fraud indicators, shows your scan history and
statistics, and manages your portal session.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".fraudlens"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if portalURL == "" {
			portalURL = viper.GetString("portal_url")
		}
		if portalURL == "" {
			portalURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.fraudlens/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&portalURL, "portal", "", "FraudLens portal URL (default http://localhost:8080)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(versionCmd)
}

// newClient builds an SDK client, attaching any saved session token.
func newClient() (*client.Client, error) {
	opts := []client.Option{}
	if tok := loadToken(); tok != "" {
		opts = append(opts, client.WithToken(tok))
	}
	return client.New(portalURL, opts...)
}

// ── scan ─────────────────────────────────────────────────────────────────────

// scanRow holds the outcome of a single URL scan.
type scanRow struct {
	url    string
	result *client.ScanResult
	err    error
}

var scanFormat string

var scanCmd = &cobra.Command{
	Use:   "scan <url> [url] ...",
	Short: "Scan one or more URLs for fraud indicators",
	Long: `Scan submits URLs to the FraudLens analysis service and prints the
verdict. When logged in, scans are also recorded to your history.

Multiple URLs are scanned concurrently and displayed as a table:

  fraudlens scan http://example.com http://suspicious-login.tk`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanFormat, "format", "text", "Output format: text or json")
}

func runScan(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	ctx := context.Background()

	// Scan all URLs concurrently.
	resultsCh := make(chan scanRow, len(args))
	for _, rawURL := range args {
		rawURL := rawURL
		go func() {
			r, err := c.Scan(ctx, rawURL)
			resultsCh <- scanRow{url: rawURL, result: r, err: err}
		}()
	}

	// Collect in input order.
	byURL := make(map[string]scanRow, len(args))
	for range args {
		r := <-resultsCh
		byURL[r.url] = r
	}
	ordered := make([]scanRow, len(args))
	for i, rawURL := range args {
		ordered[i] = byURL[rawURL]
	}

	switch scanFormat {
	case "json":
		return printScanJSON(ordered)
	default:
		return printScanText(ordered)
	}
}

func printScanJSON(results []scanRow) error {
	type jsonRow struct {
		URL       string          `json:"url"`
		RiskLevel string          `json:"risk_level,omitempty"`
		ScanID    string          `json:"scan_id,omitempty"`
		Report    json.RawMessage `json:"report,omitempty"`
		Error     string          `json:"error,omitempty"`
	}
	rows := make([]jsonRow, len(results))
	for i, r := range results {
		if r.err != nil {
			rows[i] = jsonRow{URL: r.url, Error: r.err.Error()}
		} else {
			rows[i] = jsonRow{
				URL:       r.url,
				RiskLevel: r.result.RiskLevel,
				ScanID:    r.result.ScanID,
				Report:    r.result.Report,
			}
		}
	}
	// Single result: unwrap from array for convenience.
	var v any = rows
	if len(rows) == 1 {
		v = rows[0]
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printScanText(results []scanRow) error {
	if len(results) == 1 {
		r := results[0]
		if r.err != nil {
			return fmt.Errorf("scan %q: %w", r.url, r.err)
		}
		var rep struct {
			AggregateScore float64 `json:"aggregate_score"`
			SeverityLabel  string  `json:"severity_label"`
		}
		_ = json.Unmarshal(r.result.Report, &rep)
		fmt.Printf("URL:        %s\n", r.url)
		fmt.Printf("Risk score: %.1f\n", rep.AggregateScore)
		fmt.Printf("Verdict:    %s\n", rep.SeverityLabel)
		if r.result.ScanID != "" {
			fmt.Printf("Scan ID:    %s\n", r.result.ScanID)
		}
		return nil
	}

	// Multiple results: tabulated.
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "URL\tRISK\tSCAN ID\tERROR")
	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(w, "%s\t\t\t%s\n", r.url, r.err.Error())
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\t\n", r.url, r.result.RiskLevel, r.result.ScanID)
		}
	}
	return w.Flush()
}

// ── history ──────────────────────────────────────────────────────────────────

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show your recent scans",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		scans, err := c.History(context.Background(), historyLimit)
		if err != nil {
			return fmt.Errorf("fetch history: %w", err)
		}
		if len(scans) == 0 {
			fmt.Println("No scans yet. Run 'fraudlens scan <url>' while logged in.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tURL\tSCORE\tRISK\tID")
		for _, s := range scans {
			fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\t%s\n",
				s.CreatedAt.Local().Format("2006-01-02 15:04"),
				s.URL, s.RiskScore, s.RiskLevel, s.ID)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of scans to show")
}

// ── dashboard ────────────────────────────────────────────────────────────────

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show your scan statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		d, err := c.Dashboard(context.Background())
		if err != nil {
			return fmt.Errorf("fetch dashboard: %w", err)
		}

		fmt.Printf("Total scans:      %d\n", d.Stats.TotalScans)
		fmt.Printf("Threats detected: %d\n", d.Stats.ThreatsDetected)
		fmt.Printf("Safe URLs:        %d\n", d.Stats.SafeURLs)
		fmt.Printf("Average score:    %.1f\n", d.Stats.AvgRiskScore)
		if !d.Stats.LastScanDate.IsZero() {
			fmt.Printf("Last scan:        %s\n", d.Stats.LastScanDate.Local().Format(time.RFC1123))
		}
		fmt.Printf("\nRisk distribution: high %d / medium %d / low %d\n",
			d.RiskDistribution["high"], d.RiskDistribution["medium"], d.RiskDistribution["low"])
		return nil
	},
}

// ── login / logout ───────────────────────────────────────────────────────────

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Log in to the FraudLens portal",
	Long: `Login authenticates with the portal and saves the session token to
~/.fraudlens/token for later commands. The password is read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := args[0]
		fmt.Print("Password: ")
		stdin := bufio.NewReader(os.Stdin)
		password, err := stdin.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(password, "\r\n")

		c, err := client.New(portalURL)
		if err != nil {
			return err
		}
		user, err := c.Login(context.Background(), email, password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}

		if err := saveToken(c.Token()); err != nil {
			return fmt.Errorf("save session token: %w", err)
		}
		fmt.Printf("✓ Logged in as %s\n", user.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the saved session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.Remove(tokenPath()); err != nil && !os.IsNotExist(err) {
			return err
		}
		fmt.Println("✓ Logged out")
		return nil
	},
}

func tokenPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".fraudlens", "token")
}

func saveToken(token string) error {
	path := tokenPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token), 0o600)
}

func loadToken() string {
	data, err := os.ReadFile(tokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the fraudlens CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fraudlens %s\n", version)
	},
}
