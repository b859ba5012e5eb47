// aegisctl is the command-line interface for the aegis API: operator login,
// scenario management, simulation runs, device enrollment, and telemetry
// submission.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sentrylab/aegis/pkg/client"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	cfgFile   string
	token     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "aegisctl",
	Short: "aegis telemetry analysis CLI",
	Long: `aegisctl is the command-line interface for the aegis API.

It manages attack scenarios, runs simulations, enrolls devices, and
submits signed telemetry for evaluation.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.aegis")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
		if token == "" {
			token = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.aegis/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "aegis API base URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "operator token (or AEGIS_TOKEN / config)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(simulationsCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(telemetryCmd)
	rootCmd.AddCommand(recommendationsCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() *client.Client {
	opts := []client.Option{}
	if token != "" {
		opts = append(opts, client.WithToken(token))
	}
	return client.New(serverURL, opts...)
}

// ctx returns the request context. The SDK's HTTP client carries the
// per-request timeout.
func ctx() context.Context {
	return context.Background()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ── login ────────────────────────────────────────────────────────────────────

var loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Obtain an operator token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := loginPassword
		if password == "" {
			password = os.Getenv("AEGIS_PASSWORD")
		}
		if password == "" {
			return fmt.Errorf("set --password or AEGIS_PASSWORD")
		}

		c := client.New(serverURL)
		if err := c.Login(ctx(), args[0], password); err != nil {
			return err
		}
		fmt.Println(c.Token())
		fmt.Fprintln(os.Stderr, "store the token in ~/.aegis/config.yaml as 'token'")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "operator password (or AEGIS_PASSWORD)")
}

// ── scenarios ────────────────────────────────────────────────────────────────

var (
	scName        string
	scDescription string
	scSeverity    string
	scTactics     []string
	scTechniques  []string
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Manage attack scenarios",
}

var scenariosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		scenarios, err := newClient().ListScenarios(ctx())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSEVERITY\tCREATED")
		for _, sc := range scenarios {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", sc.ID, sc.Name, sc.Severity, sc.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var scenariosCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a scenario",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scName == "" {
			return fmt.Errorf("--name is required")
		}
		sc, err := newClient().CreateScenario(ctx(), &client.CreateScenarioRequest{
			Name:        scName,
			Description: scDescription,
			Severity:    scSeverity,
			Tactics:     scTactics,
			Techniques:  scTechniques,
		})
		if err != nil {
			return err
		}
		return printJSON(sc)
	},
}

var scenariosDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a scenario",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().DeleteScenario(ctx(), args[0]); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil
	},
}

func init() {
	scenariosCreateCmd.Flags().StringVar(&scName, "name", "", "scenario name")
	scenariosCreateCmd.Flags().StringVar(&scDescription, "description", "", "scenario description")
	scenariosCreateCmd.Flags().StringVar(&scSeverity, "severity", "medium", "severity: medium, high, critical")
	scenariosCreateCmd.Flags().StringSliceVar(&scTactics, "tactic", nil, "tactic (repeatable)")
	scenariosCreateCmd.Flags().StringSliceVar(&scTechniques, "technique", nil, "technique ID (repeatable)")

	scenariosCmd.AddCommand(scenariosListCmd)
	scenariosCmd.AddCommand(scenariosCreateCmd)
	scenariosCmd.AddCommand(scenariosDeleteCmd)
}

// ── simulate ─────────────────────────────────────────────────────────────────

var simTelemetryFile string

var simulateCmd = &cobra.Command{
	Use:   "simulate <scenario-id>",
	Short: "Evaluate a telemetry snapshot against a scenario",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := readTelemetry(simTelemetryFile)
		if err != nil {
			return err
		}
		res, err := newClient().Simulate(ctx(), args[0], t)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simTelemetryFile, "telemetry", "", "telemetry JSON file (default stdin)")
}

// readTelemetry loads a telemetry snapshot from path, or stdin when empty.
func readTelemetry(path string) (*client.Telemetry, error) {
	var raw []byte
	var err error
	if path == "" {
		raw, err = os.ReadFile("/dev/stdin")
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read telemetry: %w", err)
	}
	var t client.Telemetry
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse telemetry: %w", err)
	}
	return &t, nil
}

// ── simulations ──────────────────────────────────────────────────────────────

var simListLimit int

var simulationsCmd = &cobra.Command{
	Use:   "simulations",
	Short: "Inspect recorded simulation results",
}

var simulationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded results, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := newClient().ListSimulations(ctx(), simListLimit, 0)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDEVICE\tRISK\tALERT\tSUPPRESSED\tSTARTED")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%.1f\t%t\t%t\t%s\n",
				r.ID, r.DeviceID, r.RiskScore, r.Alert, r.Suppressed, r.StartedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var simulationsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one recorded result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newClient().GetSimulation(ctx(), args[0])
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func init() {
	simulationsListCmd.Flags().IntVar(&simListLimit, "limit", 50, "maximum results")
	simulationsCmd.AddCommand(simulationsListCmd)
	simulationsCmd.AddCommand(simulationsGetCmd)
}

// ── policy ───────────────────────────────────────────────────────────────────

var policyFile string

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect or update the detection policy",
}

var policyGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the effective policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		pol, err := newClient().GetPolicy(ctx())
		if err != nil {
			return err
		}
		return printJSON(pol)
	},
}

var policySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Replace the policy from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if policyFile == "" {
			return fmt.Errorf("--file is required")
		}
		raw, err := os.ReadFile(policyFile)
		if err != nil {
			return err
		}
		var pol client.Policy
		if err := json.Unmarshal(raw, &pol); err != nil {
			return fmt.Errorf("parse policy: %w", err)
		}
		updated, err := newClient().UpdatePolicy(ctx(), &pol)
		if err != nil {
			return err
		}
		return printJSON(updated)
	},
}

func init() {
	policySetCmd.Flags().StringVar(&policyFile, "file", "", "policy JSON file")
	policyCmd.AddCommand(policyGetCmd)
	policyCmd.AddCommand(policySetCmd)
}

// ── devices ──────────────────────────────────────────────────────────────────

var (
	devName     string
	devPlatform string
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Manage enrolled devices",
}

var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := newClient().ListDevices(ctx())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDEVICE_ID\tNAME\tSTATUS\tLAST_SEEN")
		for _, d := range devices {
			lastSeen := "-"
			if d.LastSeenAt != nil {
				lastSeen = d.LastSeenAt.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.DeviceID, d.Name, d.Status, lastSeen)
		}
		return w.Flush()
	},
}

var devicesEnrollCmd = &cobra.Command{
	Use:   "enroll <device-id>",
	Short: "Enroll a device and print its one-time secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newClient().EnrollDevice(ctx(), args[0], devName, devPlatform)
		if err != nil {
			return err
		}
		fmt.Printf("device:  %s\n", res.Device.DeviceID)
		fmt.Printf("secret:  %s\n", res.Secret)
		fmt.Println("store the secret now — it will not be shown again")
		return nil
	},
}

var devicesRevokeCmd = &cobra.Command{
	Use:   "revoke <id>",
	Short: "Permanently reject a device's telemetry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().RevokeDevice(ctx(), args[0]); err != nil {
			return err
		}
		fmt.Println("revoked")
		return nil
	},
}

func init() {
	devicesEnrollCmd.Flags().StringVar(&devName, "name", "", "device display name")
	devicesEnrollCmd.Flags().StringVar(&devPlatform, "platform", "", "device platform (linux, windows, macos)")

	devicesCmd.AddCommand(devicesListCmd)
	devicesCmd.AddCommand(devicesEnrollCmd)
	devicesCmd.AddCommand(devicesRevokeCmd)
}

// ── telemetry ────────────────────────────────────────────────────────────────

var (
	telDeviceID string
	telSecret   string
	telFile     string
)

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Submit signed telemetry as an enrolled device",
	RunE: func(cmd *cobra.Command, args []string) error {
		if telDeviceID == "" || telSecret == "" {
			return fmt.Errorf("--device and --secret are required")
		}
		t, err := readTelemetry(telFile)
		if err != nil {
			return err
		}
		c := client.New(serverURL, client.WithDeviceCredentials(telDeviceID, telSecret))
		res, err := c.SubmitTelemetry(ctx(), t)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func init() {
	telemetryCmd.Flags().StringVar(&telDeviceID, "device", "", "enrolled device ID")
	telemetryCmd.Flags().StringVar(&telSecret, "secret", "", "device signing secret")
	telemetryCmd.Flags().StringVar(&telFile, "telemetry", "", "telemetry JSON file (default stdin)")
}

// ── recommendations ──────────────────────────────────────────────────────────

var recommendationsCmd = &cobra.Command{
	Use:   "recommendations",
	Short: "Show the static hardening suggestions",
	RunE: func(cmd *cobra.Command, args []string) error {
		recs, err := newClient().Recommendations(ctx())
		if err != nil {
			return err
		}
		for _, r := range recs {
			fmt.Println("-", r)
		}
		return nil
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the aegisctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("aegisctl", version)
	},
}
