package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"groupsyncservice/internal/audit"
	"groupsyncservice/internal/batch"
	"groupsyncservice/internal/directory"
	"groupsyncservice/internal/domain"
	"groupsyncservice/internal/ingest"
	"groupsyncservice/internal/preflight"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a group membership batch from a CSV file",
	Long: `Process a cross-domain group membership batch.

Reads membership requests from a CSV file with the columns SourceDomain,
SourceUser, TargetDomain and TargetGroup, resolves each user and adds it
to the target group. Every operation is written to a timestamped CSV
audit log in the output directory, followed by a summary row.

With --test-mode the batch contacts the directory and validates each
operation without changing any group membership.

The bind credential is taken from --bind-user / --bind-password or the
GROUPSYNC_BIND_USER / GROUPSYNC_BIND_PASSWORD environment variables.

Examples:
  # Dry run with pre-flight checks
  groupsync run --csv memberships.csv --test-mode --test-connectivity

  # Live run, unattended
  groupsync run --csv memberships.csv --assume-yes`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("csv", "", "path to the membership CSV file (required)")
	runCmd.Flags().Bool("test-mode", false, "validate operations without modifying any group")
	runCmd.Flags().Int("max-retries", 3, "retry attempts after the first failure, 1-10")
	runCmd.Flags().Int("retry-delay", 5, "seconds before the first retry, 1-60")
	runCmd.Flags().Bool("exponential-backoff", false, "double the delay after each retry")
	runCmd.Flags().String("output-dir", ".", "directory for the CSV audit log")
	runCmd.Flags().String("data-dir", defaultDataDir(), "directory for session history")
	runCmd.Flags().String("bind-user", "", "directory bind username")
	runCmd.Flags().String("bind-password", "", "directory bind password")
	runCmd.Flags().Int("ldap-port", 389, "directory server port")
	runCmd.Flags().Bool("test-connectivity", false, "probe all involved domains before the batch")
	runCmd.Flags().Bool("validate-credentials", false, "validate the bind credential against all involved domains")
	runCmd.Flags().BoolP("assume-yes", "y", false, "continue past pre-flight warnings without prompting")

	_ = viper.BindPFlags(runCmd.Flags())
	_ = runCmd.MarkFlagRequired("csv")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".groupsync"
	}
	return home + "/.groupsync"
}

func runBatch(cmd *cobra.Command, _ []string) error {
	csvPath := viper.GetString("csv")

	cfg := batch.Config{
		TestMode:           viper.GetBool("test-mode"),
		MaxRetries:         viper.GetInt("max-retries"),
		RetryDelaySeconds:  viper.GetInt("retry-delay"),
		ExponentialBackoff: viper.GetBool("exponential-backoff"),
		RetryablePatterns:  batch.DefaultRetryablePatterns,
		ComputerName:       hostName(),
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cred := directory.Credential{
		Username: viper.GetString("bind-user"),
		Password: viper.GetString("bind-password"),
	}
	if cred.Username == "" || cred.Password == "" {
		return domain.NewSetupError("credentials", "bind-user and bind-password are required (flags or GROUPSYNC_BIND_* environment)", nil)
	}

	requests, malformed, err := ingest.ReadFile(csvPath)
	if err != nil {
		return err
	}
	if malformed > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d malformed rows dropped from %s\n", malformed, csvPath)
	}
	fmt.Printf("Loaded %d membership requests from %s\n", len(requests), csvPath)

	client := directory.NewLDAPClient(viper.GetInt("ldap-port"), 10*time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runPreflight(ctx, cmd, client, cred, requests, cfg.TestMode); err != nil {
		return err
	}

	// The audit writer is created before any directory work so a bad output
	// directory fails the batch up front, not after processing.
	writer, err := audit.NewWriter(viper.GetString("output-dir"))
	if err != nil {
		return err
	}

	sessions, err := audit.NewSessionLogger(viper.GetString("data-dir"), 90)
	if err != nil {
		return err
	}
	session, err := sessions.StartSession(cred.Username, cfg.ComputerName, "cli", len(requests), cfg.TestMode)
	if err != nil {
		return err
	}

	processor, err := batch.New(client, cred, cfg)
	if err != nil {
		return err
	}
	processor.OnRecord = func(record domain.OperationRecord) {
		if !record.IsSummary() {
			_ = sessions.RecordOperation(session.ID, record)
		}
	}

	result, err := processor.Run(ctx, requests)
	if err != nil {
		_ = sessions.FailSession(session.ID, err.Error())
		return err
	}

	if err := sessions.CompleteSession(session.ID, result.Summary); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record session: %v\n", err)
	}

	logPath, warn, err := writer.Persist(result.Records)
	if err != nil {
		return err
	}
	if warn != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", warn)
	}

	fmt.Printf("Audit log: %s\n", logPath)
	fmt.Printf("Batch result: %s\n", result.Summary)

	if !result.Succeeded {
		return fmt.Errorf("batch completed with %d errors, see %s", result.Summary.ErrorCount, logPath)
	}
	return nil
}

// runPreflight executes the optional connectivity and credential checks. In
// test mode failures only warn; in live mode the operator must confirm, or
// pass --assume-yes.
func runPreflight(ctx context.Context, cmd *cobra.Command, client directory.Client, cred directory.Credential, requests []domain.MembershipRequest, testMode bool) error {
	domains := preflight.DistinctDomains(requests)
	var problems []string

	if viper.GetBool("test-connectivity") {
		prober := preflight.NewProber(client, 10*time.Second)
		summary := prober.ProbeDomains(ctx, domains)
		for _, name := range domains {
			result := summary.Results[name]
			switch {
			case !result.Reachable:
				fmt.Printf("  %s: UNREACHABLE (%s)\n", name, result.Error)
			case !result.ControllerFound:
				fmt.Printf("  %s: reachable, no domain controller (%s)\n", name, result.Error)
			default:
				fmt.Printf("  %s: OK via %s\n", name, result.ControllerName)
			}
		}
		if !summary.AllReachable {
			problems = append(problems, fmt.Sprintf("unreachable domains: %s", strings.Join(summary.UnreachableDomains, ", ")))
		}
		if len(summary.DomainsWithoutController) > 0 {
			problems = append(problems, fmt.Sprintf("domains without controller: %s", strings.Join(summary.DomainsWithoutController, ", ")))
		}
	}

	if viper.GetBool("validate-credentials") {
		results := preflight.ValidateCredentialForDomains(ctx, client, cred, domains)
		for _, name := range domains {
			result := results[name]
			if result.IsValid {
				fmt.Printf("  %s: credential OK for %s\n", name, result.Username)
			} else {
				fmt.Printf("  %s: credential FAILED (%s)\n", name, result.Error)
				problems = append(problems, fmt.Sprintf("credential rejected by %s", name))
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	if testMode {
		fmt.Fprintf(os.Stderr, "Warning: pre-flight issues in test mode: %s\n", strings.Join(problems, "; "))
		return nil
	}
	if yes, _ := cmd.Flags().GetBool("assume-yes"); yes {
		fmt.Fprintf(os.Stderr, "Warning: continuing despite pre-flight issues: %s\n", strings.Join(problems, "; "))
		return nil
	}
	if !confirm(fmt.Sprintf("Pre-flight issues: %s. Continue anyway?", strings.Join(problems, "; "))) {
		return errors.New("aborted by operator after pre-flight checks")
	}
	return nil
}

// confirm prompts on stdin and returns true only on an explicit yes.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func hostName() string {
	if name := os.Getenv("HOSTNAME"); name != "" {
		return name
	}
	name, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return name
}
