package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"groupsyncservice/internal/directory"
	"groupsyncservice/internal/ingest"
	"groupsyncservice/internal/preflight"
)

var probeCmd = &cobra.Command{
	Use:   "probe [domain ...]",
	Short: "Check connectivity and credentials for directory domains",
	Long: `Probe directory domains without running a batch.

Domains can be given as arguments, or collected from a CSV file with
--csv, in which case every distinct source and target domain is probed.

For each domain the probe reports DNS reachability and whether a domain
controller accepts connections. With --validate-credentials the bind
credential is additionally tested against each domain.

Examples:
  groupsync probe contoso.com fabrikam.com
  groupsync probe --csv memberships.csv --validate-credentials`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().String("csv", "", "collect domains from a membership CSV file")
	probeCmd.Flags().String("bind-user", "", "directory bind username")
	probeCmd.Flags().String("bind-password", "", "directory bind password")
	probeCmd.Flags().Int("ldap-port", 389, "directory server port")
	probeCmd.Flags().Bool("validate-credentials", false, "validate the bind credential against each domain")
	probeCmd.Flags().Duration("timeout", 10*time.Second, "per-domain probe timeout")
}

func runProbe(cmd *cobra.Command, args []string) error {
	domains := args

	if csvPath, _ := cmd.Flags().GetString("csv"); csvPath != "" {
		requests, _, err := ingest.ReadFile(csvPath)
		if err != nil {
			return err
		}
		domains = append(domains, preflight.DistinctDomains(requests)...)
	}
	if len(domains) == 0 {
		return fmt.Errorf("no domains to probe: pass domains as arguments or use --csv")
	}

	port, _ := cmd.Flags().GetInt("ldap-port")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	client := directory.NewLDAPClient(port, timeout)

	prober := preflight.NewProber(client, timeout)
	summary := prober.ProbeDomains(context.Background(), domains)

	failed := false
	for name, result := range summary.Results {
		switch {
		case !result.Reachable:
			fmt.Printf("%s: UNREACHABLE (%s)\n", name, result.Error)
			failed = true
		case !result.ControllerFound:
			fmt.Printf("%s: reachable, no domain controller (%s)\n", name, result.Error)
			failed = true
		default:
			fmt.Printf("%s: OK via %s\n", name, result.ControllerName)
		}
	}

	if validate, _ := cmd.Flags().GetBool("validate-credentials"); validate {
		cred := directory.Credential{
			Username: stringFlagOrEnv(cmd, "bind-user"),
			Password: stringFlagOrEnv(cmd, "bind-password"),
		}
		if cred.Username == "" || cred.Password == "" {
			return fmt.Errorf("bind-user and bind-password are required for credential validation")
		}
		results := preflight.ValidateCredentialForDomains(context.Background(), client, cred, domains)
		for name, result := range results {
			if result.IsValid {
				fmt.Printf("%s: credential OK for %s\n", name, result.Username)
			} else {
				fmt.Printf("%s: credential FAILED (%s)\n", name, result.Error)
				failed = true
			}
		}
	}

	if failed {
		return fmt.Errorf("one or more probes failed")
	}
	fmt.Println("All probes passed")
	return nil
}

// stringFlagOrEnv prefers the flag value, then the GROUPSYNC_ environment.
func stringFlagOrEnv(cmd *cobra.Command, name string) string {
	if value, _ := cmd.Flags().GetString(name); value != "" {
		return value
	}
	return viper.GetString(name)
}
