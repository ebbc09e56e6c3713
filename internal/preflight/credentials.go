package preflight

import (
	"context"
	"strings"

	"groupsyncservice/internal/directory"
	"groupsyncservice/internal/domain"
)

// NormalizeUsername strips a DOMAIN\ prefix or @domain suffix from a
// username, leaving the bare account name.
func NormalizeUsername(username string) string {
	username = strings.TrimSpace(username)
	if i := strings.LastIndex(username, "\\"); i >= 0 {
		username = username[i+1:]
	}
	if i := strings.Index(username, "@"); i >= 0 {
		username = username[:i]
	}
	return username
}

// ValidateCredential checks that cred can authenticate against domainName.
// Failures are always reported in the result, never raised; the password is
// never included in any output. The underlying client releases its directory
// connection on both success and failure paths.
func ValidateCredential(ctx context.Context, client directory.Client, cred directory.Credential, domainName string) domain.CredentialResult {
	result := domain.CredentialResult{
		Domain:   domainName,
		Username: NormalizeUsername(cred.Username),
	}

	valid, err := client.ValidateCredential(ctx, cred, domainName)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if !valid {
		result.Error = "credential rejected by domain"
		return result
	}
	result.IsValid = true
	return result
}

// ValidateCredentialForDomains validates cred against every distinct domain.
func ValidateCredentialForDomains(ctx context.Context, client directory.Client, cred directory.Credential, domains []string) map[string]domain.CredentialResult {
	results := make(map[string]domain.CredentialResult, len(domains))
	for _, name := range dedupe(domains) {
		results[name] = ValidateCredential(ctx, client, cred, name)
	}
	return results
}
