// Package directory abstracts the remote directory service: user lookup,
// group membership mutation, domain controller discovery, and credential
// validation, each against a named domain under a caller-supplied credential.
package directory

import "context"

// Credential is the cross-domain admin credential shared read-only across a
// batch run. The password must never appear in logs or audit records.
type Credential struct {
	Username string
	Password string
}

// String implements fmt.Stringer with the password redacted.
func (c Credential) String() string {
	return c.Username + ":***"
}

// Principal is a resolved user identity in a domain.
type Principal struct {
	DistinguishedName string
	SAMAccountName    string
}

// Client is the directory service collaborator consumed by the batch engine.
// Implementations signal failures via error returns; the caller classifies
// failure text (see the classify package), so error messages should carry the
// directory service's own wording.
type Client interface {
	// LookupUser resolves username within domain under cred.
	LookupUser(ctx context.Context, username, domain string, cred Credential) (*Principal, error)

	// AddGroupMember adds memberDN to the named group in targetDomain. When
	// dryRun is true the target directory server is still contacted, so
	// resolution and permissions are validated, but no mutation is persisted.
	// Adding a principal that is already a member fails with a message
	// containing "already a member".
	AddGroupMember(ctx context.Context, group, memberDN, targetDomain string, cred Credential, dryRun bool) error

	// ListGroupMembers returns the sAMAccountNames of the group's direct
	// members. Used by verify-after-add flows, not the primary batch path.
	ListGroupMembers(ctx context.Context, group, domain string, cred Credential) (map[string]bool, error)

	// ProbeDomainController discovers a directory controller for domain and
	// returns its name.
	ProbeDomainController(ctx context.Context, domain string) (string, error)

	// ValidateCredential checks that cred can authenticate against domain.
	ValidateCredential(ctx context.Context, cred Credential, domain string) (bool, error)
}
