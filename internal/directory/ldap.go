package directory

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"

	"groupsyncservice/internal/domain"
)

// LDAPClient is the production Client backed by go-ldap. Each call opens a
// fresh connection to a controller of the requested domain, binds with the
// supplied credential, and closes the connection when done.
type LDAPClient struct {
	// Port is the LDAP port on the domain controllers (default 389).
	Port int
	// DialTimeout bounds connection establishment per call.
	DialTimeout time.Duration
}

// NewLDAPClient creates an LDAP-backed directory client.
func NewLDAPClient(port int, dialTimeout time.Duration) *LDAPClient {
	if port == 0 {
		port = 389
	}
	if dialTimeout == 0 {
		dialTimeout = 10 * time.Second
	}
	return &LDAPClient{Port: port, DialTimeout: dialTimeout}
}

// BaseDN derives the directory base DN from a DNS domain name, e.g.
// "contoso.com" -> "dc=contoso,dc=com".
func BaseDN(domain string) string {
	parts := strings.Split(strings.TrimSpace(domain), ".")
	for i, p := range parts {
		parts[i] = "dc=" + p
	}
	return strings.Join(parts, ",")
}

// connect dials a controller of domain and binds with cred.
func (c *LDAPClient) connect(ctx context.Context, domain string, cred Credential) (*ldap.Conn, error) {
	dialer := &net.Dialer{Timeout: c.DialTimeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	addr := fmt.Sprintf("ldap://%s:%d", domain, c.Port)
	conn, err := ldap.DialURL(addr, ldap.DialWithDialer(dialer))
	if err != nil {
		return nil, fmt.Errorf("server is not operational: %w", err)
	}

	if err := conn.Bind(cred.Username, cred.Password); err != nil {
		conn.Close()
		return nil, fmt.Errorf("access denied binding to %s as %s: %w", domain, cred.Username, err)
	}
	return conn, nil
}

// LookupUser resolves username within domain by sAMAccountName.
func (c *LDAPClient) LookupUser(ctx context.Context, username, domain string, cred Credential) (*Principal, error) {
	conn, err := c.connect(ctx, domain, cred)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req := ldap.NewSearchRequest(
		BaseDN(domain),
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 2, 0, false,
		fmt.Sprintf("(&(objectClass=user)(sAMAccountName=%s))", ldap.EscapeFilter(username)),
		[]string{"distinguishedName", "sAMAccountName"},
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("user search in %s failed: %w", domain, err)
	}
	if len(res.Entries) == 0 {
		return nil, notFoundErr("user", fmt.Sprintf("%s\\%s", domain, username))
	}

	entry := res.Entries[0]
	dn := entry.GetAttributeValue("distinguishedName")
	if dn == "" {
		dn = entry.DN
	}
	return &Principal{
		DistinguishedName: dn,
		SAMAccountName:    entry.GetAttributeValue("sAMAccountName"),
	}, nil
}

// findGroup resolves the group's entry with its current members.
func (c *LDAPClient) findGroup(conn *ldap.Conn, group, domain string) (*ldap.Entry, error) {
	req := ldap.NewSearchRequest(
		BaseDN(domain),
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 2, 0, false,
		fmt.Sprintf("(&(objectClass=group)(cn=%s))", ldap.EscapeFilter(group)),
		[]string{"distinguishedName", "member"},
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("group search in %s failed: %w", domain, err)
	}
	if len(res.Entries) == 0 {
		return nil, notFoundErr("group", fmt.Sprintf("%s\\%s", domain, group))
	}
	return res.Entries[0], nil
}

// AddGroupMember adds memberDN to the group in targetDomain. In dry-run mode
// the group is still resolved on the target server, which exercises
// connectivity and read permissions, but no modify request is sent.
func (c *LDAPClient) AddGroupMember(ctx context.Context, group, memberDN, targetDomain string, cred Credential, dryRun bool) error {
	conn, err := c.connect(ctx, targetDomain, cred)
	if err != nil {
		return err
	}
	defer conn.Close()

	entry, err := c.findGroup(conn, group, targetDomain)
	if err != nil {
		return err
	}

	for _, member := range entry.GetAttributeValues("member") {
		if strings.EqualFold(member, memberDN) {
			// Same wording the directory itself uses, so classification
			// takes the single already-member path.
			return fmt.Errorf("%s is already a member of the group %s", memberDN, group)
		}
	}

	if dryRun {
		return nil
	}

	groupDN := entry.GetAttributeValue("distinguishedName")
	if groupDN == "" {
		groupDN = entry.DN
	}

	modify := ldap.NewModifyRequest(groupDN, nil)
	modify.Add("member", []string{memberDN})
	if err := conn.Modify(modify); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultEntryAlreadyExists) ||
			ldap.IsErrorWithCode(err, ldap.LDAPResultAttributeOrValueExists) {
			return fmt.Errorf("%s is already a member of the group %s", memberDN, group)
		}
		return fmt.Errorf("failed to add %s to group %s in %s: %w", memberDN, group, targetDomain, err)
	}
	return nil
}

// ListGroupMembers returns the sAMAccountNames of direct members of group.
func (c *LDAPClient) ListGroupMembers(ctx context.Context, group, domain string, cred Credential) (map[string]bool, error) {
	conn, err := c.connect(ctx, domain, cred)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	entry, err := c.findGroup(conn, group, domain)
	if err != nil {
		return nil, err
	}

	members := make(map[string]bool)
	for _, memberDN := range entry.GetAttributeValues("member") {
		req := ldap.NewSearchRequest(
			memberDN,
			ldap.ScopeBaseObject, ldap.NeverDerefAliases, 1, 0, false,
			"(objectClass=*)",
			[]string{"sAMAccountName"},
			nil,
		)
		res, err := conn.Search(req)
		if err != nil || len(res.Entries) == 0 {
			continue
		}
		if sam := res.Entries[0].GetAttributeValue("sAMAccountName"); sam != "" {
			members[sam] = true
		}
	}
	return members, nil
}

// ProbeDomainController locates a controller for domain via DNS SRV records,
// falling back to the domain name itself, and verifies it accepts TCP
// connections on the LDAP port.
func (c *LDAPClient) ProbeDomainController(ctx context.Context, dnsDomain string) (string, error) {
	var resolver net.Resolver

	host := dnsDomain
	_, srvs, err := resolver.LookupSRV(ctx, "ldap", "tcp", dnsDomain)
	if err == nil && len(srvs) > 0 {
		host = strings.TrimSuffix(srvs[0].Target, ".")
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", c.Port))
	conn, err := net.DialTimeout("tcp", addr, c.DialTimeout)
	if err != nil {
		return "", fmt.Errorf("server is not operational: cannot reach %s: %w", addr, err)
	}
	conn.Close()
	return host, nil
}

// ValidateCredential attempts a simple bind against domain. Bind failures are
// reported as (false, nil); only connection-level failures produce an error.
func (c *LDAPClient) ValidateCredential(ctx context.Context, cred Credential, dnsDomain string) (bool, error) {
	conn, err := c.connect(ctx, dnsDomain, cred)
	if err != nil {
		if strings.Contains(err.Error(), "access denied") {
			return false, nil
		}
		return false, err
	}
	conn.Close()
	return true, nil
}

// notFoundErr builds a NotFoundError whose text matches the classifier's
// not-found patterns.
func notFoundErr(typ, identifier string) error {
	return domain.NewNotFoundError(typ, identifier)
}
