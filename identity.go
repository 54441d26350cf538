package imapauth

import (
	"fmt"
	"strings"

	"github.com/infodancer/imapauth/errors"
)

// DomainPolicy restricts which usernames are accepted and controls how the
// stored identifier is derived from the submitted one.
type DomainPolicy struct {
	// Domain is the required email domain. Empty disables domain checking.
	Domain string

	// StripDomain removes the domain part from the stored uid when the
	// submitted username matched Domain.
	StripDomain bool

	// DomainGroup derives a group membership from the domain part of the
	// submitted username.
	DomainGroup bool
}

// Identity is the result of resolving a submitted username against a
// DomainPolicy. It is created per authentication attempt.
type Identity struct {
	// LoginAddress is the full address presented to the remote server.
	LoginAddress string

	// StoredUID is the canonical identifier for the host system. Always
	// lowercase; the domain is stripped when the policy says so.
	StoredUID string

	// Groups holds group memberships derived from the username.
	Groups []string
}

// ResolveUsername normalizes rawUID and evaluates it against the policy.
// It performs no I/O. A policy rejection is returned as
// errors.ErrDomainMismatch; the remote server must not be contacted in
// that case.
//
// Transports that URL-encode the address separator deliver "%40" instead of
// "@". The escape is decoded only when no literal "@" is present, so an
// address that legitimately contains "%40" after a real "@" is never
// double-decoded.
func ResolveUsername(rawUID string, policy DomainPolicy) (*Identity, error) {
	uid := rawUID
	if !strings.Contains(uid, "@") && strings.Contains(uid, "%40") {
		uid = strings.ReplaceAll(uid, "%40", "@")
	}

	pieces := strings.Split(uid, "@")

	login := uid
	stored := uid

	if policy.Domain != "" {
		switch {
		case len(pieces) < 2:
			// No domain part; append the required domain for the server but
			// keep the stored uid as submitted.
			login = uid + "@" + policy.Domain
		case len(pieces) == 2 && pieces[1] == policy.Domain:
			if policy.StripDomain {
				stored = pieces[0]
			}
		default:
			// Wrong domain, or more than one "@". Without an active policy a
			// multi-"@" uid passes through to the server unchanged; with one
			// it is rejected here.
			return nil, fmt.Errorf("resolving %q: %w", rawUID, errors.ErrDomainMismatch)
		}
	}

	var groups []string
	if len(pieces) > 1 && policy.DomainGroup && pieces[1] != "" {
		groups = []string{pieces[1]}
	}

	// Lowercasing happens last: the domain comparison above is exact-match
	// and must see the original case.
	return &Identity{
		LoginAddress: login,
		StoredUID:    strings.ToLower(stored),
		Groups:       groups,
	}, nil
}

// Domain returns the domain part of the submitted username, or the empty
// string if it had none. Used for metrics labels.
func (id *Identity) Domain() string {
	if i := strings.Index(id.LoginAddress, "@"); i >= 0 {
		return id.LoginAddress[i+1:]
	}
	return ""
}
