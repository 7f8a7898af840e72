package editguard

import (
	"context"
	"fmt"

	"editguard/pkg/guard"
)

// PrivilegeOracle decides whether an actor is exempt from edit moderation.
//
// Owners and admins are exempt. A failed lookup returns an error and the
// caller must treat the actor as non-exempt.
type PrivilegeOracle struct {
	membership guard.MembershipResolver
}

// NewPrivilegeOracle creates an oracle backed by a membership resolver.
func NewPrivilegeOracle(membership guard.MembershipResolver) (*PrivilegeOracle, error) {
	if membership == nil {
		return nil, fmt.Errorf("new privilege oracle: nil membership resolver")
	}

	return &PrivilegeOracle{membership: membership}, nil
}

// IsExempt reports whether the user holds a privileged role in the conversation.
func (o *PrivilegeOracle) IsExempt(
	ctx context.Context,
	conversation guard.Conversation,
	userID string,
) (bool, error) {
	member, err := o.membership.ResolveMember(ctx, conversation, userID)
	if err != nil {
		return false, fmt.Errorf("privilege lookup for %s in %s: %w", userID, conversation.ID, err)
	}

	return member.Role.Privileged(), nil
}
