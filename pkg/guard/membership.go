package guard

import "context"

// ServiceMembershipResolver is the canonical service registry key for membership lookup.
const ServiceMembershipResolver = "editguard.membership_resolver"

// ServiceSelfIdentity is the canonical service registry key for the bot's own identity.
const ServiceSelfIdentity = "editguard.self_identity"

// MemberRole is the normalized privilege level of a conversation member.
type MemberRole string

const (
	// MemberRoleOwner is the conversation creator.
	MemberRoleOwner MemberRole = "owner"
	// MemberRoleAdmin is an appointed administrator.
	MemberRoleAdmin MemberRole = "admin"
	// MemberRoleMember is a regular participant.
	MemberRoleMember MemberRole = "member"
	// MemberRoleRestricted is a participant under restrictions.
	MemberRoleRestricted MemberRole = "restricted"
	// MemberRoleLeft is a former participant.
	MemberRoleLeft MemberRole = "left"
	// MemberRoleBanned is a removed participant.
	MemberRoleBanned MemberRole = "banned"
)

// Privileged reports whether the role carries moderation authority.
func (r MemberRole) Privileged() bool {
	return r == MemberRoleOwner || r == MemberRoleAdmin
}

// ChatMember describes one member's standing inside a conversation.
type ChatMember struct {
	// Role is the normalized privilege level.
	Role MemberRole
	// CanDeleteMessages reports whether the member may delete others' messages.
	CanDeleteMessages bool
}

// MembershipResolver looks up a member's standing in a conversation.
//
// Lookups hit the platform; implementations decide their own caching. A
// returned error means the standing could not be determined, not that the
// member is absent.
type MembershipResolver interface {
	ResolveMember(ctx context.Context, conversation Conversation, userID string) (ChatMember, error)
}

// SelfProvider reports the identity the transport is authenticated as.
type SelfProvider interface {
	Self(ctx context.Context) (Actor, error)
}
