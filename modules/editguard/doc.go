// Package editguard provides the edit moderation module: it fingerprints
// observed group messages in a bounded in-memory ledger, removes content
// edits made by non-privileged members, notifies the group with an invite
// button, sweeps stale ledger records on a retention schedule, and replies
// to `/status` with the bot's current delete rights.
package editguard
