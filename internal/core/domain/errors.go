package domain

import "fmt"

// PushNotFoundError is returned when a revision cannot be resolved to a push.
type PushNotFoundError struct {
	Rev    string
	Branch string
	Reason string
}

func (e *PushNotFoundError) Error() string {
	return fmt.Sprintf("push %q not found on branch %q: %s", e.Rev, e.Branch, e.Reason)
}

// ParentPushNotFoundError is returned when a push has no resolvable parent.
type ParentPushNotFoundError struct {
	Rev    string
	Branch string
	Reason string
}

func (e *ParentPushNotFoundError) Error() string {
	return fmt.Sprintf("parent of push %q on branch %q not found: %s", e.Rev, e.Branch, e.Reason)
}

// ChildPushNotFoundError is returned when a push has no resolvable child.
type ChildPushNotFoundError struct {
	Rev    string
	Branch string
	Reason string
}

func (e *ChildPushNotFoundError) Error() string {
	return fmt.Sprintf("child of push %q on branch %q not found: %s", e.Rev, e.Branch, e.Reason)
}

// SourcesNotFoundError is returned when every registered evidence source
// failed to provide a capability. A single source failing is transient and
// handled inside the chain; this error means the chain is exhausted.
type SourcesNotFoundError struct {
	Capability string
}

func (e *SourcesNotFoundError) Error() string {
	return fmt.Sprintf("No registered sources were able to fulfill '%s'!", e.Capability)
}

// BugbugTimeoutError is returned when the Bugbug HTTP service kept answering
// "pending" past the configured retry timeout. It is distinct from source
// exhaustion: the service was reachable, it just never produced a result.
type BugbugTimeoutError struct{}

func (e *BugbugTimeoutError) Error() string {
	return "Timed out waiting for result from Bugbug HTTP Service"
}
