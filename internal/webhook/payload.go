// internal/webhook/payload.go
package webhook

import (
	"strings"
	"time"
)

// pushPayload mirrors the fields of the GitHub push event this service
// consumes. Everything else in the delivery is carried opaquely in the
// stored event row.
type pushPayload struct {
	Ref        string            `json:"ref"`
	Repository payloadRepository `json:"repository"`
	Pusher     struct {
		Name string `json:"name"`
	} `json:"pusher"`
	HeadCommit *payloadCommit  `json:"head_commit"`
	Commits    []payloadCommit `json:"commits"`
}

type payloadRepository struct {
	FullName    string  `json:"full_name"`
	Description *string `json:"description"`
	Language    *string `json:"language"`
	Private     bool    `json:"private"`
}

type payloadCommit struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Author    struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"author"`
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Removed  []string `json:"removed"`
}

// changedFiles is the union of added, modified and removed paths, in
// payload order.
func (c payloadCommit) changedFiles() []string {
	files := make([]string, 0, len(c.Added)+len(c.Modified)+len(c.Removed))
	files = append(files, c.Added...)
	files = append(files, c.Modified...)
	files = append(files, c.Removed...)
	return files
}

type pullRequestPayload struct {
	Action      string            `json:"action"`
	Repository  payloadRepository `json:"repository"`
	PullRequest struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
		State  string `json:"state"`
		User   struct {
			Login string `json:"login"`
		} `json:"user"`
		Head struct {
			SHA string `json:"sha"`
		} `json:"head"`
		Base struct {
			SHA string `json:"sha"`
		} `json:"base"`
	} `json:"pull_request"`
}

// minimalPayload extracts just the repository reference from deliveries
// of kinds this service does not interpret.
type minimalPayload struct {
	Repository payloadRepository `json:"repository"`
}

// branchFromRef strips the branch-ref prefix from a push ref, e.g.
// "refs/heads/main" becomes "main". Tag refs pass through unchanged.
func branchFromRef(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}
