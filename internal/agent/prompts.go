// internal/agent/prompts.go
package agent

import (
	"fmt"
	"strings"
	"time"

	"commit-monitor/internal/model"
)

const (
	// BackendCodeQuality reviews the code-level impact of a commit.
	BackendCodeQuality = "code-quality"
	// BackendCommitPatterns reviews commit messages and working patterns.
	BackendCommitPatterns = "commit-patterns"

	KindCodeAnalysis   = "code_analysis"
	KindCommitAnalysis = "commit_analysis"
)

// CodeQualitySystemPrompt is the system instruction for the code-quality
// backend.
const CodeQualitySystemPrompt = `You are a code analysis agent. Analyze the provided code changes and provide insights about:
1. Code quality and best practices
2. Potential bugs or issues
3. Security concerns
4. Performance implications
5. Suggestions for improvement

Provide clear, actionable feedback.`

// CommitPatternsSystemPrompt is the system instruction for the
// commit-patterns backend.
const CommitPatternsSystemPrompt = `You are a commit analysis agent. Analyze commit messages and changes to provide insights about:
1. Commit message quality
2. Change impact assessment
3. Development patterns
4. Team collaboration insights
5. Project health indicators

Provide concise, valuable feedback.`

// CodeQualityPrompt renders the request sent to the code-quality backend.
func CodeQualityPrompt(c model.Commit) string {
	return fmt.Sprintf(`Analyze the following commit and code changes:

Commit: %s
Author: %s
Message: %s
Changed Files: %s

Please provide a comprehensive code analysis including:
1. Code quality assessment
2. Potential issues or bugs
3. Security considerations
4. Performance implications
5. Suggestions for improvement

Focus on the technical aspects and provide actionable feedback.`,
		c.CommitHash, c.Author, c.Message, strings.Join(c.ChangedFiles, ", "))
}

// CommitPatternsPrompt renders the request sent to the commit-patterns
// backend.
func CommitPatternsPrompt(c model.Commit) string {
	branch := c.Branch
	if branch == "" {
		branch = "unknown"
	}
	return fmt.Sprintf(`Analyze the following commit:

Hash: %s
Author: %s
Message: %s
Branch: %s
Timestamp: %s
Changed Files: %d files

Please provide insights about:
1. Commit message quality and clarity
2. Change impact and scope
3. Development patterns and habits
4. Team collaboration indicators
5. Project health and progress

Provide concise, actionable feedback.`,
		c.CommitHash, c.Author, c.Message, branch,
		c.TimestampCommit.Format(time.RFC3339), len(c.ChangedFiles))
}

// StockBackendConfigs returns the configuration rows seeded for the two
// stock backends at startup. Seeding is an upsert keyed by name, so a
// restart refreshes the rows instead of duplicating them.
func StockBackendConfigs(baseURL, codeModel, commitModel string) []StockConfig {
	return []StockConfig{
		{
			Name:  BackendCodeQuality,
			Kind:  KindCodeAnalysis,
			Model: codeModel,
			Configuration: map[string]any{
				"base_url":      baseURL,
				"temperature":   0.1,
				"system_prompt": CodeQualitySystemPrompt,
			},
		},
		{
			Name:  BackendCommitPatterns,
			Kind:  KindCommitAnalysis,
			Model: commitModel,
			Configuration: map[string]any{
				"base_url":      baseURL,
				"temperature":   0.2,
				"system_prompt": CommitPatternsSystemPrompt,
			},
		},
	}
}

// StockConfig is one seedable backend configuration.
type StockConfig struct {
	Name          string
	Kind          string
	Model         string
	Configuration map[string]any
}
