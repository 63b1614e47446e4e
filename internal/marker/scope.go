package marker

import (
	"strings"

	apperrors "github.com/dpshade/fieldmark/internal/errors"
	"github.com/dpshade/fieldmark/internal/models"
)

// ScopePolicy decides which documents are reconciled
type ScopePolicy int

const (
	// ScopeExcludeTemplates reconciles every document outside the templates directory
	ScopeExcludeTemplates ScopePolicy = iota
	// ScopeTargetOnly additionally requires the document to be inside the target directory
	ScopeTargetOnly
)

func (p ScopePolicy) String() string {
	if p == ScopeTargetOnly {
		return "target-only"
	}
	return "exclude-templates"
}

// PolicyFor derives the policy from settings: a configured target directory
// turns the gate on, an empty one means "everywhere except templates".
func PolicyFor(s models.Settings) ScopePolicy {
	if s.TargetHighlightingDirectory != "" {
		return ScopeTargetOnly
	}
	return ScopeExcludeTemplates
}

// ScopeDecision is the outcome of the path check for one document
type ScopeDecision struct {
	InScope bool
	Policy  ScopePolicy
	Reason  string
	// Err is set when the path itself could not be judged
	Err *apperrors.AppError
}

// DecideScope checks path against the configured directories.
//
// Matching is substring containment of "<directory>/" anywhere in the path,
// not a rooted segment match: with templatesDirectory "Templates" the path
// "Archive/Templates/x.md" is excluded too, and a path at the vault root
// never contains the token at all.
func DecideScope(path string, s models.Settings) ScopeDecision {
	policy := PolicyFor(s)

	if strings.TrimSpace(path) == "" {
		return ScopeDecision{
			Policy: policy,
			Reason: "empty document path",
			Err:    apperrors.ScopeResolutionError(path, "empty document path"),
		}
	}
	if strings.ContainsRune(path, 0) {
		return ScopeDecision{
			Policy: policy,
			Reason: "malformed document path",
			Err:    apperrors.ScopeResolutionError(path, "document path contains NUL"),
		}
	}

	if strings.Contains(path, s.TemplatesDirectory+"/") {
		return ScopeDecision{Policy: policy, Reason: "inside templates directory"}
	}

	if policy == ScopeTargetOnly && !strings.Contains(path, s.TargetHighlightingDirectory+"/") {
		return ScopeDecision{Policy: policy, Reason: "outside target directory"}
	}

	return ScopeDecision{InScope: true, Policy: policy}
}
