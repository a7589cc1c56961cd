package gitops

import "errors"

var (
	// ErrMergeConflict means mainline and the data branch diverged in a way
	// git could not auto-merge. The merge is aborted; resolution is manual.
	ErrMergeConflict = errors.New("merge conflict between mainline and data branch")

	// ErrPushRejected means the remote refused the push, typically because a
	// concurrent run updated the data branch first (non-fast-forward).
	ErrPushRejected = errors.New("push rejected by remote")

	// ErrNothingToCommit means the staged output directory carried no changes.
	ErrNothingToCommit = errors.New("nothing to commit")
)
