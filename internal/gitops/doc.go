// Package gitops is the version-control surface of the job: it syncs the
// mainline branch, maintains the long-lived data branch, stages exactly the
// fetch output directory and pushes the resulting snapshot commit.
//
// All operations use go-git except the three-way merge of mainline into the
// data branch, which shells out to the git CLI (go-git only implements
// fast-forward merges).
package gitops
