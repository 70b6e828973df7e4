package ci

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

var (
	ErrNoWorkflow       = errors.New("no completed workflow found")
	ErrArtifactNotFound = errors.New("artifact not found")
)

// RunSource is what the finders need from the API.
type RunSource interface {
	WorkflowRuns(ctx context.Context) iter.Seq2[Run, error]
	HasArtifacts(ctx context.Context, runID int64) (bool, error)
}

// Progress is reported after every run inspected.
type Progress struct {
	RunID     int64
	HeadFound bool
	BaseFound bool
}

type Observer func(Progress)

// Scan holds the runs picked by a finder. Skipped lists runs that matched but
// had no artifacts.
type Scan struct {
	Head    *Run
	Base    *Run
	Skipped []Run
}

// FindPullRequestRuns picks the newest run of the pull request's head branch
// and the newest run of its base branch in repo.
func FindPullRequestRuns(ctx context.Context, src RunSource, repo string, pr PullRequest, observe Observer) (Scan, error) {
	scan, err := find(ctx, src, observe, true,
		func(r Run) bool {
			return sameRepo(r.HeadRepo, pr.Head.Repo) && r.HeadBranch == pr.Head.Ref
		},
		func(r Run) bool {
			return sameRepo(r.HeadRepo, repo) && r.HeadBranch == pr.Base.Ref
		},
	)
	if err != nil {
		return scan, err
	}

	if scan.Head == nil {
		return scan, fmt.Errorf("%w for head branch %s", ErrNoWorkflow, pr.Head.Ref)
	}
	if scan.Base == nil {
		return scan, fmt.Errorf("%w for base branch %s", ErrNoWorkflow, pr.Base.Ref)
	}

	return scan, nil
}

// FindRevisionRun picks the newest run in repo built from the commit sha.
func FindRevisionRun(ctx context.Context, src RunSource, repo string, sha string, observe Observer) (Scan, error) {
	return findHead(ctx, src, observe, func(r Run) bool {
		return sameRepo(r.HeadRepo, repo) && r.HeadSHA == sha
	}, "revision "+sha)
}

// FindBranchRun picks the newest run in repo on branch.
func FindBranchRun(ctx context.Context, src RunSource, repo string, branch string, observe Observer) (Scan, error) {
	return findHead(ctx, src, observe, func(r Run) bool {
		return sameRepo(r.HeadRepo, repo) && r.HeadBranch == branch
	}, "branch "+branch)
}

func findHead(ctx context.Context, src RunSource, observe Observer, isHead func(Run) bool, what string) (Scan, error) {
	scan, err := find(ctx, src, observe, false, isHead, nil)
	if err != nil {
		return scan, err
	}

	if scan.Head == nil {
		return scan, fmt.Errorf("%w for %s", ErrNoWorkflow, what)
	}

	return scan, nil
}

func find(ctx context.Context, src RunSource, observe Observer, wantBase bool, isHead, isBase func(Run) bool) (Scan, error) {
	scan := Scan{}

	// a run without artifacts is passed over and the search goes on with older runs
	usable := func(r Run) (bool, error) {
		ok, err := src.HasArtifacts(ctx, r.ID)
		if err != nil {
			return false, err
		}
		if !ok {
			scan.Skipped = append(scan.Skipped, r)
		}
		return ok, nil
	}

	for run, err := range src.WorkflowRuns(ctx) {
		if err != nil {
			return scan, err
		}

		if scan.Head == nil && isHead(run) {
			ok, err := usable(run)
			if err != nil {
				return scan, err
			}
			if ok {
				scan.Head = &run
			}
		}

		if wantBase && scan.Base == nil && isBase(run) {
			ok, err := usable(run)
			if err != nil {
				return scan, err
			}
			if ok {
				scan.Base = &run
			}
		}

		if observe != nil {
			observe(Progress{
				RunID:     run.ID,
				HeadFound: scan.Head != nil,
				BaseFound: scan.Base != nil,
			})
		}

		if scan.Head != nil && (!wantBase || scan.Base != nil) {
			break
		}
	}

	return scan, nil
}

func sameRepo(a, b string) bool {
	return strings.EqualFold(a, b)
}
