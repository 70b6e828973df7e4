package ci

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	runs      []Run
	artifacts map[int64]bool
	listErr   error
	listed    int
}

func (f *fakeSource) WorkflowRuns(ctx context.Context) iter.Seq2[Run, error] {
	return func(yield func(Run, error) bool) {
		for _, r := range f.runs {
			f.listed++
			if !yield(r, nil) {
				return
			}
		}
		if f.listErr != nil {
			yield(Run{}, f.listErr)
		}
	}
}

func (f *fakeSource) HasArtifacts(ctx context.Context, runID int64) (bool, error) {
	has, found := f.artifacts[runID]
	return !found || has, nil
}

var pr = PullRequest{
	Number: 12,
	Head:   Ref{Repo: "fork/EICrecon", Ref: "feature", SHA: "h1"},
	Base:   Ref{Repo: "eic/EICrecon", Ref: "main", SHA: "b1"},
}

func TestFindPullRequestRuns(t *testing.T) {
	src := &fakeSource{
		runs: []Run{
			{ID: 1, HeadRepo: "eic/EICrecon", HeadBranch: "other"},
			{ID: 2, HeadRepo: "fork/EICrecon", HeadBranch: "feature"},
			{ID: 3, HeadRepo: "eic/EICrecon", HeadBranch: "feature"},
			{ID: 4, HeadRepo: "eic/EICrecon", HeadBranch: "main"},
			{ID: 5, HeadRepo: "eic/EICrecon", HeadBranch: "main"},
			{ID: 6, HeadRepo: "fork/EICrecon", HeadBranch: "feature"},
		},
		artifacts: map[int64]bool{2: false},
	}

	var progress []Progress
	scan, err := FindPullRequestRuns(t.Context(), src, "eic/EICrecon", pr, func(p Progress) {
		progress = append(progress, p)
	})
	require.NoError(t, err)

	require.Equal(t, int64(6), scan.Head.ID)
	require.Equal(t, int64(4), scan.Base.ID)
	require.Len(t, scan.Skipped, 1)
	require.Equal(t, int64(2), scan.Skipped[0].ID)

	require.Len(t, progress, 6)
	require.Equal(t, Progress{RunID: 4, HeadFound: false, BaseFound: true}, progress[3])
	require.Equal(t, Progress{RunID: 6, HeadFound: true, BaseFound: true}, progress[5])
}

func TestFindPullRequestRunsStopsEarly(t *testing.T) {
	src := &fakeSource{
		runs: []Run{
			{ID: 1, HeadRepo: "FORK/eicrecon", HeadBranch: "feature"},
			{ID: 2, HeadRepo: "eic/EICrecon", HeadBranch: "main"},
			{ID: 3, HeadRepo: "eic/EICrecon", HeadBranch: "main"},
		},
	}

	scan, err := FindPullRequestRuns(t.Context(), src, "eic/EICrecon", pr, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), scan.Head.ID)
	require.Equal(t, int64(2), scan.Base.ID)
	require.Equal(t, 2, src.listed)
}

func TestFindPullRequestRunsMissing(t *testing.T) {
	cases := []struct {
		name string
		runs []Run
		msg  string
	}{
		{
			name: "no head",
			runs: []Run{{ID: 1, HeadRepo: "eic/EICrecon", HeadBranch: "main"}},
			msg:  "head branch feature",
		},
		{
			name: "no base",
			runs: []Run{{ID: 1, HeadRepo: "fork/EICrecon", HeadBranch: "feature"}},
			msg:  "base branch main",
		},
		{
			name: "base in fork does not count",
			runs: []Run{
				{ID: 1, HeadRepo: "fork/EICrecon", HeadBranch: "feature"},
				{ID: 2, HeadRepo: "fork/EICrecon", HeadBranch: "main"},
			},
			msg: "base branch main",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FindPullRequestRuns(t.Context(), &fakeSource{runs: tc.runs}, "eic/EICrecon", pr, nil)
			require.ErrorIs(t, err, ErrNoWorkflow)
			require.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestFindRevisionRun(t *testing.T) {
	src := &fakeSource{
		runs: []Run{
			{ID: 1, HeadRepo: "fork/EICrecon", HeadSHA: "abc"},
			{ID: 2, HeadRepo: "eic/EICrecon", HeadSHA: "abc"},
			{ID: 3, HeadRepo: "eic/EICrecon", HeadSHA: "abc"},
			{ID: 4, HeadRepo: "eic/EICrecon", HeadSHA: "abc"},
		},
		artifacts: map[int64]bool{2: false},
	}

	scan, err := FindRevisionRun(t.Context(), src, "eic/EICrecon", "abc", nil)
	require.NoError(t, err)
	require.Equal(t, int64(3), scan.Head.ID)
	require.Nil(t, scan.Base)
	require.Len(t, scan.Skipped, 1)
	require.Equal(t, 3, src.listed)

	_, err = FindRevisionRun(t.Context(), src, "eic/EICrecon", "fff", nil)
	require.ErrorIs(t, err, ErrNoWorkflow)
}

func TestFindBranchRun(t *testing.T) {
	src := &fakeSource{
		runs: []Run{
			{ID: 1, HeadRepo: "eic/EICrecon", HeadBranch: "main"},
			{ID: 2, HeadRepo: "eic/EICrecon", HeadBranch: "pr/calo_alg_use_collections"},
		},
	}

	scan, err := FindBranchRun(t.Context(), src, "eic/EICrecon", "pr/calo_alg_use_collections", nil)
	require.NoError(t, err)
	require.Equal(t, int64(2), scan.Head.ID)
}

func TestFindPropagatesListErrors(t *testing.T) {
	boom := errors.New("rate limited")
	src := &fakeSource{listErr: boom}

	_, err := FindBranchRun(t.Context(), src, "eic/EICrecon", "main", nil)
	require.ErrorIs(t, err, boom)
}
