package version

import "testing"

func TestCurrent(t *testing.T) {
	GitRepo, LatestReleaseTag, GitShortSha = "", "v1.4.0", "3f2a9c1"
	t.Cleanup(func() { GitRepo, LatestReleaseTag, GitShortSha = "", "", "" })

	r := Current()
	if r.Repo != "unknown" {
		t.Errorf("expected unset repo to read unknown, got %s", r.Repo)
	}
	if got := r.String(); got != "v1.4.0+3f2a9c1" {
		t.Errorf("unexpected version string %s", got)
	}
}
