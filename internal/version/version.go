package version

// set at build time with -ldflags "-X github.com/cdcgov/data-exchange-upload/blob-relay/internal/version.GitShortSha=..."
var (
	GitRepo          string
	LatestReleaseTag string
	GitShortSha      string
)

const unknown = "unknown"

type Response struct {
	Repo             string `json:"repo"`
	LatestReleaseTag string `json:"latest_release_tag"`
	GitShortSha      string `json:"git_short_sha"`
}

// Current reports the build the process runs, with unset values shown as unknown.
func Current() Response {
	return Response{
		Repo:             orUnknown(GitRepo),
		LatestReleaseTag: orUnknown(LatestReleaseTag),
		GitShortSha:      orUnknown(GitShortSha),
	}
}

func (r Response) String() string {
	return r.LatestReleaseTag + "+" + r.GitShortSha
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}
