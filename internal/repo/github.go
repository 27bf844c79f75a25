package repo

import "strings"

const githubPrefix = "https://github.com/"

// ParseGitHubURL splits "https://github.com/owner/repo" into
// ["owner", "repo"]. Anything that does not leave exactly two path parts
// yields an empty slice. A bare "owner/repo" is accepted as well.
func ParseGitHubURL(url string) []string {
	parts := strings.Split(strings.Replace(url, githubPrefix, "", 1), "/")
	if len(parts) != 2 {
		return []string{}
	}
	return parts
}

// FullName returns "owner/repo" for a GitHub URL or slug.
func FullName(url string) (string, bool) {
	parts := ParseGitHubURL(url)
	if len(parts) != 2 {
		return "", false
	}
	return parts[0] + "/" + parts[1], true
}
