package obs

import "strings"

// CanonicalPath collapses identifier path segments so metric label
// cardinality stays bounded. Only routes that embed an id are rewritten.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	const platformOrgs = "/v1/platform/organizations/"
	if rest, ok := strings.CutPrefix(path, platformOrgs); ok && rest != "" {
		parts := strings.Split(strings.Trim(rest, "/"), "/")
		switch len(parts) {
		case 1:
			return platformOrgs[:len(platformOrgs)-1] + "/:id"
		case 2:
			return platformOrgs[:len(platformOrgs)-1] + "/:id/" + parts[1]
		}
	}
	const announcements = "/v1/announcements/"
	if rest, ok := strings.CutPrefix(path, announcements); ok && rest != "" && rest != "stream" {
		if !strings.Contains(strings.Trim(rest, "/"), "/") {
			return announcements[:len(announcements)-1] + "/:id"
		}
	}
	return path
}
