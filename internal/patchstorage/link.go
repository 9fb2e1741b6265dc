package patchstorage

import "strings"

// parseLinkRels parses an RFC 8288 Link header value into a rel -> target
// map. Only the simple comma-separated form the Patchstorage API emits is
// supported: <https://...?page=2>; rel="next", <https://...?page=9>; rel="last"
func parseLinkRels(header string) map[string]string {
	rels := make(map[string]string)
	for _, part := range strings.Split(header, ",") {
		var target, rel string
		for _, segment := range strings.Split(part, ";") {
			segment = strings.TrimSpace(segment)
			switch {
			case strings.HasPrefix(segment, "<") && strings.HasSuffix(segment, ">"):
				target = strings.Trim(segment, "<>")
			case strings.HasPrefix(segment, "rel="):
				rel = strings.Trim(strings.TrimPrefix(segment, "rel="), `"`)
			}
		}
		if target != "" && rel != "" {
			rels[rel] = target
		}
	}
	return rels
}

// hasNextLink reports whether a Link header advertises another page.
func hasNextLink(header string) bool {
	if header == "" {
		return false
	}
	_, ok := parseLinkRels(header)["next"]
	return ok
}
