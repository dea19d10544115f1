package report

import (
	"regexp"
	"strings"
)

const maxAddressKeyLen = 200

var (
	addressKeyStrip     = regexp.MustCompile(`[^\w\s-]`)
	addressKeySeparator = regexp.MustCompile(`[\s-]+`)
	addressKeyCollapse  = regexp.MustCompile(`_+`)
)

// AddressKey canonicalizes a free-text address into a stable storage
// identifier. It must stay pure and deterministic: intake, verification, and
// the maintenance jobs all derive keys with it, and the dedup invariant only
// holds if identical normalized text always yields the identical key.
//
// An empty result means the input carried no usable characters; callers must
// treat that as invalid and reject the submission.
func AddressKey(address string) string {
	key := strings.ToLower(address)
	key = addressKeyStrip.ReplaceAllString(key, "")
	key = addressKeySeparator.ReplaceAllString(key, "_")
	key = addressKeyCollapse.ReplaceAllString(key, "_")
	key = strings.Trim(key, "_")
	if len(key) > maxAddressKeyLen {
		key = key[:maxAddressKeyLen]
	}
	return key
}
