package aterm

import (
	"fmt"

	. "github.com/warpfork/go-errcat"

	"github.com/ztzg/nix/storepath"
)

// errParseAt constructs a parse error carrying the byte offset at which
// it was detected.
func errParseAt(offset int, format string, args ...interface{}) error {
	return Errorf(storepath.ErrParse, "parse error at byte %d: %s", offset, fmt.Sprintf(format, args...))
}
