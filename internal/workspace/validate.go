package workspace

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidName is wrapped by every workspace name validation failure.
var ErrInvalidName = errors.New("invalid workspace name")

var nameRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidateName checks that name can be used as a workspace directory and
// passed to lawdeskd -workspace: lowercase letters, digits, '-' and '_',
// at most 64 characters, not starting with '-' or '_'.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("%w %q: workspaces are named with lowercase letters, digits, '-' and '_' (1-64 chars, starting with a letter or digit)", ErrInvalidName, name)
	}
	return nil
}
