package cli

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/randalmurphal/featureplus/internal/coordinator"
	"github.com/randalmurphal/featureplus/internal/errors"
)

// PrintError prints an error to stderr with appropriate formatting.
// Structured errors use their user-facing message; a rolled-back mutation
// also says which entity was restored.
func PrintError(err error) {
	var rb *coordinator.RecoverableError
	if stderrors.As(err, &rb) {
		fmt.Fprintf(os.Stderr, "%s %s was rolled back.\n", rb.Op, rb.Key)
	}
	if e := errors.AsError(err); e != nil {
		fmt.Fprintln(os.Stderr, e.UserMessage())
		if verbose {
			fmt.Fprintf(os.Stderr, "\nCode: %s\n", e.Code)
			if e.Cause != nil {
				fmt.Fprintf(os.Stderr, "Cause: %v\n", e.Cause)
			}
		}
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}
