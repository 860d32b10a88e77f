package chat

import (
	"context"
	"errors"
	"fmt"
)

// FallbackContent replaces an assistant message whose stream failed.
const FallbackContent = "Sorry, I encountered an error. Please try again."

// HumanReadableError turns a transport or API failure into the text shown
// in the error banner.
func HumanReadableError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "The assistant took too long to respond. Please try again."
	default:
		return fmt.Sprintf("Failed to get a response: %v", err)
	}
}
