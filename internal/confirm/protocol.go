package confirm

import (
	"fmt"
	"strconv"
	"strings"
)

// Button and list-row identifiers carry the pending expense through the chat
// round trip. The edit button ID is "edit:<pendingID>"; list rows are
// "<categoryID>:<pendingID>" so a single reply resolves both choices.

const actionEdit = "edit"

func EditButtonID(pendingID int64) string {
	return fmt.Sprintf("%s:%d", actionEdit, pendingID)
}

func CategoryRowID(categoryID, pendingID int64) string {
	return fmt.Sprintf("%d:%d", categoryID, pendingID)
}

// parseEditButtonID extracts the pending id from an edit button reply.
// Replies that do not match the protocol report ok=false and are ignored
// upstream.
func parseEditButtonID(id string) (pendingID int64, ok bool) {
	action, rest, found := strings.Cut(id, ":")
	if !found || action != actionEdit {
		return 0, false
	}
	pendingID, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || pendingID <= 0 {
		return 0, false
	}
	return pendingID, true
}

func parseRowID(id string) (categoryID, pendingID int64, ok bool) {
	first, rest, found := strings.Cut(id, ":")
	if !found {
		return 0, 0, false
	}
	categoryID, err := strconv.ParseInt(first, 10, 64)
	if err != nil || categoryID <= 0 {
		return 0, 0, false
	}
	pendingID, err = strconv.ParseInt(rest, 10, 64)
	if err != nil || pendingID <= 0 {
		return 0, 0, false
	}
	return categoryID, pendingID, true
}
