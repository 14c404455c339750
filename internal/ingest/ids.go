package ingest

import (
	"fmt"

	"github.com/google/uuid"
)

// recordNamespace seeds content-derived record IDs.
var recordNamespace = uuid.MustParse("6f1c9a52-3b0e-4f5e-9d7a-2c8e1b4d7a10")

// RecordID derives a stable ID from a chunk's namespace, source, position
// and text, so re-ingesting unchanged content overwrites instead of
// duplicating.
func RecordID(namespace, source string, index int, content string) string {
	key := fmt.Sprintf("%s\x00%s\x00%d\x00%s", namespace, source, index, content)
	return uuid.NewSHA1(recordNamespace, []byte(key)).String()
}
