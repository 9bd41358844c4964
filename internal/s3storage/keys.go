package s3storage

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultExtension = ".jpg"

// ObjectKey derives a collision-resistant storage key from the original
// filename: unix-millis timestamp, an 8-character random token, and the
// original extension (lowercased, .jpg when absent or unusable).
func ObjectKey(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "." || ext == "" || strings.ContainsAny(ext, " /\\") {
		ext = defaultExtension
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + token + ext
}
