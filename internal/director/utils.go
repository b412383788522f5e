package director

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// GeneratePathFile names the trace written after directing inputPath, e.g.
// drop_test_directed_2026-02-12_10-00-00.yaml next to the output.
func GeneratePathFile(dir, inputPath string, now time.Time) string {
	base := filepath.Base(inputPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" || name == "." {
		name = "trace"
	}
	return filepath.Join(dir, fmt.Sprintf("%s_directed_%s.yaml", name, now.Format("2006-01-02_15-04-05")))
}
