package logs

import (
	"strconv"
	"strings"
)

// Filter selects log lines. The zero value matches everything.
type Filter struct {
	TrackID  int64
	Contains string
}

// Match reports whether line passes the filter. Track IDs are recognized in
// both the console layout ("[track 7]") and JSON ("track_id":7).
func (f Filter) Match(line string) bool {
	if f.TrackID > 0 {
		id := strconv.FormatInt(f.TrackID, 10)
		if !strings.Contains(line, "[track "+id+"]") && !strings.Contains(line, `"track_id":`+id+",") && !strings.Contains(line, `"track_id":`+id+"}") {
			return false
		}
	}
	if f.Contains != "" && !strings.Contains(strings.ToLower(line), strings.ToLower(f.Contains)) {
		return false
	}
	return true
}
