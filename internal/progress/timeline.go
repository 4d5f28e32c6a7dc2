package progress

import (
	"math"
	"strconv"
	"strings"

	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// JoinTimeline returns the latest timing record whose status matches the
// node's status, or nil. Records with equal timestamps resolve to the one
// listed first.
func JoinTimeline(n Node, records []schema.TimingRecord) *schema.Timeline {
	if n.StatusID == "" {
		return nil
	}
	var latest *schema.TimingRecord
	for i := range records {
		r := &records[i]
		if r.StatusID != n.StatusID {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil
	}
	tl := &schema.Timeline{
		CompletedAt: latest.CreatedAt,
		OwnerID:     latest.OwnerID,
	}
	if latest.DurationSeconds != nil {
		d := *latest.DurationSeconds
		tl.DurationSeconds = &d
	}
	return tl
}

// ParseSLAMinutes reads the authored SLA as a whole number of minutes.
// Fractions are truncated and a leading integer is taken from strings such
// as "30 min". Empty, non-numeric and negative values yield nil.
func ParseSLAMinutes(raw schema.SLAValue) *int {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxInt32 {
			return nil
		}
		m := int(f)
		return &m
	}

	end := 0
	if end < len(s) && s[end] == '+' {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return nil
	}
	m, err := strconv.Atoi(s[digits:end])
	if err != nil || m > math.MaxInt32 {
		return nil
	}
	return &m
}
