package draft

import (
	"strings"
	"unicode/utf8"
)

// Stats are derived aggregate numbers for the status display.
type Stats struct {
	Sections   int
	Completed  int // sections with non-blank content
	Empty      int
	Words      int
	Characters int
}

// Stats computes counts over the current ordered section list.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st Stats
	st.Sections = len(s.sections)
	for _, sec := range s.sections {
		if strings.TrimSpace(sec.Content) == "" {
			st.Empty++
			continue
		}
		st.Completed++
		st.Words += len(strings.Fields(sec.Content))
		st.Characters += utf8.RuneCountInString(sec.Content)
	}
	return st
}
