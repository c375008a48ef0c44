package service

import "testing"

func TestCodeMatcher_Match(t *testing.T) {
	catalogue := map[string]uint{
		"3433-3132": 1,
		"345/1153":  2,
		"152-153":   3,
	}

	tests := []struct {
		name    string
		max     int
		code    string
		wantID  uint
		wantHit bool
	}{
		{"exact", 1, "3433-3132", 1, true},
		{"separator ignored", 0, "3433/3132", 1, true},
		{"one misread digit", 1, "345/1158", 2, true},
		{"too far", 1, "999-999", 0, false},
		{"distance zero rejects typo", 0, "152-158", 0, false},
		{"empty code", 1, "--", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := NewCodeMatcher(tt.max).Match(tt.code, catalogue)
			if ok != tt.wantHit || id != tt.wantID {
				t.Errorf("Match(%q) = (%d, %v), want (%d, %v)", tt.code, id, ok, tt.wantID, tt.wantHit)
			}
		})
	}
}

func TestCodeMatcher_TieBreaksDeterministically(t *testing.T) {
	catalogue := map[string]uint{"100-201": 7, "100-200": 9}
	for i := 0; i < 20; i++ {
		if id, ok := NewCodeMatcher(1).Match("100-202", catalogue); !ok || id != 9 {
			t.Fatalf("expected the smallest code to win a tie, got (%d, %v)", id, ok)
		}
	}
}
