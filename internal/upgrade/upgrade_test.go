package upgrade

import "testing"

func ptr(s string) *string { return &s }

func TestNeedsUpgradeTruthTable(t *testing.T) {
	cases := []struct {
		name      string
		installed *string
		current   *string
		want      bool
	}{
		{"both nil", nil, nil, false},
		{"installed only", ptr("1.0.0"), nil, true},
		{"current only", nil, ptr("1.0.0"), true},
		{"equal semver", ptr("1.2.3"), ptr("1.2.3"), false},
		{"older installed", ptr("1.2.3"), ptr("1.2.4"), true},
		{"newer installed", ptr("1.3.0"), ptr("1.2.4"), false},
		{"v-prefixed", ptr("v1.2.3"), ptr("v1.2.4"), true},
		{"non-semver equal", ptr("git-abc123"), ptr("git-abc123"), false},
		{"non-semver differ", ptr("git-abc123"), ptr("git-def456"), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NeedsUpgrade(tc.installed, tc.current)
			if got != tc.want {
				t.Errorf("NeedsUpgrade(%v, %v) = %v, want %v", tc.installed, tc.current, got, tc.want)
			}
		})
	}
}
