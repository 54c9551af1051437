package robot

import "testing"

func TestNonInteractive(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
		want bool
	}{
		{"plain browser", nil, nil, false},
		{"robot flag", []string{"--robot-visible", "build"}, nil, true},
		{"robot flag with value", []string{"--robot-columns=3"}, nil, true},
		{"robot env", nil, map[string]string{"JW_ROBOT": "1"}, true},
		{"robot env off", nil, map[string]string{"JW_ROBOT": "0"}, false},
		{"test env", nil, map[string]string{"JW_TEST_MODE": "x"}, true},
		{"version", []string{"--version"}, nil, true},
		{"sqlite export", []string{"--sqlite-export=jobs.db"}, nil, true},
		{"selector named robot", []string{"robot"}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(k string) string { return tt.env[k] }
			if got := nonInteractive(tt.args, getenv); got != tt.want {
				t.Errorf("nonInteractive(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}
