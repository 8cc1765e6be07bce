package migrate

import "testing"

func TestRun_EmptyDSN(t *testing.T) {
	if err := Run("", "up"); err == nil {
		t.Fatal("Run with empty DSN should return error")
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	for _, direction := range []string{"", "sideways", "UP", "Down"} {
		if err := Run("postgres://localhost/test", direction); err == nil {
			t.Errorf("Run with direction %q should return error", direction)
		}
	}
}

func TestRun_InvalidDSN(t *testing.T) {
	testCases := []struct {
		name string
		dsn  string
	}{
		{"invalid format", "invalid-dsn"},
		{"missing driver", "://localhost/test"},
		{"malformed", "postgres://"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Run(tc.dsn, "up"); err == nil {
				t.Errorf("Run with invalid DSN %q should return error", tc.dsn)
			}
		})
	}
}

func TestErrNoChange(t *testing.T) {
	if ErrNoChange == nil {
		t.Fatal("ErrNoChange should not be nil")
	}
}
