package validation

import (
	"testing"
)

func TestIsValidCustomerKey(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"acme", true},
		{"ACME-2024", true},
		{"cust_001", true},
		{"tenant:west.acme", true},
		{"a", true},

		// Invalid cases
		{"", false},
		{"-leading-dash", false},
		{".leading-dot", false},
		{"has space", false},
		{"slash/key", false},
		{"percent%key", false},
		{string(make([]byte, 200)), false}, // Too long
	}

	for _, tc := range tests {
		result := IsValidCustomerKey(tc.key)
		if result != tc.valid {
			t.Errorf("IsValidCustomerKey(%q) = %v, want %v", tc.key, result, tc.valid)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"hello", 10, "hello"},
		{"  hello  ", 10, "hello"},
		{"hello world", 5, "hello"},
		{"hello\x00world", 20, "helloworld"},
	}

	for _, tc := range tests {
		result := SanitizeString(tc.input, tc.maxLen)
		if result != tc.expected {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, result, tc.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	// Test valid input
	errors := Validate(
		Required("name", "high balance watch"),
		ValidCustomerKey("customerKey", "acme-2024"),
	)
	if len(errors) != 0 {
		t.Errorf("Expected no errors, got %v", errors)
	}

	// Test invalid input
	errors = Validate(
		Required("name", ""),
		ValidCustomerKey("customerKey", "not valid!"),
	)
	if len(errors) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(errors))
	}
}

func TestMaxLength(t *testing.T) {
	// Under limit
	err := MaxLength("field", "hello", 10)()
	if err != nil {
		t.Error("Expected no error for string under limit")
	}

	// At limit
	err = MaxLength("field", "hello", 5)()
	if err != nil {
		t.Error("Expected no error for string at limit")
	}

	// Over limit
	err = MaxLength("field", "hello world", 5)()
	if err == nil {
		t.Error("Expected error for string over limit")
	}
}
