package cli

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestRegisterBooleanFlagParsesValues(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name              string
		defaultValue      bool
		arguments         []string
		expected          bool
		expectError       bool
		expectPositionals []string
	}{
		{
			name:         "defaults_to_false",
			defaultValue: false,
			arguments:    []string{},
			expected:     false,
		},
		{
			name:         "sets_true_without_value",
			defaultValue: false,
			arguments:    []string{"--tags"},
			expected:     true,
		},
		{
			name:         "sets_false_with_equals",
			defaultValue: true,
			arguments:    []string{"--tags=false"},
			expected:     false,
		},
		{
			name:         "sets_false_with_no_literal",
			defaultValue: true,
			arguments:    []string{"--tags", "no"},
			expected:     false,
		},
		{
			name:         "accepts_numeric_with_equals",
			defaultValue: true,
			arguments:    []string{"--tags=0"},
			expected:     false,
		},
		{
			name:              "keeps_numeric_item_id_positional",
			defaultValue:      false,
			arguments:         []string{"--tags", "1"},
			expected:          true,
			expectPositionals: []string{"1"},
		},
		{
			name:         "rejects_invalid_text_with_equals",
			defaultValue: false,
			arguments:    []string{"--tags=maybe"},
			expectError:  true,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			command := &cobra.Command{Use: "boolean-test"}
			flagSet := command.Flags()
			flagValue := !testCase.defaultValue
			registerBooleanFlag(flagSet, &flagValue, "tags", testCase.defaultValue, "fetch tags")
			normalizedArguments := normalizeBooleanFlagArguments(command, testCase.arguments)
			parseErr := command.ParseFlags(normalizedArguments)
			if testCase.expectError {
				if parseErr == nil {
					t.Fatalf("expected parse error for arguments %v", testCase.arguments)
				}
				return
			}
			if parseErr != nil {
				t.Fatalf("unexpected parse error: %v", parseErr)
			}
			if flagValue != testCase.expected {
				t.Fatalf("expected %t, got %t", testCase.expected, flagValue)
			}
			positionals := flagSet.Args()
			if len(positionals) != len(testCase.expectPositionals) {
				t.Fatalf("expected positionals %v, got %v", testCase.expectPositionals, positionals)
			}
			for index := range positionals {
				if positionals[index] != testCase.expectPositionals[index] {
					t.Fatalf("expected positionals %v, got %v", testCase.expectPositionals, positionals)
				}
			}
		})
	}
}

func TestBooleanFlagErrorsNameTheFlag(t *testing.T) {
	t.Parallel()

	detached := &booleanFlagValue{flagKey: "sequential"}
	detachedErr := detached.Set("yes")
	if detachedErr == nil || !strings.Contains(detachedErr.Error(), `flag "sequential"`) {
		t.Fatalf("expected error naming the flag, got %v", detachedErr)
	}

	var target bool
	attached := &booleanFlagValue{target: &target, flagKey: "tags"}
	invalidErr := attached.Set("maybe")
	if invalidErr == nil || !strings.Contains(invalidErr.Error(), "--tags") {
		t.Fatalf("expected error naming --tags, got %v", invalidErr)
	}
}
