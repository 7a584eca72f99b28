package parser

import (
	"errors"
	"testing"

	"github.com/IshaanNene/tubeharvest/internal/types"
)

func TestParseAbbreviatedCount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"12.3K", 12300},
		{"4M", 4000000},
		{"1B", 1000000000},
		{"1,234", 1234},
		{"0", 0},
		{"1.25M", 1250000},
		{"1.256M", 1256000},
		{"1.2567K", 1256},
		{"4.1K", 4100},
		{" 12 K ", 12000},
		{"12.K", 12000},
		{".5K", 500},
		{"1,234,567", 1234567},
		{"2.5B", 2500000000},
		{"987 K", 987000},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAbbreviatedCount(tt.in)
			if err != nil {
				t.Fatalf("ParseAbbreviatedCount(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseAbbreviatedCount(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseAbbreviatedCountErrors(t *testing.T) {
	inputs := []string{
		"abc",
		"",
		"   ",
		"K",
		"12k",
		"1.2.3K",
		"12.5",
		"-4M",
		"1e3",
		"12x3K",
		"Likes not found",
		"99999999999B",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := ParseAbbreviatedCount(in)
			var perr *types.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("ParseAbbreviatedCount(%q) error = %v, want *types.ParseError", in, err)
			}
			if perr.Text != in {
				t.Errorf("ParseError.Text = %q, want %q", perr.Text, in)
			}
		})
	}
}

func BenchmarkParseAbbreviatedCount(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = ParseAbbreviatedCount("12.3K")
	}
}
