package keyword

import (
	"reflect"
	"testing"
)

func TestSplitTerms(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Age_Years", []string{"age", "years"}},
		{"studentName_2", []string{"student", "name", "2"}},
		{"HTTPServer", []string{"http", "server"}},
		{"zip code", []string{"zip", "code"}},
		{"AGE", []string{"age"}},
		{"Q3revenue", []string{"q", "3", "revenue"}},
		{"__", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := SplitTerms(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitTerms(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
