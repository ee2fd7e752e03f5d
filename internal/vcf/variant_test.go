package vcf

import "testing"

func TestVariant_IsSNV(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		alt  string
		want bool
	}{
		{"A to G", "A", "G", true},
		{"A to T (spike N501Y)", "A", "T", true},
		{"deletion", "AT", "A", false},
		{"insertion", "A", "AT", false},
		{"MNV", "AT", "GC", false},
		{"complex indel", "ATG", "A", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Variant{Ref: tt.ref, Alt: tt.alt}
			if got := v.IsSNV(); got != tt.want {
				t.Errorf("IsSNV() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVariant_IsIndel(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		alt  string
		want bool
	}{
		{"SNV", "A", "G", false},
		{"deletion", "AT", "A", true},
		{"insertion", "A", "AT", true},
		{"complex deletion", "ATGC", "A", true},
		{"MNV same length", "AT", "GC", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Variant{Ref: tt.ref, Alt: tt.alt}
			if got := v.IsIndel(); got != tt.want {
				t.Errorf("IsIndel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVariant_IsInsertion(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		alt  string
		want bool
	}{
		{"SNV", "A", "G", false},
		{"deletion", "AT", "A", false},
		{"insertion", "A", "AT", true},
		{"larger insertion", "A", "ATGC", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Variant{Ref: tt.ref, Alt: tt.alt}
			if got := v.IsInsertion(); got != tt.want {
				t.Errorf("IsInsertion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVariant_IsDeletion(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		alt  string
		want bool
	}{
		{"SNV", "A", "G", false},
		{"deletion", "AT", "A", true},
		{"insertion", "A", "AT", false},
		{"larger deletion", "ATGC", "A", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Variant{Ref: tt.ref, Alt: tt.alt}
			if got := v.IsDeletion(); got != tt.want {
				t.Errorf("IsDeletion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVariant_IsMNV(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		alt  string
		want bool
	}{
		{"SNV", "A", "G", false},
		{"dinucleotide", "GG", "AA", true},
		{"deletion", "AT", "A", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Variant{Ref: tt.ref, Alt: tt.alt}
			if got := v.IsMNV(); got != tt.want {
				t.Errorf("IsMNV() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVariant_N501Y(t *testing.T) {
	// Spike N501Y: AAT -> TAT at the first base of codon 501
	v := &Variant{
		Chrom: "MN908947.3",
		Pos:   23063,
		Ref:   "A",
		Alt:   "T",
		Info:  map[string]any{"DESC": "aa:s:N501Y", "KNOWN": true},
	}

	if !v.IsSNV() {
		t.Error("N501Y should be classified as SNV")
	}
	if v.IsIndel() {
		t.Error("N501Y should not be classified as indel")
	}
	if got := v.Key(); got != "MN908947.3:23063:A:T" {
		t.Errorf("Key() = %s", got)
	}
	if got := v.InfoString("DESC"); got != "aa:s:N501Y" {
		t.Errorf("InfoString(DESC) = %s", got)
	}
	if got := v.InfoString("KNOWN"); got != "" {
		t.Errorf("InfoString(KNOWN) = %s, want empty for a flag", got)
	}
}
