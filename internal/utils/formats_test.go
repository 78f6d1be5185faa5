package utils

import "testing"

func TestDetectFileFormat(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"reads.fastq", "FASTQ"},
		{"reads.fq", "FASTQ"},
		{"genome.fasta", "FASTA"},
		{"genome.fa", "FASTA"},
		{"variants.vcf", "VCF"},
		{"alignment.bam", "BAM"},
		{"regions.bed", "BED"},
		{"reads.fastq.gz", "FASTQ"},
		{"archive.tar.gz", "tar"},
		{"data.gz", "gz"},
		{"table.csv", "CSV"},
		{"table.tsv", "TSV"},
		{"paper.pdf", "PDF"},
		{"notes.txt", "txt"},
		{"script.py", "py"},
		{"analysis.R", "R"},
		{"UPPERCASE.FASTA", "FASTA"},
		{"noextension", "other"},
		{"", "other"},
		{"weird.xyz", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := DetectFileFormat(tt.filename); got != tt.want {
				t.Errorf("DetectFileFormat(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
