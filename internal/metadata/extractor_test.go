package metadata

import (
	"strings"
	"testing"
)

func TestExtract_FASTA(t *testing.T) {
	content := `>seq1 Homo sapiens chromosome 1
ACGTACGTACGT
ACGT
>seq2 another sequence
GGGGCCCC
`
	meta := Extract(strings.NewReader(content), "FASTA")

	if got := meta["sequence_count"]; got != 2 {
		t.Errorf("sequence_count = %v, want 2", got)
	}
	if got := meta["detected_organism"]; got != "Homo sapiens" {
		t.Errorf("detected_organism = %v, want Homo sapiens", got)
	}
	headers, ok := meta["sample_headers"].([]string)
	if !ok || len(headers) != 2 {
		t.Errorf("sample_headers = %v, want 2 headers", meta["sample_headers"])
	}
}

func TestExtract_FASTQ(t *testing.T) {
	content := `@HWI-ST1234:1:1101:1:1
ACGTACGT
+
IIIIIIII
@HWI-ST1234:1:1101:1:2
ACGTACGTACGT
+
IIIIIIIIIIII
`
	meta := Extract(strings.NewReader(content), "FASTQ")

	if got := meta["read_count"]; got != 2 {
		t.Errorf("read_count = %v, want 2", got)
	}
	if got := meta["average_read_length"]; got != 10 {
		t.Errorf("average_read_length = %v, want 10", got)
	}
	if got := meta["sequencing_platform"]; got != "Illumina" {
		t.Errorf("sequencing_platform = %v, want Illumina", got)
	}
	// Quality "I" is Phred 40
	if got, ok := meta["average_quality"].(float64); !ok || got != 40 {
		t.Errorf("average_quality = %v, want 40", meta["average_quality"])
	}
}

func TestExtract_VCF(t *testing.T) {
	content := "##fileformat=VCFv4.2\n" +
		"##reference=GRCh38\n" +
		"##source=caller-v1\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tsampleA\tsampleB\n" +
		"chr1\t100\t.\tA\tT\t50\tPASS\t.\tGT\t0/1\t1/1\n" +
		"chr1\t200\t.\tG\tC\t60\tPASS\t.\tGT\t0/0\t0/1\n"

	meta := Extract(strings.NewReader(content), "VCF")

	if got := meta["variant_count_sample"]; got != 2 {
		t.Errorf("variant_count_sample = %v, want 2", got)
	}
	if got := meta["sample_count"]; got != 2 {
		t.Errorf("sample_count = %v, want 2", got)
	}
	headerInfo, ok := meta["header_info"].(map[string]string)
	if !ok {
		t.Fatalf("header_info has wrong type: %T", meta["header_info"])
	}
	if headerInfo["file_format"] != "VCFv4.2" {
		t.Errorf("file_format = %q, want VCFv4.2", headerInfo["file_format"])
	}
	if headerInfo["reference"] != "GRCh38" {
		t.Errorf("reference = %q, want GRCh38", headerInfo["reference"])
	}
}

func TestExtract_CSV(t *testing.T) {
	content := "gene,expression,pvalue\nTP53,2.4,0.001\nBRCA1,1.1,0.03\n"

	meta := Extract(strings.NewReader(content), "CSV")

	if got := meta["column_count"]; got != 3 {
		t.Errorf("column_count = %v, want 3", got)
	}
	if got := meta["separator"]; got != "," {
		t.Errorf("separator = %v, want comma", got)
	}
	if got := meta["sample_rows"]; got != 2 {
		t.Errorf("sample_rows = %v, want 2", got)
	}
}

func TestExtract_TSVDelimiterDetection(t *testing.T) {
	content := "gene\texpression\tpvalue\nTP53\t2.4\t0.001\n"

	meta := Extract(strings.NewReader(content), "TSV")

	if got := meta["separator"]; got != "\t" {
		t.Errorf("separator = %q, want tab", got)
	}
}

func TestExtract_Text(t *testing.T) {
	content := "RNA-seq study of tumor gene expression in tissue samples.\nSecond line."

	meta := Extract(strings.NewReader(content), "txt")

	if got := meta["line_count"]; got != 2 {
		t.Errorf("line_count = %v, want 2", got)
	}
	keywords, ok := meta["detected_keywords"].([]string)
	if !ok || len(keywords) == 0 {
		t.Fatalf("detected_keywords = %v, want non-empty", meta["detected_keywords"])
	}
	found := false
	for _, kw := range keywords {
		if kw == "RNA-seq" {
			found = true
		}
	}
	if !found {
		t.Errorf("keywords %v missing RNA-seq", keywords)
	}
}

func TestExtract_UnknownFormat(t *testing.T) {
	meta := Extract(strings.NewReader("binary junk"), "BAM")
	if len(meta) != 0 {
		t.Errorf("Extract() for unsupported format = %v, want empty", meta)
	}
}

func TestSupported(t *testing.T) {
	if !Supported("FASTA") {
		t.Error("Supported(FASTA) = false, want true")
	}
	if Supported("BAM") {
		t.Error("Supported(BAM) = true, want false")
	}
}
