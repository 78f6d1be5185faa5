// Package metadata performs low-cost structural inspection of common
// biomedical file formats. Extraction lives entirely outside the
// transfer path: it runs after completion, over the stored bytes, and
// a failure never blocks the upload.
package metadata

import (
	"bufio"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// extractorFunc inspects a bounded prefix of the content and returns a
// metadata map ready for JSON encoding.
type extractorFunc func(r io.Reader) map[string]any

// extractors keys format tags to their extractor. Formats without an
// entry get no extracted metadata; that is a valid outcome, not an
// error.
var extractors = map[string]extractorFunc{
	"FASTA": extractFASTA,
	"FASTQ": extractFASTQ,
	"VCF":   extractVCF,
	"CSV":   extractDelimited,
	"TSV":   extractDelimited,
	"txt":   extractText,
}

// Extract runs the extractor registered for the given format over the
// reader. Unknown formats yield an empty map.
func Extract(r io.Reader, format string) map[string]any {
	extractor, ok := extractors[format]
	if !ok {
		return map[string]any{}
	}

	meta := extractor(r)
	if meta == nil {
		meta = map[string]any{}
	}
	return meta
}

// Supported reports whether a specialized extractor exists for the
// format.
func Supported(format string) bool {
	_, ok := extractors[format]
	return ok
}

var organismPatterns = []string{
	"Homo sapiens",
	"Mus musculus",
	"Drosophila melanogaster",
	"Caenorhabditis elegans",
	"Saccharomyces cerevisiae",
	"Escherichia coli",
	"Arabidopsis thaliana",
}

// detectOrganism scans sequence headers for well-known species names.
func detectOrganism(headers []string) string {
	limit := len(headers)
	if limit > 10 {
		limit = 10
	}
	for _, header := range headers[:limit] {
		lower := strings.ToLower(header)
		for _, pattern := range organismPatterns {
			if strings.Contains(lower, strings.ToLower(pattern)) {
				return pattern
			}
		}
	}
	return ""
}

func extractFASTA(r io.Reader) map[string]any {
	meta := map[string]any{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var headers []string
	sequenceCount := 0
	totalLength := 0
	currentLength := 0

	for lineNum := 0; scanner.Scan() && lineNum <= 1000; lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, ">") {
			if currentLength > 0 {
				totalLength += currentLength
				currentLength = 0
			}
			headers = append(headers, line[1:])
			sequenceCount++
			if sequenceCount > 10 {
				break
			}
		} else if line != "" {
			currentLength += len(line)
		}
	}
	if currentLength > 0 {
		totalLength += currentLength
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("fasta metadata scan aborted", "error", err)
	}

	meta["sequence_count"] = sequenceCount
	if sequenceCount > 0 {
		meta["average_length"] = totalLength / sequenceCount
	} else {
		meta["average_length"] = 0
	}
	meta["sample_headers"] = sampleOf(headers, 5)

	if organism := detectOrganism(headers); organism != "" {
		meta["detected_organism"] = organism
	}

	return meta
}

var platformPatterns = []struct {
	platform string
	patterns []*regexp.Regexp
}{
	{"Illumina", compileAll(`(?i)@.*:.*:.*:.*:`, `(?i)HWI-`, `(?i)HWUSI-`, `(?i)M[0-9]+:`, `(?i)HiSeq`, `(?i)MiSeq`, `(?i)NextSeq`)},
	{"PacBio", compileAll(`(?i)@m[0-9]+`, `(?i)PacBio`)},
	{"Oxford Nanopore", compileAll(`(?i)@.*_ch[0-9]+_read[0-9]+`, `(?i)MinION`, `(?i)GridION`)},
	{"Ion Torrent", compileAll(`(?i)@.*_[0-9]+_[0-9]+`, `(?i)IonTorrent`)},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		res = append(res, regexp.MustCompile(p))
	}
	return res
}

// detectPlatform infers the sequencing platform from FASTQ read headers.
func detectPlatform(headers []string) string {
	limit := len(headers)
	if limit > 5 {
		limit = 5
	}
	for _, header := range headers[:limit] {
		for _, pp := range platformPatterns {
			for _, re := range pp.patterns {
				if re.MatchString("@" + header) {
					return pp.platform
				}
			}
		}
	}
	return ""
}

func extractFASTQ(r io.Reader) map[string]any {
	meta := map[string]any{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var headers []string
	var record []string
	readCount := 0
	totalLength := 0
	qualitySum := 0.0
	qualityReads := 0

	for lineNum := 0; scanner.Scan() && lineNum <= 4000; lineNum++ {
		record = append(record, strings.TrimSpace(scanner.Text()))

		// Four lines per read
		if len(record) == 4 {
			header, sequence, plus, quality := record[0], record[1], record[2], record[3]
			if strings.HasPrefix(header, "@") && strings.HasPrefix(plus, "+") {
				readCount++
				totalLength += len(sequence)
				headers = append(headers, header[1:])

				if quality != "" {
					sum := 0
					for _, c := range quality {
						sum += int(c) - 33
					}
					qualitySum += float64(sum) / float64(len(quality))
					qualityReads++
				}
			}
			record = record[:0]

			if readCount >= 1000 {
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("fastq metadata scan aborted", "error", err)
	}

	meta["read_count"] = readCount
	if readCount > 0 {
		meta["average_read_length"] = totalLength / readCount
	} else {
		meta["average_read_length"] = 0
	}
	if qualityReads > 0 {
		meta["average_quality"] = qualitySum / float64(qualityReads)
	} else {
		meta["average_quality"] = 0.0
	}
	meta["sample_headers"] = sampleOf(headers, 5)

	if platform := detectPlatform(headers); platform != "" {
		meta["sequencing_platform"] = platform
	}

	return meta
}

func extractVCF(r io.Reader) map[string]any {
	meta := map[string]any{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	headerInfo := map[string]string{}
	var sampleNames []string
	variantCount := 0
	headerLines := 0

	for lineNum := 0; scanner.Scan() && lineNum <= 1000; lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "##"):
			if headerLines < 20 {
				if v, ok := strings.CutPrefix(line, "##fileformat="); ok {
					headerInfo["file_format"] = v
				} else if v, ok := strings.CutPrefix(line, "##reference="); ok {
					headerInfo["reference"] = v
				} else if v, ok := strings.CutPrefix(line, "##source="); ok {
					headerInfo["source"] = v
				}
			}
			headerLines++
		case strings.HasPrefix(line, "#CHROM"):
			columns := strings.Split(line, "\t")
			if len(columns) > 9 {
				sampleNames = columns[9:]
			}
		case line != "" && !strings.HasPrefix(line, "#"):
			variantCount++
			if variantCount >= 100 {
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("vcf metadata scan aborted", "error", err)
	}

	meta["variant_count_sample"] = variantCount
	meta["sample_count"] = len(sampleNames)
	meta["sample_names"] = sampleOf(sampleNames, 10)
	meta["header_info"] = headerInfo

	return meta
}

func extractDelimited(r io.Reader) map[string]any {
	meta := map[string]any{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var lines []string
	for i := 0; i < 10 && scanner.Scan(); i++ {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if len(lines) == 0 {
		return meta
	}

	// Pick the delimiter splitting the header into the most columns
	separators := []string{",", "\t", ";", "|"}
	separator := ","
	maxCols := 0
	for _, sep := range separators {
		if cols := len(strings.Split(lines[0], sep)); cols > maxCols {
			maxCols = cols
			separator = sep
		}
	}

	columns := strings.Split(lines[0], separator)
	meta["column_count"] = len(columns)
	meta["separator"] = separator
	meta["columns"] = sampleOf(columns, 20)
	meta["sample_rows"] = len(lines) - 1

	return meta
}

var bioKeywords = []string{
	"RNA-seq", "DNA-seq", "ChIP-seq", "ATAC-seq", "scRNA-seq",
	"genome", "transcriptome", "proteome", "metabolome",
	"GWAS", "SNP", "variant", "mutation", "expression",
	"protein", "gene", "chromosome", "sequencing",
	"cancer", "tumor", "disease", "treatment", "therapy",
	"cell", "tissue", "organ", "development", "differentiation",
}

// detectKeywords returns up to 10 life-science keywords seen in text.
func detectKeywords(text string) []string {
	var found []string
	lower := strings.ToLower(text)
	for _, kw := range bioKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			found = append(found, kw)
			if len(found) == 10 {
				break
			}
		}
	}
	return found
}

func extractText(r io.Reader) map[string]any {
	meta := map[string]any{}

	// First 5000 characters only
	buf := make([]byte, 5000)
	n, _ := io.ReadFull(r, buf)
	content := string(buf[:n])

	meta["line_count"] = len(strings.Split(content, "\n"))
	meta["word_count"] = len(strings.Fields(content))
	meta["char_count"] = len(content)

	preview := content
	if len(preview) > 500 {
		preview = preview[:500]
	}
	meta["preview"] = preview

	if keywords := detectKeywords(content); len(keywords) > 0 {
		meta["detected_keywords"] = keywords
	}

	return meta
}

// sampleOf returns at most n leading elements, never nil.
func sampleOf(items []string, n int) []string {
	if len(items) > n {
		items = items[:n]
	}
	if items == nil {
		return []string{}
	}
	return items
}
