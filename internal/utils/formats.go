package utils

import (
	"path/filepath"
	"strings"
)

// formatByExtension maps lowercase filename extensions to catalog
// format tags. Bioinformatics formats get canonical uppercase names;
// general formats keep conventional tags.
var formatByExtension = map[string]string{
	// Bioinformatics formats
	"fastq": "FASTQ",
	"fq":    "FASTQ",
	"fasta": "FASTA",
	"fa":    "FASTA",
	"vcf":   "VCF",
	"bam":   "BAM",
	"sam":   "SAM",
	"bed":   "BED",
	"gtf":   "GTF",
	"gff":   "GFF",

	// Document formats
	"pdf":  "PDF",
	"doc":  "DOC",
	"docx": "DOCX",
	"ppt":  "PPT",
	"pptx": "PPTX",
	"rtf":  "RTF",

	// Data formats
	"csv":  "CSV",
	"tsv":  "TSV",
	"xls":  "XLS",
	"xlsx": "XLSX",
	"json": "JSON",
	"xml":  "XML",
	"yaml": "YAML",
	"yml":  "YAML",
	"sql":  "SQL",

	// Code formats
	"py":    "py",
	"ipynb": "ipynb",
	"r":     "R",
	"rmd":   "Rmd",
	"js":    "js",
	"html":  "html",
	"htm":   "html",
	"css":   "css",
	"java":  "java",
	"cpp":   "cpp",
	"cxx":   "cpp",
	"cc":    "cpp",
	"c":     "c",
	"h":     "c",
	"hpp":   "cpp",
	"sh":    "sh",
	"bash":  "sh",
	"zsh":   "sh",
	"pl":    "pl",
	"php":   "php",
	"rb":    "rb",
	"go":    "go",
	"rs":    "rs",

	// Text formats
	"txt":      "txt",
	"md":       "md",
	"markdown": "md",
	"log":      "log",
	"conf":     "conf",
	"ini":      "ini",
	"cfg":      "cfg",

	// Image formats
	"jpg":  "jpg",
	"jpeg": "jpeg",
	"png":  "png",
	"gif":  "gif",
	"bmp":  "bmp",
	"tiff": "tiff",
	"tif":  "tiff",
	"svg":  "svg",
	"webp": "webp",

	// Audio/video formats
	"mp3":  "mp3",
	"wav":  "wav",
	"flac": "flac",
	"ogg":  "ogg",
	"mp4":  "mp4",
	"avi":  "avi",
	"mov":  "mov",
	"mkv":  "mkv",
	"webm": "webm",

	// Archive formats
	"zip": "zip",
	"rar": "rar",
	"gz":  "gz",
	"tar": "tar",
	"7z":  "7z",
}

// DetectFileFormat infers a catalog format tag from a filename's
// extension. Unknown or missing extensions map to "other". A trailing
// ".gz" is looked through so "reads.fastq.gz" still detects as FASTQ.
func DetectFileFormat(filename string) string {
	if filename == "" {
		return "other"
	}

	name := strings.ToLower(filename)
	if strings.HasSuffix(name, ".gz") {
		inner := strings.TrimSuffix(name, ".gz")
		if ext := strings.TrimPrefix(filepath.Ext(inner), "."); ext != "" {
			if format, ok := formatByExtension[ext]; ok {
				return format
			}
		}
		return "gz"
	}

	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return "other"
	}
	if format, ok := formatByExtension[ext]; ok {
		return format
	}
	return "other"
}
