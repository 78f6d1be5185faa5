// Package ncbi fetches public archive records through the NCBI
// E-utilities API so they can be imported into the catalog. The HTTP
// client is injected; the package holds no global state.
package ncbi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	eutilsBase  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	sraFastqURL = "https://trace.ncbi.nlm.nih.gov/Traces/sra-reads-be/fastq"
)

var (
	// ErrUnsupported indicates a URL or resource type the importer
	// does not understand.
	ErrUnsupported = errors.New("unsupported NCBI resource")

	// ErrTooLarge indicates the remote record exceeds the configured
	// import size cap.
	ErrTooLarge = errors.New("download exceeds size limit")

	// ErrFetch indicates the archive returned an error or the
	// transfer failed.
	ErrFetch = errors.New("NCBI fetch failed")
)

// resource describes how one E-utilities database is fetched.
type resource struct {
	db           string
	retType      string
	retMode      string
	ext          string
	documentType string
	strategy     string // "sra_fastq" routes through the SRA reads endpoint
}

var resourceMap = map[string]resource{
	"nuccore":    {db: "nuccore", retType: "fasta", retMode: "text", ext: "fasta", documentType: "Dataset"},
	"nucleotide": {db: "nuccore", retType: "fasta", retMode: "text", ext: "fasta", documentType: "Dataset"},
	"protein":    {db: "protein", retType: "fasta", retMode: "text", ext: "fasta", documentType: "Dataset"},
	"gene":       {db: "gene", retType: "xml", retMode: "xml", ext: "xml", documentType: "Dataset"},
	"pubmed":     {db: "pubmed", retType: "abstract", retMode: "text", ext: "txt", documentType: "Paper"},
	"bioproject": {db: "bioproject", retType: "xml", retMode: "xml", ext: "xml", documentType: "Dataset"},
	"biosample":  {db: "biosample", retType: "xml", retMode: "xml", ext: "xml", documentType: "Dataset"},
	"sra":        {db: "sra", strategy: "sra_fastq", ext: "fastq.gz", documentType: "Dataset"},
}

// accessionPrefixMap routes bare accessions to a resource when the URL
// path does not name one.
var accessionPrefixMap = []struct {
	prefix   string
	resource string
}{
	{"SR", "sra"},
	{"ER", "sra"},
	{"DR", "sra"},
	{"PRJ", "bioproject"},
	{"SAM", "biosample"},
	{"GSE", "pubmed"},
	{"GSM", "pubmed"},
}

var accessionPattern = regexp.MustCompile(
	`(PRJ[A-Z0-9]+|SAMN[0-9]+|SR[RPX][0-9]+|ER[RPX][0-9]+|DR[RPX][0-9]+|GSE[0-9]+|GSM[0-9]+|[A-Z]{2}_[0-9.]+)`)

// Result describes a fetched archive record.
type Result struct {
	Accession    string
	DB           string
	Filename     string
	FileFormat   string
	DocumentType string
	Size         int64
	Metadata     map[string]any
}

// Client talks to the NCBI E-utilities API.
type Client struct {
	httpClient *http.Client
	maxBytes   int64

	// Overridable in tests
	eutilsURL string
	sraURL    string
}

// NewClient creates a Client using the given HTTP client and download
// size cap.
func NewClient(httpClient *http.Client, maxBytes int64) *Client {
	return &Client{
		httpClient: httpClient,
		maxBytes:   maxBytes,
		eutilsURL:  eutilsBase,
		sraURL:     sraFastqURL,
	}
}

// ParseResourceURL infers (resource, accession) from an NCBI URL or a
// bare accession.
func ParseResourceURL(raw string) (string, string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid URL: %w", ErrUnsupported)
	}

	var pathParts []string
	for _, part := range strings.Split(parsed.Path, "/") {
		if part != "" {
			pathParts = append(pathParts, part)
		}
	}

	resourceName := ""
	accession := ""
	if len(pathParts) > 0 {
		resourceName = strings.ToLower(pathParts[0])
	}
	if len(pathParts) > 1 {
		accession = pathParts[1]
	}

	if accession == "" {
		query := parsed.Query()
		for _, key := range []string{"id", "term", "acc", "run"} {
			if v := query.Get(key); v != "" {
				accession = v
				break
			}
		}
	}
	accession = strings.TrimSpace(accession)

	if accession == "" {
		if match := accessionPattern.FindString(raw); match != "" {
			accession = match
		}
	}

	if resourceName == "" || resourceName == "entrez" {
		upper := strings.ToUpper(accession)
		for _, m := range accessionPrefixMap {
			if strings.HasPrefix(upper, m.prefix) {
				resourceName = m.resource
				break
			}
		}
	}

	if resourceName == "" {
		return "", "", fmt.Errorf("cannot determine resource type: %w", ErrUnsupported)
	}
	if accession == "" {
		return "", "", fmt.Errorf("cannot determine accession: %w", ErrUnsupported)
	}

	return resourceName, accession, nil
}

// Download fetches the record behind the URL, writes its content to w,
// and returns the record's description. The configured size cap is
// enforced both on the declared Content-Length and on the actual bytes
// streamed.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) (*Result, error) {
	resourceName, accession, err := ParseResourceURL(rawURL)
	if err != nil {
		return nil, err
	}

	cfg, ok := resourceMap[resourceName]
	if !ok {
		return nil, fmt.Errorf("resource %q: %w", resourceName, ErrUnsupported)
	}

	var fetchURL string
	params := url.Values{}
	if cfg.strategy == "sra_fastq" {
		fetchURL = c.sraURL
		params.Set("acc", accession)
	} else {
		fetchURL = c.eutilsURL + "/efetch.fcgi"
		params.Set("db", cfg.db)
		params.Set("id", accession)
		if cfg.retType != "" {
			params.Set("rettype", cfg.retType)
		}
		if cfg.retMode != "" {
			params.Set("retmode", cfg.retMode)
		}
	}

	size, filename, err := c.stream(ctx, fetchURL, params, w)
	if err != nil {
		return nil, err
	}
	if filename == "" {
		filename = accession + "." + cfg.ext
	}

	metadata := c.fetchSummary(ctx, cfg.db, accession)
	metadata["ncbi_db"] = cfg.db
	metadata["download_bytes"] = size
	metadata["source_url"] = rawURL

	return &Result{
		Accession:    accession,
		DB:           cfg.db,
		Filename:     filename,
		FileFormat:   normalizeFormat(cfg.ext),
		DocumentType: cfg.documentType,
		Size:         size,
		Metadata:     metadata,
	}, nil
}

// stream performs the GET and copies the body to w under the size cap.
// Returns the bytes written and any filename from Content-Disposition.
func (c *Client) stream(ctx context.Context, fetchURL string, params url.Values, w io.Writer) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if declared, err := strconv.ParseInt(cl, 10, 64); err == nil && declared > c.maxBytes {
			return 0, "", fmt.Errorf("declared size %d over cap %d: %w", declared, c.maxBytes, ErrTooLarge)
		}
	}

	// Read one byte past the cap so overruns are detected
	written, err := io.Copy(w, io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return written, "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if written > c.maxBytes {
		return written, "", fmt.Errorf("download over cap %d: %w", c.maxBytes, ErrTooLarge)
	}

	return written, filenameFromDisposition(resp.Header.Get("Content-Disposition")), nil
}

var dispositionFilename = regexp.MustCompile(`filename="?([^";]+)`)

func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	if match := dispositionFilename.FindStringSubmatch(header); match != nil {
		return match[1]
	}
	return ""
}

// fetchSummary pulls esummary metadata for the record. Summary fetch
// failures are swallowed: the import proceeds with what we have.
func (c *Client) fetchSummary(ctx context.Context, db, accession string) map[string]any {
	metadata := map[string]any{}

	params := url.Values{}
	params.Set("db", db)
	params.Set("id", accession)
	params.Set("retmode", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.eutilsURL+"/esummary.fcgi?"+params.Encode(), nil)
	if err != nil {
		return metadata
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return metadata
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return metadata
	}

	var payload struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return metadata
	}

	var uids []string
	if raw, ok := payload.Result["uids"]; ok {
		if err := json.Unmarshal(raw, &uids); err != nil || len(uids) == 0 {
			return metadata
		}
	} else {
		return metadata
	}

	var summary map[string]any
	if raw, ok := payload.Result[uids[0]]; ok {
		if err := json.Unmarshal(raw, &summary); err != nil {
			return metadata
		}
	}

	pick := func(keys ...string) any {
		for _, k := range keys {
			if v, ok := summary[k]; ok && v != nil && v != "" {
				return v
			}
		}
		return nil
	}

	fields := map[string]any{
		"title":           pick("title", "extra"),
		"organism":        pick("organism", "taxname"),
		"length":          pick("slen", "length"),
		"status":          pick("status"),
		"summary":         pick("summary", "caption", "subname"),
		"experiment_type": pick("strategy", "librarystrategy"),
	}
	for k, v := range fields {
		if v != nil {
			metadata[k] = v
		}
	}

	return metadata
}

// normalizeFormat maps a download extension to a catalog format tag.
func normalizeFormat(ext string) string {
	switch strings.ToLower(ext) {
	case "fasta", "fa":
		return "FASTA"
	case "fastq", "fastq.gz", "fq", "fq.gz":
		return "FASTQ"
	case "xml":
		return "XML"
	case "txt":
		return "txt"
	default:
		return "other"
	}
}
