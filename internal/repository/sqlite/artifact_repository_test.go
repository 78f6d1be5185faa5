package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bioshelf/bioshelf/internal/models"
	"github.com/bioshelf/bioshelf/internal/repository"
	"github.com/bioshelf/bioshelf/internal/testutil"
)

var artifactSeq int

func newTestArtifact(t *testing.T, repos *repository.Repositories, user *models.User, filename, format string) *models.Artifact {
	t.Helper()

	artifactSeq++
	artifact := &models.Artifact{
		UserID:           user.ID,
		OriginalFilename: filename,
		StoredFilename:   fmt.Sprintf("stored%04d.bin", artifactSeq),
		FileSize:         100,
		MimeType:         "application/octet-stream",
		UploadMethod:     "chunked",
		FileFormat:       format,
		DocumentType:     models.DocumentDataset,
	}
	artifact.RefreshSearchVector()
	if err := repos.Artifacts.Create(context.Background(), artifact); err != nil {
		t.Fatalf("failed to create artifact: %v", err)
	}
	return artifact
}

func TestArtifactRepository_CreateAndGet(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	user := testutil.CreateTestUser(t, repos, "alice")
	ctx := context.Background()

	artifact := newTestArtifact(t, repos, user, "genome.fasta", "FASTA")
	if artifact.ID == 0 {
		t.Fatal("expected artifact ID to be set after create")
	}
	if artifact.UploadedAt.IsZero() {
		t.Fatal("expected uploaded_at to be populated on create")
	}

	got, err := repos.Artifacts.GetByID(ctx, artifact.ID, user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected artifact, got nil")
	}
	if got.OriginalFilename != "genome.fasta" || got.FileFormat != "FASTA" {
		t.Errorf("unexpected artifact: %+v", got)
	}

	// Other owners see nothing.
	other := testutil.CreateTestUser(t, repos, "other")
	got, err = repos.Artifacts.GetByID(ctx, artifact.ID, other.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatal("expected foreign artifact lookup to return nil")
	}
}

func TestArtifactRepository_ListFilters(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	user := testutil.CreateTestUser(t, repos, "alice")
	ctx := context.Background()

	a := newTestArtifact(t, repos, user, "human_genome.fasta", "FASTA")
	a.Organism = "Homo sapiens"
	a.RefreshSearchVector()
	if err := repos.Artifacts.Update(ctx, a); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	newTestArtifact(t, repos, user, "variants.vcf", "VCF")

	tests := []struct {
		name   string
		filter repository.ArtifactFilter
		want   []string
	}{
		{"no filter", repository.ArtifactFilter{}, []string{"variants.vcf", "human_genome.fasta"}},
		{"by format", repository.ArtifactFilter{FileFormat: "VCF"}, []string{"variants.vcf"}},
		{"by text", repository.ArtifactFilter{Query: "sapiens"}, []string{"human_genome.fasta"}},
		{"case insensitive", repository.ArtifactFilter{Query: "SAPIENS"}, []string{"human_genome.fasta"}},
		{"no match", repository.ArtifactFilter{Query: "arabidopsis"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repos.Artifacts.List(ctx, user.ID, tt.filter)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d artifacts, got %d", len(tt.want), len(got))
			}
			for i, name := range tt.want {
				if got[i].OriginalFilename != name {
					t.Errorf("position %d: expected %s, got %s", i, name, got[i].OriginalFilename)
				}
			}
		})
	}
}

func TestArtifactRepository_ListEscapesLikeWildcards(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	user := testutil.CreateTestUser(t, repos, "alice")
	ctx := context.Background()

	newTestArtifact(t, repos, user, "sample_01.fasta", "FASTA")
	newTestArtifact(t, repos, user, "samplex01.fasta", "FASTA")

	// A literal underscore in the query must not act as a single-char
	// wildcard.
	got, err := repos.Artifacts.List(ctx, user.ID, repository.ArtifactFilter{Query: "sample_01"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(got))
	}
	if got[0].OriginalFilename != "sample_01.fasta" {
		t.Errorf("expected sample_01.fasta, got %s", got[0].OriginalFilename)
	}
}

func TestArtifactRepository_Update(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	user := testutil.CreateTestUser(t, repos, "alice")
	ctx := context.Background()

	artifact := newTestArtifact(t, repos, user, "paper.pdf", "PDF")
	artifact.Title = "CRISPR screening results"
	artifact.DocumentType = models.DocumentPaper
	artifact.Tags = "crispr,screening"
	artifact.RefreshSearchVector()

	if err := repos.Artifacts.Update(ctx, artifact); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := repos.Artifacts.GetByID(ctx, artifact.ID, user.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Title != "CRISPR screening results" || got.DocumentType != models.DocumentPaper {
		t.Errorf("update not persisted: %+v", got)
	}

	// Updating through a non-owner matches no rows.
	other := testutil.CreateTestUser(t, repos, "other")
	artifact.UserID = other.ID
	err = repos.Artifacts.Update(ctx, artifact)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestArtifactRepository_Delete(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	user := testutil.CreateTestUser(t, repos, "alice")
	ctx := context.Background()

	artifact := newTestArtifact(t, repos, user, "old.vcf", "VCF")

	if err := repos.Artifacts.Delete(ctx, artifact.ID, user.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := repos.Artifacts.GetByID(ctx, artifact.ID, user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatal("expected artifact to be gone")
	}

	err = repos.Artifacts.Delete(ctx, artifact.ID, user.ID)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeat delete, got %v", err)
	}
}

func TestArtifactRepository_FacetsAndStats(t *testing.T) {
	repos := testutil.SetupTestRepos(t)
	alice := testutil.CreateTestUser(t, repos, "alice")
	bob := testutil.CreateTestUser(t, repos, "bob")
	ctx := context.Background()

	newTestArtifact(t, repos, alice, "a.fasta", "FASTA")
	newTestArtifact(t, repos, alice, "b.fasta", "FASTA")
	newTestArtifact(t, repos, alice, "c.vcf", "VCF")
	newTestArtifact(t, repos, bob, "d.vcf", "VCF")

	facets, err := repos.Artifacts.Facets(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Facets failed: %v", err)
	}
	if facets.Formats["FASTA"] != 2 || facets.Formats["VCF"] != 1 {
		t.Errorf("unexpected format facets: %v", facets.Formats)
	}
	if facets.DocumentTypes[models.DocumentDataset] != 3 {
		t.Errorf("unexpected document type facets: %v", facets.DocumentTypes)
	}

	count, bytes, err := repos.Artifacts.GetUserStats(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetUserStats failed: %v", err)
	}
	if count != 3 || bytes != 300 {
		t.Errorf("expected 3 files / 300 bytes, got %d / %d", count, bytes)
	}

	total, totalBytes, err := repos.Artifacts.GetTotals(ctx)
	if err != nil {
		t.Fatalf("GetTotals failed: %v", err)
	}
	if total != 4 || totalBytes != 400 {
		t.Errorf("expected 4 files / 400 bytes overall, got %d / %d", total, totalBytes)
	}
}
