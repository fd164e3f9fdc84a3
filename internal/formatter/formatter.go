// package formatter renders recommendation batches and taste clusters to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/toquothty/spotify-nostalgic-recommend/internal/models"
	"github.com/toquothty/spotify-nostalgic-recommend/internal/shared"
)

// RecommendationView is the serializable projection of a [models.Recommendation].
type RecommendationView struct {
	ID                 string     `json:"id"`
	SpotifyTrackID     string     `json:"spotify_track_id"`
	TrackName          string     `json:"track_name"`
	ArtistName         string     `json:"artist_name"`
	AlbumName          string     `json:"album_name,omitempty"`
	Kind               string     `json:"kind"`
	SourceClusterIndex *int       `json:"source_cluster_index,omitempty"`
	Confidence         float64    `json:"confidence"`
	PreviewURL         string     `json:"preview_url,omitempty"`
	ExternalURL        string     `json:"external_url,omitempty"`
	ImageURL           string     `json:"image_url,omitempty"`
	Liked              *bool      `json:"liked,omitempty"`
	AlreadyKnew        *bool      `json:"already_knew,omitempty"`
	FeedbackAt         *time.Time `json:"feedback_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// NewRecommendationView builds the serializable view of a recommendation.
func NewRecommendationView(rec *models.Recommendation) RecommendationView {
	return RecommendationView{
		ID:                 rec.ID(),
		SpotifyTrackID:     rec.SpotifyTrackID(),
		TrackName:          rec.TrackName(),
		ArtistName:         rec.ArtistName(),
		AlbumName:          rec.AlbumName(),
		Kind:               string(rec.Kind()),
		SourceClusterIndex: rec.SourceClusterIndex(),
		Confidence:         rec.Confidence(),
		PreviewURL:         rec.PreviewURL(),
		ExternalURL:        rec.ExternalURL(),
		ImageURL:           rec.ImageURL(),
		Liked:              rec.Liked(),
		AlreadyKnew:        rec.AlreadyKnew(),
		FeedbackAt:         rec.FeedbackAt(),
		CreatedAt:          rec.CreatedAt(),
	}
}

// RecommendationViews converts a batch in order.
func RecommendationViews(recs []*models.Recommendation) []RecommendationView {
	views := make([]RecommendationView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, NewRecommendationView(rec))
	}
	return views
}

// ClusterView is the serializable projection of a [models.TasteCluster].
type ClusterView struct {
	Index       int                  `json:"index"`
	Label       string               `json:"label"`
	Description string               `json:"description,omitempty"`
	TrackCount  int                  `json:"track_count"`
	Centroid    models.FeatureVector `json:"centroid"`
	CreatedAt   time.Time            `json:"created_at"`
}

// NewClusterView builds the serializable view of a taste cluster.
func NewClusterView(cluster *models.TasteCluster) ClusterView {
	return ClusterView{
		Index:       cluster.Index(),
		Label:       cluster.Label(),
		Description: cluster.Description(),
		TrackCount:  cluster.TrackCount(),
		Centroid:    cluster.Centroid(),
		CreatedAt:   cluster.CreatedAt(),
	}
}

// ClusterViews converts clusters in order.
func ClusterViews(clusters []*models.TasteCluster) []ClusterView {
	views := make([]ClusterView, 0, len(clusters))
	for _, cluster := range clusters {
		views = append(views, NewClusterView(cluster))
	}
	return views
}

// RecommendationsToCSV converts a batch to CSV with columns: ID, Title, Artist, Album, Kind, Confidence, URL
func RecommendationsToCSV(recs []*models.Recommendation) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Kind", "Confidence", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, rec := range recs {
		record := []string{
			rec.SpotifyTrackID(),
			rec.TrackName(),
			rec.ArtistName(),
			rec.AlbumName(),
			string(rec.Kind()),
			strconv.FormatFloat(rec.Confidence(), 'f', 2, 64),
			rec.ExternalURL(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// RecommendationsToMarkdown converts a batch to Markdown with optional cover image
func RecommendationsToMarkdown(recs []*models.Recommendation, title string, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	if title == "" {
		title = "Recommendations"
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", title))

	if imageFilename != "" {
		buf.WriteString(fmt.Sprintf("![Cover](%s)\n\n", imageFilename))
	}

	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(recs)))

	buf.WriteString("## Tracks\n\n")
	for i, rec := range recs {
		albumPart := ""
		if rec.AlbumName() != "" {
			albumPart = fmt.Sprintf(" (%s)", rec.AlbumName())
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s [%.0f%%]\n", i+1, rec.ArtistName(), rec.TrackName(), albumPart, rec.Confidence()*100))
	}

	return buf.Bytes(), nil
}

// RecommendationsToText converts a batch to plain text format
func RecommendationsToText(recs []*models.Recommendation) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Recommendations: %d\n\n", len(recs)))

	for i, rec := range recs {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, rec.ArtistName(), rec.TrackName()))
		if rec.AlbumName() != "" {
			buf.WriteString(fmt.Sprintf("   Album: %s\n", rec.AlbumName()))
		}
		buf.WriteString(fmt.Sprintf("   Confidence: %.0f%%\n", rec.Confidence()*100))
	}

	return buf.Bytes(), nil
}

// ClustersToText renders taste clusters as plain text
func ClustersToText(clusters []*models.TasteCluster) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Taste clusters: %d\n\n", len(clusters)))

	for _, cluster := range clusters {
		buf.WriteString(fmt.Sprintf("%d. %s (%d tracks)\n", cluster.Index()+1, cluster.Label(), cluster.TrackCount()))
		if cluster.Description() != "" {
			buf.WriteString(fmt.Sprintf("   %s\n", cluster.Description()))
		}
	}

	return buf.Bytes(), nil
}

// ClustersToMarkdown renders taste clusters as a Markdown document with centroid tables
func ClustersToMarkdown(clusters []*models.TasteCluster) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Taste Clusters\n\n")
	buf.WriteString(fmt.Sprintf("**Clusters**: %d\n\n", len(clusters)))

	for _, cluster := range clusters {
		buf.WriteString(fmt.Sprintf("## %d. %s\n\n", cluster.Index()+1, cluster.Label()))
		if cluster.Description() != "" {
			buf.WriteString(fmt.Sprintf("%s\n\n", cluster.Description()))
		}
		buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", cluster.TrackCount()))

		centroid := cluster.Centroid()
		buf.WriteString("| Feature | Value |\n|---|---|\n")
		buf.WriteString(fmt.Sprintf("| Energy | %.2f |\n", centroid.Energy))
		buf.WriteString(fmt.Sprintf("| Valence | %.2f |\n", centroid.Valence))
		buf.WriteString(fmt.Sprintf("| Danceability | %.2f |\n", centroid.Danceability))
		buf.WriteString(fmt.Sprintf("| Acousticness | %.2f |\n", centroid.Acousticness))
		buf.WriteString(fmt.Sprintf("| Tempo | %.0f |\n\n", centroid.Tempo))
	}

	return buf.Bytes(), nil
}

// ToJSON generates a pretty-printed JSON representation of a recommendation batch
func ToJSON(recs []*models.Recommendation) ([]byte, error) {
	return shared.MarshalJSON(RecommendationViews(recs), true)
}

// ClustersToJSON generates a pretty-printed JSON representation of taste clusters
func ClustersToJSON(clusters []*models.TasteCluster) ([]byte, error) {
	return shared.MarshalJSON(ClusterViews(clusters), true)
}

// DownloadImage downloads album artwork from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile string
	JSONFile   string
}

// WriteCSVExport writes a recommendation batch to CSV with an accompanying JSON file.
//
// Creates {base}_tracks.csv and {base}.json
func WriteCSVExport(recs []*models.Recommendation, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = "recommendations"
	}

	csvData, err := RecommendationsToCSV(recs)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	jsonData, err := ToJSON(recs)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JSON: %w", err)
	}

	jsonFile := baseFilepath + ".json"
	if err := os.WriteFile(jsonFile, jsonData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write JSON file: %w", err)
	}

	return &CSVExportResult{
		TracksFile: tracksFile,
		JSONFile:   jsonFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport writes a recommendation batch to Markdown in a dedicated directory.
//
// The imageURL parameter is optional - when provided, attempts to download album artwork
// for a cover. Creates {dir}/README.md and optionally {dir}/cover.jpg
func WriteMarkdownExport(recs []*models.Recommendation, outputDir, title, imageURL string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = "recommendations"
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if imageURL != "" {
		imageData, err := DownloadImage(imageURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := fmt.Sprintf("%s/%s", outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save cover image: %v\n", err)
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := RecommendationsToMarkdown(recs, title, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := fmt.Sprintf("%s/README.md", outputDir)
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport writes a recommendation batch to a plain text file.
func WriteTextExport(recs []*models.Recommendation, outputFile string) (string, error) {
	if outputFile == "" {
		outputFile = "recommendations.txt"
	}

	data, err := RecommendationsToText(recs)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return outputFile, nil
}
