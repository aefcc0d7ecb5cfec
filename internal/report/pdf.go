// Package report renders punchlist reports as PDF documents.
package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Row is one punchlist item in the rendered table.
type Row struct {
	Room        string
	Category    string
	Description string
	PhotoURL    string
}

// Document is the input to a renderer.
type Document struct {
	Title       string
	Filter      string
	GeneratedAt time.Time
	Rows        []Row
}

// Renderer produces a report file from a document.
type Renderer interface {
	Render(ctx context.Context, doc *Document) ([]byte, error)
}

// ImageFetcher resolves a photo URL to raw image bytes. Implementations
// must return the gofpdf image type ("JPG" or "PNG") alongside the data.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// HTTPImageFetcher loads photos over HTTP and decodes data: URLs inline.
type HTTPImageFetcher struct {
	client *http.Client
}

func NewHTTPImageFetcher() *HTTPImageFetcher {
	return &HTTPImageFetcher{
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (f *HTTPImageFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	if strings.HasPrefix(url, "data:") {
		return decodeDataURL(url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("photo fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, "", err
	}

	return data, imageTypeFor(resp.Header.Get("Content-Type"), data), nil
}

func decodeDataURL(url string) ([]byte, string, error) {
	// data:<mediatype>;base64,<payload>
	rest := strings.TrimPrefix(url, "data:")
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data URL")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", fmt.Errorf("unsupported data URL encoding")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode data URL: %w", err)
	}

	mediaType := strings.TrimSuffix(meta, ";base64")
	return data, imageTypeFor(mediaType, data), nil
}

func imageTypeFor(contentType string, data []byte) string {
	switch {
	case strings.Contains(contentType, "png"):
		return "PNG"
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return "JPG"
	}
	if len(data) >= 8 && bytes.Equal(data[:8], []byte("\x89PNG\r\n\x1a\n")) {
		return "PNG"
	}
	return "JPG"
}

// Table layout in millimeters on an A4 portrait page.
const (
	marginX     = 12.0
	marginTop   = 14.0
	pageBottom  = 282.0
	colRoom     = 28.0
	colCategory = 44.0
	colDesc     = 78.0
	colPhoto    = 36.0
	rowMinH     = 22.0
	thumbSize   = 18.0
	lineH       = 4.5
)

// PDFRenderer renders the punchlist table with embedded photo thumbnails.
// Photo failures are logged and the row is rendered without its image.
type PDFRenderer struct {
	images ImageFetcher
}

func NewPDFRenderer(images ImageFetcher) *PDFRenderer {
	return &PDFRenderer{images: images}
}

func (r *PDFRenderer) Render(ctx context.Context, doc *Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginX, marginTop, marginX)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	r.drawTitle(pdf, doc)
	r.drawHeader(pdf)

	for i, row := range doc.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.drawRow(ctx, pdf, i, row)
	}

	if len(doc.Rows) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(colRoom+colCategory+colDesc+colPhoto, 12, "No items to report", "1", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) drawTitle(pdf *gofpdf.Fpdf, doc *Document) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(30, 30, 30)
	pdf.CellFormat(0, 9, doc.Title, "", 1, "L", false, 0, "")

	subtitle := doc.GeneratedAt.Format("January 2, 2006")
	if doc.Filter != "" && doc.Filter != "All" {
		subtitle = fmt.Sprintf("%s  |  Category: %s", subtitle, doc.Filter)
	}
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, subtitle, "", 1, "L", false, 0, "")
	pdf.Ln(3)
}

func (r *PDFRenderer) drawHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFillColor(52, 73, 94)
	pdf.CellFormat(colRoom, 8, "Room", "1", 0, "L", true, 0, "")
	pdf.CellFormat(colCategory, 8, "Category", "1", 0, "L", true, 0, "")
	pdf.CellFormat(colDesc, 8, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(colPhoto, 8, "Photo", "1", 1, "C", true, 0, "")
}

func (r *PDFRenderer) drawRow(ctx context.Context, pdf *gofpdf.Fpdf, index int, row Row) {
	descLines := pdf.SplitText(row.Description, colDesc-4)
	rowH := rowMinH
	if h := float64(len(descLines))*lineH + 4; h > rowH {
		rowH = h
	}

	if pdf.GetY()+rowH > pageBottom {
		pdf.AddPage()
		r.drawHeader(pdf)
	}

	x := marginX
	y := pdf.GetY()

	fill := index%2 == 1
	pdf.SetFillColor(245, 246, 248)
	pdf.Rect(x, y, colRoom+colCategory+colDesc+colPhoto, rowH, map[bool]string{true: "FD", false: "D"}[fill])
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(x+colRoom, y, x+colRoom, y+rowH)
	pdf.Line(x+colRoom+colCategory, y, x+colRoom+colCategory, y+rowH)
	pdf.Line(x+colRoom+colCategory+colDesc, y, x+colRoom+colCategory+colDesc, y+rowH)

	pdf.SetTextColor(30, 30, 30)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetXY(x+2, y+2)
	pdf.MultiCell(colRoom-4, lineH, row.Room, "", "L", false)

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetXY(x+colRoom+2, y+2)
	pdf.MultiCell(colCategory-4, lineH, row.Category, "", "L", false)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetXY(x+colRoom+colCategory+2, y+2)
	pdf.MultiCell(colDesc-4, lineH, row.Description, "", "L", false)

	if row.PhotoURL != "" {
		r.drawThumbnail(ctx, pdf, index, row.PhotoURL, x+colRoom+colCategory+colDesc+(colPhoto-thumbSize)/2, y+(rowH-thumbSize)/2)
	}

	pdf.SetXY(marginX, y+rowH)
}

func (r *PDFRenderer) drawThumbnail(ctx context.Context, pdf *gofpdf.Fpdf, index int, url string, x, y float64) {
	if r.images == nil {
		return
	}

	data, imgType, err := r.images.Fetch(ctx, url)
	if err != nil {
		log.Printf("Report: skipping photo for row %d: %v", index, err)
		return
	}

	name := fmt.Sprintf("photo-%d", index)
	opts := gofpdf.ImageOptions{ImageType: imgType, ReadDpi: true}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if pdf.Err() {
		log.Printf("Report: skipping photo for row %d: %v", index, pdf.Error())
		pdf.ClearError()
		return
	}
	pdf.ImageOptions(name, x, y, thumbSize, thumbSize, false, opts, 0, "")
}

// FileName builds the download name for a generated report.
func FileName(filter string, generatedAt time.Time) string {
	slug := strings.ToLower(strings.TrimSpace(filter))
	if slug == "" {
		slug = "all"
	}
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, slug)
	return fmt.Sprintf("punchlist_%s_%s.pdf", slug, generatedAt.Format("2006-01-02"))
}
