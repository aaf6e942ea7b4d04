package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectType(t *testing.T) {
	tests := []struct {
		name     string
		expected FileType
		wantErr  bool
	}{
		{"report.pdf", TypePDF, false},
		{"REPORT.PDF", TypePDF, false},
		{"notes.md", TypeMarkdown, false},
		{"notes.markdown", TypeMarkdown, false},
		{"readme.txt", TypeText, false},
		{"sheet.xlsx", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectType(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestInspector_PDF(t *testing.T) {
	content, err := GenerateSampleReport(SampleReport{
		Title:      "Example Corp 2024 Q4 Financial Report",
		Paragraphs: []string{"Revenue grew 12 percent."},
	})
	require.NoError(t, err)

	info, err := NewInspector().Inspect("data/q4.pdf", content)
	require.NoError(t, err)
	assert.Equal(t, "q4.pdf", info.Name)
	assert.Equal(t, TypePDF, info.Type)
	assert.Equal(t, "application/pdf", info.ContentType)
	assert.Equal(t, int64(len(content)), info.Size)
	assert.Equal(t, 1, info.PageCount)
}

func TestInspector_InvalidPDF(t *testing.T) {
	_, err := NewInspector().Inspect("broken.pdf", []byte("this is not a pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPDF)

	var inspectErr *InspectError
	require.ErrorAs(t, err, &inspectErr)
	assert.Equal(t, "broken.pdf", inspectErr.Name)
}

func TestInspector_Markdown(t *testing.T) {
	content := []byte("Intro line\n\n# Annual **Summary**\n\nSome text.\n\n## Details\n")

	info, err := NewInspector().Inspect("summary.md", content)
	require.NoError(t, err)
	assert.Equal(t, TypeMarkdown, info.Type)
	assert.Equal(t, "Annual Summary", info.Title)
}

func TestInspector_MarkdownWithoutHeading(t *testing.T) {
	info, err := NewInspector().Inspect("plain.markdown", []byte("first paragraph\n\nsecond paragraph"))
	require.NoError(t, err)
	assert.Equal(t, "first paragraph", info.Title)
}

func TestInspector_Text(t *testing.T) {
	info, err := NewInspector().Inspect("notes.txt", []byte("\n  Quarterly notes  \nbody"))
	require.NoError(t, err)
	assert.Equal(t, TypeText, info.Type)
	assert.Equal(t, "Quarterly notes", info.Title)
	assert.Equal(t, "text/plain", info.ContentType)
}

func TestInspector_Rejects(t *testing.T) {
	inspector := NewInspector()

	_, err := inspector.Inspect("empty.pdf", nil)
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = inspector.Inspect("blank.txt", []byte("   \n\t"))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = inspector.Inspect("blank.md", []byte("\n\n"))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = inspector.Inspect("bad.txt", []byte{0xff, 0xfe, 0xfd})
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = inspector.Inspect("sheet.xlsx", []byte("data"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestGenerateSampleReport(t *testing.T) {
	_, err := GenerateSampleReport(SampleReport{Title: " "})
	assert.Error(t, err)

	reports := SampleReports(3)
	require.Len(t, reports, 3)
	assert.Contains(t, reports[0].Title, "2024 Q4")
	assert.Contains(t, reports[1].Title, "2024 Q3")
	assert.Equal(t, "sample_report_01.pdf", SampleFileName(0))

	content, err := GenerateSampleReport(reports[2])
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(content[:5]))
}
