package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// SampleReport 模拟财报内容
type SampleReport struct {
	Title      string
	Paragraphs []string
}

// GenerateSampleReport 生成单页或多页的模拟财报PDF
// 内置字体只支持Latin-1，标题和正文需使用英文
func GenerateSampleReport(report SampleReport) ([]byte, error) {
	if strings.TrimSpace(report.Title) == "" {
		return nil, fmt.Errorf("sample report title cannot be empty")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(report.Title, false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.MultiCell(0, 10, report.Title, "", "C", false)
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 12)
	for _, p := range report.Paragraphs {
		pdf.MultiCell(0, 8, p, "", "", false)
		pdf.Ln(2)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render sample report: %w", err)
	}
	return buf.Bytes(), nil
}

// SampleReports 生成n份模拟季度财报
func SampleReports(n int) []SampleReport {
	reports := make([]SampleReport, 0, n)
	for i := 0; i < n; i++ {
		year := 2024 - i/4
		quarter := 4 - i%4
		revenue := 1200 + 37*(n-i)
		reports = append(reports, SampleReport{
			Title: fmt.Sprintf("Example Corp %d Q%d Financial Report", year, quarter),
			Paragraphs: []string{
				fmt.Sprintf("Revenue for Q%d %d reached %d million USD.", quarter, year, revenue),
				fmt.Sprintf("Net profit margin was %.1f%%, operating cash flow remained positive.", 8.5+float64(i%3)),
				"Management expects stable demand in the next quarter and continues to invest in research.",
			},
		})
	}
	return reports
}

// SampleFileName 返回模拟财报的文件名
func SampleFileName(index int) string {
	return fmt.Sprintf("sample_report_%02d.pdf", index+1)
}
