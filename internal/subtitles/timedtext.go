package subtitles

import (
	"encoding/xml"
	"strings"
)

// timedtext format 3: <timedtext><body><p t="ms" d="ms">text<s>word</s></p></body></timedtext>
type srv3Document struct {
	XMLName    xml.Name        `xml:"timedtext"`
	Paragraphs []srv3Paragraph `xml:"body>p"`
}

type srv3Paragraph struct {
	StartMS    int64  `xml:"t,attr"`
	DurationMS int64  `xml:"d,attr"`
	Text       string `xml:",chardata"`
	Segments   []struct {
		Text string `xml:",chardata"`
	} `xml:"s"`
}

// legacy format: <transcript><text start="1.2" dur="3.4">text</text></transcript>
type transcriptDocument struct {
	XMLName xml.Name `xml:"transcript"`
	Lines   []struct {
		Start    float64 `xml:"start,attr"`
		Duration float64 `xml:"dur,attr"`
		Text     string  `xml:",chardata"`
	} `xml:"text"`
}

func looksLikeTimedTextXML(content string) bool {
	if !strings.HasPrefix(content, "<") {
		return false
	}
	head := content
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.Contains(head, "<timedtext") || strings.Contains(head, "<transcript")
}

func parseTimedTextXML(data []byte) ([]Fragment, error) {
	if strings.Contains(string(data[:min(len(data), 512)]), "<transcript") {
		var doc transcriptDocument
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		fragments := make([]Fragment, 0, len(doc.Lines))
		for _, line := range doc.Lines {
			text := strings.TrimSpace(line.Text)
			if text == "" {
				continue
			}
			start := max(line.Start, 0)
			fragments = append(fragments, Fragment{Start: start, End: start + max(line.Duration, 0), Text: text})
		}
		return fragments, nil
	}

	var doc srv3Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	fragments := make([]Fragment, 0, len(doc.Paragraphs))
	for _, p := range doc.Paragraphs {
		text := p.Text
		if len(p.Segments) > 0 {
			var b strings.Builder
			for _, seg := range p.Segments {
				b.WriteString(seg.Text)
			}
			text = b.String()
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		start := float64(max(p.StartMS, 0)) / 1000
		end := start + float64(max(p.DurationMS, 0))/1000
		fragments = append(fragments, Fragment{Start: start, End: end, Text: text})
	}
	return fragments, nil
}
