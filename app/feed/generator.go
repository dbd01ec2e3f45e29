package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"time"
)

const (
	channelTitle       = "NewsFlash"
	channelDescription = "Deduplicated and summarized headlines from multiple sources"
)

type Generator struct {
	selfLink string
	version  string
}

func NewGenerator(baseUrl, port, version string) *Generator {
	var selfLink string
	if baseUrl != "" {
		selfLink = fmt.Sprintf("%s/feed.rss", baseUrl)
	} else {
		selfLink = fmt.Sprintf("http://localhost:%s/feed.rss", port)
	}

	return &Generator{selfLink: selfLink, version: version}
}

// Run renders the document as an RSS 2.0 channel.
func (g *Generator) Run(doc *Document) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", channelTitle, 4)
	g.writeElement(&buf, "link", g.selfLink, 4)
	g.writeElement(&buf, "description", channelDescription, 4)
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(g.selfLink)))

	lastBuildDate := time.Now().UTC()
	if doc.GeneratedAt != nil {
		lastBuildDate = *doc.GeneratedAt
	}
	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("NewsFlash/%s", g.version), 4)
	g.writeElement(&buf, "language", "en", 4)

	for _, item := range doc.Items {
		g.writeItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, item Item) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(item.ID))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", item.Title, 6)
	g.writeElement(buf, "link", item.URL, 6)

	description := item.Title
	if item.Summary != nil {
		description = cmp.Or(*item.Summary, item.Title)
	}
	g.writeElement(buf, "description", description, 6)

	if item.Published != nil {
		g.writeElement(buf, "pubDate", item.Published.Format(time.RFC1123Z), 6)
	}

	g.writeElement(buf, "source", item.SourceName, 6)

	for _, topic := range item.Topics {
		g.writeElement(buf, "category", topic, 6)
	}

	if item.Image != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"image/jpeg\" />\n",
			html.EscapeString(item.Image)))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
