package feedsearch

import (
	"encoding/xml"
)

// opmlDocument, opmlHead, opmlBody and opmlOutline model the small slice of
// OPML 2.0 needed here: a head with a title, and one outline element per
// feed.
type opmlDocument struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    opmlHead `xml:"head"`
	Body    opmlBody `xml:"body"`
}

type opmlHead struct {
	Title string `xml:"title"`
}

type opmlBody struct {
	Outlines []opmlOutline `xml:"outline"`
}

type opmlOutline struct {
	Type    string `xml:"type,attr"`
	Text    string `xml:"text,attr"`
	XMLURL  string `xml:"xmlUrl,attr"`
	HTMLURL string `xml:"htmlUrl,attr,omitempty"`
}

// WriteOPML renders feeds as an OPML 2.0 document. It is a pure function of
// its input. title labels the document head.
func WriteOPML(feeds []*FeedInfo, title string) ([]byte, error) {
	doc := opmlDocument{
		Version: "2.0",
		Head:    opmlHead{Title: title},
		Body:    opmlBody{Outlines: make([]opmlOutline, 0, len(feeds))},
	}
	for _, f := range feeds {
		if f == nil {
			continue
		}
		doc.Body.Outlines = append(doc.Body.Outlines, opmlOutline{
			Type:    "rss",
			Text:    f.Title,
			XMLURL:  f.URL,
			HTMLURL: f.SiteURL,
		})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
