package urltitle

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// MaxPageBytes bounds how much of a page is scanned for a title
const MaxPageBytes = 512 << 10

// ExtractTitle reads an HTML document and returns its og:title, falling back
// to <title>. contentType is used for charset detection and may be empty.
func ExtractTitle(r io.Reader, contentType string) (string, error) {
	body, err := charset.NewReader(io.LimitReader(r, MaxPageBytes), contentType)
	if err != nil {
		return "", fmt.Errorf("detect charset: %w", err)
	}

	z := html.NewTokenizer(body)
	var title string
	inTitle := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return strings.TrimSpace(title), nil
			}
			return strings.TrimSpace(title), z.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Meta:
				if og := ogTitle(tok); og != "" {
					return og, nil
				}
			case atom.Title:
				inTitle = title == ""
			case atom.Body:
				// og:title lives in <head>; a <title> seen so far is final
				if title != "" {
					return strings.TrimSpace(title), nil
				}
			}

		case html.TextToken:
			if inTitle {
				title += string(z.Text())
			}

		case html.EndTagToken:
			if name, _ := z.TagName(); atom.Lookup(name) == atom.Title {
				inTitle = false
			}
		}
	}
}

func ogTitle(tok html.Token) string {
	var property, content string
	for _, a := range tok.Attr {
		switch strings.ToLower(a.Key) {
		case "property", "name":
			property = strings.ToLower(a.Val)
		case "content":
			content = a.Val
		}
	}
	if property != "og:title" {
		return ""
	}
	return strings.TrimSpace(content)
}
